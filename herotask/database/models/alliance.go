package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Alliance struct {
	bun.BaseModel `bun:"table:alliances,alias:a"`

	ID       int64    `bun:"id,pk"`
	Name     string   `bun:"name,notnull"`
	LeaderID string   `bun:"leader_id,notnull"`
	Members  []string `bun:"members,type:jsonb"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// HasMember reports whether the user belongs to the alliance. The leader is
// always a member.
func (a *Alliance) HasMember(userID string) bool {
	for _, m := range a.Members {
		if m == userID {
			return true
		}
	}
	return false
}
