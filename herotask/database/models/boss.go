package models

import (
	"time"

	"github.com/uptrace/bun"
)

// PersonalBoss is the per-user boss scaled to the user's level. One row per
// owner; defeating it respawns a fresh boss at the owner's current level.
type PersonalBoss struct {
	bun.BaseModel `bun:"table:personal_bosses,alias:pb"`

	ID      int64  `bun:"id,pk,autoincrement"`
	OwnerID string `bun:"owner_id,notnull,unique"`

	Level     int   `bun:"level,notnull"`
	MaxHP     int64 `bun:"max_hp,notnull"`
	CurrentHP int64 `bun:"current_hp,notnull"`
	Defeated  bool  `bun:"defeated,notnull,default:false"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}
