package models

import (
	"time"

	"github.com/uptrace/bun"
)

type UserProgress struct {
	bun.BaseModel `bun:"table:user_progress,alias:up"`

	ID      int64  `bun:"id,pk,autoincrement"`
	OwnerID string `bun:"owner_id,notnull,unique"`

	Level       int   `bun:"level,notnull,default:0"`
	XP          int64 `bun:"xp,notnull,default:0"`
	PowerPoints int64 `bun:"power_points,notnull,default:0"`
	Coins       int64 `bun:"coins,notnull,default:0"`

	// Streaks stored as JSONB
	Streaks Streaks `bun:"streaks,type:jsonb"`

	// Reward inventory (item codes) and mission badges
	Inventory []string       `bun:"inventory,type:jsonb"`
	Badges    []MissionBadge `bun:"badges,type:jsonb"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

type Streaks struct {
	Current     int       `json:"current"`
	Longest     int       `json:"longest"`
	LastDayDone time.Time `json:"last_day_done"`
}

// MissionBadge records a member's participation in a finished special
// mission and their total contribution count.
type MissionBadge struct {
	MissionID     int64     `json:"mission_id"`
	AllianceID    int64     `json:"alliance_id"`
	Contributions int       `json:"contributions"`
	AwardedAt     time.Time `json:"awarded_at"`
}
