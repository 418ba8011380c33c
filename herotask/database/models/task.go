package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TaskStatus string

const (
	TaskStatusActive    TaskStatus = "active"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCanceled  TaskStatus = "canceled"
	TaskStatusPaused    TaskStatus = "paused"
)

// IsTerminal reports whether the status permits no further transitions.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCanceled:
		return true
	}
	return false
}

type Difficulty string

const (
	DifficultyVeryEasy Difficulty = "very_easy"
	DifficultyEasy     Difficulty = "easy"
	DifficultyHard     Difficulty = "hard"
	DifficultyExtreme  Difficulty = "extreme"
)

type Importance string

const (
	ImportanceNormal        Importance = "normal"
	ImportanceImportant     Importance = "important"
	ImportanceVeryImportant Importance = "very_important"
	ImportanceSpecial       Importance = "special"
)

// RepeatUnit is the unit of a repetition interval.
type RepeatUnit string

const (
	RepeatDaily   RepeatUnit = "day"
	RepeatWeekly  RepeatUnit = "week"
	RepeatMonthly RepeatUnit = "month"
	RepeatYearly  RepeatUnit = "year"
)

// Repetition describes a repeating task's schedule. Stored as JSONB on the
// task row; a nil Repetition means the task is one-shot.
type Repetition struct {
	Interval int        `json:"interval"`
	Unit     RepeatUnit `json:"unit"`
	Start    time.Time  `json:"start"`
	End      *time.Time `json:"end,omitempty"`
}

type Task struct {
	bun.BaseModel `bun:"table:tasks,alias:t"`

	ID         int64       `bun:"id,pk"`
	OwnerID    string      `bun:"owner_id,notnull"`
	Title      string      `bun:"title,notnull"`
	Difficulty Difficulty  `bun:"difficulty,notnull"`
	Importance Importance  `bun:"importance,notnull"`
	Status     TaskStatus  `bun:"status,notnull,default:'active'"`
	DueAt      *time.Time  `bun:"due_at"`
	Repeat     *Repetition `bun:"repeat,type:jsonb"`

	CompletedAt *time.Time `bun:"completed_at"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// IsRepeating reports whether the task carries a repetition schedule.
func (t *Task) IsRepeating() bool {
	return t.Repeat != nil && t.Repeat.Interval > 0
}
