package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/herotask/task-engine/herotask/database/models"
)

// CompletionCounter counts already-completed tasks of a class inside a time
// window, excluding the task currently being completed. TaskRepository
// satisfies it; tests plug in fakes.
type CompletionCounter interface {
	CountCompletedByDifficulty(ctx context.Context, ownerID string, difficulty models.Difficulty, from, to time.Time, excludeTaskID int64) (int, error)
	CountCompletedByImportance(ctx context.Context, ownerID string, importance models.Importance, from, to time.Time, excludeTaskID int64) (int, error)
}

// Window is the calendar span a cap applies to.
type Window int

const (
	WindowDay Window = iota
	WindowWeek
	WindowMonth
)

// Result reports whether a completion earns XP. Exceeding a quota is not an
// error: the completion still goes through, it just earns nothing.
type Result struct {
	XPEligible         bool
	DifficultyExceeded bool
	ImportanceExceeded bool
}

// Ledger gates XP on per-class completion caps inside calendar-aligned
// windows, so grinding trivial tasks stops paying out after the cap.
type Ledger struct {
	counter  CompletionCounter
	location *time.Location
}

// NewLedger builds a ledger evaluating windows in the given location. A nil
// location falls back to time.Local.
func NewLedger(counter CompletionCounter, location *time.Location) *Ledger {
	if location == nil {
		location = time.Local
	}
	return &Ledger{counter: counter, location: location}
}

type classCap struct {
	window Window
	limit  int
}

var difficultyCaps = map[models.Difficulty]classCap{
	models.DifficultyVeryEasy: {WindowDay, 5},
	models.DifficultyEasy:     {WindowDay, 5},
	models.DifficultyHard:     {WindowDay, 2},
	models.DifficultyExtreme:  {WindowWeek, 1},
}

var importanceCaps = map[models.Importance]classCap{
	models.ImportanceNormal:        {WindowDay, 5},
	models.ImportanceImportant:     {WindowDay, 5},
	models.ImportanceVeryImportant: {WindowDay, 2},
	models.ImportanceSpecial:       {WindowMonth, 1},
}

// Check evaluates both quotas for the task being completed at now. XP is
// eligible only when neither the difficulty nor the importance cap is already
// full of earlier completions.
func (l *Ledger) Check(ctx context.Context, task *models.Task, now time.Time) (Result, error) {
	dCap := difficultyCaps[task.Difficulty]
	from, to := l.WindowBounds(dCap.window, now)
	dCount, err := l.counter.CountCompletedByDifficulty(ctx, task.OwnerID, task.Difficulty, from, to, task.ID)
	if err != nil {
		return Result{}, fmt.Errorf("count completions by difficulty: %w", err)
	}

	iCap := importanceCaps[task.Importance]
	from, to = l.WindowBounds(iCap.window, now)
	iCount, err := l.counter.CountCompletedByImportance(ctx, task.OwnerID, task.Importance, from, to, task.ID)
	if err != nil {
		return Result{}, fmt.Errorf("count completions by importance: %w", err)
	}

	res := Result{
		DifficultyExceeded: dCount >= dCap.limit,
		ImportanceExceeded: iCount >= iCap.limit,
	}
	res.XPEligible = !res.DifficultyExceeded && !res.ImportanceExceeded
	return res, nil
}

// WindowBounds returns the calendar-aligned [from, to) span containing now:
// local midnight to midnight for a day, Monday start for a week, first of the
// month for a month.
func (l *Ledger) WindowBounds(w Window, now time.Time) (time.Time, time.Time) {
	now = now.In(l.location)
	switch w {
	case WindowWeek:
		daysSinceMonday := (int(now.Weekday()) + 6) % 7
		start := time.Date(now.Year(), now.Month(), now.Day()-daysSinceMonday, 0, 0, 0, 0, l.location)
		return start, start.AddDate(0, 0, 7)
	case WindowMonth:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, l.location)
		return start, start.AddDate(0, 1, 0)
	default:
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, l.location)
		return start, start.AddDate(0, 0, 1)
	}
}
