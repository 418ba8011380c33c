package tasks

import (
	"errors"
	"time"

	"github.com/herotask/task-engine/herotask/database/models"
)

// GracePeriod is the window after a due time during which an overdue task can
// still be completed before it counts as failed.
const GracePeriod = 3 * 24 * time.Hour

var (
	// ErrNotEligible is returned when a transition guard rejects the
	// operation, e.g. completing a task whose effective status is not active.
	ErrNotEligible = errors.New("task not eligible for this transition")

	// ErrInvalidOperation is returned for operations that never apply to the
	// task, e.g. pausing a non-repeating task.
	ErrInvalidOperation = errors.New("operation not valid for this task")
)

// EffectiveStatus projects a task's logical status from its persisted status,
// due time and the current time. It never writes: a task persisted as active
// but overdue past the grace period reads as failed here until the sweep
// catches up.
func EffectiveStatus(task *models.Task, now time.Time) models.TaskStatus {
	if task.Status != models.TaskStatusActive {
		return task.Status
	}
	if task.DueAt == nil {
		return models.TaskStatusActive
	}
	if now.After(task.DueAt.Add(GracePeriod)) {
		return models.TaskStatusFailed
	}
	return models.TaskStatusActive
}

// CanComplete reports whether the task can transition to completed at now.
func CanComplete(task *models.Task, now time.Time) bool {
	return EffectiveStatus(task, now) == models.TaskStatusActive
}

// CanBeModified reports whether edits to the task are allowed. Terminal and
// logically expired tasks are immutable.
func CanBeModified(task *models.Task, now time.Time) bool {
	switch EffectiveStatus(task, now) {
	case models.TaskStatusActive, models.TaskStatusPaused:
		return true
	}
	return false
}

// CanBeDeleted reports whether the task may be physically removed. Failed and
// canceled tasks are kept for history and quota accounting.
func CanBeDeleted(task *models.Task, now time.Time) bool {
	switch EffectiveStatus(task, now) {
	case models.TaskStatusFailed, models.TaskStatusCanceled:
		return false
	}
	return true
}

// Complete transitions active -> completed. The guard consults the effective
// status, so an overdue-past-grace task is rejected even while still
// persisted as active.
func Complete(task *models.Task, now time.Time) error {
	if !CanComplete(task, now) {
		return ErrNotEligible
	}
	task.Status = models.TaskStatusCompleted
	task.CompletedAt = &now
	task.UpdatedAt = now
	return nil
}

// Fail transitions active -> failed, either explicitly or by the overdue
// sweep. A task already terminal is rejected.
func Fail(task *models.Task, now time.Time) error {
	if task.Status != models.TaskStatusActive {
		return ErrNotEligible
	}
	task.Status = models.TaskStatusFailed
	task.UpdatedAt = now
	return nil
}

// Cancel transitions active or paused -> canceled.
func Cancel(task *models.Task, now time.Time) error {
	switch task.Status {
	case models.TaskStatusActive, models.TaskStatusPaused:
	default:
		return ErrNotEligible
	}
	if task.Status == models.TaskStatusActive && EffectiveStatus(task, now) != models.TaskStatusActive {
		return ErrNotEligible
	}
	task.Status = models.TaskStatusCanceled
	task.UpdatedAt = now
	return nil
}

// Pause transitions active -> paused. Only repeating tasks can pause.
func Pause(task *models.Task, now time.Time) error {
	if !task.IsRepeating() {
		return ErrInvalidOperation
	}
	if EffectiveStatus(task, now) != models.TaskStatusActive {
		return ErrNotEligible
	}
	task.Status = models.TaskStatusPaused
	task.UpdatedAt = now
	return nil
}

// Resume transitions paused -> active.
func Resume(task *models.Task, now time.Time) error {
	if task.Status != models.TaskStatusPaused {
		return ErrNotEligible
	}
	task.Status = models.TaskStatusActive
	task.UpdatedAt = now
	return nil
}

// OverdueSince returns the instant at which a still-active task with the
// given due time flips to effectively failed.
func OverdueSince(dueAt time.Time) time.Time {
	return dueAt.Add(GracePeriod)
}
