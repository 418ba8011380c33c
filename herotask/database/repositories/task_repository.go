package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/herotask/task-engine/herotask/database/models"
	"github.com/uptrace/bun"
)

type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id int64) (*models.Task, error)
	GetByOwner(ctx context.Context, ownerID string) ([]*models.Task, error)
	Update(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, id int64) error

	// TransitionStatus persists a status change guarded by the expected
	// current status, so a concurrent transition cannot be overwritten.
	TransitionStatus(ctx context.Context, id int64, from, to models.TaskStatus, completedAt *time.Time) error

	// Quota window counts (exclude the task currently being completed)
	CountCompletedByDifficulty(ctx context.Context, ownerID string, difficulty models.Difficulty, from, to time.Time, excludeTaskID int64) (int, error)
	CountCompletedByImportance(ctx context.Context, ownerID string, importance models.Importance, from, to time.Time, excludeTaskID int64) (int, error)

	// Battle success rate inputs: tasks that are not paused/canceled, and
	// how many of those are completed.
	CountValidAndCompleted(ctx context.Context, ownerID string) (valid int, completed int, err error)

	// SweepOverdue persists failed for active tasks whose due time plus
	// grace period lies before the cutoff, returning the affected owners.
	SweepOverdue(ctx context.Context, cutoff time.Time) ([]string, error)
}

type taskRepository struct {
	db *bun.DB
}

func NewTaskRepository(db *bun.DB) TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) Create(ctx context.Context, task *models.Task) error {
	task.CreatedAt = time.Now()
	task.UpdatedAt = time.Now()
	if task.Status == "" {
		task.Status = models.TaskStatusActive
	}
	_, err := r.db.NewInsert().Model(task).Exec(ctx)
	return err
}

func (r *taskRepository) GetByID(ctx context.Context, id int64) (*models.Task, error) {
	task := new(models.Task)
	err := r.db.NewSelect().
		Model(task).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
		}
		return nil, err
	}

	return task, nil
}

func (r *taskRepository) GetByOwner(ctx context.Context, ownerID string) ([]*models.Task, error) {
	var ts []*models.Task
	err := r.db.NewSelect().
		Model(&ts).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Scan(ctx)

	return ts, err
}

func (r *taskRepository) Update(ctx context.Context, task *models.Task) error {
	task.UpdatedAt = time.Now()
	_, err := r.db.NewUpdate().
		Model(task).
		WherePK().
		Exec(ctx)
	return err
}

func (r *taskRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.NewDelete().
		Model((*models.Task)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return nil
}

func (r *taskRepository) TransitionStatus(ctx context.Context, id int64, from, to models.TaskStatus, completedAt *time.Time) error {
	q := r.db.NewUpdate().
		Model((*models.Task)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("status = ?", from)
	if completedAt != nil {
		q = q.Set("completed_at = ?", *completedAt)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		slog.Warn("Task transition lost to concurrent writer",
			slog.String("type", "db"),
			slog.Int64("task_id", id),
			slog.String("from", string(from)),
			slog.String("to", string(to)))
		return fmt.Errorf("task %d %s->%s: %w", id, from, to, ErrConflict)
	}
	return nil
}

func (r *taskRepository) CountCompletedByDifficulty(ctx context.Context, ownerID string, difficulty models.Difficulty, from, to time.Time, excludeTaskID int64) (int, error) {
	return r.db.NewSelect().
		Model((*models.Task)(nil)).
		Where("owner_id = ?", ownerID).
		Where("status = ?", models.TaskStatusCompleted).
		Where("difficulty = ?", difficulty).
		Where("completed_at >= ? AND completed_at < ?", from, to).
		Where("id != ?", excludeTaskID).
		Count(ctx)
}

func (r *taskRepository) CountCompletedByImportance(ctx context.Context, ownerID string, importance models.Importance, from, to time.Time, excludeTaskID int64) (int, error) {
	return r.db.NewSelect().
		Model((*models.Task)(nil)).
		Where("owner_id = ?", ownerID).
		Where("status = ?", models.TaskStatusCompleted).
		Where("importance = ?", importance).
		Where("completed_at >= ? AND completed_at < ?", from, to).
		Where("id != ?", excludeTaskID).
		Count(ctx)
}

func (r *taskRepository) CountValidAndCompleted(ctx context.Context, ownerID string) (int, int, error) {
	valid, err := r.db.NewSelect().
		Model((*models.Task)(nil)).
		Where("owner_id = ?", ownerID).
		Where("status NOT IN (?)", bun.In([]models.TaskStatus{models.TaskStatusPaused, models.TaskStatusCanceled})).
		Count(ctx)
	if err != nil {
		return 0, 0, err
	}

	completed, err := r.db.NewSelect().
		Model((*models.Task)(nil)).
		Where("owner_id = ?", ownerID).
		Where("status = ?", models.TaskStatusCompleted).
		Count(ctx)
	if err != nil {
		return 0, 0, err
	}

	return valid, completed, nil
}

func (r *taskRepository) SweepOverdue(ctx context.Context, cutoff time.Time) ([]string, error) {
	var owners []string
	err := r.db.NewUpdate().
		Model((*models.Task)(nil)).
		Set("status = ?", models.TaskStatusFailed).
		Set("updated_at = ?", time.Now()).
		Where("status = ?", models.TaskStatusActive).
		Where("due_at IS NOT NULL").
		Where("due_at < ?", cutoff).
		Returning("owner_id").
		Scan(ctx, &owners)
	if err != nil {
		return nil, fmt.Errorf("failed to sweep overdue tasks: %w", err)
	}

	if len(owners) > 0 {
		slog.Info("Swept overdue tasks",
			slog.String("type", "db"),
			slog.Int("count", len(owners)))
	}
	return owners, nil
}
