package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/herotask/task-engine/herotask/database/models"
	"github.com/herotask/task-engine/herotask/database/repositories"
	"github.com/herotask/task-engine/herotask/mission"
	"github.com/herotask/task-engine/herotask/progression"
	"github.com/herotask/task-engine/herotask/quota"
	"github.com/herotask/task-engine/herotask/tasks"
)

var (
	ErrNotOwner     = errors.New("task does not belong to this user")
	ErrInvalidInput = errors.New("invalid task input")
)

// MissionRecorder is the slice of the mission ledger the task pipeline feeds.
// Alliance mission damage is best-effort from the task side: the personal
// reward is already durable when these fire.
type MissionRecorder interface {
	RecordEvent(ctx context.Context, allianceID int64, memberID string, event mission.EventType, day time.Time) (mission.EventResult, error)
	RecordTaskFailure(ctx context.Context, allianceID int64, memberID string) error
}

// CreateTaskInput carries the caller-settable fields of a new task.
type CreateTaskInput struct {
	Title      string
	Difficulty models.Difficulty
	Importance models.Importance
	DueAt      *time.Time
	Repeat     *models.Repetition
}

// UpdateTaskInput holds edits to an existing task. Nil fields are unchanged.
type UpdateTaskInput struct {
	Title      *string
	Difficulty *models.Difficulty
	Importance *models.Importance
	DueAt      *time.Time
	ClearDueAt bool
}

// CompletionResult is everything a completion produced: the persisted task,
// the XP verdict, any level-ups and the streak after the completion.
type CompletionResult struct {
	Task              *models.Task
	XPEligible        bool
	XPEarned          int64
	LeveledUp         bool
	NewLevel          int
	PowerPointsGained int64
	Streak            int
	Mission           *mission.EventResult
}

// TaskService runs the task lifecycle and the progression pipeline hanging
// off it. Completion is the hot path: state machine guard, conditional
// status write, quota check, XP and level-ups, streak upkeep and the mission
// damage forward, in that order.
type TaskService struct {
	taskRepo     repositories.TaskRepository
	progressRepo repositories.ProgressRepository
	quota        *quota.Ledger
	calc         *progression.Calculator
	missions     MissionRecorder
	alliances    *AllianceResolver

	locks ownerLocks
	now   func() time.Time
}

func NewTaskService(
	taskRepo repositories.TaskRepository,
	progressRepo repositories.ProgressRepository,
	quotaLedger *quota.Ledger,
	calc *progression.Calculator,
	missions MissionRecorder,
	alliances *AllianceResolver,
) *TaskService {
	return &TaskService{
		taskRepo:     taskRepo,
		progressRepo: progressRepo,
		quota:        quotaLedger,
		calc:         calc,
		missions:     missions,
		alliances:    alliances,
		now:          time.Now,
	}
}

func (s *TaskService) CreateTask(ctx context.Context, ownerID string, input CreateTaskInput) (*models.Task, error) {
	if input.Title == "" {
		return nil, fmt.Errorf("title is required: %w", ErrInvalidInput)
	}
	if !validDifficulty(input.Difficulty) {
		return nil, fmt.Errorf("unknown difficulty %q: %w", input.Difficulty, ErrInvalidInput)
	}
	if !validImportance(input.Importance) {
		return nil, fmt.Errorf("unknown importance %q: %w", input.Importance, ErrInvalidInput)
	}
	if input.Repeat != nil && input.Repeat.Interval <= 0 {
		return nil, fmt.Errorf("repeat interval must be positive: %w", ErrInvalidInput)
	}

	task := &models.Task{
		ID:         int64(snowflake.New(s.now())),
		OwnerID:    ownerID,
		Title:      input.Title,
		Difficulty: input.Difficulty,
		Importance: input.Importance,
		Status:     models.TaskStatusActive,
		DueAt:      input.DueAt,
		Repeat:     input.Repeat,
	}
	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	slog.Info("Task created",
		slog.String("type", "task"),
		slog.Int64("task_id", task.ID),
		slog.String("owner_id", ownerID),
		slog.String("difficulty", string(task.Difficulty)),
		slog.String("importance", string(task.Importance)))
	return task, nil
}

// CompleteTask marks the task done and pays out. The status write is guarded
// on the active status, so exactly one of two racing completions earns the
// reward. Quota overflow is not an error: the task completes, it just earns
// no XP.
func (s *TaskService) CompleteTask(ctx context.Context, ownerID string, taskID int64) (*CompletionResult, error) {
	unlock := s.locks.Lock(ownerID)
	defer unlock()

	task, err := s.ownedTask(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	quotaRes, err := s.quota.Check(ctx, task, now)
	if err != nil {
		return nil, err
	}

	if err := tasks.Complete(task, now); err != nil {
		return nil, err
	}
	if err := s.taskRepo.TransitionStatus(ctx, task.ID, models.TaskStatusActive, models.TaskStatusCompleted, &now); err != nil {
		return nil, err
	}

	result := &CompletionResult{Task: task, XPEligible: quotaRes.XPEligible}
	if !quotaRes.XPEligible {
		slog.Info("Completion over quota, no XP",
			slog.String("type", "task"),
			slog.Int64("task_id", task.ID),
			slog.String("owner_id", ownerID),
			slog.Bool("difficulty_exceeded", quotaRes.DifficultyExceeded),
			slog.Bool("importance_exceeded", quotaRes.ImportanceExceeded))
	}
	if err := s.applyProgress(ctx, ownerID, task, now, result); err != nil {
		return nil, err
	}

	if err := s.scheduleNextOccurrence(ctx, task, now); err != nil {
		slog.Error("Failed to schedule next occurrence",
			slog.String("type", "task"),
			slog.Int64("task_id", task.ID),
			slog.Any("error", err))
	}

	s.forwardMissionEvent(ctx, ownerID, taskEvent(task.Difficulty), now, result)
	return result, nil
}

// applyProgress writes the completion's progression effects: XP and
// level-ups when the quota allowed them, the streak always.
func (s *TaskService) applyProgress(ctx context.Context, ownerID string, task *models.Task, now time.Time, result *CompletionResult) error {
	progress, err := s.progressRepo.GetOrCreate(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to load progress: %w", err)
	}

	if result.XPEligible {
		xp := s.calc.TaskXP(task.Difficulty, task.Importance, progress.Level)
		newLevel, rest, ppGained := s.calc.LevelUps(progress.Level, progress.XP+xp)

		result.XPEarned = xp
		result.LeveledUp = newLevel > progress.Level
		result.NewLevel = newLevel
		result.PowerPointsGained = ppGained

		progress.Level = newLevel
		progress.XP = rest
		progress.PowerPoints += ppGained
	}
	advanceStreak(&progress.Streaks, now)
	result.Streak = progress.Streaks.Current

	if err := s.progressRepo.Update(ctx, progress); err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}

	if result.LeveledUp {
		slog.Info("Level up",
			slog.String("type", "task"),
			slog.String("owner_id", ownerID),
			slog.Int("level", result.NewLevel),
			slog.Int64("power_points_gained", result.PowerPointsGained))
	}
	return nil
}

// advanceStreak counts at most one completion per calendar day. A completion
// the day after the last counted one extends the streak; any longer gap
// resets it to one.
func advanceStreak(st *models.Streaks, now time.Time) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	last := st.LastDayDone
	if last.Equal(today) {
		return
	}
	if last.Equal(today.AddDate(0, 0, -1)) {
		st.Current++
	} else {
		st.Current = 1
	}
	if st.Current > st.Longest {
		st.Longest = st.Current
	}
	st.LastDayDone = today
}

// scheduleNextOccurrence spawns the next instance of a repeating task after a
// completion. The completed row stays behind for history and quota counting.
func (s *TaskService) scheduleNextOccurrence(ctx context.Context, task *models.Task, now time.Time) error {
	if !task.IsRepeating() || task.DueAt == nil {
		return nil
	}

	next := nextDue(*task.DueAt, task.Repeat)
	if task.Repeat.End != nil && next.After(*task.Repeat.End) {
		return nil
	}

	clone := &models.Task{
		ID:         int64(snowflake.New(now)),
		OwnerID:    task.OwnerID,
		Title:      task.Title,
		Difficulty: task.Difficulty,
		Importance: task.Importance,
		Status:     models.TaskStatusActive,
		DueAt:      &next,
		Repeat:     task.Repeat,
	}
	return s.taskRepo.Create(ctx, clone)
}

func nextDue(due time.Time, rep *models.Repetition) time.Time {
	switch rep.Unit {
	case models.RepeatWeekly:
		return due.AddDate(0, 0, 7*rep.Interval)
	case models.RepeatMonthly:
		return due.AddDate(0, rep.Interval, 0)
	case models.RepeatYearly:
		return due.AddDate(rep.Interval, 0, 0)
	default:
		return due.AddDate(0, 0, rep.Interval)
	}
}

// FailTask explicitly fails an active task and reports the failure to the
// owner's alliance mission, clearing their no-failures bonus.
func (s *TaskService) FailTask(ctx context.Context, ownerID string, taskID int64) (*models.Task, error) {
	unlock := s.locks.Lock(ownerID)
	defer unlock()

	task, err := s.ownedTask(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := tasks.Fail(task, now); err != nil {
		return nil, err
	}
	if err := s.taskRepo.TransitionStatus(ctx, task.ID, models.TaskStatusActive, models.TaskStatusFailed, nil); err != nil {
		return nil, err
	}

	s.ReportTaskFailure(ctx, ownerID)
	return task, nil
}

// ReportTaskFailure forwards a task failure to the owner's alliance mission,
// if any. Errors are logged, not returned: the failure itself is already
// persisted.
func (s *TaskService) ReportTaskFailure(ctx context.Context, ownerID string) {
	allianceID, ok, err := s.alliances.Resolve(ctx, ownerID)
	if err != nil {
		slog.Error("Failed to resolve alliance",
			slog.String("type", "mission"),
			slog.String("owner_id", ownerID),
			slog.Any("error", err))
		return
	}
	if !ok {
		return
	}
	if err := s.missions.RecordTaskFailure(ctx, allianceID, ownerID); err != nil {
		slog.Error("Failed to record task failure on mission",
			slog.String("type", "mission"),
			slog.String("owner_id", ownerID),
			slog.Int64("alliance_id", allianceID),
			slog.Any("error", err))
	}
}

func (s *TaskService) CancelTask(ctx context.Context, ownerID string, taskID int64) (*models.Task, error) {
	unlock := s.locks.Lock(ownerID)
	defer unlock()

	task, err := s.ownedTask(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}

	from := task.Status
	if err := tasks.Cancel(task, s.now()); err != nil {
		return nil, err
	}
	if err := s.taskRepo.TransitionStatus(ctx, task.ID, from, models.TaskStatusCanceled, nil); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskService) PauseTask(ctx context.Context, ownerID string, taskID int64) (*models.Task, error) {
	unlock := s.locks.Lock(ownerID)
	defer unlock()

	task, err := s.ownedTask(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}

	if err := tasks.Pause(task, s.now()); err != nil {
		return nil, err
	}
	if err := s.taskRepo.TransitionStatus(ctx, task.ID, models.TaskStatusActive, models.TaskStatusPaused, nil); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskService) ResumeTask(ctx context.Context, ownerID string, taskID int64) (*models.Task, error) {
	unlock := s.locks.Lock(ownerID)
	defer unlock()

	task, err := s.ownedTask(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}

	if err := tasks.Resume(task, s.now()); err != nil {
		return nil, err
	}
	if err := s.taskRepo.TransitionStatus(ctx, task.ID, models.TaskStatusPaused, models.TaskStatusActive, nil); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskService) UpdateTask(ctx context.Context, ownerID string, taskID int64, input UpdateTaskInput) (*models.Task, error) {
	unlock := s.locks.Lock(ownerID)
	defer unlock()

	task, err := s.ownedTask(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !tasks.CanBeModified(task, now) {
		return nil, tasks.ErrNotEligible
	}

	if input.Title != nil {
		if *input.Title == "" {
			return nil, fmt.Errorf("title is required: %w", ErrInvalidInput)
		}
		task.Title = *input.Title
	}
	if input.Difficulty != nil {
		if !validDifficulty(*input.Difficulty) {
			return nil, fmt.Errorf("unknown difficulty %q: %w", *input.Difficulty, ErrInvalidInput)
		}
		task.Difficulty = *input.Difficulty
	}
	if input.Importance != nil {
		if !validImportance(*input.Importance) {
			return nil, fmt.Errorf("unknown importance %q: %w", *input.Importance, ErrInvalidInput)
		}
		task.Importance = *input.Importance
	}
	if input.ClearDueAt {
		task.DueAt = nil
	} else if input.DueAt != nil {
		task.DueAt = input.DueAt
	}

	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return task, nil
}

func (s *TaskService) DeleteTask(ctx context.Context, ownerID string, taskID int64) error {
	unlock := s.locks.Lock(ownerID)
	defer unlock()

	task, err := s.ownedTask(ctx, ownerID, taskID)
	if err != nil {
		return err
	}

	if !tasks.CanBeDeleted(task, s.now()) {
		return tasks.ErrNotEligible
	}
	return s.taskRepo.Delete(ctx, taskID)
}

// ListTasks returns the owner's tasks with their effective status projected,
// so an overdue-past-grace task reads as failed even before the sweep ran.
func (s *TaskService) ListTasks(ctx context.Context, ownerID string) ([]*models.Task, error) {
	ts, err := s.taskRepo.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	for _, t := range ts {
		t.Status = tasks.EffectiveStatus(t, now)
	}
	return ts, nil
}

// RecordStoreVisit feeds the daily store visit into the owner's alliance
// mission.
func (s *TaskService) RecordStoreVisit(ctx context.Context, ownerID string) *mission.EventResult {
	var res CompletionResult
	s.forwardMissionEvent(ctx, ownerID, mission.EventStoreVisit, s.now(), &res)
	return res.Mission
}

// RecordChatMessage feeds an alliance chat message into the mission, capped
// at one counting message per calendar day.
func (s *TaskService) RecordChatMessage(ctx context.Context, ownerID string, sentAt time.Time) *mission.EventResult {
	var res CompletionResult
	s.forwardMissionEvent(ctx, ownerID, mission.EventMessageSent, sentAt, &res)
	return res.Mission
}

func (s *TaskService) forwardMissionEvent(ctx context.Context, ownerID string, event mission.EventType, day time.Time, result *CompletionResult) {
	allianceID, ok, err := s.alliances.Resolve(ctx, ownerID)
	if err != nil {
		slog.Error("Failed to resolve alliance",
			slog.String("type", "mission"),
			slog.String("owner_id", ownerID),
			slog.Any("error", err))
		return
	}
	if !ok {
		return
	}

	eventRes, err := s.missions.RecordEvent(ctx, allianceID, ownerID, event, day)
	if err != nil {
		switch {
		case errors.Is(err, mission.ErrNoActiveMission),
			errors.Is(err, mission.ErrExpired),
			errors.Is(err, mission.ErrAlreadyCompleted),
			errors.Is(err, mission.ErrNotMember):
			// No mission to damage right now; nothing to do.
		default:
			slog.Error("Failed to record mission event",
				slog.String("type", "mission"),
				slog.String("owner_id", ownerID),
				slog.Int64("alliance_id", allianceID),
				slog.String("event", string(event)),
				slog.Any("error", err))
		}
		return
	}
	result.Mission = &eventRes
}

func (s *TaskService) ownedTask(ctx context.Context, ownerID string, taskID int64) (*models.Task, error) {
	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.OwnerID != ownerID {
		return nil, fmt.Errorf("task %d: %w", taskID, ErrNotOwner)
	}
	return task, nil
}

// taskEvent maps a completed task's difficulty onto the mission event scale.
func taskEvent(d models.Difficulty) mission.EventType {
	switch d {
	case models.DifficultyHard, models.DifficultyExtreme:
		return mission.EventHardTask
	default:
		return mission.EventEasyTask
	}
}

func validDifficulty(d models.Difficulty) bool {
	switch d {
	case models.DifficultyVeryEasy, models.DifficultyEasy, models.DifficultyHard, models.DifficultyExtreme:
		return true
	}
	return false
}

func validImportance(i models.Importance) bool {
	switch i {
	case models.ImportanceNormal, models.ImportanceImportant, models.ImportanceVeryImportant, models.ImportanceSpecial:
		return true
	}
	return false
}
