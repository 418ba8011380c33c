package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/herotask/task-engine/herotask/database/repositories"
	"github.com/herotask/task-engine/herotask/tasks"
	"github.com/robfig/cron/v3"
)

// ExpiredMissionLister enumerates missions whose window has closed while
// still marked active. MongoStore implements it.
type ExpiredMissionLister interface {
	ExpiredActive(ctx context.Context, now time.Time) ([]int64, error)
}

// MissionFinalizer runs the one-time completion pass; the ledger implements
// it.
type MissionFinalizer interface {
	Finalize(ctx context.Context, missionID int64) error
}

// Sweeper periodically fails tasks overdue past the grace period and
// finalizes missions whose two-week window ran out without the boss falling.
type Sweeper struct {
	taskRepo repositories.TaskRepository
	taskSvc  *TaskService
	expired  ExpiredMissionLister
	missions MissionFinalizer

	cron *cron.Cron
	now  func() time.Time
}

func NewSweeper(taskRepo repositories.TaskRepository, taskSvc *TaskService, expired ExpiredMissionLister, missions MissionFinalizer) *Sweeper {
	return &Sweeper{
		taskRepo: taskRepo,
		taskSvc:  taskSvc,
		expired:  expired,
		missions: missions,
		cron:     cron.New(),
		now:      time.Now,
	}
}

// Start schedules the sweep on the given cron spec and begins running it.
func (s *Sweeper) Start(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		s.Run(ctx)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	slog.Info("Sweeper started",
		slog.String("type", "sys"),
		slog.String("schedule", spec))
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Run executes one sweep pass immediately.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweepTasks(ctx)
	s.sweepMissions(ctx)
}

// sweepTasks fails every active task whose due time plus grace period has
// passed, then reports each affected owner's failure to their alliance
// mission. An owner with several swept tasks is reported once per task;
// the mission flag is idempotent so repeats are harmless.
func (s *Sweeper) sweepTasks(ctx context.Context) {
	cutoff := s.now().Add(-tasks.GracePeriod)
	owners, err := s.taskRepo.SweepOverdue(ctx, cutoff)
	if err != nil {
		slog.Error("Overdue sweep failed",
			slog.String("type", "sys"),
			slog.Any("error", err))
		return
	}

	for _, ownerID := range owners {
		s.taskSvc.ReportTaskFailure(ctx, ownerID)
	}
}

func (s *Sweeper) sweepMissions(ctx context.Context) {
	ids, err := s.expired.ExpiredActive(ctx, s.now())
	if err != nil {
		slog.Error("Expired mission scan failed",
			slog.String("type", "sys"),
			slog.Any("error", err))
		return
	}

	for _, id := range ids {
		if err := s.missions.Finalize(ctx, id); err != nil {
			slog.Error("Failed to finalize expired mission",
				slog.String("type", "sys"),
				slog.Int64("mission_id", id),
				slog.Any("error", err))
		}
	}
}
