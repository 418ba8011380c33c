package herotask

import (
	"context"
	"fmt"

	"github.com/herotask/task-engine/herotask/battle"
	"github.com/herotask/task-engine/herotask/database"
	"github.com/herotask/task-engine/herotask/database/repositories"
	"github.com/herotask/task-engine/herotask/mission"
	"github.com/herotask/task-engine/herotask/progression"
	"github.com/herotask/task-engine/herotask/quota"
	"github.com/herotask/task-engine/herotask/services"
	"go.mongodb.org/mongo-driver/mongo"
)

// App wires the engine together: repositories over Postgres, the mission
// store over Mongo and the services on top.
type App struct {
	Cfg     Config
	Version string
	Commit  string

	DB      *database.DB
	MongoDB *mongo.Database

	TaskRepository     repositories.TaskRepository
	ProgressRepository repositories.ProgressRepository
	AllianceRepository repositories.AllianceRepository
	BossRepository     repositories.BossRepository

	Calculator    *progression.Calculator
	MissionLedger *mission.Ledger

	TaskService     *services.TaskService
	BattleService   *services.BattleService
	AllianceService *services.AllianceService
	SearchService   *services.SearchService
	Sweeper         *services.Sweeper
}

func New(cfg Config, version string, commit string) *App {
	return &App{
		Cfg:     cfg,
		Version: version,
		Commit:  commit,
	}
}

// Setup builds the whole service graph. It assumes DB and MongoDB are
// already connected.
func (a *App) Setup(ctx context.Context) error {
	bunDB := a.DB.BunDB()
	a.TaskRepository = repositories.NewTaskRepository(bunDB)
	a.ProgressRepository = repositories.NewProgressRepository(bunDB)
	a.AllianceRepository = repositories.NewAllianceRepository(bunDB)
	a.BossRepository = repositories.NewBossRepository(bunDB)

	a.Calculator = progression.NewCalculator(progression.NewDefaultConfig())

	missionStore := mission.NewMongoStore(a.MongoDB)
	a.MissionLedger = mission.NewLedger(missionStore, a.ProgressRepository, a.Calculator)

	resolver, err := services.NewAllianceResolver(a.AllianceRepository)
	if err != nil {
		return fmt.Errorf("failed to set up alliance resolver: %w", err)
	}

	quotaLedger := quota.NewLedger(a.TaskRepository, nil)
	a.TaskService = services.NewTaskService(
		a.TaskRepository, a.ProgressRepository, quotaLedger,
		a.Calculator, a.MissionLedger, resolver)

	battleResolver := battle.NewResolver(
		a.TaskRepository, a.ProgressRepository, a.BossRepository, a.Calculator)
	a.BattleService = services.NewBattleService(battleResolver, a.TaskService)

	a.AllianceService = services.NewAllianceService(
		a.AllianceRepository, resolver, a.MissionLedger, missionStore)
	a.SearchService = services.NewSearchService(a.TaskRepository)
	a.Sweeper = services.NewSweeper(
		a.TaskRepository, a.TaskService, missionStore, a.MissionLedger)

	return nil
}

// Close releases the Postgres pool. The Mongo client is owned by the caller
// that connected it.
func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}
