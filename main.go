package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/herotask/task-engine/herotask"
	"github.com/herotask/task-engine/herotask/database"
	"github.com/herotask/task-engine/herotask/logger"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	path := flag.String("config", "config.toml", "path to config")
	sweepOnStart := flag.Bool("sweep-on-start", false, "run an overdue sweep immediately after startup")
	flag.Parse()

	cfg, err := herotask.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}

	slog.SetDefault(slog.New(logger.NewHandler(cfg.Log.Level)))
	slog.Info("Starting HeroTask engine",
		slog.String("version", version),
		slog.String("commit", commit))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	dbStartTime := time.Now()
	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		slog.Error("Database connection failed",
			slog.Any("error", err),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}
	defer db.Close()

	if err := db.InitializeSchema(ctx); err != nil {
		slog.Error("Failed to initialize database schema", slog.Any("error", err))
		os.Exit(-1)
	}
	slog.Info("Database ready",
		slog.String("type", "db"),
		slog.String("database", cfg.DB.Database),
		slog.Duration("took", time.Since(dbStartTime)))

	mongoDB, err := database.ConnectMongo(ctx, cfg.Mongo)
	if err != nil {
		slog.Error("Mongo connection failed", slog.Any("error", err))
		os.Exit(-1)
	}
	defer func() {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer disconnectCancel()
		if err := mongoDB.Client().Disconnect(disconnectCtx); err != nil {
			slog.Error("Mongo disconnect failed", slog.Any("error", err))
		}
	}()

	app := herotask.New(*cfg, version, commit)
	app.DB = db
	app.MongoDB = mongoDB
	if err := app.Setup(ctx); err != nil {
		slog.Error("Failed to set up services", slog.Any("error", err))
		os.Exit(-1)
	}

	if *sweepOnStart {
		app.Sweeper.Run(ctx)
	}
	if err := app.Sweeper.Start(cfg.Sweep.Schedule); err != nil {
		slog.Error("Failed to start sweeper", slog.Any("error", err))
		os.Exit(-1)
	}
	defer app.Sweeper.Stop()

	slog.Info("HeroTask engine is now running. Press CTRL-C to exit.")
	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-s
	slog.Info("Shutting down")
}
