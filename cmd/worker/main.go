// Package main is the entrypoint for the JobPilot cycle worker.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/kiranshivaraju/jobpilot/internal/agent"
	"github.com/kiranshivaraju/jobpilot/internal/ai"
	"github.com/kiranshivaraju/jobpilot/internal/cache"
	"github.com/kiranshivaraju/jobpilot/internal/config"
	"github.com/kiranshivaraju/jobpilot/internal/mail"
	"github.com/kiranshivaraju/jobpilot/internal/search"
	"github.com/kiranshivaraju/jobpilot/internal/store"
	"github.com/kiranshivaraju/jobpilot/internal/tasks"
	"github.com/kiranshivaraju/jobpilot/internal/worker"
)

const workerConcurrency = 4

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "cycle_interval", cfg.Cycle.Interval)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	aiProvider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI provider: %w", err)
	}
	slog.Info("AI provider initialized", "provider", aiProvider.Name())

	pgStore := store.NewPostgresStore(pool)
	searchClient := search.NewHTTPClient(cfg.Search.BaseURL, cfg.Search.APIKey, cfg.Search.Timeout)
	mailClient := mail.NewHTTPClient(cfg.Mail.BaseURL, cfg.Mail.Token, cfg.Mail.Timeout)

	controller := agent.NewController(
		agent.NewSearchService(pgStore, searchClient, aiProvider, cfg.AI.Timeout, cfg.Search.MaxResults),
		agent.NewDraftService(pgStore, aiProvider, cfg.AI.Timeout),
		agent.NewCommsService(pgStore, mailClient, aiProvider, cfg.AI.Timeout, cfg.Cycle.InboxWindow, cfg.Cycle.InboxMax),
		agent.NewSchedulingService(pgStore),
		agent.NewGovernanceService(pgStore, aiProvider, cfg.AI.Timeout),
		pgStore,
		redisCache,
		cfg.Cycle.ProposalEvery,
	)

	redisOpt, err := asynq.ParseRedisURI(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: workerConcurrency,
		Queues:      map[string]int{tasks.QueueCycles: 1},
	})
	mux := worker.NewMux(worker.NewCycleHandler(controller, pgStore))

	// Periodic fan-out: one cycle per active user every cycle interval.
	scheduler := asynq.NewScheduler(redisOpt, nil)
	spec := fmt.Sprintf("@every %s", cfg.Cycle.Interval)
	if _, err := scheduler.Register(spec, tasks.NewCycleRunAllTask()); err != nil {
		return fmt.Errorf("register periodic cycle: %w", err)
	}

	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("start worker server: %w", err)
	}
	if err := scheduler.Start(); err != nil {
		srv.Shutdown()
		return fmt.Errorf("start scheduler: %w", err)
	}
	slog.Info("worker started", "concurrency", workerConcurrency, "cycle_interval", cfg.Cycle.Interval)

	<-ctx.Done()
	slog.Info("shutdown signal received, draining tasks...")

	scheduler.Shutdown()
	srv.Shutdown()

	slog.Info("worker stopped gracefully")
	return nil
}
