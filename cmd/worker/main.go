package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/illusia-ry-organization/illusia-ry/internal/common"
	"github.com/illusia-ry-organization/illusia-ry/internal/config"
	"github.com/illusia-ry-organization/illusia-ry/internal/db"
	"github.com/illusia-ry-organization/illusia-ry/internal/notify"
	"github.com/illusia-ry-organization/illusia-ry/internal/obs"
	"github.com/illusia-ry-organization/illusia-ry/internal/tasks"
	"github.com/illusia-ry-organization/illusia-ry/internal/users"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(envOrDefault("OBS_LOG_FORMAT", "json"), envOrDefault("OBS_LOG_LEVEL", "info")).
		With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DatabaseURL, "illusia-worker")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	asynqOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	asynqClient := asynq.NewClient(asynqOpt)
	defer func() { _ = asynqClient.Close() }()

	usersRepo := &users.Repo{Pool: pool}
	dispatcher := &notify.Dispatcher{
		Store:        &notify.Store{Pool: pool},
		Recipients:   usersRepo,
		Email:        tasks.Enqueuer{Client: asynqClient, Queue: cfg.TaskQueueName},
		EmailEnabled: cfg.NotifyEmailEnabled,
		Log:          logger,
	}

	mux := tasks.Mux{
		// TODO: swap for an SMTP sender once the mail account is provisioned
		Email:  common.NopEmailSender{},
		Events: dispatcher,
		Log:    logger,
	}

	srv := asynq.NewServer(asynqOpt, asynq.Config{
		Concurrency: 10,
		Queues:      map[string]int{cfg.TaskQueueName: 1},
	})

	logger.Info().Str("queue", cfg.TaskQueueName).Msg("worker starting")
	if err := srv.Run(mux.Build()); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped with error")
	}
	logger.Info().Msg("worker shutdown complete")
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
