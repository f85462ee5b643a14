package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reviewhub/reviewhub/internal/ai"
	"github.com/reviewhub/reviewhub/internal/config"
	"github.com/reviewhub/reviewhub/internal/jobs"
	"github.com/reviewhub/reviewhub/internal/notify"
	"github.com/reviewhub/reviewhub/internal/pipeline"
	"github.com/reviewhub/reviewhub/internal/store"
	"github.com/reviewhub/reviewhub/pkg/log"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the reviewhub analysis worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			zap.S().Fatalw("reading configuration", "error", err)
		}

		logger := log.InitLog(log.Level(cfg.Service.LogLevel))
		defer func() { _ = logger.Sync() }()
		undo := zap.ReplaceGlobals(logger)
		defer undo()

		zap.S().Info("Starting analysis worker")
		defer zap.S().Info("Analysis worker stopped")

		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Fatalw("initializing data store", "error", err)
		}

		s := store.NewStore(db)
		defer s.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.Database,
		})

		publisher := notify.NewPublisher(
			notify.NewRedisWriter(redisClient),
			notify.WithChannel(cfg.Redis.Channel),
		)
		defer func() {
			if err := publisher.Close(); err != nil {
				zap.S().Warnw("failed to close publisher", "error", err)
			}
		}()

		orchestrator := pipeline.NewOrchestrator(s, publisher, ai.NewClient(cfg))

		dsn := fmt.Sprintf("host=%s user=%s password=%s port=%s dbname=%s",
			cfg.Database.Hostname,
			cfg.Database.User,
			cfg.Database.Password,
			cfg.Database.Port,
			cfg.Database.Name,
		)
		poolCfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			zap.S().Fatalw("parsing pgx config", "error", err)
		}
		// Job processing plus River's LISTEN connections.
		poolCfg.MaxConns = 20
		poolCfg.MinConns = 5
		poolCfg.MaxConnLifetime = time.Hour
		poolCfg.MaxConnIdleTime = 30 * time.Minute

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			zap.S().Fatalw("creating pgx pool", "error", err)
		}
		defer pool.Close()

		client, err := jobs.NewClient(ctx, pool, orchestrator)
		if err != nil {
			zap.S().Fatalw("creating river client", "error", err)
		}

		if err := client.Start(ctx); err != nil {
			zap.S().Fatalw("starting river client", "error", err)
		}

		<-ctx.Done()

		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()
		if err := client.Stop(stopCtx); err != nil {
			zap.S().Warnw("failed to stop river client", "error", err)
		}

		return nil
	},
}
