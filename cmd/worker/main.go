// Package main - точка входа фоновых процессов (Worker) LearnLoop Hub.
//
// Worker отвечает за периодические задачи:
// - Перевод просроченных челленджей в статус expired
// - Пересборка кешированного лидерборда из таблицы пользователей
// - Очистка старых прочитанных уведомлений
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/learnloop/learnloop-hub/config"
	"github.com/learnloop/learnloop-hub/internal/infrastructure/persistence/postgres"
	rediscache "github.com/learnloop/learnloop-hub/internal/infrastructure/persistence/redis"
	"github.com/learnloop/learnloop-hub/internal/infrastructure/scheduler"
	"github.com/learnloop/learnloop-hub/internal/infrastructure/scheduler/jobs"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ
	// ─────────────────────────────────────────────────────────────────────────
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	log.Info("starting LearnLoop Hub worker",
		"env", cfg.App.Environment,
		"debug", cfg.App.Debug,
	)

	if !cfg.Scheduler.Enabled {
		log.Warn("scheduler is disabled, worker has nothing to do")
		return nil
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. POSTGRESQL
	// ─────────────────────────────────────────────────────────────────────────
	dbConn, err := postgres.NewConnection(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	// Worker тоже должен видеть актуальную схему.
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	userRepo := postgres.NewUserRepository(dbConn)
	challengeRepo := postgres.NewChallengeRepository(dbConn)
	notificationRepo := postgres.NewNotificationRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS (нужен только для лидерборда)
	// ─────────────────────────────────────────────────────────────────────────
	var leaderboardCache *rediscache.LeaderboardCache

	leaderboardEnabled := cfg.Features.IsEnabled(config.FeatureLeaderboardCache, nil)
	if leaderboardEnabled && !cfg.Redis.Disabled {
		cache, err := connectRedis(cfg)
		if err != nil {
			log.Warn("failed to connect to Redis, leaderboard rebuild disabled", "error", err)
		} else {
			defer cache.Close()
			leaderboardCache = rediscache.NewLeaderboardCache(cache, cfg.Redis.LeaderboardTTL)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. SCHEDULER И ЗАДАЧИ
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:     log,
		JobTimeout: cfg.Scheduler.JobTimeout,
	})

	expireJob := jobs.NewExpireChallengesJob(challengeRepo, log)
	if err := sched.Register(expireJob, scheduler.NewIntervalSchedule(cfg.Scheduler.ExpireChallengesInterval)); err != nil {
		return fmt.Errorf("failed to register %s: %w", expireJob.Name(), err)
	}

	cleanupJob := jobs.NewCleanupNotificationsJob(notificationRepo, cfg.Scheduler.NotificationRetention, log)
	if err := sched.Register(cleanupJob, scheduler.NewIntervalSchedule(cfg.Scheduler.CleanupInterval)); err != nil {
		return fmt.Errorf("failed to register %s: %w", cleanupJob.Name(), err)
	}

	if leaderboardCache != nil {
		rebuildJob := jobs.NewRebuildLeaderboardJob(
			userRepo, leaderboardCache, log, jobs.DefaultRebuildLeaderboardConfig())
		if err := sched.Register(rebuildJob, scheduler.NewIntervalSchedule(cfg.Scheduler.RebuildLeaderboardInterval)); err != nil {
			return fmt.Errorf("failed to register %s: %w", rebuildJob.Name(), err)
		}
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	log.Info("LearnLoop Hub worker is running")

	// ─────────────────────────────────────────────────────────────────────────
	// 5. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
	}

	if err := sched.Stop(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}

// connectRedis собирает конфигурацию кеша из URL либо отдельных полей.
func connectRedis(cfg *config.Config) (*rediscache.Cache, error) {
	if cfg.Redis.URL != "" {
		return rediscache.NewCacheFromURL(cfg.Redis.URL)
	}

	redisCfg := rediscache.DefaultConfig()
	redisCfg.Host = cfg.Redis.Host
	redisCfg.Port = cfg.Redis.Port
	redisCfg.Password = cfg.Redis.Password
	redisCfg.DB = cfg.Redis.DB
	if cfg.Redis.PoolSize > 0 {
		redisCfg.PoolSize = cfg.Redis.PoolSize
	}
	if cfg.Redis.MinIdleConns > 0 {
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
	}
	return rediscache.NewCache(redisCfg)
}
