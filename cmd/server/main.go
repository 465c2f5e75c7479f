// Package main - точка входа HTTP API LearnLoop Hub.
//
// Server обслуживает весь путь вознаграждений: запись прогресса,
// начисление очков, проверку бейджей, продвижение челленджей и
// выдачу статистики. Воркер (cmd/worker) занимается фоновыми задачами.
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
	"github.com/learnloop/learnloop-hub/internal/application/command"
	"github.com/learnloop/learnloop-hub/internal/application/eventhandler"
	"github.com/learnloop/learnloop-hub/internal/application/query"
	"github.com/learnloop/learnloop-hub/internal/application/saga"
	"github.com/learnloop/learnloop-hub/internal/infrastructure/messaging"
	"github.com/learnloop/learnloop-hub/internal/infrastructure/persistence/postgres"
	rediscache "github.com/learnloop/learnloop-hub/internal/infrastructure/persistence/redis"
	"github.com/learnloop/learnloop-hub/internal/infrastructure/service"
	httpapi "github.com/learnloop/learnloop-hub/internal/interface/http"
	"github.com/learnloop/learnloop-hub/pkg/logger"
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
	// .env существует только в разработке, отсутствие файла не ошибка.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	appLog, slogger := setupLoggers(cfg)
	appLog.Info("starting LearnLoop Hub server",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.Bool("debug", cfg.App.Debug),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. POSTGRESQL
	// ─────────────────────────────────────────────────────────────────────────
	dbConn, err := postgres.NewConnection(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		appLog.Info("closing database connection...")
		dbConn.Close()
	}()

	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	appLog.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		cache      *rediscache.Cache
		statsCache query.StatsCache
	)
	if !cfg.Redis.Disabled {
		cache, err = connectRedis(cfg)
		if err != nil {
			// Кеш ускоряет чтение статистики, но не обязателен.
			appLog.Warn("failed to connect to Redis, stats caching disabled",
				logger.Err(err))
		} else {
			defer cache.Close()
			statsCache = rediscache.NewStatsCache(cache, cfg.Redis.StatsTTL)
			appLog.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. РЕПОЗИТОРИИ
	// ─────────────────────────────────────────────────────────────────────────
	userRepo := postgres.NewUserRepository(dbConn)
	contentRepo := postgres.NewContentRepository(dbConn)
	progressRepo := postgres.NewProgressRepository(dbConn)
	badgeRepo := postgres.NewBadgeRepository(dbConn)
	challengeRepo := postgres.NewChallengeRepository(dbConn)
	notificationRepo := postgres.NewNotificationRepository(dbConn)
	quizRepo := postgres.NewQuizRepository(dbConn)

	idGenerator := service.NewUUIDGenerator()

	// ─────────────────────────────────────────────────────────────────────────
	// 6. EVENT BUS И ОБРАБОТЧИКИ УВЕДОМЛЕНИЙ
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = slogger
	eventBus := messaging.NewInMemoryEventBus(busConfig)
	defer func() {
		appLog.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	dispatcherConfig := messaging.DefaultDispatcherConfig()
	dispatcherConfig.Logger = slogger
	dispatcher := messaging.NewDispatcher(eventBus, dispatcherConfig)

	notifyGate := func(feature string) func(userID string) bool {
		return func(userID string) bool {
			return cfg.Features.IsEnabled(feature, &config.FeatureContext{UserID: userID})
		}
	}

	badgeGrantedConfig := eventhandler.DefaultBadgeGrantedConfig()
	badgeGrantedConfig.Gate = notifyGate(config.FeatureNotifyBadgeGranted)

	levelUpConfig := eventhandler.DefaultLevelUpConfig()
	levelUpConfig.Gate = notifyGate(config.FeatureNotifyLevelUp)

	challengeDoneConfig := eventhandler.ChallengeCompletedConfig{
		Gate: notifyGate(config.FeatureNotifyChallengeDone),
	}

	streakConfig := eventhandler.DefaultStreakMilestoneConfig()
	streakConfig.Gate = notifyGate(config.FeatureNotifyStreakMilestone)

	contentDoneConfig := eventhandler.DefaultContentCompletedConfig()
	contentDoneConfig.Gate = notifyGate(config.FeatureNotifyContentDone)

	if err := dispatcher.RegisterAll(
		eventhandler.NewOnContentCompletedHandler(notificationRepo, idGenerator, slogger, contentDoneConfig),
		eventhandler.NewOnBadgeGrantedHandler(notificationRepo, idGenerator, slogger, badgeGrantedConfig),
		eventhandler.NewOnLevelUpHandler(notificationRepo, idGenerator, slogger, levelUpConfig),
		eventhandler.NewOnChallengeCompletedHandler(notificationRepo, challengeRepo, idGenerator, slogger, challengeDoneConfig),
		eventhandler.NewOnStreakUpdatedHandler(notificationRepo, idGenerator, slogger, streakConfig),
	); err != nil {
		return fmt.Errorf("failed to register event handlers: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. APPLICATION LAYER (CQRS)
	// ─────────────────────────────────────────────────────────────────────────
	rewardFlow := saga.NewRewardFlowSaga(
		userRepo, progressRepo, badgeRepo, challengeRepo, eventBus, appLog,
		saga.RewardFlowConfig{
			EnableBadges:     cfg.Features.IsEnabled(config.FeatureRewardBadges, nil),
			EnableChallenges: cfg.Features.IsEnabled(config.FeatureRewardChallenges, nil),
			EnableStreaks:    cfg.Features.IsEnabled(config.FeatureRewardStreaks, nil),
		},
	)

	completeContent := command.NewCompleteContentHandler(
		userRepo, contentRepo, progressRepo, rewardFlow, eventBus, appLog)
	acceptChallenge := command.NewAcceptChallengeHandler(challengeRepo, idGenerator, appLog)

	quizBonus := cfg.Reward.QuizBonusPoints
	if !cfg.Features.IsEnabled(config.FeatureRewardQuizBonus, nil) {
		quizBonus = 0
	}
	submitQuiz := command.NewSubmitQuizHandler(
		quizRepo, userRepo, completeContent, eventBus, appLog, quizBonus)

	getUserStats := query.NewGetUserStatsHandler(
		userRepo, progressRepo, badgeRepo, statsCache, appLog)
	listBadges := query.NewListBadgesHandler(badgeRepo)
	listChallenges := query.NewListChallengesHandler(challengeRepo)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	serverConfig := httpapi.DefaultConfig()
	serverConfig.Host = cfg.HTTP.Host
	serverConfig.Port = cfg.HTTP.Port
	serverConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	serverConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	serverConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	serverConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins
	serverConfig.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	serverConfig.APITokenHashes = cfg.HTTP.APITokenHashes

	var cacheChecker httpapi.HealthChecker
	if cache != nil {
		cacheChecker = cache
	}

	server := httpapi.NewServer(serverConfig, httpapi.Dependencies{
		CompleteContentHandler: completeContent,
		AcceptChallengeHandler: acceptChallenge,
		SubmitQuizHandler:      submitQuiz,
		GetUserStatsHandler:    getUserStats,
		ListBadgesHandler:      listBadges,
		ListChallengesHandler:  listChallenges,
		NotificationRepo:       notificationRepo,
		DatabaseChecker:        dbConn,
		CacheChecker:           cacheChecker,
		Logger:                 appLog,
	})

	errCh := server.StartAsync()
	appLog.Info("LearnLoop Hub server is running",
		logger.String("addr", serverConfig.Address()))

	// ─────────────────────────────────────────────────────────────────────────
	// 9. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		appLog.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	appLog.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLoggers настраивает оба логгера: структурированный логгер приложения
// и slog для инфраструктурных компонентов (event bus, обработчики).
func setupLoggers(cfg *config.Config) (*logger.Logger, *slog.Logger) {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	appLog := logger.New(opts)

	slogOpts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.App.Debug {
		slogOpts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, slogOpts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, slogOpts)
	}

	slogger := slog.New(handler)
	slog.SetDefault(slogger)

	return appLog, slogger
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
