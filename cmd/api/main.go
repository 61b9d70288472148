package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/arena-api/internal/config"
	"github.com/noah-isme/arena-api/internal/database"
	"github.com/noah-isme/arena-api/internal/events"
	"github.com/noah-isme/arena-api/internal/handler"
	"github.com/noah-isme/arena-api/internal/middleware"
	"github.com/noah-isme/arena-api/internal/models"
	"github.com/noah-isme/arena-api/internal/observability"
	"github.com/noah-isme/arena-api/internal/repository"
	"github.com/noah-isme/arena-api/internal/router"
	"github.com/noah-isme/arena-api/internal/scheduler"
	"github.com/noah-isme/arena-api/internal/service"
	"github.com/noah-isme/arena-api/pkg/judge"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	if cfg.AppEnv == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	observability.RegisterMetrics()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	if err := db.AutoMigrate(
		&models.Challenge{},
		&models.MatchSetting{},
		&models.ChallengeMatchSetting{},
		&models.ChallengeParticipant{},
		&models.Match{},
		&models.Submission{},
		&models.PeerReviewAssignment{},
		&models.PeerReviewVote{},
		&models.SubmissionScoreBreakdown{},
	); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
	}

	executor, err := judge.NewDockerExecutor(judge.ExecutorConfig{
		Host:          cfg.DockerHost,
		Timeout:       cfg.ExecutionTimeout,
		MemoryLimitMB: int64(cfg.CodeRunMemoryMB),
		CPUShares:     int64(cfg.CodeRunCPUShares),
		Logger:        logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create docker executor")
	}

	judgeService := judge.NewRunner(executor, logger, judge.RunnerConfig{
		ExecutionTimeout: cfg.ExecutionTimeout,
		MemoryLimitMB:    cfg.CodeRunMemoryMB,
		CPUShares:        cfg.CodeRunCPUShares,
	})

	emitter := events.NewEmitter(natsConn, redisClient, cfg.EventChannelBase, logger)
	timers := scheduler.New(logger)
	validate := validator.New()

	challengeRepo := repository.NewChallengeRepository(db)
	participantRepo := repository.NewParticipantRepository(db)
	settingRepo := repository.NewMatchSettingRepository(db)
	matchRepo := repository.NewMatchRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	peerReviewRepo := repository.NewPeerReviewRepository(db)
	scoreRepo := repository.NewScoreRepository(db)

	finalizer := service.NewFinalizationService(challengeRepo, matchRepo, submissionRepo, judgeService, emitter, redisClient, logger, cfg.AutosubmitGrace, cfg.StatsCacheTTL)
	scoring := service.NewScoringService(challengeRepo, matchRepo, peerReviewRepo, scoreRepo, judgeService, emitter, logger)
	lifecycle := service.NewLifecycleService(challengeRepo, participantRepo, settingRepo, matchRepo, submissionRepo, peerReviewRepo, finalizer, scoring, emitter, timers, logger)
	challenges := service.NewChallengeService(challengeRepo, participantRepo, settingRepo, emitter, logger)
	submissions := service.NewSubmissionService(challengeRepo, participantRepo, matchRepo, submissionRepo, judgeService, finalizer, emitter, logger)
	peerReviews := service.NewPeerReviewService(challengeRepo, participantRepo, peerReviewRepo, logger)

	if err := lifecycle.RestoreTimers(context.Background()); err != nil {
		logger.Error().Err(err).Msg("failed to restore phase timers")
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ErrorHandler: errorHandler,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})

	router.Register(app, router.Dependencies{
		JWTSecret:   cfg.JWTSecret,
		Health:      handler.NewHealthHandler(cfg.AppName, cfg.AppEnv),
		Challenges:  handler.NewChallengeHandler(challenges, validate),
		Lifecycle:   handler.NewLifecycleHandler(lifecycle, finalizer, scoring, validate),
		Submissions: handler.NewSubmissionHandler(submissions, validate),
		PeerReviews: handler.NewPeerReviewHandler(peerReviews, validate),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("http server stopped")
		}
	}()
	logger.Info().Str("address", cfg.HTTPAddress()).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	timers.Stop()

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
	}

	if natsConn != nil {
		natsConn.Drain()
	}
	if redisClient != nil {
		redisClient.Close()
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal server error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}
