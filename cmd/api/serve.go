package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"project-workspace-api/internal/broadcast"
	"project-workspace-api/internal/client"
	"project-workspace-api/internal/config"
	"project-workspace-api/internal/database"
	"project-workspace-api/internal/identity"
	"project-workspace-api/internal/job"
	"project-workspace-api/internal/metrics"
	"project-workspace-api/internal/router"
)

type ServeCmd struct {
	SkipMigrate bool `help:"Do not run migrations on startup."`
}

func (s *ServeCmd) Run(ctx context.Context, g *Globals) error {
	cfg, err := config.Load(g.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := initLogger(cfg.Logger.Level)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Info("Starting Project Workspace API",
		zap.String("version", g.Version),
		zap.String("port", cfg.Server.Port),
		zap.String("mode", cfg.Server.Mode),
		zap.String("base_path", cfg.Server.BasePath),
	)

	m := metrics.NewWithLogger(logger)

	db, err := openDatabase(cfg, logger)
	if err != nil {
		return err
	}
	defer database.Close(db)
	database.RegisterMetricsCallbacks(db, m)
	stopStats := database.StartDBStatsCollector(db, m, 15*time.Second)
	defer close(stopStats)

	if !s.SkipMigrate {
		if err := database.AutoMigrateWithRetry(db, logger, 5); err != nil {
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
	}

	redisClient, err := database.NewRedis(cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis unavailable, change events stay in-process", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var publishers []broadcast.Publisher
	if redisClient != nil {
		publishers = append(publishers, broadcast.NewRedisPublisher(redisClient))
	}
	if cfg.NATS.URL != "" {
		nats, err := broadcast.ConnectNATS(cfg.NATS.URL)
		if err != nil {
			logger.Warn("NATS unavailable, change events are not forwarded", zap.Error(err))
		} else {
			defer nats.Close()
			publishers = append(publishers, nats)
			logger.Info("NATS publisher connected", zap.String("url", cfg.NATS.URL))
		}
	}
	bus := broadcast.NewBus(m, logger, publishers...)
	defer bus.Close()

	if cfg.Auth.JWTSecret == "" {
		logger.Warn("No JWT secret configured, every bearer token will be rejected")
	}

	routerCfg := router.Config{
		DB:             db,
		Redis:          redisClient,
		Logger:         logger,
		Metrics:        m,
		Validator:      identity.NewJWTValidator(cfg.Auth.JWTSecret, ""),
		Bus:            bus,
		Slack:          client.NewSlackClient(cfg.Slack.APIBaseURL, cfg.Slack.Timeout, logger, m),
		BasePath:       cfg.Server.BasePath,
		CORSOrigins:    cfg.Server.CORSOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		SwaggerEnabled: cfg.Server.SwaggerEnabled,
		AppURL:         cfg.App.URL,
		DBRetryMax:     cfg.Database.RetryMax,
		AutomationMax:  cfg.Automation.MaxDepth,
		SlackTimeout:   cfg.Slack.Timeout,
		PinTTL:         cfg.Pin.TTL,
		PinMaxAttempts: cfg.Pin.MaxAttempts,
	}
	svc := router.NewServices(routerCfg)
	r := router.SetupWithServices(routerCfg, svc)

	scheduler, err := startJobs(cfg, svc, redisClient, m, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Project Workspace API started",
			zap.String("address", srv.Addr),
			zap.String("swagger", fmt.Sprintf("http://localhost:%s%s/swagger/index.html", cfg.Server.Port, cfg.Server.BasePath)),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		logger.Error("Server failed", zap.Error(err))
	}
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Warn("Jobs did not finish before shutdown", zap.Error(err))
	}
	if err := svc.Emitter.Wait(shutdownCtx); err != nil {
		logger.Warn("Slack deliveries abandoned at shutdown", zap.Error(err))
	}

	logger.Info("Server exited gracefully")
	return nil
}

func openDatabase(cfg *config.Config, logger *zap.Logger) (*gorm.DB, error) {
	db, err := database.New(database.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info("Database connected successfully", zap.Bool("postgres", database.IsPostgres(db)))
	return db, nil
}

func startJobs(cfg *config.Config, svc *router.Services, redisClient *redis.Client, m *metrics.Metrics, logger *zap.Logger) (*job.Scheduler, error) {
	var marker job.Marker = job.NewMemoryMarker()
	if redisClient != nil {
		marker = job.NewRedisMarker(redisClient)
	}

	dueSoon := job.NewDueSoonJob(svc.TaskRepo, svc.Dispatcher, marker, cfg.Jobs.DueSoonWindow, logger)
	pins := job.NewPinCleanupJob(svc.Pins, logger)
	collector := metrics.NewBusinessMetricsCollector(job.RepositoryCounter{
		Projects: svc.ProjectRepo,
		Tasks:    svc.TaskRepo,
		Timers:   svc.TimeRepo,
	}, m, logger)

	scheduler := job.NewScheduler(logger, 2*time.Minute)
	if err := scheduler.Add("due_soon", cfg.Jobs.DueSoonSchedule, func(ctx context.Context) { dueSoon.Run(ctx) }); err != nil {
		return nil, err
	}
	if err := scheduler.Add("pin_cleanup", cfg.Jobs.PinCleanupSchedule, pins.Run); err != nil {
		return nil, err
	}
	if err := scheduler.Add("business_metrics", cfg.Jobs.MetricsSchedule, collector.Collect); err != nil {
		return nil, err
	}
	scheduler.Start()
	return scheduler, nil
}
