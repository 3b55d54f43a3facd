package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/forgo/planner/api/internal/broker"
	"github.com/forgo/planner/api/internal/cache"
	"github.com/forgo/planner/api/internal/config"
	"github.com/forgo/planner/api/internal/database"
	"github.com/forgo/planner/api/internal/handler"
	"github.com/forgo/planner/api/internal/jobs"
	"github.com/forgo/planner/api/internal/logging"
	"github.com/forgo/planner/api/internal/middleware"
	"github.com/forgo/planner/api/internal/repository"
	"github.com/forgo/planner/api/internal/service"
	"github.com/forgo/planner/api/migrations"
)

func main() {
	// Load configuration; CONFIG_FILE optionally points at a TOML file
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logging.New(logging.Options{}).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize structured logging
	logger := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	slog.SetDefault(logger)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Initialize database connection
	db := database.NewSurrealDB(database.Config{
		Host:      cfg.Database.Host,
		Port:      cfg.Database.Port,
		User:      cfg.Database.User,
		Password:  cfg.Database.Password,
		Namespace: cfg.Database.Namespace,
		Database:  cfg.Database.Database,

		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err := db.Connect(ctx); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	logger.Info("connected to database",
		"host", cfg.Database.Host,
		"database", cfg.Database.Database,
	)

	if cfg.Database.Migrate {
		applied, err := database.Migrate(ctx, db, migrations.FS)
		if err != nil {
			logger.Error("failed to apply migrations", "error", err, "applied", applied)
			os.Exit(1)
		}
		logger.Info("migrations applied", "count", applied)
	}

	// Initialize message broker
	mq, err := broker.Dial(ctx, broker.Config{
		Host:           cfg.Broker.Host,
		Port:           cfg.Broker.Port,
		Username:       cfg.Broker.Username,
		Password:       cfg.Broker.Password,
		VHost:          cfg.Broker.VHost,
		OptimizerQueue: cfg.Broker.OptimizerQueue,
		ProgressQueue:  cfg.Broker.ProgressQueue,
		ControlQueue:   cfg.Broker.ControlQueue,
		PublishTimeout: cfg.Broker.PublishTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to broker", "error", err)
		os.Exit(1)
	}
	defer func() { _ = mq.Close() }()

	// Initialize repositories
	jobRepo := repository.NewJobRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	recruitmentRepo := repository.NewRecruitmentRepository(db)
	participantRepo := repository.NewParticipantRepository(db)
	preferencesRepo := repository.NewPreferencesRepository(db)

	// Status cache (optional; Redis failures degrade to store reads)
	var statusCache *cache.StatusCache
	var redisClient *redis.Client
	optionalChecks := map[string]handler.HealthCheck{}
	if cfg.Cache.Enabled {
		client, err := cache.NewClient(ctx, cache.Config{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		if err != nil {
			logger.Warn("status cache unavailable, reading through to the store", "error", err)
			statusCache = cache.New(nil, jobRepo, cfg.Cache.TTL, logger)
		} else {
			defer func() { _ = client.Close() }()
			redisClient = client
			statusCache = cache.New(client, jobRepo, cfg.Cache.TTL, logger)
			optionalChecks["cache"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		}
	} else {
		statusCache = cache.New(nil, jobRepo, cfg.Cache.TTL, logger)
	}

	// Initialize services
	hub := service.NewRealtimeHub(service.RealtimeHubConfig{
		JobRepo:      jobRepo,
		ProgressRepo: progressRepo,
		Logger:       logger,
	})
	defer hub.Close()

	jobService := service.NewJobService(service.JobServiceConfig{
		JobRepo:      jobRepo,
		ProgressRepo: progressRepo,
		Publisher:    mq,
		Cache:        statusCache,
		Events:       hub,
		Logger:       logger,
	})
	hub.SetCanceller(jobService)

	progressService := service.NewProgressService(service.ProgressServiceConfig{
		JobRepo:      jobRepo,
		ProgressRepo: progressRepo,
		Cache:        statusCache,
		Events:       hub,
		Logger:       logger,
	})

	recruitmentService := service.NewRecruitmentService(service.RecruitmentServiceConfig{
		RecruitmentRepo: recruitmentRepo,
		Problems:        preferencesRepo,
		Participants:    participantRepo,
		Jobs:            jobService,
		Logger:          logger,
	})

	// Start background jobs
	relayCtx, stopRelay := context.WithCancel(ctx)
	defer stopRelay()
	if redisClient != nil {
		go func() {
			if err := cache.RelayEvents(relayCtx, redisClient, hub, logger); err != nil {
				logger.Error("job event relay stopped", "error", err)
			}
		}()
	}

	if cfg.Lifecycle.Enabled {
		lifecycle := jobs.NewRecruitmentLifecycleProcessor(jobs.LifecycleProcessorConfig{
			Recruitments: recruitmentService,
			Interval:     cfg.Lifecycle.Interval,
			Logger:       logger,
		})
		lifecycle.Start()
		defer lifecycle.Stop()
	}

	if cfg.Consumer.InProcess {
		listener := jobs.NewProgressListener(jobs.ProgressListenerConfig{
			Source:       mq,
			Handler:      progressService,
			StoreTimeout: cfg.Consumer.StoreTimeout,
			Logger:       logger,
		})
		listener.Start()
		defer listener.Stop()
	}

	// Initialize handlers
	jobHandler := handler.NewJobHandler(jobService, logger)
	recruitmentHandler := handler.NewRecruitmentHandler(recruitmentService, logger)
	socketHandler := handler.NewSocketHandler(hub, cfg.Server.AllowedOrigins, logger)
	healthHandler := handler.NewHealthHandler(
		map[string]handler.HealthCheck{
			"database": db.Ping,
			"broker":   func(context.Context) error { return mq.Ping() },
		},
		optionalChecks,
	)

	// Setup routes
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", healthHandler.Health)

	// Job routes
	mux.HandleFunc("POST /v1/jobs", jobHandler.Submit)
	mux.HandleFunc("GET /v1/jobs", jobHandler.List)
	mux.HandleFunc("GET /v1/jobs/{jobId}", jobHandler.Get)
	mux.HandleFunc("GET /v1/jobs/{jobId}/status", jobHandler.Status)
	mux.HandleFunc("POST /v1/jobs/{jobId}/cancel", jobHandler.Cancel)
	mux.HandleFunc("GET /v1/jobs/{jobId}/progress", jobHandler.Progress)

	// Recruitment routes
	mux.HandleFunc("GET /v1/recruitments/{recruitmentId}/evaluation", recruitmentHandler.Evaluate)
	mux.HandleFunc("POST /v1/recruitments/{recruitmentId}/trigger", recruitmentHandler.Trigger)

	// Live job updates
	mux.HandleFunc("GET /ws/jobs/{jobId}/", socketHandler.Serve)

	// Apply global middleware
	wrapped := middleware.Chain(mux,
		middleware.RequestID,
		middleware.Logger(logger),
		middleware.Recovery(logger),
		middleware.CORS(cfg.Server.AllowedOrigins),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      wrapped,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server",
			"port", cfg.Server.Port,
			"env", cfg.Server.Env,
			"lifecycle", cfg.Lifecycle.Enabled,
			"in_process_consumer", cfg.Consumer.InProcess,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Live subscribers are hijacked connections that Shutdown does not track
	hub.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
