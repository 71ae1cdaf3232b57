package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"civigate/internal/api"
	"civigate/internal/api/handlers"
	"civigate/internal/config"
	"civigate/internal/domain/services"
	"civigate/internal/infrastructure/cache"
	"civigate/internal/infrastructure/database"
	"civigate/internal/infrastructure/database/repository"
	"civigate/internal/upstream"
	"civigate/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	var log *logger.Logger
	if cfg.App.Environment == "production" {
		log = logger.NewProduction()
	} else {
		log = logger.NewDevelopment()
	}
	logger.SetGlobal(log)

	log.Info().
		Str("app", cfg.App.Name).
		Str("env", cfg.App.Environment).
		Str("version", cfg.App.Version).
		Msg("starting CiviGate")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize infrastructure
	db, redisCache, err := initInfrastructure(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize infrastructure")
	}
	defer func() {
		if db != nil {
			db.Close()
		}
		if redisCache != nil {
			redisCache.Close()
		}
	}()

	// Initialize repositories
	var repos *repository.Repositories
	if db != nil {
		repos = repository.NewRepositories(db.Pool())
		log.Info().Msg("repositories initialized with database")
	} else {
		log.Warn().Msg("running without database - journal and checklist catalog unavailable")
	}

	// State stores: Redis when available, in-memory otherwise
	var challengeStore services.ChallengeStore
	var caseStateStore services.CaseStateStore
	if redisCache != nil {
		challengeStore = services.NewRedisChallengeStore(redisCache)
		caseStateStore = services.NewRedisCaseStateStore(redisCache, cfg.Checklist.StateTTL)
	} else {
		log.Warn().Msg("running without Redis - state held in memory only")
		challengeStore = services.NewMemoryChallengeStore()
		caseStateStore = services.NewMemoryCaseStateStore()
	}

	// Upstream API clients
	upstreamClient := upstream.NewClient(cfg.Upstream, log)
	uploadClient := upstream.NewUploadClient(upstreamClient, cfg.Upload, log)

	// Initialize services
	challenges := services.NewChallengeEngine(challengeStore, cfg.Challenge, log)
	tracking := services.NewTrackingService(upstreamClient, redisCache, cfg.Upstream, log)

	var journal *repository.SubmissionRepository
	var catalog services.ChecklistCatalog
	if repos != nil {
		journal = repos.Submissions
		catalog = repos.Checklists
	}
	submissions := services.NewSubmissionService(upstreamClient, uploadClient, challenges, journal, log)
	checklists := services.NewChecklistService(catalog, caseStateStore, log)

	// Initialize handlers
	deps := handlers.Dependencies{
		Challenges:  challenges,
		Submissions: submissions,
		Tracking:    tracking,
		Checklists:  checklists,
		Uploads:     uploadClient,
		Cache:       redisCache,
		Repos:       repos,
		Logger:      log,
	}
	h := handlers.NewHandlers(deps)

	// Create router
	router := api.NewRouter(*cfg, h, redisCache, log)
	httpHandler := router.Setup()

	// Start HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort),
		Handler:      httpHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().
			Str("addr", httpServer.Addr).
			Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("shutdown complete")
}

func initInfrastructure(ctx context.Context, cfg *config.Config, log *logger.Logger) (*database.PostgresDB, *cache.RedisCache, error) {
	// Connect to PostgreSQL
	db, err := database.NewPostgres(ctx, cfg.Database, log)
	if err != nil {
		log.Warn().Err(err).Msg("failed to connect to PostgreSQL, continuing without database")
		db = nil
	}

	// Connect to Redis
	redisCache, err := cache.NewRedis(ctx, cfg.Redis, log)
	if err != nil {
		log.Warn().Err(err).Msg("failed to connect to Redis, continuing with in-memory state")
		redisCache = nil
	}

	return db, redisCache, nil
}
