package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"applyflow/internal/api/routes"
	"applyflow/internal/config"
	"applyflow/internal/digest"
	"applyflow/internal/expansion"
	"applyflow/internal/llm"
	"applyflow/internal/logging"
	"applyflow/internal/notify"
	"applyflow/internal/pipeline"
	"applyflow/internal/queue"
	"applyflow/internal/scheduler"
	"applyflow/internal/scoring"
	"applyflow/internal/search"
	"applyflow/internal/store"
	"applyflow/pkg/utils"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logging
	if err := logging.Setup(cfg); err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logging.Close()

	logger := logging.GetGlobalLogger()
	logger.Info("Starting Applyflow Job Pipeline")

	// Postgres pool
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Postgres.Timeout)
	pool, err := store.NewPostgresPool(ctx, cfg.Postgres.URL)
	cancel()
	if err != nil {
		logger.Fatal("Failed to connect to Postgres", map[string]interface{}{"error": err.Error()})
	}
	defer pool.Close()

	// Redis
	redisClient := utils.NewRedisClient(cfg)
	pingCtx, cancelPing := context.WithTimeout(context.Background(), cfg.Redis.Timeout)
	if err := redisClient.Ping(pingCtx); err != nil {
		cancelPing()
		logger.Fatal("Failed to connect to Redis", map[string]interface{}{"error": err.Error()})
	}
	cancelPing()
	defer redisClient.Close()

	// LLM manager
	llmManager := llm.NewManager(cfg)
	if err := llmManager.Start(); err != nil {
		logger.Fatal("Failed to start AI manager", map[string]interface{}{"error": err.Error()})
	}

	// Stores
	postings := store.NewPostingStore(pool)
	applications := store.NewApplicationStore(pool)
	subscriptions := store.NewSubscriptionStore(pool)
	preferences := store.NewPreferenceStore(pool)
	scores := store.NewScoreStore(pool)
	digests := store.NewDigestStore(pool)
	expansions := store.NewExpansionStore(pool, cfg.Expansion.CacheTTL)
	profiles := store.NewProfileStore(pool)

	// Query expansion chain
	expander := expansion.NewExpander(expansion.DefaultDictionary(),
		expansion.WithFastCache(redisClient),
		expansion.WithDurableCache(expansions),
		expansion.WithModel(llmManager),
		expansion.WithConfidenceThreshold(cfg.Expansion.ConfidenceThreshold),
	)

	// Search service
	searchSvc := search.NewService(cfg, expander, postings, redisClient)

	// Digest batcher and outbound notifier
	notifier, err := notify.NewClient(&notify.ClientConfig{
		NotifierURL: cfg.Digest.NotifierURL,
		Timeout:     cfg.Digest.Timeout,
		MaxRetries:  cfg.Digest.MaxRetries,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create notifier client", map[string]interface{}{"error": err.Error()})
	}
	batcher := digest.NewBatcher(digests, postings, notifier)

	// Scoring engine
	engine := scoring.NewEngine(llmManager, scores)

	// Work queue and dispatch pipeline
	q := queue.NewQueue(redisClient.Client(), cfg)
	dispatcher := pipeline.NewDispatcher(applications, postings, batcher, q, subscriptions)
	workerPool := queue.NewWorkerPool(cfg, q)
	pipeline.RegisterTaskHandlers(workerPool, dispatcher, engine, postings, batcher)
	if err := workerPool.Start(); err != nil {
		logger.Fatal("Failed to start worker pool", map[string]interface{}{"error": err.Error()})
	}

	// Auto-apply sweeper, emitting application.submit tasks onto the queue
	sweeper := scheduler.NewSweeper(cfg, subscriptions, preferences, postings, expander, profiles, q)

	// Cron jobs
	sched := scheduler.New()
	if cfg.Scheduler.Enabled {
		sweepSpec := fmt.Sprintf("@every %s", cfg.Scheduler.SweepInterval)
		if err := sched.AddJob(sweepSpec, "auto-apply-sweep", func(jobCtx context.Context) {
			if _, err := sweeper.ProcessAllSubscriptions(jobCtx); err != nil {
				logger.Error("Scheduled sweep failed", map[string]interface{}{"error": err.Error()})
			}
		}); err != nil {
			logger.Fatal("Failed to register sweep job", map[string]interface{}{"error": err.Error()})
		}
	}
	if err := sched.AddJob(cfg.Digest.FlushSpec, "digest-flush", func(jobCtx context.Context) {
		// The flush runs in the workers so a crashed run is retried.
		if _, err := q.Enqueue(jobCtx, queue.TaskDigestFlush, nil, queue.PriorityLow, 0); err != nil {
			logger.Error("Failed to enqueue digest flush task", map[string]interface{}{"error": err.Error()})
		}
	}); err != nil {
		logger.Fatal("Failed to register digest flush job", map[string]interface{}{"error": err.Error()})
	}
	sched.Start()

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	routes.SetupRoutes(e, &routes.Dependencies{
		Config:      cfg,
		Pool:        pool,
		Redis:       redisClient,
		LLMManager:  llmManager,
		SearchSvc:   searchSvc,
		Dispatcher:  dispatcher,
		ScoreEngine: engine,
		Sweeper:     sweeper,
		Batcher:     batcher,
		Profiles:    profiles,
		WorkerPool:  workerPool,
		Queue:       q,
	})

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		logger.Info("Stopping scheduler...")
		sched.Stop()

		logger.Info("Stopping worker pool...")
		if err := workerPool.Stop(); err != nil {
			logger.Error("Error stopping worker pool", map[string]interface{}{"error": err.Error()})
		}

		logger.Info("Stopping AI manager...")
		if err := llmManager.Stop(); err != nil {
			logger.Error("Error stopping AI manager", map[string]interface{}{"error": err.Error()})
		}

		logger.Info("Stopping HTTP server...")
		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error shutting down server", map[string]interface{}{"error": err.Error()})
		}

		logger.Info("Server shutdown complete")
	}()

	// Start server
	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("Server starting", map[string]interface{}{"address": address})

	if err := e.Start(address); err != nil {
		logger.Info("Server stopped", map[string]interface{}{"reason": err.Error()})
	}
}
