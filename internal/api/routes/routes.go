package routes

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"applyflow/internal/api/handlers"
	"applyflow/internal/api/middleware"
	"applyflow/internal/config"
	"applyflow/internal/digest"
	"applyflow/internal/llm"
	"applyflow/internal/pipeline"
	"applyflow/internal/queue"
	"applyflow/internal/scheduler"
	"applyflow/internal/scoring"
	"applyflow/internal/search"
	"applyflow/internal/store"
	"applyflow/pkg/utils"
)

// Dependencies bundles everything the route handlers need.
type Dependencies struct {
	Config      *config.Config
	Pool        *pgxpool.Pool
	Redis       *utils.RedisClient
	LLMManager  *llm.Manager
	SearchSvc   *search.Service
	Dispatcher  *pipeline.Dispatcher
	ScoreEngine *scoring.Engine
	Sweeper     *scheduler.Sweeper
	Batcher     *digest.Batcher
	Profiles    *store.ProfileStore
	WorkerPool  *queue.WorkerPool
	Queue       *queue.Queue
}

// SetupRoutes configures all API routes
func SetupRoutes(e *echo.Echo, deps *Dependencies) {
	// Global middleware
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(middleware.CORSConfig())
	e.Use(middleware.RequestValidation())
	// Selective timeout: standard for most endpoints, 2 minutes for AI-bound ones
	e.Use(middleware.SelectiveTimeoutConfig(deps.Config.Server.ReadTimeout, 2*time.Minute))

	// Health check routes
	health := e.Group("/health")
	{
		health.GET("", handlers.HealthHandler)
		health.GET("/ready", handlers.ReadinessHandler(deps.Pool, deps.Redis, deps.LLMManager))
		health.GET("/live", handlers.LivenessHandler)
		health.GET("/workers", handlers.WorkerStatsHandler(deps.WorkerPool, deps.Queue))
	}

	// API v1 routes
	v1 := e.Group("/api/v1")
	{
		v1.POST("/search", handlers.SearchHandler(deps.SearchSvc))

		v1.POST("/applications", handlers.SubmitApplicationHandler(deps.Dispatcher, deps.Profiles))
		v1.GET("/applications/:id/score", handlers.GetScoreHandler(deps.ScoreEngine))

		v1.POST("/scheduler/run", handlers.RunSweepHandler(deps.Sweeper))
		v1.POST("/digest/flush", handlers.FlushDigestHandler(deps.Batcher))

		v1.GET("/tasks/:id", handlers.TaskResultHandler(deps.Queue))
	}

	// Root route
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"service": "Applyflow Job Pipeline",
			"version": "1.0.0",
			"status":  "running",
		})
	})
}
