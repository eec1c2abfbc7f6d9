package handlers

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"applyflow/internal/llm"
	"applyflow/internal/logging"
	"applyflow/internal/queue"
	"applyflow/pkg/utils"
)

var startTime = time.Now()

// HealthResponse is the probe payload.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Uptime    time.Duration     `json:"uptime"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthHandler handles health check requests
func HealthHandler(c echo.Context) error {
	requestID := utils.GenerateRequestID()
	logger := logging.GetGlobalLogger()

	logger.Debug("Health check requested", map[string]interface{}{"request_id": requestID})

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   "1.0.0",
		Uptime:    time.Since(startTime),
		Checks: map[string]string{
			"api": "ok",
		},
	}

	return c.JSON(http.StatusOK, response)
}

// ReadinessHandler reports whether the service's dependencies are reachable
func ReadinessHandler(pool *pgxpool.Pool, redisClient *utils.RedisClient, llmManager *llm.Manager) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		checks := map[string]string{"api": "ok"}
		status := "ready"
		code := http.StatusOK

		if err := pool.Ping(ctx); err != nil {
			checks["postgres"] = err.Error()
			status = "not_ready"
			code = http.StatusServiceUnavailable
		} else {
			checks["postgres"] = "ok"
		}

		if err := redisClient.Ping(ctx); err != nil {
			checks["redis"] = err.Error()
			status = "not_ready"
			code = http.StatusServiceUnavailable
		} else {
			checks["redis"] = "ok"
		}

		// A degraded AI provider does not fail readiness: expansion and
		// scoring have rule-based fallbacks.
		if llmManager.IsHealthy() {
			checks["llm"] = "ok"
		} else {
			checks["llm"] = "degraded"
		}

		return c.JSON(code, HealthResponse{
			Status:    status,
			Timestamp: time.Now(),
			Version:   "1.0.0",
			Uptime:    time.Since(startTime),
			Checks:    checks,
		})
	}
}

// LivenessHandler handles liveness probe requests
func LivenessHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   "1.0.0",
		Uptime:    time.Since(startTime),
	})
}

// WorkerStatsHandler reports worker pool counters and queue depths
func WorkerStatsHandler(pool *queue.WorkerPool, q *queue.Queue) echo.HandlerFunc {
	return func(c echo.Context) error {
		handled, succeeded, retried, failed := pool.GetStats()

		stats := map[string]interface{}{
			"running":         pool.IsRunning(),
			"tasks_handled":   handled,
			"tasks_succeeded": succeeded,
			"tasks_retried":   retried,
			"tasks_failed":    failed,
		}

		if depths, err := q.Depth(c.Request().Context()); err == nil {
			stats["queue_depths"] = depths
		}

		return c.JSON(http.StatusOK, stats)
	}
}
