package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"applyflow/internal/logging"
	"applyflow/internal/scheduler"
	"applyflow/pkg/models"
	"applyflow/pkg/utils"
)

// RunSweepHandler triggers one auto-apply sweep cycle on demand
func RunSweepHandler(sweeper *scheduler.Sweeper) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := utils.GenerateRequestID()
		logger := logging.GetGlobalLogger()
		start := time.Now()

		logger.Info("Manual sweep triggered", map[string]interface{}{
			"request_id": requestID,
		})

		result, err := sweeper.ProcessAllSubscriptions(c.Request().Context())
		if err != nil {
			logger.Error("Sweep failed", map[string]interface{}{
				"request_id": requestID,
				"error":      err.Error(),
			})
			return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Error:     "sweep_failed",
				Message:   "Failed to run sweep cycle",
				RequestID: requestID,
				Timestamp: time.Now(),
			})
		}

		return c.JSON(http.StatusOK, models.SweepResponse{
			Processed: result.Processed,
			Applied:   result.Applied,
			Duration:  time.Since(start).String(),
			Timestamp: time.Now(),
		})
	}
}
