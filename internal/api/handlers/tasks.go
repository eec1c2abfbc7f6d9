package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"applyflow/internal/queue"
	"applyflow/pkg/models"
	"applyflow/pkg/utils"
)

// ResultSource fetches the retained terminal record of a queued task.
type ResultSource interface {
	GetResult(ctx context.Context, taskID string) (*queue.TaskResult, error)
}

// TaskResultHandler serves the terminal record of a queued task while it is
// within the retention window
func TaskResultHandler(results ResultSource) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := utils.GenerateRequestID()
		taskID := c.Param("id")

		result, err := results.GetResult(c.Request().Context(), taskID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Error:     "task_lookup_failed",
				Message:   "Failed to load task result",
				RequestID: requestID,
				Timestamp: time.Now(),
			})
		}
		if result == nil {
			return c.JSON(http.StatusNotFound, models.ErrorResponse{
				Error:     "task_not_found",
				Message:   "No result for this task; it may still be running or past retention",
				RequestID: requestID,
				Timestamp: time.Now(),
			})
		}

		return c.JSON(http.StatusOK, result)
	}
}
