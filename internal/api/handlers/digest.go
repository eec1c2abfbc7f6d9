package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"applyflow/internal/digest"
	"applyflow/internal/logging"
	"applyflow/pkg/models"
	"applyflow/pkg/utils"
)

// FlushDigestHandler triggers a digest flush for a given day
func FlushDigestHandler(batcher *digest.Batcher) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := utils.GenerateRequestID()
		logger := logging.GetGlobalLogger()

		var req models.FlushDigestRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:     "invalid_request",
				Message:   "Invalid request format",
				RequestID: requestID,
				Timestamp: time.Now(),
			})
		}

		date := time.Now()
		if req.Date != "" {
			parsed, err := time.Parse("2006-01-02", req.Date)
			if err != nil {
				return c.JSON(http.StatusBadRequest, models.ErrorResponse{
					Error:     "invalid_date",
					Message:   "Date must be in YYYY-MM-DD format",
					RequestID: requestID,
					Timestamp: time.Now(),
				})
			}
			date = parsed
		}

		result, err := batcher.Flush(c.Request().Context(), date)
		if err != nil {
			logger.Error("Digest flush failed", map[string]interface{}{
				"request_id": requestID,
				"error":      err.Error(),
			})
			return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Error:     "flush_failed",
				Message:   "Failed to flush digests",
				RequestID: requestID,
				Timestamp: time.Now(),
			})
		}

		return c.JSON(http.StatusOK, models.FlushDigestResponse{
			Flushed:   result.Sent,
			Failed:    result.Failed,
			Timestamp: time.Now(),
		})
	}
}
