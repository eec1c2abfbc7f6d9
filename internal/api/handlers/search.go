package handlers

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"applyflow/internal/logging"
	"applyflow/internal/search"
	"applyflow/pkg/models"
	"applyflow/pkg/utils"
)

var validate = validator.New()

// SearchHandler handles interactive job search requests
func SearchHandler(svc *search.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		startTime := time.Now()
		requestID := utils.GenerateRequestID()
		logger := logging.GetGlobalLogger()

		var req models.SearchRequest
		if err := c.Bind(&req); err != nil {
			logger.Error("Failed to bind search request", map[string]interface{}{
				"request_id": requestID,
				"error":      err.Error(),
			})
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:     "invalid_request",
				Message:   "Invalid request format",
				RequestID: requestID,
				Timestamp: time.Now(),
			})
		}

		if err := validate.Struct(&req); err != nil {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:     "validation_failed",
				Message:   err.Error(),
				RequestID: requestID,
				Timestamp: time.Now(),
			})
		}

		result, err := svc.Search(c.Request().Context(), &req)
		if err != nil {
			logger.Error("Search failed", map[string]interface{}{
				"request_id": requestID,
				"query":      req.Query,
				"error":      err.Error(),
			})
			return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Error:     "search_failed",
				Message:   "Failed to run search",
				RequestID: requestID,
				Timestamp: time.Now(),
			})
		}

		logger.Info("Search completed", map[string]interface{}{
			"request_id":      requestID,
			"query":           req.Query,
			"results":         len(result.Postings),
			"cached":          result.Cached,
			"filter_source":   string(result.Filter.Source),
			"processing_time": time.Since(startTime).String(),
		})

		return c.JSON(http.StatusOK, models.SearchResponse{
			Success:   true,
			Query:     req.Query,
			Filter:    result.Filter,
			Postings:  result.Postings,
			Count:     len(result.Postings),
			Cached:    result.Cached,
			RequestID: requestID,
		})
	}
}
