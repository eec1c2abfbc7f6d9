package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"applyflow/internal/logging"
	"applyflow/internal/pipeline"
	"applyflow/internal/scoring"
	"applyflow/pkg/models"
	"applyflow/pkg/utils"
)

// ProfileSource resolves the owner's CV text when a submission omits one.
type ProfileSource interface {
	LatestProfileText(ctx context.Context, ownerID string) (string, error)
}

// SubmitApplicationHandler dispatches a direct application submission
func SubmitApplicationHandler(dispatcher *pipeline.Dispatcher, profiles ProfileSource) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := utils.GenerateRequestID()
		logger := logging.GetGlobalLogger()

		var req models.SubmitApplicationRequest
		if err := c.Bind(&req); err != nil {
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

		ctx := c.Request().Context()

		profileText := req.ProfileText
		if profileText == "" {
			text, err := profiles.LatestProfileText(ctx, req.OwnerID)
			if err != nil {
				return c.JSON(http.StatusBadRequest, models.ErrorResponse{
					Error:     "profile_missing",
					Message:   "No profile text supplied and none on record for this owner",
					RequestID: requestID,
					Timestamp: time.Now(),
				})
			}
			profileText = text
		}

		app, err := dispatcher.Submit(ctx, &pipeline.SubmitRequest{
			OwnerID:     req.OwnerID,
			PostingID:   req.PostingID,
			ProfileText: profileText,
		})
		if err != nil {
			if errors.Is(err, utils.ErrDuplicateApplication) {
				return c.JSON(http.StatusConflict, models.ErrorResponse{
					Error:     "duplicate_application",
					Message:   "An application for this posting already exists",
					RequestID: requestID,
					Timestamp: time.Now(),
				})
			}

			logger.Error("Application dispatch failed", map[string]interface{}{
				"request_id": requestID,
				"owner_id":   req.OwnerID,
				"posting_id": req.PostingID,
				"error":      err.Error(),
			})
			return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Error:     "dispatch_failed",
				Message:   "Failed to dispatch application",
				RequestID: requestID,
				Timestamp: time.Now(),
			})
		}

		return c.JSON(http.StatusAccepted, models.SubmitApplicationResponse{
			Success:       true,
			ApplicationID: app.ID,
			Status:        string(app.Status),
			RequestID:     requestID,
			Timestamp:     time.Now(),
		})
	}
}

// GetScoreHandler serves the score read model for an application
func GetScoreHandler(engine *scoring.Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := utils.GenerateRequestID()
		applicationID := c.Param("id")

		score, err := engine.GetScore(c.Request().Context(), applicationID)
		if err != nil {
			if errors.Is(err, utils.ErrNotFound) {
				return c.JSON(http.StatusNotFound, models.ErrorResponse{
					Error:     "score_not_found",
					Message:   "No score exists for this application",
					RequestID: requestID,
					Timestamp: time.Now(),
				})
			}
			return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Error:     "score_lookup_failed",
				Message:   "Failed to load score",
				RequestID: requestID,
				Timestamp: time.Now(),
			})
		}

		response := models.ScoreResponse{
			Available: score.Status == models.ScoreCompleted,
			Status:    string(score.Status),
		}
		if response.Available {
			response.Score = score
		}

		return c.JSON(http.StatusOK, response)
	}
}
