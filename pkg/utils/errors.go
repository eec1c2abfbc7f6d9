package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// CustomError represents a custom application error
type CustomError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func (e *CustomError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Detail)
	}
	return e.Message
}

// Common error constructors
func NewBadRequestError(message string) *CustomError {
	return &CustomError{
		Code:    http.StatusBadRequest,
		Message: message,
	}
}

func NewInternalServerError(message string) *CustomError {
	return &CustomError{
		Code:    http.StatusInternalServerError,
		Message: message,
	}
}

func NewNotFoundError(message string) *CustomError {
	return &CustomError{
		Code:    http.StatusNotFound,
		Message: message,
	}
}

func NewValidationError(detail string) *CustomError {
	return &CustomError{
		Code:    http.StatusBadRequest,
		Message: "Validation failed",
		Detail:  detail,
	}
}

// NewLLMError wraps failures from the AI text service
func NewLLMError(detail string) *CustomError {
	return &CustomError{
		Code:    http.StatusBadGateway,
		Message: "LLM processing failed",
		Detail:  detail,
	}
}

// Pipeline sentinel errors. Duplicate applications and exhausted quotas are
// normal control-flow conditions, not hard failures; callers check for them
// with errors.Is.
var (
	// ErrDuplicateApplication signals that an (owner, posting) pair already
	// has an application. The dedup layer rejects locally and never
	// propagates this to sibling work.
	ErrDuplicateApplication = errors.New("application already exists for owner and posting")

	// ErrQuotaExhausted signals that a basic-tier subscription reached its
	// max_jobs cap. This is a normal early-exit condition.
	ErrQuotaExhausted = errors.New("subscription quota exhausted")

	// ErrMalformedLLMResult signals an AI payload missing required fields.
	// Triggers the rule-based fallback path.
	ErrMalformedLLMResult = errors.New("malformed result from AI service")

	// ErrNotFound signals a missing row in the relational store.
	ErrNotFound = errors.New("not found")
)
