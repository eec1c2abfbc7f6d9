package models

import "time"

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// SearchResponse represents the ranked result of an interactive search
type SearchResponse struct {
	Success   bool              `json:"success"`
	Query     string            `json:"query"`
	Filter    *StructuredFilter `json:"filter"`
	Postings  []*Posting        `json:"postings"`
	Count     int               `json:"count"`
	Cached    bool              `json:"cached"`
	RequestID string            `json:"request_id"`
}

// SubmitApplicationResponse acknowledges a dispatched application
type SubmitApplicationResponse struct {
	Success       bool      `json:"success"`
	ApplicationID string    `json:"application_id"`
	Status        string    `json:"status"`
	RequestID     string    `json:"request_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// ScoreResponse is the read model for a score lookup
type ScoreResponse struct {
	Available bool      `json:"available"`
	Status    string    `json:"status"`
	Score     *ATSScore `json:"score,omitempty"`
}

// SweepResponse summarizes one scheduler sweep cycle
type SweepResponse struct {
	Processed int       `json:"processed"`
	Applied   int       `json:"applied"`
	Duration  string    `json:"duration"`
	Timestamp time.Time `json:"timestamp"`
}

// FlushDigestResponse summarizes a digest flush
type FlushDigestResponse struct {
	Flushed   int       `json:"flushed"`
	Failed    int       `json:"failed"`
	Timestamp time.Time `json:"timestamp"`
}
