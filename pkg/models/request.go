package models

// SearchRequest represents an interactive job search request
type SearchRequest struct {
	Query    string `json:"query" validate:"required,min=2,max=200"`
	Category string `json:"category,omitempty"`
	Location string `json:"location,omitempty"`
	Limit    int    `json:"limit,omitempty" validate:"omitempty,min=1,max=50"`
}

// SubmitApplicationRequest represents a direct application submission
type SubmitApplicationRequest struct {
	OwnerID     string `json:"owner_id" validate:"required"`
	PostingID   string `json:"posting_id" validate:"required"`
	ProfileText string `json:"profile_text,omitempty"`
}

// FlushDigestRequest triggers a digest flush for a given day (RFC 3339 date,
// defaults to today when omitted)
type FlushDigestRequest struct {
	Date string `json:"date,omitempty"`
}
