package models

import "time"

// Posting represents a job listing in the corpus. The corpus is populated by
// an external ingestion service; this pipeline only reads it.
type Posting struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Requirements string     `json:"requirements"`
	Category     string     `json:"category"`
	Experience   string     `json:"experience"`
	Location     string     `json:"location"`
	IsRemote     bool       `json:"is_remote"`
	Salary       string     `json:"salary"`
	Company      string     `json:"company"`
	Email        string     `json:"email"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	LastUpdated  time.Time  `json:"last_updated"`
	ScrapedAt    time.Time  `json:"scraped_at"`
}

// IsExpired reports whether the posting is past its expiry. Postings without
// an expiry never expire.
func (p *Posting) IsExpired(now time.Time) bool {
	return p.ExpiresAt != nil && !p.ExpiresAt.After(now)
}
