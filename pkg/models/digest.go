package models

import "time"

// DigestBatch is a time-windowed, per-recipient bundle of applications
// awaiting a single outbound notification. Keyed by (recipient, posting,
// date); email_sent transitions false→true exactly once.
type DigestBatch struct {
	ID               string    `json:"id"`
	Recipient        string    `json:"recipient"`
	PostingID        string    `json:"posting_id"`
	BatchDate        time.Time `json:"batch_date"`
	ApplicationIDs   []string  `json:"application_ids"`
	ApplicationCount int       `json:"application_count"`
	EmailSent        bool      `json:"email_sent"`
	SentAt           *time.Time `json:"sent_at,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// BatchDay truncates a timestamp to the digest batching window (one day, UTC).
func BatchDay(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}
