package models

import "time"

// ApplicationStatus tracks an application through the dispatch pipeline.
type ApplicationStatus string

const (
	ApplicationQueued     ApplicationStatus = "queued"
	ApplicationProcessing ApplicationStatus = "processing"
	ApplicationApplied    ApplicationStatus = "applied"
	ApplicationFailed     ApplicationStatus = "failed"
)

// Application is a submitted match between an owner and a posting. The
// (owner, posting) pairing is unique and is the basis of all dedup.
type Application struct {
	ID           string            `json:"id"`
	OwnerID      string            `json:"owner_id"`
	PostingID    string            `json:"posting_id"`
	ProfileText  string            `json:"profile_text"`
	Status       ApplicationStatus `json:"status"`
	ContactName  string            `json:"contact_name,omitempty"`
	ContactEmail string            `json:"contact_email,omitempty"`
	ContactPhone string            `json:"contact_phone,omitempty"`
	AppliedAt    *time.Time        `json:"applied_at,omitempty"`
	InDigest     bool              `json:"in_digest"`
	DigestID     string            `json:"digest_id,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}
