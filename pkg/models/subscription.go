package models

import "time"

// SubscriptionTier determines how many auto-applications a subscription may
// emit over its lifetime.
type SubscriptionTier string

const (
	TierBasic     SubscriptionTier = "basic"
	TierUnlimited SubscriptionTier = "unlimited"
)

// SubscriptionStatus represents the billing-side state of a subscription.
// Status transitions are owned by the billing collaborator; this pipeline
// only increments counters.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// Subscription is an owner's standing authorization for auto-apply.
type Subscription struct {
	ID          string             `json:"id"`
	OwnerID     string             `json:"owner_id"`
	Tier        SubscriptionTier   `json:"tier"`
	MaxJobs     int                `json:"max_jobs"`
	JobsApplied int                `json:"jobs_applied"`
	Status      SubscriptionStatus `json:"status"`
	ValidUntil  time.Time          `json:"valid_until"`
	CreatedAt   time.Time          `json:"created_at"`
}

// IsActive reports whether the subscription may emit applications right now.
func (s *Subscription) IsActive(now time.Time) bool {
	if s.Status != SubscriptionActive || !now.Before(s.ValidUntil) {
		return false
	}
	return s.Tier == TierUnlimited || s.JobsApplied < s.MaxJobs
}

// Remaining returns how many applications the subscription may still emit.
// Unlimited subscriptions return -1.
func (s *Subscription) Remaining() int {
	if s.Tier == TierUnlimited {
		return -1
	}
	if s.JobsApplied >= s.MaxJobs {
		return 0
	}
	return s.MaxJobs - s.JobsApplied
}

// Preference is a category+location watch under a subscription. The cached
// filter is populated lazily on the first sweep that touches the preference.
type Preference struct {
	ID               string            `json:"id"`
	SubscriptionID   string            `json:"subscription_id"`
	OwnerID          string            `json:"owner_id"`
	Category         string            `json:"category"`
	Label            string            `json:"label"`
	Location         string            `json:"location"`
	Remote           bool              `json:"remote"`
	CachedFilter     *StructuredFilter `json:"cached_filter,omitempty"`
	JobsApplied      int               `json:"jobs_applied"`
	LastJobAppliedAt *time.Time        `json:"last_job_applied_at,omitempty"`
	Active           bool              `json:"active"`
	CreatedAt        time.Time         `json:"created_at"`
}
