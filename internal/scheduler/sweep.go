package scheduler

import (
	"context"
	"regexp"
	"time"

	"applyflow/internal/config"
	"applyflow/internal/logging"
	"applyflow/internal/pipeline"
	"applyflow/internal/queue"
	"applyflow/pkg/models"
)

// strictIncludeBar is the number of distinct include terms that must appear
// in posting text before an unattended application is emitted. Filters with
// fewer include terms never qualify.
const strictIncludeBar = 2

// SubscriptionSource lists subscriptions eligible for sweeping.
type SubscriptionSource interface {
	ListActive(ctx context.Context) ([]*models.Subscription, error)
}

// PreferenceSource lists and updates the watches under a subscription.
type PreferenceSource interface {
	ListActiveForSubscription(ctx context.Context, subscriptionID string) ([]*models.Preference, error)
	SaveFilter(ctx context.Context, preferenceID string, filter *models.StructuredFilter) error
	RecordApplied(ctx context.Context, preferenceID string, count int, at time.Time) error
}

// Corpus finds candidate postings for a preference.
type Corpus interface {
	FindUnseen(ctx context.Context, ownerID string, filter *models.StructuredFilter, location string, since time.Time, limit int) ([]*models.Posting, error)
}

// FilterResolver expands a preference's query into a structured filter.
type FilterResolver interface {
	Expand(ctx context.Context, query, category string) *models.StructuredFilter
}

// ProfileSource supplies the CV text used for unattended submissions.
type ProfileSource interface {
	LatestProfileText(ctx context.Context, ownerID string) (string, error)
}

// Enqueuer pushes application.submit tasks onto the work queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, taskType string, payload interface{}, priority queue.Priority, delay time.Duration) (string, error)
}

// SweepResult summarizes one sweep cycle. Applied counts applications handed
// to the work queue; the dispatch itself runs in the workers.
type SweepResult struct {
	Processed int `json:"processed"`
	Applied   int `json:"applied"`
}

// Sweeper runs the recurring auto-apply cycle. Matching postings are enqueued
// as application.submit tasks rather than dispatched inline, so a sweep stays
// cheap and dispatch survives restarts with the queue. Failures are isolated
// per subscription and per preference; running a sweep twice over the same
// window is safe because the workers dedup on durable owner+posting
// existence.
type Sweeper struct {
	config        *config.Config
	subscriptions SubscriptionSource
	preferences   PreferenceSource
	corpus        Corpus
	resolver      FilterResolver
	profiles      ProfileSource
	tasks         Enqueuer
	logger        logging.Logger
}

// NewSweeper constructs a Sweeper.
func NewSweeper(cfg *config.Config, subs SubscriptionSource, prefs PreferenceSource, corpus Corpus, resolver FilterResolver, profiles ProfileSource, tasks Enqueuer) *Sweeper {
	return &Sweeper{
		config:        cfg,
		subscriptions: subs,
		preferences:   prefs,
		corpus:        corpus,
		resolver:      resolver,
		profiles:      profiles,
		tasks:         tasks,
		logger:        logging.GetGlobalLogger(),
	}
}

// ProcessAllSubscriptions runs one full sweep cycle and reports how many
// subscriptions were processed and how many applications were emitted.
func (s *Sweeper) ProcessAllSubscriptions(ctx context.Context) (*SweepResult, error) {
	start := time.Now()
	subs, err := s.subscriptions.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{}
	for _, sub := range subs {
		applied := s.processSubscription(ctx, sub)
		result.Processed++
		result.Applied += applied
	}

	s.logger.Info("Sweep cycle completed", map[string]interface{}{
		"processed": result.Processed,
		"applied":   result.Applied,
		"duration":  time.Since(start).String(),
	})
	return result, nil
}

func (s *Sweeper) processSubscription(ctx context.Context, sub *models.Subscription) int {
	fields := map[string]interface{}{
		"subscription_id": sub.ID,
		"owner_id":        sub.OwnerID,
	}

	profileText, err := s.profiles.LatestProfileText(ctx, sub.OwnerID)
	if err != nil {
		s.logger.Warn("No profile text for owner, skipping subscription", withError(fields, err))
		return 0
	}

	prefs, err := s.preferences.ListActiveForSubscription(ctx, sub.ID)
	if err != nil {
		s.logger.Error("Failed to list preferences", withError(fields, err))
		return 0
	}

	remaining := sub.Remaining()
	applied := 0
	for _, pref := range prefs {
		if remaining == 0 {
			break
		}

		count := s.processPreference(ctx, sub, pref, profileText, remaining)
		applied += count
		if remaining > 0 {
			remaining -= count
		}
	}

	return applied
}

// processPreference enqueues up to quota application tasks for one
// preference. remaining < 0 means unlimited. Preference counters advance at
// enqueue time; the workers resolve any races against the durable
// constraints.
func (s *Sweeper) processPreference(ctx context.Context, sub *models.Subscription, pref *models.Preference, profileText string, remaining int) int {
	fields := map[string]interface{}{
		"subscription_id": sub.ID,
		"preference_id":   pref.ID,
		"owner_id":        pref.OwnerID,
	}

	filter := s.resolveFilter(ctx, pref)

	since := time.Now().Add(-s.config.Scheduler.Lookback)
	if pref.LastJobAppliedAt != nil {
		since = *pref.LastJobAppliedAt
	}

	limit := s.config.Scheduler.BatchSize
	if remaining > 0 && remaining < limit {
		limit = remaining
	}

	location := pref.Location
	if pref.Remote {
		location = "remote"
	}

	postings, err := s.corpus.FindUnseen(ctx, pref.OwnerID, filter, location, since, limit)
	if err != nil {
		s.logger.Error("Corpus query failed for preference", withError(fields, err))
		return 0
	}

	include, exclude := compileTermPatterns(filter)
	applied := 0
	for _, posting := range postings {
		if remaining >= 0 && applied >= remaining {
			break
		}
		if !passesStrictFilter(posting, include, exclude) {
			continue
		}

		// High priority so dispatch lands before its scoring follow-up.
		// Duplicate submissions are resolved by the workers against the
		// owner+posting constraint.
		_, err := s.tasks.Enqueue(ctx, queue.TaskApplicationSubmit, &pipeline.SubmitPayload{
			OwnerID:        pref.OwnerID,
			PostingID:      posting.ID,
			ProfileText:    profileText,
			SubscriptionID: sub.ID,
		}, queue.PriorityHigh, 0)
		if err != nil {
			s.logger.Error("Failed to enqueue application task", withError(fields, err))
			continue
		}
		applied++
	}

	if applied > 0 {
		if err := s.preferences.RecordApplied(ctx, pref.ID, applied, time.Now()); err != nil {
			s.logger.Error("Failed to record preference counters", withError(fields, err))
		}
	}

	return applied
}

// resolveFilter reuses the preference's cached filter when present; otherwise
// it expands the preference's query and caches the result for later sweeps.
func (s *Sweeper) resolveFilter(ctx context.Context, pref *models.Preference) *models.StructuredFilter {
	if pref.CachedFilter != nil {
		return pref.CachedFilter
	}

	filter := s.resolver.Expand(ctx, pref.Label, pref.Category)
	if err := s.preferences.SaveFilter(ctx, pref.ID, filter); err != nil {
		s.logger.Warn("Failed to cache preference filter", map[string]interface{}{
			"preference_id": pref.ID,
			"error":         err.Error(),
		})
	}

	pref.CachedFilter = filter
	return filter
}

// compileTermPatterns builds word-boundary matchers for the filter terms so
// "java" does not match "javascript".
func compileTermPatterns(filter *models.StructuredFilter) (include, exclude []*regexp.Regexp) {
	for _, term := range filter.MustInclude {
		if re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`); err == nil {
			include = append(include, re)
		}
	}
	for _, term := range filter.MustExclude {
		if re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`); err == nil {
			exclude = append(exclude, re)
		}
	}
	return include, exclude
}

// passesStrictFilter applies the unattended-submission bar: at least two
// distinct include terms physically present in title+description, and no
// exclude term anywhere in them. This is stricter than the interactive
// ranking query; filters that cannot meet the bar produce no unattended
// submissions.
func passesStrictFilter(posting *models.Posting, include, exclude []*regexp.Regexp) bool {
	if len(include) < strictIncludeBar {
		return false
	}

	text := posting.Title + " " + posting.Description

	for _, re := range exclude {
		if re.MatchString(text) {
			return false
		}
	}

	matched := 0
	for _, re := range include {
		if re.MatchString(text) {
			matched++
			if matched >= strictIncludeBar {
				return true
			}
		}
	}
	return false
}

func withError(fields map[string]interface{}, err error) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["error"] = err.Error()
	return out
}
