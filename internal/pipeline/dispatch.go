// Package pipeline implements application dispatch: persisting the
// Application record and fanning out its side effects.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"applyflow/internal/logging"
	"applyflow/internal/queue"
	"applyflow/pkg/models"
	"applyflow/pkg/utils"
)

// SubmitRequest carries everything needed to dispatch one application.
// SubscriptionID is empty for interactive submissions, which bypass quota
// accounting.
type SubmitRequest struct {
	OwnerID        string
	PostingID      string
	ProfileText    string
	ContactName    string
	ContactEmail   string
	ContactPhone   string
	SubscriptionID string
}

// ScorePayload is the score.compute task body.
type ScorePayload struct {
	ApplicationID string `json:"application_id"`
	OwnerID       string `json:"owner_id"`
	PostingID     string `json:"posting_id"`
	ProfileText   string `json:"profile_text"`
}

// ApplicationRepo is the persistence surface for applications.
type ApplicationRepo interface {
	Insert(ctx context.Context, app *models.Application) error
	UpdateStatus(ctx context.Context, id string, status models.ApplicationStatus) error
	MarkInDigest(ctx context.Context, id, digestID string) error
}

// PostingReader resolves the posting an application targets.
type PostingReader interface {
	GetByID(ctx context.Context, id string) (*models.Posting, error)
}

// DigestTracker registers applications for the recipient's daily digest.
type DigestTracker interface {
	Track(ctx context.Context, recipient, postingID, applicationID string) (string, error)
}

// Enqueuer pushes follow-up tasks onto the work queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, taskType string, payload interface{}, priority queue.Priority, delay time.Duration) (string, error)
}

// QuotaCounter guards the subscription's applied-jobs cap.
type QuotaCounter interface {
	TryIncrementJobsApplied(ctx context.Context, subscriptionID string) (bool, error)
}

// Dispatcher runs the submit pipeline. Step 1 (the insert) is the source of
// truth; the digest registration, scoring enqueue and counter increment are
// best-effort side effects whose failures are logged, not propagated.
type Dispatcher struct {
	apps     ApplicationRepo
	postings PostingReader
	digests  DigestTracker
	tasks    Enqueuer
	quota    QuotaCounter
	logger   logging.Logger
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(apps ApplicationRepo, postings PostingReader, digests DigestTracker, tasks Enqueuer, quota QuotaCounter) *Dispatcher {
	return &Dispatcher{
		apps:     apps,
		postings: postings,
		digests:  digests,
		tasks:    tasks,
		quota:    quota,
		logger:   logging.GetGlobalLogger(),
	}
}

// Submit dispatches one application. Returns utils.ErrDuplicateApplication
// when the owner already applied to the posting; side effects run only after
// a fresh insert.
func (d *Dispatcher) Submit(ctx context.Context, req *SubmitRequest) (*models.Application, error) {
	app := &models.Application{
		ID:           uuid.New().String(),
		OwnerID:      req.OwnerID,
		PostingID:    req.PostingID,
		ProfileText:  req.ProfileText,
		Status:       models.ApplicationQueued,
		ContactName:  req.ContactName,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
		CreatedAt:    time.Now(),
	}

	if err := d.apps.Insert(ctx, app); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{
		"application_id": app.ID,
		"owner_id":       req.OwnerID,
		"posting_id":     req.PostingID,
	}
	d.logger.Info("Application persisted", fields)

	d.trackDigest(ctx, app, fields)
	d.enqueueScoring(ctx, app, fields)
	d.recordQuota(ctx, req, fields)

	if err := d.apps.UpdateStatus(ctx, app.ID, models.ApplicationApplied); err != nil {
		d.logger.Error("Failed to mark application applied", withError(fields, err))
	} else {
		app.Status = models.ApplicationApplied
	}

	return app, nil
}

func (d *Dispatcher) trackDigest(ctx context.Context, app *models.Application, fields map[string]interface{}) {
	posting, err := d.postings.GetByID(ctx, app.PostingID)
	if err != nil {
		d.logger.Error("Failed to resolve posting for digest", withError(fields, err))
		return
	}
	if posting.Email == "" {
		d.logger.Warn("Posting has no recipient email, skipping digest", fields)
		return
	}

	batchID, err := d.digests.Track(ctx, posting.Email, app.PostingID, app.ID)
	if err != nil {
		d.logger.Error("Failed to track application for digest", withError(fields, err))
		return
	}

	if err := d.apps.MarkInDigest(ctx, app.ID, batchID); err != nil {
		d.logger.Error("Failed to mark application in digest", withError(fields, err))
	}
}

func (d *Dispatcher) enqueueScoring(ctx context.Context, app *models.Application, fields map[string]interface{}) {
	payload := &ScorePayload{
		ApplicationID: app.ID,
		OwnerID:       app.OwnerID,
		PostingID:     app.PostingID,
		ProfileText:   app.ProfileText,
	}

	if _, err := d.tasks.Enqueue(ctx, queue.TaskScoreCompute, payload, queue.PriorityDefault, 0); err != nil {
		d.logger.Error("Failed to enqueue scoring task", withError(fields, err))
	}
}

func (d *Dispatcher) recordQuota(ctx context.Context, req *SubmitRequest, fields map[string]interface{}) {
	if req.SubscriptionID == "" {
		return
	}

	ok, err := d.quota.TryIncrementJobsApplied(ctx, req.SubscriptionID)
	if err != nil {
		d.logger.Error("Failed to increment subscription counter", withError(fields, err))
		return
	}
	if !ok {
		d.logger.Warn("Subscription quota already at cap", withError(map[string]interface{}{
			"subscription_id": req.SubscriptionID,
		}, utils.ErrQuotaExhausted))
	}
}

func withError(fields map[string]interface{}, err error) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["error"] = err.Error()
	return out
}
