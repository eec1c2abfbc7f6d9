// Package digest groups applications into per-recipient daily batches and
// flushes them as single notifications.
package digest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"applyflow/internal/logging"
	"applyflow/internal/notify"
	"applyflow/pkg/models"
)

// BatchRepository is the persistence surface for digest batches.
type BatchRepository interface {
	Track(ctx context.Context, batchID, recipient, postingID, applicationID string, batchDate time.Time) (string, error)
	ListUnsent(ctx context.Context, batchDate time.Time) ([]*models.DigestBatch, error)
	MarkSent(ctx context.Context, batchID string, at time.Time) (bool, error)
}

// PostingReader resolves posting details for notification content.
type PostingReader interface {
	GetByID(ctx context.Context, id string) (*models.Posting, error)
}

// Sender delivers an assembled notification.
type Sender interface {
	Send(ctx context.Context, notification *notify.Notification) error
}

// Batcher tracks applications into batches and flushes unsent batches for a
// day. Tracking is idempotent; a batch is marked sent only after delivery
// succeeds, so a failed send is picked up again by the next flush.
type Batcher struct {
	batches  BatchRepository
	postings PostingReader
	sender   Sender
	logger   logging.Logger
}

// NewBatcher constructs a Batcher.
func NewBatcher(batches BatchRepository, postings PostingReader, sender Sender) *Batcher {
	return &Batcher{
		batches:  batches,
		postings: postings,
		sender:   sender,
		logger:   logging.GetGlobalLogger(),
	}
}

// Track folds an application into today's batch for the recipient and
// posting, returning the batch id. Safe to call more than once for the same
// application.
func (b *Batcher) Track(ctx context.Context, recipient, postingID, applicationID string) (string, error) {
	batchDate := models.BatchDay(time.Now())
	batchID, err := b.batches.Track(ctx, uuid.New().String(), recipient, postingID, applicationID, batchDate)
	if err != nil {
		return "", fmt.Errorf("track digest: %w", err)
	}

	b.logger.Debug("Application tracked for digest", map[string]interface{}{
		"batch_id":       batchID,
		"recipient":      recipient,
		"posting_id":     postingID,
		"application_id": applicationID,
	})
	return batchID, nil
}

// FlushResult summarizes one flush run.
type FlushResult struct {
	Batches int `json:"batches"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
}

// Flush delivers every unsent batch for the given day. Per-batch failures are
// isolated and logged; those batches remain unsent for the next run.
func (b *Batcher) Flush(ctx context.Context, date time.Time) (*FlushResult, error) {
	batchDate := models.BatchDay(date)
	batches, err := b.batches.ListUnsent(ctx, batchDate)
	if err != nil {
		return nil, fmt.Errorf("list unsent digests: %w", err)
	}

	result := &FlushResult{Batches: len(batches)}
	for _, batch := range batches {
		if err := b.send(ctx, batch); err != nil {
			result.Failed++
			b.logger.Error("Digest batch send failed, will retry on next flush", map[string]interface{}{
				"batch_id":  batch.ID,
				"recipient": batch.Recipient,
				"error":     err.Error(),
			})
			continue
		}
		result.Sent++
	}

	b.logger.Info("Digest flush completed", map[string]interface{}{
		"batch_date": batchDate.Format("2006-01-02"),
		"batches":    result.Batches,
		"sent":       result.Sent,
		"failed":     result.Failed,
	})
	return result, nil
}

func (b *Batcher) send(ctx context.Context, batch *models.DigestBatch) error {
	notification, err := b.assemble(ctx, batch)
	if err != nil {
		return err
	}

	if err := b.sender.Send(ctx, notification); err != nil {
		return err
	}

	sent, err := b.batches.MarkSent(ctx, batch.ID, time.Now())
	if err != nil {
		return err
	}
	if !sent {
		// A concurrent flush already delivered this batch. Nothing to undo:
		// the recipient may have received two emails, but the record stays
		// consistent.
		b.logger.Warn("Digest batch was already marked sent", map[string]interface{}{
			"batch_id": batch.ID,
		})
	}
	return nil
}

// assemble builds the recipient-facing notification referencing every batched
// application.
func (b *Batcher) assemble(ctx context.Context, batch *models.DigestBatch) (*notify.Notification, error) {
	title := "your posting"
	company := ""
	if posting, err := b.postings.GetByID(ctx, batch.PostingID); err == nil {
		title = posting.Title
		company = posting.Company
	}

	subject := fmt.Sprintf("%d new application(s) for %s", batch.ApplicationCount, title)
	body := fmt.Sprintf(
		"You received %d application(s) for %q on %s.\n\nApplication references:\n",
		batch.ApplicationCount, title, batch.BatchDate.Format("2 January 2006"))
	for _, id := range batch.ApplicationIDs {
		body += fmt.Sprintf("  - %s\n", id)
	}

	return &notify.Notification{
		BatchID:          batch.ID,
		Recipient:        batch.Recipient,
		PostingID:        batch.PostingID,
		PostingTitle:     title,
		Company:          company,
		BatchDate:        batch.BatchDate.Format("2006-01-02"),
		ApplicationCount: batch.ApplicationCount,
		Subject:          subject,
		Body:             body,
		Timestamp:        time.Now(),
	}, nil
}
