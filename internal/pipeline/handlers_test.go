package pipeline

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"applyflow/internal/digest"
	"applyflow/internal/notify"
	"applyflow/internal/queue"
	"applyflow/pkg/models"
	"applyflow/pkg/utils"
)

func submitTask(t *testing.T, payload *SubmitPayload) *queue.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &queue.Task{ID: "task-1", Type: queue.TaskApplicationSubmit, Payload: data}
}

func TestSubmitTaskDispatchesApplication(t *testing.T) {
	apps := newFakeAppRepo()
	d := NewDispatcher(apps, &fakePostingReader{posting: hiringPosting()}, &fakeDigestTracker{batchID: "b"}, &fakeEnqueuer{}, &fakeQuota{ok: true})
	handler := submitHandler(d)

	task := submitTask(t, &SubmitPayload{
		OwnerID:        "owner-1",
		PostingID:      "p1",
		ProfileText:    "cv text",
		SubscriptionID: "sub-1",
	})
	if err := handler(context.Background(), task); err != nil {
		t.Fatalf("handler failed: %v", err)
	}

	if len(apps.inserted) != 1 {
		t.Fatalf("inserted %d applications, want 1", len(apps.inserted))
	}
	app := apps.inserted[0]
	if app.OwnerID != "owner-1" || app.PostingID != "p1" || app.ProfileText != "cv text" {
		t.Errorf("application = %+v, payload fields not carried over", app)
	}
}

func TestSubmitTaskRedeliveryOfDuplicateCountsAsDone(t *testing.T) {
	// A second delivery of the same task, or a second sweep over the same
	// window, hits the owner+posting constraint. That is a success, not a
	// retryable failure.
	apps := newFakeAppRepo()
	apps.insertErr = utils.ErrDuplicateApplication
	d := NewDispatcher(apps, &fakePostingReader{posting: hiringPosting()}, &fakeDigestTracker{batchID: "b"}, &fakeEnqueuer{}, &fakeQuota{ok: true})
	handler := submitHandler(d)

	task := submitTask(t, &SubmitPayload{OwnerID: "owner-1", PostingID: "p1", ProfileText: "cv"})
	if err := handler(context.Background(), task); err != nil {
		t.Fatalf("duplicate delivery must not error: %v", err)
	}
}

func TestSubmitTaskUndecodablePayloadErrors(t *testing.T) {
	d := NewDispatcher(newFakeAppRepo(), &fakePostingReader{posting: hiringPosting()}, &fakeDigestTracker{batchID: "b"}, &fakeEnqueuer{}, &fakeQuota{ok: true})
	handler := submitHandler(d)

	task := &queue.Task{ID: "task-1", Type: queue.TaskApplicationSubmit, Payload: json.RawMessage(`{broken`)}
	if err := handler(context.Background(), task); err == nil {
		t.Fatal("expected decode error")
	}
}

type flushBatchRepo struct {
	unsent []*models.DigestBatch
	marked int
}

func (f *flushBatchRepo) Track(_ context.Context, _, _, _, _ string, _ time.Time) (string, error) {
	return "b", nil
}

func (f *flushBatchRepo) ListUnsent(_ context.Context, _ time.Time) ([]*models.DigestBatch, error) {
	return f.unsent, nil
}

func (f *flushBatchRepo) MarkSent(_ context.Context, _ string, _ time.Time) (bool, error) {
	f.marked++
	return true, nil
}

type flushPostings struct{}

func (flushPostings) GetByID(_ context.Context, id string) (*models.Posting, error) {
	return &models.Posting{ID: id, Title: "Accountant"}, nil
}

type flushSender struct {
	sent int
}

func (f *flushSender) Send(_ context.Context, _ *notify.Notification) error {
	f.sent++
	return nil
}

func TestFlushTaskDeliversUnsentBatches(t *testing.T) {
	repo := &flushBatchRepo{unsent: []*models.DigestBatch{{
		ID:               "batch-1",
		Recipient:        "hr@example.com",
		PostingID:        "p1",
		BatchDate:        time.Now().UTC().Truncate(24 * time.Hour),
		ApplicationIDs:   []string{"app-1"},
		ApplicationCount: 1,
	}}}
	sender := &flushSender{}
	batcher := digest.NewBatcher(repo, flushPostings{}, sender)
	handler := flushHandler(batcher)

	task := &queue.Task{ID: "task-1", Type: queue.TaskDigestFlush, Payload: json.RawMessage(`null`)}
	if err := handler(context.Background(), task); err != nil {
		t.Fatalf("flush handler failed: %v", err)
	}
	if sender.sent != 1 || repo.marked != 1 {
		t.Errorf("sent = %d marked = %d, want 1 and 1", sender.sent, repo.marked)
	}
}
