package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"applyflow/internal/queue"
	"applyflow/pkg/models"
	"applyflow/pkg/utils"
)

type fakeAppRepo struct {
	inserted  []*models.Application
	insertErr error
	statuses  map[string]models.ApplicationStatus
	digestIDs map[string]string
}

func newFakeAppRepo() *fakeAppRepo {
	return &fakeAppRepo{
		statuses:  make(map[string]models.ApplicationStatus),
		digestIDs: make(map[string]string),
	}
}

func (f *fakeAppRepo) Insert(_ context.Context, app *models.Application) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, app)
	return nil
}

func (f *fakeAppRepo) UpdateStatus(_ context.Context, id string, status models.ApplicationStatus) error {
	f.statuses[id] = status
	return nil
}

func (f *fakeAppRepo) MarkInDigest(_ context.Context, id, digestID string) error {
	f.digestIDs[id] = digestID
	return nil
}

type fakePostingReader struct {
	posting *models.Posting
	err     error
}

func (f *fakePostingReader) GetByID(_ context.Context, _ string) (*models.Posting, error) {
	return f.posting, f.err
}

type fakeDigestTracker struct {
	tracked []string
	batchID string
	err     error
}

func (f *fakeDigestTracker) Track(_ context.Context, recipient, _, applicationID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.tracked = append(f.tracked, recipient+"/"+applicationID)
	return f.batchID, nil
}

type fakeEnqueuer struct {
	taskTypes []string
	err       error
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, taskType string, _ interface{}, _ queue.Priority, _ time.Duration) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.taskTypes = append(f.taskTypes, taskType)
	return "task-1", nil
}

type fakeQuota struct {
	calls int
	ok    bool
	err   error
}

func (f *fakeQuota) TryIncrementJobsApplied(_ context.Context, _ string) (bool, error) {
	f.calls++
	return f.ok, f.err
}

func hiringPosting() *models.Posting {
	return &models.Posting{ID: "p1", Title: "Accountant", Email: "hr@example.com"}
}

func submitReq(subscriptionID string) *SubmitRequest {
	return &SubmitRequest{
		OwnerID:        "owner-1",
		PostingID:      "p1",
		ProfileText:    "cv text",
		SubscriptionID: subscriptionID,
	}
}

func TestSubmitRunsFullPipeline(t *testing.T) {
	apps := newFakeAppRepo()
	digests := &fakeDigestTracker{batchID: "batch-1"}
	tasks := &fakeEnqueuer{}
	quota := &fakeQuota{ok: true}
	d := NewDispatcher(apps, &fakePostingReader{posting: hiringPosting()}, digests, tasks, quota)

	app, err := d.Submit(context.Background(), submitReq("sub-1"))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if len(apps.inserted) != 1 {
		t.Fatalf("inserted %d applications, want 1", len(apps.inserted))
	}
	if app.Status != models.ApplicationApplied {
		t.Errorf("status = %s, want applied", app.Status)
	}
	if apps.statuses[app.ID] != models.ApplicationApplied {
		t.Errorf("persisted status = %s, want applied", apps.statuses[app.ID])
	}
	if len(digests.tracked) != 1 || digests.tracked[0] != "hr@example.com/"+app.ID {
		t.Errorf("digest tracked = %v, want recipient from the posting", digests.tracked)
	}
	if apps.digestIDs[app.ID] != "batch-1" {
		t.Errorf("digest id = %q, want batch-1", apps.digestIDs[app.ID])
	}
	if len(tasks.taskTypes) != 1 || tasks.taskTypes[0] != queue.TaskScoreCompute {
		t.Errorf("enqueued = %v, want one scoring task", tasks.taskTypes)
	}
	if quota.calls != 1 {
		t.Errorf("quota calls = %d, want 1", quota.calls)
	}
}

func TestSubmitDuplicateStopsBeforeSideEffects(t *testing.T) {
	apps := newFakeAppRepo()
	apps.insertErr = utils.ErrDuplicateApplication
	digests := &fakeDigestTracker{batchID: "batch-1"}
	tasks := &fakeEnqueuer{}
	quota := &fakeQuota{ok: true}
	d := NewDispatcher(apps, &fakePostingReader{posting: hiringPosting()}, digests, tasks, quota)

	app, err := d.Submit(context.Background(), submitReq("sub-1"))
	if !errors.Is(err, utils.ErrDuplicateApplication) {
		t.Fatalf("err = %v, want duplicate", err)
	}
	if app != nil {
		t.Error("no application should be returned for a duplicate")
	}
	if len(digests.tracked) != 0 || len(tasks.taskTypes) != 0 || quota.calls != 0 {
		t.Error("side effects must not run when the insert is rejected")
	}
}

func TestSubmitSurvivesDigestFailure(t *testing.T) {
	apps := newFakeAppRepo()
	digests := &fakeDigestTracker{err: errors.New("digest table down")}
	tasks := &fakeEnqueuer{}
	d := NewDispatcher(apps, &fakePostingReader{posting: hiringPosting()}, digests, tasks, &fakeQuota{ok: true})

	app, err := d.Submit(context.Background(), submitReq(""))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if app.Status != models.ApplicationApplied {
		t.Errorf("status = %s, digest failure must not block the application", app.Status)
	}
	if len(tasks.taskTypes) != 1 {
		t.Error("scoring should still be enqueued after a digest failure")
	}
}

func TestSubmitSkipsDigestWhenPostingHasNoEmail(t *testing.T) {
	apps := newFakeAppRepo()
	posting := hiringPosting()
	posting.Email = ""
	digests := &fakeDigestTracker{batchID: "batch-1"}
	d := NewDispatcher(apps, &fakePostingReader{posting: posting}, digests, &fakeEnqueuer{}, &fakeQuota{ok: true})

	app, err := d.Submit(context.Background(), submitReq(""))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if len(digests.tracked) != 0 {
		t.Errorf("digest tracked = %v, want none without a recipient", digests.tracked)
	}
	if app.Status != models.ApplicationApplied {
		t.Errorf("status = %s, want applied", app.Status)
	}
}

func TestSubmitInteractiveSkipsQuota(t *testing.T) {
	quota := &fakeQuota{ok: true}
	d := NewDispatcher(newFakeAppRepo(), &fakePostingReader{posting: hiringPosting()}, &fakeDigestTracker{batchID: "b"}, &fakeEnqueuer{}, quota)

	if _, err := d.Submit(context.Background(), submitReq("")); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if quota.calls != 0 {
		t.Errorf("quota calls = %d, interactive submissions bypass the counter", quota.calls)
	}
}

func TestSubmitQuotaAtCapIsNonFatal(t *testing.T) {
	quota := &fakeQuota{ok: false}
	d := NewDispatcher(newFakeAppRepo(), &fakePostingReader{posting: hiringPosting()}, &fakeDigestTracker{batchID: "b"}, &fakeEnqueuer{}, quota)

	app, err := d.Submit(context.Background(), submitReq("sub-1"))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if app.Status != models.ApplicationApplied {
		t.Errorf("status = %s, cap race is logged, not propagated", app.Status)
	}
}

func TestSubmitSurvivesEnqueueFailure(t *testing.T) {
	apps := newFakeAppRepo()
	tasks := &fakeEnqueuer{err: errors.New("redis down")}
	d := NewDispatcher(apps, &fakePostingReader{posting: hiringPosting()}, &fakeDigestTracker{batchID: "b"}, tasks, &fakeQuota{ok: true})

	app, err := d.Submit(context.Background(), submitReq(""))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if app.Status != models.ApplicationApplied {
		t.Errorf("status = %s, enqueue failure must not block the application", app.Status)
	}
}
