package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"applyflow/internal/config"
	"applyflow/internal/pipeline"
	"applyflow/internal/queue"
	"applyflow/pkg/models"
)

type fakeSubs struct {
	subs []*models.Subscription
}

func (f *fakeSubs) ListActive(_ context.Context) ([]*models.Subscription, error) {
	return f.subs, nil
}

type fakePrefs struct {
	prefs        map[string][]*models.Preference
	savedFilters int
	recorded     map[string]int
}

func (f *fakePrefs) ListActiveForSubscription(_ context.Context, subscriptionID string) ([]*models.Preference, error) {
	return f.prefs[subscriptionID], nil
}

func (f *fakePrefs) SaveFilter(_ context.Context, _ string, _ *models.StructuredFilter) error {
	f.savedFilters++
	return nil
}

func (f *fakePrefs) RecordApplied(_ context.Context, preferenceID string, count int, _ time.Time) error {
	if f.recorded == nil {
		f.recorded = make(map[string]int)
	}
	f.recorded[preferenceID] += count
	return nil
}

type fakeCorpus struct {
	find func(ownerID string, filter *models.StructuredFilter) ([]*models.Posting, error)
}

func (f *fakeCorpus) FindUnseen(_ context.Context, ownerID string, filter *models.StructuredFilter, _ string, _ time.Time, _ int) ([]*models.Posting, error) {
	return f.find(ownerID, filter)
}

type fakeResolver struct {
	filter *models.StructuredFilter
	calls  int
}

func (f *fakeResolver) Expand(_ context.Context, _, _ string) *models.StructuredFilter {
	f.calls++
	return f.filter
}

type fakeProfiles struct {
	text string
	err  error
}

func (f *fakeProfiles) LatestProfileText(_ context.Context, _ string) (string, error) {
	return f.text, f.err
}

type fakeTasks struct {
	types    []string
	payloads []*pipeline.SubmitPayload
	err      error
}

func (f *fakeTasks) Enqueue(_ context.Context, taskType string, payload interface{}, _ queue.Priority, _ time.Duration) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.types = append(f.types, taskType)
	if p, ok := payload.(*pipeline.SubmitPayload); ok {
		f.payloads = append(f.payloads, p)
	}
	return "task-1", nil
}

func sweepConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Scheduler.BatchSize = 20
	cfg.Scheduler.Lookback = 24 * time.Hour
	return cfg
}

func reactFilter() *models.StructuredFilter {
	return &models.StructuredFilter{
		MustInclude: []string{"react", "frontend"},
		MustExclude: []string{"java"},
	}
}

func matchingPosting(id string) *models.Posting {
	return &models.Posting{
		ID:          id,
		Title:       "React Frontend Engineer",
		Description: "Build frontend interfaces with React",
	}
}

func basicSub(applied int) *models.Subscription {
	return &models.Subscription{
		ID:          "sub-1",
		OwnerID:     "owner-1",
		Tier:        models.TierBasic,
		MaxJobs:     10,
		JobsApplied: applied,
		Status:      models.SubscriptionActive,
		ValidUntil:  time.Now().Add(24 * time.Hour),
	}
}

func watchPref(id string) *models.Preference {
	return &models.Preference{
		ID:             id,
		SubscriptionID: "sub-1",
		OwnerID:        "owner-1",
		Category:       "tech",
		Label:          "react developer",
		CachedFilter:   reactFilter(),
		Active:         true,
	}
}

func TestSweepRespectsRemainingQuota(t *testing.T) {
	// One slot left; five matching postings must yield exactly one task.
	sub := basicSub(9)
	prefs := &fakePrefs{prefs: map[string][]*models.Preference{
		"sub-1": {watchPref("pref-1")},
	}}
	corpus := &fakeCorpus{find: func(_ string, _ *models.StructuredFilter) ([]*models.Posting, error) {
		return []*models.Posting{
			matchingPosting("p1"), matchingPosting("p2"), matchingPosting("p3"),
			matchingPosting("p4"), matchingPosting("p5"),
		}, nil
	}}
	tasks := &fakeTasks{}

	s := NewSweeper(sweepConfig(), &fakeSubs{subs: []*models.Subscription{sub}}, prefs, corpus, &fakeResolver{}, &fakeProfiles{text: "cv"}, tasks)

	result, err := s.ProcessAllSubscriptions(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if result.Applied != 1 {
		t.Errorf("applied = %d, want exactly 1", result.Applied)
	}
	if len(tasks.payloads) != 1 {
		t.Fatalf("enqueued %d tasks, want 1", len(tasks.payloads))
	}
	if tasks.payloads[0].SubscriptionID != "sub-1" {
		t.Errorf("task should carry the subscription id")
	}
	if prefs.recorded["pref-1"] != 1 {
		t.Errorf("recorded = %d, want 1", prefs.recorded["pref-1"])
	}
}

func TestSweepEnqueuesApplicationSubmitTasks(t *testing.T) {
	sub := basicSub(0)
	prefs := &fakePrefs{prefs: map[string][]*models.Preference{
		"sub-1": {watchPref("pref-1")},
	}}
	corpus := &fakeCorpus{find: func(_ string, _ *models.StructuredFilter) ([]*models.Posting, error) {
		return []*models.Posting{matchingPosting("p1")}, nil
	}}
	tasks := &fakeTasks{}

	s := NewSweeper(sweepConfig(), &fakeSubs{subs: []*models.Subscription{sub}}, prefs, corpus, &fakeResolver{}, &fakeProfiles{text: "cv text"}, tasks)

	if _, err := s.ProcessAllSubscriptions(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	if len(tasks.types) != 1 || tasks.types[0] != queue.TaskApplicationSubmit {
		t.Fatalf("task types = %v, want one %s", tasks.types, queue.TaskApplicationSubmit)
	}
	p := tasks.payloads[0]
	if p.OwnerID != "owner-1" || p.PostingID != "p1" || p.ProfileText != "cv text" {
		t.Errorf("payload = %+v, want owner, posting and profile text carried over", p)
	}
}

func TestSweepUnlimitedTierAppliesAll(t *testing.T) {
	sub := basicSub(0)
	sub.Tier = models.TierUnlimited
	prefs := &fakePrefs{prefs: map[string][]*models.Preference{
		"sub-1": {watchPref("pref-1")},
	}}
	corpus := &fakeCorpus{find: func(_ string, _ *models.StructuredFilter) ([]*models.Posting, error) {
		return []*models.Posting{matchingPosting("p1"), matchingPosting("p2"), matchingPosting("p3")}, nil
	}}
	tasks := &fakeTasks{}

	s := NewSweeper(sweepConfig(), &fakeSubs{subs: []*models.Subscription{sub}}, prefs, corpus, &fakeResolver{}, &fakeProfiles{text: "cv"}, tasks)

	result, err := s.ProcessAllSubscriptions(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if result.Applied != 3 {
		t.Errorf("applied = %d, want 3", result.Applied)
	}
}

func TestSweepEnqueueFailureNotCounted(t *testing.T) {
	sub := basicSub(0)
	prefs := &fakePrefs{prefs: map[string][]*models.Preference{
		"sub-1": {watchPref("pref-1")},
	}}
	corpus := &fakeCorpus{find: func(_ string, _ *models.StructuredFilter) ([]*models.Posting, error) {
		return []*models.Posting{matchingPosting("p1")}, nil
	}}
	tasks := &fakeTasks{err: errors.New("redis down")}

	s := NewSweeper(sweepConfig(), &fakeSubs{subs: []*models.Subscription{sub}}, prefs, corpus, &fakeResolver{}, &fakeProfiles{text: "cv"}, tasks)

	result, err := s.ProcessAllSubscriptions(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if result.Applied != 0 {
		t.Errorf("applied = %d, failed enqueues must not count", result.Applied)
	}
	if len(prefs.recorded) != 0 {
		t.Errorf("counters recorded without a single enqueued task: %v", prefs.recorded)
	}
}

func TestSweepIsolatesPreferenceFailures(t *testing.T) {
	sub := basicSub(0)
	broken := watchPref("pref-broken")
	working := watchPref("pref-working")
	prefs := &fakePrefs{prefs: map[string][]*models.Preference{
		"sub-1": {broken, working},
	}}

	calls := 0
	corpus := &fakeCorpus{find: func(_ string, _ *models.StructuredFilter) ([]*models.Posting, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("corpus unavailable")
		}
		return []*models.Posting{matchingPosting("p1")}, nil
	}}
	tasks := &fakeTasks{}

	s := NewSweeper(sweepConfig(), &fakeSubs{subs: []*models.Subscription{sub}}, prefs, corpus, &fakeResolver{}, &fakeProfiles{text: "cv"}, tasks)

	result, err := s.ProcessAllSubscriptions(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if result.Applied != 1 {
		t.Errorf("applied = %d, sibling preference should still be processed", result.Applied)
	}
}

func TestSweepStrictFilterRejectsExcludedAndWeakMatches(t *testing.T) {
	sub := basicSub(0)
	prefs := &fakePrefs{prefs: map[string][]*models.Preference{
		"sub-1": {watchPref("pref-1")},
	}}
	corpus := &fakeCorpus{find: func(_ string, _ *models.StructuredFilter) ([]*models.Posting, error) {
		return []*models.Posting{
			{ID: "excluded", Title: "Java Backend Engineer", Description: "React and frontend mentioned too"},
			{ID: "weak", Title: "React Engineer", Description: "UI work"},
			{ID: "good", Title: "React Frontend Engineer", Description: "Modern frontend stack"},
		}, nil
	}}
	tasks := &fakeTasks{}

	s := NewSweeper(sweepConfig(), &fakeSubs{subs: []*models.Subscription{sub}}, prefs, corpus, &fakeResolver{}, &fakeProfiles{text: "cv"}, tasks)

	if _, err := s.ProcessAllSubscriptions(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	if len(tasks.payloads) != 1 {
		t.Fatalf("enqueued %d tasks, want 1: %+v", len(tasks.payloads), tasks.payloads)
	}
	if tasks.payloads[0].PostingID != "good" {
		t.Errorf("enqueued %q, want the posting carrying both include terms and no exclude term", tasks.payloads[0].PostingID)
	}
}

func TestSweepSkipsFiltersBelowIncludeBar(t *testing.T) {
	sub := basicSub(0)
	pref := watchPref("pref-1")
	pref.CachedFilter = &models.StructuredFilter{MustInclude: []string{"nurse"}}
	prefs := &fakePrefs{prefs: map[string][]*models.Preference{
		"sub-1": {pref},
	}}
	corpus := &fakeCorpus{find: func(_ string, _ *models.StructuredFilter) ([]*models.Posting, error) {
		return []*models.Posting{
			{ID: "p1", Title: "Registered Nurse", Description: "Nurse position"},
		}, nil
	}}
	tasks := &fakeTasks{}

	s := NewSweeper(sweepConfig(), &fakeSubs{subs: []*models.Subscription{sub}}, prefs, corpus, &fakeResolver{}, &fakeProfiles{text: "cv"}, tasks)

	result, err := s.ProcessAllSubscriptions(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if result.Applied != 0 || len(tasks.payloads) != 0 {
		t.Errorf("single-term filter must never trigger unattended submission, got %d", len(tasks.payloads))
	}
}

func TestSweepReusesCachedFilter(t *testing.T) {
	sub := basicSub(0)
	prefs := &fakePrefs{prefs: map[string][]*models.Preference{
		"sub-1": {watchPref("pref-1")},
	}}
	corpus := &fakeCorpus{find: func(_ string, _ *models.StructuredFilter) ([]*models.Posting, error) {
		return nil, nil
	}}
	resolver := &fakeResolver{filter: reactFilter()}

	s := NewSweeper(sweepConfig(), &fakeSubs{subs: []*models.Subscription{sub}}, prefs, corpus, resolver, &fakeProfiles{text: "cv"}, &fakeTasks{})

	if _, err := s.ProcessAllSubscriptions(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if resolver.calls != 0 {
		t.Errorf("resolver called %d times, cached filter should be reused", resolver.calls)
	}
	if prefs.savedFilters != 0 {
		t.Errorf("filter re-saved %d times", prefs.savedFilters)
	}
}

func TestSweepResolvesAndCachesMissingFilter(t *testing.T) {
	sub := basicSub(0)
	pref := watchPref("pref-1")
	pref.CachedFilter = nil
	prefs := &fakePrefs{prefs: map[string][]*models.Preference{
		"sub-1": {pref},
	}}
	corpus := &fakeCorpus{find: func(_ string, filter *models.StructuredFilter) ([]*models.Posting, error) {
		if filter == nil || len(filter.MustInclude) == 0 {
			t.Error("corpus should receive the resolved filter")
		}
		return nil, nil
	}}
	resolver := &fakeResolver{filter: reactFilter()}

	s := NewSweeper(sweepConfig(), &fakeSubs{subs: []*models.Subscription{sub}}, prefs, corpus, resolver, &fakeProfiles{text: "cv"}, &fakeTasks{})

	if _, err := s.ProcessAllSubscriptions(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if resolver.calls != 1 {
		t.Errorf("resolver calls = %d, want 1", resolver.calls)
	}
	if prefs.savedFilters != 1 {
		t.Errorf("saved filters = %d, want 1", prefs.savedFilters)
	}
}

func TestSweepSkipsOwnerWithoutProfile(t *testing.T) {
	sub := basicSub(0)
	prefs := &fakePrefs{prefs: map[string][]*models.Preference{
		"sub-1": {watchPref("pref-1")},
	}}
	corpus := &fakeCorpus{find: func(_ string, _ *models.StructuredFilter) ([]*models.Posting, error) {
		t.Error("corpus must not be queried when the owner has no profile")
		return nil, nil
	}}

	s := NewSweeper(sweepConfig(), &fakeSubs{subs: []*models.Subscription{sub}}, prefs, corpus, &fakeResolver{}, &fakeProfiles{err: errors.New("not found")}, &fakeTasks{})

	result, err := s.ProcessAllSubscriptions(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if result.Processed != 1 || result.Applied != 0 {
		t.Errorf("result = %+v, want processed 1 applied 0", result)
	}
}

func TestPassesStrictFilterWordBoundaries(t *testing.T) {
	include, exclude := compileTermPatterns(&models.StructuredFilter{
		MustInclude: []string{"react", "frontend"},
		MustExclude: []string{"java"},
	})

	// "javascript" must not trip the "java" exclusion.
	posting := &models.Posting{
		Title:       "React Frontend Developer",
		Description: "JavaScript heavy frontend role",
	}
	if !passesStrictFilter(posting, include, exclude) {
		t.Error("javascript posting wrongly rejected by java exclusion")
	}

	posting = &models.Posting{Title: "Java and React Frontend", Description: ""}
	if passesStrictFilter(posting, include, exclude) {
		t.Error("posting naming java verbatim should be rejected")
	}
}

func TestPassesStrictFilterRequiresTwoIncludeTerms(t *testing.T) {
	posting := &models.Posting{Title: "Registered Nurse", Description: "Nurse position"}

	include, exclude := compileTermPatterns(&models.StructuredFilter{MustInclude: []string{"nurse"}})
	if passesStrictFilter(posting, include, exclude) {
		t.Error("a single include term cannot meet the two-term bar")
	}

	include, exclude = compileTermPatterns(&models.StructuredFilter{})
	if passesStrictFilter(posting, include, exclude) {
		t.Error("an empty filter must never pass the unattended bar")
	}
}
