package expansion

import (
	"context"
	"errors"
	"testing"

	"applyflow/pkg/models"
)

type fakeFastCache struct {
	entries map[string]*models.StructuredFilter
	sets    int
}

func newFakeFastCache() *fakeFastCache {
	return &fakeFastCache{entries: make(map[string]*models.StructuredFilter)}
}

func (f *fakeFastCache) GetExpansion(_ context.Context, query, category string) (*models.StructuredFilter, error) {
	return f.entries[category+":"+query], nil
}

func (f *fakeFastCache) SetExpansion(_ context.Context, query, category string, filter *models.StructuredFilter) error {
	f.entries[category+":"+query] = filter
	f.sets++
	return nil
}

type fakeDurableCache struct {
	entries map[string]*models.StructuredFilter
	puts    int
}

func newFakeDurableCache() *fakeDurableCache {
	return &fakeDurableCache{entries: make(map[string]*models.StructuredFilter)}
}

func (f *fakeDurableCache) Get(_ context.Context, query, category string) (*models.StructuredFilter, error) {
	return f.entries[category+":"+query], nil
}

func (f *fakeDurableCache) Put(_ context.Context, query, category string, filter *models.StructuredFilter) error {
	f.entries[category+":"+query] = filter
	f.puts++
	return nil
}

type fakeModel struct {
	filter *models.StructuredFilter
	err    error
	calls  int
}

func (f *fakeModel) ExpandQuery(_ context.Context, _, _ string) (*models.StructuredFilter, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.filter, nil
}

func TestExpandDictionaryWins(t *testing.T) {
	model := &fakeModel{filter: &models.StructuredFilter{MustInclude: []string{"model"}}}
	e := NewExpander(DefaultDictionary(), WithModel(model))

	filter := e.Expand(context.Background(), "react developer", "tech")
	if filter.Source != models.FilterSourceRule {
		t.Fatalf("source = %s, want rule", filter.Source)
	}
	if filter.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", filter.Confidence)
	}
	if model.calls != 0 {
		t.Errorf("model called %d times, dictionary hit should short-circuit", model.calls)
	}
}

func TestExpandCacheBeforeModel(t *testing.T) {
	fast := newFakeFastCache()
	cached := &models.StructuredFilter{MustInclude: []string{"welding"}, Confidence: 0.85}
	fast.entries["trades:welder apprentice"] = cached

	model := &fakeModel{filter: &models.StructuredFilter{MustInclude: []string{"model"}}}
	e := NewExpander(DefaultDictionary(), WithFastCache(fast), WithModel(model))

	filter := e.Expand(context.Background(), "Welder  Apprentice", "trades")
	if filter.Source != models.FilterSourceCache {
		t.Fatalf("source = %s, want cache", filter.Source)
	}
	if model.calls != 0 {
		t.Error("model should not be consulted on a cache hit")
	}
}

func TestExpandSkipsCacheHitBelowConfidenceThreshold(t *testing.T) {
	fast := newFakeFastCache()
	fast.entries["trades:welder apprentice"] = &models.StructuredFilter{
		MustInclude: []string{"welder"},
		Confidence:  0.5,
	}
	model := &fakeModel{filter: &models.StructuredFilter{MustInclude: []string{"welding", "fabrication"}}}

	e := NewExpander(DefaultDictionary(),
		WithFastCache(fast),
		WithModel(model),
		WithConfidenceThreshold(0.8),
	)

	filter := e.Expand(context.Background(), "welder apprentice", "trades")
	if filter.Source != models.FilterSourceModel {
		t.Fatalf("source = %s, low-confidence cache hit should defer to the model", filter.Source)
	}
	if model.calls != 1 {
		t.Errorf("model calls = %d, want 1", model.calls)
	}
}

func TestExpandDurableHitPromotesToFast(t *testing.T) {
	fast := newFakeFastCache()
	durable := newFakeDurableCache()
	durable.entries["trades:welder apprentice"] = &models.StructuredFilter{MustInclude: []string{"welding"}}

	e := NewExpander(DefaultDictionary(), WithFastCache(fast), WithDurableCache(durable))

	filter := e.Expand(context.Background(), "welder apprentice", "trades")
	if filter.Source != models.FilterSourceCache {
		t.Fatalf("source = %s, want cache", filter.Source)
	}
	if fast.sets != 1 {
		t.Errorf("fast cache sets = %d, durable hit should promote once", fast.sets)
	}
}

func TestExpandModelResultWrittenBack(t *testing.T) {
	fast := newFakeFastCache()
	durable := newFakeDurableCache()
	model := &fakeModel{filter: &models.StructuredFilter{MustInclude: []string{"welding", "fabrication"}}}

	e := NewExpander(DefaultDictionary(), WithFastCache(fast), WithDurableCache(durable), WithModel(model))

	filter := e.Expand(context.Background(), "welder apprentice", "trades")
	if filter.Source != models.FilterSourceModel {
		t.Fatalf("source = %s, want model", filter.Source)
	}
	if filter.Confidence != 0.85 {
		t.Errorf("confidence = %v, want 0.85", filter.Confidence)
	}
	if fast.sets != 1 || durable.puts != 1 {
		t.Errorf("writeback counts fast=%d durable=%d, want 1 and 1", fast.sets, durable.puts)
	}
}

func TestExpandModelFailureFallsBackToTokenizer(t *testing.T) {
	model := &fakeModel{err: errors.New("deadline exceeded")}
	e := NewExpander(DefaultDictionary(), WithModel(model))

	filter := e.Expand(context.Background(), "welder apprentice role", "trades")
	if filter == nil {
		t.Fatal("Expand must never return nil")
	}
	if filter.Source != models.FilterSourceFallback {
		t.Fatalf("source = %s, want fallback", filter.Source)
	}
	if filter.Confidence != 0.5 {
		t.Errorf("confidence = %v, want 0.5", filter.Confidence)
	}
}

func TestTokenizerKeepsLongWordsOnly(t *testing.T) {
	filter := naiveTokenize("senior go dev in abuja")

	for _, term := range filter.MustInclude {
		if len(term) < minWordLen {
			t.Errorf("term %q shorter than %d chars", term, minWordLen)
		}
	}

	want := map[string]bool{"senior": true, "abuja": true}
	if len(filter.MustInclude) != len(want) {
		t.Fatalf("includes = %v, want %v", filter.MustInclude, want)
	}
	for _, term := range filter.MustInclude {
		if !want[term] {
			t.Errorf("unexpected include term %q", term)
		}
	}
}

func TestTokenizerDeduplicates(t *testing.T) {
	filter := naiveTokenize("nurse nurse nurse")
	if len(filter.MustInclude) != 1 {
		t.Errorf("includes = %v, want single deduplicated term", filter.MustInclude)
	}
}
