package expansion

import (
	"context"
	"strings"

	"applyflow/internal/logging"
	"applyflow/pkg/models"
	"applyflow/pkg/utils"
)

// minWordLen is the shortest word the naive tokenizer keeps.
const minWordLen = 4

// FastCache is the key-value cache tier (Redis-backed in production).
type FastCache interface {
	GetExpansion(ctx context.Context, query, category string) (*models.StructuredFilter, error)
	SetExpansion(ctx context.Context, query, category string, filter *models.StructuredFilter) error
}

// DurableCache is the relational cache tier. Get honors the 7-day expiry and
// increments the hit counter; a stale or missing row returns (nil, nil).
type DurableCache interface {
	Get(ctx context.Context, query, category string) (*models.StructuredFilter, error)
	Put(ctx context.Context, query, category string, filter *models.StructuredFilter) error
}

// ModelClient is the bounded-wait AI expansion path.
type ModelClient interface {
	ExpandQuery(ctx context.Context, query, category string) (*models.StructuredFilter, error)
}

// Strategy is one stage of the expansion chain. ok=false passes control to
// the next stage.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, query, category string) (*models.StructuredFilter, bool)
}

// Expander resolves user queries into structured filters through an ordered
// strategy chain: dictionary, cache tiers, AI model, naive tokenizer. It
// never fails: the tokenizer stage always produces a usable filter.
type Expander struct {
	strategies []Strategy
	fast       FastCache
	durable    DurableCache
	model      ModelClient
	threshold  float64
	logger     logging.Logger
}

// Option configures an Expander.
type Option func(*Expander)

// WithFastCache attaches the key-value cache tier.
func WithFastCache(c FastCache) Option {
	return func(e *Expander) { e.fast = c }
}

// WithDurableCache attaches the relational cache tier.
func WithDurableCache(c DurableCache) Option {
	return func(e *Expander) { e.durable = c }
}

// WithModel attaches the AI expansion stage.
func WithModel(m ModelClient) Option {
	return func(e *Expander) { e.model = m }
}

// WithConfidenceThreshold sets the minimum confidence a cached filter needs
// to be served without consulting a later stage.
func WithConfidenceThreshold(t float64) Option {
	return func(e *Expander) { e.threshold = t }
}

// NewExpander builds the expansion chain. The dictionary stage is always
// present; cache and model stages join the chain only when their
// dependencies are supplied, and the tokenizer stage always terminates it.
func NewExpander(dict Matcher, opts ...Option) *Expander {
	e := &Expander{logger: logging.GetGlobalLogger()}
	for _, opt := range opts {
		opt(e)
	}

	e.strategies = append(e.strategies, &dictionaryStrategy{dict: dict})
	if e.fast != nil || e.durable != nil {
		e.strategies = append(e.strategies, &cacheStrategy{fast: e.fast, durable: e.durable, threshold: e.threshold, logger: e.logger})
	}
	if e.model != nil {
		e.strategies = append(e.strategies, &modelStrategy{model: e.model, logger: e.logger})
	}
	e.strategies = append(e.strategies, &tokenizerStrategy{})

	return e
}

// Expand resolves a query into a structured filter. It never returns an
// error: on a full miss the naive tokenizer produces a low-confidence filter.
// Non-dictionary results are written back to both cache tiers (best-effort).
func (e *Expander) Expand(ctx context.Context, query, category string) *models.StructuredFilter {
	normalized := models.NormalizeQuery(query)

	for _, strategy := range e.strategies {
		filter, ok := strategy.Resolve(ctx, normalized, category)
		if !ok {
			continue
		}

		e.logger.Debug("Query expanded", map[string]interface{}{
			"query":      normalized,
			"strategy":   strategy.Name(),
			"source":     string(filter.Source),
			"confidence": filter.Confidence,
		})

		if filter.Source != models.FilterSourceRule && filter.Source != models.FilterSourceCache {
			e.writeBack(ctx, normalized, category, filter)
		}

		return filter
	}

	// Unreachable: the tokenizer stage always resolves.
	return naiveTokenize(normalized)
}

func (e *Expander) writeBack(ctx context.Context, query, category string, filter *models.StructuredFilter) {
	if e.fast != nil {
		if err := e.fast.SetExpansion(ctx, query, category, filter); err != nil {
			e.logger.Warn("Failed to write expansion to fast cache", map[string]interface{}{
				"query": query,
				"error": err.Error(),
			})
		}
	}
	if e.durable != nil {
		if err := e.durable.Put(ctx, query, category, filter); err != nil {
			e.logger.Warn("Failed to write expansion to durable cache", map[string]interface{}{
				"query": query,
				"error": err.Error(),
			})
		}
	}
}

// dictionaryStrategy serves pre-authored expansions from domain knowledge.
type dictionaryStrategy struct {
	dict Matcher
}

func (s *dictionaryStrategy) Name() string { return "dictionary" }

func (s *dictionaryStrategy) Resolve(_ context.Context, query, _ string) (*models.StructuredFilter, bool) {
	entry, _, ok := s.dict.Match(query)
	if !ok {
		return nil, false
	}

	return &models.StructuredFilter{
		MustInclude: append([]string(nil), entry.Includes...),
		MustExclude: append([]string(nil), entry.Excludes...),
		Related:     append([]string(nil), entry.Related...),
		BoostTerms:  append([]string(nil), entry.Boosts...),
		Confidence:  0.9,
		Source:      models.FilterSourceRule,
	}, true
}

// cacheStrategy consults the fast tier first, then the durable tier. A
// durable hit is promoted back into the fast tier. Hits below the confidence
// threshold are treated as misses so a later stage can produce a better
// filter.
type cacheStrategy struct {
	fast      FastCache
	durable   DurableCache
	threshold float64
	logger    logging.Logger
}

func (s *cacheStrategy) Name() string { return "cache" }

func (s *cacheStrategy) Resolve(ctx context.Context, query, category string) (*models.StructuredFilter, bool) {
	if s.fast != nil {
		filter, err := s.fast.GetExpansion(ctx, query, category)
		if err != nil {
			s.logger.Warn("Fast cache lookup failed", map[string]interface{}{
				"query": query,
				"error": err.Error(),
			})
		} else if filter.IsUsable(s.threshold) {
			filter.Source = models.FilterSourceCache
			return filter, true
		}
	}

	if s.durable != nil {
		filter, err := s.durable.Get(ctx, query, category)
		if err != nil {
			s.logger.Warn("Durable cache lookup failed", map[string]interface{}{
				"query": query,
				"error": err.Error(),
			})
		} else if filter.IsUsable(s.threshold) {
			filter.Source = models.FilterSourceCache
			if s.fast != nil {
				_ = s.fast.SetExpansion(ctx, query, category, filter)
			}
			return filter, true
		}
	}

	return nil, false
}

// modelStrategy delegates to the AI service with a bounded wait. Timeouts and
// malformed payloads pass control to the tokenizer.
type modelStrategy struct {
	model  ModelClient
	logger logging.Logger
}

func (s *modelStrategy) Name() string { return "model" }

func (s *modelStrategy) Resolve(ctx context.Context, query, category string) (*models.StructuredFilter, bool) {
	filter, err := s.model.ExpandQuery(ctx, query, category)
	if err != nil {
		s.logger.Warn("AI query expansion failed, falling back to tokenizer", map[string]interface{}{
			"query": query,
			"error": err.Error(),
		})
		return nil, false
	}

	filter.Confidence = 0.85
	filter.Source = models.FilterSourceModel
	return filter, true
}

// tokenizerStrategy is the terminal stage: every word longer than three
// characters becomes an include and boost term.
type tokenizerStrategy struct{}

func (s *tokenizerStrategy) Name() string { return "tokenizer" }

func (s *tokenizerStrategy) Resolve(_ context.Context, query, _ string) (*models.StructuredFilter, bool) {
	return naiveTokenize(query), true
}

func naiveTokenize(query string) *models.StructuredFilter {
	var terms []string
	for _, word := range strings.Fields(query) {
		if len(word) >= minWordLen {
			terms = append(terms, word)
		}
	}
	terms = utils.Dedupe(terms)

	return &models.StructuredFilter{
		MustInclude: terms,
		BoostTerms:  append([]string(nil), terms...),
		Confidence:  0.5,
		Source:      models.FilterSourceFallback,
	}
}
