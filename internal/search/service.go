package search

import (
	"context"
	"fmt"

	"applyflow/internal/config"
	"applyflow/internal/logging"
	"applyflow/pkg/models"
)

// Corpus runs ranked queries against the posting table.
type Corpus interface {
	Search(ctx context.Context, filter *models.StructuredFilter, location string, limit int) ([]*models.Posting, error)
	ListByIDs(ctx context.Context, ids []string) ([]*models.Posting, error)
}

// ResultCache stores ranked posting IDs keyed by the search parameters.
type ResultCache interface {
	GetSearchResults(ctx context.Context, key string) ([]string, error)
	SetSearchResults(ctx context.Context, key string, ids []string) error
}

// FilterResolver expands the raw query into a structured filter.
type FilterResolver interface {
	Expand(ctx context.Context, query, category string) *models.StructuredFilter
}

// Result is one resolved interactive search.
type Result struct {
	Filter   *models.StructuredFilter
	Postings []*models.Posting
	Cached   bool
}

// Service is the interactive search path: expand the query, serve ranked
// results from the cache when possible, otherwise query the corpus and cache
// the ranked IDs.
type Service struct {
	config   *config.Config
	resolver FilterResolver
	corpus   Corpus
	cache    ResultCache
	logger   logging.Logger
}

// NewService constructs a search Service. cache may be nil; every search then
// hits the corpus directly.
func NewService(cfg *config.Config, resolver FilterResolver, corpus Corpus, cache ResultCache) *Service {
	return &Service{
		config:   cfg,
		resolver: resolver,
		corpus:   corpus,
		cache:    cache,
		logger:   logging.GetGlobalLogger(),
	}
}

// Search resolves one interactive search request.
func (s *Service) Search(ctx context.Context, req *models.SearchRequest) (*Result, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = s.config.Search.DefaultLimit
	}

	filter := s.resolver.Expand(ctx, req.Query, req.Category)
	key := cacheKey(req, filter, limit)

	if s.cache != nil {
		ids, err := s.cache.GetSearchResults(ctx, key)
		if err != nil {
			s.logger.Warn("Search cache lookup failed", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		} else if ids != nil {
			postings, err := s.corpus.ListByIDs(ctx, ids)
			if err == nil {
				return &Result{Filter: filter, Postings: postings, Cached: true}, nil
			}
			s.logger.Warn("Failed to rehydrate cached search results", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
	}

	postings, err := s.corpus.Search(ctx, filter, req.Location, limit)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && len(postings) > 0 {
		ids := make([]string, len(postings))
		for i, p := range postings {
			ids[i] = p.ID
		}
		if err := s.cache.SetSearchResults(ctx, key, ids); err != nil {
			s.logger.Warn("Failed to cache search results", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
	}

	return &Result{Filter: filter, Postings: postings}, nil
}

// cacheKey includes the filter source so a later higher-confidence expansion
// of the same query does not serve a stale tokenizer-built result set.
func cacheKey(req *models.SearchRequest, filter *models.StructuredFilter, limit int) string {
	return fmt.Sprintf("%s:%s:%s:%s:%d",
		req.Category, models.NormalizeQuery(req.Query), req.Location, filter.Source, limit)
}
