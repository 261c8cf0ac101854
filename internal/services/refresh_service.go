package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"fluidspend/internal/amqp"
	"fluidspend/internal/cache"
	"fluidspend/internal/log"
)

// Publisher forwards a refresh request to the worker.
type Publisher interface {
	PublishRefresh(ctx context.Context, sources ...string) error
}

// PriceResetter drops a memoized price quote.
type PriceResetter interface {
	Reset()
}

// RefreshResult reports what a refresh did.
type RefreshResult struct {
	Cleared   []string `json:"cleared"`
	Published bool     `json:"published"`
}

// RefreshService clears cached source data locally and notifies the worker.
type RefreshService struct {
	caches    map[string]*cache.SourceCache
	prices    []PriceResetter
	publisher Publisher
	logger    *log.Logger
}

// NewRefreshService creates the service. publisher may be nil when AMQP is
// not configured; refreshes then stay local.
func NewRefreshService(publisher Publisher) *RefreshService {
	return &RefreshService{
		caches:    make(map[string]*cache.SourceCache),
		publisher: publisher,
		logger:    log.ForComponent(log.ComponentApp),
	}
}

// RegisterCache makes the cache clearable under the given source name.
func (s *RefreshService) RegisterCache(source string, c *cache.SourceCache) *RefreshService {
	s.caches[source] = c
	return s
}

// RegisterPrice makes a price oracle resettable under the "price" source.
func (s *RefreshService) RegisterPrice(p PriceResetter) *RefreshService {
	s.prices = append(s.prices, p)
	return s
}

// Caches returns the registered caches, e.g. for the cleanup janitor.
func (s *RefreshService) Caches() []*cache.SourceCache {
	out := make([]*cache.SourceCache, 0, len(s.caches))
	for _, name := range s.sourceNames() {
		out = append(out, s.caches[name])
	}
	return out
}

// Invalidate clears the named sources, or every source when none are named.
// It returns the names that were cleared.
func (s *RefreshService) Invalidate(ctx context.Context, sources ...string) ([]string, error) {
	msg := amqp.LedgerRefreshMessage{Sources: sources}
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	var cleared []string
	var errs []error
	for _, name := range s.sourceNames() {
		if !msg.Includes(name) {
			continue
		}
		if err := s.caches[name].Invalidate(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		cleared = append(cleared, name)
	}
	if msg.Includes(amqp.SourcePrice) && len(s.prices) > 0 {
		for _, p := range s.prices {
			p.Reset()
		}
		cleared = append(cleared, amqp.SourcePrice)
	}

	s.logger.InfoContext(ctx, "Invalidated cached data",
		log.FieldOperation, log.OpInvalidate,
		"cleared", cleared)
	return cleared, errors.Join(errs...)
}

// Refresh invalidates locally, then publishes the request. A publish failure
// is logged and does not fail the refresh: local caches are already clear.
func (s *RefreshService) Refresh(ctx context.Context, sources ...string) (RefreshResult, error) {
	cleared, err := s.Invalidate(ctx, sources...)
	if err != nil {
		return RefreshResult{Cleared: cleared}, err
	}
	res := RefreshResult{Cleared: cleared}

	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP client not available, refresh stays local")
		return res, nil
	}
	if err := s.publisher.PublishRefresh(ctx, sources...); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish refresh message",
			log.FieldOperation, log.OpPublish, log.FieldError, err)
		return res, nil
	}
	res.Published = true
	return res, nil
}

func (s *RefreshService) sourceNames() []string {
	names := make([]string, 0, len(s.caches))
	for name := range s.caches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
