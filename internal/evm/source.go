// Package evm turns the monthly claims query on Dune into EVMClaim rows.
package evm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fluidspend/internal/cache"
	"fluidspend/internal/core"
	"fluidspend/internal/log"
)

// CacheKey names the EVM entry in the source cache.
const CacheKey = "dune"

// Source yields pre-aggregated monthly claims per chain.
type Source struct {
	client  QueryClient
	queryID int
	cache   *cache.SourceCache
	logger  *log.Logger
}

func NewSource(client QueryClient, queryID int, c *cache.SourceCache) *Source {
	return &Source{
		client:  client,
		queryID: queryID,
		cache:   c,
		logger:  log.ForComponent(log.ComponentEVM),
	}
}

// Cache exposes the source's cache for invalidation and cleanup.
func (s *Source) Cache() *cache.SourceCache { return s.cache }

// Fetch returns cached claims when fresh, else runs the query, validates every
// row and caches the full set before returning it.
func (s *Source) Fetch(ctx context.Context) ([]core.EVMClaim, error) {
	start := time.Now()
	sl := log.NewStructuredLogger(s.logger)

	var cached []core.EVMClaim
	if updated, ok := s.cache.GetInto(ctx, &cached); ok {
		s.logger.DebugContext(ctx, "Loaded EVM claims from cache", "last_updated", updated)
		sl.LogFetch(ctx, core.SourceEVM.String(), len(cached), true, time.Since(start))
		return cached, nil
	}

	rows, err := s.client.LatestResult(ctx, s.queryID)
	if err != nil {
		return nil, fmt.Errorf("query %d: %w", s.queryID, err)
	}
	claims, err := ParseClaims(rows)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Put(ctx, claims); err != nil {
		s.logger.WarnContext(ctx, "Failed to cache EVM claims", log.FieldCacheKey, CacheKey, log.FieldError, err)
	}
	sl.LogFetch(ctx, core.SourceEVM.String(), len(claims), false, time.Since(start))
	return claims, nil
}

// ParseClaims validates and coerces raw query rows. An empty set, a missing
// field or a non-numeric amount fails the whole batch.
func ParseClaims(rows []map[string]any) ([]core.EVMClaim, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no data returned from Dune", core.ErrUpstreamData)
	}

	claims := make([]core.EVMClaim, 0, len(rows))
	for i, row := range rows {
		c, err := parseClaim(row)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", core.ErrUpstreamData, i, err)
		}
		claims = append(claims, c)
	}
	return claims, nil
}

func parseClaim(row map[string]any) (core.EVMClaim, error) {
	for _, field := range []string{"month", "chain", "total_claims", "total_fluid_claimed"} {
		if v, ok := row[field]; !ok || v == nil {
			return core.EVMClaim{}, fmt.Errorf("missing field %q", field)
		}
	}

	monthStr, ok := row["month"].(string)
	if !ok {
		return core.EVMClaim{}, fmt.Errorf("month is %T, want string", row["month"])
	}
	month, err := core.ParseTimeFlexible(monthStr)
	if err != nil {
		return core.EVMClaim{}, fmt.Errorf("month: %v", err)
	}

	chain, ok := row["chain"].(string)
	if !ok || strings.TrimSpace(chain) == "" {
		return core.EVMClaim{}, fmt.Errorf("chain is empty or not a string")
	}

	claimsN, err := core.ParseInt(row["total_claims"])
	if err != nil {
		return core.EVMClaim{}, fmt.Errorf("total_claims: %v", err)
	}
	if claimsN < 0 {
		return core.EVMClaim{}, fmt.Errorf("total_claims is negative: %d", claimsN)
	}

	claimed, err := core.ParseDecimal(row["total_fluid_claimed"])
	if err != nil {
		return core.EVMClaim{}, fmt.Errorf("total_fluid_claimed: %v", err)
	}
	if claimed.IsNegative() {
		return core.EVMClaim{}, fmt.Errorf("total_fluid_claimed is negative: %s", claimed)
	}

	return core.EVMClaim{
		Month:             core.WallMonth(month),
		Chain:             chain,
		TotalClaims:       claimsN,
		TotalFluidClaimed: claimed,
	}, nil
}
