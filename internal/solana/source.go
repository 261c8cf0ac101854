// Package solana builds monthly per-token expense rows from the treasury's
// Solana transfer history.
package solana

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fluidspend/internal/cache"
	"fluidspend/internal/core"
	"fluidspend/internal/log"
)

// CacheKey names the Solana entry in the source cache.
const CacheKey = "solana"

const (
	NoteNoTransactions = "No transactions found"
	NoteNoOutflows     = "No non-USDC outflows found"
)

// PriceSource yields the USD price of SOL. It never fails.
type PriceSource interface {
	Price(ctx context.Context) decimal.Decimal
}

type Config struct {
	Address  string
	PageSize int
	MaxPages int
}

// Source runs fetch, classify, filter and aggregate over one treasury address.
type Source struct {
	client   TransferClient
	cfg      Config
	cache    *cache.SourceCache
	solPrice PriceSource
	labels   Labels
	logger   *log.Logger
}

// Result is the aggregated output. Note is set when Monthly is empty.
type Result struct {
	Monthly []core.SolanaMonthly
	Note    string
}

func NewSource(client TransferClient, cfg Config, c *cache.SourceCache, solPrice PriceSource, labels Labels) *Source {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 40
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 5
	}
	if labels == nil {
		labels = DefaultLabels()
	}
	return &Source{
		client:   client,
		cfg:      cfg,
		cache:    c,
		solPrice: solPrice,
		labels:   labels,
		logger:   log.ForComponent(log.ComponentSolana),
	}
}

// Cache exposes the source's cache for invalidation and cleanup.
func (s *Source) Cache() *cache.SourceCache { return s.cache }

// Transfers returns the raw transfer history, from cache when fresh. Pages are
// read until one comes back empty or MaxPages is reached; a failed page fails
// the whole fetch and nothing is cached.
func (s *Source) Transfers(ctx context.Context) ([]TransferRow, error) {
	start := time.Now()
	sl := log.NewStructuredLogger(s.logger)

	var cached []TransferRow
	if updated, ok := s.cache.GetInto(ctx, &cached); ok {
		s.logger.DebugContext(ctx, "Loaded Solana transfers from cache", "last_updated", updated)
		sl.LogFetch(ctx, core.SourceSolana.String(), len(cached), true, time.Since(start))
		return cached, nil
	}

	all := make([]TransferRow, 0, s.cfg.PageSize)
	for page := 1; page <= s.cfg.MaxPages; page++ {
		p, err := s.client.TransferPage(ctx, s.cfg.Address, page, s.cfg.PageSize)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		s.logger.DebugContext(ctx, "Fetched transfer page", log.FieldPage, page, log.FieldRecords, len(p.Rows))
		if len(p.Rows) == 0 {
			break
		}
		for _, row := range p.Rows {
			if meta, ok := p.Tokens[row.TokenAddress]; ok && meta.Symbol != "" {
				row.TokenSymbol = meta.Symbol
			} else {
				row.TokenSymbol = UnknownSymbol
			}
			all = append(all, row)
		}
	}

	if err := s.cache.Put(ctx, all); err != nil {
		s.logger.WarnContext(ctx, "Failed to cache Solana transfers", log.FieldCacheKey, CacheKey, log.FieldError, err)
	}
	sl.LogFetch(ctx, core.SourceSolana.String(), len(all), false, time.Since(start))
	return all, nil
}

// Aggregate runs the whole pipeline. An empty outcome is not an error: it
// comes back with a Note instead.
func (s *Source) Aggregate(ctx context.Context) (Result, error) {
	rows, err := s.Transfers(ctx)
	if err != nil {
		return Result{}, err
	}

	var transfers []core.RawTransfer
	if len(rows) > 0 {
		solPrice := s.solPrice.Price(ctx)
		transfers, err = classifyAll(rows, solPrice, s.labels)
		if err != nil {
			return Result{}, err
		}
	}

	if len(transfers) == 0 {
		s.logger.InfoContext(ctx, NoteNoTransactions, log.FieldOperation, log.OpAggregate)
		return Result{Note: NoteNoTransactions}, nil
	}

	monthly := AggregateMonthly(transfers)
	if len(monthly) == 0 {
		s.logger.InfoContext(ctx, NoteNoOutflows, log.FieldOperation, log.OpAggregate)
		return Result{Note: NoteNoOutflows}, nil
	}

	s.logger.InfoContext(ctx, "Aggregated Solana expenses",
		log.FieldOperation, log.OpAggregate,
		"transfers", len(transfers),
		log.FieldRecords, len(monthly))
	return Result{Monthly: monthly}, nil
}

// classifyAll classifies rows and keeps those at or above the threshold.
func classifyAll(rows []TransferRow, solPrice decimal.Decimal, labels Labels) ([]core.RawTransfer, error) {
	out := make([]core.RawTransfer, 0, len(rows))
	for _, row := range rows {
		t, err := Classify(row, solPrice, labels)
		if err != nil {
			return nil, err
		}
		if AboveThreshold(t) {
			out = append(out, t)
		}
	}
	return out, nil
}
