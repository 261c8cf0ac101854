// Package price keeps one best-effort USD quote per tracked token.
package price

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"fluidspend/internal/core"
	"fluidspend/internal/log"
	"fluidspend/internal/metrics"
)

// Tier names the source of the value returned by the last Price call.
type Tier string

const (
	TierNone     Tier = ""
	TierFresh    Tier = "fresh"
	TierUpstream Tier = "upstream"
	TierStale    Tier = "stale"
	TierFallback Tier = "fallback"
)

const (
	SymbolFLUID = "FLUID"
	SymbolWSOL  = "WSOL"
)

var (
	FluidFallback = decimal.RequireFromString("0.30")
	SOLFallback   = decimal.RequireFromString("150")
)

// Quote is the in-memory price with the time it was fetched.
type Quote struct {
	Value     decimal.Decimal
	FetchedAt time.Time
}

// Oracle never fails: it serves a fresh quote, else an upstream refresh, else
// the last known quote, else the fallback constant, in that order.
type Oracle struct {
	symbol   string
	ttl      time.Duration
	fallback decimal.Decimal
	fetcher  ListingFetcher
	now      func() time.Time
	logger   *log.Logger

	// mu covers the whole check-fetch-store sequence.
	mu    sync.Mutex
	quote *Quote
	tier  Tier
}

func NewOracle(symbol string, fetcher ListingFetcher, ttl time.Duration, fallback decimal.Decimal) *Oracle {
	return &Oracle{
		symbol:   symbol,
		ttl:      ttl,
		fallback: fallback,
		fetcher:  fetcher,
		now:      time.Now,
		logger:   log.ForComponent(log.ComponentPrice),
	}
}

// NewFluidOracle tracks FLUID on the DEX listing.
func NewFluidOracle(fetcher ListingFetcher, ttl time.Duration) *Oracle {
	return NewOracle(SymbolFLUID, fetcher, ttl, FluidFallback)
}

// NewSOLOracle tracks wrapped SOL on the vault listing.
func NewSOLOracle(fetcher ListingFetcher, ttl time.Duration) *Oracle {
	return NewOracle(SymbolWSOL, fetcher, ttl, SOLFallback)
}

// WithClock replaces the time source, for tests.
func (o *Oracle) WithClock(now func() time.Time) *Oracle {
	o.now = now
	return o
}

func (o *Oracle) Symbol() string { return o.symbol }

// Price returns the best available USD price for the tracked token.
func (o *Oracle) Price(ctx context.Context) decimal.Decimal {
	o.mu.Lock()
	defer o.mu.Unlock()

	value, tier := o.resolve(ctx)
	o.tier = tier
	metrics.ObservePrice(o.symbol, string(tier), value)
	return value
}

func (o *Oracle) resolve(ctx context.Context) (decimal.Decimal, Tier) {
	now := o.now()
	if o.quote != nil && now.Sub(o.quote.FetchedAt) < o.ttl {
		return o.quote.Value, TierFresh
	}

	value, err := o.fetch(ctx)
	if err == nil {
		o.quote = &Quote{Value: value, FetchedAt: now}
		o.logger.InfoContext(ctx, "Price refreshed",
			log.FieldToken, o.symbol, log.FieldPrice, value.String(), log.FieldUpstream, o.fetcher.Name())
		return value, TierUpstream
	}

	if o.quote != nil {
		o.logger.WarnContext(ctx, "Price upstream failed, serving last known quote",
			log.FieldToken, o.symbol, log.FieldPriceTier, TierStale, log.FieldError, err,
			"age", now.Sub(o.quote.FetchedAt))
		return o.quote.Value, TierStale
	}

	o.logger.WarnContext(ctx, "Price upstream failed, serving fallback",
		log.FieldToken, o.symbol, log.FieldPriceTier, TierFallback, log.FieldError, err)
	return o.fallback, TierFallback
}

// fetch asks the listing for the tracked symbol. A listing that answers but
// omits the symbol is an upstream data error like any other, so resolve still
// serves a held quote before dropping to the constant fallback; it does not
// jump straight to the constant.
func (o *Oracle) fetch(ctx context.Context) (decimal.Decimal, error) {
	if o.fetcher == nil {
		return decimal.Zero, fmt.Errorf("%w: no price listing configured", core.ErrConfig)
	}
	pairs, err := o.fetcher.Listing(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	value, ok := FindPrice(pairs, o.symbol)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s not listed by %s", core.ErrUpstreamData, o.symbol, o.fetcher.Name())
	}
	return value, nil
}

// Tier reports which tier served the most recent Price call.
func (o *Oracle) Tier() Tier {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tier
}

// Quote returns the held quote, if any.
func (o *Oracle) Quote() (Quote, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.quote == nil {
		return Quote{}, false
	}
	return *o.quote, true
}

// Reset drops the held quote so the next call goes upstream.
func (o *Oracle) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.quote = nil
	o.tier = TierNone
}
