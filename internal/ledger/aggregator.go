// Package ledger merges the EVM and Solana sources into one canonical,
// USD-valued monthly ledger.
package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"fluidspend/internal/core"
	"fluidspend/internal/log"
	"fluidspend/internal/metrics"
	"fluidspend/internal/solana"
)

// PriceSource yields the FLUID price. It never fails.
type PriceSource interface {
	Price(ctx context.Context) decimal.Decimal
}

type EVMSource interface {
	Fetch(ctx context.Context) ([]core.EVMClaim, error)
}

type SolanaSource interface {
	Aggregate(ctx context.Context) (solana.Result, error)
}

// Ledger is the combined output: records sorted by month, newest first.
type Ledger struct {
	Records     []core.ExpenseRecord `json:"records"`
	FluidPrice  decimal.Decimal      `json:"fluid_price"`
	Notes       []string             `json:"notes,omitempty"`
	GeneratedAt time.Time            `json:"generated_at"`
}

// Empty reports whether the ledger has no records.
func (l Ledger) Empty() bool { return len(l.Records) == 0 }

type Aggregator struct {
	price  PriceSource
	evm    EVMSource
	solana SolanaSource
	now    func() time.Time
	logger *log.Logger
}

func NewAggregator(price PriceSource, evm EVMSource, sol SolanaSource) *Aggregator {
	return &Aggregator{
		price:  price,
		evm:    evm,
		solana: sol,
		now:    time.Now,
		logger: log.ForComponent(log.ComponentLedger),
	}
}

// WithClock replaces the time source, for tests.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// Combine fetches the price, then EVM, then Solana, and merges them. The first
// source failure aborts the run with a *core.SourceError; the returned Ledger
// still carries the price that was used.
func (a *Aggregator) Combine(ctx context.Context) (l Ledger, err error) {
	start := time.Now()
	defer func() { metrics.ObserveCombine(err, time.Since(start)) }()

	fluidPrice := a.price.Price(ctx)
	l = Ledger{FluidPrice: fluidPrice, GeneratedAt: a.now().UTC()}
	a.logger.InfoContext(ctx, "Using FLUID price", log.FieldPrice, fluidPrice.String(), log.FieldOperation, log.OpCombine)

	claims, err := a.evm.Fetch(ctx)
	if err != nil {
		err = core.NewSourceError(core.SourceEVM, err)
		a.logger.ErrorContext(ctx, "Aggregation aborted", log.FieldSource, core.SourceEVM, log.FieldError, err)
		return l, err
	}

	sol, err := a.solana.Aggregate(ctx)
	if err != nil {
		err = core.NewSourceError(core.SourceSolana, err)
		a.logger.ErrorContext(ctx, "Aggregation aborted", log.FieldSource, core.SourceSolana, log.FieldError, err)
		return l, err
	}
	if sol.Note != "" {
		l.Notes = append(l.Notes, sol.Note)
	}

	evmRecords := NormalizeEVM(claims, fluidPrice)
	solRecords := NormalizeSolana(sol.Monthly, fluidPrice)

	records := make([]core.ExpenseRecord, 0, len(evmRecords)+len(solRecords))
	records = append(records, evmRecords...)
	records = append(records, solRecords...)
	SortByMonthDesc(records)
	l.Records = records

	summary := Summarize(records)
	metrics.SetLedger(len(records), summary.EVMTotalUSD, summary.SolanaTotalUSD)
	a.logger.InfoContext(ctx, "Combined expense records",
		log.FieldOperation, log.OpCombine,
		log.FieldRecords, len(records),
		"evm_records", len(evmRecords),
		"solana_records", len(solRecords))
	return l, nil
}

// SortByMonthDesc orders records newest month first; ties keep their order.
func SortByMonthDesc(records []core.ExpenseRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Month.After(records[j].Month)
	})
}
