package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fluidspend/internal/core"
	"fluidspend/internal/solana"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func month(y int, m time.Month) time.Time { return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC) }

type staticPrice struct{ v decimal.Decimal }

func (p staticPrice) Price(context.Context) decimal.Decimal { return p.v }

type stubEVM struct {
	claims []core.EVMClaim
	err    error
}

func (s *stubEVM) Fetch(context.Context) ([]core.EVMClaim, error) { return s.claims, s.err }

type stubSolana struct {
	res   solana.Result
	err   error
	calls int
}

func (s *stubSolana) Aggregate(context.Context) (solana.Result, error) {
	s.calls++
	return s.res, s.err
}

func TestNormalizeEVMScenario(t *testing.T) {
	claims := []core.EVMClaim{{Month: month(2024, 5), Chain: "ethereum", TotalClaims: 10, TotalFluidClaimed: dec("1000")}}
	got := NormalizeEVM(claims, dec("0.30"))
	if len(got) != 1 {
		t.Fatalf("expected one record, got %d", len(got))
	}
	r := got[0]
	if !r.USDValue.Equal(dec("300")) || r.Token != "FLUID" || r.NumTransactions != 10 || r.Source != core.SourceEVM {
		t.Fatalf("unexpected record %+v", r)
	}
	if r.USDValue.StringFixed(2) != "300.00" {
		t.Fatalf("usd = %s", r.USDValue.StringFixed(2))
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("normalized record invalid: %v", err)
	}

	// Same input, same price, same output.
	again := NormalizeEVM(claims, dec("0.30"))
	if !again[0].USDValue.Equal(r.USDValue) {
		t.Fatalf("normalization is not deterministic")
	}
}

func TestNormalizeSolanaRevaluation(t *testing.T) {
	rows := []core.SolanaMonthly{
		{Month: month(2024, 5), Token: "FLUID", TotalAmount: dec("5000"), TotalUSD: dec("1"), NumTransactions: 2, Chain: "solana", Source: core.SourceSolana},
		{Month: month(2024, 5), Token: "WSOL", TotalAmount: dec("10"), TotalUSD: dec("1500"), NumTransactions: 1, Chain: "solana", Source: core.SourceSolana},
		{Month: month(2024, 5), Token: "USDS", TotalAmount: dec("2000"), TotalUSD: dec("2000"), NumTransactions: 1, Chain: "solana", Source: core.SourceSolana},
		{Month: month(2024, 5), Token: "JUP", TotalAmount: dec("3000"), TotalUSD: dec("2450.75"), NumTransactions: 1, Chain: "solana", Source: core.SourceSolana},
	}
	got := NormalizeSolana(rows, dec("0.30"))
	want := []string{"1500", "3", "2000", "2450.75"}
	for i, w := range want {
		if !got[i].USDValue.Equal(dec(w)) {
			t.Errorf("%s: usd = %s, want %s", got[i].Token, got[i].USDValue, w)
		}
	}

	if len(NormalizeSolana(nil, dec("1"))) != 0 || len(NormalizeEVM(nil, dec("1"))) != 0 {
		t.Fatalf("empty input must give empty output")
	}
}

func TestCombineMergesAndSorts(t *testing.T) {
	evm := &stubEVM{claims: []core.EVMClaim{
		{Month: month(2024, 3), Chain: "ethereum", TotalClaims: 5, TotalFluidClaimed: dec("100")},
		{Month: month(2024, 5), Chain: "arbitrum", TotalClaims: 7, TotalFluidClaimed: dec("200")},
		{Month: month(2024, 4), Chain: "base", TotalClaims: 1, TotalFluidClaimed: dec("300")},
	}}
	sol := &stubSolana{res: solana.Result{Monthly: []core.SolanaMonthly{
		{Month: month(2024, 4), Token: "JUP", TotalAmount: dec("10"), TotalUSD: dec("1200"), NumTransactions: 2, Chain: "solana", Source: core.SourceSolana},
		{Month: month(2024, 6), Token: "FLUID", TotalAmount: dec("5000"), TotalUSD: dec("0"), NumTransactions: 1, Chain: "solana", Source: core.SourceSolana},
	}}}
	now := time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC)
	agg := NewAggregator(staticPrice{dec("0.5")}, evm, sol).WithClock(func() time.Time { return now })

	l, err := agg.Combine(context.Background())
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if len(l.Records) != 5 {
		t.Fatalf("expected 3+2 records, got %d", len(l.Records))
	}
	for i := 1; i < len(l.Records); i++ {
		if l.Records[i].Month.After(l.Records[i-1].Month) {
			t.Fatalf("records not sorted by month descending at %d", i)
		}
	}
	// April ties keep EVM before Solana.
	if l.Records[2].Source != core.SourceEVM || l.Records[3].Source != core.SourceSolana {
		t.Fatalf("ties must keep concatenation order: %+v", l.Records[2:4])
	}
	if !l.FluidPrice.Equal(dec("0.5")) || !l.GeneratedAt.Equal(now) {
		t.Fatalf("unexpected price/time %s %v", l.FluidPrice, l.GeneratedAt)
	}
	for _, r := range l.Records {
		if err := r.Validate(); err != nil {
			t.Fatalf("invalid record %+v: %v", r, err)
		}
	}
}

func TestCombineFailsFast(t *testing.T) {
	cause := fmt.Errorf("%w: no data returned from Dune", core.ErrUpstreamData)
	sol := &stubSolana{}
	agg := NewAggregator(staticPrice{dec("0.3")}, &stubEVM{err: cause}, sol)

	l, err := agg.Combine(context.Background())
	var srcErr *core.SourceError
	if !errors.As(err, &srcErr) || srcErr.Source != core.SourceEVM {
		t.Fatalf("expected EVM SourceError, got %v", err)
	}
	if err.Error() != "EVM fetch failed: upstream data error: no data returned from Dune" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, core.ErrUpstreamData) {
		t.Fatalf("cause must stay matchable")
	}
	if sol.calls != 0 {
		t.Fatalf("Solana must not be fetched after an EVM failure")
	}
	if len(l.Records) != 0 || !l.FluidPrice.Equal(dec("0.3")) {
		t.Fatalf("failed ledger must carry the price and no records: %+v", l)
	}

	agg = NewAggregator(staticPrice{dec("0.3")}, &stubEVM{claims: []core.EVMClaim{{Month: month(2024, 1), Chain: "x", TotalFluidClaimed: dec("1")}}},
		&stubSolana{err: errors.New("SOLSCAN_API_KEY not found")})
	_, err = agg.Combine(context.Background())
	if err == nil || err.Error() != "Solana fetch failed: SOLSCAN_API_KEY not found" {
		t.Fatalf("unexpected Solana failure %v", err)
	}
}

func TestCombineCarriesNotes(t *testing.T) {
	agg := NewAggregator(staticPrice{dec("0.3")}, &stubEVM{claims: []core.EVMClaim{{Month: month(2024, 1), Chain: "x", TotalClaims: 1, TotalFluidClaimed: dec("1")}}},
		&stubSolana{res: solana.Result{Note: solana.NoteNoOutflows}})
	l, err := agg.Combine(context.Background())
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if len(l.Records) != 1 || len(l.Notes) != 1 || l.Notes[0] != "No non-USDC outflows found" {
		t.Fatalf("unexpected ledger %+v", l)
	}
}

func TestSummarize(t *testing.T) {
	empty := Summarize(nil)
	if !empty.TotalUSD.IsZero() || !empty.CurrentMonthUSD.IsZero() || !empty.EVMTotalUSD.IsZero() ||
		!empty.SolanaTotalUSD.IsZero() || empty.TotalTransactions != 0 || !empty.CurrentMonth.IsZero() {
		t.Fatalf("empty summary must be all zero: %+v", empty)
	}

	records := []core.ExpenseRecord{
		{Month: month(2024, 5), Chain: "ethereum", Source: core.SourceEVM, USDValue: dec("300"), TokenAmount: dec("1000"), NumTransactions: 10},
		{Month: month(2024, 5), Chain: "solana", Source: core.SourceSolana, USDValue: dec("1500"), TokenAmount: dec("10"), NumTransactions: 1},
		{Month: month(2024, 4), Chain: "ethereum", Source: core.SourceEVM, USDValue: dec("50.5"), TokenAmount: dec("100"), NumTransactions: 2},
	}
	s := Summarize(records)
	if !s.TotalUSD.Equal(dec("1850.5")) || !s.CurrentMonthUSD.Equal(dec("1800")) || !s.CurrentMonth.Equal(month(2024, 5)) {
		t.Fatalf("unexpected totals %+v", s)
	}
	if !s.EVMTotalUSD.Equal(dec("350.5")) || !s.SolanaTotalUSD.Equal(dec("1500")) || s.TotalTransactions != 13 {
		t.Fatalf("unexpected per-source totals %+v", s)
	}

	chains := ByChain(records)
	if len(chains) != 2 || chains[0].Chain != "solana" || !chains[1].USD.Equal(dec("350.5")) || chains[1].Transactions != 12 || !chains[1].TokenAmount.Equal(dec("1100")) {
		t.Fatalf("unexpected chain totals %+v", chains)
	}

	monthly := MonthlyTotals(records)
	if len(monthly) != 3 || !monthly[0].Month.Equal(month(2024, 4)) || monthly[1].Source != core.SourceEVM || monthly[2].Source != core.SourceSolana {
		t.Fatalf("unexpected monthly totals %+v", monthly)
	}
	if len(ByChain(nil)) != 0 || len(MonthlyTotals(nil)) != 0 {
		t.Fatalf("empty breakdowns must be empty")
	}
}
