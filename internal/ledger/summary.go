package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"fluidspend/internal/core"
)

// Summarize derives the headline figures. An empty input gives all zeros.
func Summarize(records []core.ExpenseRecord) core.Summary {
	s := core.Summary{
		TotalUSD:        decimal.Zero,
		CurrentMonthUSD: decimal.Zero,
		EVMTotalUSD:     decimal.Zero,
		SolanaTotalUSD:  decimal.Zero,
	}
	for _, r := range records {
		if r.Month.After(s.CurrentMonth) {
			s.CurrentMonth = r.Month
		}
	}
	for _, r := range records {
		s.TotalUSD = s.TotalUSD.Add(r.USDValue)
		s.TotalTransactions += r.NumTransactions
		switch r.Source {
		case core.SourceEVM:
			s.EVMTotalUSD = s.EVMTotalUSD.Add(r.USDValue)
		case core.SourceSolana:
			s.SolanaTotalUSD = s.SolanaTotalUSD.Add(r.USDValue)
		}
		if r.Month.Equal(s.CurrentMonth) {
			s.CurrentMonthUSD = s.CurrentMonthUSD.Add(r.USDValue)
		}
	}
	return s
}

// ByChain totals records per chain, largest USD first.
func ByChain(records []core.ExpenseRecord) []core.ChainTotal {
	idx := make(map[string]int)
	out := make([]core.ChainTotal, 0)
	for _, r := range records {
		i, ok := idx[r.Chain]
		if !ok {
			i = len(out)
			idx[r.Chain] = i
			out = append(out, core.ChainTotal{Chain: r.Chain})
		}
		out[i].USD = out[i].USD.Add(r.USDValue)
		out[i].TokenAmount = out[i].TokenAmount.Add(r.TokenAmount)
		out[i].Transactions += r.NumTransactions
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].USD.GreaterThan(out[j].USD)
	})
	return out
}

// MonthlyTotals sums USD per (month, source), oldest month first.
func MonthlyTotals(records []core.ExpenseRecord) []core.MonthTotal {
	type key struct {
		month  time.Time
		source core.Source
	}
	sums := make(map[key]decimal.Decimal)
	for _, r := range records {
		k := key{r.Month, r.Source}
		sums[k] = sums[k].Add(r.USDValue)
	}

	out := make([]core.MonthTotal, 0, len(sums))
	for k, usd := range sums {
		out = append(out, core.MonthTotal{Month: k.month, Source: k.source, USD: usd})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Month.Equal(out[j].Month) {
			return out[i].Month.Before(out[j].Month)
		}
		return out[i].Source < out[j].Source
	})
	return out
}
