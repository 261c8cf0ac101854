package solana

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"fluidspend/internal/core"
)

const (
	ChainSolana = "solana"

	// UnknownSymbol marks a token missing from the page metadata.
	UnknownSymbol = "UNKNOWN"

	defaultDecimals int32 = 6
)

// MinValueUSD is the expense threshold: transfers valued below it are dropped.
var MinValueUSD = decimal.NewFromInt(1000)

var (
	stablecoins = map[string]bool{"USDC": true, "USDT": true, "USDS": true, "USDG": true, "EURC": true}
	solTokens   = map[string]bool{"SOL": true, "WSOL": true}
)

// ExcludedToken is never counted as a protocol expense: USDC outflows are
// partner-sponsored rebates.
const ExcludedToken = "USDC"

// Classify derives direction, counterparty, team and USD value for one row.
func Classify(row TransferRow, solPrice decimal.Decimal, labels Labels) (core.RawTransfer, error) {
	ts, err := core.ParseTimeFlexible(row.Time)
	if err != nil {
		return core.RawTransfer{}, fmt.Errorf("%w: transfer %s: %v", core.ErrUpstreamData, row.TransID, err)
	}

	direction := core.Outflow
	counterparty := row.ToAddress
	if row.Flow == "in" {
		direction = core.Inflow
		counterparty = row.FromAddress
	}

	symbol := row.TokenSymbol
	if symbol == "" {
		symbol = UnknownSymbol
	}

	decimals := defaultDecimals
	if row.TokenDecimals != nil {
		decimals = *row.TokenDecimals
	}
	amount := row.Amount.Shift(-decimals)

	return core.RawTransfer{
		Signature:    row.TransID,
		Timestamp:    ts.UTC(),
		Direction:    direction,
		Token:        symbol,
		Amount:       amount,
		ValueUSD:     valueUSD(symbol, amount, row.Value, solPrice),
		Counterparty: counterparty,
		Team:         labels.Lookup(counterparty),
		BlockID:      row.BlockID,
	}, nil
}

// valueUSD prices stablecoins at par and SOL at the SOL oracle; any other
// token keeps the upstream-reported value unverified.
func valueUSD(symbol string, amount, reported, solPrice decimal.Decimal) decimal.Decimal {
	switch {
	case stablecoins[symbol]:
		return amount
	case solTokens[symbol]:
		return amount.Mul(solPrice)
	default:
		return reported
	}
}

// AboveThreshold reports whether a transfer counts as an expense candidate.
func AboveThreshold(t core.RawTransfer) bool {
	return t.ValueUSD.GreaterThanOrEqual(MinValueUSD)
}

type monthToken struct {
	month time.Time
	token string
}

// AggregateMonthly keeps outflows other than USDC and sums them per
// (month, token). Output is sorted by month, then token.
func AggregateMonthly(transfers []core.RawTransfer) []core.SolanaMonthly {
	groups := make(map[monthToken]*core.SolanaMonthly)
	for _, t := range transfers {
		if t.Direction != core.Outflow || t.Token == ExcludedToken {
			continue
		}
		k := monthToken{month: core.MonthStart(t.Timestamp), token: t.Token}
		g, ok := groups[k]
		if !ok {
			g = &core.SolanaMonthly{
				Month:  k.month,
				Token:  k.token,
				Chain:  ChainSolana,
				Source: core.SourceSolana,
			}
			groups[k] = g
		}
		g.TotalAmount = g.TotalAmount.Add(t.Amount)
		g.TotalUSD = g.TotalUSD.Add(t.ValueUSD)
		g.NumTransactions++
	}

	out := make([]core.SolanaMonthly, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Month.Equal(out[j].Month) {
			return out[i].Month.Before(out[j].Month)
		}
		return out[i].Token < out[j].Token
	})
	return out
}
