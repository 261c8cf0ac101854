package ledger

import (
	"github.com/shopspring/decimal"

	"fluidspend/internal/core"
)

// revaluedTokens are priced at the current FLUID price on the Solana side,
// matching the EVM valuation basis. Historical totals move with the price.
var revaluedTokens = map[string]bool{"FLUID": true, "SOL": true, "WSOL": true}

// NormalizeEVM maps monthly claims to canonical records. Every EVM reward is
// paid in FLUID.
func NormalizeEVM(claims []core.EVMClaim, fluidPrice decimal.Decimal) []core.ExpenseRecord {
	out := make([]core.ExpenseRecord, 0, len(claims))
	for _, c := range claims {
		out = append(out, core.ExpenseRecord{
			Month:           c.Month,
			Chain:           c.Chain,
			Source:          core.SourceEVM,
			Token:           core.TokenFLUID,
			TokenAmount:     c.TotalFluidClaimed,
			USDValue:        c.TotalFluidClaimed.Mul(fluidPrice),
			NumTransactions: c.TotalClaims,
		})
	}
	return out
}

// NormalizeSolana maps aggregated Solana rows to canonical records. Stablecoin
// and passthrough values are kept as aggregated.
func NormalizeSolana(rows []core.SolanaMonthly, fluidPrice decimal.Decimal) []core.ExpenseRecord {
	out := make([]core.ExpenseRecord, 0, len(rows))
	for _, r := range rows {
		usd := r.TotalUSD
		if revaluedTokens[r.Token] {
			usd = r.TotalAmount.Mul(fluidPrice)
		}
		out = append(out, core.ExpenseRecord{
			Month:           r.Month,
			Chain:           r.Chain,
			Source:          core.SourceSolana,
			Token:           r.Token,
			TokenAmount:     r.TotalAmount,
			USDValue:        usd,
			NumTransactions: r.NumTransactions,
		})
	}
	return out
}
