package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Summary holds the headline figures derived from a combined ledger.
type Summary struct {
	TotalUSD          decimal.Decimal `json:"total_usd"`
	CurrentMonth      time.Time       `json:"current_month"` // most recent month present; zero when empty
	CurrentMonthUSD   decimal.Decimal `json:"current_month_usd"`
	EVMTotalUSD       decimal.Decimal `json:"evm_total_usd"`
	SolanaTotalUSD    decimal.Decimal `json:"solana_total_usd"`
	TotalTransactions int64           `json:"total_transactions"`
}

// ChainTotal aggregates a ledger by chain.
type ChainTotal struct {
	Chain        string          `json:"chain"`
	USD          decimal.Decimal `json:"usd"`
	TokenAmount  decimal.Decimal `json:"token_amount"`
	Transactions int64           `json:"transactions"`
}

// MonthTotal is the USD spent by one source in one month.
type MonthTotal struct {
	Month  time.Time       `json:"month"`
	Source Source          `json:"source"`
	USD    decimal.Decimal `json:"usd"`
}
