package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	SourceEVM    Source = "EVM"
	SourceSolana Source = "Solana"

	Inflow  Direction = "Inflow"
	Outflow Direction = "Outflow"

	// TokenFLUID is the protocol token every EVM reward is paid in.
	TokenFLUID = "FLUID"

	// UnknownTeam labels counterparties missing from the address table.
	UnknownTeam = "Unknown"
)

type (
	Source string

	Direction string

	// ExpenseRecord is the canonical, source-independent ledger row.
	ExpenseRecord struct {
		Month           time.Time       `json:"month"`
		Chain           string          `json:"chain"`
		Source          Source          `json:"source"`
		Token           string          `json:"token"`
		TokenAmount     decimal.Decimal `json:"token_amount"`
		USDValue        decimal.Decimal `json:"usd_value"`
		NumTransactions int64           `json:"num_transactions"`
	}

	// EVMClaim is one pre-aggregated monthly row of the EVM analytics query.
	EVMClaim struct {
		Month             time.Time       `json:"month"`
		Chain             string          `json:"chain"`
		TotalClaims       int64           `json:"total_claims"`
		TotalFluidClaimed decimal.Decimal `json:"total_fluid_claimed"`
	}

	// RawTransfer is a classified and valued treasury transfer on Solana.
	RawTransfer struct {
		Signature    string
		Timestamp    time.Time
		Direction    Direction
		Token        string
		Amount       decimal.Decimal
		ValueUSD     decimal.Decimal
		Counterparty string
		Team         string
		BlockID      int64
	}

	// SolanaMonthly is the Solana pipeline output: one row per (month, token).
	SolanaMonthly struct {
		Month           time.Time
		Token           string
		TotalAmount     decimal.Decimal
		TotalUSD        decimal.Decimal
		NumTransactions int64
		Chain           string
		Source          Source
	}
)

var (
	ErrNegativeUSD          = errors.New("negative usd value")
	ErrNegativeTransactions = errors.New("negative transaction count")
	ErrMonthNotTruncated    = errors.New("month not truncated to first day")
	ErrEmptyChain           = errors.New("empty chain")
	ErrEmptyToken           = errors.New("empty token")
)

// MonthStart truncates t to the first instant of its month in UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func (s Source) String() string {
	return string(s)
}

// IsValid returns true for the two supported sources.
func (s Source) IsValid() bool {
	switch s {
	case SourceEVM, SourceSolana:
		return true
	default:
		return false
	}
}

func (r ExpenseRecord) Validate() error {
	if r.USDValue.IsNegative() {
		return ErrNegativeUSD
	}
	if r.NumTransactions < 0 {
		return ErrNegativeTransactions
	}
	if r.Month.IsZero() || !r.Month.Equal(MonthStart(r.Month)) {
		return ErrMonthNotTruncated
	}
	if strings.TrimSpace(r.Chain) == "" {
		return ErrEmptyChain
	}
	if strings.TrimSpace(r.Token) == "" {
		return ErrEmptyToken
	}
	if !r.Source.IsValid() {
		return errors.New("invalid source " + string(r.Source))
	}
	return nil
}
