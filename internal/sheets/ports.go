package sheets

import (
	"context"

	"fluidspend/internal/core"
	"fluidspend/internal/ledger"
)

// Ports for outbound adapters.
type (
	// LedgerWriter replaces the exported ledger with l and its summary.
	LedgerWriter interface {
		WriteLedger(ctx context.Context, l ledger.Ledger, s core.Summary) error
	}
)
