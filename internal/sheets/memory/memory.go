package memory

import (
	"context"
	"sync"

	"fluidspend/internal/core"
	"fluidspend/internal/ledger"
	ports "fluidspend/internal/sheets"
)

var _ ports.LedgerWriter = (*Writer)(nil)

// Writer keeps the most recent export in memory.
type Writer struct {
	mu      sync.Mutex
	ledger  ledger.Ledger
	summary core.Summary
	writes  int
	err     error
}

func New() *Writer {
	return &Writer{}
}

// WriteLedger stores a copy of l and s, or returns the configured failure.
func (w *Writer) WriteLedger(_ context.Context, l ledger.Ledger, s core.Summary) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	l.Records = append([]core.ExpenseRecord(nil), l.Records...)
	l.Notes = append([]string(nil), l.Notes...)
	w.ledger = l
	w.summary = s
	w.writes++
	return nil
}

// Last returns the latest export; ok is false before the first write.
func (w *Writer) Last() (ledger.Ledger, core.Summary, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ledger, w.summary, w.writes > 0
}

// Writes counts successful exports.
func (w *Writer) Writes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writes
}

// FailWith makes subsequent writes return err. Pass nil to recover.
func (w *Writer) FailWith(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.err = err
}
