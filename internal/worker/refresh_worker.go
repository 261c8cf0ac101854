package worker

import (
	"context"
	"errors"
	"fmt"

	"fluidspend/internal/amqp"
	"fluidspend/internal/core"
	"fluidspend/internal/ledger"
	"fluidspend/internal/log"
	"fluidspend/internal/storage"
)

// Invalidator clears cached source data.
type Invalidator interface {
	Invalidate(ctx context.Context, sources ...string) ([]string, error)
}

// Exporter recombines and exports the ledger.
type Exporter interface {
	RunOnce(ctx context.Context) (ledger.Ledger, error)
	LastSuccessfulExport(ctx context.Context) (storage.ExportRun, bool, error)
}

// RefreshWorker handles ledger refresh requests delivered over AMQP.
type RefreshWorker struct {
	caches   Invalidator
	exporter Exporter
	logger   *log.Logger
}

func NewRefreshWorker(caches Invalidator, exporter Exporter) *RefreshWorker {
	return &RefreshWorker{
		caches:   caches,
		exporter: exporter,
		logger:   log.ForComponent(log.ComponentWorker),
	}
}

// HandleRefreshMessage clears the requested caches and runs one export.
// A request older than the last successful export is acknowledged without
// re-exporting: that export already saw fresh data. Upstream and configuration
// failures are logged and acknowledged. Any other returned error makes the
// consumer requeue the message.
func (w *RefreshWorker) HandleRefreshMessage(ctx context.Context, msg *amqp.LedgerRefreshMessage) error {
	w.logger.InfoContext(ctx, "Processing refresh message",
		log.FieldOperation, log.OpRefresh,
		"sources", msg.Sources,
		"requested_at", msg.RequestedAt)

	if last, ok, err := w.exporter.LastSuccessfulExport(ctx); err != nil {
		w.logger.WarnContext(ctx, "Could not read export log", log.FieldError, err)
	} else if ok && !msg.RequestedAt.IsZero() && last.ExportedAt.After(msg.RequestedAt) {
		w.logger.InfoContext(ctx, "Skipping refresh already covered by a later export",
			"last_export", last.ExportedAt)
		return nil
	}

	cleared, err := w.caches.Invalidate(ctx, msg.Sources...)
	if err != nil {
		return fmt.Errorf("invalidate caches: %w", err)
	}

	l, err := w.exporter.RunOnce(ctx)
	if err != nil {
		if isTerminal(err) {
			// Redelivery would repeat the same upstream failure; the next
			// request or scheduled export tries again.
			w.logger.ErrorContext(ctx, "Export after refresh failed, dropping message",
				log.FieldOperation, log.OpRefresh, log.FieldError, err)
			return nil
		}
		return fmt.Errorf("export after refresh: %w", err)
	}

	w.logger.InfoContext(ctx, "Refresh complete",
		"cleared", cleared,
		log.FieldRecords, len(l.Records))
	return nil
}

// isTerminal reports source failures that are not retried automatically:
// missing configuration, bad upstream data and unreachable upstreams.
func isTerminal(err error) bool {
	return errors.Is(err, core.ErrConfig) ||
		errors.Is(err, core.ErrUpstreamData) ||
		errors.Is(err, core.ErrUpstreamUnavailable)
}
