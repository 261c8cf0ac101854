package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fluidspend/internal/backend"
	"fluidspend/internal/ledger"
	"fluidspend/internal/log"
	"fluidspend/internal/sheets"
	"fluidspend/internal/storage"
)

// ExportProcessorConfig holds configuration for the export processor
type ExportProcessorConfig struct {
	// Interval is how often the ledger is recombined and exported (default: 1h)
	Interval time.Duration

	// Timeout bounds one combine plus export run (default: 2m)
	Timeout time.Duration
}

// DefaultExportProcessorConfig returns sensible defaults
func DefaultExportProcessorConfig() ExportProcessorConfig {
	return ExportProcessorConfig{
		Interval: time.Hour,
		Timeout:  2 * time.Minute,
	}
}

// Combiner produces the current ledger.
type Combiner interface {
	Combine(ctx context.Context) (ledger.Ledger, error)
}

// ExportProcessor periodically combines the ledger and writes it out.
type ExportProcessor struct {
	combiner Combiner
	writer   sheets.LedgerWriter
	exports  backend.ExportLog
	config   ExportProcessorConfig
	logger   *log.Logger

	// Serializes runs triggered by the ticker and by refresh messages.
	runMu sync.Mutex

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewExportProcessor creates a new export processor. exports may be nil when
// the backend keeps no export log.
func NewExportProcessor(combiner Combiner, writer sheets.LedgerWriter, exports backend.ExportLog, config ExportProcessorConfig) *ExportProcessor {
	def := DefaultExportProcessorConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	return &ExportProcessor{
		combiner: combiner,
		writer:   writer,
		exports:  exports,
		config:   config,
		logger:   log.ForComponent(log.ComponentExport),
	}
}

// Start begins the export loop. Returns an error if already running.
func (p *ExportProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("export processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Export processor started", "interval", p.config.Interval)
	return nil
}

// Stop gracefully stops the processor and waits for the current run.
func (p *ExportProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		p.logger.InfoContext(ctx, "Export processor stopped gracefully")
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Export processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

// IsRunning returns whether the processor is currently running
func (p *ExportProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *ExportProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	// Export immediately on startup
	p.runLogged(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runLogged(ctx)
		}
	}
}

func (p *ExportProcessor) runLogged(ctx context.Context) {
	if _, err := p.RunOnce(ctx); err != nil {
		log.NewStructuredLogger(p.logger).LogError(ctx, "Scheduled export failed", err, log.OpExport, nil)
	}
}

// RunOnce combines the ledger and exports it. Every attempt, failed or not,
// is appended to the export log when one is configured.
func (p *ExportProcessor) RunOnce(ctx context.Context) (ledger.Ledger, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	start := time.Now()
	l, err := p.combiner.Combine(ctx)
	if err != nil {
		p.record(ctx, start, l, "", err)
		return l, fmt.Errorf("combine ledger: %w", err)
	}

	summary := ledger.Summarize(l.Records)
	if err := p.writer.WriteLedger(ctx, l, summary); err != nil {
		p.record(ctx, start, l, summary.TotalUSD.StringFixed(2), err)
		return l, fmt.Errorf("write ledger: %w", err)
	}
	p.record(ctx, start, l, summary.TotalUSD.StringFixed(2), nil)

	p.logger.InfoContext(ctx, "Ledger exported",
		log.FieldOperation, log.OpExport,
		log.FieldRecords, len(l.Records),
		"total_usd", summary.TotalUSD.StringFixed(2),
		"duration", time.Since(start))
	return l, nil
}

func (p *ExportProcessor) record(ctx context.Context, at time.Time, l ledger.Ledger, totalUSD string, runErr error) {
	if p.exports == nil {
		return
	}
	run := storage.ExportRun{
		ExportedAt: at,
		Records:    len(l.Records),
		TotalUSD:   totalUSD,
		Status:     storage.ExportOK,
	}
	if runErr != nil {
		run.Status = storage.ExportError
		run.Error = runErr.Error()
	}
	// The run context may already be past its deadline.
	if _, err := p.exports.RecordExport(context.WithoutCancel(ctx), run); err != nil {
		p.logger.WarnContext(ctx, "Failed to record export attempt", log.FieldError, err)
	}
}

// LastSuccessfulExport reports the latest successful export, if the log is kept.
func (p *ExportProcessor) LastSuccessfulExport(ctx context.Context) (storage.ExportRun, bool, error) {
	if p.exports == nil {
		return storage.ExportRun{}, false, nil
	}
	return p.exports.LastSuccessfulExport(ctx)
}
