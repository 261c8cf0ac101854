package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"fluidspend/internal/cli"
	"fluidspend/internal/ledger"
	"fluidspend/internal/log"
)

func main() {
	refresh := flag.Bool("refresh", false, "Clear cached source data and prices before combining")
	asJSON := flag.Bool("json", false, "Print the ledger and summary as JSON")
	flag.Parse()

	cli.LoadEnvFile()

	// Logs go to stderr so stdout stays the report.
	logger := log.New(log.Config{
		Component: log.ComponentApp,
		Handler:   slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}),
	})
	log.SetDefault(logger)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := cli.InitCacheStore(ctx, logger, cfg)
	if store.Cleanup != nil {
		defer store.Cleanup()
	}

	pipeline, err := cli.NewPipeline(cfg, store.Store, nil)
	if err != nil {
		logger.Error("Failed to build ledger pipeline", log.FieldError, err)
		os.Exit(1)
	}

	if *refresh {
		if _, err := pipeline.Refresh.Invalidate(ctx); err != nil {
			logger.Error("Failed to clear caches", log.FieldError, err)
			os.Exit(1)
		}
	}

	l, err := pipeline.Aggregator.Combine(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	summary := ledger.Summarize(l.Records)

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(struct {
			ledger.Ledger
			Summary any `json:"summary"`
		}{l, summary}); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := writeReport(os.Stdout, l, summary); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
