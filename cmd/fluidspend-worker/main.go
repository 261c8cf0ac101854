package main

import (
	"context"
	"errors"
	"os"
	"time"

	"fluidspend/internal/amqp"
	"fluidspend/internal/cache"
	"fluidspend/internal/cli"
	"fluidspend/internal/log"
	"fluidspend/internal/services"
	"fluidspend/internal/sheets"
	gsheet "fluidspend/internal/sheets/google"
	mem "fluidspend/internal/sheets/memory"
	"fluidspend/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	bootstrap := cli.SetupLogger("info")
	cfg := cli.LoadAndValidateConfig(bootstrap)
	logger := cli.SetupLogger(cfg.LogLevel)

	logger.Info("Starting fluidspend-worker")

	store := cli.InitCacheStore(context.Background(), logger, cfg)

	pipeline, err := cli.NewPipeline(cfg, store.Store, nil)
	if err != nil {
		logger.Error("Failed to build ledger pipeline", log.FieldError, err)
		os.Exit(1)
	}

	// Without a spreadsheet the export still recombines, which keeps the
	// source caches warm for the API.
	var writer sheets.LedgerWriter
	if cfg.ExportEnabled() {
		client, err := gsheet.New(context.Background(), cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		writer = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	} else {
		writer = mem.New()
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	exportCfg := services.DefaultExportProcessorConfig()
	exportCfg.Interval = cfg.ExportInterval
	processor := services.NewExportProcessor(pipeline.Aggregator, writer, store.Exports, exportCfg)

	janitor := cache.NewJanitor()
	janitor.Register(pipeline.EVMCache)
	janitor.Register(pipeline.SolanaCache)

	var amqpClient *amqp.Client
	if cfg.AMQPEnabled() {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
	} else {
		logger.Info("Skipping AMQP message consumption - no AMQP_URL provided")
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		logger.Info("Shutting down worker...")
		janitor.Stop()
		if err := processor.Stop(ctx); err != nil {
			logger.Error("Export processor stop error", log.FieldError, err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("AMQP close error", log.FieldError, err)
			}
		}
		if store.Cleanup != nil {
			if err := store.Cleanup(); err != nil {
				logger.Error("Cache store close error", log.FieldError, err)
			}
		}
	})

	janitor.StartCleanup(ctx, minTTL(cfg.EVMCacheTTL, cfg.SolanaCacheTTL))

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start export processor", log.FieldError, err)
		os.Exit(1)
	}

	if amqpClient != nil {
		refreshWorker := worker.NewRefreshWorker(pipeline.Refresh, processor)
		go func() {
			err := amqpClient.ConsumeRefresh(ctx, refreshWorker.HandleRefreshMessage)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
			}
		}()
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}

func minTTL(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
