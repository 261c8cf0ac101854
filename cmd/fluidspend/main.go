package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"fluidspend/internal/amqp"
	"fluidspend/internal/cache"
	"fluidspend/internal/cli"
	apphttp "fluidspend/internal/http"
	"fluidspend/internal/log"
	"fluidspend/internal/services"
)

func main() {
	cli.LoadEnvFile()
	bootstrap := cli.SetupLogger("info")
	cfg := cli.LoadAndValidateConfig(bootstrap)
	logger := cli.SetupLogger(cfg.LogLevel)

	store := cli.InitCacheStore(context.Background(), logger, cfg)

	// A nil *amqp.Client must not reach the service as a non-nil interface.
	var publisher services.Publisher
	var amqpClient *amqp.Client
	if cfg.AMQPEnabled() {
		c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, refreshes stay local", log.FieldError, err)
		} else {
			amqpClient = c
			publisher = c
			logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange)
		}
	}

	pipeline, err := cli.NewPipeline(cfg, store.Store, publisher)
	if err != nil {
		logger.Error("Failed to build ledger pipeline", log.FieldError, err)
		os.Exit(1)
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Combiner:  pipeline.Aggregator,
		Refresher: pipeline.Refresh,
		Caches:    []*cache.SourceCache{pipeline.EVMCache, pipeline.SolanaCache},
	})

	// Configure server timeouts and limits. A cold ledger request pages
	// through upstream APIs, so writes get a long deadline.
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 4 * time.Minute
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
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

	logger.Info("Starting fluidspend server", "port", cfg.Port, "backend", cfg.CacheBackend, "amqp", publisher != nil)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
