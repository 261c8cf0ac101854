package backend

import (
	"context"
	"fmt"
	"log/slog"

	"fluidspend/internal/cache"
	"fluidspend/internal/storage"
)

// ExportLog records ledger export attempts. Implemented by the SQLite repository.
type ExportLog interface {
	RecordExport(ctx context.Context, run storage.ExportRun) (int64, error)
	LastSuccessfulExport(ctx context.Context) (storage.ExportRun, bool, error)
}

// DefaultFactory implements the Factory interface.
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new store factory.
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateStore implements Factory.CreateStore.
func (f *DefaultFactory) CreateStore(ctx context.Context, config Config) (*StoreResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case FileBackend:
		return f.createFileStore(config)
	case SQLiteBackend:
		return f.createSQLiteStore(config)
	case MemoryBackend:
		return f.createMemoryStore()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createFileStore(config Config) (*StoreResult, error) {
	store, err := cache.NewFileStore(config.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize file cache: %w", err)
	}

	f.logger.Info("Initialized file cache backend", "cache_dir", config.CacheDir)

	return &StoreResult{Store: store}, nil
}

func (f *DefaultFactory) createSQLiteStore(config Config) (*StoreResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite cache backend", "db_path", config.SQLiteDBPath)

	return &StoreResult{
		Store:   repo,
		Cleanup: repo.Close,
		Exports: repo,
	}, nil
}

func (f *DefaultFactory) createMemoryStore() (*StoreResult, error) {
	f.logger.Info("Initialized memory cache backend")
	return &StoreResult{Store: cache.NewMemoryStore()}, nil
}
