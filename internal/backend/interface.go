package backend

import (
	"context"

	"fluidspend/internal/cache"
)

// CleanupFunc releases resources held by a store.
type CleanupFunc func() error

// StoreResult contains the cache store and an optional cleanup function.
type StoreResult struct {
	Store   cache.Store
	Cleanup CleanupFunc
	// Exports is set only when the store can keep the export log.
	Exports ExportLog
}

// Factory creates cache stores based on configuration.
type Factory interface {
	CreateStore(ctx context.Context, config Config) (*StoreResult, error)
}

// Config holds configuration for store creation.
type Config struct {
	Type BackendType

	// File specific
	CacheDir string

	// SQLite specific
	SQLiteDBPath string
}

// BackendType names a cache persistence backend.
type BackendType string

const (
	FileBackend   BackendType = "file"
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is known.
func (bt BackendType) IsValid() bool {
	switch bt {
	case FileBackend, SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
