package backend

import (
	"context"
	"path/filepath"
	"testing"

	"fluidspend/internal/config"
)

func TestFactory_CreateStore(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name        string
		config      Config
		wantErr     bool
		wantCleanup bool
		wantExports bool
	}{
		{
			name:   "file backend",
			config: Config{Type: FileBackend, CacheDir: filepath.Join(dir, "cache")},
		},
		{
			name:        "sqlite backend",
			config:      Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(dir, "db", "cache.db")},
			wantCleanup: true,
			wantExports: true,
		},
		{
			name:   "memory backend",
			config: Config{Type: MemoryBackend},
		},
		{
			name:    "file backend without directory",
			config:  Config{Type: FileBackend},
			wantErr: true,
		},
		{
			name:    "sqlite backend without path",
			config:  Config{Type: SQLiteBackend},
			wantErr: true,
		},
		{
			name:    "unknown backend",
			config:  Config{Type: "redis"},
			wantErr: true,
		},
	}

	f := NewFactory(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.CreateStore(context.Background(), tt.config)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateStore() error = %v", err)
			}
			if res.Store == nil {
				t.Fatalf("expected a store")
			}
			if (res.Cleanup != nil) != tt.wantCleanup {
				t.Errorf("cleanup present = %v, want %v", res.Cleanup != nil, tt.wantCleanup)
			}
			if (res.Exports != nil) != tt.wantExports {
				t.Errorf("exports present = %v, want %v", res.Exports != nil, tt.wantExports)
			}
			if res.Cleanup != nil {
				if err := res.Cleanup(); err != nil {
					t.Errorf("cleanup: %v", err)
				}
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	cfg, err := FromAppConfig(&config.Config{CacheBackend: "sqlite", SQLiteDBPath: "x.db", CacheDir: "c"})
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if cfg.Type != SQLiteBackend || cfg.SQLiteDBPath != "x.db" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if _, err := FromAppConfig(&config.Config{CacheBackend: "sheets"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}
