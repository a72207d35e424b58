// Package storage persists validation run reports behind a backend-agnostic
// Repository. Backends register a Factory for their kind at init time;
// importing storage/all enables every built-in backend.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"obsmask/internal/summary"
)

// DefaultTable is used when Config.Table is empty. Element rows go to
// <table>_elements.
const DefaultTable = "obsmask_runs"

// Config selects and configures a backend.
type Config struct {
	Kind  string
	DSN   string
	Table string
}

// TableName returns the configured table or DefaultTable.
func (c Config) TableName() string {
	if c.Table == "" {
		return DefaultTable
	}
	return c.Table
}

// Repository stores run reports.
type Repository interface {
	// EnsureSchema creates the run and element tables when absent.
	EnsureSchema(ctx context.Context) error
	// SaveRun writes one run and its element counts atomically.
	SaveRun(ctx context.Context, run summary.Run) error
	Close()
}

// Factory opens a Repository for a Config.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens a Repository of cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Save opens a repository, ensures its schema and stores run.
func Save(ctx context.Context, cfg Config, run summary.Run) error {
	repo, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close()
	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}
	return repo.SaveRun(ctx, run)
}
