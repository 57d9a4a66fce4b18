// Package storage contains the backend-agnostic archive contracts. Derived
// event tables can optionally be archived into a database for cross-run QC
// queries; concrete backends register themselves with the factory here.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config carries everything a backend needs to open an archive sink.
type Config struct {
	// Kind selects the registered backend ("sqlite", "postgres").
	Kind string

	// DSN is the backend connection string.
	DSN string

	// Table is the destination table name.
	Table string
}

// Repository is an open archive sink.
type Repository interface {
	// CopyFrom bulk-inserts rows aligned to the columns order and returns the
	// number of rows inserted.
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)

	// Exec runs an arbitrary statement, typically DDL.
	Exec(ctx context.Context, sql string) error

	// Close releases the connection.
	Close()
}

// Factory opens a Repository for one backend kind.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. Backends call this from
// init; importing the all package registers every built-in.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := factories[kind]; dup {
		panic(fmt.Sprintf("storage: backend %q registered twice", kind))
	}
	factories[kind] = f
}

// New opens a Repository for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: unknown backend %q (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds returns the registered backend names, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
