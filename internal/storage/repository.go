package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config is the minimal configuration needed to create a Repository.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - When DSN is empty the backend builds one from Conn; validation of both
//     is backend-specific.
type Config struct {
	Kind string
	DSN  string
	Conn ConnParams
}

// ConnParams are discrete connection parameters, used when no DSN is given.
// A zero Port means the backend's default port.
type ConnParams struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// Repository is a backend-agnostic interface for writing one table.
//
// Each backend implements these semantics with its own DDL dialect and
// bulk-insert mechanism.
type Repository interface {
	// Close releases any backend resources (connections, pools). Call once.
	Close()

	// TableExists reports whether the named table exists.
	TableExists(ctx context.Context, table string) (bool, error)

	// EnsureTable creates the table if it does not exist. An existing table
	// is left untouched, even if its columns differ from spec.
	EnsureTable(ctx context.Context, spec TableSpec) error

	// DropTable drops the table if it exists.
	DropTable(ctx context.Context, table string) error

	// InsertRows inserts all rows inside a single transaction, using
	// multi-row statements of at most chunkSize rows. On error nothing from
	// this call is committed.
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any, chunkSize int) (int64, error)

	// CountRows returns SELECT COUNT(*) for the table.
	CountRows(ctx context.Context, table string) (int64, error)
}

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind (e.g. "mysql", "sqlite").
//
// Call Register from an init() function in a backend package.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Repository using the registered backend factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("storage: unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// Kinds returns the registered backend kinds, sorted.
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
