package datasource

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// IntrospectorFactory opens an Introspector for a connection string.
type IntrospectorFactory func(ctx context.Context, connStr string, pool PoolConfig, logger *zap.Logger) (Introspector, error)

// QueryExecutorFactory opens a QueryExecutor for a connection string.
type QueryExecutorFactory func(ctx context.Context, connStr string, pool PoolConfig, logger *zap.Logger) (QueryExecutor, error)

// Registration describes one datasource driver.
type Registration struct {
	Type          string // "postgres", "mssql"
	DisplayName   string // "PostgreSQL", "Microsoft SQL Server"
	Introspector  IntrospectorFactory
	QueryExecutor QueryExecutorFactory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Registration)
)

// Register is called by each driver's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg Registration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Type] = reg
}

// RegisteredTypes returns the type names of all registered drivers.
func RegisteredTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	return types
}

// IsRegistered checks if a driver type is available.
func IsRegistered(dsType string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[dsType]
	return ok
}

func lookup(dsType string) (Registration, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	reg, ok := registry[dsType]
	return reg, ok
}
