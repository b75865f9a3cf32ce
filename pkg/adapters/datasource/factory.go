package datasource

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Factory creates adapters from the driver registry.
type Factory interface {
	// NewIntrospector opens an introspector for the given datasource type.
	NewIntrospector(ctx context.Context, dsType, connStr string) (Introspector, error)

	// NewQueryExecutor opens a query executor for the given datasource type.
	NewQueryExecutor(ctx context.Context, dsType, connStr string) (QueryExecutor, error)

	// ListTypes returns the registered datasource types.
	ListTypes() []string
}

type registryFactory struct {
	pool   PoolConfig
	logger *zap.Logger
}

// NewFactory returns a Factory backed by the global driver registry.
// A nil logger becomes a no-op.
func NewFactory(pool PoolConfig, logger *zap.Logger) Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &registryFactory{pool: pool, logger: logger}
}

func (f *registryFactory) NewIntrospector(ctx context.Context, dsType, connStr string) (Introspector, error) {
	reg, ok := lookup(dsType)
	if !ok || reg.Introspector == nil {
		return nil, fmt.Errorf("unsupported datasource type: %s (not compiled in)", dsType)
	}
	return reg.Introspector(ctx, connStr, f.pool, f.logger)
}

func (f *registryFactory) NewQueryExecutor(ctx context.Context, dsType, connStr string) (QueryExecutor, error) {
	reg, ok := lookup(dsType)
	if !ok || reg.QueryExecutor == nil {
		return nil, fmt.Errorf("unsupported datasource type: %s (not compiled in)", dsType)
	}
	return reg.QueryExecutor(ctx, connStr, f.pool, f.logger)
}

func (f *registryFactory) ListTypes() []string {
	return RegisteredTypes()
}

var _ Factory = (*registryFactory)(nil)
