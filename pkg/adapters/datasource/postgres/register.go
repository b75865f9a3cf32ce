package postgres

import (
	"context"

	"go.uber.org/zap"

	"github.com/queryscope/queryscope-engine/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.Registration{
		Type:        "postgres",
		DisplayName: "PostgreSQL",
		Introspector: func(ctx context.Context, connStr string, pool datasource.PoolConfig, logger *zap.Logger) (datasource.Introspector, error) {
			return NewIntrospector(ctx, connStr, pool, logger)
		},
		QueryExecutor: func(ctx context.Context, connStr string, pool datasource.PoolConfig, logger *zap.Logger) (datasource.QueryExecutor, error) {
			return NewExecutor(ctx, connStr, pool, logger)
		},
	})
}
