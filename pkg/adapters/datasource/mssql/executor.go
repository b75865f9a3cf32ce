package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/queryscope/queryscope-engine/pkg/adapters/datasource"
)

// Executor provides bounded SQL Server query execution.
type Executor struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewExecutor connects to SQL Server and returns a query executor.
// If logger is nil, a no-op logger is used.
func NewExecutor(ctx context.Context, connStr string, poolCfg datasource.PoolConfig, logger *zap.Logger) (*Executor, error) {
	db, err := openDB(connStr, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to sqlserver: %w", err)
	}
	return NewExecutorFromDB(db, logger), nil
}

// NewExecutorFromDB wraps an existing connection.
func NewExecutorFromDB(db *sql.DB, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{db: db, logger: logger}
}

// Query runs a SELECT statement wrapped with TOP so results are always
// bounded. See datasource.QueryExecutor for the limit rules.
func (e *Executor) Query(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryResult, error) {
	return e.QueryWithParams(ctx, sqlQuery, nil, limit)
}

// QueryWithParams runs a parameterized SELECT (@p1, @p2, ...) with bounded
// results. database/sql passes the parameters through to the driver.
func (e *Executor) QueryWithParams(ctx context.Context, sqlQuery string, params []any, limit int) (*datasource.QueryResult, error) {
	wrapped := fmt.Sprintf("SELECT TOP (%d) * FROM (%s) AS _q", datasource.ClampLimit(limit), sqlQuery)

	rows, err := e.db.QueryContext(ctx, wrapped, params...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("read column types: %w", err)
	}
	columns := make([]datasource.ColumnInfo, len(colTypes))
	for i, ct := range colTypes {
		columns[i] = datasource.ColumnInfo{
			Name: ct.Name(),
			Type: strings.ToUpper(ct.DatabaseTypeName()),
		}
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			// The driver hands text back as []byte; strings are friendlier
			// for callers serializing results.
			if b, ok := values[i].([]byte); ok {
				rowMap[col.Name] = string(b)
			} else {
				rowMap[col.Name] = values[i]
			}
		}
		resultRows = append(resultRows, rowMap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return &datasource.QueryResult{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
	}, nil
}

// QuoteIdentifier quotes an identifier with SQL Server bracket rules.
func (e *Executor) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// Ping verifies the database is reachable.
func (e *Executor) Ping(ctx context.Context) error {
	return e.db.PingContext(ctx)
}

// Close releases the database connection.
func (e *Executor) Close() error {
	if e.db != nil {
		return e.db.Close()
	}
	return nil
}

var _ datasource.QueryExecutor = (*Executor)(nil)
