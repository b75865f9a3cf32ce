// Package datasource defines the adapter contracts for the databases the
// engine runs queries against, plus a registry so drivers can be compiled in
// independently.
package datasource

import "context"

// Introspector discovers the live schema of a datasource.
// Each implementation owns its connection and must be closed when done.
type Introspector interface {
	// DiscoverTables returns all user tables (excludes system schemas).
	DiscoverTables(ctx context.Context) ([]TableMetadata, error)

	// DiscoverColumns returns columns for a specific table.
	DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]ColumnMetadata, error)

	// DiscoverForeignKeys returns all foreign key relationships.
	DiscoverForeignKeys(ctx context.Context) ([]ForeignKeyMetadata, error)

	// Close releases the database connection.
	Close() error
}

// MaxQueryLimit is the hard cap on rows returned by Query.
// This protects against unbounded queries that could exhaust memory.
const MaxQueryLimit = 1000

// QueryExecutor executes SQL against a datasource.
// Each implementation owns its connection and must be closed when done.
type QueryExecutor interface {
	// Query runs a SELECT statement and returns bounded results.
	// The query is ALWAYS wrapped with a dialect-specific limit:
	//   - PostgreSQL: SELECT * FROM (query) AS _q LIMIT n
	//   - SQL Server: SELECT TOP (n) * FROM (query) AS _q
	//
	// Limit behavior:
	//   - limit <= 0: uses MaxQueryLimit
	//   - limit > MaxQueryLimit: capped to MaxQueryLimit
	//   - otherwise: uses the specified limit
	Query(ctx context.Context, sqlQuery string, limit int) (*QueryResult, error)

	// QueryWithParams runs a parameterized SELECT with bounded results.
	// Placeholders are dialect-specific ($1 for PostgreSQL, @p1 for SQL
	// Server); params provides values in placeholder order. Same wrapping
	// and capping as Query.
	QueryWithParams(ctx context.Context, sqlQuery string, params []any, limit int) (*QueryResult, error)

	// QuoteIdentifier safely quotes a table, column or schema name using
	// dialect-specific quoting.
	QuoteIdentifier(name string) string

	// Ping verifies the datasource is reachable with valid credentials.
	Ping(ctx context.Context) error

	// Close releases any resources held by the executor.
	Close() error
}

// TableMetadata represents a discovered database table.
type TableMetadata struct {
	SchemaName string
	TableName  string
	RowCount   int64
}

// ColumnMetadata represents a discovered database column.
type ColumnMetadata struct {
	ColumnName      string
	DataType        string
	IsNullable      bool
	IsPrimaryKey    bool
	OrdinalPosition int
}

// ForeignKeyMetadata represents a discovered foreign key constraint.
type ForeignKeyMetadata struct {
	ConstraintName string
	SourceSchema   string
	SourceTable    string
	SourceColumn   string
	TargetSchema   string
	TargetTable    string
	TargetColumn   string
}

// ColumnInfo describes a result column with database-agnostic type
// information.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"` // Database type name (e.g. "TEXT", "INT4", "VARCHAR")
}

// QueryResult holds the results from executing a query.
type QueryResult struct {
	Columns  []ColumnInfo     `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
}

// PoolConfig carries connection pool sizing into the driver factories.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// ClampLimit applies the Query limit rules shared by all drivers.
func ClampLimit(limit int) int {
	if limit <= 0 || limit > MaxQueryLimit {
		return MaxQueryLimit
	}
	return limit
}
