// Package schema defines the schema description exchanged between the
// introspection adapters and the name resolver. A Description is a snapshot
// of what the live database looked like at introspection time; it may be
// partial or stale and consumers must degrade gracefully rather than
// validate it strictly.
package schema

// Description maps table name to everything the resolver needs to learn
// about that table. Table names keep their original casing.
type Description map[string]TableDescription

// TableDescription describes one table in a datasource.
type TableDescription struct {
	Columns     []ColumnDescription `json:"columns"`
	RowCount    int64               `json:"row_count"`
	ForeignKeys []ForeignKey        `json:"foreign_keys,omitempty"`
}

// ColumnDescription describes one column.
type ColumnDescription struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
}

// ForeignKey describes a foreign key constraint on a table.
type ForeignKey struct {
	Column           string `json:"column"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
}

// HasRows reports whether the table had at least one row at introspection
// time.
func (t TableDescription) HasRows() bool {
	return t.RowCount > 0
}

// TableNames returns the table names in the description, in map order.
func (d Description) TableNames() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	return names
}

// HasRows reports whether the named table exists and has at least one row.
func (d Description) HasRows(table string) bool {
	t, ok := d[table]
	return ok && t.HasRows()
}
