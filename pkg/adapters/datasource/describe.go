package datasource

import (
	"context"
	"fmt"

	"github.com/queryscope/queryscope-engine/pkg/schema"
)

// Describe assembles a schema description from an introspector: every user
// table with its row count, columns and outgoing foreign keys. Tables in the
// dialect's default schema keep their bare name; others are qualified as
// "schema.table" so two tables with the same name never collide.
func Describe(ctx context.Context, intr Introspector) (schema.Description, error) {
	tables, err := intr.DiscoverTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover tables: %w", err)
	}

	fks, err := intr.DiscoverForeignKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover foreign keys: %w", err)
	}
	fksByTable := make(map[string][]schema.ForeignKey)
	for _, fk := range fks {
		key := tableKey(fk.SourceSchema, fk.SourceTable)
		fksByTable[key] = append(fksByTable[key], schema.ForeignKey{
			Column:           fk.SourceColumn,
			ReferencedTable:  tableKey(fk.TargetSchema, fk.TargetTable),
			ReferencedColumn: fk.TargetColumn,
		})
	}

	desc := make(schema.Description, len(tables))
	for _, t := range tables {
		cols, err := intr.DiscoverColumns(ctx, t.SchemaName, t.TableName)
		if err != nil {
			return nil, fmt.Errorf("discover columns for %s.%s: %w", t.SchemaName, t.TableName, err)
		}

		td := schema.TableDescription{RowCount: t.RowCount}
		for _, c := range cols {
			td.Columns = append(td.Columns, schema.ColumnDescription{
				Name:     c.ColumnName,
				DataType: c.DataType,
			})
		}

		key := tableKey(t.SchemaName, t.TableName)
		td.ForeignKeys = fksByTable[key]
		desc[key] = td
	}

	return desc, nil
}

// tableKey qualifies a table name with its schema unless it lives in the
// dialect's default schema.
func tableKey(schemaName, tableName string) string {
	switch schemaName {
	case "", "public", "dbo":
		return tableName
	}
	return schemaName + "." + tableName
}
