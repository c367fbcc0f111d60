package indexer

import (
	"fmt"
	"strings"
)

// ColumnDef defines a single column of an upstream table.
// It is the single source of truth for column names, used both by the SELECT
// lists in pkg/db/chain and by the development schema bootstrap.
type ColumnDef struct {
	// Name is the column name in the source table
	Name string

	// Type is the ClickHouse data type (e.g., "UInt64", "String", "UInt256")
	Type string

	// Codec is the optional compression codec (e.g., "ZSTD(1)", "Delta, ZSTD(3)")
	Codec string
}

// Quoted returns the column name as a quoted identifier. Several upstream
// columns ("from", "to") collide with SQL keywords, so every generated query quotes.
func (c ColumnDef) Quoted() string {
	return `"` + c.Name + `"`
}

// SQL returns the full column definition for CREATE TABLE statements.
// Example: "\"address\" String CODEC(ZSTD(1))"
func (c ColumnDef) SQL() string {
	if c.Codec != "" {
		return fmt.Sprintf("%s %s CODEC(%s)", c.Quoted(), c.Type, c.Codec)
	}
	return fmt.Sprintf("%s %s", c.Quoted(), c.Type)
}

// Validate checks if the column definition is valid.
func (c ColumnDef) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("column name cannot be empty")
	}
	if c.Type == "" {
		return fmt.Errorf("column %s: type cannot be empty", c.Name)
	}
	return nil
}

// ColumnsToSchemaSQL converts a list of ColumnDef to a CREATE TABLE schema string.
func ColumnsToSchemaSQL(columns []ColumnDef) string {
	parts := make([]string, 0, len(columns))
	for _, col := range columns {
		parts = append(parts, col.SQL())
	}
	return strings.Join(parts, ",\n\t\t\t")
}

// ColumnsToSelectSQL converts a list of ColumnDef to a SELECT list in declaration order.
// Example output: "\"hash\", \"block_num\", \"from\""
func ColumnsToSelectSQL(columns []ColumnDef) string {
	parts := make([]string, 0, len(columns))
	for _, col := range columns {
		parts = append(parts, col.Quoted())
	}
	return strings.Join(parts, ", ")
}
