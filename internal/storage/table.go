package storage

import (
	"fmt"
	"strings"

	"csvload/internal/schema"
)

// TableSpec describes the destination table.
type TableSpec struct {
	Name    string
	Columns []ColumnSpec
}

type ColumnSpec struct {
	Name     string
	Type     schema.Type
	Nullable bool
}

// ColumnNames returns the spec's column names in order.
func (t TableSpec) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Validate checks the spec for the problems every backend would reject.
func (t TableSpec) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("storage: table name is empty")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("storage: table %s has no columns", t.Name)
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("storage: table %s: column name is empty", t.Name)
		}
		key := strings.ToLower(c.Name)
		if seen[key] {
			return fmt.Errorf("storage: table %s: duplicate column %q", t.Name, c.Name)
		}
		seen[key] = true
	}
	return nil
}

// SplitQualifiedName splits "schema.table" into its parts. Anything other
// than exactly one dot is treated as an unqualified name.
func SplitQualifiedName(name string) (schemaName string, table string) {
	name = strings.TrimSpace(name)
	parts := strings.Split(name, ".")
	if len(parts) != 2 {
		return "", name
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

// QuoteQualified quotes each dot-separated part of name with quote and joins
// them back, e.g. "dbo.artists" -> [dbo].[artists].
func QuoteQualified(name string, quote func(string) string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = quote(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}
