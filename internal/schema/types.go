// Package schema infers logical column types from parsed text cells and
// coerces cells into typed Go values ready for a database write.
//
// Inference is deliberately coarse. The loader has no declared schema, so the
// destination table's column types are whatever the first load infers,
// unless the pipeline config pins them.
package schema

import (
	"fmt"
	"strings"
)

// Type is a backend-neutral column type. Storage backends map it to DDL.
type Type string

const (
	TypeInteger   Type = "integer"
	TypeFloat     Type = "float"
	TypeBoolean   Type = "boolean"
	TypeDate      Type = "date"
	TypeTimestamp Type = "timestamp"
	TypeText      Type = "text"
)

// Column describes one destination column.
type Column struct {
	// Name is the normalized database identifier.
	Name string
	// Source is the header text the column was read from.
	Source   string
	Type     Type
	Nullable bool
}

// ParseType maps a user-facing type name (including common SQL spellings)
// to a Type.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "integer", "int", "bigint", "smallint", "int64":
		return TypeInteger, nil
	case "float", "double", "real", "numeric", "decimal", "float64":
		return TypeFloat, nil
	case "boolean", "bool", "bit":
		return TypeBoolean, nil
	case "date":
		return TypeDate, nil
	case "timestamp", "datetime", "timestamptz":
		return TypeTimestamp, nil
	case "text", "string", "varchar":
		return TypeText, nil
	default:
		return "", fmt.Errorf("schema: unknown column type %q", s)
	}
}
