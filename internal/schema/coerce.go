package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// CoerceError reports a cell that does not fit its column type.
type CoerceError struct {
	Row    int // 0-based data row index
	Column string
	Type   Type
	Value  string
	Err    error
}

func (e *CoerceError) Error() string {
	return fmt.Sprintf("schema: row %d column %q: cannot coerce %q to %s: %v", e.Row, e.Column, e.Value, e.Type, e.Err)
}

func (e *CoerceError) Unwrap() error { return e.Err }

// Coerce converts one text cell into the Go value stored for t.
// Empty input is NULL for every type.
func Coerce(t Type, s string) (any, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil, nil
	}
	switch t {
	case TypeInteger:
		return strconv.ParseInt(v, 10, 64)
	case TypeFloat:
		f, ok := parseFloat(v)
		if !ok {
			return nil, fmt.Errorf("not a finite decimal number")
		}
		return f, nil
	case TypeBoolean:
		b, ok := parseBool(v)
		if !ok {
			return nil, fmt.Errorf("not a boolean")
		}
		return b, nil
	case TypeDate:
		d, ok := parseDate(v)
		if !ok {
			return nil, fmt.Errorf("not a date")
		}
		return d, nil
	case TypeTimestamp:
		ts, ok := parseTimestamp(v)
		if !ok {
			return nil, fmt.Errorf("not a timestamp")
		}
		return ts, nil
	case TypeText, "":
		// text keeps the raw cell, including inner whitespace
		return s, nil
	default:
		return nil, fmt.Errorf("unknown type %q", t)
	}
}

// CoerceRows converts every row positionally against cols. Rows shorter than
// cols are padded with NULL.
func CoerceRows(cols []Column, rows [][]string) ([][]any, error) {
	out := make([][]any, len(rows))
	for i, r := range rows {
		vals := make([]any, len(cols))
		for j, c := range cols {
			if j >= len(r) {
				continue
			}
			v, err := Coerce(c.Type, r[j])
			if err != nil {
				return nil, &CoerceError{Row: i, Column: c.Name, Type: c.Type, Value: r[j], Err: err}
			}
			vals[j] = v
		}
		out[i] = vals
	}
	return out, nil
}
