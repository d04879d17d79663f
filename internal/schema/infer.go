package schema

import (
	"math"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"02/01/2006",
	"01/02/2006",
}

var tsLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.000Z07:00",
	"02.01.2006 15:04:05",
}

// Infer returns one Type per column by scanning every row.
//
// Empty cells are ignored. A column with no non-empty cell is text. When more
// than one type fits, the more specific wins in this order:
// integer, boolean, date, timestamp, float, text.
func Infer(width int, rows [][]string) []Type {
	out := make([]Type, width)
	for col := 0; col < width; col++ {
		out[col] = inferColumn(col, rows)
	}
	return out
}

func inferColumn(col int, rows [][]string) Type {
	var seen bool
	allInt := true
	allFloat := true
	allBool := true
	allDate := true
	allTS := true

	for _, r := range rows {
		if col >= len(r) {
			continue
		}
		v := strings.TrimSpace(r[col])
		if v == "" {
			continue
		}
		seen = true

		if allInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				allInt = false
			}
		}
		if allFloat {
			if _, ok := parseFloat(v); !ok {
				allFloat = false
			}
		}
		if allBool {
			if _, ok := parseBool(v); !ok {
				allBool = false
			}
		}
		if allDate {
			if _, ok := parseDate(v); !ok {
				allDate = false
			}
		}
		if allTS {
			if _, ok := parseTimestamp(v); !ok {
				allTS = false
			}
		}
		if !allInt && !allFloat && !allBool && !allDate && !allTS {
			return TypeText
		}
	}

	if !seen {
		return TypeText
	}
	switch {
	case allInt:
		return TypeInteger
	case allBool:
		return TypeBoolean
	case allDate:
		return TypeDate
	case allTS:
		return TypeTimestamp
	case allFloat:
		return TypeFloat
	default:
		return TypeText
	}
}

// parseFloat accepts finite decimal numbers only. NaN, Inf and hex floats
// are left to text so words like "Infinity" survive a round trip.
func parseFloat(s string) (float64, bool) {
	digits := strings.TrimLeft(s, "+-")
	if len(digits) > 1 && digits[0] == '0' && (digits[1] == 'x' || digits[1] == 'X') {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// parseBool accepts only true/false. 0/1 and y/n columns stay integer/text,
// which keeps numeric flags numeric.
func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, lay := range dateLayouts {
		if t, err := time.Parse(lay, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, lay := range tsLayouts {
		if t, err := time.Parse(lay, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
