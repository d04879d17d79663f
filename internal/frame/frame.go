// Package frame holds a parsed file in memory as named columns of text cells.
//
// A Frame is built once per load by a parser, optionally reshaped by the
// add_index and sort steps, and then handed to the loader for coercion and
// insert. It is not safe for concurrent mutation.
package frame

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
)

type Frame struct {
	// Columns are normalized column names, unique within the frame.
	Columns []string
	// Headers are the raw header cells, aligned with Columns.
	Headers []string
	// Rows are data rows; every row has len(Columns) cells.
	Rows [][]string
	// Lines holds the 1-based source line of each row when known.
	Lines []int
}

// Len returns the number of data rows.
func (f *Frame) Len() int { return len(f.Rows) }

// ColumnIndex returns the position of name, or -1.
func (f *Frame) ColumnIndex(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Head writes the header and the first n rows as an aligned table.
func (f *Frame) Head(w io.Writer, n int) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\t"+strings.Join(f.Columns, "\t"))
	for i := 0; i < n && i < len(f.Rows); i++ {
		fmt.Fprintln(tw, strconv.Itoa(i)+"\t"+strings.Join(f.Rows[i], "\t"))
	}
	if len(f.Rows) > n {
		fmt.Fprintf(tw, "\n[%d rows x %d columns]\n", len(f.Rows), len(f.Columns))
	}
	return tw.Flush()
}

// AddIndex appends a column named name whose value is the listed columns'
// cells joined by "-", e.g. "Metallica-Ride the Lightning". If name already
// exists its cells are overwritten.
func (f *Frame) AddIndex(name string, columns []string) error {
	if name == "" {
		return fmt.Errorf("frame: add_index: empty column name")
	}
	idx := make([]int, len(columns))
	for i, c := range columns {
		idx[i] = f.ColumnIndex(c)
		if idx[i] < 0 {
			return fmt.Errorf("frame: add_index: unknown column %q", c)
		}
	}

	target := f.ColumnIndex(name)
	if target < 0 {
		f.Columns = append(f.Columns, name)
		f.Headers = append(f.Headers, name)
	}

	parts := make([]string, len(idx))
	for r, row := range f.Rows {
		for i, ci := range idx {
			parts[i] = row[ci]
		}
		v := strings.Join(parts, "-")
		if target < 0 {
			f.Rows[r] = append(row, v)
		} else {
			row[target] = v
		}
	}
	return nil
}

// SortBy stably sorts rows ascending by column. When numeric is true cells
// compare as float64; empty or non-numeric cells sort first.
func (f *Frame) SortBy(column string, numeric bool) error {
	ci := f.ColumnIndex(column)
	if ci < 0 {
		return fmt.Errorf("frame: sort: unknown column %q", column)
	}

	order := make([]int, len(f.Rows))
	for i := range order {
		order[i] = i
	}

	less := func(a, b string) bool { return a < b }
	if numeric {
		less = func(a, b string) bool {
			fa, errA := strconv.ParseFloat(strings.TrimSpace(a), 64)
			fb, errB := strconv.ParseFloat(strings.TrimSpace(b), 64)
			switch {
			case errA != nil && errB != nil:
				return a < b
			case errA != nil:
				return true
			case errB != nil:
				return false
			default:
				return fa < fb
			}
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return less(f.Rows[order[i]][ci], f.Rows[order[j]][ci])
	})

	rows := make([][]string, len(f.Rows))
	var lines []int
	if len(f.Lines) == len(f.Rows) {
		lines = make([]int, len(f.Lines))
	}
	for i, o := range order {
		rows[i] = f.Rows[o]
		if lines != nil {
			lines[i] = f.Lines[o]
		}
	}
	f.Rows = rows
	if lines != nil {
		f.Lines = lines
	}
	return nil
}
