package loader

import (
	"context"
	"errors"
	"fmt"

	"csvload/internal/config"
	"csvload/internal/frame"
	csvparser "csvload/internal/parser/csv"
	xlsxparser "csvload/internal/parser/xlsx"
	"csvload/internal/schema"
)

// Parse reads the pipeline's source file into a Frame with the configured
// parser.
func Parse(ctx context.Context, p config.Pipeline) (*frame.Frame, error) {
	if p.Source.File == nil || p.Source.File.Path == "" {
		return nil, fmt.Errorf("loader: source.file.path is required")
	}
	path := p.Source.File.Path

	switch p.Parser.Kind {
	case "", "csv":
		return csvparser.ReadFile(ctx, path, p.Parser.Options)
	case "xlsx":
		return xlsxparser.ReadFile(ctx, path, p.Parser.Options)
	default:
		return nil, fmt.Errorf("loader: unsupported parser.kind=%s", p.Parser.Kind)
	}
}

// ApplyTransforms runs the frame steps in config order.
//
//   - add_index: options.name, options.columns
//   - sort: options.column; numeric when the column infers as integer or float
//
// Column references are normalized the same way headers are.
func ApplyTransforms(fr *frame.Frame, ts []config.Transform) error {
	for i, t := range ts {
		switch t.Kind {
		case "add_index":
			cols := t.Options.StringSlice("columns")
			for j := range cols {
				cols[j] = frame.NormalizeName(cols[j])
			}
			if err := fr.AddIndex(frame.NormalizeName(t.Options.String("name", "")), cols); err != nil {
				return fmt.Errorf("transform[%d]: %w", i, err)
			}
		case "sort":
			col := frame.NormalizeName(t.Options.String("column", ""))
			if err := fr.SortBy(col, isNumericColumn(fr, col)); err != nil {
				return fmt.Errorf("transform[%d]: %w", i, err)
			}
		default:
			return fmt.Errorf("transform[%d]: unknown kind %q", i, t.Kind)
		}
	}
	return nil
}

func isNumericColumn(fr *frame.Frame, col string) bool {
	ci := fr.ColumnIndex(col)
	if ci < 0 {
		return false
	}
	switch schema.Infer(len(fr.Columns), fr.Rows)[ci] {
	case schema.TypeInteger, schema.TypeFloat:
		return true
	}
	return false
}

// ResolveColumns decides the destination columns and returns the cells to
// coerce, aligned with them.
//
// Without configured columns every frame column is kept with its inferred
// type, nullable. Configured columns override type and nullability by name.
// With strict_columns the configured list is the whole schema, in config
// order, and every frame column must be declared.
func ResolveColumns(fr *frame.Frame, db config.DBConfig) ([]schema.Column, [][]string, error) {
	types := schema.Infer(len(fr.Columns), fr.Rows)
	cols := make([]schema.Column, len(fr.Columns))
	for i, name := range fr.Columns {
		src := name
		if i < len(fr.Headers) {
			src = fr.Headers[i]
		}
		cols[i] = schema.Column{Name: name, Source: src, Type: types[i], Nullable: true}
	}
	if len(db.Columns) == 0 {
		return cols, fr.Rows, nil
	}

	positions := make([]int, len(db.Columns))
	for i, cc := range db.Columns {
		name := frame.NormalizeName(cc.Name)
		ci := fr.ColumnIndex(name)
		if ci < 0 {
			return nil, nil, fmt.Errorf("loader: configured column %q not found in source columns %v", cc.Name, fr.Columns)
		}
		if cc.Type != "" {
			t, err := schema.ParseType(cc.Type)
			if err != nil {
				return nil, nil, err
			}
			cols[ci].Type = t
		}
		if cc.Nullable != nil {
			cols[ci].Nullable = *cc.Nullable
		}
		positions[i] = ci
	}
	if !db.StrictColumns {
		return cols, fr.Rows, nil
	}

	declared := make(map[int]bool, len(positions))
	for _, ci := range positions {
		declared[ci] = true
	}
	for ci, name := range fr.Columns {
		if !declared[ci] {
			return nil, nil, fmt.Errorf("loader: source column %q is not declared in storage.db.columns", name)
		}
	}

	out := make([]schema.Column, len(positions))
	for i, ci := range positions {
		out[i] = cols[ci]
	}
	cells := make([][]string, len(fr.Rows))
	for r, row := range fr.Rows {
		projected := make([]string, len(positions))
		for i, ci := range positions {
			if ci < len(row) {
				projected[i] = row[ci]
			}
		}
		cells[r] = projected
	}
	return out, cells, nil
}

// withSourceLine prefixes a coercion error with the row's source line.
func withSourceLine(err error, lines []int) error {
	var ce *schema.CoerceError
	if errors.As(err, &ce) && ce.Row < len(lines) {
		return fmt.Errorf("line %d: %w", lines[ce.Row], err)
	}
	return err
}
