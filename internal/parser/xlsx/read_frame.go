// Package xlsx reads one worksheet of an Excel workbook into a frame.Frame,
// with the same header and row contract as the csv parser.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"csvload/internal/config"
	"csvload/internal/frame"
)

// ErrNoHeader is returned when the selected sheet has no rows.
var ErrNoHeader = errors.New("xlsx: missing header row")

// ReadFile opens path and reads it with ReadFrame.
func ReadFile(ctx context.Context, path string, opt config.Options) (*frame.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("xlsx: open source: %w", err)
	}
	return ReadFrame(ctx, f, opt)
}

// ReadFrame parses the workbook in src.
//
// Options:
//   - sheet: sheet name (default: first sheet)
//   - trim_space (false), header_map
//
// Rows shorter than the header are padded with empty cells; longer rows are
// an error, matching the csv parser's strict field count.
func ReadFrame(ctx context.Context, src io.ReadCloser, opt config.Options) (*frame.Frame, error) {
	defer src.Close()

	wb, err := excelize.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("xlsx: open workbook: %w", err)
	}
	defer wb.Close()

	sheet := opt.String("sheet", "")
	if sheet == "" {
		sheets := wb.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrNoHeader
		}
		sheet = sheets[0]
	}

	rows, err := wb.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("xlsx: read sheet %s: %w", sheet, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Error(); err != nil {
			return nil, fmt.Errorf("xlsx: read header: %w", err)
		}
		return nil, ErrNoHeader
	}
	hdr, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("xlsx: read header: %w", err)
	}

	headers := make([]string, len(hdr))
	for i, h := range hdr {
		headers[i] = strings.TrimSpace(h)
	}
	f := &frame.Frame{
		Columns: frame.UniqueNames(headers, opt.StringMap("header_map")),
		Headers: headers,
	}
	trim := opt.Bool("trim_space", false)

	line := 1
	for rows.Next() {
		line++
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("xlsx: sheet %s row %d: %w", sheet, line, err)
		}
		if len(rec) == 0 {
			// excelize reports gaps between populated rows as empty records
			continue
		}
		if len(rec) > len(headers) && !blankTail(rec[len(headers):]) {
			return nil, fmt.Errorf("xlsx: sheet %s row %d: %d cells, header has %d", sheet, line, len(rec), len(headers))
		}

		row := make([]string, len(headers))
		for i := 0; i < len(headers) && i < len(rec); i++ {
			v := rec[i]
			if trim {
				v = strings.TrimSpace(v)
			}
			row[i] = v
		}
		f.Rows = append(f.Rows, row)
		f.Lines = append(f.Lines, line)
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("xlsx: read sheet %s: %w", sheet, err)
	}
	return f, nil
}

func blankTail(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
