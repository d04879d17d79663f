// Package csv reads a delimited text file fully into a frame.Frame.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"csvload/internal/config"
	"csvload/internal/frame"
)

// ErrNoHeader is returned for an input with no header row at all.
var ErrNoHeader = errors.New("csv: missing header row")

// ReadFile opens path and reads it with ReadFrame.
func ReadFile(ctx context.Context, path string, opt config.Options) (*frame.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open source: %w", err)
	}
	return ReadFrame(ctx, f, opt)
}

// ReadFrame parses src into a Frame. The first record is the header.
//
// Options:
//   - comma (default ","), lazy_quotes (false), trim_space (false)
//   - fields_per_record: 0 means "same as header", -1 disables the check
//   - header_map: raw header -> column name override
//   - encoding: utf-8 (default), utf-16, windows-1250, windows-1252, latin1
//
// Any malformed record fails the whole read; no partial frame is returned.
// src is always closed.
func ReadFrame(ctx context.Context, src io.ReadCloser, opt config.Options) (*frame.Frame, error) {
	defer src.Close()

	dec, err := decoderFor(opt.String("encoding", "utf-8"))
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(transform.NewReader(src, unicode.BOMOverride(dec)))
	cr.Comma = opt.Rune("comma", ',')
	cr.LazyQuotes = opt.Bool("lazy_quotes", false)
	cr.FieldsPerRecord = opt.Int("fields_per_record", 0)
	trim := opt.Bool("trim_space", false)

	hdr, err := cr.Read()
	if err == io.EOF {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	headers := make([]string, len(hdr))
	for i, h := range hdr {
		headers[i] = strings.TrimSpace(h)
	}
	f := &frame.Frame{
		Columns: frame.UniqueNames(headers, opt.StringMap("header_map")),
		Headers: headers,
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := cr.Read()
		if err == io.EOF {
			return f, nil
		}
		if err != nil {
			return nil, fmt.Errorf("csv read: %w", err)
		}

		row := make([]string, len(headers))
		for i := range row {
			if i >= len(rec) {
				break
			}
			v := rec[i]
			if trim {
				v = strings.TrimSpace(v)
			}
			row[i] = v
		}
		line, _ := cr.FieldPos(0)
		f.Rows = append(f.Rows, row)
		f.Lines = append(f.Lines, line)
	}
}

func decoderFor(name string) (*encoding.Decoder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return unicode.UTF8.NewDecoder(), nil
	case "utf-16", "utf16", "utf-16le":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder(), nil
	case "utf-16be":
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder(), nil
	case "windows-1250", "cp1250":
		return charmap.Windows1250.NewDecoder(), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder(), nil
	case "latin1", "iso-8859-1":
		return charmap.ISO8859_1.NewDecoder(), nil
	default:
		return nil, fmt.Errorf("csv: unsupported encoding %q", name)
	}
}
