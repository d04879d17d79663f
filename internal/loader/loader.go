// Package loader runs one CSV (or XLSX) to table load: parse the whole file,
// apply the optional frame steps, infer and coerce column types, then write
// every row into the destination table inside a single transaction.
//
// Parsing and coercion finish before any database work starts, so a malformed
// file never leaves a partially loaded table behind.
package loader

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"csvload/internal/config"
	"csvload/internal/metrics"
	"csvload/internal/schema"
	"csvload/internal/storage"
)

// Logger is the minimal logging interface used by the loader.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Result summarizes a finished load.
type Result struct {
	RunID       string
	Table       string
	Columns     []schema.Column
	RowsParsed  int64
	RowsWritten int64
	// TableRows is the table's row count after the write, including rows
	// from earlier appends. -1 when the count could not be read.
	TableRows   int64
	Duration    time.Duration
}

// Runner executes pipelines. The zero value is not usable; use NewRunner.
type Runner struct {
	// NewRepository is the storage factory seam. Production uses storage.New.
	NewRepository func(ctx context.Context, cfg storage.Config) (storage.Repository, error)

	// Logger receives stage logs. Nil discards them.
	Logger Logger

	// NewRunID returns the id attached to the Result and to logs.
	NewRunID func() string
}

// NewRunner returns a Runner wired to the registered storage backends.
func NewRunner(logger Logger) *Runner {
	return &Runner{
		NewRepository: storage.New,
		Logger:        logger,
		NewRunID:      func() string { return uuid.NewString() },
	}
}

// Run executes the pipeline once.
//
// Errors:
//   - config.ErrInvalid when validation reports errors, including a
//     storage.kind with no registered backend.
//   - parse errors (missing file, malformed row) before the database is touched.
//   - *schema.CoerceError for a cell that does not fit a configured type.
//   - storage errors, including storage.ErrTableExists in fail mode.
func (r *Runner) Run(ctx context.Context, p config.Pipeline) (Result, error) {
	start := time.Now()
	res := Result{RunID: r.runID(), Table: p.Storage.DB.Table}
	logf := r.logger()

	config.ApplyDefaults(&p)
	if err := config.Validate(p, storage.Kinds()); err != nil {
		return res, err
	}
	mode, err := storage.ParseWriteMode(p.Storage.DB.Mode)
	if err != nil {
		return res, err
	}

	logf("run_id=%s stage=start source=%s parser=%s storage=%s table=%s mode=%s",
		res.RunID, sourcePath(p), p.Parser.Kind, p.Storage.Kind, res.Table, mode)

	// Parse.
	stepStart := time.Now()
	fr, err := Parse(ctx, p)
	if err != nil {
		observeStep("parse", stepStart, err)
		return res, err
	}
	if err := ApplyTransforms(fr, p.Transform); err != nil {
		observeStep("parse", stepStart, err)
		return res, err
	}
	res.RowsParsed = int64(fr.Len())
	metrics.RecordRows("parsed", res.RowsParsed)
	observeStep("parse", stepStart, nil)
	logf("run_id=%s stage=parse ok rows=%d columns=%d duration=%s", res.RunID, fr.Len(), len(fr.Columns), durMS(stepStart))

	// Schema and coercion.
	stepStart = time.Now()
	cols, cells, err := ResolveColumns(fr, p.Storage.DB)
	if err != nil {
		observeStep("coerce", stepStart, err)
		return res, err
	}
	rows, err := schema.CoerceRows(cols, cells)
	if err != nil {
		observeStep("coerce", stepStart, err)
		return res, withSourceLine(err, fr.Lines)
	}
	res.Columns = cols
	observeStep("coerce", stepStart, nil)
	logf("run_id=%s stage=coerce ok types=%s duration=%s", res.RunID, describeColumns(cols), durMS(stepStart))

	// Write.
	stepStart = time.Now()
	repo, err := r.NewRepository(ctx, storageConfig(p))
	if err != nil {
		observeStep("insert", stepStart, err)
		return res, err
	}
	defer repo.Close()

	n, err := storage.Write(ctx, repo, TableSpec(p.Storage.DB.Table, cols), rows, mode, p.Storage.DB.ChunkSize)
	if err != nil {
		observeStep("insert", stepStart, err)
		return res, err
	}
	res.RowsWritten = n
	metrics.RecordRows("written", n)
	observeStep("insert", stepStart, nil)

	// The write is committed; a failed count only loses the summary.
	res.TableRows, err = repo.CountRows(ctx, p.Storage.DB.Table)
	if err != nil {
		res.TableRows = -1
		logf("run_id=%s stage=count error=%v", res.RunID, err)
	}
	logf("run_id=%s stage=insert ok rows=%d table_rows=%d duration=%s", res.RunID, n, res.TableRows, durMS(stepStart))

	res.Duration = time.Since(start)
	return res, nil
}

// TableSpec builds the destination table spec from resolved columns.
func TableSpec(table string, cols []schema.Column) storage.TableSpec {
	spec := storage.TableSpec{Name: table, Columns: make([]storage.ColumnSpec, len(cols))}
	for i, c := range cols {
		spec.Columns[i] = storage.ColumnSpec{Name: c.Name, Type: c.Type, Nullable: c.Nullable}
	}
	return spec
}

func storageConfig(p config.Pipeline) storage.Config {
	db := p.Storage.DB
	return storage.Config{
		Kind: p.Storage.Kind,
		DSN:  db.DSN,
		Conn: storage.ConnParams{
			Host:     db.Host,
			Port:     db.Port,
			User:     db.User,
			Password: db.Password,
			Database: db.Database,
		},
	}
}

func (r *Runner) logger() func(format string, v ...any) {
	if r.Logger == nil {
		return log.New(io.Discard, "", 0).Printf
	}
	return r.Logger.Printf
}

func (r *Runner) runID() string {
	if r.NewRunID == nil {
		return uuid.NewString()
	}
	return r.NewRunID()
}

func observeStep(step string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordStep(step, status, time.Since(start))
}

func durMS(start time.Time) time.Duration { return time.Since(start).Truncate(time.Millisecond) }

func sourcePath(p config.Pipeline) string {
	if p.Source.File == nil {
		return ""
	}
	return p.Source.File.Path
}

func describeColumns(cols []schema.Column) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprintf("%s:%s", c.Name, c.Type)
	}
	return strings.Join(parts, ",")
}
