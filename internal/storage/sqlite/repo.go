package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"csvload/internal/schema"
	"csvload/internal/storage"
)

// maxParams is SQLITE_MAX_VARIABLE_NUMBER in the modernc build.
const maxParams = 32766

// Repo implements storage.Repository for SQLite.
//
// SQLite has no native DATE or TIMESTAMP type. Time values are stored as TEXT:
// midnight-UTC values (what date columns coerce to) as "2006-01-02", anything
// else as RFC3339Nano.
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("sqlite", New)
}

// New opens the database at cfg.DSN. SQLite has no server, so discrete
// connection parameters are ignored.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sqlite: dsn is required")
	}
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("storage: connect sqlite: %w", err)
	}
	// one connection keeps ":memory:" databases coherent and serializes writers
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: connect sqlite: %w", err)
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

func (r *Repo) TableExists(ctx context.Context, table string) (bool, error) {
	schemaName, name := storage.SplitQualifiedName(table)
	master := "sqlite_master"
	if schemaName != "" {
		master = sqlIdent(schemaName) + ".sqlite_master"
	}
	var n int
	q := `SELECT COUNT(*) FROM ` + master + ` WHERE type = 'table' AND name = ?`
	if err := r.db.QueryRowContext(ctx, q, name).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Repo) EnsureTable(ctx context.Context, spec storage.TableSpec) error {
	q, err := buildCreateTableSQL(spec)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("create table %s: %w", spec.Name, err)
	}
	return nil
}

func (r *Repo) DropTable(ctx context.Context, table string) error {
	_, err := r.db.ExecContext(ctx, `DROP TABLE IF EXISTS `+tableIdent(table))
	return err
}

// InsertRows performs multi-row inserts inside one transaction.
func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any, chunkSize int) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var total int64
	for _, chunk := range storage.ChunkRows(rows, chunkSize, len(columns), maxParams) {
		q, args := buildInsertSQL(table, columns, chunk)
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return 0, err
		}
		n, _ := res.RowsAffected()
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *Repo) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+tableIdent(table)).Scan(&n)
	return n, err
}

func sqlIdent(id string) string {
	// SQLite supports "quoted identifiers"
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func tableIdent(name string) string {
	return storage.QuoteQualified(name, sqlIdent)
}

// columnType maps a logical type onto the types a STRICT table allows.
func columnType(t schema.Type) string {
	switch t {
	case schema.TypeInteger, schema.TypeBoolean:
		return "INTEGER"
	case schema.TypeFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}

func buildCreateTableSQL(t storage.TableSpec) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}

	parts := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		col := fmt.Sprintf("%s %s", sqlIdent(c.Name), columnType(c.Type))
		if !c.Nullable {
			col += " NOT NULL"
		}
		parts = append(parts, col)
	}

	// STRICT rejects a value that does not fit its column instead of storing
	// it with a different storage class.
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n) STRICT;", tableIdent(t.Name), strings.Join(parts, ",\n  ")), nil
}

func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	colList := make([]string, 0, len(columns))
	for _, c := range columns {
		colList = append(colList, sqlIdent(c))
	}
	placeholders := "(" + strings.TrimRight(strings.Repeat("?,", len(columns)), ",") + ")"

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(tableIdent(table))
	b.WriteString(" (")
	b.WriteString(strings.Join(colList, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholders)
		for _, v := range row {
			args = append(args, sqliteValue(v))
		}
	}
	return b.String(), args
}

func sqliteValue(v any) any {
	t, ok := v.(time.Time)
	if !ok {
		return v
	}
	return formatSQLiteTime(t)
}

// formatSQLiteTime formats dates (midnight UTC) as "2006-01-02" and other
// times as RFC3339Nano in UTC.
func formatSQLiteTime(t time.Time) string {
	t = t.UTC()
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(time.DateOnly)
	}
	return t.Format(time.RFC3339Nano)
}
