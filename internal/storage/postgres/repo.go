package postgres

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"csvload/internal/schema"
	"csvload/internal/storage"
)

const defaultPort = 5432

/*
Repo implements storage.Repository for Postgres.

Rows are written with the COPY protocol (pgx CopyFrom), one COPY per chunk,
all inside a single transaction.
*/
type Repo struct {
	pool *pgxpool.Pool
}

func init() {
	storage.Register("postgres", New)
}

// New creates a Postgres-backed Repo. cfg.DSN wins over cfg.Conn.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	dsn := cfg.DSN
	if dsn == "" {
		var err error
		if dsn, err = buildDSN(cfg.Conn); err != nil {
			return nil, err
		}
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: connect postgres: %w", err)
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

func (r *Repo) TableExists(ctx context.Context, table string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, tableIdent(table)).Scan(&ok)
	return ok, err
}

// EnsureTable creates the schema (for qualified names) and the table.
func (r *Repo) EnsureTable(ctx context.Context, spec storage.TableSpec) error {
	schemaSQL, tableSQL, err := buildCreateSQL(spec)
	if err != nil {
		return err
	}
	if schemaSQL != "" {
		if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema for %s: %w", spec.Name, err)
		}
	}
	if _, err := r.pool.Exec(ctx, tableSQL); err != nil {
		return fmt.Errorf("create table %s: %w", spec.Name, err)
	}
	return nil
}

func (r *Repo) DropTable(ctx context.Context, table string) error {
	_, err := r.pool.Exec(ctx, `DROP TABLE IF EXISTS `+tableIdent(table))
	return err
}

func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any, chunkSize int) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	ident := copyIdentifier(table)
	var total int64
	// COPY has no placeholder limit; chunking only bounds each round trip.
	for _, chunk := range storage.ChunkRows(rows, chunkSize, len(columns), 0) {
		n, err := tx.CopyFrom(ctx, ident, columns, pgx.CopyFromRows(chunk))
		if err != nil {
			return 0, err
		}
		total += n
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *Repo) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+tableIdent(table)).Scan(&n)
	return n, err
}

func pgIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func tableIdent(name string) string {
	return storage.QuoteQualified(name, pgIdent)
}

func copyIdentifier(name string) pgx.Identifier {
	if s, t := storage.SplitQualifiedName(name); s != "" {
		return pgx.Identifier{s, t}
	}
	return pgx.Identifier{strings.TrimSpace(name)}
}

func columnType(t schema.Type) string {
	switch t {
	case schema.TypeInteger:
		return "bigint"
	case schema.TypeFloat:
		return "double precision"
	case schema.TypeBoolean:
		return "boolean"
	case schema.TypeDate:
		return "date"
	case schema.TypeTimestamp:
		return "timestamp"
	default:
		return "text"
	}
}

func buildCreateSQL(t storage.TableSpec) (schemaSQL, tableSQL string, err error) {
	if err := t.Validate(); err != nil {
		return "", "", err
	}

	if s, _ := storage.SplitQualifiedName(t.Name); s != "" {
		schemaSQL = fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s;`, pgIdent(s))
	}

	cols := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		def := pgIdent(c.Name) + " " + columnType(c.Type)
		if !c.Nullable {
			def += " NOT NULL"
		}
		cols = append(cols, def)
	}

	tableSQL = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s);`, tableIdent(t.Name), strings.Join(cols, ", "))
	return schemaSQL, tableSQL, nil
}

// buildDSN renders discrete parameters as a postgres:// URL.
func buildDSN(c storage.ConnParams) (string, error) {
	if strings.TrimSpace(c.Host) == "" {
		return "", fmt.Errorf("postgres: host is required when dsn is empty")
	}
	port := c.Port
	if port == 0 {
		port = defaultPort
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(port)),
		Path:   "/" + c.Database,
	}
	if c.User != "" {
		u.User = url.UserPassword(c.User, c.Password)
	}
	q := url.Values{}
	q.Set("sslmode", "disable")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
