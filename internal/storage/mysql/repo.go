package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"csvload/internal/schema"
	"csvload/internal/storage"
)

const (
	defaultPort = 3306
	// placeholder count is a uint16 in the MySQL wire protocol
	maxParams = 65535
)

// Repo implements storage.Repository for MySQL.
//
// MySQL commits DDL implicitly, so only InsertRows runs in a transaction.
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("mysql", New)
}

// New connects with cfg.DSN, or builds one from cfg.Conn. Connections always
// use parseTime so DATE and DATETIME columns scan into time.Time.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	mc, err := driverConfig(cfg)
	if err != nil {
		return nil, err
	}
	conn, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, fmt.Errorf("storage: connect mysql: %w", err)
	}
	db := sql.OpenDB(conn)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: connect mysql %s: %w", mc.Addr, err)
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

func (r *Repo) TableExists(ctx context.Context, table string) (bool, error) {
	q, args := buildTableExistsSQL(table)
	var n int
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Repo) EnsureTable(ctx context.Context, spec storage.TableSpec) error {
	q, err := buildCreateSQL(spec)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("create table %s: %w", spec.Name, err)
	}
	return nil
}

func (r *Repo) DropTable(ctx context.Context, table string) error {
	_, err := r.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+tableIdent(table))
	return err
}

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
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *Repo) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+tableIdent(table)).Scan(&n)
	return n, err
}

// driverConfig turns storage.Config into a driver config. A DSN is parsed
// as-is; discrete parameters fill a fresh config.
func driverConfig(cfg storage.Config) (*mysql.Config, error) {
	var mc *mysql.Config
	if cfg.DSN != "" {
		var err error
		if mc, err = mysql.ParseDSN(cfg.DSN); err != nil {
			return nil, fmt.Errorf("mysql: parse dsn: %w", err)
		}
	} else {
		c := cfg.Conn
		if strings.TrimSpace(c.Host) == "" {
			return nil, fmt.Errorf("mysql: host is required when dsn is empty")
		}
		port := c.Port
		if port == 0 {
			port = defaultPort
		}
		mc = mysql.NewConfig()
		mc.User = c.User
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(port))
		mc.DBName = c.Database
		mc.Params = map[string]string{"charset": "utf8mb4"}
	}
	mc.ParseTime = true
	mc.Loc = time.UTC
	return mc, nil
}

// mysqlIdent returns a backtick-quoted identifier, escaping '`' as '``'.
func mysqlIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func tableIdent(name string) string {
	return storage.QuoteQualified(name, mysqlIdent)
}

func columnType(t schema.Type) string {
	switch t {
	case schema.TypeInteger:
		return "BIGINT"
	case schema.TypeFloat:
		return "DOUBLE"
	case schema.TypeBoolean:
		return "BOOLEAN"
	case schema.TypeDate:
		return "DATE"
	case schema.TypeTimestamp:
		return "DATETIME(6)"
	default:
		return "TEXT"
	}
}

func buildCreateSQL(t storage.TableSpec) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	parts := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		def := mysqlIdent(c.Name) + " " + columnType(c.Type)
		if !c.Nullable {
			def += " NOT NULL"
		}
		parts = append(parts, def)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", tableIdent(t.Name), strings.Join(parts, ", ")), nil
}

// buildTableExistsSQL looks the table up in information_schema, scoped to the
// qualifying database or, for bare names, the connection's database.
func buildTableExistsSQL(table string) (string, []any) {
	db, name := storage.SplitQualifiedName(table)
	if db == "" {
		return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?", []any{name}
	}
	return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = ? AND table_name = ?", []any{db, name}
}

func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(tableIdent(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(mysqlIdent(c))
	}
	b.WriteString(") VALUES ")

	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(tuple)
		args = append(args, row...)
	}
	return b.String(), args
}
