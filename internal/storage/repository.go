package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL database behind an SQLRepository.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// SQLRepository implements Store on SQLite (modernc, no cgo) or Postgres (pgx).
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
}

var _ Store = (*SQLRepository)(nil)

// Open connects to the database, applies migrations and returns the repository.
// For SQLite the dsn is a file path; for Postgres a connection URL.
func Open(ctx context.Context, dialect Dialect, dsn string) (*SQLRepository, error) {
	if dialect == SQLite {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := openDB(dialect, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, classify("ping", err)
	}

	if err := RunMigrations(dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.InfoContext(ctx, "Store opened", "dialect", dialect)
	return &SQLRepository{db: db, dialect: dialect}, nil
}

func openDB(dialect Dialect, dsn string) (*sql.DB, error) {
	switch dialect {
	case SQLite:
		db, err := sql.Open("sqlite", sqliteDSN(dsn))
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		// One writer at a time; WAL keeps readers unblocked.
		db.SetMaxOpenConns(1)
		return db, nil
	case Postgres:
		cfg, err := pgx.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse postgres url: %w", err)
		}
		return stdlib.OpenDB(*cfg), nil
	default:
		return nil, fmt.Errorf("unsupported dialect: %s", dialect)
	}
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
}

func (r *SQLRepository) Ping(ctx context.Context) error {
	return classify("ping", r.db.PingContext(ctx))
}

func (r *SQLRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// rebind rewrites ? placeholders to $n for Postgres.
func (r *SQLRepository) rebind(query string) string {
	if r.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func (r *SQLRepository) exec(ctx context.Context, op, query string, args ...any) (sql.Result, error) {
	res, err := r.db.ExecContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, classify(op, err)
	}
	return res, nil
}
