package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "modernc.org/sqlite"            // registers the "sqlite" driver
)

// Dialect is the SQL flavour a SQLSlot talks to.
type Dialect int

// Supported SQL dialects.
const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

func (d Dialect) String() string {
	if d == DialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

func (d Dialect) driverName() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite"
}

func (d Dialect) gooseName() string {
	if d == DialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

func (d Dialect) readQuery() string {
	if d == DialectPostgres {
		return `SELECT value FROM plugin_slots WHERE name = $1`
	}
	return `SELECT value FROM plugin_slots WHERE name = ?`
}

func (d Dialect) writeQuery() string {
	q := `INSERT INTO plugin_slots (name, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if d == DialectPostgres {
		q = strings.Replace(q, "(?, ?,", "($1, $2,", 1)
	}
	return q
}

// SQLSlot stores the document as one row of the plugin_slots table.
type SQLSlot struct {
	db      *sql.DB
	dialect Dialect
	name    string
}

// NewSQLSlot wraps an open database. The schema must already exist.
func NewSQLSlot(db *sql.DB, dialect Dialect, name string) *SQLSlot {
	return &SQLSlot{db: db, dialect: dialect, name: name}
}

// OpenSQL opens the database at dsn, runs migrations and returns the slot.
// For SQLite, ":memory:" gives a private in-memory database.
func OpenSQL(ctx context.Context, dialect Dialect, dsn, name string, logger *slog.Logger) (*SQLSlot, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s store needs a dsn", dialect)
	}

	if dialect == DialectSQLite && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := ensureParentDir(dsn); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
		if !strings.Contains(dsn, "?") {
			dsn += "?_pragma=busy_timeout(5000)"
		}
	}

	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// One connection keeps ":memory:" databases alive and serializes writers.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", dialect, err)
	}
	if err := Migrate(db, dialect, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	return NewSQLSlot(db, dialect, name), nil
}

// Read implements Slot.
func (s *SQLSlot) Read(ctx context.Context) ([]byte, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	var value string
	err := s.db.QueryRowContext(ctx, s.dialect.readQuery(), s.name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read slot %q: %w", s.name, err)
	}
	return []byte(value), nil
}

// Write implements Slot.
func (s *SQLSlot) Write(ctx context.Context, data []byte) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.dialect.writeQuery(), s.name, string(data)); err != nil {
		return fmt.Errorf("failed to write slot %q: %w", s.name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit slot %q: %w", s.name, err)
	}
	return nil
}

// Close implements Slot.
func (s *SQLSlot) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
