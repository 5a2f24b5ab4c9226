// Package sqlite provides the structured, SQLite-backed implementation of the
// storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/meterbill/internal/models"
	"github.com/mmynk/meterbill/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// timeLayout is fixed width so that text ordering matches chronological ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// Option configures a SQLiteStore.
type Option func(*options)

type options struct {
	defaults models.Settings
}

// WithDefaultSettings sets the settings row seeded into an empty database.
func WithDefaultSettings(settings models.Settings) Option {
	return func(o *options) {
		o.defaults = settings
	}
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories, runs migrations and seeds the settings
// row when the table is empty.
func New(dbPath string, opts ...Option) (*SQLiteStore, error) {
	o := options{defaults: models.DefaultSettings()}
	for _, opt := range opts {
		opt(&o)
	}

	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Foreign keys are a per-connection pragma, so set them in the DSN
	// for every pooled connection.
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.seedSettings(context.Background(), o.defaults); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return models.NewPersistenceError("ping", s.db.PingContext(ctx))
}

// ReplaceAll swaps every collection for the snapshot inside one transaction.
func (s *SQLiteStore) ReplaceAll(ctx context.Context, snapshot models.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.NewPersistenceError("replace all", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM bills"); err != nil {
		return models.NewPersistenceError("replace all", fmt.Errorf("failed to clear bills: %w", err))
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM customers"); err != nil {
		return models.NewPersistenceError("replace all", fmt.Errorf("failed to clear customers: %w", err))
	}

	for _, customer := range snapshot.Customers {
		if err := insertCustomer(ctx, tx, customer); err != nil {
			return classify("replace all", err)
		}
	}
	for _, bill := range snapshot.Bills {
		if err := insertBill(ctx, tx, bill); err != nil {
			return classify("replace all", err)
		}
	}
	if err := writeSettings(ctx, tx, snapshot.Settings); err != nil {
		return classify("replace all", err)
	}

	if err := tx.Commit(); err != nil {
		return models.NewPersistenceError("replace all", fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// classify turns constraint violations into validation errors and everything
// else into persistence errors.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed: customers.meterNumber"):
		return models.NewValidationError("meterNumber", "meter number already in use")
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return models.NewValidationError("id", "record already exists")
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return models.NewValidationError("customerId", "customer does not exist")
	case strings.Contains(msg, "CHECK constraint failed"):
		return models.NewValidationError("", "record violates a table constraint")
	}
	return models.NewPersistenceError(op, err)
}

// expectOne reports models.ErrNotFound when an update or delete matched no row.
func expectOne(res sql.Result, op, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return models.NewPersistenceError(op, fmt.Errorf("failed to read affected rows: %w", err))
	}
	if n == 0 {
		return models.NotFound(kind, id)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err == nil {
		return t, nil
	}
	// Rows imported from older documents may use any RFC 3339 variant.
	t, rfcErr := time.Parse(time.RFC3339Nano, value)
	if rfcErr != nil {
		return time.Time{}, errors.Join(err, rfcErr)
	}
	return t.UTC(), nil
}
