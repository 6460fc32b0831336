// Package sqlite implements the persistence repositories on SQLite through
// database/sql and modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/mentorbook/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// timestampLayout sorts lexicographically in UTC, which ORDER BY relies on.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// Options configures Open.
type Options struct {
	DSN          string
	StoreTimeout time.Duration
	Logger       *zap.Logger
	// SQLite overrides the connection settings derived from DSN.
	SQLite *migration.SQLiteConfig
}

// Store bundles the SQLite-backed repositories sharing one connection pool.
type Store struct {
	pool   *ConnectionPool
	logger *zap.Logger

	Users        *UserRepository
	Availability *AvailabilityRepository
	Sessions     *SessionRepository
	Feedback     *FeedbackRepository
	Activities   *ActivityRepository
}

// Open connects to the database. Call Migrate before serving traffic.
func Open(opts Options) (*Store, error) {
	config := migration.DefaultSQLiteConfig(opts.DSN)
	if opts.SQLite != nil {
		config = *opts.SQLite
	}

	pool, err := NewConnectionPool(config, opts.StoreTimeout)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Store{
		pool:         pool,
		logger:       logger,
		Users:        NewUserRepository(pool),
		Availability: NewAvailabilityRepository(pool),
		Sessions:     NewSessionRepository(pool),
		Feedback:     NewFeedbackRepository(pool),
		Activities:   NewActivityRepository(pool),
	}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	manager := migration.NewMigrationManager(
		migration.NewFileScanner(migrationFiles),
		migration.NewSQLiteExecutor(s.pool.DB()),
		"migrations",
		s.logger,
	)
	if err := manager.RunMigrations(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// Ping reports whether the database answers within the store deadline.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse timestamp %q: %w", value, err)
	}
	return t, nil
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func stringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
