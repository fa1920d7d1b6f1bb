package locks

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store against a shared SQLite database. The
// single-row-per-node primary key makes acquisition an atomic
// check-and-set: of two racing inserts, exactly one lands.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// SQLiteConfig holds SQLite lock store configuration.
type SQLiteConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite lock store instance.
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	return &SQLiteStore{
		path: cfg.Path,
	}, nil
}

// Init opens the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Acquire stores the lock if the node is unlocked.
func (s *SQLiteStore) Acquire(ctx context.Context, lock *Lock) (bool, *Lock, error) {
	query := `
		INSERT INTO locks (node_id, holder, token, acquired_at, ttl_ns, comment)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(node_id) DO NOTHING
	`

	result, err := s.db.ExecContext(ctx, query,
		lock.NodeID,
		lock.Holder,
		lock.Token,
		lock.AcquiredAt.UTC(),
		int64(lock.TTL),
		lock.Comment,
	)
	if err != nil {
		return false, nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 1 {
		return true, nil, nil
	}

	// Insert lost the check-and-set; report whoever holds the lock now.
	existing, err := s.Get(ctx, lock.NodeID)
	if err != nil {
		return false, nil, err
	}
	return false, existing, nil
}

// Release removes the lock when the token matches.
func (s *SQLiteStore) Release(ctx context.Context, nodeID, token string) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM locks WHERE node_id = ? AND token = ?", nodeID, token)
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotHeld
	}
	return nil
}

// Delete removes any lock for the node.
func (s *SQLiteStore) Delete(ctx context.Context, nodeID string) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM locks WHERE node_id = ?", nodeID)
	if err != nil {
		return fmt.Errorf("failed to delete lock: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotHeld
	}
	return nil
}

// Get returns the current lock for the node, nil when absent.
func (s *SQLiteStore) Get(ctx context.Context, nodeID string) (*Lock, error) {
	query := `
		SELECT node_id, holder, token, acquired_at, ttl_ns, comment
		FROM locks
		WHERE node_id = ?
	`

	lock := &Lock{}
	var ttlNs int64
	err := s.db.QueryRowContext(ctx, query, nodeID).Scan(
		&lock.NodeID,
		&lock.Holder,
		&lock.Token,
		&lock.AcquiredAt,
		&ttlNs,
		&lock.Comment,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lock: %w", err)
	}

	lock.TTL = time.Duration(ttlNs)
	return lock, nil
}
