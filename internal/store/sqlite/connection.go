// Package sqlite implements store.Store on top of modernc.org/sqlite, a
// pure-Go SQLite driver. SQLite tolerates exactly one writer at a time,
// so the pool is capped at a single connection and ClaimPending relies on
// a single transaction rather than row-level locking.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	_ "modernc.org/sqlite"
)

// Config configures the SQLite-backed Store.
type Config struct {
	Path            string
	BusyTimeoutMS   int
	WALMode         bool
	ResetOnStartup  bool
}

// DefaultConfig returns sane defaults for a development run.
func DefaultConfig(path string) Config {
	return Config{
		Path:          path,
		BusyTimeoutMS: 5000,
		WALMode:       true,
	}
}

// DB wraps the underlying *sql.DB connection and exposes the retry helper
// relied on by every store operation.
type DB struct {
	db     *sql.DB
	logger arbor.ILogger
	cfg    Config
}

// Open creates the database file (and parent directory) if needed, applies
// pragmas, and initializes the schema.
func Open(cfg Config, logger arbor.ILogger) (*DB, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	if cfg.ResetOnStartup {
		_ = os.Remove(cfg.Path)
		_ = os.Remove(cfg.Path + "-wal")
		_ = os.Remove(cfg.Path + "-shm")
	}

	sqlDB, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single writer avoids SQLITE_BUSY storms under concurrent workers;
	// ClaimPending's correctness depends on this serialization.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	d := &DB{db: sqlDB, logger: logger, cfg: cfg}

	if err := d.configure(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}

	if err := d.InitSchema(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return d, nil
}

func (s *DB) configure() error {
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", s.cfg.BusyTimeoutMS),
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	if s.cfg.WALMode {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("execute %s: %w", p, err)
		}
	}
	return nil
}

// Close closes the underlying connection.
func (s *DB) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping verifies the connection is alive, backing the Health operation.
func (s *DB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// isBusyErr reports whether err represents a transient SQLite lock
// contention error worth retrying.
func isBusyErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// retryBusy retries operation on transient SQLITE_BUSY/"database is
// locked" errors with exponential backoff.
func retryBusy(ctx context.Context, logger arbor.ILogger, operation func() error) error {
	const maxAttempts = 5
	delay := 10 * time.Millisecond
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = operation()
		if lastErr == nil {
			return nil
		}
		if !isBusyErr(lastErr) {
			return lastErr
		}
		if attempt == maxAttempts {
			break
		}
		if logger != nil {
			logger.Warn().
				Int("attempt", attempt).
				Str("delay", delay.String()).
				Err(lastErr).
				Msg("database busy, retrying operation")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return lastErr
}
