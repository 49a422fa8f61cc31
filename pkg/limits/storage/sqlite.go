package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/xhd193694/ninja/pkg/limits/ratelimit"
)

// SQLiteBackend implements Backend on a SQLite database file, giving every
// gateway process that opens the same file a shared view of bucket state.
// Suitable for multi-process deployments on one host where a network
// counter store is not available.
//
// # Atomicity
//
// The DSN sets _txlock=immediate, so each Admit call runs its
// read-modify-write inside a single BEGIN IMMEDIATE transaction: the write
// lock is taken before the bucket row is read, and concurrent checks for
// the same key across processes serialize on it. No caller can observe a
// refill without its paired decrement.
//
// The database uses WAL journaling with periodic passive checkpoints, the
// same arrangement used for the token store.
type SQLiteBackend struct {
	db        *sql.DB
	dbPath    string
	params    Params
	retention time.Duration
	done      chan struct{}
	closeOnce sync.Once

	selectStmt  *sql.Stmt
	upsertStmt  *sql.Stmt
	touchStmt   *sql.Stmt
	cleanupStmt *sql.Stmt
	countStmt   *sql.Stmt
}

// SQLiteBackendConfig configures the SQLite backend.
type SQLiteBackendConfig struct {
	// DBPath is the path to the SQLite database file. Required.
	DBPath string

	// Params is the bucket geometry applied to every key.
	Params Params

	// Retention is how long an idle key keeps its state. A key not
	// checked within this period resets to a full bucket.
	// Default: 1 hour.
	Retention time.Duration

	// BusyTimeout is how long to wait for the database lock before
	// failing. Default: 5 seconds.
	BusyTimeout time.Duration

	// CheckpointInterval is how often to run a passive WAL checkpoint.
	// Default: 5 minutes.
	CheckpointInterval time.Duration
}

// NewSQLiteBackend creates a SQLite backend with default settings.
func NewSQLiteBackend(dbPath string, params Params, retention time.Duration) (*SQLiteBackend, error) {
	return NewSQLiteBackendWithConfig(SQLiteBackendConfig{
		DBPath:    dbPath,
		Params:    params,
		Retention: retention,
	})
}

// NewSQLiteBackendWithConfig creates a SQLite backend with custom
// configuration.
func NewSQLiteBackendWithConfig(cfg SQLiteBackendConfig) (*SQLiteBackend, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	if cfg.Retention <= 0 {
		cfg.Retention = time.Hour
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.CheckpointInterval <= 0 {
		cfg.CheckpointInterval = 5 * time.Minute
	}

	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		cfg.DBPath, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	backend := &SQLiteBackend{
		db:        db,
		dbPath:    cfg.DBPath,
		params:    cfg.Params,
		retention: cfg.Retention,
		done:      make(chan struct{}),
	}

	if err := backend.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := backend.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	go backend.checkpointLoop(cfg.CheckpointInterval)

	return backend, nil
}

// initSchema creates the bucket table if it doesn't exist. Timestamps are
// unix nanoseconds so fractional refill survives the round trip.
func (s *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS buckets (
		bucket_key  TEXT PRIMARY KEY,
		tokens      REAL NOT NULL,
		last_refill INTEGER NOT NULL,
		last_access INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_buckets_last_access ON buckets(last_access);
	`

	_, err := s.db.Exec(schema)
	return err
}

// prepareStatements prepares SQL statements for reuse.
func (s *SQLiteBackend) prepareStatements() error {
	var err error

	s.selectStmt, err = s.db.Prepare(`
		SELECT tokens, last_refill, last_access
		FROM buckets
		WHERE bucket_key = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare select statement: %w", err)
	}

	s.upsertStmt, err = s.db.Prepare(`
		INSERT INTO buckets (bucket_key, tokens, last_refill, last_access)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (bucket_key) DO UPDATE SET
			tokens = excluded.tokens,
			last_refill = excluded.last_refill,
			last_access = excluded.last_access
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert statement: %w", err)
	}

	s.touchStmt, err = s.db.Prepare(`
		UPDATE buckets SET last_access = ? WHERE bucket_key = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare touch statement: %w", err)
	}

	s.cleanupStmt, err = s.db.Prepare(`
		DELETE FROM buckets WHERE last_access < ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare cleanup statement: %w", err)
	}

	s.countStmt, err = s.db.Prepare(`
		SELECT COUNT(*) FROM buckets
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare count statement: %w", err)
	}

	return nil
}

// Admit runs one refill-check-decrement cycle for key inside a write
// transaction.
func (s *SQLiteBackend) Admit(ctx context.Context, key string) (ratelimit.CheckResult, error) {
	if key == "" {
		return ratelimit.CheckResult{}, fmt.Errorf("bucket key cannot be empty")
	}

	now := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ratelimit.CheckResult{}, fmt.Errorf("failed to begin admission transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		tokens     float64
		lastRefill int64
		lastAccess int64
	)
	err = tx.StmtContext(ctx, s.selectStmt).QueryRowContext(ctx, key).Scan(&tokens, &lastRefill, &lastAccess)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// First sighting of this key: a fresh bucket starts full.
		tokens = float64(s.params.Capacity)
		lastRefill = now.UnixNano()
	case err != nil:
		return ratelimit.CheckResult{}, fmt.Errorf("failed to load bucket state: %w", err)
	default:
		if now.Sub(time.Unix(0, lastAccess)) >= s.retention {
			// Idle past retention: the key starts over.
			tokens = float64(s.params.Capacity)
			lastRefill = now.UnixNano()
		}
	}

	elapsed := now.Sub(time.Unix(0, lastRefill)).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	tokens = math.Min(float64(s.params.Capacity), tokens+elapsed*s.params.FillRate)

	res := ratelimit.CheckResult{Limit: s.params.Capacity}
	if tokens >= 1 {
		res.Allowed = true
		res.Remaining = int64(tokens - 1)
		_, err = tx.StmtContext(ctx, s.upsertStmt).ExecContext(ctx,
			key, tokens-1, now.UnixNano(), now.UnixNano())
	} else {
		res.Reason = ratelimit.ReasonRateLimited
		res.RetryAfter = time.Duration((1 - tokens) / s.params.FillRate * float64(time.Second))
		// A denial advances last_access only; tokens and last_refill
		// stay as stored so elapsed time is never counted twice.
		_, err = tx.StmtContext(ctx, s.touchStmt).ExecContext(ctx, now.UnixNano(), key)
	}
	if err != nil {
		return ratelimit.CheckResult{}, fmt.Errorf("failed to store bucket state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ratelimit.CheckResult{}, fmt.Errorf("failed to commit admission: %w", err)
	}
	return res, nil
}

// Cleanup deletes rows whose last check is older than olderThan.
func (s *SQLiteBackend) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	result, err := s.cleanupStmt.ExecContext(ctx, olderThan.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup buckets: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(deleted), nil
}

// Size returns the number of tracked keys.
func (s *SQLiteBackend) Size(ctx context.Context) (int, error) {
	var n int
	if err := s.countStmt.QueryRowContext(ctx).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count buckets: %w", err)
	}
	return n, nil
}

// Close stops background maintenance and closes the database.
// Idempotent.
func (s *SQLiteBackend) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		close(s.done)

		for _, stmt := range []*sql.Stmt{s.selectStmt, s.upsertStmt, s.touchStmt, s.cleanupStmt, s.countStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}

		if s.db != nil {
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			closeErr = s.db.Close()
		}
	})

	return closeErr
}

// checkpointLoop runs periodic WAL checkpoints.
func (s *SQLiteBackend) checkpointLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(PASSIVE)")
		case <-s.done:
			return
		}
	}
}
