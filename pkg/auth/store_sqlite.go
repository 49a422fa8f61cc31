package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/xhd193694/ninja/pkg/telemetry/logging"
)

const tokenSchema = `
CREATE TABLE IF NOT EXISTS tokens (
	identity      TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL DEFAULT '',
	kind          TEXT NOT NULL,
	value         TEXT NOT NULL,
	refresh_token TEXT NOT NULL DEFAULT '',
	expires       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tokens_expires ON tokens(expires);
`

// SQLiteStore is the file-backed TokenStore: exchanged credentials
// survive gateway restarts, so accounts do not need a fresh login after
// every deploy.
type SQLiteStore struct {
	db     *sql.DB
	logger *logging.Logger

	putStmt    *sql.Stmt
	getStmt    *sql.Stmt
	deleteStmt *sql.Stmt
	listStmt   *sql.Stmt
	pruneStmt  *sql.Stmt

	closeOnce sync.Once
}

// NewSQLiteStore opens (creating if needed) the token database at path.
func NewSQLiteStore(path string, logger *logging.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("token store path is required")
	}
	if logger == nil {
		logger = logging.Nop()
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}

	// One writer keeps every statement serialized; token traffic is far
	// too light to need more.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(tokenSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize token schema: %w", err)
	}

	store := &SQLiteStore{db: db, logger: logger.Component("auth.store")}
	if err := store.prepare(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) prepare() error {
	var err error
	if s.putStmt, err = s.db.Prepare(
		`INSERT INTO tokens (identity, user_id, kind, value, refresh_token, expires)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(identity) DO UPDATE SET
		   user_id = excluded.user_id,
		   kind = excluded.kind,
		   value = excluded.value,
		   refresh_token = excluded.refresh_token,
		   expires = excluded.expires`,
	); err != nil {
		return fmt.Errorf("failed to prepare put statement: %w", err)
	}
	if s.getStmt, err = s.db.Prepare(
		`SELECT identity, user_id, kind, value, refresh_token, expires FROM tokens WHERE identity = ?`,
	); err != nil {
		return fmt.Errorf("failed to prepare get statement: %w", err)
	}
	if s.deleteStmt, err = s.db.Prepare(`DELETE FROM tokens WHERE identity = ?`); err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}
	if s.listStmt, err = s.db.Prepare(
		`SELECT identity, user_id, kind, value, refresh_token, expires FROM tokens ORDER BY identity`,
	); err != nil {
		return fmt.Errorf("failed to prepare list statement: %w", err)
	}
	if s.pruneStmt, err = s.db.Prepare(`DELETE FROM tokens WHERE expires <= ?`); err != nil {
		return fmt.Errorf("failed to prepare prune statement: %w", err)
	}
	return nil
}

// Put stores or replaces the token for an identity.
func (s *SQLiteStore) Put(ctx context.Context, token *StoredToken) error {
	if token == nil || token.Identity == "" {
		return ErrInvalidCredential
	}
	_, err := s.putStmt.ExecContext(ctx,
		token.Identity,
		token.UserID,
		string(token.Kind),
		token.Value,
		token.RefreshToken,
		token.Expires.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// Get returns the token for an identity.
func (s *SQLiteStore) Get(ctx context.Context, identity string) (*StoredToken, error) {
	row := s.getStmt.QueryRowContext(ctx, identity)
	token, err := scanToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	return token, nil
}

// Delete removes the token for an identity.
func (s *SQLiteStore) Delete(ctx context.Context, identity string) error {
	if _, err := s.deleteStmt.ExecContext(ctx, identity); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// List returns all stored tokens.
func (s *SQLiteStore) List(ctx context.Context) ([]*StoredToken, error) {
	rows, err := s.listStmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*StoredToken
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

// PruneExpired drops tokens past expiry and reports how many went.
func (s *SQLiteStore) PruneExpired(ctx context.Context, now time.Time) (int, error) {
	result, err := s.pruneStmt.ExecContext(ctx, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune tokens: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(affected), nil
}

// Close releases the prepared statements and the database handle.
func (s *SQLiteStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		for _, stmt := range []*sql.Stmt{s.putStmt, s.getStmt, s.deleteStmt, s.listStmt, s.pruneStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}
		err = s.db.Close()
	})
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToken(row rowScanner) (*StoredToken, error) {
	var token StoredToken
	var kind string
	var expires int64
	if err := row.Scan(&token.Identity, &token.UserID, &kind, &token.Value, &token.RefreshToken, &expires); err != nil {
		return nil, err
	}
	token.Kind = TokenKind(kind)
	token.Expires = time.Unix(expires, 0)
	return &token, nil
}
