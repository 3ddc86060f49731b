package statestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore implements Store using SQLite for persistence. It is suitable
// for the single-instance deployments this engine runs as: one writer, WAL
// journaling, and durable across restarts.
type SQLiteStore struct {
	db        *sql.DB
	dbPath    string
	mu        sync.RWMutex
	closeOnce sync.Once

	addStmt    *sql.Stmt
	removeStmt *sql.Stmt
	clearStmt  *sql.Stmt
	listStmt   *sql.Stmt
}

// SQLiteStoreConfig configures the SQLite store.
type SQLiteStoreConfig struct {
	// DBPath is the path to the SQLite database file. The file is created
	// on first use.
	DBPath string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// NewSQLiteStore opens (or creates) the bucket database at dbPath with
// default settings.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithConfig(SQLiteStoreConfig{DBPath: dbPath})
}

// NewSQLiteStoreWithConfig opens the store with custom configuration.
//
// An unreadable database file is moved aside to <path>.corrupt and replaced
// with a fresh empty one; losing a pending mark only delays archival until
// the next mark phase, while refusing to start blocks every run.
func NewSQLiteStoreWithConfig(cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	store, err := openSQLite(cfg)
	if err == nil {
		return store, nil
	}

	// Preserve the bad file for inspection and retry once from scratch.
	if renameErr := os.Rename(cfg.DBPath, cfg.DBPath+".corrupt"); renameErr != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	store, retryErr := openSQLite(cfg)
	if retryErr != nil {
		return nil, fmt.Errorf("failed to open database: %w", retryErr)
	}
	return store, nil
}

func openSQLite(cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.DBPath, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &SQLiteStore{db: db, dbPath: cfg.DBPath}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := store.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pending_entries (
		bucket TEXT NOT NULL,
		entry TEXT NOT NULL,
		added_at INTEGER NOT NULL,
		PRIMARY KEY (bucket, entry)
	);

	CREATE INDEX IF NOT EXISTS idx_bucket ON pending_entries(bucket);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.addStmt, err = s.db.Prepare(`
		INSERT INTO pending_entries (bucket, entry, added_at)
		VALUES (?, ?, ?)
		ON CONFLICT (bucket, entry) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare add statement: %w", err)
	}

	s.removeStmt, err = s.db.Prepare(`
		DELETE FROM pending_entries
		WHERE bucket = ? AND entry = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare remove statement: %w", err)
	}

	s.clearStmt, err = s.db.Prepare(`
		DELETE FROM pending_entries
		WHERE bucket = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare clear statement: %w", err)
	}

	s.listStmt, err = s.db.Prepare(`
		SELECT bucket, entry
		FROM pending_entries
		ORDER BY bucket, added_at, entry
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare list statement: %w", err)
	}

	return nil
}

// Load returns a snapshot of all buckets.
func (s *SQLiteStore) Load(ctx context.Context) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.listStmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	state := make(State)
	for rows.Next() {
		var bucket, entry string
		if err := rows.Scan(&bucket, &entry); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		b := Bucket(bucket)
		state[b] = append(state[b], entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return state, nil
}

// Add records an entry in a bucket. Duplicate adds are no-ops.
func (s *SQLiteStore) Add(ctx context.Context, bucket Bucket, entry string) error {
	if !bucket.Valid() {
		return fmt.Errorf("unknown bucket %q", bucket)
	}
	if entry == "" {
		return fmt.Errorf("entry cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.addStmt.ExecContext(ctx, string(bucket), entry, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to add entry: %w", err)
	}
	return nil
}

// Remove deletes an entry from a bucket.
func (s *SQLiteStore) Remove(ctx context.Context, bucket Bucket, entry string) error {
	if !bucket.Valid() {
		return fmt.Errorf("unknown bucket %q", bucket)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.removeStmt.ExecContext(ctx, string(bucket), entry); err != nil {
		return fmt.Errorf("failed to remove entry: %w", err)
	}
	return nil
}

// Replace swaps a bucket's contents for the given entries in one
// transaction.
func (s *SQLiteStore) Replace(ctx context.Context, bucket Bucket, entries []string) error {
	if !bucket.Valid() {
		return fmt.Errorf("unknown bucket %q", bucket)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.StmtContext(ctx, s.clearStmt).ExecContext(ctx, string(bucket)); err != nil {
		return fmt.Errorf("failed to clear bucket: %w", err)
	}
	now := time.Now().Unix()
	add := tx.StmtContext(ctx, s.addStmt)
	for _, entry := range entries {
		if entry == "" {
			continue
		}
		if _, err := add.ExecContext(ctx, string(bucket), entry, now); err != nil {
			return fmt.Errorf("failed to add entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Clear empties a bucket.
func (s *SQLiteStore) Clear(ctx context.Context, bucket Bucket) error {
	if !bucket.Valid() {
		return fmt.Errorf("unknown bucket %q", bucket)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.clearStmt.ExecContext(ctx, string(bucket)); err != nil {
		return fmt.Errorf("failed to clear bucket: %w", err)
	}
	return nil
}

// Close releases the store's resources. Close is idempotent.
func (s *SQLiteStore) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		for _, stmt := range []*sql.Stmt{s.addStmt, s.removeStmt, s.clearStmt, s.listStmt} {
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
