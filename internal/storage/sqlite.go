package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements ChunkStore on a single SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at dbPath and initializes the
// schema. Parent directories are created if missing.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		session_id  TEXT NOT NULL,
		document    TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		content     TEXT NOT NULL,
		created_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (session_id, document, chunk_index)
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_session ON chunks(session_id);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// SaveChunks replaces the stored chunks of one document in a single transaction.
func (s *SQLiteStore) SaveChunks(ctx context.Context, sessionID, document string, chunks []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM chunks WHERE session_id = ? AND document = ?`,
		sessionID, document); err != nil {
		return fmt.Errorf("clear old chunks: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (session_id, document, chunk_index, content) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for i, chunk := range chunks {
		if _, err := stmt.ExecContext(ctx, sessionID, document, i, chunk); err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunks: %w", err)
	}
	return nil
}

// GetChunk returns the text of one chunk.
func (s *SQLiteStore) GetChunk(ctx context.Context, sessionID, document string, index int) (string, error) {
	var content string
	err := s.db.QueryRowContext(ctx,
		`SELECT content FROM chunks WHERE session_id = ? AND document = ? AND chunk_index = ?`,
		sessionID, document, index).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrChunkNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query chunk: %w", err)
	}
	return content, nil
}

// DeleteSession removes all chunk rows of a session.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM chunks WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session chunks: %w", err)
	}
	return nil
}

// CountChunks returns the number of chunk rows in a session.
func (s *SQLiteStore) CountChunks(ctx context.Context, sessionID string) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks WHERE session_id = ?`, sessionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
