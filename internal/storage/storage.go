// Package storage persists chunk text so retrieved chunk ids can be mapped
// back to text without re-chunking documents at query time.
package storage

import (
	"context"
	"errors"
)

// ErrChunkNotFound is returned when a requested chunk row does not exist.
var ErrChunkNotFound = errors.New("chunk not found")

// ChunkStore persists the text of every chunk written at embed time, keyed by
// (session, document, chunk index). The empty session id is the global corpus.
type ChunkStore interface {
	// SaveChunks replaces the stored chunks of one document.
	SaveChunks(ctx context.Context, sessionID, document string, chunks []string) error
	// GetChunk returns the text of one chunk, or ErrChunkNotFound.
	GetChunk(ctx context.Context, sessionID, document string, index int) (string, error)
	// DeleteSession removes every chunk row belonging to the session.
	DeleteSession(ctx context.Context, sessionID string) error
	// CountChunks returns the number of chunk rows in the session.
	CountChunks(ctx context.Context, sessionID string) (int64, error)
	Close() error
}
