package embedding

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// DiskStore persists one vector file per chunk under root/<document>/chunk_<i>.vec.
// Writing is order-preserving: chunk i always maps to file chunk_i.vec, so a
// partial re-run safely overwrites individual files as long as the chunk count
// is unchanged. The store does not detect staleness itself; callers decide
// whether to skip a document whose directory already exists.
type DiskStore struct {
	root   string
	logger *zap.Logger
}

// NewDiskStore creates a store rooted at root (the session's embeddings directory).
func NewDiskStore(root string, logger *zap.Logger) *DiskStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiskStore{root: root, logger: logger}
}

// Root returns the embeddings directory this store writes under.
func (s *DiskStore) Root() string { return s.root }

// DocumentDir returns the vector directory for a document.
func (s *DiskStore) DocumentDir(document string) string {
	return filepath.Join(s.root, document)
}

// HasDocument reports whether vectors were already written for document.
func (s *DiskStore) HasDocument(document string) bool {
	info, err := os.Stat(s.DocumentDir(document))
	return err == nil && info.IsDir()
}

// Documents lists the documents that have persisted vectors. A missing root
// means no documents, not an error.
func (s *DiskStore) Documents() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list embedded documents: %w", err)
	}
	var docs []string
	for _, entry := range entries {
		if entry.IsDir() {
			docs = append(docs, entry.Name())
		}
	}
	return docs, nil
}

// RemoveDocument deletes all persisted vectors of a document.
func (s *DiskStore) RemoveDocument(document string) error {
	if err := os.RemoveAll(s.DocumentDir(document)); err != nil {
		return fmt.Errorf("remove embeddings of %s: %w", document, err)
	}
	return nil
}

// EmbedDocument embeds every chunk with embedder and writes one vector file
// per chunk under the document's directory. Returns the number of vectors written.
func (s *DiskStore) EmbedDocument(ctx context.Context, embedder Embedder, document string, chunks []string) (int, error) {
	dir := s.DocumentDir(document)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("create embeddings dir: %w", err)
	}
	vectors, err := embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embed %s: %w", document, err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embed %s: got %d vectors for %d chunks", document, len(vectors), len(chunks))
	}
	for i, vector := range vectors {
		if err := WriteVectorFile(filepath.Join(dir, ChunkFileName(i)), vector); err != nil {
			return i, fmt.Errorf("persist chunk %d of %s: %w", i, document, err)
		}
	}
	s.logger.Debug("embedded document",
		zap.String("document", document),
		zap.Int("chunks", len(chunks)),
	)
	return len(chunks), nil
}
