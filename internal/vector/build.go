package vector

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperfocal/veridoc/internal/embedding"
	"github.com/hyperfocal/veridoc/internal/models"
)

// Persisted index layout inside a session's index directory.
const (
	IndexFileName    = "index.bin"
	MetadataFileName = "metadata.json"
)

// BuildOrLoad returns the vector index and metadata for embeddingsDir.
//
// When a persisted index and metadata file both exist under indexDir they are
// loaded and returned unchanged; no check is made against the current
// embeddings, so the caller is responsible for removing stale index files
// after ingesting new documents.
//
// Otherwise the embeddings tree is scanned: one subdirectory per document,
// each holding per-chunk vector files. Malformed vectors and vectors whose
// dimension differs from the first accepted one are skipped with a log line.
// Metadata entry i always describes row i of the matrix; the order is
// insertion order and is never re-sorted. The freshly built index and
// metadata are persisted to indexDir before returning.
func BuildOrLoad(embeddingsDir, indexDir string, logger *zap.Logger) (*FlatIndex, []models.IndexEntry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	indexPath := filepath.Join(indexDir, IndexFileName)
	metaPath := filepath.Join(indexDir, MetadataFileName)

	if fileExists(indexPath) && fileExists(metaPath) {
		ix, err := LoadIndex(indexPath)
		if err != nil {
			return nil, nil, err
		}
		entries, err := loadMetadata(metaPath)
		if err != nil {
			return nil, nil, err
		}
		if len(entries) != ix.Size() {
			return nil, nil, fmt.Errorf("index/metadata mismatch: %d rows vs %d entries", ix.Size(), len(entries))
		}
		logger.Debug("loaded persisted index",
			zap.String("path", indexPath),
			zap.Int("vectors", ix.Size()),
		)
		return ix, entries, nil
	}

	ix, entries, err := build(embeddingsDir, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := ix.Save(indexPath); err != nil {
		return nil, nil, err
	}
	if err := saveMetadata(metaPath, entries); err != nil {
		return nil, nil, err
	}
	logger.Info("built vector index",
		zap.String("embeddings_dir", embeddingsDir),
		zap.Int("vectors", ix.Size()),
	)
	return ix, entries, nil
}

func build(embeddingsDir string, logger *zap.Logger) (*FlatIndex, []models.IndexEntry, error) {
	docDirs, err := os.ReadDir(embeddingsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNoEmbeddings
		}
		return nil, nil, fmt.Errorf("scan embeddings dir: %w", err)
	}

	var ix *FlatIndex
	var entries []models.IndexEntry
	for _, docDir := range docDirs {
		if !docDir.IsDir() {
			continue
		}
		document := docDir.Name()
		refs, err := chunkRefs(filepath.Join(embeddingsDir, document))
		if err != nil {
			return nil, nil, err
		}
		for _, ref := range refs {
			vec, err := embedding.ReadVectorFile(filepath.Join(embeddingsDir, document, ref))
			if err != nil {
				logger.Warn("skipping invalid vector",
					zap.String("document", document),
					zap.String("chunk", ref),
					zap.Error(err),
				)
				continue
			}
			if ix == nil {
				if ix, err = NewFlatIndex(len(vec)); err != nil {
					return nil, nil, err
				}
			}
			if err := ix.Add(vec); err != nil {
				logger.Warn("skipping invalid vector",
					zap.String("document", document),
					zap.String("chunk", ref),
					zap.Error(err),
				)
				continue
			}
			entries = append(entries, models.IndexEntry{Document: document, ChunkRef: ref})
		}
	}
	if ix == nil || ix.Size() == 0 {
		return nil, nil, ErrNoEmbeddings
	}
	return ix, entries, nil
}

// chunkRefs lists a document's vector files ordered by chunk index.
func chunkRefs(dir string) ([]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan document dir: %w", err)
	}
	type chunkFile struct {
		name  string
		index int
	}
	var chunks []chunkFile
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), embedding.VectorExt) {
			continue
		}
		i, err := embedding.ChunkIndexFromRef(f.Name())
		if err != nil {
			continue
		}
		chunks = append(chunks, chunkFile{name: f.Name(), index: i})
	}
	sort.Slice(chunks, func(a, b int) bool { return chunks[a].index < chunks[b].index })
	refs := make([]string, len(chunks))
	for i, c := range chunks {
		refs[i] = c.name
	}
	return refs, nil
}

func saveMetadata(path string, entries []models.IndexEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

func loadMetadata(path string) ([]models.IndexEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	var entries []models.IndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	return entries, nil
}

// RemovePersisted deletes the persisted index and metadata under indexDir,
// forcing the next BuildOrLoad to rebuild from the embeddings tree.
func RemovePersisted(indexDir string) error {
	for _, name := range []string{IndexFileName, MetadataFileName} {
		if err := os.Remove(filepath.Join(indexDir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
