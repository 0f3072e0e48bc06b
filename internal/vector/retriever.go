package vector

import (
	"fmt"

	"github.com/hyperfocal/veridoc/internal/models"
)

// Retrieve runs a k-nearest-neighbor query and maps each hit row back to its
// metadata entry. Results are ordered nearest first and never exceed topK or
// the number of indexed vectors.
func Retrieve(ix *FlatIndex, query []float32, entries []models.IndexEntry, topK int) ([]models.ScoredChunk, error) {
	if len(entries) != ix.Size() {
		return nil, fmt.Errorf("metadata length %d does not match index size %d", len(entries), ix.Size())
	}
	hits, err := ix.Search(query, topK)
	if err != nil {
		return nil, err
	}
	results := make([]models.ScoredChunk, len(hits))
	for i, h := range hits {
		entry := entries[h.Row]
		results[i] = models.ScoredChunk{
			Document: entry.Document,
			ChunkRef: entry.ChunkRef,
			Distance: h.Distance,
		}
	}
	return results, nil
}
