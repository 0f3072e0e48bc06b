// Package embedding provides text embedding and per-chunk vector persistence.
package embedding

import "context"

// Embedder produces vector embeddings for text. The dimension is fixed per
// deployment and must be identical for chunks and queries.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
