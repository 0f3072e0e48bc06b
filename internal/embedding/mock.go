package embedding

import (
	"context"
	"math"
)

// MockEmbedder is a deterministic embedder for tests: the same text always
// yields the same fixed-dimension vector.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns a deterministic embedder of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed derives a unit-length vector from the text hash.
func (e *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	h := HashString(text)
	vector := make([]float32, e.dimensions)
	for i := range vector {
		vector[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	normalize(vector)
	return vector, nil
}

// EmbedBatch embeds each text in turn.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vector, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vector
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int { return e.dimensions }

// Close is a no-op.
func (e *MockEmbedder) Close() error { return nil }

func normalize(x []float32) {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range x {
		x[i] *= inv
	}
}
