// Package vector provides a flat L2 nearest-neighbor index over chunk
// embeddings, with build-or-load persistence and retrieval.
package vector

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
)

// ErrNoEmbeddings is returned when an index build finds no usable vectors.
var ErrNoEmbeddings = errors.New("no embeddings found")

// FlatIndex is a brute-force squared-L2 index over an N x D float32 matrix.
// It is immutable once built; a changed corpus requires a rebuild.
type FlatIndex struct {
	dim  int
	data []float32 // row-major, rows*dim values
	rows int
}

// NewFlatIndex creates an empty index of the given dimension.
func NewFlatIndex(dim int) (*FlatIndex, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("index dimension must be positive, got %d", dim)
	}
	return &FlatIndex{dim: dim}, nil
}

// Add appends one vector as the next row.
func (ix *FlatIndex) Add(vector []float32) error {
	if len(vector) != ix.dim {
		return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vector), ix.dim)
	}
	ix.data = append(ix.data, vector...)
	ix.rows++
	return nil
}

// Size returns the number of indexed vectors.
func (ix *FlatIndex) Size() int { return ix.rows }

// Dimensions returns the vector dimension.
func (ix *FlatIndex) Dimensions() int { return ix.dim }

// Hit is one nearest-neighbor result: a row of the index and its squared L2
// distance to the query.
type Hit struct {
	Row      int
	Distance float64
}

// Search returns up to k rows nearest to query, ascending by squared L2
// distance. Deterministic for a fixed index and query: ties keep row order.
func (ix *FlatIndex) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), ix.dim)
	}
	if k <= 0 || ix.rows == 0 {
		return nil, nil
	}
	hits := make([]Hit, ix.rows)
	for row := 0; row < ix.rows; row++ {
		var dist float64
		base := row * ix.dim
		for j := 0; j < ix.dim; j++ {
			d := float64(query[j] - ix.data[base+j])
			dist += d * d
		}
		hits[row] = Hit{Row: row, Distance: dist}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Save persists the index to path. Format: uint32 dimension, uint32 row count,
// then rows*dimension little-endian float32 values.
func (ix *FlatIndex) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	buf := make([]byte, 8+len(ix.data)*4)
	binary.LittleEndian.PutUint32(buf, uint32(ix.dim))
	binary.LittleEndian.PutUint32(buf[4:], uint32(ix.rows))
	for i, v := range ix.data {
		binary.LittleEndian.PutUint32(buf[8+i*4:], math.Float32bits(v))
	}
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return fmt.Errorf("write index file: %w", err)
	}
	return nil
}

// LoadIndex reads an index persisted by Save.
func LoadIndex(path string) (*FlatIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	if len(data) < 8 {
		return nil, fmt.Errorf("index file %s: truncated header", path)
	}
	dim := int(binary.LittleEndian.Uint32(data))
	rows := int(binary.LittleEndian.Uint32(data[4:]))
	if dim <= 0 {
		return nil, fmt.Errorf("index file %s: invalid dimension %d", path, dim)
	}
	if len(data) != 8+rows*dim*4 {
		return nil, fmt.Errorf("index file %s: %d bytes for %d x %d", path, len(data), rows, dim)
	}
	values := make([]float32, rows*dim)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[8+i*4:]))
	}
	return &FlatIndex{dim: dim, data: values, rows: rows}, nil
}
