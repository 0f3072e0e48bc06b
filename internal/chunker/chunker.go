// Package chunker splits document text into overlapping word windows.
package chunker

import (
	"fmt"
	"strings"
)

// Default window parameters for long-document chunking.
const (
	DefaultChunkSize    = 300
	DefaultChunkOverlap = 50
)

// Chunker produces overlapping word-based chunks. Chunking is a pure function
// of its inputs: the same text and parameters always yield the same chunks,
// which is what lets stored chunk ids be mapped back to text later.
type Chunker struct {
	size    int
	overlap int
}

// New creates a chunker with the given window size and overlap (in words).
// An overlap equal to or larger than the size would never advance the window,
// so that configuration is rejected.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap must not be negative, got %d", overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the window size in words.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the window overlap in words.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk collapses whitespace runs to single spaces, splits text into words,
// and slides a window of Size words advancing Size-Overlap words per step.
// The window keeps advancing while its start is inside the word sequence, so
// the tail of the text appears in the final (possibly shorter) windows.
// Returns nil for empty or whitespace-only text.
func (c *Chunker) Chunk(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	step := c.size - c.overlap
	chunks := make([]string, 0, (len(words)+step-1)/step)
	for start := 0; start < len(words); start += step {
		end := start + c.size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks
}
