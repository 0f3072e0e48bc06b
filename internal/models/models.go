// Package models defines core data structures for documents, chunks, and retrieval results.
package models

// Document is the extracted text of one uploaded file. Documents are never
// persisted by the core; they are re-extracted on demand from stored files.
type Document struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// Chunk is one overlapping text window derived from a document.
type Chunk struct {
	Document string `json:"document"`
	Index    int    `json:"index"`
	Text     string `json:"text"`
}

// IndexEntry maps one row of the vector index back to its source chunk.
// Position i in the metadata list corresponds to row i of the index matrix.
type IndexEntry struct {
	Document string `json:"document"`
	ChunkRef string `json:"chunk_ref"`
}

// ScoredChunk is a single retrieval hit: the owning document, the chunk's
// vector file name, and the squared L2 distance to the query (smaller is closer).
type ScoredChunk struct {
	Document string  `json:"document"`
	ChunkRef string  `json:"chunk_ref"`
	Distance float64 `json:"distance"`
}

// ContextChunk is a retrieved chunk packaged for the generation capability.
type ContextChunk struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// ConfidenceResult is the outcome of the confidence gate for one query.
type ConfidenceResult struct {
	Confident bool    `json:"confident"`
	Score     float64 `json:"score"`
}
