package domain

import (
	"fmt"
	"time"
)

// EmbeddingDimensions is the fixed dimensionality of all stored vectors.
const EmbeddingDimensions = 768

// Chunk is an overlapping, token-bounded segment of document text.
// Chunks are derived and never persisted on their own; they exist as
// input/output of the chunker and embedding client within one run.
type Chunk struct {
	Index       int
	Text        string
	TokenCount  int
	ContentHash string
}

// EmbeddingRecord is a persisted chunk vector. At most one row exists
// per (DocumentID, ContentHash); the uniqueness lives in the database,
// not in application checks.
type EmbeddingRecord struct {
	ID          string
	DocumentID  string
	ChunkIndex  int
	ChunkText   string
	ContentHash string
	Embedding   []float32
	CreatedAt   time.Time
}

// ValidateEmbeddingRecord validates an EmbeddingRecord instance
func ValidateEmbeddingRecord(e *EmbeddingRecord) error {
	if e == nil {
		return fmt.Errorf("embedding record cannot be nil")
	}

	if e.DocumentID == "" {
		return fmt.Errorf("embedding record DocumentID is required")
	}

	if e.ContentHash == "" {
		return fmt.Errorf("embedding record ContentHash is required")
	}

	if e.ChunkIndex < 0 {
		return fmt.Errorf("embedding record ChunkIndex cannot be negative")
	}

	if len(e.Embedding) != EmbeddingDimensions {
		return fmt.Errorf("embedding record has %d dimensions, expected %d", len(e.Embedding), EmbeddingDimensions)
	}

	return nil
}
