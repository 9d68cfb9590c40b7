package domain

import (
	"fmt"
	"time"
)

// Chunk represents an embedded span of document text, the unit of retrieval.
type Chunk struct {
	ID         string
	DocumentID string
	Ordinal    int // position within the document, strictly increasing
	Page       int // 1-based source page, 0 when unknown
	Text       string
	Embedding  []float32
	CreatedAt  time.Time
}

// ValidateChunk validates a Chunk instance
func ValidateChunk(c *Chunk) error {
	if c == nil {
		return fmt.Errorf("chunk cannot be nil")
	}

	if c.ID == "" {
		return fmt.Errorf("chunk ID is required")
	}

	if c.DocumentID == "" {
		return fmt.Errorf("chunk DocumentID is required")
	}

	if c.Ordinal < 0 {
		return fmt.Errorf("chunk Ordinal must not be negative")
	}

	if c.Text == "" {
		return fmt.Errorf("chunk Text is required")
	}

	if len(c.Embedding) == 0 {
		return fmt.Errorf("chunk Embedding is required")
	}

	return nil
}
