package domain

import (
	"fmt"
	"time"
)

// Image represents a figure or graphic extracted from a document during
// ingestion. The payload is stored inline; Page and Position drive the
// positional association with chunks at assembly time.
type Image struct {
	ID         string
	DocumentID string
	Page       int // 1-based source page, 0 when unknown
	Position   int // extraction order within the page
	MediaType  string
	Payload    []byte
	CreatedAt  time.Time
}

// ValidateImage validates an Image instance
func ValidateImage(img *Image) error {
	if img == nil {
		return fmt.Errorf("image cannot be nil")
	}

	if img.ID == "" {
		return fmt.Errorf("image ID is required")
	}

	if img.DocumentID == "" {
		return fmt.Errorf("image DocumentID is required")
	}

	if len(img.Payload) == 0 {
		return fmt.Errorf("image Payload is required")
	}

	return nil
}
