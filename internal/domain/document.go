package domain

import (
	"fmt"
	"time"
)

// DocumentStatus represents the lifecycle state of a document
type DocumentStatus string

const (
	// DocumentStatusIngesting marks a document whose chunks and images are
	// still being written; it is invisible to listing and retrieval.
	DocumentStatusIngesting DocumentStatus = "ingesting"
	// DocumentStatusReady marks a fully ingested, queryable document.
	DocumentStatusReady DocumentStatus = "ready"
	// DocumentStatusFailed marks a document whose ingestion failed after
	// partial cleanup could not complete; the janitor sweeps these.
	DocumentStatusFailed DocumentStatus = "failed"
)

// Document represents an ingested source file in the system
type Document struct {
	ID          string
	Filename    string
	Status      DocumentStatus
	ContentType string
	SizeBytes   int64
	StorageKey  string // object key of the archived original, empty when not archived
	ChunkCount  int
	ImageCount  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewDocument creates a new Document instance in the ingesting state
func NewDocument(id, filename, contentType string, sizeBytes int64, createdAt time.Time) *Document {
	return &Document{
		ID:          id,
		Filename:    filename,
		Status:      DocumentStatusIngesting,
		ContentType: contentType,
		SizeBytes:   sizeBytes,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	if d.Filename == "" {
		return fmt.Errorf("document Filename is required")
	}

	if !isValidDocumentStatus(d.Status) {
		return fmt.Errorf("document Status is invalid: %s", d.Status)
	}

	return nil
}

// isValidDocumentStatus checks if a DocumentStatus is valid
func isValidDocumentStatus(s DocumentStatus) bool {
	switch s {
	case DocumentStatusIngesting, DocumentStatusReady, DocumentStatusFailed:
		return true
	}
	return false
}
