package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/SanyamVb/Multi-modal-RAG/internal/domain"
)

const (
	// DefaultStaleIngestTTL is how long a document may sit in the ingesting
	// state before the janitor treats it as crash debris.
	DefaultStaleIngestTTL = 30 * time.Minute
)

// JanitorDocumentRepository defines the document persistence interface for the janitor
type JanitorDocumentRepository interface {
	// ListStaleIngesting returns documents stuck in the ingesting state
	// since before the cutoff.
	ListStaleIngesting(ctx context.Context, olderThan time.Time) ([]*domain.Document, error)

	// ListFailed returns documents whose rollback could not finish.
	ListFailed(ctx context.Context) ([]*domain.Document, error)

	// Delete removes a document row.
	Delete(ctx context.Context, id string) error
}

// JanitorIndex defines the vector index interface for the janitor
type JanitorIndex interface {
	DeleteByDocument(ctx context.Context, documentID string) error
}

// JanitorImageRepository defines the image persistence interface for the janitor
type JanitorImageRepository interface {
	DeleteByDocument(ctx context.Context, documentID string) error
}

// JanitorStorage defines the object storage interface for the janitor
type JanitorStorage interface {
	Delete(ctx context.Context, key string) error
}

// Janitor removes the leftovers of ingestions that never finished: documents
// stuck in the ingesting state past the TTL (the process died mid-ingest)
// and documents marked failed (rollback itself could not complete). For each
// it deletes chunks, images, the archived original, then the document row.
type Janitor struct {
	docs    JanitorDocumentRepository
	index   JanitorIndex
	images  JanitorImageRepository
	storage JanitorStorage
	ttl     time.Duration
	now     func() time.Time
}

// NewJanitor creates a new Janitor instance. storage may be nil when no
// object store is configured.
func NewJanitor(docs JanitorDocumentRepository, index JanitorIndex, images JanitorImageRepository, storage JanitorStorage, ttl time.Duration) *Janitor {
	if ttl <= 0 {
		ttl = DefaultStaleIngestTTL
	}
	return &Janitor{
		docs:    docs,
		index:   index,
		images:  images,
		storage: storage,
		ttl:     ttl,
		now:     time.Now,
	}
}

// ProcessJobs implements the JobProcessor interface
func (j *Janitor) ProcessJobs(ctx context.Context) error {
	stale, err := j.docs.ListStaleIngesting(ctx, j.now().Add(-j.ttl))
	if err != nil {
		return fmt.Errorf("failed to list stale ingestions: %w", err)
	}

	failed, err := j.docs.ListFailed(ctx)
	if err != nil {
		return fmt.Errorf("failed to list failed ingestions: %w", err)
	}

	debris := append(stale, failed...)
	if len(debris) == 0 {
		return nil
	}

	log.Printf("janitor: sweeping %d abandoned ingestions", len(debris))

	for _, doc := range debris {
		if err := j.sweep(ctx, doc); err != nil {
			log.Printf("janitor: failed to sweep document %s: %v", doc.ID, err)
		}
	}

	return nil
}

// sweep removes everything a partial ingestion left behind. The document row
// goes last so a mid-sweep crash leaves the document findable on the next
// pass.
func (j *Janitor) sweep(ctx context.Context, doc *domain.Document) error {
	if err := j.index.DeleteByDocument(ctx, doc.ID); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	if err := j.images.DeleteByDocument(ctx, doc.ID); err != nil {
		return fmt.Errorf("failed to delete images: %w", err)
	}
	if j.storage != nil && doc.StorageKey != "" {
		if err := j.storage.Delete(ctx, doc.StorageKey); err != nil {
			return fmt.Errorf("failed to delete stored original: %w", err)
		}
	}
	if err := j.docs.Delete(ctx, doc.ID); err != nil {
		return fmt.Errorf("failed to delete document row: %w", err)
	}

	log.Printf("janitor: swept abandoned ingestion %s (%s)", doc.ID, doc.Filename)
	return nil
}
