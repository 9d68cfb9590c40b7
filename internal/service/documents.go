package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/SanyamVb/Multi-modal-RAG/internal/domain"
	"github.com/SanyamVb/Multi-modal-RAG/internal/telemetry"
)

// DocumentRepositoryInterface defines the contract for document persistence
type DocumentRepositoryInterface interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	GetByFilename(ctx context.Context, filename string) (*domain.Document, error)
	ListReady(ctx context.Context) ([]*domain.Document, error)
	ListAll(ctx context.Context) ([]*domain.Document, error)
	ListStaleIngesting(ctx context.Context, olderThan time.Time) ([]*domain.Document, error)
	ListFailed(ctx context.Context) ([]*domain.Document, error)
	MarkReady(ctx context.Context, id string, chunkCount, imageCount int) error
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int64, error)
}

// ImageRepositoryInterface defines the contract for image persistence
type ImageRepositoryInterface interface {
	CreateBatch(ctx context.Context, images []domain.Image) error
	ListByDocument(ctx context.Context, documentID string) ([]*domain.Image, error)
	DeleteByDocument(ctx context.Context, documentID string) error
	DeleteAll(ctx context.Context) error
}

// DocumentService handles listing, inspection, and removal of ingested
// documents. Deletions remove the document row together with its chunks and
// images in one transaction; the archived original is cleaned up afterwards
// on a best-effort basis.
type DocumentService struct {
	docs     DocumentRepositoryInterface
	txRunner TxRunner
	storage  ObjectStorage
}

// NewDocumentService creates a new DocumentService instance
func NewDocumentService(docs DocumentRepositoryInterface, txRunner TxRunner, storage ObjectStorage) *DocumentService {
	return &DocumentService{
		docs:     docs,
		txRunner: txRunner,
		storage:  storage,
	}
}

// List returns all ready documents, newest first. Documents still ingesting
// or failed are not listed.
func (s *DocumentService) List(ctx context.Context) ([]*domain.Document, error) {
	return s.docs.ListReady(ctx)
}

// Get returns a document regardless of status so callers can poll an
// in-flight ingestion.
func (s *DocumentService) Get(ctx context.Context, id string) (*domain.Document, error) {
	return s.docs.GetByID(ctx, id)
}

// Delete removes a document and all of its derived content.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Delete", telemetry.SpanAttributes{
		DocumentID: id,
		Operation:  "delete",
	})
	defer span.End()

	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		span.SetError(err)
		return err
	}

	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Chunks().DeleteByDocument(ctx, id); err != nil {
			return fmt.Errorf("failed to delete chunks: %w", err)
		}
		if err := repos.Images().DeleteByDocument(ctx, id); err != nil {
			return fmt.Errorf("failed to delete images: %w", err)
		}
		return repos.Documents().Delete(ctx, id)
	})
	if err != nil {
		span.SetError(err)
		return err
	}

	s.deleteOriginal(ctx, doc)
	return nil
}

// DeleteAll purges every document, chunk, and image. It returns how many
// documents were removed.
func (s *DocumentService) DeleteAll(ctx context.Context) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.DeleteAll", telemetry.SpanAttributes{
		Operation: "delete_all",
	})
	defer span.End()

	docs, err := s.docs.ListAll(ctx)
	if err != nil {
		span.SetError(err)
		return 0, err
	}

	var deleted int64
	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Chunks().DeleteAll(ctx); err != nil {
			return fmt.Errorf("failed to delete chunks: %w", err)
		}
		if err := repos.Images().DeleteAll(ctx); err != nil {
			return fmt.Errorf("failed to delete images: %w", err)
		}
		deleted, err = repos.Documents().DeleteAll(ctx)
		return err
	})
	if err != nil {
		span.SetError(err)
		return 0, err
	}

	for _, doc := range docs {
		s.deleteOriginal(ctx, doc)
	}
	return deleted, nil
}

// DownloadURL returns a presigned link to the archived original file.
func (s *DocumentService) DownloadURL(ctx context.Context, id string) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.DownloadURL", telemetry.SpanAttributes{
		DocumentID: id,
		Operation:  "download_url",
	})
	defer span.End()

	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		span.SetError(err)
		return "", err
	}
	if s.storage == nil || doc.StorageKey == "" {
		return "", domain.NewDomainError(domain.ErrCodeNotFound, "no stored original for this document")
	}

	url, err := s.storage.PresignDownload(ctx, doc.StorageKey, doc.Filename)
	if err != nil {
		span.SetError(err)
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeStoreUnavailable, "failed to presign download", err)
	}
	return url, nil
}

func (s *DocumentService) deleteOriginal(ctx context.Context, doc *domain.Document) {
	if s.storage == nil || doc.StorageKey == "" {
		return
	}
	if err := s.storage.Delete(context.WithoutCancel(ctx), doc.StorageKey); err != nil {
		log.Printf("Failed to delete stored file %s: %v", doc.StorageKey, err)
	}
}
