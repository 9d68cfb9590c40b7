package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/SanyamVb/Multi-modal-RAG/internal/domain"
	"github.com/SanyamVb/Multi-modal-RAG/internal/telemetry"
)

const (
	// chunkInsertBatchSize caps how many chunk rows one insert call carries.
	chunkInsertBatchSize = 64
	// ingestWriteConcurrency bounds the parallel store writes per document.
	ingestWriteConcurrency = 4
)

// TextBlock is one page-attributed unit of extracted text.
type TextBlock struct {
	Page int
	Text string
}

// ImageBlock is one extracted image with its page placement.
type ImageBlock struct {
	Page      int
	Position  int
	MediaType string
	Data      []byte
}

// ParsedDocument is the parser's output for one source file.
type ParsedDocument struct {
	Blocks []TextBlock
	Images []ImageBlock
}

// DocumentParser extracts text blocks and images from a source file.
type DocumentParser interface {
	Parse(ctx context.Context, filename string, data []byte) (*ParsedDocument, error)
}

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// IngestDocumentRepository defines the document repository interface for ingestion
type IngestDocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	MarkReady(ctx context.Context, id string, chunkCount, imageCount int) error
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus) error
	Delete(ctx context.Context, id string) error
}

// IngestImageRepository defines the image repository interface for ingestion
type IngestImageRepository interface {
	CreateBatch(ctx context.Context, images []domain.Image) error
	DeleteByDocument(ctx context.Context, documentID string) error
}

// ObjectStorage archives original files and hands out download links.
type ObjectStorage interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
	PresignDownload(ctx context.Context, key string, filename string) (string, error)
}

// UUIDGenerator defines the interface for generating UUIDs
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// IngestFile is one source file handed to the coordinator.
type IngestFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// IngestResult summarizes one successful ingestion.
type IngestResult struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunk_count"`
	ImageCount int    `json:"image_count"`
}

// BatchItemResult is the per-file outcome of a batch ingestion. Files fail
// independently; one bad file never blocks its siblings.
type BatchItemResult struct {
	Filename string        `json:"filename"`
	Result   *IngestResult `json:"result,omitempty"`
	Err      error         `json:"-"`
}

// IngestService coordinates the ingestion pipeline: parse, chunk, embed,
// persist, then flip the document visible. Each document lands atomically;
// any failure after the first write rolls back everything already stored
// so a partial document is never retrievable.
type IngestService struct {
	docs     IngestDocumentRepository
	index    VectorIndex
	images   IngestImageRepository
	storage  ObjectStorage
	parser   DocumentParser
	embedder EmbeddingClient
	chunker  *Chunker
	uuidGen  UUIDGenerator
}

// NewIngestService creates a new IngestService instance. storage may be nil
// when no object store is configured; originals are then not archived.
func NewIngestService(
	docs IngestDocumentRepository,
	index VectorIndex,
	images IngestImageRepository,
	storage ObjectStorage,
	parser DocumentParser,
	embedder EmbeddingClient,
	chunker *Chunker,
	uuidGen UUIDGenerator,
) *IngestService {
	return &IngestService{
		docs:     docs,
		index:    index,
		images:   images,
		storage:  storage,
		parser:   parser,
		embedder: embedder,
		chunker:  chunker,
		uuidGen:  uuidGen,
	}
}

// Ingest runs the full pipeline for one file. The document row is created
// first with status ingesting and becomes visible only through the final
// MarkReady, so readers never observe a half-ingested document.
func (s *IngestService) Ingest(ctx context.Context, file IngestFile) (*IngestResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestService.Ingest", telemetry.SpanAttributes{
		Filename:  file.Filename,
		Operation: "ingest",
	})
	defer span.End()

	if strings.TrimSpace(file.Filename) == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "filename is required")
	}
	if len(file.Data) == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeParseFailure, "file is empty")
	}

	doc := domain.NewDocument(s.uuidGen.NewString(), file.Filename, file.ContentType, int64(len(file.Data)))
	if s.storage != nil {
		doc.StorageKey = fmt.Sprintf("documents/%s/%s", doc.ID, file.Filename)
	}

	// Duplicate filenames surface here as a conflict before any other work.
	if err := s.docs.Create(ctx, doc); err != nil {
		span.SetError(err)
		return nil, err
	}

	if s.storage != nil {
		if err := s.storage.Upload(ctx, doc.StorageKey, file.Data, file.ContentType); err != nil {
			s.rollback(ctx, doc)
			span.SetError(err)
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStorageFailure, "failed to archive original file", err)
		}
	}

	parsed, err := s.parser.Parse(ctx, file.Filename, file.Data)
	if err != nil {
		s.rollback(ctx, doc)
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeParseFailure, fmt.Sprintf("failed to parse %s", file.Filename), err)
	}

	chunks, err := s.embedChunks(ctx, doc.ID, parsed.Blocks)
	if err != nil {
		s.rollback(ctx, doc)
		span.SetError(err)
		return nil, err
	}

	imgs := s.buildImages(doc.ID, parsed.Images)

	if err := s.persist(ctx, chunks, imgs); err != nil {
		s.rollback(ctx, doc)
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStorageFailure, "failed to store document content", err)
	}

	if err := s.docs.MarkReady(ctx, doc.ID, len(chunks), len(imgs)); err != nil {
		s.rollback(ctx, doc)
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStorageFailure, "failed to finalize document", err)
	}

	return &IngestResult{
		DocumentID: doc.ID,
		Filename:   doc.Filename,
		ChunkCount: len(chunks),
		ImageCount: len(imgs),
	}, nil
}

// IngestBatch ingests files sequentially, one outcome per input file in
// input order. A failed file is reported and skipped, never fatal to the
// batch.
func (s *IngestService) IngestBatch(ctx context.Context, files []IngestFile) []BatchItemResult {
	results := make([]BatchItemResult, 0, len(files))
	for _, file := range files {
		item := BatchItemResult{Filename: file.Filename}
		item.Result, item.Err = s.Ingest(ctx, file)
		if item.Err != nil {
			log.Printf("Batch ingest: %s failed: %v", file.Filename, item.Err)
		}
		results = append(results, item)
	}
	return results
}

// embedChunks turns parsed text blocks into embedded chunk rows. A document
// with no extractable text yields zero chunks and is not an error.
func (s *IngestService) embedChunks(ctx context.Context, documentID string, blocks []TextBlock) ([]domain.Chunk, error) {
	candidates := s.chunker.ChunkBlocks(blocks)
	if len(candidates) == 0 {
		return nil, nil
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Text
	}

	embeddings, err := s.embedder.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbeddingFailure, "failed to embed document chunks", err)
	}
	if len(embeddings) != len(candidates) {
		return nil, domain.NewDomainError(domain.ErrCodeEmbeddingFailure,
			fmt.Sprintf("embedding count mismatch: got %d for %d chunks", len(embeddings), len(candidates)))
	}

	chunks := make([]domain.Chunk, len(candidates))
	for i, c := range candidates {
		chunks[i] = domain.Chunk{
			ID:         s.uuidGen.NewString(),
			DocumentID: documentID,
			Ordinal:    c.Ordinal,
			Page:       c.Page,
			Text:       c.Text,
			Embedding:  embeddings[i],
		}
	}
	return chunks, nil
}

func (s *IngestService) buildImages(documentID string, blocks []ImageBlock) []domain.Image {
	if len(blocks) == 0 {
		return nil
	}
	imgs := make([]domain.Image, len(blocks))
	for i, b := range blocks {
		imgs[i] = domain.Image{
			ID:         s.uuidGen.NewString(),
			DocumentID: documentID,
			Page:       b.Page,
			Position:   b.Position,
			MediaType:  b.MediaType,
			Payload:    b.Data,
		}
	}
	return imgs
}

// persist writes chunk batches and images concurrently. Any single write
// failure fails the whole document.
func (s *IngestService) persist(ctx context.Context, chunks []domain.Chunk, imgs []domain.Image) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ingestWriteConcurrency)

	for start := 0; start < len(chunks); start += chunkInsertBatchSize {
		end := start + chunkInsertBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		g.Go(func() error {
			return s.index.UpsertBatch(gctx, batch)
		})
	}

	if len(imgs) > 0 {
		g.Go(func() error {
			return s.images.CreateBatch(gctx, imgs)
		})
	}

	return g.Wait()
}

// rollback removes everything stored for a failed document. It runs on a
// detached context so a caller cancellation cannot strand partial rows.
func (s *IngestService) rollback(ctx context.Context, doc *domain.Document) {
	cleanupCtx := context.WithoutCancel(ctx)
	incomplete := false

	if err := s.index.DeleteByDocument(cleanupCtx, doc.ID); err != nil {
		log.Printf("Rollback: failed to delete chunks for document %s: %v", doc.ID, err)
		incomplete = true
	}
	if err := s.images.DeleteByDocument(cleanupCtx, doc.ID); err != nil {
		log.Printf("Rollback: failed to delete images for document %s: %v", doc.ID, err)
		incomplete = true
	}
	if s.storage != nil && doc.StorageKey != "" {
		if err := s.storage.Delete(cleanupCtx, doc.StorageKey); err != nil {
			log.Printf("Rollback: failed to delete stored file %s: %v", doc.StorageKey, err)
			incomplete = true
		}
	}

	// When cleanup itself failed, keep the row marked failed so the janitor
	// retries later instead of orphaning the leftovers.
	if incomplete {
		if err := s.docs.UpdateStatus(cleanupCtx, doc.ID, domain.DocumentStatusFailed); err != nil {
			log.Printf("Rollback: failed to mark document %s failed: %v", doc.ID, err)
		}
		return
	}
	if err := s.docs.Delete(cleanupCtx, doc.ID); err != nil {
		log.Printf("Rollback: failed to delete document %s: %v", doc.ID, err)
	}
}
