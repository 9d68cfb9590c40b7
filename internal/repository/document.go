package repository

import (
	"context"
	"errors"
	"time"

	"github.com/SanyamVb/Multi-modal-RAG/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the Postgres error code raised when the filename
// uniqueness constraint rejects an insert.
const uniqueViolation = "23505"

type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx dbtx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (id, filename, status, content_type, size_bytes, storage_key, chunk_count, image_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		d.ID, d.Filename, d.Status, d.ContentType, d.SizeBytes, nullableString(d.StorageKey), d.ChunkCount, d.ImageCount, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.NewDomainErrorWithCause(domain.ErrCodeDuplicateFilename, d.Filename, err)
		}
		return err
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, filename, status, content_type, size_bytes, storage_key, chunk_count, image_count, created_at, updated_at
		 FROM documents WHERE id = $1`,
		id,
	)
	return scanDocument(row)
}

func (r *DocumentRepository) GetByFilename(ctx context.Context, filename string) (*domain.Document, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, filename, status, content_type, size_bytes, storage_key, chunk_count, image_count, created_at, updated_at
		 FROM documents WHERE filename = $1`,
		filename,
	)
	return scanDocument(row)
}

// ListReady returns fully ingested documents; documents still ingesting or
// failed never appear.
func (r *DocumentRepository) ListReady(ctx context.Context) ([]*domain.Document, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, filename, status, content_type, size_bytes, storage_key, chunk_count, image_count, created_at, updated_at
		 FROM documents WHERE status = $1 ORDER BY created_at DESC`,
		domain.DocumentStatusReady,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocumentRows(rows)
}

// ListAll returns every document regardless of status, newest first.
func (r *DocumentRepository) ListAll(ctx context.Context) ([]*domain.Document, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, filename, status, content_type, size_bytes, storage_key, chunk_count, image_count, created_at, updated_at
		 FROM documents ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocumentRows(rows)
}

// ListStaleIngesting returns documents stuck in the ingesting state since
// before the cutoff, which the janitor treats as crash debris.
func (r *DocumentRepository) ListStaleIngesting(ctx context.Context, olderThan time.Time) ([]*domain.Document, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, filename, status, content_type, size_bytes, storage_key, chunk_count, image_count, created_at, updated_at
		 FROM documents WHERE status = $1 AND updated_at < $2 ORDER BY updated_at ASC`,
		domain.DocumentStatusIngesting, olderThan,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocumentRows(rows)
}

// ListFailed returns documents whose ingestion rollback could not finish.
func (r *DocumentRepository) ListFailed(ctx context.Context) ([]*domain.Document, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, filename, status, content_type, size_bytes, storage_key, chunk_count, image_count, created_at, updated_at
		 FROM documents WHERE status = $1 ORDER BY updated_at ASC`,
		domain.DocumentStatusFailed,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocumentRows(rows)
}

// MarkReady flips a document to the ready state and records its final chunk
// and image counts. This is the single statement that makes the document
// visible to listing and retrieval.
func (r *DocumentRepository) MarkReady(ctx context.Context, id string, chunkCount, imageCount int) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET status = $1, chunk_count = $2, image_count = $3, updated_at = $4 WHERE id = $5`,
		domain.DocumentStatusReady, chunkCount, imageCount, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// Delete removes a document row; chunks and images cascade via foreign keys.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM documents WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) DeleteAll(ctx context.Context) (int64, error) {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM documents`)
	if err != nil {
		return 0, err
	}
	return cmdTag.RowsAffected(), nil
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var d domain.Document
	var storageKey *string
	err := row.Scan(&d.ID, &d.Filename, &d.Status, &d.ContentType, &d.SizeBytes, &storageKey, &d.ChunkCount, &d.ImageCount, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	if storageKey != nil {
		d.StorageKey = *storageKey
	}
	return &d, nil
}

func scanDocumentRows(rows pgx.Rows) ([]*domain.Document, error) {
	var results []*domain.Document
	for rows.Next() {
		var d domain.Document
		var storageKey *string
		if err := rows.Scan(&d.ID, &d.Filename, &d.Status, &d.ContentType, &d.SizeBytes, &storageKey, &d.ChunkCount, &d.ImageCount, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		if storageKey != nil {
			d.StorageKey = *storageKey
		}
		results = append(results, &d)
	}
	return results, rows.Err()
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
