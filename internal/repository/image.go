package repository

import (
	"context"
	"time"

	"github.com/SanyamVb/Multi-modal-RAG/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ImageRepository persists figures extracted during ingestion. Payloads are
// stored inline; extracted figures are small.
type ImageRepository struct {
	db dbtx
}

func NewImageRepository(pool *pgxpool.Pool) *ImageRepository {
	return &ImageRepository{db: pool}
}

func NewImageRepositoryWithTx(tx dbtx) *ImageRepository {
	return &ImageRepository{db: tx}
}

func (r *ImageRepository) CreateBatch(ctx context.Context, images []domain.Image) error {
	for _, img := range images {
		createdAt := img.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO images (id, document_id, page, position, media_type, payload, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			img.ID, img.DocumentID, img.Page, img.Position, img.MediaType, img.Payload, createdAt,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListByDocument returns a document's images in page then extraction order.
func (r *ImageRepository) ListByDocument(ctx context.Context, documentID string) ([]*domain.Image, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, document_id, page, position, media_type, payload, created_at
		 FROM images WHERE document_id = $1 ORDER BY page ASC, position ASC`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.Image
	for rows.Next() {
		var img domain.Image
		if err := rows.Scan(&img.ID, &img.DocumentID, &img.Page, &img.Position, &img.MediaType, &img.Payload, &img.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, &img)
	}
	return results, rows.Err()
}

func (r *ImageRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM images WHERE document_id = $1`, documentID)
	return err
}

func (r *ImageRepository) DeleteAll(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `DELETE FROM images`)
	return err
}

func (r *ImageRepository) CountByDocument(ctx context.Context, documentID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM images WHERE document_id = $1`, documentID).Scan(&count)
	return count, err
}
