package repository

import (
	"context"
	"time"

	"github.com/SanyamVb/Multi-modal-RAG/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// ChunkRepository persists embedded chunks in the pgvector-backed index.
// It is the vector store behind the retrieval engine: document scope and
// the relevance floor are pushed down into the similarity query.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx dbtx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

// UpsertBatch writes chunks keyed by chunk id. Re-submitting a chunk after
// a partially failed batch overwrites rather than duplicates.
func (r *ChunkRepository) UpsertBatch(ctx context.Context, chunks []domain.Chunk) error {
	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO chunks (id, document_id, ordinal, page, content, embedding, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (id) DO UPDATE
			 SET page = EXCLUDED.page, content = EXCLUDED.content, embedding = EXCLUDED.embedding`,
			c.ID,
			c.DocumentID,
			c.Ordinal,
			c.Page,
			c.Text,
			pgvector.NewVector(c.Embedding),
			createdAt,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// Search returns the topK nearest chunks by cosine similarity, restricted
// to the scoped documents and to similarity at or above minScore. Only
// chunks of ready documents are visible.
func (r *ChunkRepository) Search(ctx context.Context, embedding []float32, scope []string, topK int, minScore float64) ([]domain.RetrievedItem, error) {
	if len(scope) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT c.id, c.document_id, c.ordinal, c.page, c.content,
		        1 - (c.embedding <=> $1) AS similarity
		 FROM chunks c
		 JOIN documents d ON d.id = c.document_id AND d.status = $2
		 WHERE c.document_id = ANY($3)
		   AND 1 - (c.embedding <=> $1) >= $4
		 ORDER BY c.embedding <=> $1 ASC, c.ordinal ASC
		 LIMIT $5`,
		pgvector.NewVector(embedding),
		domain.DocumentStatusReady,
		scope,
		minScore,
		topK,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.RetrievedItem
	for rows.Next() {
		var item domain.RetrievedItem
		if err := rows.Scan(&item.ChunkID, &item.DocumentID, &item.Ordinal, &item.Page, &item.Text, &item.RawScore); err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	return results, rows.Err()
}

func (r *ChunkRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	return err
}

func (r *ChunkRepository) DeleteAll(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `DELETE FROM chunks`)
	return err
}

func (r *ChunkRepository) CountByDocument(ctx context.Context, documentID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM chunks WHERE document_id = $1`, documentID).Scan(&count)
	return count, err
}
