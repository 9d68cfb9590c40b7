//go:build integration

package repository

import (
	"context"
	"math"
	"testing"

	"github.com/SanyamVb/Multi-modal-RAG/internal/domain"
	"github.com/SanyamVb/Multi-modal-RAG/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEmbedding returns a unit vector whose cosine similarity against
// testEmbedding(1) is exactly weight.
func testEmbedding(weight float64) []float32 {
	v := make([]float32, 1536)
	v[0] = float32(weight)
	v[1] = float32(math.Sqrt(1 - weight*weight))
	return v
}

func seedChunk(ctx context.Context, t *testing.T, repo *ChunkRepository, documentID string, ordinal int, text string, weight float64) domain.Chunk {
	t.Helper()
	c := domain.Chunk{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		Ordinal:    ordinal,
		Page:       1,
		Text:       text,
		Embedding:  testEmbedding(weight),
	}
	require.NoError(t, repo.UpsertBatch(ctx, []domain.Chunk{c}))
	return c
}

func TestChunkRepository_SearchOrdersBySimilarity(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	chunkRepo := NewChunkRepository(pool)

	doc := seedDocument(ctx, t, docRepo, "manual.pdf", domain.DocumentStatusReady)

	seedChunk(ctx, t, chunkRepo, doc.ID, 0, "weak match", 0.3)
	best := seedChunk(ctx, t, chunkRepo, doc.ID, 1, "exact match", 1.0)
	seedChunk(ctx, t, chunkRepo, doc.ID, 2, "decent match", 0.7)

	results, err := chunkRepo.Search(ctx, testEmbedding(1), []string{doc.ID}, 10, 0.15)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, best.ID, results[0].ChunkID)
	assert.Equal(t, "exact match", results[0].Text)
	assert.Equal(t, 1, results[0].Ordinal)
	assert.InDelta(t, 1.0, results[0].RawScore, 0.01)
	assert.InDelta(t, 0.7, results[1].RawScore, 0.01)
	assert.InDelta(t, 0.3, results[2].RawScore, 0.01)
}

func TestChunkRepository_SearchAppliesRelevanceFloor(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	chunkRepo := NewChunkRepository(pool)

	doc := seedDocument(ctx, t, docRepo, "manual.pdf", domain.DocumentStatusReady)

	seedChunk(ctx, t, chunkRepo, doc.ID, 0, "relevant", 0.9)
	seedChunk(ctx, t, chunkRepo, doc.ID, 1, "noise", 0.05)

	results, err := chunkRepo.Search(ctx, testEmbedding(1), []string{doc.ID}, 10, 0.15)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "relevant", results[0].Text)
}

func TestChunkRepository_SearchRespectsScope(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	chunkRepo := NewChunkRepository(pool)

	inScope := seedDocument(ctx, t, docRepo, "in.pdf", domain.DocumentStatusReady)
	outOfScope := seedDocument(ctx, t, docRepo, "out.pdf", domain.DocumentStatusReady)

	want := seedChunk(ctx, t, chunkRepo, inScope.ID, 0, "scoped", 0.9)
	seedChunk(ctx, t, chunkRepo, outOfScope.ID, 0, "excluded", 1.0)

	results, err := chunkRepo.Search(ctx, testEmbedding(1), []string{inScope.ID}, 10, 0.15)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, want.ID, results[0].ChunkID)
	assert.Equal(t, inScope.ID, results[0].DocumentID)
}

func TestChunkRepository_SearchSkipsUnreadyDocuments(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	chunkRepo := NewChunkRepository(pool)

	doc := seedDocument(ctx, t, docRepo, "half-ingested.pdf", domain.DocumentStatusIngesting)
	seedChunk(ctx, t, chunkRepo, doc.ID, 0, "not visible yet", 1.0)

	results, err := chunkRepo.Search(ctx, testEmbedding(1), []string{doc.ID}, 10, 0.15)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChunkRepository_SearchEmptyScope(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	chunkRepo := NewChunkRepository(pool)

	results, err := chunkRepo.Search(ctx, testEmbedding(1), nil, 10, 0.15)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChunkRepository_SearchLimitsTopK(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	chunkRepo := NewChunkRepository(pool)

	doc := seedDocument(ctx, t, docRepo, "manual.pdf", domain.DocumentStatusReady)
	for i := 0; i < 5; i++ {
		seedChunk(ctx, t, chunkRepo, doc.ID, i, "chunk", 0.5+float64(i)*0.05)
	}

	results, err := chunkRepo.Search(ctx, testEmbedding(1), []string{doc.ID}, 2, 0.15)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestChunkRepository_UpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	chunkRepo := NewChunkRepository(pool)

	doc := seedDocument(ctx, t, docRepo, "manual.pdf", domain.DocumentStatusReady)

	c := domain.Chunk{
		ID:         uuid.NewString(),
		DocumentID: doc.ID,
		Ordinal:    0,
		Page:       1,
		Text:       "first draft",
		Embedding:  testEmbedding(0.5),
	}
	require.NoError(t, chunkRepo.UpsertBatch(ctx, []domain.Chunk{c}))

	c.Text = "second draft"
	c.Embedding = testEmbedding(0.9)
	require.NoError(t, chunkRepo.UpsertBatch(ctx, []domain.Chunk{c}))

	count, err := chunkRepo.CountByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := chunkRepo.Search(ctx, testEmbedding(1), []string{doc.ID}, 10, 0.15)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "second draft", results[0].Text)
	assert.InDelta(t, 0.9, results[0].RawScore, 0.01)
}

func TestChunkRepository_DeleteByDocument(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	chunkRepo := NewChunkRepository(pool)

	keep := seedDocument(ctx, t, docRepo, "keep.pdf", domain.DocumentStatusReady)
	drop := seedDocument(ctx, t, docRepo, "drop.pdf", domain.DocumentStatusReady)

	seedChunk(ctx, t, chunkRepo, keep.ID, 0, "kept", 0.9)
	seedChunk(ctx, t, chunkRepo, drop.ID, 0, "dropped", 0.9)

	require.NoError(t, chunkRepo.DeleteByDocument(ctx, drop.ID))

	count, err := chunkRepo.CountByDocument(ctx, drop.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = chunkRepo.CountByDocument(ctx, keep.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
