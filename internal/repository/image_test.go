//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/SanyamVb/Multi-modal-RAG/internal/domain"
	"github.com/SanyamVb/Multi-modal-RAG/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageRepository_CreateBatchAndList(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	imageRepo := NewImageRepository(pool)

	doc := seedDocument(ctx, t, docRepo, "illustrated.pdf", domain.DocumentStatusReady)

	images := []domain.Image{
		{ID: uuid.NewString(), DocumentID: doc.ID, Page: 3, Position: 0, MediaType: "image/png", Payload: []byte("p3")},
		{ID: uuid.NewString(), DocumentID: doc.ID, Page: 1, Position: 1, MediaType: "image/jpeg", Payload: []byte("p1b")},
		{ID: uuid.NewString(), DocumentID: doc.ID, Page: 1, Position: 0, MediaType: "image/png", Payload: []byte("p1a")},
	}
	require.NoError(t, imageRepo.CreateBatch(ctx, images))

	list, err := imageRepo.ListByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)

	assert.Equal(t, []byte("p1a"), list[0].Payload)
	assert.Equal(t, []byte("p1b"), list[1].Payload)
	assert.Equal(t, []byte("p3"), list[2].Payload)
	assert.Equal(t, "image/jpeg", list[1].MediaType)
	assert.Equal(t, 3, list[2].Page)
}

func TestImageRepository_ListByDocument_Empty(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	imageRepo := NewImageRepository(pool)

	list, err := imageRepo.ListByDocument(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestImageRepository_DeleteByDocument(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	imageRepo := NewImageRepository(pool)

	doc := seedDocument(ctx, t, docRepo, "illustrated.pdf", domain.DocumentStatusReady)

	require.NoError(t, imageRepo.CreateBatch(ctx, []domain.Image{
		{ID: uuid.NewString(), DocumentID: doc.ID, Page: 1, MediaType: "image/png", Payload: []byte("x")},
		{ID: uuid.NewString(), DocumentID: doc.ID, Page: 2, MediaType: "image/png", Payload: []byte("y")},
	}))

	require.NoError(t, imageRepo.DeleteByDocument(ctx, doc.ID))

	count, err := imageRepo.CountByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}
