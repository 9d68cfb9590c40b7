package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/SanyamVb/Multi-modal-RAG/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockJobProcessor is a mock implementation of JobProcessor
type MockJobProcessor struct {
	mock.Mock
}

func (m *MockJobProcessor) ProcessJobs(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// TestWorker_StartStop tests the worker start and stop functionality
func TestWorker_StartStop(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker("test", mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start worker in goroutine
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	// Let it run for a bit
	time.Sleep(250 * time.Millisecond)

	// Stop worker
	worker.Stop()
	wg.Wait()

	// Verify ProcessJobs was called at least once
	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

// TestWorker_RunsImmediatelyOnStart tests that the first pass does not wait
// for the poll interval
func TestWorker_RunsImmediatelyOnStart(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	// Interval far longer than the test; only the immediate pass can fire.
	worker := NewWorker("test", mockProcessor, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	worker.Stop()
	wg.Wait()

	mockProcessor.AssertNumberOfCalls(t, "ProcessJobs", 1)
}

// TestWorker_ContextCancellation tests worker stops on context cancellation
func TestWorker_ContextCancellation(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker("test", mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	// Start worker in goroutine
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	// Let it run for a bit
	time.Sleep(150 * time.Millisecond)

	// Cancel context
	cancel()
	wg.Wait()

	// Verify ProcessJobs was called
	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

// TestWorker_KeepsPollingAfterErrors tests that a failing pass does not stop
// the loop
func TestWorker_KeepsPollingAfterErrors(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(errors.New("boom"))

	worker := NewWorker("test", mockProcessor, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(180 * time.Millisecond)
	worker.Stop()
	wg.Wait()

	assert.GreaterOrEqual(t, len(mockProcessor.Calls), 2)
}

// MockJanitorDocumentRepository is a mock implementation of JanitorDocumentRepository
type MockJanitorDocumentRepository struct {
	mock.Mock
}

func (m *MockJanitorDocumentRepository) ListStaleIngesting(ctx context.Context, olderThan time.Time) ([]*domain.Document, error) {
	args := m.Called(ctx, olderThan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Document), args.Error(1)
}

func (m *MockJanitorDocumentRepository) ListFailed(ctx context.Context) ([]*domain.Document, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Document), args.Error(1)
}

func (m *MockJanitorDocumentRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockJanitorIndex is a mock implementation of JanitorIndex
type MockJanitorIndex struct {
	mock.Mock
}

func (m *MockJanitorIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

// MockJanitorImageRepository is a mock implementation of JanitorImageRepository
type MockJanitorImageRepository struct {
	mock.Mock
}

func (m *MockJanitorImageRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

// MockJanitorStorage is a mock implementation of JanitorStorage
type MockJanitorStorage struct {
	mock.Mock
}

func (m *MockJanitorStorage) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// TestJanitor_ProcessJobs_NothingToSweep tests when there is no debris
func TestJanitor_ProcessJobs_NothingToSweep(t *testing.T) {
	mockDocs := new(MockJanitorDocumentRepository)
	mockIndex := new(MockJanitorIndex)
	mockImages := new(MockJanitorImageRepository)

	mockDocs.On("ListStaleIngesting", mock.Anything, mock.Anything).Return([]*domain.Document{}, nil)
	mockDocs.On("ListFailed", mock.Anything).Return([]*domain.Document{}, nil)

	janitor := NewJanitor(mockDocs, mockIndex, mockImages, nil, time.Minute)
	err := janitor.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockDocs.AssertExpectations(t)
	mockIndex.AssertNotCalled(t, "DeleteByDocument", mock.Anything, mock.Anything)
}

// TestJanitor_ProcessJobs_SweepsStaleIngesting tests removal of a stale
// ingesting document including its archived original
func TestJanitor_ProcessJobs_SweepsStaleIngesting(t *testing.T) {
	mockDocs := new(MockJanitorDocumentRepository)
	mockIndex := new(MockJanitorIndex)
	mockImages := new(MockJanitorImageRepository)
	mockStorage := new(MockJanitorStorage)

	doc := &domain.Document{
		ID:         "doc-1",
		Filename:   "report.pdf",
		Status:     domain.DocumentStatusIngesting,
		StorageKey: "documents/doc-1/report.pdf",
	}

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cutoff := now.Add(-15 * time.Minute)

	mockDocs.On("ListStaleIngesting", mock.Anything, cutoff).Return([]*domain.Document{doc}, nil)
	mockDocs.On("ListFailed", mock.Anything).Return([]*domain.Document{}, nil)
	mockIndex.On("DeleteByDocument", mock.Anything, "doc-1").Return(nil)
	mockImages.On("DeleteByDocument", mock.Anything, "doc-1").Return(nil)
	mockStorage.On("Delete", mock.Anything, "documents/doc-1/report.pdf").Return(nil)
	mockDocs.On("Delete", mock.Anything, "doc-1").Return(nil)

	janitor := NewJanitor(mockDocs, mockIndex, mockImages, mockStorage, 15*time.Minute)
	janitor.now = func() time.Time { return now }

	err := janitor.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockDocs.AssertExpectations(t)
	mockIndex.AssertExpectations(t)
	mockImages.AssertExpectations(t)
	mockStorage.AssertExpectations(t)
}

// TestJanitor_ProcessJobs_SweepsFailed tests removal of a failed document
// with no archived original
func TestJanitor_ProcessJobs_SweepsFailed(t *testing.T) {
	mockDocs := new(MockJanitorDocumentRepository)
	mockIndex := new(MockJanitorIndex)
	mockImages := new(MockJanitorImageRepository)
	mockStorage := new(MockJanitorStorage)

	doc := &domain.Document{
		ID:       "doc-2",
		Filename: "notes.txt",
		Status:   domain.DocumentStatusFailed,
	}

	mockDocs.On("ListStaleIngesting", mock.Anything, mock.Anything).Return([]*domain.Document{}, nil)
	mockDocs.On("ListFailed", mock.Anything).Return([]*domain.Document{doc}, nil)
	mockIndex.On("DeleteByDocument", mock.Anything, "doc-2").Return(nil)
	mockImages.On("DeleteByDocument", mock.Anything, "doc-2").Return(nil)
	mockDocs.On("Delete", mock.Anything, "doc-2").Return(nil)

	janitor := NewJanitor(mockDocs, mockIndex, mockImages, mockStorage, time.Minute)
	err := janitor.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockDocs.AssertExpectations(t)
	mockStorage.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

// TestJanitor_ProcessJobs_KeepsRowWhenCleanupFails tests that the document
// row survives a failed sweep so the next pass retries it
func TestJanitor_ProcessJobs_KeepsRowWhenCleanupFails(t *testing.T) {
	mockDocs := new(MockJanitorDocumentRepository)
	mockIndex := new(MockJanitorIndex)
	mockImages := new(MockJanitorImageRepository)

	doc := &domain.Document{ID: "doc-1", Filename: "report.pdf"}

	mockDocs.On("ListStaleIngesting", mock.Anything, mock.Anything).Return([]*domain.Document{doc}, nil)
	mockDocs.On("ListFailed", mock.Anything).Return([]*domain.Document{}, nil)
	mockIndex.On("DeleteByDocument", mock.Anything, "doc-1").Return(errors.New("index unavailable"))

	janitor := NewJanitor(mockDocs, mockIndex, mockImages, nil, time.Minute)
	err := janitor.ProcessJobs(context.Background())

	// Per-document failures are logged, not returned.
	assert.NoError(t, err)
	mockDocs.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

// TestJanitor_ProcessJobs_ContinuesPastFailures tests that one bad document
// does not block the rest of the sweep
func TestJanitor_ProcessJobs_ContinuesPastFailures(t *testing.T) {
	mockDocs := new(MockJanitorDocumentRepository)
	mockIndex := new(MockJanitorIndex)
	mockImages := new(MockJanitorImageRepository)

	docs := []*domain.Document{
		{ID: "doc-1", Filename: "first.pdf"},
		{ID: "doc-2", Filename: "second.pdf"},
	}

	mockDocs.On("ListStaleIngesting", mock.Anything, mock.Anything).Return(docs, nil)
	mockDocs.On("ListFailed", mock.Anything).Return([]*domain.Document{}, nil)

	mockIndex.On("DeleteByDocument", mock.Anything, "doc-1").Return(errors.New("index unavailable"))

	mockIndex.On("DeleteByDocument", mock.Anything, "doc-2").Return(nil)
	mockImages.On("DeleteByDocument", mock.Anything, "doc-2").Return(nil)
	mockDocs.On("Delete", mock.Anything, "doc-2").Return(nil)

	janitor := NewJanitor(mockDocs, mockIndex, mockImages, nil, time.Minute)
	err := janitor.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockDocs.AssertCalled(t, "Delete", mock.Anything, "doc-2")
	mockDocs.AssertNotCalled(t, "Delete", mock.Anything, "doc-1")
}

// TestJanitor_ProcessJobs_RepositoryError tests repository error handling
func TestJanitor_ProcessJobs_RepositoryError(t *testing.T) {
	mockDocs := new(MockJanitorDocumentRepository)
	mockIndex := new(MockJanitorIndex)
	mockImages := new(MockJanitorImageRepository)

	mockDocs.On("ListStaleIngesting", mock.Anything, mock.Anything).Return(nil, errors.New("database error"))

	janitor := NewJanitor(mockDocs, mockIndex, mockImages, nil, time.Minute)
	err := janitor.ProcessJobs(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list stale ingestions")
	mockDocs.AssertExpectations(t)
}
