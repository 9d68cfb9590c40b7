package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/SanyamVb/Multi-modal-RAG/internal/domain"
)

// MockChatClient is a mock implementation of ChatClient
type MockChatClient struct {
	mock.Mock
}

func (m *MockChatClient) Complete(ctx context.Context, req ChatRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func generationPayload() *domain.PromptPayload {
	return &domain.PromptPayload{
		System: ragSystemPrompt,
		Query:  "what is the rate?",
		Context: []domain.ContextBlock{
			{Tag: "c1", Item: domain.RetrievedItem{ChunkID: "chunk-1", DocumentID: "doc-1", Ordinal: 2, Page: 4, Text: "The rate is five percent.", NormalizedScore: 0.91}},
			{Tag: "c2", Item: domain.RetrievedItem{ChunkID: "chunk-2", DocumentID: "doc-1", Ordinal: 5, Page: 6, Text: "Rates are reviewed yearly.", NormalizedScore: 0.55}},
		},
		Images: []domain.PromptImage{
			{Tag: "img1", ImageID: "image-1", DocumentID: "doc-1", MediaType: "image/png", Payload: []byte{1, 2}},
		},
	}
}

func TestGenerationService_Generate(t *testing.T) {
	ctx := context.Background()

	t.Run("parses a well-formed reply and resolves tags", func(t *testing.T) {
		mockChat := new(MockChatClient)
		service := NewGenerationService(mockChat)

		mockChat.On("Complete", mock.Anything, mock.MatchedBy(func(req ChatRequest) bool {
			return req.ForceJSON &&
				strings.Contains(req.System, "JSON object") &&
				strings.Contains(req.User, "[c1]") &&
				len(req.Images) == 1
		})).Return(`{"answer": "The rate is 5% [c1].", "citations": ["c1"], "images": ["img1"]}`, nil)

		answer, err := service.Generate(ctx, generationPayload())

		require.NoError(t, err)
		assert.Equal(t, "The rate is 5% [c1].", answer.Text)

		require.Len(t, answer.Citations, 1)
		assert.Equal(t, "c1", answer.Citations[0].Marker)
		assert.Equal(t, "chunk-1", answer.Citations[0].ChunkID)
		assert.Equal(t, "doc-1", answer.Citations[0].DocumentID)
		assert.Equal(t, 4, answer.Citations[0].Page)
		assert.InDelta(t, 0.91, answer.Citations[0].NormalizedScore, 1e-9)

		require.Len(t, answer.Images, 1)
		assert.Equal(t, "image-1", answer.Images[0].ImageID)
		assert.Equal(t, []byte{1, 2}, answer.Images[0].Payload)
		mockChat.AssertExpectations(t)
	})

	t.Run("drops unknown citation and image tags", func(t *testing.T) {
		mockChat := new(MockChatClient)
		service := NewGenerationService(mockChat)

		mockChat.On("Complete", mock.Anything, mock.Anything).
			Return(`{"answer": "No idea.", "citations": ["c9"], "images": ["img9"]}`, nil)

		answer, err := service.Generate(ctx, generationPayload())

		require.NoError(t, err)
		assert.Equal(t, "No idea.", answer.Text)
		assert.Empty(t, answer.Citations)
		assert.Empty(t, answer.Images)
	})

	t.Run("deduplicates repeated markers", func(t *testing.T) {
		mockChat := new(MockChatClient)
		service := NewGenerationService(mockChat)

		mockChat.On("Complete", mock.Anything, mock.Anything).
			Return(`{"answer": "Answer.", "citations": ["c1", "c1", "c2"], "images": []}`, nil)

		answer, err := service.Generate(ctx, generationPayload())

		require.NoError(t, err)
		require.Len(t, answer.Citations, 2)
		assert.Equal(t, "c1", answer.Citations[0].Marker)
		assert.Equal(t, "c2", answer.Citations[1].Marker)
	})

	t.Run("re-prompts exactly once on malformed output", func(t *testing.T) {
		mockChat := new(MockChatClient)
		service := NewGenerationService(mockChat)

		firstCall := mock.MatchedBy(func(req ChatRequest) bool {
			return !strings.Contains(req.User, "previous reply")
		})
		retryCall := mock.MatchedBy(func(req ChatRequest) bool {
			if !strings.Contains(req.User, "previous reply") {
				return false
			}
			// The retry shows the model its own malformed output.
			last := req.History[len(req.History)-1]
			return last.Role == domain.TurnRoleAssistant && last.Content == "Sure! The rate is 5%."
		})

		mockChat.On("Complete", mock.Anything, firstCall).Return("Sure! The rate is 5%.", nil).Once()
		mockChat.On("Complete", mock.Anything, retryCall).Return(`{"answer": "The rate is 5%.", "citations": ["c1"], "images": []}`, nil).Once()

		answer, err := service.Generate(ctx, generationPayload())

		require.NoError(t, err)
		assert.Equal(t, "The rate is 5%.", answer.Text)
		mockChat.AssertExpectations(t)
	})

	t.Run("fails after a second malformed reply", func(t *testing.T) {
		mockChat := new(MockChatClient)
		service := NewGenerationService(mockChat)

		mockChat.On("Complete", mock.Anything, mock.Anything).Return(`{"citations": []}`, nil)

		answer, err := service.Generate(ctx, generationPayload())

		require.Error(t, err)
		assert.Nil(t, answer)
		assert.True(t, errors.Is(err, domain.ErrMalformedModelOutput))
		mockChat.AssertNumberOfCalls(t, "Complete", 2)
	})

	t.Run("rejects an empty answer field", func(t *testing.T) {
		mockChat := new(MockChatClient)
		service := NewGenerationService(mockChat)

		mockChat.On("Complete", mock.Anything, mock.Anything).Return(`{"answer": "   ", "citations": [], "images": []}`, nil)

		_, err := service.Generate(ctx, generationPayload())

		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrMalformedModelOutput))
	})

	t.Run("maps transport failures to model unavailable", func(t *testing.T) {
		mockChat := new(MockChatClient)
		service := NewGenerationService(mockChat)

		mockChat.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("dial tcp: connection refused"))

		answer, err := service.Generate(ctx, generationPayload())

		require.Error(t, err)
		assert.Nil(t, answer)
		assert.True(t, errors.Is(err, domain.ErrModelUnavailable))
		mockChat.AssertNumberOfCalls(t, "Complete", 1)
	})

	t.Run("returns the caller's cancellation untouched", func(t *testing.T) {
		mockChat := new(MockChatClient)
		service := NewGenerationService(mockChat)

		cancelCtx, cancel := context.WithCancel(ctx)
		cancel()

		mockChat.On("Complete", mock.Anything, mock.Anything).Return("", context.Canceled)

		_, err := service.Generate(cancelCtx, generationPayload())

		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
		assert.False(t, errors.Is(err, domain.ErrModelUnavailable))
	})
}
