package service

import (
	"context"
	"strings"

	"github.com/SanyamVb/Multi-modal-RAG/internal/domain"
	"github.com/SanyamVb/Multi-modal-RAG/internal/telemetry"
)

// Answer modes reported back to the caller.
const (
	AnswerModeRAG  = "rag"
	AnswerModeChat = "chat"
)

// QueryEmbedder embeds the user query for similarity search.
type QueryEmbedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Retriever runs the similarity search stage.
type Retriever interface {
	Retrieve(ctx context.Context, embedding []float32, scope []string, opts RetrieveOptions) ([]domain.RetrievedItem, error)
}

// PromptAssembler builds the model payload from retrieval output.
type PromptAssembler interface {
	Assemble(ctx context.Context, retrieved []domain.RetrievedItem, history []domain.ConversationTurn, query string) (*domain.PromptPayload, error)
}

// AnswerGenerator invokes the model and parses its structured reply.
type AnswerGenerator interface {
	Generate(ctx context.Context, payload *domain.PromptPayload) (*domain.Answer, error)
}

// AnswerRequest carries one question through the pipeline. TopK and
// MinScore override the configured retrieval defaults when positive.
type AnswerRequest struct {
	Query    string
	Scope    []string
	History  []domain.ConversationTurn
	TopK     int
	MinScore float64
}

// AnswerResponse is the pipeline's reply: the generated answer plus how it
// was produced.
type AnswerResponse struct {
	Answer    *domain.Answer `json:"answer"`
	Mode      string         `json:"mode"`
	Retrieved int            `json:"retrieved"`
}

// AnswerService runs the full question pipeline: embed, retrieve, assemble,
// generate. It is the single entry point handlers and the CLI use.
type AnswerService struct {
	embedder  QueryEmbedder
	retriever Retriever
	assembler PromptAssembler
	generator AnswerGenerator
}

// NewAnswerService creates a new AnswerService instance
func NewAnswerService(embedder QueryEmbedder, retriever Retriever, assembler PromptAssembler, generator AnswerGenerator) *AnswerService {
	return &AnswerService{
		embedder:  embedder,
		retriever: retriever,
		assembler: assembler,
		generator: generator,
	}
}

// Answer produces an answer for one question. An empty document scope skips
// embedding and retrieval entirely and falls through to plain chat.
func (s *AnswerService) Answer(ctx context.Context, req AnswerRequest) (*AnswerResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "AnswerService.Answer", telemetry.SpanAttributes{
		Operation: "answer",
	})
	defer span.End()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "query is required")
	}

	scope := NormalizeScope(req.Scope)

	var retrieved []domain.RetrievedItem
	if len(scope) > 0 {
		embedding, err := s.embedder.GenerateEmbedding(ctx, query)
		if err != nil {
			span.SetError(err)
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbeddingFailure, "failed to embed query", err)
		}

		retrieved, err = s.retriever.Retrieve(ctx, embedding, scope, RetrieveOptions{
			TopK:     req.TopK,
			MinScore: req.MinScore,
		})
		if err != nil {
			span.SetError(err)
			return nil, err
		}
	}

	payload, err := s.assembler.Assemble(ctx, retrieved, req.History, query)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	// A cancellation that lands before generation must not cost a model call.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	answer, err := s.generator.Generate(ctx, payload)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	mode := AnswerModeRAG
	if len(payload.Context) == 0 {
		mode = AnswerModeChat
	}

	return &AnswerResponse{
		Answer:    answer,
		Mode:      mode,
		Retrieved: len(retrieved),
	}, nil
}
