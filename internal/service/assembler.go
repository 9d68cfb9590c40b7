package service

import (
	"context"
	"fmt"

	"github.com/SanyamVb/Multi-modal-RAG/internal/domain"
	"github.com/SanyamVb/Multi-modal-RAG/internal/telemetry"
)

const (
	// DefaultHistoryWindow bounds how many prior turns ride along with a
	// query. The bound is a turn count, oldest turns drop first.
	DefaultHistoryWindow = 10
	// DefaultMaxPromptImages caps the candidate images attached to one
	// prompt.
	DefaultMaxPromptImages = 4
	// DefaultPageProximity is how many pages an image may sit from a
	// chunk and still count as associated with it.
	DefaultPageProximity = 1
)

const ragSystemPrompt = `You are a document assistant. Answer the question using only the provided context passages. ` +
	`Each passage is labeled with a tag like [c1]. When a passage supports part of your answer, cite its tag. ` +
	`If the context does not contain the answer, say so rather than guessing.`

const chatSystemPrompt = `You are a helpful assistant. No documents are selected, so answer from general knowledge ` +
	`and the conversation so far.`

// AssemblerImageRepository is the image lookup the assembler needs to
// resolve candidates for retrieved chunks.
type AssemblerImageRepository interface {
	ListByDocument(ctx context.Context, documentID string) ([]*domain.Image, error)
}

// AssemblerConfig tunes prompt assembly.
type AssemblerConfig struct {
	HistoryWindow int
	MaxImages     int
	PageProximity int
}

// DefaultAssemblerConfig provides sane defaults for prompt assembly.
func DefaultAssemblerConfig() AssemblerConfig {
	return AssemblerConfig{
		HistoryWindow: DefaultHistoryWindow,
		MaxImages:     DefaultMaxPromptImages,
		PageProximity: DefaultPageProximity,
	}
}

// AssemblerService merges retrieved chunks, conversation history, and the
// new query into one bounded prompt payload, and resolves which stored
// images are positionally associated with the retrieved chunks.
type AssemblerService struct {
	images AssemblerImageRepository
	cfg    AssemblerConfig
}

// NewAssemblerService creates a new AssemblerService instance
func NewAssemblerService(images AssemblerImageRepository, cfg AssemblerConfig) *AssemblerService {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultHistoryWindow
	}
	if cfg.MaxImages <= 0 {
		cfg.MaxImages = DefaultMaxPromptImages
	}
	if cfg.PageProximity < 0 {
		cfg.PageProximity = DefaultPageProximity
	}
	return &AssemblerService{images: images, cfg: cfg}
}

// Assemble builds the prompt payload for one generation call. With no
// retrieved chunks the payload carries no document context at all and the
// request becomes a plain conversational turn.
func (s *AssemblerService) Assemble(ctx context.Context, retrieved []domain.RetrievedItem, history []domain.ConversationTurn, query string) (*domain.PromptPayload, error) {
	ctx, span := telemetry.StartSpan(ctx, "AssemblerService.Assemble", telemetry.SpanAttributes{
		Operation: "assemble",
	})
	defer span.End()

	payload := &domain.PromptPayload{
		Query:   query,
		History: windowHistory(history, s.cfg.HistoryWindow),
	}

	if len(retrieved) == 0 {
		payload.System = chatSystemPrompt
		return payload, nil
	}

	payload.System = ragSystemPrompt
	payload.Context = make([]domain.ContextBlock, 0, len(retrieved))
	for i, item := range retrieved {
		payload.Context = append(payload.Context, domain.ContextBlock{
			Tag:  fmt.Sprintf("c%d", i+1),
			Item: item,
		})
	}

	images, err := s.resolveImages(ctx, retrieved)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	payload.Images = images

	return payload, nil
}

// windowHistory keeps the most recent turns up to the window bound.
func windowHistory(history []domain.ConversationTurn, window int) []domain.ConversationTurn {
	if len(history) == 0 {
		return nil
	}
	if window > 0 && len(history) > window {
		history = history[len(history)-window:]
	}
	out := make([]domain.ConversationTurn, len(history))
	copy(out, history)
	return out
}

// resolveImages walks the retrieved chunks in ranked order and collects
// each document's images that sit within the page-proximity policy of a
// chunk. Ranked-order traversal means the cap prefers images tied to the
// highest-scored chunks. A chunk or image without page attribution is
// never associated.
func (s *AssemblerService) resolveImages(ctx context.Context, retrieved []domain.RetrievedItem) ([]domain.PromptImage, error) {
	byDocument := make(map[string][]*domain.Image)
	seen := make(map[string]struct{})
	var out []domain.PromptImage

	for _, item := range retrieved {
		if len(out) >= s.cfg.MaxImages {
			break
		}
		if item.Page <= 0 {
			continue
		}

		images, ok := byDocument[item.DocumentID]
		if !ok {
			var err error
			images, err = s.images.ListByDocument(ctx, item.DocumentID)
			if err != nil {
				return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStoreUnavailable, "image lookup failed", err)
			}
			byDocument[item.DocumentID] = images
		}

		for _, img := range images {
			if len(out) >= s.cfg.MaxImages {
				break
			}
			if img.Page <= 0 {
				continue
			}
			if abs(img.Page-item.Page) > s.cfg.PageProximity {
				continue
			}
			if _, dup := seen[img.ID]; dup {
				continue
			}
			seen[img.ID] = struct{}{}
			out = append(out, domain.PromptImage{
				Tag:        fmt.Sprintf("img%d", len(out)+1),
				ImageID:    img.ID,
				DocumentID: img.DocumentID,
				MediaType:  img.MediaType,
				Payload:    img.Payload,
			})
		}
	}

	return out, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
