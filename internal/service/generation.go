package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/SanyamVb/Multi-modal-RAG/internal/domain"
	"github.com/SanyamVb/Multi-modal-RAG/internal/telemetry"
)

// ChatImage is one image attachment sent to the generative model.
type ChatImage struct {
	MediaType string
	Data      []byte
}

// ChatRequest is the transport-neutral input for one model completion.
type ChatRequest struct {
	System    string
	History   []domain.ConversationTurn
	User      string
	Images    []ChatImage
	ForceJSON bool
}

// ChatClient is the generative-model collaborator.
type ChatClient interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

const outputContract = `Respond with a single JSON object of the form ` +
	`{"answer": "...", "citations": ["c1"], "images": ["img1"]}. ` +
	`"answer" is your reply text. "citations" lists the tags of the context passages your answer relies on, ` +
	`in order of use. "images" lists the tags of candidate images that should accompany the answer. ` +
	`Use empty arrays when nothing applies. Output nothing outside the JSON object.`

const reformatInstruction = `Your previous reply did not match the required structure. ` +
	`Return only a JSON object of the form {"answer": "...", "citations": [], "images": []} with the same content.`

// modelReply is the schema the model must return. Answer is a pointer so a
// missing field is distinguishable from an empty one.
type modelReply struct {
	Answer    *string  `json:"answer"`
	Citations []string `json:"citations"`
	Images    []string `json:"images"`
}

// GenerationService invokes the generative model with an assembled payload
// and parses its structured reply into an answer, citations, and selected
// images. A malformed reply earns exactly one corrective re-prompt before
// the failure surfaces.
type GenerationService struct {
	chat ChatClient
}

// NewGenerationService creates a new GenerationService instance
func NewGenerationService(chat ChatClient) *GenerationService {
	return &GenerationService{chat: chat}
}

// Generate runs one completion. Citations and image selections are
// cross-referenced against the payload's tags: the model only ever picks
// among supplied candidates, and unknown tags are dropped.
func (s *GenerationService) Generate(ctx context.Context, payload *domain.PromptPayload) (*domain.Answer, error) {
	ctx, span := telemetry.StartSpan(ctx, "GenerationService.Generate", telemetry.SpanAttributes{
		Operation: "generate",
	})
	defer span.End()

	req := ChatRequest{
		System:    payload.System + "\n\n" + outputContract,
		History:   payload.History,
		User:      buildUserMessage(payload),
		Images:    chatImages(payload.Images),
		ForceJSON: true,
	}

	raw, err := s.chat.Complete(ctx, req)
	if err != nil {
		return nil, completionError(ctx, err)
	}

	reply, parseErr := parseModelReply(raw)
	if parseErr != nil {
		// One corrective attempt: show the model its own reply and ask
		// for the structure again. Never more than one.
		retryReq := req
		retryReq.History = append(append([]domain.ConversationTurn{}, req.History...),
			domain.ConversationTurn{Role: domain.TurnRoleAssistant, Content: raw},
		)
		retryReq.User = req.User + "\n\n" + reformatInstruction

		raw, err = s.chat.Complete(ctx, retryReq)
		if err != nil {
			return nil, completionError(ctx, err)
		}
		reply, parseErr = parseModelReply(raw)
		if parseErr != nil {
			span.SetError(parseErr)
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeMalformedModelOutput, "reply unparsable after reformat attempt", parseErr)
		}
	}

	return s.resolve(payload, reply), nil
}

// resolve maps the model's tag selections back onto the payload's context
// blocks and image candidates.
func (s *GenerationService) resolve(payload *domain.PromptPayload, reply *modelReply) *domain.Answer {
	blocks := make(map[string]domain.ContextBlock, len(payload.Context))
	for _, b := range payload.Context {
		blocks[b.Tag] = b
	}
	candidates := make(map[string]domain.PromptImage, len(payload.Images))
	for _, img := range payload.Images {
		candidates[img.Tag] = img
	}

	answer := &domain.Answer{Text: strings.TrimSpace(*reply.Answer)}

	seenCitations := make(map[string]struct{}, len(reply.Citations))
	for _, marker := range reply.Citations {
		b, ok := blocks[marker]
		if !ok {
			continue
		}
		if _, dup := seenCitations[marker]; dup {
			continue
		}
		seenCitations[marker] = struct{}{}
		answer.Citations = append(answer.Citations, domain.Citation{
			Marker:          marker,
			ChunkID:         b.Item.ChunkID,
			DocumentID:      b.Item.DocumentID,
			Ordinal:         b.Item.Ordinal,
			Page:            b.Item.Page,
			NormalizedScore: b.Item.NormalizedScore,
		})
	}

	seenImages := make(map[string]struct{}, len(reply.Images))
	for _, tag := range reply.Images {
		img, ok := candidates[tag]
		if !ok {
			continue
		}
		if _, dup := seenImages[tag]; dup {
			continue
		}
		seenImages[tag] = struct{}{}
		answer.Images = append(answer.Images, domain.AnswerImage{
			ImageID:    img.ImageID,
			DocumentID: img.DocumentID,
			MediaType:  img.MediaType,
			Payload:    img.Payload,
		})
	}

	return answer
}

// buildUserMessage lays out context passages, image candidates, and the
// query as one user message. Without context it is just the query.
func buildUserMessage(payload *domain.PromptPayload) string {
	if len(payload.Context) == 0 {
		return payload.Query
	}

	var sb strings.Builder
	sb.WriteString("Context passages:\n")
	for _, b := range payload.Context {
		if b.Item.Page > 0 {
			fmt.Fprintf(&sb, "\n[%s] (page %d)\n%s\n", b.Tag, b.Item.Page, b.Item.Text)
		} else {
			fmt.Fprintf(&sb, "\n[%s]\n%s\n", b.Tag, b.Item.Text)
		}
	}

	if len(payload.Images) > 0 {
		sb.WriteString("\nCandidate images (attached in this order):\n")
		for _, img := range payload.Images {
			fmt.Fprintf(&sb, "[%s]\n", img.Tag)
		}
	}

	fmt.Fprintf(&sb, "\nQuestion: %s", payload.Query)
	return sb.String()
}

func chatImages(images []domain.PromptImage) []ChatImage {
	if len(images) == 0 {
		return nil
	}
	out := make([]ChatImage, 0, len(images))
	for _, img := range images {
		out = append(out, ChatImage{MediaType: img.MediaType, Data: img.Payload})
	}
	return out
}

// parseModelReply validates the model's raw output against the reply
// schema. Any violation is an error; fields are never guessed.
func parseModelReply(raw string) (*modelReply, error) {
	var reply modelReply
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &reply); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if reply.Answer == nil {
		return nil, fmt.Errorf("missing required field %q", "answer")
	}
	if strings.TrimSpace(*reply.Answer) == "" {
		return nil, fmt.Errorf("empty %q field", "answer")
	}
	return &reply, nil
}

// completionError keeps caller cancellation distinct from model outage.
func completionError(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return domain.NewDomainErrorWithCause(domain.ErrCodeModelUnavailable, "completion request failed", err)
}
