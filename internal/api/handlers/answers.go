package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/SanyamVb/Multi-modal-RAG/internal/api"
	"github.com/SanyamVb/Multi-modal-RAG/internal/domain"
	"github.com/SanyamVb/Multi-modal-RAG/internal/service"
)

type AnswerService interface {
	Answer(ctx context.Context, req service.AnswerRequest) (*service.AnswerResponse, error)
}

type AnswerHandler struct {
	svc AnswerService
}

func NewAnswerHandler(svc AnswerService) *AnswerHandler {
	return &AnswerHandler{svc: svc}
}

type TurnRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type AskRequest struct {
	Question string        `json:"question"`
	Scope    []string      `json:"scope"`
	History  []TurnRequest `json:"history"`
	TopK     int           `json:"top_k"`
	MinScore float64       `json:"min_score"`
}

type CitationResponse struct {
	Marker     string  `json:"marker"`
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Ordinal    int     `json:"ordinal"`
	Page       int     `json:"page,omitempty"`
	Score      float64 `json:"score"`
}

type AnswerImageResponse struct {
	ImageID    string `json:"image_id"`
	DocumentID string `json:"document_id"`
	MediaType  string `json:"media_type"`
	Data       []byte `json:"data"`
}

type AskResponse struct {
	Answer    string                `json:"answer"`
	Mode      string                `json:"mode"`
	Retrieved int                   `json:"retrieved"`
	Citations []CitationResponse    `json:"citations"`
	Images    []AnswerImageResponse `json:"images"`
}

func answerToResponse(resp *service.AnswerResponse) *AskResponse {
	out := &AskResponse{
		Mode:      resp.Mode,
		Retrieved: resp.Retrieved,
		Citations: []CitationResponse{},
		Images:    []AnswerImageResponse{},
	}
	if resp.Answer == nil {
		return out
	}

	out.Answer = resp.Answer.Text
	for _, c := range resp.Answer.Citations {
		out.Citations = append(out.Citations, CitationResponse{
			Marker:     c.Marker,
			ChunkID:    c.ChunkID,
			DocumentID: c.DocumentID,
			Ordinal:    c.Ordinal,
			Page:       c.Page,
			Score:      c.NormalizedScore,
		})
	}
	for _, img := range resp.Answer.Images {
		out.Images = append(out.Images, AnswerImageResponse{
			ImageID:    img.ImageID,
			DocumentID: img.DocumentID,
			MediaType:  img.MediaType,
			Data:       img.Payload,
		})
	}
	return out
}

// Ask answers a question over the caller's document scope.
func (h *AnswerHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Question) == "" {
		api.Error(w, http.StatusBadRequest, "question is required")
		return
	}

	history := make([]domain.ConversationTurn, 0, len(req.History))
	for _, turn := range req.History {
		role := domain.TurnRole(turn.Role)
		if role != domain.TurnRoleUser && role != domain.TurnRoleAssistant {
			api.Error(w, http.StatusBadRequest, "history roles must be user or assistant")
			return
		}
		history = append(history, domain.ConversationTurn{Role: role, Content: turn.Content})
	}

	resp, err := h.svc.Answer(r.Context(), service.AnswerRequest{
		Query:    req.Question,
		Scope:    req.Scope,
		History:  history,
		TopK:     req.TopK,
		MinScore: req.MinScore,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, answerToResponse(resp))
}
