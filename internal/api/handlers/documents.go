package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/SanyamVb/Multi-modal-RAG/internal/api"
	"github.com/SanyamVb/Multi-modal-RAG/internal/domain"
	"github.com/SanyamVb/Multi-modal-RAG/internal/service"
)

// maxUploadMemory bounds how much of a multipart upload stays in memory
// before spilling to disk.
const maxUploadMemory = 32 << 20

type IngestService interface {
	IngestBatch(ctx context.Context, files []service.IngestFile) []service.BatchItemResult
}

type DocumentService interface {
	List(ctx context.Context) ([]*domain.Document, error)
	Get(ctx context.Context, id string) (*domain.Document, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int64, error)
	DownloadURL(ctx context.Context, id string) (string, error)
}

type DocumentHandler struct {
	ingest IngestService
	docs   DocumentService
}

func NewDocumentHandler(ingest IngestService, docs DocumentService) *DocumentHandler {
	return &DocumentHandler{ingest: ingest, docs: docs}
}

type DocumentResponse struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	Status      string `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	SizeBytes   int64  `json:"size_bytes"`
	ChunkCount  int    `json:"chunk_count"`
	ImageCount  int    `json:"image_count"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type BatchItemResponse struct {
	Filename string                `json:"filename"`
	Result   *service.IngestResult `json:"result,omitempty"`
	Error    string                `json:"error,omitempty"`
	Code     string                `json:"code,omitempty"`
}

type DeleteAllResponse struct {
	Deleted int64 `json:"deleted"`
}

type DownloadResponse struct {
	URL string `json:"url"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:          d.ID,
		Filename:    d.Filename,
		Status:      string(d.Status),
		ContentType: d.ContentType,
		SizeBytes:   d.SizeBytes,
		ChunkCount:  d.ChunkCount,
		ImageCount:  d.ImageCount,
		CreatedAt:   d.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:   d.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func batchItemToResponse(item service.BatchItemResult) BatchItemResponse {
	resp := BatchItemResponse{
		Filename: item.Filename,
		Result:   item.Result,
	}
	if item.Err != nil {
		resp.Error = item.Err.Error()
		var domainErr *domain.DomainError
		if errors.As(item.Err, &domainErr) {
			resp.Code = domainErr.Code
		}
	}
	return resp
}

// Upload ingests one or more uploaded files. A single file answers with its
// ingestion result or its error; a batch always answers 200 with one outcome
// per file, since files fail independently.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	var files []service.IngestFile
	for _, field := range []string{"files", "file"} {
		for _, header := range r.MultipartForm.File[field] {
			f, err := header.Open()
			if err != nil {
				api.Error(w, http.StatusBadRequest, "failed to read uploaded file")
				return
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				api.Error(w, http.StatusBadRequest, "failed to read uploaded file")
				return
			}
			files = append(files, service.IngestFile{
				// Base strips any client path segments from the name.
				Filename:    filepath.Base(header.Filename),
				ContentType: header.Header.Get("Content-Type"),
				Data:        data,
			})
		}
	}

	if len(files) == 0 {
		api.Error(w, http.StatusBadRequest, "no files provided")
		return
	}

	results := h.ingest.IngestBatch(r.Context(), files)

	if len(results) == 1 {
		if results[0].Err != nil {
			api.HandleError(w, results[0].Err)
			return
		}
		api.Success(w, http.StatusCreated, results[0].Result)
		return
	}

	items := make([]BatchItemResponse, 0, len(results))
	for _, item := range results {
		items = append(items, batchItemToResponse(item))
	}
	api.Success(w, http.StatusOK, items)
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.docs.List(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*DocumentResponse, 0, len(docs))
	for _, d := range docs {
		responses = append(responses, documentToResponse(d))
	}
	api.Success(w, http.StatusOK, responses)
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, err := h.docs.Get(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.docs.Delete(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}

func (h *DocumentHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.docs.DeleteAll(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, DeleteAllResponse{Deleted: deleted})
}

func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	url, err := h.docs.DownloadURL(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, DownloadResponse{URL: url})
}
