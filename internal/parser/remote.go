package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/SanyamVb/Multi-modal-RAG/internal/service"
)

// RemoteParser sends files to a parsing sidecar over HTTP. The sidecar
// handles layouts the in-process parser cannot and is the only parse path
// that yields embedded images.
type RemoteParser struct {
	baseURL    string
	httpClient *http.Client
}

func NewRemoteParser(baseURL string) *RemoteParser {
	return &RemoteParser{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type parseRequest struct {
	Filename string `json:"filename"`
	Data     []byte `json:"data"`
}

type parseResponse struct {
	Blocks []parsedBlock `json:"blocks"`
	Images []parsedImage `json:"images"`
}

type parsedBlock struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

type parsedImage struct {
	Page      int    `json:"page"`
	Position  int    `json:"position"`
	MediaType string `json:"media_type"`
	Data      []byte `json:"data"`
}

func (p *RemoteParser) Parse(ctx context.Context, filename string, data []byte) (*service.ParsedDocument, error) {
	payload, err := json.Marshal(parseRequest{Filename: filename, Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal parse request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/parse", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("parser request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("parser returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed parseResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	out := &service.ParsedDocument{}
	for _, b := range parsed.Blocks {
		out.Blocks = append(out.Blocks, service.TextBlock{Page: b.Page, Text: b.Text})
	}
	for _, img := range parsed.Images {
		out.Images = append(out.Images, service.ImageBlock{
			Page:      img.Page,
			Position:  img.Position,
			MediaType: img.MediaType,
			Data:      img.Data,
		})
	}
	return out, nil
}
