package parser

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/SanyamVb/Multi-modal-RAG/internal/service"
)

// LocalParser extracts document content in-process. PDFs yield one text
// block per page; plain text and markdown pass through as a single block.
// It never yields images; image extraction needs the remote parser.
type LocalParser struct{}

func NewLocalParser() *LocalParser {
	return &LocalParser{}
}

func (p *LocalParser) Parse(ctx context.Context, filename string, data []byte) (*service.ParsedDocument, error) {
	if isPDF(filename, data) {
		return p.parsePDF(data)
	}
	return p.parseText(data)
}

func (p *LocalParser) parsePDF(data []byte) (*service.ParsedDocument, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	parsed := &service.ParsedDocument{}
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// Pages with broken content streams are skipped, not fatal.
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		parsed.Blocks = append(parsed.Blocks, service.TextBlock{Page: i, Text: text})
	}

	return parsed, nil
}

func (p *LocalParser) parseText(data []byte) (*service.ParsedDocument, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("unsupported file type: not a PDF and not valid UTF-8 text")
	}

	text := strings.TrimSpace(string(data))
	parsed := &service.ParsedDocument{}
	if text != "" {
		parsed.Blocks = append(parsed.Blocks, service.TextBlock{Text: text})
	}
	return parsed, nil
}

func isPDF(filename string, data []byte) bool {
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return true
	}
	return bytes.HasPrefix(data, []byte("%PDF-"))
}
