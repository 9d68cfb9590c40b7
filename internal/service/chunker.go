package service

import (
	"strings"
	"unicode"
)

// ChunkConfig controls how document text is split for embedding.
// Sizes are rune counts.
type ChunkConfig struct {
	MaxChars int
	MinChars int
	Overlap  int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChars: 1200,
		MinChars: 200,
		Overlap:  200,
	}
}

// ChunkCandidate is one span produced by the chunker, in document order.
type ChunkCandidate struct {
	Ordinal int
	Page    int
	Text    string
}

// Chunker splits normalized document text into overlapping spans sized for
// the embedding context. Splits prefer paragraph breaks, then sentence
// ends; a single unit longer than MaxChars is hard-split at a whitespace
// boundary. Adjacent chunks share an Overlap-sized trailing span.
type Chunker struct {
	cfg ChunkConfig
}

func NewChunker(cfg ChunkConfig) *Chunker {
	if cfg.MaxChars <= 0 {
		cfg = DefaultChunkConfig()
	}
	if cfg.Overlap >= cfg.MaxChars {
		cfg.Overlap = cfg.MaxChars / 4
	}
	return &Chunker{cfg: cfg}
}

// ChunkBlocks chunks a sequence of page-attributed text blocks. Ordinals
// increase strictly across the whole document; each chunk keeps the page
// of the block it started in.
func (c *Chunker) ChunkBlocks(blocks []TextBlock) []ChunkCandidate {
	var out []ChunkCandidate
	ordinal := 0
	for _, b := range blocks {
		for _, text := range c.split(b.Text) {
			out = append(out, ChunkCandidate{Ordinal: ordinal, Page: b.Page, Text: text})
			ordinal++
		}
	}
	return out
}

// Chunk splits a single text into candidate chunks with ordinals starting
// at zero. Empty input yields no chunks.
func (c *Chunker) Chunk(text string) []ChunkCandidate {
	parts := c.split(text)
	out := make([]ChunkCandidate, 0, len(parts))
	for i, p := range parts {
		out = append(out, ChunkCandidate{Ordinal: i, Text: p})
	}
	return out
}

func (c *Chunker) split(text string) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}
	runes := []rune(clean)
	if len(runes) <= c.cfg.MaxChars {
		return []string{clean}
	}

	chunks := make([]string, 0, 8)
	start := 0
	for start < len(runes) {
		end := start + c.cfg.MaxChars
		if end > len(runes) {
			end = len(runes)
		}

		if end < len(runes) {
			end = c.cut(runes, start, end)
		}

		if end <= start {
			break
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end >= len(runes) {
			break
		}

		nextStart := end
		if c.cfg.Overlap > 0 && end-start > c.cfg.Overlap {
			nextStart = end - c.cfg.Overlap
		}
		if nextStart <= start {
			nextStart = end
		}
		start = nextStart
	}

	return chunks
}

// cut finds the best split point in runes[start:end], scanning backwards
// from end: paragraph break first, then sentence end, then any whitespace.
// It never cuts before start+MinChars; when no boundary exists in that
// window, the chunk is hard-split at end.
func (c *Chunker) cut(runes []rune, start, end int) int {
	minCut := start + c.cfg.MinChars
	if minCut > end {
		minCut = start
	}

	for i := end; i > minCut; i-- {
		if runes[i-1] == '\n' && i >= 2 && runes[i-2] == '\n' {
			return i
		}
	}

	for i := end; i > minCut; i-- {
		if isSentenceEnd(runes[i-1]) && unicode.IsSpace(runes[i]) {
			return i
		}
	}

	for i := end; i > minCut; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}

	return end
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?':
		return true
	}
	return false
}
