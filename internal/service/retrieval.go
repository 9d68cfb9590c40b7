package service

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/SanyamVb/Multi-modal-RAG/internal/domain"
	"github.com/SanyamVb/Multi-modal-RAG/internal/telemetry"
)

const (
	// DefaultTopK bounds how many nearest chunks are fetched per query.
	DefaultTopK = 8
	// DefaultMinScore is the relevance floor: candidates scoring below it
	// are discarded entirely, never merely de-prioritized.
	DefaultMinScore = 0.15
	// dedupSimilarity is the token-set similarity above which two chunk
	// texts count as near-identical; the higher-scored one survives.
	dedupSimilarity = 0.9
)

// VectorIndex is the nearest-neighbor store the retrieval engine queries.
// Search pushes the document scope and the relevance floor into the store
// rather than post-filtering.
type VectorIndex interface {
	UpsertBatch(ctx context.Context, chunks []domain.Chunk) error
	Search(ctx context.Context, embedding []float32, scope []string, topK int, minScore float64) ([]domain.RetrievedItem, error)
	DeleteByDocument(ctx context.Context, documentID string) error
	DeleteAll(ctx context.Context) error
}

// RetrieveOptions override the configured defaults for one query.
// Zero values fall back to the service defaults.
type RetrieveOptions struct {
	TopK     int
	MinScore float64
}

// RetrievalService turns a query embedding and a document scope into a
// floor-filtered, deduplicated, normalized, deterministically ordered
// result set.
type RetrievalService struct {
	index    VectorIndex
	topK     int
	minScore float64
}

// NewRetrievalService creates a new RetrievalService instance
func NewRetrievalService(index VectorIndex, topK int, minScore float64) *RetrievalService {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if minScore <= 0 {
		minScore = DefaultMinScore
	}
	return &RetrievalService{
		index:    index,
		topK:     topK,
		minScore: minScore,
	}
}

// Retrieve returns the scored chunks for one query. An empty scope returns
// an empty result immediately without touching the store: the caller is
// asking for conversation without document context, not for a search over
// nothing.
func (s *RetrievalService) Retrieve(ctx context.Context, embedding []float32, scope []string, opts RetrieveOptions) ([]domain.RetrievedItem, error) {
	if len(scope) == 0 {
		return nil, nil
	}

	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.Retrieve", telemetry.SpanAttributes{
		Operation: "retrieve",
	})
	defer span.End()

	topK := opts.TopK
	if topK <= 0 {
		topK = s.topK
	}
	minScore := opts.MinScore
	if minScore <= 0 {
		minScore = s.minScore
	}

	items, err := s.index.Search(ctx, embedding, scope, topK, minScore)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStoreUnavailable, "similarity search failed", err)
	}

	items = applyFloor(items, minScore)
	items = dedupeNearIdentical(items)
	normalizeScores(items, minScore)
	orderItems(items)

	return items, nil
}

// MinScore returns the configured relevance floor.
func (s *RetrievalService) MinScore() float64 {
	return s.minScore
}

// applyFloor re-asserts the relevance floor on the store's results. The
// query already pushes it down; an index that ignores the hint must not
// leak sub-floor chunks into the prompt.
func applyFloor(items []domain.RetrievedItem, minScore float64) []domain.RetrievedItem {
	kept := items[:0]
	for _, item := range items {
		if item.RawScore >= minScore {
			kept = append(kept, item)
		}
	}
	return kept
}

// dedupeNearIdentical collapses chunks whose texts overlap beyond
// dedupSimilarity, which happens when overlapping chunk windows of the
// same passage all match a query. The higher-scored instance survives.
func dedupeNearIdentical(items []domain.RetrievedItem) []domain.RetrievedItem {
	if len(items) < 2 {
		return items
	}

	sorted := make([]domain.RetrievedItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].RawScore != sorted[j].RawScore {
			return sorted[i].RawScore > sorted[j].RawScore
		}
		return sorted[i].Ordinal < sorted[j].Ordinal
	})

	kept := make([]domain.RetrievedItem, 0, len(sorted))
	keptSets := make([]map[string]struct{}, 0, len(sorted))
	for _, item := range sorted {
		set := tokenSet(item.Text)
		duplicate := false
		for _, other := range keptSets {
			if ochiai(set, other) > dedupSimilarity {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, item)
			keptSets = append(keptSets, set)
		}
	}
	return kept
}

// normalizeScores rescales raw similarities into [0,1] with a monotonic
// transform anchored at the relevance floor: a raw score at the floor maps
// to 0 and a perfect match maps to 1. Relative ordering is preserved.
func normalizeScores(items []domain.RetrievedItem, minScore float64) {
	span := 1.0 - minScore
	if span <= 0 {
		span = 1.0
	}
	for i := range items {
		n := (items[i].RawScore - minScore) / span
		items[i].NormalizedScore = math.Min(1.0, math.Max(0.0, n))
	}
}

// orderItems sorts by normalized score descending; ties break by chunk
// ordinal ascending, then chunk id, so result ordering is reproducible.
func orderItems(items []domain.RetrievedItem) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].NormalizedScore != items[j].NormalizedScore {
			return items[i].NormalizedScore > items[j].NormalizedScore
		}
		if items[i].Ordinal != items[j].Ordinal {
			return items[i].Ordinal < items[j].Ordinal
		}
		return items[i].ChunkID < items[j].ChunkID
	})
}

var wordRe = regexp.MustCompile(`[\p{L}\p{N}]+`)

func tokenSet(s string) map[string]struct{} {
	tokens := wordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

// ochiai computes the Ochiai coefficient |A∩B| / sqrt(|A|*|B|) between two
// token sets.
func ochiai(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	inter := 0
	for t := range small {
		if _, ok := large[t]; ok {
			inter++
		}
	}
	return float64(inter) / math.Sqrt(float64(len(a))*float64(len(b)))
}

// NormalizeScope drops blanks and duplicates from a caller-supplied scope
// while preserving order. An empty result means chat mode.
func NormalizeScope(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
