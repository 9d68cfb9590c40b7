package domain

// RetrievedItem is a per-query result produced by the retrieval engine.
// It is never persisted.
type RetrievedItem struct {
	ChunkID         string
	DocumentID      string
	Ordinal         int
	Page            int
	Text            string
	RawScore        float64 // cosine similarity as reported by the vector store
	NormalizedScore float64 // RawScore rescaled to [0,1] relative to the relevance floor
}
