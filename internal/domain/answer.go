package domain

// Citation ties a claim in the generated answer back to a source chunk,
// carrying the normalized relevance score so callers can render provenance.
type Citation struct {
	Marker          string // the context tag the model cited, e.g. "c1"
	ChunkID         string
	DocumentID      string
	Ordinal         int
	Page            int
	NormalizedScore float64
}

// AnswerImage is an image the model selected from the supplied candidates.
type AnswerImage struct {
	ImageID    string
	DocumentID string
	MediaType  string
	Payload    []byte
}

// Answer is the structured result of one generation call.
type Answer struct {
	Text      string
	Citations []Citation
	Images    []AnswerImage
}
