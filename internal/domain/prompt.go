package domain

// ContextBlock is one retrieved chunk placed into a prompt, addressable by
// the tag the model must cite it with.
type ContextBlock struct {
	Tag  string // c1, c2, ... in retrieval order
	Item RetrievedItem
}

// PromptImage is a candidate image offered to the model alongside the
// prompt. The model may only select among these tags; it never supplies
// image content of its own.
type PromptImage struct {
	Tag        string // img1, img2, ...
	ImageID    string
	DocumentID string
	MediaType  string
	Payload    []byte
}

// PromptPayload is the fully assembled input for one generation call.
// An empty Context means the request degrades to plain conversation.
type PromptPayload struct {
	System  string
	Context []ContextBlock
	History []ConversationTurn
	Query   string
	Images  []PromptImage
}
