package api

import "strings"

// ChatRequest is the inbound body for both the batch and the streaming endpoint.
type ChatRequest struct {
	// the prompt, with any attached document text already appended by the client
	Message string `json:"message" binding:"required"`

	// model identifiers to fan the prompt out to
	Models []string `json:"models" binding:"required"`

	// optional inline images, as data URIs
	Images []string `json:"images,omitempty" binding:"omitempty,dive,startswith=data:"`
}

// Prompt converts the request into the normalized prompt handed to providers.
func (r *ChatRequest) Prompt() *Prompt {
	return &Prompt{
		Text:   r.Message,
		Images: r.Images,
	}
}

// Prompt is what every provider receives for a single dispatch.
type Prompt struct {
	Text   string
	Images []string
}

// HasImages reports whether the prompt carries any image attachments.
func (p *Prompt) HasImages() bool {
	return p != nil && len(p.Images) > 0
}

// Preview returns at most n runes of the prompt text.
func (p *Prompt) Preview(n int) string {
	runes := []rune(strings.TrimSpace(p.Text))
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n]) + "..."
}

// AIResponse is one model's complete answer. When Error is set, Text is empty.
type AIResponse struct {
	Text      string `json:"text"`
	Model     string `json:"model"`
	Timestamp int64  `json:"timestamp"`
	Error     string `json:"error,omitempty"`
}

// ChatResponse wraps the batch results, one per requested model, in request order.
type ChatResponse struct {
	Responses []AIResponse `json:"responses"`
}

// StreamEvent is a single unit of a model's streamed answer.
// Done marks the terminal event of that model; it may carry Error.
type StreamEvent struct {
	Model string `json:"model"`
	Chunk string `json:"chunk"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

// Terminal reports whether this is the final event for its model.
func (e StreamEvent) Terminal() bool {
	return e.Done
}

type Role string

const (
	User      Role = "user"
	Assistant Role = "assistant"
	System    Role = "system"
)
