package outbound

import "context"

// InlineImage is an image sent alongside a prompt.
type InlineImage struct {
	MimeType string
	Data     []byte
}

// GenerateRequest is a single-turn request to a generative model.
type GenerateRequest struct {
	Model       string
	Prompt      string
	Image       *InlineImage
	Temperature float64
	MaxTokens   int
	// JSON asks the provider for a JSON-only reply when it supports that.
	JSON bool
}

// GenerativeModel is the external text and vision model endpoint.
type GenerativeModel interface {
	GenerateContent(ctx context.Context, req GenerateRequest) (string, error)
	Provider() string
}
