package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/nao1215/siteaudit/internal/model"
)

// findingSchema constrains structured answers to {benefits: [], drawbacks: []}.
var findingSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"benefits":  {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"drawbacks": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
	},
	Required: []string{"benefits", "drawbacks"},
}

// Gemini is a Service backed by the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// GeminiOption configures a Gemini client.
type GeminiOption func(*genai.ClientConfig)

// WithGeminiBaseURL points the client at a different endpoint.
func WithGeminiBaseURL(baseURL string) GeminiOption {
	return func(c *genai.ClientConfig) {
		c.HTTPOptions.BaseURL = baseURL
	}
}

// NewGemini creates a Gemini client for modelName.
func NewGemini(ctx context.Context, apiKey, modelName string, httpClient *http.Client, opts ...GeminiOption) (*Gemini, error) {
	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	for _, opt := range opts {
		opt(cc)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Gemini{client: client, model: modelName}, nil
}

// Complete implements Service.
func (g *Gemini) Complete(ctx context.Context, system, content string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
	}
	return g.generate(ctx, []*genai.Part{{Text: content}}, cfg)
}

// CompleteStructured implements Service.
func (g *Gemini) CompleteStructured(ctx context.Context, prompt string) (model.Finding, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   findingSchema,
	}
	text, err := g.generate(ctx, []*genai.Part{{Text: prompt}}, cfg)
	if err != nil {
		return model.Finding{}, err
	}
	return parseFinding(text)
}

// Caption implements Service.
func (g *Gemini) Caption(ctx context.Context, image []byte, mimeType, prompt string) (string, error) {
	parts := []*genai.Part{
		{InlineData: &genai.Blob{Data: image, MIMEType: mimeType}},
		{Text: prompt},
	}
	return g.generate(ctx, parts, nil)
}

func (g *Gemini) generate(ctx context.Context, parts []*genai.Part, cfg *genai.GenerateContentConfig) (string, error) {
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("%w: gemini: %w", ErrModelCall, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: gemini", ErrEmptyResponse)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: gemini", ErrEmptyResponse)
	}
	return sb.String(), nil
}
