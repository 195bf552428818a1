package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/nao1215/siteaudit/internal/model"
)

// findingDefinition is the JSON schema sent with structured requests.
var findingDefinition = &jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"benefits":  {Type: jsonschema.Array, Items: &jsonschema.Definition{Type: jsonschema.String}},
		"drawbacks": {Type: jsonschema.Array, Items: &jsonschema.Definition{Type: jsonschema.String}},
	},
	Required:             []string{"benefits", "drawbacks"},
	AdditionalProperties: false,
}

// OpenAI is a Service backed by an OpenAI compatible chat completions API.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates a client for modelName. An empty baseURL uses the
// official endpoint.
func NewOpenAI(apiKey, baseURL, modelName string, httpClient *http.Client) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: modelName}
}

// Complete implements Service.
func (o *OpenAI) Complete(ctx context.Context, system, content string) (string, error) {
	return o.chat(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: content},
		},
	})
}

// CompleteStructured implements Service.
func (o *OpenAI) CompleteStructured(ctx context.Context, prompt string) (model.Finding, error) {
	text, err := o.chat(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "finding",
				Schema: findingDefinition,
				Strict: true,
			},
		},
	})
	if err != nil {
		return model.Finding{}, err
	}
	return parseFinding(text)
}

// Caption implements Service. The image is sent inline as a data URL.
func (o *OpenAI) Caption(ctx context.Context, image []byte, mimeType, prompt string) (string, error) {
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
	return o.chat(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL}},
				},
			},
		},
	})
}

func (o *OpenAI) chat(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: openai: %w", ErrModelCall, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: openai", ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}
