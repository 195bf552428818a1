package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/nao1215/siteaudit/internal/config"
	"github.com/nao1215/siteaudit/internal/model"
)

var (
	// ErrModelCall wraps any provider failure.
	ErrModelCall = errors.New("model call failed")

	// ErrEmptyResponse is returned when a provider answers without text.
	ErrEmptyResponse = errors.New("model returned an empty response")

	// ErrMissingAPIKey is returned by New when the provider key is not set.
	ErrMissingAPIKey = errors.New("api key is not set")
)

// Environment variables holding provider credentials.
const (
	EnvGeminiAPIKey  = "GEMINI_API_KEY"
	EnvOpenAIAPIKey  = "OPENAI_API_KEY"
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
)

// Service is a language model provider.
type Service interface {
	// Complete answers content under the given system instruction.
	Complete(ctx context.Context, system, content string) (string, error)

	// CompleteStructured answers prompt with a benefits/drawbacks object.
	CompleteStructured(ctx context.Context, prompt string) (model.Finding, error)

	// Caption describes an image following prompt.
	Caption(ctx context.Context, image []byte, mimeType, prompt string) (string, error)
}

// New creates the Service selected by cfg.Provider.
// Keys are read from the environment. httpClient is used for every request.
func New(ctx context.Context, cfg *config.Config, httpClient *http.Client) (Service, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		key := os.Getenv(EnvGeminiAPIKey)
		if key == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingAPIKey, EnvGeminiAPIKey)
		}
		return NewGemini(ctx, key, cfg.ModelName(), httpClient)
	case config.ProviderOpenAI:
		key := os.Getenv(EnvOpenAIAPIKey)
		if key == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingAPIKey, EnvOpenAIAPIKey)
		}
		return NewOpenAI(key, os.Getenv(EnvOpenAIBaseURL), cfg.ModelName(), httpClient), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownProvider, cfg.Provider)
	}
}

// parseFinding decodes a structured answer. Models sometimes wrap JSON in a
// ```json fence even when asked not to, so one surrounding fence is removed.
func parseFinding(text string) (model.Finding, error) {
	text = StripFence(text)
	if text == "" {
		return model.Finding{}, ErrEmptyResponse
	}

	var f model.Finding
	if err := json.Unmarshal([]byte(text), &f); err != nil {
		return model.Finding{}, fmt.Errorf("%w: invalid structured response: %w", ErrModelCall, err)
	}
	if f.Benefits == nil {
		f.Benefits = []string{}
	}
	if f.Drawbacks == nil {
		f.Drawbacks = []string{}
	}
	return f, nil
}

// StripFence removes one surrounding Markdown code fence, with or without a
// language tag, and trims surrounding whitespace.
func StripFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	nl := strings.IndexByte(text, '\n')
	if nl < 0 {
		return text
	}
	body := text[nl+1:]
	body = strings.TrimSuffix(strings.TrimRight(body, " \t\n"), "```")
	return strings.TrimSpace(body)
}
