package embed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const openAIDefaultModel = "text-embedding-3-small"

// OpenAIConfig holds configuration for the OpenAI embeddings client.
type OpenAIConfig struct {
	APIKey     string
	Model      string
	BaseURL    string        // Optional, for compatible servers and tests
	Timeout    time.Duration // HTTP timeout
	HTTPClient *http.Client  // Optional (tests)
}

// OpenAIGateway embeds text with the OpenAI embeddings API.
type OpenAIGateway struct {
	model  string
	client openai.Client
}

func NewOpenAIGateway(cfg OpenAIConfig) *OpenAIGateway {
	if cfg.Model == "" {
		cfg.Model = openAIDefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		// Guard owns retries.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIGateway{
		model:  cfg.Model,
		client: openai.NewClient(opts...),
	}
}

func (g *OpenAIGateway) Embed(ctx context.Context, items []Item) (map[string][]float32, error) {
	if len(items) == 0 {
		return map[string][]float32{}, nil
	}
	inputs := make([]string, len(items))
	for i, it := range items {
		inputs[i] = it.Text
	}

	resp, err := g.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: inputs},
		Model: openai.EmbeddingModel(g.model),
	})
	if err != nil {
		return nil, mapOpenAIError(err)
	}

	out := make(map[string][]float32, len(items))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(items) {
			continue
		}
		out[items[d.Index].ID] = toFloat32(d.Embedding)
	}
	return out, nil
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500 {
			return &RetryableError{StatusCode: apiErr.StatusCode, Message: apiErr.Message}
		}
		return fmt.Errorf("openai embeddings status %d: %s", apiErr.StatusCode, apiErr.Message)
	}
	return fmt.Errorf("openai embeddings: %w", err)
}
