package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPGateway calls a text-embeddings-inference style server:
// POST {baseURL}/embed {"inputs": [...]} returning one vector per input.
type HTTPGateway struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPGateway(baseURL, apiKey string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type embedRequest struct {
	Inputs    []string `json:"inputs"`
	Normalize bool     `json:"normalize"`
	Truncate  bool     `json:"truncate"`
}

func (g *HTTPGateway) Embed(ctx context.Context, items []Item) (map[string][]float32, error) {
	if len(items) == 0 {
		return map[string][]float32{}, nil
	}
	reqBody := embedRequest{Inputs: make([]string, len(items)), Normalize: true, Truncate: true}
	for i, it := range items {
		reqBody.Inputs[i] = it.Text
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("embedding server: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, &RetryableError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding server status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var vectors [][]float32
	if err := json.Unmarshal(respBody, &vectors); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(vectors) != len(items) {
		return nil, fmt.Errorf("embedding server returned %d vectors for %d inputs", len(vectors), len(items))
	}

	out := make(map[string][]float32, len(items))
	for i, it := range items {
		out[it.ID] = vectors[i]
	}
	return out, nil
}

// Close releases resources.
func (g *HTTPGateway) Close() {
	g.httpClient.CloseIdleConnections()
}
