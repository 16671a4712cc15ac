package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HTTPClient calls a hosted generation service over HTTP. The service shape
// is a single POST endpoint taking the system prompt, history and tool set
// and returning a Result.
type HTTPClient struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// NewHTTPClient creates a client for the given generation endpoint.
func NewHTTPClient(endpoint string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

type generateRequest struct {
	SystemPrompt string    `json:"system_prompt"`
	History      []Message `json:"history"`
	Tools        []Tool    `json:"tools,omitempty"`
}

// Generate implements Generator.
func (c *HTTPClient) Generate(ctx context.Context, systemPrompt string, history []Message, tools []Tool) (*Result, error) {
	body, err := json.Marshal(generateRequest{
		SystemPrompt: systemPrompt,
		History:      history,
		Tools:        tools,
	})
	if err != nil {
		return nil, fmt.Errorf("Generate: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("Generate: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Generate: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("Generate: generation service returned %d: %s", resp.StatusCode, snippet)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("Generate: decode response: %w", err)
	}
	return &result, nil
}
