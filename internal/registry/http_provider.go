package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lofthq/loft-assistant/internal/apps"
	"github.com/lofthq/loft-assistant/internal/store"
)

// HTTPProvider resolves external tools through the hosted tool platform. The
// platform holds the credentials; this client only passes the connected
// account reference and relays tool listings and executions.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProvider creates a provider client for the given platform base URL.
func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &HTTPProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type listToolsRequest struct {
	AppID        string `json:"app_id"`
	ConnectionID string `json:"connection_id"`
	AuthConfigID string `json:"auth_config_id"`
}

type toolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema,omitempty"`
}

type listToolsResponse struct {
	Tools []toolSpec `json:"tools"`
}

type executeRequest struct {
	AppID         string `json:"app_id"`
	ConnectionID  string `json:"connection_id"`
	ToolName      string `json:"tool_name"`
	ArgumentsJSON string `json:"arguments_json"`
}

type executeResponse struct {
	ResultJSON string `json:"result_json"`
	Error      string `json:"error,omitempty"`
}

// ListTools implements ToolProvider. Each returned descriptor's Invoke relays
// execution back through the platform with the same connected account.
func (p *HTTPProvider) ListTools(ctx context.Context, appID apps.AppID, conn *store.Connection, authConfig *store.AuthConfig) ([]ToolDescriptor, error) {
	var listed listToolsResponse
	err := p.post(ctx, "/v1/tools/list", listToolsRequest{
		AppID:        string(appID),
		ConnectionID: conn.ID,
		AuthConfigID: authConfig.ID,
	}, &listed)
	if err != nil {
		return nil, fmt.Errorf("ListTools: %w", err)
	}

	out := make([]ToolDescriptor, 0, len(listed.Tools))
	for _, spec := range listed.Tools {
		out = append(out, ToolDescriptor{
			Name:        spec.Name,
			Description: spec.Description,
			Schema:      spec.Schema,
			Invoke:      p.invokeFunc(appID, conn.ID, spec.Name),
		})
	}
	return out, nil
}

func (p *HTTPProvider) invokeFunc(appID apps.AppID, connectionID, toolName string) InvokeFunc {
	return func(ctx context.Context, argumentsJSON string) (string, error) {
		var executed executeResponse
		err := p.post(ctx, "/v1/tools/execute", executeRequest{
			AppID:         string(appID),
			ConnectionID:  connectionID,
			ToolName:      toolName,
			ArgumentsJSON: argumentsJSON,
		}, &executed)
		if err != nil {
			return "", fmt.Errorf("%s: %w", toolName, err)
		}
		if executed.Error != "" {
			return "", fmt.Errorf("%s: %s", toolName, executed.Error)
		}
		return executed.ResultJSON, nil
	}
}

func (p *HTTPProvider) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("tool platform returned %d: %s", resp.StatusCode, snippet)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
