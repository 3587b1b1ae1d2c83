// Package litellm provides an HTTP client for the LiteLLM proxy and the
// model handles built on its OpenAI-compatible chat endpoint.
package litellm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Strob0t/AgentForge/internal/config"
)

// ModelInfo represents a configured model in LiteLLM.
type ModelInfo struct {
	ModelName string            `json:"model_name"`
	Provider  string            `json:"litellm_provider,omitempty"`
	ModelID   string            `json:"model_id,omitempty"`
	ModelMeta map[string]any    `json:"model_info,omitempty"`
	Params    map[string]string `json:"litellm_params,omitempty"`
}

// Client talks to the LiteLLM proxy: the admin API and the
// OpenAI-compatible completion API.
type Client struct {
	baseURL    string
	masterKey  string
	httpClient *http.Client
}

// NewClient creates a LiteLLM client from configuration.
func NewClient(cfg config.LiteLLM) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:   cfg.URL,
		masterKey: cfg.MasterKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ListModels returns all configured models from LiteLLM.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	resp, _, err := c.doRequest(ctx, http.MethodGet, "/model/info", nil)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}

	var result struct {
		Data []ModelInfo `json:"data"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("unmarshal models: %w", err)
	}
	return result.Data, nil
}

// Health checks if LiteLLM is healthy.
func (c *Client) Health(ctx context.Context) (bool, error) {
	_, _, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	return err == nil, err
}

// doRequest performs one HTTP round trip and returns the body and headers.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, http.Header, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.masterKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.masterKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, nil, fmt.Errorf("litellm API error %d: %s", resp.StatusCode, string(data))
	}

	return data, resp.Header, nil
}
