package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/agentskill/skillgov/pkg/httpclient"
)

// ModelAdapter is the core's only dependency on a probabilistic text
// generator; the core only ever calls this interface. HTTPModelAdapter
// below is an HTTP-backed implementation built on top of
// pkg/httpclient's generic retry/backoff client.
//
// Invoke must return a string or an error classified as a backend
// timeout/unavailability; both map to parse failures for retry
// accounting (see pkg/verdict.BackendTimeout / BackendUnavailable).
// seed is passed through so a deterministic adapter can reproduce the
// same output for the same (prompt, seed) pair, which idempotent
// replay from a checkpoint depends on.
type ModelAdapter interface {
	Invoke(ctx context.Context, prompt string, schema map[string]interface{}, seed int64) (string, error)
}

// DeterministicAdapter is the in-process ModelAdapter used for testing
// and replay: it never calls a network backend, and Responses is
// consulted in FIFO order per distinct prompt so the same sequence of
// decisions always replays identically.
type DeterministicAdapter struct {
	Responses map[string][]string
	calls     map[string]int
}

// NewDeterministicAdapter returns an adapter that replies with
// responses[prompt][n] on the n-th call for that exact prompt text.
func NewDeterministicAdapter(responses map[string][]string) *DeterministicAdapter {
	return &DeterministicAdapter{Responses: responses, calls: make(map[string]int)}
}

func (a *DeterministicAdapter) Invoke(_ context.Context, prompt string, _ map[string]interface{}, _ int64) (string, error) {
	if a.calls == nil {
		a.calls = make(map[string]int)
	}
	responses, ok := a.Responses[prompt]
	if !ok {
		return "", fmt.Errorf("deterministic adapter: no response configured for prompt")
	}
	n := a.calls[prompt]
	if n >= len(responses) {
		n = len(responses) - 1
	}
	a.calls[prompt]++
	return responses[n], nil
}

var _ ModelAdapter = (*DeterministicAdapter)(nil)

// HTTPModelAdapter is the production ModelAdapter: it calls an
// OpenAI-compatible chat completions endpoint over pkg/httpclient's
// retrying HTTP client, so rate limiting and transient backend errors
// are absorbed below the broker's own PARSE-phase retry budget rather
// than consuming it.
type HTTPModelAdapter struct {
	client   *httpclient.Client
	endpoint string
	apiKey   string
	model    string
}

// NewHTTPModelAdapter builds an HTTPModelAdapter targeting endpoint
// (a chat-completions URL) with the given API key and model name.
// Additional httpclient.Option values configure retry/backoff/TLS
// behavior on the underlying client.
func NewHTTPModelAdapter(endpoint, apiKey, model string, opts ...httpclient.Option) *HTTPModelAdapter {
	return &HTTPModelAdapter{
		client:   httpclient.New(opts...),
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
	}
}

type chatCompletionRequest struct {
	Model    string                 `json:"model"`
	Seed     int64                  `json:"seed,omitempty"`
	Messages []chatMessage          `json:"messages"`
	Schema   map[string]interface{} `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (a *HTTPModelAdapter) Invoke(ctx context.Context, prompt string, schema map[string]interface{}, seed int64) (string, error) {
	reqBody := chatCompletionRequest{
		Model:    a.model,
		Seed:     seed,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	}
	if schema != nil {
		reqBody.Schema = map[string]interface{}{"type": "json_schema", "json_schema": schema}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("httpmodeladapter: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("httpmodeladapter: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("httpmodeladapter: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("httpmodeladapter: backend returned status %d", resp.StatusCode)
	}

	var parsed chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("httpmodeladapter: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("httpmodeladapter: backend returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

var _ ModelAdapter = (*HTTPModelAdapter)(nil)
