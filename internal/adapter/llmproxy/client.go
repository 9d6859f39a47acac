// Package llmproxy provides an HTTP client for an OpenAI-compatible chat
// completion proxy. It implements the completion port.
package llmproxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/parleyhq/parley/internal/domain/agent"
	"github.com/parleyhq/parley/internal/domain/billing"
	"github.com/parleyhq/parley/internal/port/completion"
	"github.com/parleyhq/parley/internal/resilience"
)

// Client talks to an OpenAI-compatible /chat/completions endpoint.
type Client struct {
	baseURL    string
	masterKey  string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates a completion proxy client. The HTTP client carries no
// timeout of its own; callers bound each request through ctx.
func NewClient(baseURL, masterKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		masterKey:  masterKey,
		httpClient: &http.Client{},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

type chatMessage struct {
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	ToolCalls json.RawMessage `json:"tool_calls,omitempty"`
}

type chatRequest struct {
	Model     string          `json:"model"`
	Messages  []chatMessage   `json:"messages"`
	MaxTokens int             `json:"max_tokens,omitempty"`
	Tools     json.RawMessage `json:"tools,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete executes one chat completion through the proxy.
func (c *Client) Complete(ctx context.Context, req completion.Request) (*completion.Result, error) {
	msgs := make([]chatMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.System})
	}
	for _, turn := range req.Messages {
		role := "user"
		if turn.Role == agent.ChatRoleAssistant {
			role = "assistant"
		}
		msgs = append(msgs, chatMessage{Role: role, Content: turn.Content})
	}

	body, err := json.Marshal(chatRequest{
		Model:     req.Model,
		Messages:  msgs,
		MaxTokens: req.MaxTokens,
		Tools:     req.Tools,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	key := c.masterKey
	if req.APIKey != "" {
		key = req.APIKey
	}

	data, err := c.doRequest(ctx, key, body)
	if err != nil {
		return nil, err
	}

	var resp chatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal completion response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("completion response has no choices")
	}

	model := resp.Model
	if model == "" {
		model = req.Model
	}

	return &completion.Result{
		Content:   resp.Choices[0].Message.Content,
		Model:     model,
		Provider:  billing.ProviderFor(model),
		ToolCalls: resp.Choices[0].Message.ToolCalls,
		Usage: completion.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// Health checks whether the proxy is reachable.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("proxy health: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, key string, body []byte) ([]byte, error) {
	var result []byte
	call := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		if key != "" {
			req.Header.Set("Authorization", "Bearer "+key)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			return fmt.Errorf("completion proxy error %d: %s", resp.StatusCode, string(data))
		}

		result = data
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := call(); err != nil {
		return nil, err
	}
	return result, nil
}
