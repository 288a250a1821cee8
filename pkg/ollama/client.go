package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/duzelt/duzelt-backend/pkg/config"
	pkgerrors "github.com/duzelt/duzelt-backend/pkg/errors"
)

const responseBodyReadLimit int64 = 4096

var errBaseURLRequired = errors.New("ollama base url is required")
var errModelRequired = errors.New("ollama model is required")

// Message is one turn of the chat payload sent to the backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client wraps the Ollama-compatible chat endpoint used for corrections.
type Client struct {
	httpClient *http.Client
	baseURL    string
	model      string
	keepAlive  string

	numPredict  int
	temperature float64
	topP        float64
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds the correction-backend client from configuration.
func NewClient(cfg config.OllamaConfig, opts ...Option) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, errModelRequired
	}

	timeout := cfg.ClientTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	client := &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		keepAlive:   cfg.KeepAlive,
		numPredict:  cfg.NumPredict,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

type chatRequest struct {
	Model     string      `json:"model"`
	Stream    bool        `json:"stream"`
	KeepAlive string      `json:"keep_alive,omitempty"`
	Options   chatOptions `json:"options"`
	Messages  []Message   `json:"messages"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
	TopP        float64 `json:"top_p"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

// Chat sends one non-streaming chat completion and returns the raw
// message content. Non-2xx responses and malformed bodies surface as
// dependency errors carrying the backend's status and payload.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	if c == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "ollama client not configured")
	}
	if len(messages) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "chat messages are required")
	}

	payload, err := json.Marshal(chatRequest{
		Model:     c.model,
		Stream:    false,
		KeepAlive: c.keepAlive,
		Options: chatOptions{
			Temperature: c.temperature,
			NumPredict:  c.numPredict,
			TopP:        c.topP,
		},
		Messages: messages,
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal chat request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build chat request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute chat request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return "", pkgerrors.Wrap(
			pkgerrors.CodeDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"chat request failed",
		).WithDetails(map[string]any{
			"status": resp.StatusCode,
			"body":   strings.TrimSpace(string(msg)),
		})
	}

	var apiResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode chat response")
	}

	return apiResp.Message.Content, nil
}
