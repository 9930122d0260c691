package ai

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

	"golang.org/x/time/rate"

	"github.com/nhle/mailtriage/internal/metrics"
)

const (
	defaultHost    = "http://localhost:11434"
	defaultModel   = "deepseek-r1:1.5b"
	defaultTimeout = 60 * time.Second
)

// EnrichmentError reports a failed backend call. No retry is attempted.
type EnrichmentError struct {
	Op    string
	Model string
	Err   error
}

func (e *EnrichmentError) Error() string {
	return fmt.Sprintf("%s with model %s: %v", e.Op, e.Model, e.Err)
}

func (e *EnrichmentError) Unwrap() error { return e.Err }

// IsEnrichmentError reports whether err wraps an EnrichmentError.
func IsEnrichmentError(err error) bool {
	var eErr *EnrichmentError
	return errors.As(err, &eErr)
}

// CallOptions selects the model for one call and carries backend options
// (temperature, num_predict, ...) that are forwarded unchanged.
type CallOptions struct {
	Model   string
	Options map[string]any
}

// Config configures a Client.
type Config struct {
	Host    string
	Model   string
	Timeout time.Duration

	// RequestsPerSecond throttles calls across goroutines; zero disables it.
	RequestsPerSecond float64
}

// Client talks to an Ollama-compatible HTTP API.
type Client struct {
	host    string
	model   string
	client  *http.Client
	limiter *rate.Limiter
}

// NewClient creates a backend client, filling unset config with defaults.
func NewClient(cfg Config) *Client {
	if cfg.Host == "" {
		cfg.Host = defaultHost
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	c := &Client{
		host:   strings.TrimRight(cfg.Host, "/"),
		model:  cfg.Model,
		client: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c
}

// Model returns the default model name.
func (c *Client) Model() string {
	return c.model
}

func (c *Client) modelFor(opts CallOptions) string {
	if opts.Model != "" {
		return opts.Model
	}
	return c.model
}

// Generate sends a single prompt to /api/generate and returns the response
// text.
func (c *Client) Generate(ctx context.Context, prompt string, opts CallOptions) (string, error) {
	model := c.modelFor(opts)
	req := generateRequest{
		Model:   model,
		Prompt:  prompt,
		Stream:  false,
		Options: opts.Options,
	}

	var resp generateResponse
	if err := c.post(ctx, "/api/generate", req, &resp); err != nil {
		return "", &EnrichmentError{Op: "generate", Model: model, Err: err}
	}
	return resp.Response, nil
}

// Chat sends a conversation to /api/chat and returns the assistant reply.
func (c *Client) Chat(ctx context.Context, messages []Message, opts CallOptions) (string, error) {
	model := c.modelFor(opts)
	req := chatRequest{
		Model:    model,
		Messages: make([]chatMessage, 0, len(messages)),
		Stream:   false,
		Options:  opts.Options,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	var resp chatResponse
	if err := c.post(ctx, "/api/chat", req, &resp); err != nil {
		return "", &EnrichmentError{Op: "chat", Model: model, Err: err}
	}
	return resp.Message.Content, nil
}

// Embed returns the embedding vector of text from /api/embeddings.
func (c *Client) Embed(ctx context.Context, text string, opts CallOptions) ([]float64, error) {
	model := c.modelFor(opts)
	req := embeddingRequest{
		Model:   model,
		Prompt:  text,
		Options: opts.Options,
	}

	var resp embeddingResponse
	if err := c.post(ctx, "/api/embeddings", req, &resp); err != nil {
		return nil, &EnrichmentError{Op: "embed", Model: model, Err: err}
	}
	if len(resp.Embedding) == 0 {
		return nil, &EnrichmentError{Op: "embed", Model: model, Err: errors.New("empty embedding")}
	}
	return resp.Embedding, nil
}

// post sends body as JSON to path and decodes the JSON reply into out.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	start := time.Now()
	status := "error"
	defer func() {
		metrics.RecordBackendCall(path, status, time.Since(start))
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.host+path, bytes.NewReader(bodyBytes),
	)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	status = "ok"
	return nil
}

// --- Ollama API types ---

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Model   string      `json:"model"`
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

type embeddingRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Options map[string]any `json:"options,omitempty"`
}

type embeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

type apiErrorResponse struct {
	Error string `json:"error"`
}
