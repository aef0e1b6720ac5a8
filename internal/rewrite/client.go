package rewrite

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Default client settings.
const (
	// DefaultURL is the local Ollama endpoint.
	DefaultURL = "http://127.0.0.1:11434"

	// DefaultModel is the model asked to rewrite paragraphs.
	DefaultModel = "llama3.1"

	// maxResponseSize limits how much of a response body is read.
	maxResponseSize = 1 << 20
)

// ErrEmptyResponse is returned when the service answers without content.
var ErrEmptyResponse = errors.New("rewriter returned an empty response")

// Request is one paragraph rewrite.
type Request struct {
	// ParagraphHTML is the full <p> element to rewrite.
	ParagraphHTML string

	// TargetURL is the href the new anchor must point to.
	TargetURL string

	// AnchorText is the text the new anchor must carry.
	AnchorText string
}

// chatMessage is one message of an Ollama chat exchange.
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
	Error   string      `json:"error,omitempty"`
}

// systemPrompt states the rewriting contract.
const systemPrompt = `You edit one HTML paragraph to add exactly one internal link.
Rules:
- Return only the rewritten <p> element. No explanations, no code fences.
- Add exactly one <a href="TARGET">ANCHOR</a> using the given target and anchor text.
- Keep every existing link and all other markup unchanged.
- Change at most two sentences and keep the meaning of the paragraph.`

// Client calls an Ollama-compatible chat endpoint to rewrite paragraphs.
type Client struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the service URL.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// WithAPIKey sets a bearer token sent with every request.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client.
//
// The client sets no overall HTTP timeout. Callers bound each call with the
// context, which lets the fallback layer tell a per-call timeout apart from
// batch cancellation.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultURL,
		model:      DefaultModel,
		httpClient: &http.Client{Timeout: 0},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Rewrite asks the service to rewrite a paragraph so that it carries the
// requested anchor. It returns the paragraph HTML from the response without
// validating it.
func (c *Client) Rewrite(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(req)},
		},
		Stream:  false,
		Options: map[string]any{"temperature": 0.2},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode rewrite request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create rewrite request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("rewrite request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("failed to read rewrite response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("rewriter returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out chatResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("failed to decode rewrite response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("rewriter error: %s", out.Error)
	}

	content := trimFences(out.Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}

	c.logger.Debug("paragraph rewritten",
		"target", req.TargetURL,
		"anchor", req.AnchorText,
		"elapsed", time.Since(start))

	return content, nil
}

func userPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("TARGET: ")
	b.WriteString(req.TargetURL)
	b.WriteString("\nANCHOR: ")
	b.WriteString(req.AnchorText)
	b.WriteString("\nPARAGRAPH:\n")
	b.WriteString(req.ParagraphHTML)
	return b.String()
}

// trimFences removes a surrounding Markdown code fence, which models add
// even when told not to.
func trimFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Drop the info string ("html").
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
