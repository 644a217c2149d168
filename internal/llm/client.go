package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// Client calls an OpenAI-compatible chat-completions endpoint.
type Client struct {
	name     string
	endpoint string
	model    string
	apiKey   string
	client   *resty.Client
	limiter  *rateLimiter
}

// Ensure Client implements CompletionClient
var _ CompletionClient = (*Client)(nil)

// ClientOptions configures a completion client.
type ClientOptions struct {
	Name              string
	Endpoint          string
	Model             string
	APIKey            string
	Timeout           time.Duration
	RequestsPerMinute int
}

// NewClient creates a completion client with a per-provider rolling-window
// rate counter.
func NewClient(opts ClientOptions) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerMinute == 0 {
		opts.RequestsPerMinute = 30
	}
	return &Client{
		name:     opts.Name,
		endpoint: opts.Endpoint,
		model:    opts.Model,
		apiKey:   opts.APIKey,
		client:   resty.New().SetTimeout(opts.Timeout),
		limiter:  newRateLimiter(opts.RequestsPerMinute, time.Minute),
	}
}

func (c *Client) Name() string {
	return c.name
}

type chatCompletionBody struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Complete issues one chat-completion call and returns the generated text.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", &ProviderError{Provider: c.name, Kind: KindAuthFailure, Message: "client misconfigured: missing endpoint, model or API key"}
	}

	if !c.limiter.Allow() {
		return "", &ProviderError{Provider: c.name, Kind: KindQuotaExceeded, Message: "local rate limit exceeded"}
	}

	messages := make([]ChatMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, req.Messages...)

	body := chatCompletionBody{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+c.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(c.endpoint)

	if err != nil {
		if isTimeout(err) {
			return "", &ProviderError{Provider: c.name, Kind: KindTimeout, Message: "completion request timed out", Err: err}
		}
		return "", &ProviderError{Provider: c.name, Kind: KindGeneric, Message: "completion request failed", Err: err}
	}

	if kind, ok := classifyStatus(resp.StatusCode()); ok {
		logrus.Warnf("Provider %s returned status %d", c.name, resp.StatusCode())
		return "", &ProviderError{
			Provider: c.name,
			Kind:     kind,
			Message:  fmt.Sprintf("status %d: %s", resp.StatusCode(), truncate(string(resp.Body()), 200)),
		}
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return "", &ProviderError{Provider: c.name, Kind: KindGeneric, Message: "malformed completion response", Err: err}
	}

	if parsed.Error != nil {
		kind := KindGeneric
		if strings.Contains(strings.ToLower(parsed.Error.Code), "model") {
			kind = KindModelUnavailable
		}
		return "", &ProviderError{Provider: c.name, Kind: kind, Message: parsed.Error.Message}
	}

	if len(parsed.Choices) == 0 {
		return "", &ProviderError{Provider: c.name, Kind: KindGeneric, Message: "completion response contained no choices"}
	}

	return parsed.Choices[0].Message.Content, nil
}

func classifyStatus(status int) (ProviderErrorKind, bool) {
	switch {
	case status == 401 || status == 403:
		return KindAuthFailure, true
	case status == 429:
		return KindQuotaExceeded, true
	case status == 404 || status == 503:
		return KindModelUnavailable, true
	case status == 408 || status == 504:
		return KindTimeout, true
	case status >= 400:
		return KindGeneric, true
	}
	return "", false
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// rateLimiter is a monotonic per-provider request counter reset on a rolling
// time window. Pipelines for multiple servers share it, so access is locked.
type rateLimiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	windowStart time.Time
	count       int
}

func newRateLimiter(maxRequests int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		maxRequests: maxRequests,
		window:      window,
		windowStart: time.Now(),
	}
}

// Allow consumes one slot if the current window has capacity.
func (r *rateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if now.Sub(r.windowStart) >= r.window {
		r.windowStart = now
		r.count = 0
	}

	if r.count >= r.maxRequests {
		return false
	}
	r.count++
	return true
}
