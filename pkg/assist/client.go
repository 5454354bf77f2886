package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"chatcore/pkg/logger"
	"chatcore/pkg/metrics"
)

var (
	// ErrUpstreamUnavailable is returned when the completion service is
	// unreachable, times out, or answers with a non-success status.
	ErrUpstreamUnavailable = errors.New("completion service unavailable")
	// ErrUpstreamEmpty marks a well-formed response with no usable text.
	// Callers of Complete never see it: the client masks it behind
	// ApologyReply. Exported for tests and error inspection.
	ErrUpstreamEmpty = errors.New("completion service returned no text")
)

// Client is an HTTP gateway to the completion service. The system prompt
// and output cap are fixed per deployment; only the message and its bounded
// history vary per call.
type Client struct {
	baseURL      string
	apiKey       string
	model        string
	systemPrompt string
	maxTokens    int
	httpc        *http.Client
}

// Option mutates a Client during construction.
type Option func(*Client)

// WithTimeout bounds a single completion roundtrip. Default 30s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpc.Timeout = d
		}
	}
}

// WithAPIKey sets the bearer credential sent to the service.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithModel selects the deployment model identifier.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithSystemPrompt fixes the deployment persona instruction.
func WithSystemPrompt(prompt string) Option {
	return func(c *Client) { c.systemPrompt = prompt }
}

// WithMaxTokens fixes the deployment output cap.
func WithMaxTokens(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// NewClient returns a gateway bound to baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		maxTokens: 1024,
		httpc:     &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type completeRequest struct {
	Message             string `json:"message"`
	ConversationHistory []Turn `json:"conversationHistory,omitempty"`
	Model               string `json:"model,omitempty"`
	System              string `json:"system,omitempty"`
	MaxTokens           int    `json:"max_tokens,omitempty"`
}

type completeResponse struct {
	Response string          `json:"response"`
	Usage    json.RawMessage `json:"usage"` // token accounting, opaque here
	Error    string          `json:"error"`
}

// Complete sends newMessage with its history window and returns the
// generated text. A reachable service that produces no text yields the
// fixed apology string rather than an error; everything else maps to
// ErrUpstreamUnavailable.
func (c *Client) Complete(ctx context.Context, history []Turn, newMessage string) (string, error) {
	if strings.TrimSpace(newMessage) == "" {
		// caller bug, not a runtime failure
		return "", errors.New("empty message")
	}
	body, err := json.Marshal(completeRequest{
		Message:             newMessage,
		ConversationHistory: history,
		Model:               c.model,
		System:              c.systemPrompt,
		MaxTokens:           c.maxTokens,
	})
	if err != nil {
		return "", errors.Wrap(err, "marshal completion request")
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/complete", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "build completion request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	metrics.AssistantLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.AssistantRequests.WithLabelValues("unavailable").Inc()
		logger.Log.Warn("assistant_request_failed", zap.Error(err))
		return "", errors.Wrap(ErrUpstreamUnavailable, err.Error())
	}
	defer resp.Body.Close()

	var out completeResponse
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = json.NewDecoder(resp.Body).Decode(&out)
		metrics.AssistantRequests.WithLabelValues("unavailable").Inc()
		logger.Log.Warn("assistant_bad_status", zap.Int("status", resp.StatusCode), zap.String("error", out.Error))
		return "", errors.Wrapf(ErrUpstreamUnavailable, "status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.AssistantRequests.WithLabelValues("empty").Inc()
		logger.Log.Warn("assistant_malformed_response", zap.Error(err))
		return ApologyReply, nil
	}
	if strings.TrimSpace(out.Response) == "" {
		metrics.AssistantRequests.WithLabelValues("empty").Inc()
		logger.Log.Warn("assistant_empty_response")
		return ApologyReply, nil
	}
	metrics.AssistantRequests.WithLabelValues("ok").Inc()
	return out.Response, nil
}

var _ Responder = (*Client)(nil)
