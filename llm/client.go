// Package llm wraps one chat-completion API. Everything that talks to
// the model goes through the Client interface so tests can inject a fake.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"paperdesk/config"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_requests_total",
			Help: "Total number of LLM chat-completion calls by outcome.",
		},
		[]string{"outcome"},
	)
	requestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "Duration of LLM chat-completion calls.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal, requestDuration)
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request describes one completion call. The model name comes from
// configuration, not from the caller.
type Request struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Client is the narrow surface the summarizer, answerer and PDF
// extractor depend on.
type Client interface {
	// Complete returns the assistant message content for one request.
	Complete(ctx context.Context, req Request) (string, error)
}

// HTTPClient talks to an OpenAI-compatible chat-completions endpoint.
// A token-bucket limiter keeps call rate within the provider budget.
type HTTPClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewHTTPClient builds the production client from configuration.
func NewHTTPClient(cfg *config.Config, logger *zap.Logger) *HTTPClient {
	rps := cfg.LLMRateLimit
	if rps <= 0 {
		rps = 3
	}
	return &HTTPClient{
		baseURL: cfg.LLMBaseURL,
		apiKey:  cfg.LLMAPIKey,
		model:   cfg.LLMModel,
		client:  &http.Client{Timeout: time.Duration(cfg.LLMTimeoutSecs) * time.Second},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  logger,
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete issues one chat-completion call. Non-2xx responses become
// errors carrying the status and a body snippet.
func (c *HTTPClient) Complete(ctx context.Context, req Request) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	messages := make([]Message, 0, 2)
	if req.System != "" {
		messages = append(messages, Message{Role: "system", Content: req.System})
	}
	messages = append(messages, Message{Role: "user", Content: req.User})

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	requestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues("transport_error").Inc()
		return "", fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		requestsTotal.WithLabelValues("http_error").Inc()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("LLM API returned non-2xx status",
			zap.Int("status", resp.StatusCode), zap.ByteString("body", snippet))
		return "", fmt.Errorf("llm returned HTTP %d: %s", resp.StatusCode, string(snippet))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		requestsTotal.WithLabelValues("decode_error").Inc()
		return "", fmt.Errorf("parsing llm response: %w", err)
	}
	if parsed.Error.Message != "" {
		requestsTotal.WithLabelValues("api_error").Inc()
		return "", fmt.Errorf("llm error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		requestsTotal.WithLabelValues("empty").Inc()
		return "", fmt.Errorf("llm returned no choices")
	}

	requestsTotal.WithLabelValues("ok").Inc()
	return parsed.Choices[0].Message.Content, nil
}
