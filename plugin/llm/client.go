package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const (
	DefaultEndpoint    = "https://router.huggingface.co/v1/chat/completions"
	DefaultProvider    = "together"
	DefaultModel       = "deepseek-ai/DeepSeek-R1"
	DefaultTimeout     = 30 * time.Second
	DefaultMaxAttempts = 3
	DefaultTemperature = 0.7

	connectionTestPrompt = "Respond with 'connection test successful'"
)

// Config is fixed for the lifetime of a Client.
type Config struct {
	Token       string
	Endpoint    string
	Provider    string
	Model       string
	Timeout     time.Duration
	MaxAttempts int
	// Temperature is sent as is when set, including zero; nil means DefaultTemperature.
	Temperature *float64
}

// Recorder receives one observation per physical HTTP attempt.
type Recorder interface {
	ObserveAttempt(outcome string, duration time.Duration)
}

// Stats is a snapshot of the client's usage counters.
type Stats struct {
	TotalCalls  int64
	TotalTime   time.Duration
	AverageTime time.Duration
	Model       string
	Provider    string
}

// Client talks to an OpenAI-compatible chat-completion router.
// It is safe for concurrent use.
type Client struct {
	config     Config
	httpClient *http.Client
	recorder   Recorder
	sleep      func(ctx context.Context, d time.Duration) error

	mu         sync.Mutex
	totalCalls int64
	totalTime  time.Duration
}

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. Its Timeout is left untouched.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithRecorder(recorder Recorder) Option {
	return func(c *Client) {
		c.recorder = recorder
	}
}

// NewClient validates the config and fills in defaults.
func NewClient(config Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(config.Token) == "" {
		return nil, ErrMissingToken
	}
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	if config.Provider == "" {
		config.Provider = DefaultProvider
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.Temperature == nil {
		temperature := DefaultTemperature
		config.Temperature = &temperature
	}

	c := &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	slog.Info("llm client initialized", "endpoint", config.Endpoint, "provider", config.Provider, "model", config.Model)
	return c, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Provider    string        `json:"provider"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate sends a single-turn prompt and returns the trimmed completion.
// Transient failures are retried with a linear backoff of one second per
// attempt; 401 and 402 fail immediately.
func (c *Client) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.config.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Provider:    c.config.Provider,
		Temperature: *c.config.Temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal chat request")
	}

	var lastErr error
	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		text, err := c.do(ctx, body)
		if err == nil {
			return text, nil
		}
		var llmErr *Error
		if errors.As(err, &llmErr) && !llmErr.Retryable() {
			llmErr.Attempts = attempt
			slog.Error("llm request rejected", "kind", llmErr.Kind.String(), "status", llmErr.StatusCode)
			return "", llmErr
		}
		lastErr = err
		slog.Warn("llm attempt failed", "attempt", attempt, "max_attempts", c.config.MaxAttempts, "err", err)

		if ctx.Err() != nil {
			return "", &Error{Kind: KindUpstream, Attempts: attempt, Err: ctx.Err()}
		}
		if attempt < c.config.MaxAttempts {
			if err := c.sleep(ctx, time.Duration(attempt)*time.Second); err != nil {
				return "", &Error{Kind: KindUpstream, Attempts: attempt, Err: err}
			}
		}
	}
	return "", &Error{Kind: KindUpstream, Attempts: c.config.MaxAttempts, Err: lastErr}
}

// do performs one physical HTTP attempt.
func (c *Client) do(ctx context.Context, body []byte) (string, error) {
	start := time.Now()
	text, outcome, err := c.roundTrip(ctx, body)
	c.record(outcome, time.Since(start))
	return text, err
}

func (c *Client) roundTrip(ctx context.Context, body []byte) (string, string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", "error", errors.Wrap(err, "failed to build request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.config.Token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return "", "timeout", errors.Wrap(err, "request timed out")
		}
		return "", "error", errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return "", "unauthorized", &Error{Kind: KindAuthentication, StatusCode: resp.StatusCode, Err: ErrAuthentication}
	case resp.StatusCode == http.StatusPaymentRequired:
		return "", "payment_required", &Error{Kind: KindBilling, StatusCode: resp.StatusCode, Err: ErrBilling}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", "http_error", &Error{
			Kind:       KindUpstream,
			StatusCode: resp.StatusCode,
			Err:        errors.Errorf("unexpected status: %s", strings.TrimSpace(string(snippet))),
		}
	}

	var apiResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		if isTimeout(err) {
			return "", "timeout", errors.Wrap(err, "reading response timed out")
		}
		return "", "bad_response", errors.Wrap(err, "failed to decode response")
	}
	if len(apiResp.Choices) == 0 {
		return "", "bad_response", errors.New("empty response from LLM")
	}
	return strings.TrimSpace(apiResp.Choices[0].Message.Content), "ok", nil
}

func (c *Client) record(outcome string, duration time.Duration) {
	c.mu.Lock()
	c.totalCalls++
	c.totalTime += duration
	c.mu.Unlock()
	if c.recorder != nil {
		c.recorder.ObserveAttempt(outcome, duration)
	}
}

// TestConnection sends a canary prompt and checks the reply.
func (c *Client) TestConnection(ctx context.Context) bool {
	result, err := c.Generate(ctx, connectionTestPrompt, 30)
	if err != nil {
		slog.Error("llm connection test failed", "err", err)
		return false
	}
	lower := strings.ToLower(result)
	return strings.Contains(lower, "successful") || strings.Contains(lower, "connection")
}

func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := Stats{
		TotalCalls: c.totalCalls,
		TotalTime:  c.totalTime,
		Model:      c.config.Model,
		Provider:   c.config.Provider,
	}
	if c.totalCalls > 0 {
		stats.AverageTime = c.totalTime / time.Duration(c.totalCalls)
	}
	return stats
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var timeout interface{ Timeout() bool }
	return errors.As(err, &timeout) && timeout.Timeout()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
