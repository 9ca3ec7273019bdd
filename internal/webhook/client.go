// Package webhook wraps the outbound call to the story-generation pipeline
// with bounded retries and a hard per-attempt timeout.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultBackoff    = 500 * time.Millisecond
	defaultMaxRetries = 2
)

// StatusError reports a non-2xx response from the webhook.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook: unexpected status %d", e.Code)
}

// RetryCondition decides whether an attempt error is worth retrying.
type RetryCondition func(err error) bool

// DefaultRetryCondition retries transport and timeout failures and HTTP 5xx.
// Semantic 4xx failures are terminal.
func DefaultRetryCondition(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500
	}
	return err != nil
}

// Config tunes retry behavior. Zero values fall back to defaults. The timeout
// applies per attempt, not cumulatively across retries.
type Config struct {
	MaxRetries     int
	Timeout        time.Duration
	Backoff        time.Duration
	RetryCondition RetryCondition
	// OnRetry is invoked before each retry with the attempt number just
	// failed, so callers can surface progress (e.g. a retry counter).
	OnRetry func(attempt int, err error)
	// SigningSecret, when set, adds an X-Signature header carrying the
	// hex HMAC-SHA256 of the request body.
	SigningSecret string
}

// GenerationRequest is the JSON body posted to the generation webhook.
type GenerationRequest struct {
	StoryID   string          `json:"story_id"`
	Owner     string          `json:"owner"`
	Children  []string        `json:"children"`
	Objective string          `json:"objective"`
	Prompt    json.RawMessage `json:"prompt"`
	Language  string          `json:"language"`
}

type generationResponse struct {
	WorkflowID string `json:"workflow_id"`
}

// Client posts generation requests to a configured webhook URL.
type Client struct {
	url        string
	httpClient *http.Client
	cfg        Config
	logger     zerolog.Logger
}

// NewClient builds a webhook client. A nil httpClient falls back to a default
// one; its own timeout is left alone because the per-attempt context governs.
func NewClient(url string, httpClient *http.Client, cfg Config, logger zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.RetryCondition == nil {
		cfg.RetryCondition = DefaultRetryCondition
	}
	return &Client{url: url, httpClient: httpClient, cfg: cfg, logger: logger}
}

// Configured reports whether a webhook URL was provided. Callers skip the
// dispatch entirely when it is absent and leave fulfillment to the worker.
func (c *Client) Configured() bool {
	return c.url != ""
}

// WithOnRetry returns a shallow copy whose retry callback is replaced.
// Callers use it to bind per-job retry accounting to a shared client.
func (c *Client) WithOnRetry(fn func(attempt int, err error)) *Client {
	clone := *c
	clone.cfg.OnRetry = fn
	return &clone
}

// StartGeneration submits one story request and returns the pipeline's
// workflow identifier. It performs at most 1+MaxRetries attempts and surfaces
// the last error with the attempt count when they exhaust.
func (c *Client) StartGeneration(ctx context.Context, req GenerationRequest) (string, error) {
	if c.url == "" {
		return "", errors.New("webhook: url not configured")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("webhook: encode request: %w", err)
	}

	var lastErr error
	attempts := c.cfg.MaxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		workflowID, err := c.post(ctx, body)
		if err == nil {
			return workflowID, nil
		}
		lastErr = err
		if !c.cfg.RetryCondition(err) {
			c.logger.Warn().Err(err).Str("story_id", req.StoryID).Msg("webhook: non-retryable failure")
			return "", fmt.Errorf("webhook: attempt %d: %w", attempt, err)
		}
		if attempt == attempts {
			break
		}
		if c.cfg.OnRetry != nil {
			c.cfg.OnRetry(attempt, err)
		}
		c.logger.Warn().Err(err).Int("attempt", attempt).Str("story_id", req.StoryID).Msg("webhook: retrying")
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.cfg.Backoff << (attempt - 1)):
		}
	}
	return "", fmt.Errorf("webhook: failed after %d attempts: %w", attempts, lastErr)
}

func (c *Client) post(ctx context.Context, body []byte) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.SigningSecret != "" {
		req.Header.Set("X-Signature", sign(c.cfg.SigningSecret, body))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{Code: resp.StatusCode, Body: string(raw)}
	}

	var decoded generationResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("webhook: decode response: %w", err)
	}
	if decoded.WorkflowID == "" {
		return "", errors.New("webhook: response missing workflow_id")
	}
	return decoded.WorkflowID, nil
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
