// Package upstream is a client for the external promotions service that
// owns wheel, scratch-card, coupon and quiz campaigns.
//
// Requests are retried on transport errors, 429 and 5xx with capped
// exponential backoff. Other failures come back as *HTTPError, *AuthError
// or *APIError so that callers can classify them.
//
// # Usage
//
//	client := upstream.NewClient(upstream.Config{
//	    BaseURL: "https://promotions.example.com",
//	    APIKey:  key,
//	})
//
//	wheel, err := client.GetSpinWheel(ctx, wheelID, customerID)
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

// Config holds configuration for the promotions client.
type Config struct {
	// BaseURL is the promotions service root. A bare host gets https://.
	BaseURL string

	// APIKey is sent as x-api-key when set.
	APIKey string

	// MaxRetries is the maximum number of retry attempts for retryable errors.
	// Defaults to 3 if zero.
	MaxRetries int

	// BaseRetryDelay is the initial delay before the first retry.
	// Defaults to 500ms if zero.
	BaseRetryDelay time.Duration

	// MaxRetryDelay caps the exponential backoff delay.
	// Defaults to 5 seconds if zero.
	MaxRetryDelay time.Duration

	// HTTPClient allows injecting a custom HTTP client (useful for testing).
	// Defaults to a client with 15s timeout.
	HTTPClient *http.Client

	// UserAgent overrides the User-Agent header. Optional.
	UserAgent string
}

// Client is a promotions service client. It is safe for concurrent use.
type Client struct {
	config Config
	http   *http.Client
	mu     sync.RWMutex
}

// NewClient creates a new client with the given configuration.
func NewClient(cfg Config) *Client {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseRetryDelay == 0 {
		cfg.BaseRetryDelay = 500 * time.Millisecond
	}
	if cfg.MaxRetryDelay == 0 {
		cfg.MaxRetryDelay = 5 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	return &Client{
		config: cfg,
		http:   httpClient,
	}
}

// SetAPIKey replaces the API key (thread-safe).
func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config.APIKey = key
}

// APIKey returns the current API key (thread-safe).
func (c *Client) APIKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config.APIKey
}

// BaseURL returns the configured service root.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// --- Core request methods ---

func (c *Client) url(path string) string {
	base := c.config.BaseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return fmt.Sprintf("%s/%s", strings.TrimRight(base, "/"), strings.TrimPrefix(path, "/"))
}

// doRequest sends a single request and returns the raw 2xx body.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return nil, fmt.Errorf("upstream: create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key := c.APIKey(); key != "" {
		req.Header.Set("x-api-key", key)
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, retry.RetryableError(fmt.Errorf("upstream: http request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retry.RetryableError(fmt.Errorf("upstream: read response: %w", err))
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, &AuthError{StatusCode: resp.StatusCode, Message: messageOf(respBody)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		httpErr := &HTTPError{StatusCode: resp.StatusCode, Message: messageOf(respBody), Body: string(respBody)}
		if httpErr.IsRetryable() {
			return nil, retry.RetryableError(httpErr)
		}
		return nil, httpErr
	}

	return respBody, nil
}

// doRequestWithRetry sends a request, retrying retryable failures with
// capped exponential backoff until MaxRetries is exhausted or ctx is done.
func (c *Client) doRequestWithRetry(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("upstream: marshal request: %w", err)
		}
	}

	backoff := retry.NewExponential(c.config.BaseRetryDelay)
	backoff = retry.WithCappedDuration(c.config.MaxRetryDelay, backoff)
	backoff = retry.WithMaxRetries(uint64(c.config.MaxRetries), backoff)

	var out []byte
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		b, err := c.doRequest(ctx, method, path, body)
		if err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// call decodes an enveloped response into out. A status-false envelope
// becomes *APIError.
func (c *Client) call(ctx context.Context, method, path string, payload, out any) (*Envelope, error) {
	raw, err := c.doRequestWithRetry(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("upstream: invalid response JSON: %w", err)
	}
	if !env.Status {
		return &env, &APIError{Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &env, fmt.Errorf("upstream: invalid response payload: %w", err)
		}
	}
	return &env, nil
}

// callRaw decodes an unenveloped response body into out.
func (c *Client) callRaw(ctx context.Context, method, path string, payload, out any) error {
	raw, err := c.doRequestWithRetry(ctx, method, path, payload)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("upstream: invalid response JSON: %w", err)
	}
	return nil
}

func messageOf(body []byte) string {
	var msg struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &msg); err == nil {
		return msg.Message
	}
	return ""
}
