package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Client is the single network-access component for the remote management
// API. It owns credential attachment, retry/backoff, and failure
// classification; everything above it works with typed results and APIError
// values only.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	creds          *Credentials
	policy         RetryPolicy
	logger         *logrus.Entry
	onUnauthorized func()
}

// Config holds configuration for the client
type Config struct {
	BaseURL string
	Timeout time.Duration
	Retry   RetryPolicy
}

// DefaultConfig returns a client configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
		Retry:   DefaultRetryPolicy(),
	}
}

// New creates a new client for the remote management API
func New(cfg *Config, logger *logrus.Logger) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	httpClient := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 10 * time.Second,
			MaxIdleConns:          10,
			MaxIdleConnsPerHost:   2,
			IdleConnTimeout:       90 * time.Second,
		},
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		creds:      NewCredentials(),
		policy:     cfg.Retry,
		logger:     logger.WithField("component", "client"),
	}, nil
}

// Credentials returns the credential holder armed on outbound requests
func (c *Client) Credentials() *Credentials {
	return c.creds
}

// SetOnUnauthorized registers a hook invoked after a request fails with an
// unrecoverable 401. The session manager uses it to drop the local session
// so consumers fall back to the login flow.
func (c *Client) SetOnUnauthorized(hook func()) {
	c.onUnauthorized = hook
}

// Do executes a request against the management API with retry and
// classification. A nil out skips body decoding; a 204 (or empty body)
// leaves out untouched and returns nil.
func (c *Client) Do(ctx context.Context, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	var lastErr *APIError
	for attempt := 1; ; attempt++ {
		respBody, status, err := c.doRequest(ctx, method, path, payload)
		if err != nil {
			if ctx.Err() != nil {
				return networkError(ctx.Err())
			}

			lastErr = networkError(err)
			// Network-level failures are retried unconditionally up to the limit
			if attempt >= c.policy.MaxRetries {
				return lastErr
			}

			c.logger.WithError(err).WithFields(logrus.Fields{
				"method":  method,
				"path":    path,
				"attempt": attempt,
			}).Warn("Request failed at transport level, will retry")

			if err := c.sleep(ctx, c.policy.Delay(attempt)); err != nil {
				return networkError(err)
			}
			continue
		}

		if status >= 200 && status < 300 {
			if out == nil || status == http.StatusNoContent || len(respBody) == 0 {
				return nil
			}
			if err := json.Unmarshal(respBody, out); err != nil {
				return &APIError{
					StatusCode: status,
					Kind:       KindUnknown,
					Message:    fmt.Sprintf("failed to decode response: %v", err),
				}
			}
			return nil
		}

		lastErr = classifyResponse(status, respBody)

		if c.policy.ShouldRetry(method, path, status, attempt) {
			c.logger.WithFields(logrus.Fields{
				"method":  method,
				"path":    path,
				"status":  status,
				"attempt": attempt,
			}).Warn("Request failed, will retry")

			if err := c.sleep(ctx, c.policy.Delay(attempt)); err != nil {
				return lastErr
			}
			continue
		}

		if status == http.StatusUnauthorized && c.onUnauthorized != nil {
			c.onUnauthorized()
		}

		return lastErr
	}
}

// doRequest performs a single HTTP request and returns the raw outcome
func (c *Client) doRequest(ctx context.Context, method, path string, payload []byte) ([]byte, int, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.creds.apply(req)

	c.logger.WithFields(logrus.Fields{
		"method": method,
		"path":   path,
	}).Debug("Issuing request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response body: %w", err)
	}

	return respBody, resp.StatusCode, nil
}

// sleep pauses for the backoff delay, honoring cancellation
func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Close releases idle connections
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
