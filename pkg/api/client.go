// Package api is the HTTP client for the EaseVoice backend. Each resource method maps
// one user action to exactly one HTTP call.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// Config holds the settings of the HTTP adapter.
type Config struct {
	BaseURL       string
	ServiceHeader string
	ServiceName   string
	Timeout       time.Duration
	RetryMax      int
	RetryWaitMin  time.Duration
	RetryWaitMax  time.Duration
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		BaseURL:       "http://localhost:8000/apis/v1",
		ServiceHeader: "X-Service-Name",
		ServiceName:   "easevoice-cli",
		Timeout:       30 * time.Second,
		RetryMax:      3,
		RetryWaitMin:  500 * time.Millisecond,
		RetryWaitMax:  4 * time.Second,
	}
}

// Client talks to the backend. Idempotent requests are retried with exponential
// backoff; everything else is sent exactly once.
type Client struct {
	cfg      Config
	retrying *retryablehttp.Client
	once     *retryablehttp.Client
	log      *logrus.Entry
}

// Option customises a Client.
type Option func(*Client)

// WithLogger routes retry diagnostics to the given logger.
func WithLogger(l *logrus.Entry) Option {
	return func(c *Client) {
		c.log = l
	}
}

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.retrying.HTTPClient = hc
		c.once.HTTPClient = hc
	}
}

// New creates a client for the backend described by cfg. Zero fields fall back to defaults.
func New(cfg Config, opts ...Option) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.ServiceHeader == "" {
		cfg.ServiceHeader = def.ServiceHeader
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = def.ServiceName
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryWaitMin <= 0 {
		cfg.RetryWaitMin = def.RetryWaitMin
	}
	if cfg.RetryWaitMax <= 0 {
		cfg.RetryWaitMax = def.RetryWaitMax
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{
		cfg:      cfg,
		retrying: newRetryClient(cfg, cfg.RetryMax),
		once:     newRetryClient(cfg, 0),
		log:      discardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	leveled := &leveledLogger{entry: c.log}
	c.retrying.Logger = leveled
	c.once.Logger = leveled
	return c
}

func newRetryClient(cfg Config, retryMax int) *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	rc.RetryMax = retryMax
	rc.RetryWaitMin = cfg.RetryWaitMin
	rc.RetryWaitMax = cfg.RetryWaitMax
	rc.Backoff = retryablehttp.DefaultBackoff
	rc.CheckRetry = retryablehttp.DefaultRetryPolicy
	// Hand the last response back so the backend's detail message can be decoded.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return rc
}

// BaseURL returns the backend base URL in use.
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

func isIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut:
		return true
	default:
		return false
	}
}

// send performs one logical request and returns the raw response for 2xx statuses.
// Non-2xx statuses are converted to *APIError and the body is closed.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, error) {
	endpoint := c.cfg.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var raw any
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		raw = data
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, endpoint, raw)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(c.cfg.ServiceHeader, c.cfg.ServiceName)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	hc := c.once
	if isIdempotent(method) {
		hc = c.retrying
	}

	resp, err := hc.Do(req)
	if resp == nil {
		if err == nil {
			err = fmt.Errorf("empty response")
		}
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	// When a response arrived, its status takes precedence over the retry policy's error.

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	resp, err := c.send(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) doBytes(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	resp, err := c.send(ctx, method, path, query, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return data, nil
}
