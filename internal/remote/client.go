// Package remote is the HTTP client for the key-value store API. Reads get
// one retry on transient failure; writes are sent exactly once.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront/internal/storeerr"
)

const (
	DefaultTimeout    = 15 * time.Second
	DefaultRetryDelay = time.Second
)

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithTimeout sets the per-attempt deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetryDelay sets the fixed pause before the single read retry.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.retryDelay = d
		}
	}
}

// WithHeaders adds headers to every request, e.g. an api key.
func WithHeaders(h http.Header) Option {
	return func(c *Client) {
		for k, values := range h {
			for _, v := range values {
				c.headers.Add(k, v)
			}
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	headers    http.Header
	timeout    time.Duration
	retryDelay time.Duration
	log        *log.Logger
}

func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, storeerr.InvalidInput("remote: base URL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, storeerr.InvalidInput("remote: invalid base URL %q", baseURL)
	}
	c := &Client{
		baseURL:    parsed,
		httpClient: &http.Client{},
		headers:    make(http.Header),
		timeout:    DefaultTimeout,
		retryDelay: DefaultRetryDelay,
		log:        log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Call sends one request and decodes the JSON answer into out (when non-nil).
// Failures come back as storeerr codes: TIMEOUT, NETWORK_ERROR,
// REQUEST_REJECTED, SERVER_ERROR or MALFORMED_RESPONSE.
func (c *Client) Call(ctx context.Context, method, endpoint string, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return storeerr.InvalidInput("remote: encode %s body: %v", endpoint, err)
		}
		payload = b
	}
	target := c.buildURL(endpoint)

	retries := 0
	if method == http.MethodGet {
		retries = 1
	}
	for attempt := 0; ; attempt++ {
		err := c.do(ctx, method, target, endpoint, payload, out)
		if err == nil {
			return nil
		}
		if attempt >= retries || !storeerr.Retryable(err) || ctx.Err() != nil {
			return err
		}
		c.log.Printf("remote: %s %s failed, retrying in %s: %v", method, endpoint, c.retryDelay, err)
		if sleepErr := sleep(ctx, c.retryDelay); sleepErr != nil {
			return err
		}
	}
}

func (c *Client) do(ctx context.Context, method, target, endpoint string, payload []byte, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return storeerr.InvalidInput("remote: build request %s %s: %v", method, endpoint, err)
	}
	for k, values := range c.headers {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(ctx, endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(ctx, endpoint, err)
	}

	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return storeerr.RequestRejected(endpoint, resp.StatusCode, messageOf(raw, resp.Status))
	case resp.StatusCode >= 500:
		return storeerr.ServerError(endpoint, resp.StatusCode, messageOf(raw, resp.Status))
	}

	if out == nil {
		if len(bytes.TrimSpace(raw)) > 0 && !json.Valid(raw) {
			return storeerr.MalformedResponse(endpoint, errors.New("invalid JSON body"))
		}
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return storeerr.MalformedResponse(endpoint, err)
	}
	return nil
}

func transportError(ctx context.Context, endpoint string, err error) error {
	var uerr *url.Error
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &uerr) && uerr.Timeout()) {
		return storeerr.Timeout(endpoint, err)
	}
	return storeerr.ConnectionFailed(endpoint, err)
}

// messageOf prefers the error text the API put in the body.
func messageOf(raw []byte, status string) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return status
}

func (c *Client) buildURL(endpoint string) string {
	p, query, _ := strings.Cut(endpoint, "?")
	u := c.baseURL.JoinPath(p)
	u.RawQuery = query
	return u.String()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func escape(s string) string { return url.PathEscape(s) }
