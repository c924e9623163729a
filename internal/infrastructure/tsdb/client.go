package tsdb

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/nerrad567/soilsense-core/internal/infrastructure/config"
	"github.com/nerrad567/soilsense-core/internal/measurement"
)

// Default timeouts for store operations.
const (
	defaultWriteTimeout  = 5 * time.Second
	defaultHealthTimeout = 5 * time.Second

	// maxErrorBody bounds how much of an error response is quoted in errors.
	maxErrorBody = 512
)

// Client writes measurements to a line-protocol HTTP endpoint such as
// InfluxDB 3's /api/v3/write_lp.
//
// Each Write is one authenticated POST carrying one statement. Retrying is
// left to the caller (see package persistence).
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	writeURL   string
	healthURL  string
	token      string
	timeout    time.Duration
	httpClient *http.Client

	closed bool
	mu     sync.RWMutex
}

// New creates a client for the endpoint in cfg.
//
// No request is made; use HealthCheck to probe the server.
//
// Parameters:
//   - cfg: Store configuration (url, token, timeout)
//
// Returns:
//   - *Client: Ready for use
//   - error: wrapping ErrInvalidURL if cfg.URL is not an absolute http(s) URL
func New(cfg config.StoreConfig) (*Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, cfg.URL)
	}

	timeout := defaultWriteTimeout
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}

	health := url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/health"}

	return &Client{
		writeURL:   u.String(),
		healthURL:  health.String(),
		token:      cfg.Token,
		timeout:    timeout,
		httpClient: &http.Client{},
	}, nil
}

// Write sends one measurement as a line-protocol statement.
//
// Parameters:
//   - ctx: Cancels the request; a per-request timeout is applied on top
//   - m: The measurement to write
//   - table: Destination table (line-protocol measurement name)
//
// Returns:
//   - bool: true iff the server answered with a 2xx status
//   - error: wrapping ErrWriteFailed for transport errors, timeouts and
//     non-2xx responses
func (c *Client) Write(ctx context.Context, m measurement.Measurement, table string) (bool, error) {
	if c.isClosed() {
		return false, ErrClosed
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body := m.WriteStatement(table)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.writeURL, bytes.NewBufferString(body))
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return false, fmt.Errorf("%w: HTTP %d: %s", ErrWriteFailed, resp.StatusCode, bytes.TrimSpace(msg))
	}

	// Drain body to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	return true, nil
}

// HealthCheck verifies the server is reachable via GET /health on the
// write endpoint's host.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultHealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.healthURL, nil)
	if err != nil {
		return fmt.Errorf("tsdb health check: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tsdb health check: %w", err)
	}
	defer resp.Body.Close()
	// Drain body to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tsdb health check: status %d", resp.StatusCode)
	}

	return nil
}

// Close releases idle connections. Writes after Close return ErrClosed.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
