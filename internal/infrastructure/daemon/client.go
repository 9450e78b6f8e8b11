package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gtechsd/ganesha-go/internal/domain"
	"github.com/gtechsd/ganesha-go/internal/ports"
)

const (
	defaultAttempts = 3
	defaultBackoff  = 200 * time.Millisecond
	// responseGrace is added to the execution timeout when waiting for a reply.
	responseGrace = 30 * time.Second
)

// Client submits requests to the daemon. Only connection establishment is
// retried; a request that reached the daemon may already have run.
type Client struct {
	endpoint string
	attempts int
	backoff  time.Duration
	logger   ports.Logger
	dial     func(ctx context.Context, endpoint string) (net.Conn, error)
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithRetry sets the number of connection attempts and the initial backoff.
func WithRetry(attempts int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		if attempts > 0 {
			c.attempts = attempts
		}
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

// WithClientLogger logs connection retries.
func WithClientLogger(logger ports.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient targets endpoint, or DefaultEndpoint when empty.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{endpoint: endpoint, attempts: defaultAttempts, backoff: defaultBackoff, dial: dial}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit implements ports.DaemonClient. Transport failures wrap
// domain.ErrTransport; policy denials and execution failures come back as an
// unsuccessful result.
func (c *Client) Submit(ctx context.Context, req domain.ExecutionRequest) (domain.ExecutionResult, error) {
	conn, err := c.connect(ctx)
	if err != nil {
		return domain.ExecutionResult{}, err
	}
	defer conn.Close()

	payload, err := json.Marshal(NewRequest(req))
	if err != nil {
		return domain.ExecutionResult{}, err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(domain.ResponseWriteTimeout))
	if _, err := conn.Write(append(payload, '\n')); err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("%w: write request: %v", domain.ErrTransport, err)
	}

	wait := req.Timeout
	if wait <= 0 {
		wait = domain.DefaultExecutionTimeout
	}
	deadline := time.Now().Add(wait + responseGrace)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetReadDeadline(deadline)

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return domain.ExecutionResult{}, fmt.Errorf("%w: read response: %v", domain.ErrTransport, err)
	}
	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("%w: decode response: %v", domain.ErrTransport, err)
	}
	return resp.Result(), nil
}

// Status implements ports.DaemonClient. It only checks that the endpoint
// accepts connections.
func (c *Client) Status(ctx context.Context) domain.DaemonStatus {
	status := domain.DaemonStatus{Endpoint: c.endpoint}
	conn, err := c.dial(ctx, c.endpoint)
	if err != nil {
		status.Detail = err.Error()
		return status
	}
	conn.Close()
	status.Reachable = true
	status.Detail = "listening"
	return status
}

// Endpoint returns the daemon address this client targets.
func (c *Client) Endpoint() string {
	return c.endpoint
}

func (c *Client) connect(ctx context.Context) (net.Conn, error) {
	backoff := c.backoff
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		conn, err := c.dial(ctx, c.endpoint)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if ctx.Err() != nil || attempt == c.attempts {
			break
		}
		if c.logger != nil {
			c.logger.Debug("daemon dial failed, retrying", map[string]interface{}{
				"attempt": attempt,
				"backoff": backoff.String(),
				"error":   err.Error(),
			})
		}
		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
		case <-time.After(backoff):
		}
		if ctx.Err() != nil {
			break
		}
		backoff *= 2
	}
	if lastErr == nil {
		lastErr = errors.New("no connection attempts made")
	}
	return nil, fmt.Errorf("%w at %s: %v", domain.ErrTransport, c.endpoint, lastErr)
}

var _ ports.DaemonClient = (*Client)(nil)
