// Package api is the REST transport for the admin console backend.
//
// The Client holds exactly one piece of mutable state, the current access token,
// which it attaches as a bearer Authorization header. It never retries or
// refreshes; every failure comes back as an *Error.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const (
	// RequestIDHeader is set on every outgoing request.
	RequestIDHeader = "X-Request-ID"

	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

// Metrics observes transport calls.
type Metrics interface {
	ObserveRequest(endpoint string, code int, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) ObserveRequest(string, int, time.Duration) {}

// Client performs the backend's REST calls.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     zerolog.Logger
	metrics    Metrics
	nowFunc    func() time.Time

	token     string
	tokenLock sync.RWMutex
}

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the underlying http.Client.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics sets the request observer.
func WithMetrics(m Metrics) ClientOption {
	return func(c *Client) {
		if m != nil {
			c.metrics = m
		}
	}
}

// New creates a Client for the API rooted at baseURL (e.g. "http://localhost:8080/api/v1").
func New(baseURL string, options ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, errors.Wrap(err, "[api.New] invalid base URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("[api.New] base URL must be http or https, got %q", baseURL)
	}
	if u.Host == "" {
		return nil, errors.Errorf("[api.New] base URL has no host: %q", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     zerolog.Nop(),
		metrics:    noopMetrics{},
		nowFunc:    time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// SetToken sets the access token attached to subsequent requests. An empty token removes it.
func (c *Client) SetToken(token string) {
	c.tokenLock.Lock()
	defer c.tokenLock.Unlock()
	c.token = token
}

// HasToken reports whether requests are currently authenticated.
func (c *Client) HasToken() bool {
	c.tokenLock.RLock()
	defer c.tokenLock.RUnlock()
	return c.token != ""
}

func (c *Client) currentToken() string {
	c.tokenLock.RLock()
	defer c.tokenLock.RUnlock()
	return c.token
}

// call describes one REST request.
type call struct {
	endpoint string // logical name used in logs, metrics and errors
	method   string
	path     []string
	query    url.Values
	body     any
	out      any
}

func (c *Client) do(ctx context.Context, rc call) error {
	start := c.nowFunc()
	requestID := uuid.NewString()
	logger := c.logger.With().Str("endpoint", rc.endpoint).Str("request_id", requestID).Logger()

	code, err := c.roundTrip(ctx, rc, requestID)
	c.metrics.ObserveRequest(rc.endpoint, code, c.nowFunc().Sub(start))

	if err != nil {
		logger.Debug().Err(err).Int("code", code).Msg("api request failed")
		return err
	}
	logger.Debug().Int("code", code).Dur("took", c.nowFunc().Sub(start)).Msg("api request")
	return nil
}

// roundTrip performs the request and returns the normalized code alongside any error.
func (c *Client) roundTrip(ctx context.Context, rc call, requestID string) (int, error) {
	req, err := c.newRequest(ctx, rc, requestID)
	if err != nil {
		return CodeUnexpected, unexpectedError(rc.endpoint, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return CodeNetwork, networkError(rc.endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		// The status line arrived but the body was cut off.
		return CodeNetwork, networkError(rc.endpoint, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var eb errorBody
		_ = json.Unmarshal(body, &eb)
		return resp.StatusCode, &Error{
			Message:  eb.reason(),
			Code:     resp.StatusCode,
			Details:  eb.Details,
			Endpoint: rc.endpoint,
		}
	}

	if rc.out == nil {
		return resp.StatusCode, nil
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return CodeUnexpected, unexpectedError(rc.endpoint, apperrors.Wrapf(apperrors.ErrInvalidServerResponse, "empty body"))
	}
	if err := json.Unmarshal(body, rc.out); err != nil {
		return CodeUnexpected, unexpectedError(rc.endpoint, apperrors.Wrapf(apperrors.ErrInvalidServerResponse, "decode body: %v", err))
	}
	return resp.StatusCode, nil
}

func (c *Client) newRequest(ctx context.Context, rc call, requestID string) (*http.Request, error) {
	u := c.baseURL.JoinPath(rc.path...)
	if len(rc.query) > 0 {
		u.RawQuery = rc.query.Encode()
	}

	var body io.Reader
	if rc.body != nil {
		data, err := json.Marshal(rc.body)
		if err != nil {
			return nil, errors.Wrap(err, "marshal request body")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, rc.method, u.String(), body)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	if rc.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)

	if token := c.currentToken(); token != "" {
		(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(req)
	}
	return req, nil
}
