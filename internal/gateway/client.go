package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/luke-core/internal/infrastructure/metrics"
)

// DefaultReconnectDelay is the flat delay before an observation is reopened.
const DefaultReconnectDelay = 500 * time.Millisecond

// maxBodySize caps how much of a gateway response is read.
const maxBodySize = 1 << 20

// Logger defines the logging interface used by the Client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config holds the settings of a gateway client.
type Config struct {
	// Service is the gateway's host:port.
	Service string

	// ReconnectDelay overrides DefaultReconnectDelay when positive.
	ReconnectDelay time.Duration

	// RequestTimeout bounds one GET/POST. Zero means no timeout.
	RequestTimeout time.Duration
}

// Client talks to devices through the CoAP gateway.
//
// GET and POST are forwarded by the gateway's /coap endpoint; observations
// are WebSocket connections to /coap_observe. The client never retries a
// request. It only retries observations.
type Client struct {
	service        string
	reconnectDelay time.Duration
	httpClient     *http.Client
	dialer         *websocket.Dialer
	logger         Logger
	metrics        *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger for request and observation failures.
func WithLogger(logger Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics records transport metrics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithHTTPClient replaces the HTTP client used for GET/POST.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithDialer replaces the WebSocket dialer used for observations.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// New creates a gateway client.
func New(cfg Config, opts ...Option) *Client {
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}

	c := &Client{
		service:        cfg.Service,
		reconnectDelay: delay,
		httpClient:     &http.Client{Timeout: cfg.RequestTimeout},
		dialer:         websocket.DefaultDialer,
		logger:         noopLogger{},
		metrics:        metrics.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Service returns the gateway's host:port.
func (c *Client) Service() string {
	return c.service
}

// RequestURL returns the gateway URL that forwards GET/POST to resourceURL.
func (c *Client) RequestURL(resourceURL string) string {
	return (&url.URL{
		Scheme:   "http",
		Host:     c.service,
		Path:     "/coap",
		RawQuery: url.Values{"target": {resourceURL}}.Encode(),
	}).String()
}

// ObserveURL returns the gateway URL that streams observations of resourceURL.
func (c *Client) ObserveURL(resourceURL string) string {
	return (&url.URL{
		Scheme:   "ws",
		Host:     c.service,
		Path:     "/coap_observe",
		RawQuery: url.Values{"target": {resourceURL}}.Encode(),
	}).String()
}

// Response is a completed gateway response with a 2xx status.
type Response struct {
	// URL is the resource the request was addressed to.
	URL         string
	Status      int
	ContentType string
	Body        []byte
}

// Fetch performs a GET of resourceURL through the gateway.
//
// accept, when non-empty, is sent as the Accept header. Network failures
// return ErrRequestFailed and non-2xx answers return ErrStatus. Both are
// logged, and neither is retried.
func (c *Client) Fetch(ctx context.Context, resourceURL, accept string) (*Response, error) {
	if resourceURL == "" {
		return nil, ErrInvalidResource
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.RequestURL(resourceURL), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	return c.do(req, resourceURL)
}

// Send POSTs payload to resourceURL through the gateway.
//
// payload is encoded per contentType (JSON when empty, CBOR for
// application/cbor); a []byte payload is sent verbatim. Failures follow the
// same policy as Fetch.
func (c *Client) Send(ctx context.Context, resourceURL string, payload any, contentType string) error {
	if resourceURL == "" {
		return ErrInvalidResource
	}
	if contentType == "" {
		contentType = ContentJSON
	}

	body, err := Encode(contentType, payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.RequestURL(resourceURL), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", contentType)

	_, err = c.do(req, resourceURL)
	return err
}

// RebootAll asks the gateway to reboot every device it knows.
func (c *Client) RebootAll(ctx context.Context) error {
	u := (&url.URL{Scheme: "http", Host: c.service, Path: "/reboot"}).String()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, http.NoBody)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	_, err = c.do(req, "")
	return err
}

func (c *Client) do(req *http.Request, resourceURL string) (*Response, error) {
	start := time.Now()
	method := req.Method

	resp, err := c.httpClient.Do(req)
	c.metrics.GatewayRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.GatewayRequests.WithLabelValues(method, "error").Inc()
		c.logger.Warn("gateway request failed",
			"method", method,
			"resource", resourceURL,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		c.metrics.GatewayRequests.WithLabelValues(method, "error").Inc()
		c.logger.Warn("reading gateway response failed",
			"method", method,
			"resource", resourceURL,
			"error", err,
		)
		return nil, fmt.Errorf("%w: reading body: %w", ErrRequestFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.GatewayRequests.WithLabelValues(method, "status").Inc()
		c.logger.Warn("gateway returned error status",
			"method", method,
			"resource", resourceURL,
			"status", resp.StatusCode,
			"body", string(bytes.TrimSpace(body)),
		)
		return nil, fmt.Errorf("%w: %s", ErrStatus, resp.Status)
	}

	c.metrics.GatewayRequests.WithLabelValues(method, "ok").Inc()
	c.logger.Debug("gateway request completed",
		"method", method,
		"resource", resourceURL,
		"status", resp.StatusCode,
	)

	return &Response{
		URL:         resourceURL,
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
