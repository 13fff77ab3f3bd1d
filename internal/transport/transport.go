// Package transport provides the generic request function every outbound
// call in resim-launch goes through: method, URL, headers and body in;
// status and body out. Non-2xx statuses are not errors at this layer;
// callers decide what a status means.
package transport

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"resty.dev/v3"

	"github.com/resim-ai/launch/internal/errs"
	"github.com/resim-ai/launch/internal/logging"
	"github.com/resim-ai/launch/internal/version"
)

// Request describes one outbound HTTP call.
type Request struct {
	Method string
	URL    string
	Header map[string]string
	Query  url.Values
	Body   []byte
}

// Response is the status and raw body of a completed call.
type Response struct {
	StatusCode int
	Body       []byte
}

// IsSuccess reports whether the status is in [200,300).
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Doer performs a single request. Implementations must not retry.
type Doer interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Client implements Doer on top of resty.
type Client struct {
	rc     *resty.Client
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets a per-request timeout. Zero leaves the transport default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.rc.SetTimeout(d)
		}
	}
}

// WithLogger sets the logger used for request tracing at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client. Retries are left disabled.
func New(opts ...Option) *Client {
	rc := resty.New()
	rc.SetHeader("User-Agent", version.UserAgent())

	c := &Client{rc: rc, logger: logging.Discard()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases idle connections held by the underlying client.
func (c *Client) Close() error {
	return c.rc.Close()
}

// Do sends req and returns the response regardless of its status. Only
// network-level failures are returned as errors, coded CodeTransport.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	r := c.rc.R().SetContext(ctx)
	for k, v := range req.Header {
		r.SetHeader(k, v)
	}
	if len(req.Query) > 0 {
		r.SetQueryParamsFromValues(req.Query)
	}
	if req.Body != nil {
		r.SetBody(req.Body)
	}

	c.logger.DebugContext(ctx, "http request", "method", req.Method, "url", req.URL)

	resp, err := r.Execute(req.Method, req.URL)
	if err != nil {
		return nil, errs.Wrap(errs.CodeTransport, req.Method+" "+redact(req.URL), err)
	}

	c.logger.DebugContext(ctx, "http response", "method", req.Method, "url", req.URL, "status", resp.StatusCode())

	return &Response{
		StatusCode: resp.StatusCode(),
		Body:       resp.Bytes(),
	}, nil
}

// redact drops the query string so page tokens and the like stay out of errors.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}

var _ Doer = (*Client)(nil)
