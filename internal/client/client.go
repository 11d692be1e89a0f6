// Package client is the HTTP transport used by the entity services. It binds
// a base URL and returns response bodies decoded in key order, leaving shape
// interpretation to the normalize package.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fairyhunter13/inventory-manager/internal/model"
	"github.com/fairyhunter13/inventory-manager/internal/obs"
)

// APIError is returned when the API responds with a non-2xx status.
type APIError struct {
	Status  int
	Message string
	Body    any
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api %d", e.Status)
	}
	return fmt.Sprintf("api %d: %s", e.Status, e.Message)
}

// Client issues JSON requests against one API base URL.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	header     http.Header
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

// WithTimeout sets the HTTP timeout on a copy of the current http.Client, so
// a shared client such as http.DefaultClient is left untouched.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := &http.Client{}
		if c.HTTPClient != nil {
			cp := *c.HTTPClient
			hc = &cp
		}
		hc.Timeout = d
		c.HTTPClient = hc
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.header.Add(key, value) }
}

// New creates a client. An empty baseURL produces same-origin relative URLs.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		header:     make(http.Header),
	}
	for _, o := range opts {
		o(c)
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return c
}

type ctxKey int

const ctxKeyRequestID ctxKey = iota

// WithRequestID attaches a request id forwarded as X-Request-Id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string) (any, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (any, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

// Patch issues a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body any) (any, error) {
	return c.do(ctx, http.MethodPatch, path, body)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (any, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body any) (out any, err error) {
	ctx, span := obs.Tracer.Start(ctx, "client."+strings.ToLower(method),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("client: encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id, _ := ctx.Value(ctxKeyRequestID).(string); id != "" {
		req.Header.Set("X-Request-Id", id)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("client: read %s %s: %w", method, path, err)
	}
	data := decodeBody(raw)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Message: errorMessage(data), Body: data}
	}
	return data, nil
}

// decodeBody parses JSON bodies and falls back to the raw text otherwise.
func decodeBody(raw []byte) any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	v, err := model.Decode(raw)
	if err != nil {
		return string(raw)
	}
	return v
}

func errorMessage(data any) string {
	switch t := data.(type) {
	case *model.Document:
		for _, k := range []string{"message", "error", "details"} {
			if s, ok := t.String(k); ok && s != "" {
				return s
			}
		}
	case string:
		return strings.TrimSpace(t)
	}
	return ""
}
