// Package api is a typed client for the chat backend's HTTP API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/pelusa-v/pelusa-chat-client/internal/metrics"
)

// DefaultTimeout bounds every backend call.
const DefaultTimeout = 10 * time.Second

// TokenSource yields the raw session token, or "" when signed out.
type TokenSource interface {
	Token() string
}

// Doer is the subset of *fasthttp.Client used by Client.
type Doer interface {
	DoDeadline(req *fasthttp.Request, resp *fasthttp.Response, deadline time.Time) error
}

// Client is a chat backend API client.
type Client struct {
	baseURL string
	timeout time.Duration
	tokens  TokenSource
	http    Doer
	log     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithDoer swaps the HTTP transport.
func WithDoer(d Doer) Option {
	return func(c *Client) { c.http = d }
}

// NewClient creates a new backend client.
func NewClient(baseURL string, tokens TokenSource, logger zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		timeout: DefaultTimeout,
		tokens:  tokens,
		log:     logger.With().Str("component", "api").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &fasthttp.Client{
			Name:                "pelusa-chat-client",
			ReadTimeout:         c.timeout,
			WriteTimeout:        c.timeout,
			MaxIdleConnDuration: time.Minute,
		}
	}
	return c
}

// BaseURL returns the backend root.
func (c *Client) BaseURL() string { return c.baseURL }

// request describes one backend call.
type request struct {
	method      string
	path        string
	route       string // path template for metrics and errors
	body        []byte
	contentType string
	auth        bool
}

// do performs a request and returns the response body.
func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	op := r.method + " " + r.route

	token := ""
	if r.auth {
		if c.tokens != nil {
			token = c.tokens.Token()
		}
		if token == "" {
			return nil, &Error{Kind: KindAuth, Op: op, Message: "no session token"}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, &Error{Kind: KindNetwork, Op: op, Err: err}
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + r.path)
	req.Header.SetMethod(r.method)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token != "" {
		// Raw token, not a Bearer value.
		req.Header.Set("Authorization", token)
	}
	if r.body != nil {
		ct := r.contentType
		if ct == "" {
			ct = "application/json"
		}
		req.Header.SetContentType(ct)
		req.SetBody(r.body)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	start := time.Now()
	err := c.http.DoDeadline(req, resp, deadline)
	metrics.HTTPRequestDuration.WithLabelValues(r.method, r.route).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.HTTPRequestsTotal.WithLabelValues(r.method, r.route, "transport_error").Inc()
		c.log.Debug().Err(err).Str("op", op).Msg("backend request failed")
		return nil, &Error{Kind: KindNetwork, Op: op, Err: classifyTransport(err)}
	}

	status := resp.StatusCode()
	body := append([]byte(nil), resp.Body()...)

	if status >= 400 {
		metrics.HTTPRequestsTotal.WithLabelValues(r.method, r.route, fmt.Sprintf("%dxx", status/100)).Inc()
		e := &Error{Kind: KindActionFailed, Op: op, Status: status, Message: serverMessage(body)}
		if status == fasthttp.StatusUnauthorized || status == fasthttp.StatusForbidden {
			e.Kind = KindAuth
		}
		return nil, e
	}
	metrics.HTTPRequestsTotal.WithLabelValues(r.method, r.route, "ok").Inc()
	return body, nil
}

// getJSON fetches path and decodes the data envelope into v.
func (c *Client) getJSON(ctx context.Context, path, route string, v interface{}) error {
	body, err := c.do(ctx, request{method: fasthttp.MethodGet, path: path, route: route, auth: true})
	if err != nil {
		return err
	}
	return decode(body, v, fasthttp.MethodGet+" "+route)
}

// sendJSON marshals in, sends it and decodes the response into out when non-nil.
func (c *Client) sendJSON(ctx context.Context, method, path, route string, in, out interface{}, auth bool) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode %s %s: %w", method, route, err)
		}
	}
	resp, err := c.do(ctx, request{method: method, path: path, route: route, body: body, auth: auth})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decode(resp, out, method+" "+route)
}

// FormFile is a file part of a multipart request.
type FormFile struct {
	Field       string
	Name        string
	ContentType string
	Data        []byte
}

// sendMultipart posts a multipart form.
func (c *Client) sendMultipart(ctx context.Context, path, route string, fields map[string]string, file *FormFile, out interface{}) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("encode form field %s: %w", k, err)
		}
	}
	if file != nil {
		h := make(map[string][]string)
		h["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name=%q; filename=%q`, file.Field, file.Name)}
		ct := file.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h["Content-Type"] = []string{ct}
		part, err := w.CreatePart(h)
		if err != nil {
			return fmt.Errorf("encode form file: %w", err)
		}
		if _, err := part.Write(file.Data); err != nil {
			return fmt.Errorf("encode form file: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("encode form: %w", err)
	}

	resp, err := c.do(ctx, request{
		method:      fasthttp.MethodPost,
		path:        path,
		route:       route,
		body:        buf.Bytes(),
		contentType: w.FormDataContentType(),
		auth:        true,
	})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decode(resp, out, fasthttp.MethodPost+" "+route)
}

// envelope is the backend's {data, message, success} wrapper.
type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Success *bool           `json:"success"`
}

// decode accepts both wrapped ({"data": v}) and bare bodies.
func decode(body []byte, v interface{}, op string) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && len(env.Data) > 0 && string(env.Data) != "null" {
		body = env.Data
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &Error{Kind: KindActionFailed, Op: op, Message: "unexpected response from server", Err: err}
	}
	return nil
}

// serverMessage extracts {"message"} or {"error"} from an error body.
func serverMessage(body []byte) string {
	var m struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &m); err != nil {
		return ""
	}
	if m.Message != "" {
		return m.Message
	}
	return m.Error
}

func classifyTransport(err error) error {
	if errors.Is(err, fasthttp.ErrTimeout) || errors.Is(err, fasthttp.ErrDialTimeout) {
		return fmt.Errorf("request timed out: %w", err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("request timed out: %w", err)
	}
	return err
}
