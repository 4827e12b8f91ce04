// Package apiclient is the authenticated JSON request executor used by
// every scenario step.
//
// Failures come in two distinguishable kinds: *UnreachableError for
// transport problems (the run cannot continue) and *HTTPError for non-2xx
// responses (the scenario decides). A 204 response is a success with no
// body.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/tickcheck/internal/credential"
)

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Logger  *zap.Logger
	Metrics *Metrics

	// HTTPClient overrides the default client. Its CheckRedirect is
	// replaced so redirects are always surfaced to the caller.
	HTTPClient *http.Client
}

// Client executes requests against the configured base URL.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
	metrics *Metrics
	seq     atomic.Int64
}

// New creates a Client.
func New(opts Options) (*Client, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", opts.BaseURL)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	// A 302 from /login is a success signal, and API redirects are
	// reported rather than silently followed.
	hc.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    hc,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// BaseURL returns the configured base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Request describes one API call.
type Request struct {
	Method     string
	Endpoint   string // path relative to the base URL, may carry a query
	Query      url.Values
	Payload    any        // JSON-encoded when non-nil
	Form       url.Values // form-encoded when non-nil; takes precedence over Payload
	Credential credential.Credential
	Actor      string // label recorded in the CallRecord
}

// Response is a completed call.
type Response struct {
	Status    int
	Body      any // decoded JSON (numbers as json.Number) or raw text
	Raw       []byte
	NoContent bool
	Header    http.Header
	Record    CallRecord
}

// CallRecord is the ephemeral diagnostic record of one call.
type CallRecord struct {
	Seq      int64         `json:"seq"`
	Method   string        `json:"method"`
	Endpoint string        `json:"endpoint"`
	Payload  any           `json:"payload,omitempty"`
	Actor    string        `json:"actor,omitempty"`
	Status   int           `json:"status,omitempty"`
	Body     any           `json:"body,omitempty"`
	Err      string        `json:"error,omitempty"`
	Duration time.Duration `json:"-"`
}

// Call executes req. The returned Response is never nil; on failure it
// still carries the CallRecord. Errors are *UnreachableError or *HTTPError.
func (c *Client) Call(ctx context.Context, req Request) (*Response, error) {
	resp, err := c.do(ctx, req)
	if err != nil {
		return resp, err
	}

	if resp.Status < 200 || resp.Status > 299 {
		herr := &HTTPError{
			Method:   req.Method,
			Endpoint: resp.Record.Endpoint,
			Status:   resp.Status,
			Body:     string(resp.Raw),
		}
		resp.Record.Err = herr.Error()
		c.observe(req.Method, resp.Record.Endpoint, "http_error", resp.Record.Duration)
		c.logger.Warn("api call failed",
			zap.String("method", req.Method),
			zap.String("endpoint", resp.Record.Endpoint),
			zap.String("actor", req.Actor),
			zap.Int("status", resp.Status),
			zap.String("body", truncate(string(resp.Raw), 512)),
		)
		return resp, herr
	}

	c.observe(req.Method, resp.Record.Endpoint, "ok", resp.Record.Duration)
	c.logger.Debug("api call",
		zap.Int64("seq", resp.Record.Seq),
		zap.String("method", req.Method),
		zap.String("endpoint", resp.Record.Endpoint),
		zap.String("actor", req.Actor),
		zap.Int("status", resp.Status),
		zap.Duration("duration", resp.Record.Duration),
	)
	return resp, nil
}

// do performs the transport half of a call without classifying status.
func (c *Client) do(ctx context.Context, req Request) (*Response, error) {
	endpoint := c.endpoint(req.Endpoint, req.Query)
	resp := &Response{Record: CallRecord{
		Seq:      c.seq.Add(1),
		Method:   req.Method,
		Endpoint: endpoint,
		Payload:  req.Payload,
		Actor:    req.Actor,
	}}
	if req.Form != nil {
		resp.Record.Payload = req.Form.Encode()
	}

	httpReq, err := c.newRequest(ctx, req, endpoint)
	if err != nil {
		resp.Record.Err = err.Error()
		return resp, err
	}

	start := time.Now()
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		resp.Record.Duration = time.Since(start)
		return resp, c.unreachable(ctx, resp, req, endpoint, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	resp.Record.Duration = time.Since(start)
	if err != nil {
		return resp, c.unreachable(ctx, resp, req, endpoint, fmt.Errorf("read body: %w", err))
	}

	resp.Status = httpResp.StatusCode
	resp.Header = httpResp.Header
	resp.Raw = raw
	resp.NoContent = httpResp.StatusCode == http.StatusNoContent
	if !resp.NoContent {
		resp.Body = decodeBody(raw)
	}
	resp.Record.Status = resp.Status
	resp.Record.Body = resp.Body
	return resp, nil
}

func (c *Client) newRequest(ctx context.Context, req Request, endpoint string) (*http.Request, error) {
	var body io.Reader
	contentType := ""
	switch {
	case req.Form != nil:
		body = strings.NewReader(req.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case req.Payload != nil:
		data, err := json.Marshal(req.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode payload for %s %s: %w", req.Method, endpoint, err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request %s %s: %w", req.Method, endpoint, err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	req.Credential.Apply(httpReq)
	return httpReq, nil
}

func (c *Client) unreachable(ctx context.Context, resp *Response, req Request, endpoint string, err error) error {
	uerr := &UnreachableError{Method: req.Method, Endpoint: endpoint, Err: err}
	resp.Record.Err = uerr.Error()
	if ctx.Err() != nil {
		c.observe(req.Method, endpoint, "cancelled", resp.Record.Duration)
		c.logger.Warn("request cancelled",
			zap.String("method", req.Method),
			zap.String("endpoint", endpoint),
			zap.Error(ctx.Err()),
		)
		return uerr
	}
	c.observe(req.Method, endpoint, "unreachable", resp.Record.Duration)
	c.logger.Error("service unreachable",
		zap.String("method", req.Method),
		zap.String("endpoint", endpoint),
		zap.Error(err),
	)
	return uerr
}

// endpoint joins the path with extra query values, keeping any query
// already present in the path.
func (c *Client) endpoint(path string, query url.Values) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(query) == 0 {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + query.Encode()
}

func (c *Client) observe(method, endpoint, outcome string, d time.Duration) {
	if c.metrics != nil {
		c.metrics.Observe(method, endpoint, outcome, d)
	}
}

// decodeBody decodes JSON with json.Number so integer ids survive, and
// falls back to the raw text for non-JSON bodies such as login pages.
func decodeBody(raw []byte) any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return string(raw)
	}
	return v
}

// Health probes the service liveness endpoint.
func (c *Client) Health(ctx context.Context) (*Response, error) {
	return c.Call(ctx, Request{Method: http.MethodGet, Endpoint: "/actuator/health"})
}

// ErrNoSession is returned by Login when the server accepted the form but
// issued no session cookie.
var ErrNoSession = errors.New("login response carried no session cookie")

// Login performs a form-encoded session login and returns the session
// cookie as a Credential. 200, 302 and 303 count as success unless the
// redirect points back at the login page with an error marker.
func (c *Client) Login(ctx context.Context, username, password, cookieLabel string) (credential.Credential, error) {
	if cookieLabel == "" {
		cookieLabel = credential.DefaultCookieLabel
	}
	req := Request{
		Method:   http.MethodPost,
		Endpoint: "/login",
		Form:     url.Values{"username": {username}, "password": {password}},
		Actor:    username,
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return credential.Credential{}, err
	}

	ok := resp.Status == http.StatusOK || resp.Status == http.StatusFound || resp.Status == http.StatusSeeOther
	if loc := resp.Header.Get("Location"); ok && strings.Contains(loc, "error") {
		ok = false
	}
	if !ok {
		c.observe(req.Method, resp.Record.Endpoint, "http_error", resp.Record.Duration)
		return credential.Credential{}, &HTTPError{
			Method:   req.Method,
			Endpoint: resp.Record.Endpoint,
			Status:   resp.Status,
			Body:     string(resp.Raw),
		}
	}
	c.observe(req.Method, resp.Record.Endpoint, "ok", resp.Record.Duration)

	for _, ck := range (&http.Response{Header: resp.Header}).Cookies() {
		if ck.Name == cookieLabel && ck.Value != "" {
			return credential.Cookie(ck.Name + "=" + ck.Value), nil
		}
	}
	return credential.Credential{}, ErrNoSession
}
