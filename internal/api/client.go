// Package api provides the authenticated HTTP dispatcher for the PureCloud API.
//
// Every API call in the CLI goes through Client: it attaches the session's
// bearer token at send time, applies the request timeout, and issues exactly
// one HTTP request. Nothing here retries.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/purecloudlabs/purecloud-cli/internal/hostutil"
	"github.com/purecloudlabs/purecloud-cli/internal/output"
	"github.com/purecloudlabs/purecloud-cli/internal/session"
	"github.com/purecloudlabs/purecloud-cli/internal/version"
)

// DefaultTimeout bounds a single request when no timeout is configured.
const DefaultTimeout = 2000 * time.Millisecond

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// Client issues authenticated requests on behalf of a session.
type Client struct {
	httpClient *http.Client
	session    *session.Session
	timeout    time.Duration
	hooks      Hooks
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHooks installs request observers.
func WithHooks(h Hooks) Option {
	return func(c *Client) {
		if h != nil {
			c.hooks = h
		}
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client that reads its token and API host from s.
func NewClient(s *session.Session, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		session: s,
		timeout: DefaultTimeout,
		hooks:   NoopHooks{},
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the session the client reads its token from.
func (c *Client) Session() *session.Session {
	return c.session
}

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// SetLogger replaces the logger. Call it before sending requests.
func (c *Client) SetLogger(l *slog.Logger) {
	if l != nil {
		c.logger = l
	}
}

// Response wraps an API response.
type Response struct {
	Data       json.RawMessage
	StatusCode int
	Headers    http.Header
}

// UnmarshalData unmarshals the response data into the given value.
func (r *Response) UnmarshalData(v any) error {
	if len(r.Data) == 0 {
		return errors.New("empty response body")
	}
	return json.Unmarshal(r.Data, v)
}

// Call is a prepared request. The token is not read until Send.
type Call struct {
	client *Client
	method string
	target string
	body   []byte
}

// NewCall validates the method and serializes body to JSON.
// A nil body sends no payload and no Content-Type header.
func (c *Client) NewCall(method, target string, body any) (*Call, error) {
	method = strings.ToUpper(method)
	if !allowedMethods[method] {
		return nil, output.ErrUsageHint(
			fmt.Sprintf("Unsupported HTTP method: %s", method),
			"Use GET, POST, PUT, PATCH or DELETE",
		)
	}
	if target == "" {
		return nil, output.ErrUsage("Request URL is required")
	}

	call := &Call{client: c, method: method, target: target}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, output.ErrUsageHint("Request body is not valid JSON", err.Error())
		}
		call.body = data
	}
	return call, nil
}

// Method returns the HTTP method.
func (call *Call) Method() string { return call.method }

// Body returns the serialized JSON payload, or nil.
func (call *Call) Body() []byte { return call.body }

// URL returns the fully qualified request URL. Relative paths resolve against
// the session's current API host.
func (call *Call) URL() string {
	return hostutil.Join(call.client.session.APIHost(), call.target)
}

// Send issues the request exactly once.
func (call *Call) Send(ctx context.Context) (*Response, error) {
	c := call.client
	info := RequestInfo{Method: call.method, URL: call.URL(), HasBody: call.body != nil}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx = c.hooks.OnRequestStart(ctx, info)
	start := time.Now()

	resp, err := c.send(ctx, call, info.URL)

	result := RequestResult{Duration: time.Since(start), Error: err}
	if resp != nil {
		result.StatusCode = resp.StatusCode
	} else if e, ok := err.(*output.Error); ok {
		result.StatusCode = e.HTTPStatus
	}
	c.hooks.OnRequestEnd(ctx, info, result)

	return resp, err
}

func (c *Client) send(ctx context.Context, call *Call, target string) (*Response, error) {
	var bodyReader io.Reader
	if call.body != nil {
		bodyReader = bytes.NewReader(call.body)
	}

	req, err := http.NewRequestWithContext(ctx, call.method, target, bodyReader)
	if err != nil {
		return nil, output.ErrUsageHint("Invalid request URL", err.Error())
	}

	// Read at send time so a token set after NewCall is honored.
	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "bearer "+token)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if call.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("api request", "method", call.method, "path", req.URL.Path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(ctx, err)
	}

	c.logger.Debug("api response", "method", call.method, "path", req.URL.Path, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp, respBody, target)
	}

	return &Response{
		Data:       respBody,
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
	}, nil
}

// Do builds and sends a call in one step.
func (c *Client) Do(ctx context.Context, method, target string, body any) (*Response, error) {
	call, err := c.NewCall(method, target, body)
	if err != nil {
		return nil, err
	}
	return call.Send(ctx)
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, target string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, target, nil)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, target string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPost, target, body)
}

// Put performs a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, target string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPut, target, body)
}

// Patch performs a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, target string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPatch, target, body)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, target string) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, target, nil)
}

func transportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return output.ErrTimeout(err)
	}
	return output.ErrNetwork(err)
}

func statusError(resp *http.Response, body []byte, target string) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return output.ErrAuth("Authentication failed")
	case http.StatusForbidden:
		return output.ErrForbidden(apiMessage(body, "Access denied"))
	case http.StatusNotFound:
		return output.ErrNotFound("Resource", target)
	case http.StatusTooManyRequests:
		return output.ErrRateLimit(parseRetryAfter(resp.Header.Get("Retry-After")))
	default:
		msg := apiMessage(body, fmt.Sprintf("Request failed (HTTP %d)", resp.StatusCode))
		return output.ErrAPI(resp.StatusCode, msg)
	}
}

// apiMessage extracts the message from a PureCloud error body.
func apiMessage(body []byte, fallback string) string {
	var apiErr struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &apiErr) == nil {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		if apiErr.Error != "" {
			return apiErr.Error
		}
	}
	return fallback
}

func parseRetryAfter(header string) int {
	if seconds, err := strconv.Atoi(header); err == nil {
		return seconds
	}
	return 0
}
