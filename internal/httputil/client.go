// Package httputil provides the storefront API client: one JSON call per
// attempt, an interceptor pipeline around it, and bounded retry.
package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/portgasray/yunnan-taste-mini-sub000/internal/config"
	"github.com/portgasray/yunnan-taste-mini-sub000/pkg/logger"
)

// Header names set by the client.
const (
	HeaderContentType    = "Content-Type"
	HeaderAuthorization  = "Authorization"
	HeaderRequestID      = "X-Request-ID"
	HeaderIdempotencyKey = "Idempotency-Key"
)

// DefaultRetries is the number of retries of a call that does not set one,
// so a failing call is attempted twice in total.
const DefaultRetries = 1

const maxBodyBytes = 8 << 20

// SettingsProvider supplies the active environment settings.
type SettingsProvider interface {
	Settings() config.Settings
}

// Request is the outgoing request descriptor. Interceptors may mutate it.
type Request struct {
	URL     string
	Method  string
	Body    any
	Headers map[string]string
	Timeout time.Duration
	// Attempt is 1 for the first attempt of a call and grows with retries.
	Attempt int
}

// Response is a received HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
	Request    *Request
	Duration   time.Duration
}

// Envelope is the uniform result of a call. Success is true exactly when
// Error is empty.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// Call describes one logical API call.
type Call struct {
	Endpoint string
	Method   string
	Body     any
	Token    string
	// Retries overrides DefaultRetries when non-nil.
	Retries *int
	// IdempotencyKey makes a POST retriable. It is sent unchanged on every
	// attempt.
	IdempotencyKey string
}

// Retries returns a pointer suitable for Call.Retries.
func Retries(n int) *int { return &n }

// RequestInterceptor receives the descriptor before it is sent and returns
// the descriptor to use. Returning nil keeps the input.
type RequestInterceptor func(ctx context.Context, req *Request) *Request

// ResponseInterceptor observes every received response, 2xx or not.
type ResponseInterceptor func(ctx context.Context, resp *Response)

// ErrorInterceptor observes transport failures, where no response arrived.
type ErrorInterceptor func(ctx context.Context, req *Request, err error)

type registered[T any] struct {
	id int
	fn T
}

type chains struct {
	request  []RequestInterceptor
	response []ResponseInterceptor
	errors   []ErrorInterceptor
}

// Client issues API calls against the active environment.
type Client struct {
	settings SettingsProvider
	http     *http.Client
	limiter  *rate.Limiter
	retries  int
	log      *logger.Logger

	mu       sync.RWMutex
	nextID   int
	request  []registered[RequestInterceptor]
	response []registered[ResponseInterceptor]
	errs     []registered[ErrorInterceptor]
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRateLimit throttles attempts to rps per second with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps > 0 {
			if burst < 1 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithDefaultRetries overrides DefaultRetries.
func WithDefaultRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retries = n
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(log *logger.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// NewClient creates a client reading settings from sp on every call.
func NewClient(sp SettingsProvider, opts ...Option) *Client {
	c := &Client{
		settings: sp,
		http:     &http.Client{},
		retries:  DefaultRetries,
		log:      logger.NewDefault("http"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UseRequest appends a request interceptor and returns its unregister func.
func (c *Client) UseRequest(fn RequestInterceptor) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.request = append(c.request, registered[RequestInterceptor]{id: id, fn: fn})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.request = removeID(c.request, id)
	}
}

// UseResponse appends a response interceptor and returns its unregister func.
func (c *Client) UseResponse(fn ResponseInterceptor) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.response = append(c.response, registered[ResponseInterceptor]{id: id, fn: fn})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.response = removeID(c.response, id)
	}
}

// UseError appends an error interceptor and returns its unregister func.
func (c *Client) UseError(fn ErrorInterceptor) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.errs = append(c.errs, registered[ErrorInterceptor]{id: id, fn: fn})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.errs = removeID(c.errs, id)
	}
}

func removeID[T any](list []registered[T], id int) []registered[T] {
	out := make([]registered[T], 0, len(list))
	for _, r := range list {
		if r.id != id {
			out = append(out, r)
		}
	}
	return out
}

func (c *Client) snapshot() chains {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var ch chains
	for _, r := range c.request {
		ch.request = append(ch.request, r.fn)
	}
	for _, r := range c.response {
		ch.response = append(ch.response, r.fn)
	}
	for _, r := range c.errs {
		ch.errors = append(ch.errors, r.fn)
	}
	return ch
}

// Do performs call. Settings and interceptors are captured once when the
// call starts and reused by its retries.
func (c *Client) Do(ctx context.Context, call Call) Envelope[json.RawMessage] {
	if call.Method == "" {
		call.Method = http.MethodGet
	}
	retries := c.retries
	if call.Retries != nil {
		retries = *call.Retries
	}
	return c.doWithRetry(ctx, c.settings.Settings(), c.snapshot(), call, retries, 1)
}

// doWithRetry executes one attempt and recurses while retries remain.
func (c *Client) doWithRetry(ctx context.Context, s config.Settings, ch chains, call Call, retriesRemaining, attempt int) Envelope[json.RawMessage] {
	req := buildRequest(s, call, attempt)
	for _, fn := range ch.request {
		if out := fn(ctx, req); out != nil {
			req = out
		}
	}

	resp, err := c.send(ctx, req)
	if err != nil {
		for _, fn := range ch.errors {
			fn(ctx, req, err)
		}
		if ctx.Err() == nil && retriesRemaining > 0 && retriable(call) {
			c.logRetry(req, 0, retriesRemaining)
			return c.doWithRetry(ctx, s, ch, call, retriesRemaining-1, attempt+1)
		}
		return Envelope[json.RawMessage]{Error: transportMessage(ctx, err), Code: 0}
	}

	for _, fn := range ch.response {
		fn(ctx, resp)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Envelope[json.RawMessage]{Success: true, Data: payload(resp.Body), Code: resp.StatusCode}
	}

	if resp.StatusCode >= 500 && retriesRemaining > 0 && retriable(call) && ctx.Err() == nil {
		c.logRetry(req, resp.StatusCode, retriesRemaining)
		return c.doWithRetry(ctx, s, ch, call, retriesRemaining-1, attempt+1)
	}
	return Envelope[json.RawMessage]{Error: ErrorMessage(resp.StatusCode, resp.Body), Code: resp.StatusCode}
}

func (c *Client) logRetry(req *Request, status, remaining int) {
	c.log.WithFields(map[string]interface{}{
		"method":    req.Method,
		"url":       req.URL,
		"status":    status,
		"attempt":   req.Attempt,
		"remaining": remaining,
	}).Debug("retrying request")
}

func buildRequest(s config.Settings, call Call, attempt int) *Request {
	headers := map[string]string{
		HeaderContentType: "application/json",
		HeaderRequestID:   uuid.NewString(),
	}
	if call.Token != "" {
		headers[HeaderAuthorization] = "Bearer " + call.Token
	}
	if call.IdempotencyKey != "" {
		headers[HeaderIdempotencyKey] = call.IdempotencyKey
	}
	return &Request{
		URL:     strings.TrimRight(s.BaseURL, "/") + call.Endpoint,
		Method:  call.Method,
		Body:    call.Body,
		Headers: headers,
		Timeout: s.Timeout,
		Attempt: attempt,
	}
}

// retriable reports whether repeating call is safe: idempotent methods
// always are, a POST only with an idempotency key.
func retriable(call Call) bool {
	switch call.Method {
	case http.MethodGet, http.MethodPut, http.MethodDelete:
		return true
	}
	return call.IdempotencyKey != ""
}

func (c *Client) send(ctx context.Context, req *Request) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	var bodyReader io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       body,
		Headers:    httpResp.Header,
		Request:    req,
		Duration:   time.Since(start),
	}, nil
}

// payload unwraps a server envelope ({"success":..,"data":..}) and returns
// the body unchanged otherwise.
func payload(body []byte) json.RawMessage {
	if len(bytes.TrimSpace(body)) == 0 {
		return json.RawMessage("null")
	}
	if gjson.ValidBytes(body) {
		if data := gjson.GetBytes(body, "data"); data.Exists() && gjson.GetBytes(body, "success").Exists() {
			return json.RawMessage(data.Raw)
		}
	}
	return json.RawMessage(body)
}

// ErrorMessage extracts a message from an error body, trying "message"
// then "error", and falls back to the status text.
func ErrorMessage(status int, body []byte) string {
	if gjson.ValidBytes(body) {
		for _, path := range []string{"message", "error"} {
			if v := gjson.GetBytes(body, path); v.Type == gjson.String && strings.TrimSpace(v.Str) != "" {
				return v.Str
			}
		}
	}
	if text := http.StatusText(status); text != "" {
		return fmt.Sprintf("HTTP %d: %s", status, text)
	}
	return fmt.Sprintf("HTTP %d", status)
}

func transportMessage(ctx context.Context, err error) string {
	if errors.Is(ctx.Err(), context.Canceled) {
		return "request canceled: " + err.Error()
	}
	return "network request failed: " + err.Error()
}

// Fetch performs call and decodes the payload into T.
func Fetch[T any](ctx context.Context, c *Client, call Call) Envelope[T] {
	raw := c.Do(ctx, call)
	return Decode[T](raw)
}

// Decode converts a raw envelope into a typed one. A payload that does not
// decode turns the envelope into a failure.
func Decode[T any](raw Envelope[json.RawMessage]) Envelope[T] {
	if !raw.Success {
		return Envelope[T]{Error: raw.Error, Code: raw.Code}
	}
	var data T
	if len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, &data); err != nil {
			return Envelope[T]{Error: fmt.Sprintf("failed to decode response: %v", err), Code: raw.Code}
		}
	}
	return Envelope[T]{Success: true, Data: data, Code: raw.Code}
}
