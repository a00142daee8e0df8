package httputil

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portgasray/yunnan-taste-mini-sub000/internal/config"
	"github.com/portgasray/yunnan-taste-mini-sub000/pkg/logger"
)

// staticSettings is a SettingsProvider whose settings can be swapped.
type staticSettings struct {
	mu sync.Mutex
	s  config.Settings
}

func (p *staticSettings) Settings() config.Settings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.s
}

func (p *staticSettings) set(s config.Settings) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.s = s
}

func newTestClient(baseURL string, opts ...Option) *Client {
	sp := &staticSettings{s: config.Settings{BaseURL: baseURL, Timeout: 2 * time.Second}}
	opts = append([]Option{WithLogger(logger.NewNop())}, opts...)
	return NewClient(sp, opts...)
}

type recordedRequest struct {
	Method  string
	Path    string
	Body    string
	Headers http.Header
}

func recordingServer(t *testing.T, handler func(n int, w http.ResponseWriter, r *http.Request)) (*httptest.Server, func() []recordedRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []recordedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		seen = append(seen, recordedRequest{Method: r.Method, Path: r.URL.RequestURI(), Body: string(body), Headers: r.Header.Clone()})
		n := len(seen)
		mu.Unlock()
		handler(n, w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedRequest(nil), seen...)
	}
}

func TestDo_SuccessEnvelope(t *testing.T) {
	srv, _ := recordingServer(t, func(_ int, w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":[{"id":"p1"}]}`))
	})
	c := newTestClient(srv.URL)

	env := c.Do(context.Background(), Call{Endpoint: "/products/featured"})

	assert.True(t, env.Success)
	assert.Empty(t, env.Error)
	assert.Equal(t, http.StatusOK, env.Code)
	assert.JSONEq(t, `[{"id":"p1"}]`, string(env.Data))
}

func TestDo_BarePayloadIsNotUnwrapped(t *testing.T) {
	srv, _ := recordingServer(t, func(_ int, w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":"x","id":"p1"}`))
	})
	c := newTestClient(srv.URL)

	env := c.Do(context.Background(), Call{Endpoint: "/products/p1"})

	require.True(t, env.Success)
	assert.JSONEq(t, `{"data":"x","id":"p1"}`, string(env.Data))
}

func TestDo_EmptyBodyIsNull(t *testing.T) {
	srv, _ := recordingServer(t, func(_ int, w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	c := newTestClient(srv.URL)

	env := c.Do(context.Background(), Call{Endpoint: "/cart", Method: http.MethodDelete})

	require.True(t, env.Success)
	assert.Equal(t, "null", string(env.Data))
}

func TestDo_HeadersAndBody(t *testing.T) {
	srv, seen := recordingServer(t, func(_ int, w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	c := newTestClient(srv.URL + "/")

	env := c.Do(context.Background(), Call{
		Endpoint: "/user/profile",
		Method:   http.MethodPut,
		Body:     map[string]string{"nickname": "云"},
		Token:    "tok",
	})
	require.True(t, env.Success)

	reqs := seen()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPut, reqs[0].Method)
	assert.Equal(t, "/user/profile", reqs[0].Path)
	assert.JSONEq(t, `{"nickname":"云"}`, reqs[0].Body)
	assert.Equal(t, "application/json", reqs[0].Headers.Get(HeaderContentType))
	assert.Equal(t, "Bearer tok", reqs[0].Headers.Get(HeaderAuthorization))
	assert.NotEmpty(t, reqs[0].Headers.Get(HeaderRequestID))
}

func TestDo_NoTokenNoAuthorization(t *testing.T) {
	srv, seen := recordingServer(t, func(_ int, w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	c := newTestClient(srv.URL)

	c.Do(context.Background(), Call{Endpoint: "/categories"})

	reqs := seen()
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].Headers.Get(HeaderAuthorization))
}

func TestDo_RetriesServerErrors(t *testing.T) {
	tests := []struct {
		name     string
		retries  *int
		attempts int
	}{
		{"default", nil, 1 + DefaultRetries},
		{"none", Retries(0), 1},
		{"three", Retries(3), 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, seen := recordingServer(t, func(_ int, w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"message":"维护中"}`))
			})
			c := newTestClient(srv.URL)

			env := c.Do(context.Background(), Call{Endpoint: "/products/featured", Retries: tt.retries})

			assert.False(t, env.Success)
			assert.Equal(t, http.StatusServiceUnavailable, env.Code)
			assert.Equal(t, "维护中", env.Error)

			reqs := seen()
			require.Len(t, reqs, tt.attempts)
			for _, r := range reqs {
				assert.Equal(t, reqs[0].Method, r.Method)
				assert.Equal(t, reqs[0].Path, r.Path)
				assert.Equal(t, reqs[0].Body, r.Body)
			}
		})
	}
}

func TestDo_RetryThenSuccess(t *testing.T) {
	srv, seen := recordingServer(t, func(n int, w http.ResponseWriter, _ *http.Request) {
		if n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":"p2"}}`))
	})
	c := newTestClient(srv.URL)

	env := c.Do(context.Background(), Call{Endpoint: "/products/p2"})

	assert.True(t, env.Success)
	assert.Len(t, seen(), 2)
}

func TestDo_ClientErrorNotRetried(t *testing.T) {
	srv, seen := recordingServer(t, func(_ int, w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"价格无效"}`))
	})
	c := newTestClient(srv.URL)

	env := c.Do(context.Background(), Call{Endpoint: "/cart/items/c1", Method: http.MethodPut, Retries: Retries(3)})

	assert.False(t, env.Success)
	assert.Equal(t, http.StatusUnprocessableEntity, env.Code)
	assert.Equal(t, "价格无效", env.Error)
	assert.Len(t, seen(), 1)
}

func TestDo_RedirectStatusIsFailure(t *testing.T) {
	srv, _ := recordingServer(t, func(_ int, w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	})
	c := newTestClient(srv.URL)

	env := c.Do(context.Background(), Call{Endpoint: "/categories"})

	assert.False(t, env.Success)
	assert.Equal(t, http.StatusNotModified, env.Code)
	assert.Equal(t, "HTTP 304: Not Modified", env.Error)
}

func TestDo_PostWithoutKeyAttemptedOnce(t *testing.T) {
	srv, seen := recordingServer(t, func(_ int, w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	c := newTestClient(srv.URL)

	env := c.Do(context.Background(), Call{Endpoint: "/cart/items", Method: http.MethodPost, Body: map[string]int{"quantity": 1}, Retries: Retries(2)})

	assert.False(t, env.Success)
	assert.Len(t, seen(), 1)
}

func TestDo_PostWithKeyRetriedWithSameKey(t *testing.T) {
	srv, seen := recordingServer(t, func(n int, w http.ResponseWriter, _ *http.Request) {
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":"o1"}}`))
	})
	c := newTestClient(srv.URL)

	env := c.Do(context.Background(), Call{
		Endpoint:       "/orders",
		Method:         http.MethodPost,
		Body:           map[string]string{"addressId": "a1"},
		Retries:        Retries(2),
		IdempotencyKey: "order-key",
	})

	require.True(t, env.Success)
	assert.Equal(t, http.StatusCreated, env.Code)
	reqs := seen()
	require.Len(t, reqs, 3)
	for _, r := range reqs {
		assert.Equal(t, "order-key", r.Headers.Get(HeaderIdempotencyKey))
	}
	assert.NotEqual(t, reqs[0].Headers.Get(HeaderRequestID), reqs[1].Headers.Get(HeaderRequestID))
}

func TestDo_TransportErrorCodeZero(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := newTestClient(url)
	var errs int32
	c.UseError(func(context.Context, *Request, error) { atomic.AddInt32(&errs, 1) })

	env := c.Do(context.Background(), Call{Endpoint: "/categories"})

	assert.False(t, env.Success)
	assert.Equal(t, 0, env.Code)
	assert.Contains(t, env.Error, "network request failed")
	assert.Equal(t, int32(1+DefaultRetries), atomic.LoadInt32(&errs))
}

func TestDo_TimeoutIsTransportError(t *testing.T) {
	srv, seen := recordingServer(t, func(_ int, w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})
	sp := &staticSettings{s: config.Settings{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}}
	c := NewClient(sp, WithLogger(logger.NewNop()))

	env := c.Do(context.Background(), Call{Endpoint: "/products/featured", Retries: Retries(0)})

	assert.False(t, env.Success)
	assert.Equal(t, 0, env.Code)
	assert.Len(t, seen(), 1)
}

func TestDo_CanceledContextStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv, seen := recordingServer(t, func(_ int, w http.ResponseWriter, _ *http.Request) {
		cancel()
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	c := newTestClient(srv.URL)

	env := c.Do(ctx, Call{Endpoint: "/products/featured", Retries: Retries(5)})

	assert.False(t, env.Success)
	assert.Len(t, seen(), 1)
}

func TestDo_CanceledBeforeSend(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	srv, seen := recordingServer(t, func(_ int, w http.ResponseWriter, _ *http.Request) {})
	c := newTestClient(srv.URL)

	env := c.Do(ctx, Call{Endpoint: "/categories", Retries: Retries(3)})

	assert.False(t, env.Success)
	assert.Equal(t, 0, env.Code)
	assert.Contains(t, env.Error, "request canceled")
	assert.Empty(t, seen())
}

func TestDo_SettingsSnapshotAcrossRetries(t *testing.T) {
	second, secondSeen := recordingServer(t, func(_ int, w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	sp := &staticSettings{}
	first, firstSeen := recordingServer(t, func(_ int, w http.ResponseWriter, _ *http.Request) {
		sp.set(config.Settings{BaseURL: second.URL, Timeout: time.Second})
		w.WriteHeader(http.StatusInternalServerError)
	})
	sp.set(config.Settings{BaseURL: first.URL, Timeout: time.Second})
	c := NewClient(sp, WithLogger(logger.NewNop()))

	env := c.Do(context.Background(), Call{Endpoint: "/categories"})

	assert.False(t, env.Success)
	assert.Len(t, firstSeen(), 2)
	assert.Empty(t, secondSeen())

	env = c.Do(context.Background(), Call{Endpoint: "/categories"})
	assert.True(t, env.Success)
	assert.Len(t, secondSeen(), 1)
}

func TestInterceptors_Order(t *testing.T) {
	srv, seen := recordingServer(t, func(_ int, w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	c := newTestClient(srv.URL)

	var order []string
	c.UseRequest(func(_ context.Context, req *Request) *Request {
		order = append(order, "req-A")
		req.Headers["X-Trace"] = "A"
		return req
	})
	c.UseRequest(func(_ context.Context, req *Request) *Request {
		order = append(order, "req-B saw "+req.Headers["X-Trace"])
		req.Headers["X-Trace"] += "B"
		return nil
	})
	c.UseResponse(func(context.Context, *Response) { order = append(order, "resp-A") })
	c.UseResponse(func(context.Context, *Response) { order = append(order, "resp-B") })

	env := c.Do(context.Background(), Call{Endpoint: "/categories"})

	require.True(t, env.Success)
	assert.Equal(t, []string{"req-A", "req-B saw A", "resp-A", "resp-B"}, order)
	assert.Equal(t, "AB", seen()[0].Headers.Get("X-Trace"))
}

func TestInterceptors_ResponseSeesFailures(t *testing.T) {
	srv, _ := recordingServer(t, func(_ int, w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	c := newTestClient(srv.URL)

	var statuses []int
	c.UseResponse(func(_ context.Context, resp *Response) { statuses = append(statuses, resp.StatusCode) })

	c.Do(context.Background(), Call{Endpoint: "/categories"})

	assert.Equal(t, []int{500, 500}, statuses)
}

func TestInterceptors_Unregister(t *testing.T) {
	srv, _ := recordingServer(t, func(_ int, w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	c := newTestClient(srv.URL)

	var calls int
	off := c.UseRequest(func(_ context.Context, req *Request) *Request {
		calls++
		return req
	})
	c.Do(context.Background(), Call{Endpoint: "/categories"})
	off()
	off()
	c.Do(context.Background(), Call{Endpoint: "/categories"})

	assert.Equal(t, 1, calls)
}

func TestInterceptors_RegisteredMidCallNotApplied(t *testing.T) {
	srv, _ := recordingServer(t, func(_ int, w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	c := newTestClient(srv.URL)

	var late int
	var once sync.Once
	c.UseRequest(func(_ context.Context, req *Request) *Request {
		once.Do(func() {
			c.UseRequest(func(_ context.Context, r *Request) *Request {
				late++
				return r
			})
		})
		return req
	})

	c.Do(context.Background(), Call{Endpoint: "/categories"})
	assert.Equal(t, 0, late)

	c.Do(context.Background(), Call{Endpoint: "/categories", Retries: Retries(0)})
	assert.Equal(t, 1, late)
}

func TestInstallHooks(t *testing.T) {
	srv, _ := recordingServer(t, func(_ int, w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	c := newTestClient(srv.URL)

	var started, done int
	off := InstallHooks(c, func() { started++ }, func() { done++ })
	c.Do(context.Background(), Call{Endpoint: "/categories"})
	off()
	c.Do(context.Background(), Call{Endpoint: "/categories"})

	assert.Equal(t, 2, started)
	assert.Equal(t, 2, done)
}

func TestInstallLoggingAndMetrics(t *testing.T) {
	srv, _ := recordingServer(t, func(n int, w http.ResponseWriter, _ *http.Request) {
		if n == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	})
	c := newTestClient(srv.URL)

	offLog := InstallLogging(c, logger.NewNop())
	offMetrics := InstallMetrics(c)
	defer offLog()
	defer offMetrics()

	env := c.Do(context.Background(), Call{Endpoint: "/products/p1"})
	assert.True(t, env.Success)
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   string
	}{
		{400, `{"message":"参数错误"}`, "参数错误"},
		{409, `{"error":"already exists"}`, "already exists"},
		{409, `{"message":"","error":"dup"}`, "dup"},
		{500, `not json`, "HTTP 500: Internal Server Error"},
		{404, ``, "HTTP 404: Not Found"},
		{599, `{}`, "HTTP 599"},
	}
	for _, tt := range tests {
		if got := ErrorMessage(tt.status, []byte(tt.body)); got != tt.want {
			t.Errorf("ErrorMessage(%d, %q) = %q, want %q", tt.status, tt.body, got, tt.want)
		}
	}
}

func TestFetch_Decodes(t *testing.T) {
	srv, _ := recordingServer(t, func(_ int, w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":"c1","name":"茶叶"}}`))
	})
	c := newTestClient(srv.URL)

	type category struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	env := Fetch[category](context.Background(), c, Call{Endpoint: "/categories/c1"})

	require.True(t, env.Success)
	assert.Equal(t, category{ID: "c1", Name: "茶叶"}, env.Data)
}

func TestDecode_BadPayload(t *testing.T) {
	env := Decode[[]string](Envelope[json.RawMessage]{Success: true, Data: json.RawMessage(`{"a":1}`), Code: 200})

	assert.False(t, env.Success)
	assert.True(t, strings.HasPrefix(env.Error, "failed to decode response"))
	assert.Equal(t, 200, env.Code)
}

func TestDecode_PassesFailureThrough(t *testing.T) {
	env := Decode[int](Envelope[json.RawMessage]{Error: "boom", Code: 503})

	assert.False(t, env.Success)
	assert.Equal(t, "boom", env.Error)
	assert.Equal(t, 503, env.Code)
}

func TestWithRateLimit(t *testing.T) {
	srv, seen := recordingServer(t, func(_ int, w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	c := newTestClient(srv.URL, WithRateLimit(1000, 1))

	for i := 0; i < 3; i++ {
		c.Do(context.Background(), Call{Endpoint: "/categories"})
	}
	assert.Len(t, seen(), 3)
}
