// Package api contains the domain facades. Each operation answers from the
// mock provider when the active environment uses mocks and otherwise calls
// the backend through the HTTP client.
package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/portgasray/yunnan-taste-mini-sub000/internal/apperr"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/httputil"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/mock"
)

// TokenSource supplies the session token for authenticated operations.
type TokenSource interface {
	Token() (string, bool)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() (string, bool)

// Token implements TokenSource.
func (f TokenFunc) Token() (string, bool) { return f() }

// API groups the facades over one backend.
type API struct {
	Product *ProductAPI
	User    *UserAPI
	Cart    *CartAPI
	Content *ContentAPI

	backend *backend
}

// New creates the facades. Authenticated operations fail with
// apperr.ErrNotAuthenticated until a TokenSource is bound.
func New(settings httputil.SettingsProvider, client *httputil.Client, provider *mock.Provider) *API {
	b := &backend{settings: settings, client: client, mock: provider}
	return &API{
		Product: &ProductAPI{b: b},
		User:    &UserAPI{b: b},
		Cart:    &CartAPI{b: b},
		Content: &ContentAPI{b: b},
		backend: b,
	}
}

// BindTokenSource sets the source read by authenticated operations.
func (a *API) BindTokenSource(ts TokenSource) {
	a.backend.mu.Lock()
	defer a.backend.mu.Unlock()
	a.backend.tokens = ts
}

// UsingMocks reports whether calls are currently answered from fixtures.
func (a *API) UsingMocks() bool { return a.backend.useMocks() }

type backend struct {
	settings httputil.SettingsProvider
	client   *httputil.Client
	mock     *mock.Provider

	mu     sync.RWMutex
	tokens TokenSource
}

func (b *backend) useMocks() bool {
	return b.settings.Settings().UseMocks && b.mock != nil
}

// token returns the session token or ErrNotAuthenticated.
func (b *backend) token() (string, error) {
	b.mu.RLock()
	ts := b.tokens
	b.mu.RUnlock()
	if ts == nil {
		return "", apperr.ErrNotAuthenticated
	}
	tok, ok := ts.Token()
	if !ok || tok == "" {
		return "", apperr.ErrNotAuthenticated
	}
	return tok, nil
}

// fetch issues call and unwraps the envelope.
func fetch[T any](ctx context.Context, b *backend, call httputil.Call) (T, error) {
	env := httputil.Fetch[T](ctx, b.client, call)
	if !env.Success {
		var zero T
		return zero, apperr.NewAPIError(env.Code, env.Error)
	}
	return env.Data, nil
}

// exec issues call and discards the payload.
func exec(ctx context.Context, b *backend, call httputil.Call) error {
	env := b.client.Do(ctx, call)
	if !env.Success {
		return apperr.NewAPIError(env.Code, env.Error)
	}
	return nil
}

// fromMock runs fn unless ctx is already done.
func fromMock[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}
	return fn()
}

func just[T any](v T) func() (T, error) {
	return func() (T, error) { return v, nil }
}

func get(endpoint string) httputil.Call {
	return httputil.Call{Endpoint: endpoint, Method: http.MethodGet}
}

func authed(method, endpoint, token string, body any) httputil.Call {
	return httputil.Call{Endpoint: endpoint, Method: method, Token: token, Body: body}
}
