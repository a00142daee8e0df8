package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/portgasray/yunnan-taste-mini-sub000/internal/domain/shop"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/httputil"
)

// UserAPI serves login, the profile and delivery addresses.
type UserAPI struct {
	b *backend
}

// Login exchanges credentials for a session token.
func (a *UserAPI) Login(ctx context.Context, username, password string) (shop.LoginResult, error) {
	if a.b.useMocks() {
		return fromMock(ctx, func() (shop.LoginResult, error) { return a.b.mock.Login(username, password) })
	}
	return fetch[shop.LoginResult](ctx, a.b, httputil.Call{
		Endpoint: "/auth/login",
		Method:   http.MethodPost,
		Body:     shop.LoginRequest{Username: username, Password: password},
	})
}

// Profile returns the signed-in user's profile.
func (a *UserAPI) Profile(ctx context.Context) (shop.UserProfile, error) {
	token, err := a.b.token()
	if err != nil {
		return shop.UserProfile{}, err
	}
	if a.b.useMocks() {
		return fromMock(ctx, just(a.b.mock.Profile()))
	}
	return fetch[shop.UserProfile](ctx, a.b, authed(http.MethodGet, "/user/profile", token, nil))
}

// UpdateProfile applies a partial profile change.
func (a *UserAPI) UpdateProfile(ctx context.Context, u shop.ProfileUpdate) (shop.UserProfile, error) {
	token, err := a.b.token()
	if err != nil {
		return shop.UserProfile{}, err
	}
	if a.b.useMocks() {
		return fromMock(ctx, func() (shop.UserProfile, error) { return a.b.mock.UpdateProfile(u), nil })
	}
	return fetch[shop.UserProfile](ctx, a.b, authed(http.MethodPut, "/user/profile", token, u))
}

// Addresses lists the saved delivery addresses.
func (a *UserAPI) Addresses(ctx context.Context) ([]shop.Address, error) {
	token, err := a.b.token()
	if err != nil {
		return nil, err
	}
	if a.b.useMocks() {
		return fromMock(ctx, just(a.b.mock.Addresses()))
	}
	return fetch[[]shop.Address](ctx, a.b, authed(http.MethodGet, "/user/addresses", token, nil))
}

// AddAddress saves a new address.
func (a *UserAPI) AddAddress(ctx context.Context, addr shop.Address) (shop.Address, error) {
	token, err := a.b.token()
	if err != nil {
		return shop.Address{}, err
	}
	if a.b.useMocks() {
		return fromMock(ctx, func() (shop.Address, error) { return a.b.mock.AddAddress(addr) })
	}
	return fetch[shop.Address](ctx, a.b, authed(http.MethodPost, "/user/addresses", token, addr))
}

// UpdateAddress replaces the address with id.
func (a *UserAPI) UpdateAddress(ctx context.Context, id string, addr shop.Address) (shop.Address, error) {
	token, err := a.b.token()
	if err != nil {
		return shop.Address{}, err
	}
	if a.b.useMocks() {
		return fromMock(ctx, func() (shop.Address, error) { return a.b.mock.UpdateAddress(id, addr) })
	}
	return fetch[shop.Address](ctx, a.b, authed(http.MethodPut, "/user/addresses/"+url.PathEscape(id), token, addr))
}

// DeleteAddress removes the address with id.
func (a *UserAPI) DeleteAddress(ctx context.Context, id string) error {
	token, err := a.b.token()
	if err != nil {
		return err
	}
	if a.b.useMocks() {
		_, err := fromMock(ctx, func() (struct{}, error) { return struct{}{}, a.b.mock.DeleteAddress(id) })
		return err
	}
	return exec(ctx, a.b, authed(http.MethodDelete, "/user/addresses/"+url.PathEscape(id), token, nil))
}
