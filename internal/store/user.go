package store

import (
	"context"
	"sync"

	"github.com/portgasray/yunnan-taste-mini-sub000/internal/auth"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/domain/shop"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/loading"
)

// UserAPI is the profile and address facade.
type UserAPI interface {
	Profile(ctx context.Context) (shop.UserProfile, error)
	UpdateProfile(ctx context.Context, u shop.ProfileUpdate) (shop.UserProfile, error)
	Addresses(ctx context.Context) ([]shop.Address, error)
	AddAddress(ctx context.Context, a shop.Address) (shop.Address, error)
	UpdateAddress(ctx context.Context, id string, a shop.Address) (shop.Address, error)
	DeleteAddress(ctx context.Context, id string) error
}

// Session is the auth service as seen by the user store.
type Session interface {
	Initialize(ctx context.Context) error
	Login(ctx context.Context, username, password string) error
	Logout(ctx context.Context) error
	IsAuthenticated() bool
	Profile() (shop.UserProfile, bool)
	SetProfile(p shop.UserProfile)
	OnChange(fn func(auth.State)) func()
}

// UserStore exposes the session and the user's addresses.
type UserStore struct {
	base
	api     UserAPI
	session Session

	mu        sync.RWMutex
	addresses []shop.Address
	onLogin   []func(context.Context) error
	onLogout  []func(context.Context)
}

// NewUserStore creates a user store over session.
func NewUserStore(api UserAPI, session Session, deps Deps) *UserStore {
	s := &UserStore{
		base:    newBase(deps, "user-store"),
		api:     api,
		session: session,
	}
	session.OnChange(func(auth.State) { s.notify() })
	return s
}

// OnLogin registers a hook run after every successful login, in
// registration order. A failing hook is reported but does not undo the
// login.
func (s *UserStore) OnLogin(fn func(context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLogin = append(s.onLogin, fn)
}

// OnLogout registers a hook run after every logout.
func (s *UserStore) OnLogout(fn func(context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLogout = append(s.onLogout, fn)
}

// Initialize restores a persisted session. An invalid token signs the user
// out quietly.
func (s *UserStore) Initialize(ctx context.Context) error {
	stop := s.deps.Loading.Track(loading.User, "恢复登录状态")
	defer stop()
	if err := s.session.Initialize(ctx); err != nil {
		s.deps.Log.WithError(err).Info("session not restored")
		return err
	}
	return nil
}

// Login signs in and then runs the login hooks. It reports whether the
// login succeeded; failures are shown through the error handler.
func (s *UserStore) Login(ctx context.Context, username, password string) bool {
	o := op{loading: loading.User, message: "登录中", failure: "登录失败"}
	_, err := run(ctx, &s.base, o, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.session.Login(ctx, username, password)
	})
	if err != nil {
		return false
	}

	var hooks []func(context.Context) error
	s.mu.RLock()
	hooks = append(hooks, s.onLogin...)
	s.mu.RUnlock()
	for _, hook := range hooks {
		if err := hook(ctx); err != nil {
			s.report(err, "同步数据失败")
		}
	}
	return true
}

// Logout ends the session, drops user data and runs the logout hooks.
func (s *UserStore) Logout(ctx context.Context) {
	if err := s.session.Logout(ctx); err != nil {
		s.deps.Log.WithError(err).Warn("logout cleanup failed")
	}
	var hooks []func(context.Context)
	s.mu.Lock()
	s.addresses = nil
	hooks = append(hooks, s.onLogout...)
	s.mu.Unlock()
	for _, hook := range hooks {
		hook(ctx)
	}
	s.notify()
}

// IsAuthenticated reports whether a session is held.
func (s *UserStore) IsAuthenticated() bool { return s.session.IsAuthenticated() }

// Profile returns the cached profile, or nil when signed out.
func (s *UserStore) Profile() *shop.UserProfile {
	p, ok := s.session.Profile()
	if !ok {
		return nil
	}
	return &p
}

// FetchProfile reloads the profile.
func (s *UserStore) FetchProfile(ctx context.Context) (shop.UserProfile, error) {
	o := op{key: "profile", loading: loading.User, message: "加载用户信息", failure: "获取用户信息失败"}
	return run(ctx, &s.base, o, func(ctx context.Context) (shop.UserProfile, error) {
		p, err := s.api.Profile(ctx)
		if err != nil {
			return shop.UserProfile{}, err
		}
		s.session.SetProfile(p)
		return p, nil
	})
}

// UpdateProfile applies a partial profile change.
func (s *UserStore) UpdateProfile(ctx context.Context, u shop.ProfileUpdate) (shop.UserProfile, error) {
	o := op{loading: loading.User, message: "保存中", failure: "更新用户信息失败"}
	return run(ctx, &s.base, o, func(ctx context.Context) (shop.UserProfile, error) {
		p, err := s.api.UpdateProfile(ctx, u)
		if err != nil {
			return shop.UserProfile{}, err
		}
		s.session.SetProfile(p)
		return p, nil
	})
}

// FetchAddresses reloads the saved addresses.
func (s *UserStore) FetchAddresses(ctx context.Context) ([]shop.Address, error) {
	o := op{key: "addresses", loading: loading.User, message: "加载地址", failure: "获取地址失败"}
	return run(ctx, &s.base, o, func(ctx context.Context) ([]shop.Address, error) {
		list, err := s.api.Addresses(ctx)
		if err != nil {
			return nil, err
		}
		s.setAddresses(list)
		return list, nil
	})
}

// AddAddress saves a new address and reloads the list, since the server
// may move the default flag.
func (s *UserStore) AddAddress(ctx context.Context, a shop.Address) (shop.Address, error) {
	o := op{loading: loading.User, message: "保存地址", failure: "添加地址失败"}
	return run(ctx, &s.base, o, func(ctx context.Context) (shop.Address, error) {
		added, err := s.api.AddAddress(ctx, a)
		if err != nil {
			return shop.Address{}, err
		}
		return added, s.reloadAddresses(ctx)
	})
}

// UpdateAddress replaces an address and reloads the list.
func (s *UserStore) UpdateAddress(ctx context.Context, id string, a shop.Address) (shop.Address, error) {
	o := op{loading: loading.User, message: "保存地址", failure: "更新地址失败"}
	return run(ctx, &s.base, o, func(ctx context.Context) (shop.Address, error) {
		updated, err := s.api.UpdateAddress(ctx, id, a)
		if err != nil {
			return shop.Address{}, err
		}
		return updated, s.reloadAddresses(ctx)
	})
}

// DeleteAddress removes an address and reloads the list.
func (s *UserStore) DeleteAddress(ctx context.Context, id string) error {
	o := op{loading: loading.User, message: "删除地址", failure: "删除地址失败"}
	_, err := run(ctx, &s.base, o, func(ctx context.Context) (struct{}, error) {
		if err := s.api.DeleteAddress(ctx, id); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, s.reloadAddresses(ctx)
	})
	return err
}

// Addresses returns the loaded addresses.
func (s *UserStore) Addresses() []shop.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]shop.Address(nil), s.addresses...)
}

// DefaultAddress returns the default address, falling back to the first.
func (s *UserStore) DefaultAddress() (shop.Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.addresses {
		if a.IsDefault {
			return a, true
		}
	}
	if len(s.addresses) > 0 {
		return s.addresses[0], true
	}
	return shop.Address{}, false
}

func (s *UserStore) reloadAddresses(ctx context.Context) error {
	list, err := s.api.Addresses(ctx)
	if err != nil {
		return err
	}
	s.setAddresses(list)
	return nil
}

func (s *UserStore) setAddresses(list []shop.Address) {
	s.mu.Lock()
	s.addresses = append([]shop.Address(nil), list...)
	s.mu.Unlock()
	s.notify()
}
