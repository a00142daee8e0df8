// Package auth holds the session: the bearer token, the authenticated flag
// and the cached profile, with the token persisted to device storage.
package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/portgasray/yunnan-taste-mini-sub000/internal/apperr"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/domain/shop"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/storage"
	"github.com/portgasray/yunnan-taste-mini-sub000/pkg/logger"
)

// UserAPI is the part of the user facade the session needs.
type UserAPI interface {
	Login(ctx context.Context, username, password string) (shop.LoginResult, error)
	Profile(ctx context.Context) (shop.UserProfile, error)
}

// State is a snapshot of the session.
type State struct {
	Token         string
	Authenticated bool
	Profile       *shop.UserProfile
}

// Service owns the session state.
type Service struct {
	users UserAPI
	kv    storage.KV
	log   *logger.Logger

	mu            sync.RWMutex
	token         string
	authenticated bool
	profile       *shop.UserProfile

	lmu       sync.Mutex
	nextID    int
	listeners map[int]func(State)
}

// New creates an anonymous session.
func New(users UserAPI, kv storage.KV, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	return &Service{users: users, kv: kv, log: log, listeners: make(map[int]func(State))}
}

// Initialize restores a persisted token and validates it by fetching the
// profile. A token that fails validation is discarded through Logout.
func (s *Service) Initialize(ctx context.Context) error {
	var token string
	found, err := s.kv.Get(ctx, storage.KeyAuthToken, &token)
	if err != nil {
		s.log.WithError(err).Warn("failed to read persisted token")
		return s.Logout(ctx)
	}
	if !found || token == "" {
		return nil
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	profile, err := s.users.Profile(ctx)
	if err != nil {
		s.log.WithError(err).Info("persisted token rejected, signing out")
		if lerr := s.Logout(ctx); lerr != nil {
			return lerr
		}
		return apperr.WrapServiceError("auth", "Initialize", err)
	}

	s.mu.Lock()
	s.authenticated = true
	s.profile = &profile
	s.mu.Unlock()
	s.notify()
	return nil
}

// Login authenticates with the user facade. On failure the session is left
// as it was.
func (s *Service) Login(ctx context.Context, username, password string) error {
	res, err := s.users.Login(ctx, username, password)
	if err != nil {
		return err
	}
	if res.Token == "" {
		return fmt.Errorf("login: empty token in response")
	}

	needProfile := res.User.ID == ""
	s.mu.Lock()
	s.token = res.Token
	s.authenticated = true
	s.profile = nil
	if !needProfile {
		p := res.User
		s.profile = &p
	}
	s.mu.Unlock()

	if err := s.kv.Set(ctx, storage.KeyAuthToken, res.Token); err != nil {
		s.log.WithError(err).Warn("failed to persist token")
	}

	if needProfile {
		if profile, err := s.users.Profile(ctx); err != nil {
			s.log.WithError(err).Warn("failed to fetch profile after login")
		} else {
			s.SetProfile(profile)
			return nil
		}
	}
	s.notify()
	return nil
}

// Logout clears the session and the persisted token. It is safe to call
// without an active session.
func (s *Service) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.authenticated = false
	s.profile = nil
	s.mu.Unlock()

	err := s.kv.Remove(ctx, storage.KeyAuthToken)
	s.notify()
	if err != nil {
		return fmt.Errorf("remove persisted token: %w", err)
	}
	return nil
}

// Token implements api.TokenSource.
func (s *Service) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// IsAuthenticated reports whether a validated session is held.
func (s *Service) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// Profile returns the cached profile.
func (s *Service) Profile() (shop.UserProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return shop.UserProfile{}, false
	}
	return *s.profile, true
}

// SetProfile replaces the cached profile.
func (s *Service) SetProfile(p shop.UserProfile) {
	s.mu.Lock()
	s.profile = &p
	s.mu.Unlock()
	s.notify()
}

// State returns a snapshot of the session.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := State{Token: s.token, Authenticated: s.authenticated}
	if s.profile != nil {
		p := *s.profile
		st.Profile = &p
	}
	return st
}

// OnChange registers fn to run after every session change and returns the
// unregister func.
func (s *Service) OnChange(fn func(State)) func() {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.lmu.Lock()
		defer s.lmu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Service) notify() {
	s.lmu.Lock()
	fns := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.lmu.Unlock()

	st := s.State()
	for _, fn := range fns {
		fn(st)
	}
}
