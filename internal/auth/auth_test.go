package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portgasray/yunnan-taste-mini-sub000/internal/apperr"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/domain/shop"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/storage"
	"github.com/portgasray/yunnan-taste-mini-sub000/pkg/logger"
)

type fakeUsers struct {
	loginErr    error
	loginResult shop.LoginResult
	profileErr  error
	profile     shop.UserProfile
	profileSeen []string
	tokens      interface{ Token() (string, bool) }
}

func (f *fakeUsers) Login(_ context.Context, username, password string) (shop.LoginResult, error) {
	if f.loginErr != nil {
		return shop.LoginResult{}, f.loginErr
	}
	return f.loginResult, nil
}

func (f *fakeUsers) Profile(context.Context) (shop.UserProfile, error) {
	if f.tokens != nil {
		tok, _ := f.tokens.Token()
		f.profileSeen = append(f.profileSeen, tok)
	}
	if f.profileErr != nil {
		return shop.UserProfile{}, f.profileErr
	}
	return f.profile, nil
}

func newService(users *fakeUsers) (*Service, *storage.Memory) {
	kv := storage.NewMemory()
	s := New(users, kv, logger.NewNop())
	users.tokens = s
	return s, kv
}

func TestLogin_Success(t *testing.T) {
	users := &fakeUsers{loginResult: shop.LoginResult{Token: "tok", User: shop.UserProfile{ID: "u1", Username: "test_user"}}}
	s, kv := newService(users)
	var states []State
	s.OnChange(func(st State) { states = append(states, st) })

	require.NoError(t, s.Login(context.Background(), "test_user", "password123"))

	assert.True(t, s.IsAuthenticated())
	tok, ok := s.Token()
	assert.True(t, ok)
	assert.Equal(t, "tok", tok)
	p, ok := s.Profile()
	require.True(t, ok)
	assert.Equal(t, "u1", p.ID)

	var persisted string
	found, err := kv.Get(context.Background(), storage.KeyAuthToken, &persisted)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "tok", persisted)

	require.Len(t, states, 1)
	assert.True(t, states[0].Authenticated)
	assert.Empty(t, users.profileSeen)
}

func TestLogin_FetchesProfileWhenMissing(t *testing.T) {
	users := &fakeUsers{
		loginResult: shop.LoginResult{Token: "tok"},
		profile:     shop.UserProfile{ID: "u1"},
	}
	s, _ := newService(users)

	require.NoError(t, s.Login(context.Background(), "u", "p"))

	p, ok := s.Profile()
	require.True(t, ok)
	assert.Equal(t, "u1", p.ID)
	assert.Equal(t, []string{"tok"}, users.profileSeen)
}

func TestLogin_SecondUserReplacesProfile(t *testing.T) {
	users := &fakeUsers{loginResult: shop.LoginResult{Token: "tok-a", User: shop.UserProfile{ID: "alice"}}}
	s, _ := newService(users)
	ctx := context.Background()
	require.NoError(t, s.Login(ctx, "alice", "p"))

	users.loginResult = shop.LoginResult{Token: "tok-b"}
	users.profile = shop.UserProfile{ID: "bob"}
	require.NoError(t, s.Login(ctx, "bob", "p"))

	tok, _ := s.Token()
	assert.Equal(t, "tok-b", tok)
	p, ok := s.Profile()
	require.True(t, ok)
	assert.Equal(t, "bob", p.ID)
	assert.Equal(t, []string{"tok-b"}, users.profileSeen)
}

func TestLogin_SecondUserProfileFetchFails(t *testing.T) {
	users := &fakeUsers{loginResult: shop.LoginResult{Token: "tok-a", User: shop.UserProfile{ID: "alice"}}}
	s, _ := newService(users)
	ctx := context.Background()
	require.NoError(t, s.Login(ctx, "alice", "p"))

	users.loginResult = shop.LoginResult{Token: "tok-b"}
	users.profileErr = errors.New("profile unavailable")
	require.NoError(t, s.Login(ctx, "bob", "p"))

	_, ok := s.Profile()
	assert.False(t, ok, "no profile of the previous user is kept")
}

func TestLogin_FailureLeavesStateUnchanged(t *testing.T) {
	users := &fakeUsers{loginErr: apperr.NewAPIError(401, "bad credentials")}
	s, kv := newService(users)

	err := s.Login(context.Background(), "u", "wrong")

	assert.True(t, apperr.IsUnauthorized(err))
	assert.False(t, s.IsAuthenticated())
	_, ok := s.Token()
	assert.False(t, ok)
	assert.False(t, kv.Has(storage.KeyAuthToken))
}

func TestLogin_EmptyToken(t *testing.T) {
	s, _ := newService(&fakeUsers{})

	assert.Error(t, s.Login(context.Background(), "u", "p"))
	assert.False(t, s.IsAuthenticated())
}

func TestLogout_Idempotent(t *testing.T) {
	users := &fakeUsers{loginResult: shop.LoginResult{Token: "tok", User: shop.UserProfile{ID: "u1"}}}
	s, kv := newService(users)
	ctx := context.Background()

	require.NoError(t, s.Logout(ctx))
	require.NoError(t, s.Login(ctx, "u", "p"))
	require.NoError(t, s.Logout(ctx))
	require.NoError(t, s.Logout(ctx))

	assert.False(t, s.IsAuthenticated())
	_, ok := s.Profile()
	assert.False(t, ok)
	_, ok = s.Token()
	assert.False(t, ok)
	assert.False(t, kv.Has(storage.KeyAuthToken))
}

func TestInitialize_NoToken(t *testing.T) {
	users := &fakeUsers{}
	s, _ := newService(users)

	require.NoError(t, s.Initialize(context.Background()))

	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, users.profileSeen)
}

func TestInitialize_ValidToken(t *testing.T) {
	users := &fakeUsers{profile: shop.UserProfile{ID: "u1"}}
	s, kv := newService(users)
	require.NoError(t, kv.Set(context.Background(), storage.KeyAuthToken, "saved"))

	require.NoError(t, s.Initialize(context.Background()))

	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, []string{"saved"}, users.profileSeen)
	st := s.State()
	require.NotNil(t, st.Profile)
	assert.Equal(t, "u1", st.Profile.ID)
}

func TestInitialize_InvalidTokenForcesLogout(t *testing.T) {
	users := &fakeUsers{profileErr: apperr.NewAPIError(401, "expired")}
	s, kv := newService(users)
	require.NoError(t, kv.Set(context.Background(), storage.KeyAuthToken, "stale"))

	err := s.Initialize(context.Background())

	require.Error(t, err)
	assert.True(t, apperr.IsUnauthorized(err))
	assert.Contains(t, err.Error(), "auth.Initialize")
	assert.False(t, s.IsAuthenticated())
	_, ok := s.Token()
	assert.False(t, ok)
	assert.False(t, kv.Has(storage.KeyAuthToken))
	assert.Len(t, users.profileSeen, 1)
}

func TestOnChange_Unregister(t *testing.T) {
	s, _ := newService(&fakeUsers{})
	calls := 0
	off := s.OnChange(func(State) { calls++ })

	s.SetProfile(shop.UserProfile{ID: "u2"})
	off()
	s.SetProfile(shop.UserProfile{ID: "u3"})

	assert.Equal(t, 1, calls)
}

type failingKV struct{ storage.KV }

func (failingKV) Remove(context.Context, string) error { return errors.New("disk full") }

func TestLogout_StorageErrorStillClearsMemory(t *testing.T) {
	users := &fakeUsers{loginResult: shop.LoginResult{Token: "tok", User: shop.UserProfile{ID: "u1"}}}
	s := New(users, failingKV{storage.NewMemory()}, logger.NewNop())
	require.NoError(t, s.Login(context.Background(), "u", "p"))

	err := s.Logout(context.Background())

	assert.Error(t, err)
	assert.False(t, s.IsAuthenticated())
}
