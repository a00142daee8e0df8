package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portgasray/yunnan-taste-mini-sub000/internal/apperr"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/config"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/storage"
	"github.com/portgasray/yunnan-taste-mini-sub000/pkg/logger"
)

// manualTimers captures scheduled toast expiries so tests can fire them.
type manualTimers struct {
	mu    sync.Mutex
	fns   []func()
	delay []time.Duration
}

func (m *manualTimers) afterFunc(d time.Duration, fn func()) *time.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fns = append(m.fns, fn)
	m.delay = append(m.delay, d)
	return time.NewTimer(time.Hour)
}

func (m *manualTimers) fire(i int) {
	m.mu.Lock()
	fn := m.fns[i]
	m.mu.Unlock()
	fn()
}

func newUIStore(t *testing.T) (*UIStore, *manualTimers, *storage.Memory) {
	t.Helper()
	kv := storage.NewMemory()
	s := NewUIStore(config.New(config.Development), Deps{Storage: kv, Log: logger.NewNop()})
	timers := &manualTimers{}
	s.afterFunc = timers.afterFunc
	return s, timers, kv
}

func TestShowToast_AutoHides(t *testing.T) {
	s, timers, _ := newUIStore(t)

	first := s.ShowToast("已加入购物车", ToastSuccess, 0)
	second := s.ShowToast("已收藏", ToastInfo, 3*time.Second)

	toasts := s.Toasts()
	require.Len(t, toasts, 2)
	assert.Equal(t, first, toasts[0].ID)
	assert.Equal(t, []time.Duration{DefaultToastDuration, 3 * time.Second}, timers.delay)

	timers.fire(0)
	toasts = s.Toasts()
	require.Len(t, toasts, 1)
	assert.Equal(t, second, toasts[0].ID)
}

func TestShowToast_RealTimer(t *testing.T) {
	s := NewUIStore(config.New(config.Development), Deps{Log: logger.NewNop()})

	s.ShowToast("稍后消失", ToastInfo, 10*time.Millisecond)

	assert.Len(t, s.Toasts(), 1)
	assert.Eventually(t, func() bool { return len(s.Toasts()) == 0 }, timeout, tick)
}

func TestDismissToast(t *testing.T) {
	s, timers, _ := newUIStore(t)
	id := s.ShowToast("x", ToastInfo, 0)

	s.DismissToast(id)
	assert.Empty(t, s.Toasts())

	assert.NotPanics(t, func() { timers.fire(0) }, "late expiry of a dismissed toast is a no-op")
	s.DismissToast(42)
}

func TestShowError_FromHandler(t *testing.T) {
	s, _, _ := newUIStore(t)
	h := apperr.NewHandler(logger.NewNop())
	h.Attach(apperr.WithNotifier(s), apperr.WithNavigator(s), apperr.WithNetworkStatus(s))

	h.Handle(apperr.NewAPIError(500, "boom"), "")

	toasts := s.Toasts()
	require.Len(t, toasts, 1)
	assert.Equal(t, apperr.MessageServer, toasts[0].Message)
	assert.Equal(t, ToastError, toasts[0].Kind)
}

func TestOffline_NavigatesToNetworkPage(t *testing.T) {
	s, _, _ := newUIStore(t)
	h := apperr.NewHandler(logger.NewNop(), apperr.WithNotifier(s), apperr.WithNavigator(s), apperr.WithNetworkStatus(s))

	s.SetOnline(false)
	assert.False(t, s.Online())
	d := h.Handle(apperr.NewAPIError(500, "boom"), "")

	assert.Equal(t, apperr.TypeNetwork, d.Type)
	assert.Equal(t, []string{apperr.PageNetworkError}, s.Navigations())
}

func TestSettingsAndTheme_Persisted(t *testing.T) {
	s, _, kv := newUIStore(t)
	ctx := context.Background()
	assert.Equal(t, DefaultSettings(), s.Settings())
	assert.Equal(t, DefaultTheme, s.Theme())

	s.UpdateSettings(ctx, func(st *Settings) {
		st.ReduceMotion = true
		st.ParticleDensity = "low"
	})
	s.SetTheme(ctx, "tea-garden")

	fresh := NewUIStore(config.New(config.Development), Deps{Storage: kv, Log: logger.NewNop()})
	fresh.Restore(ctx)
	assert.True(t, fresh.Settings().ReduceMotion)
	assert.Equal(t, "low", fresh.Settings().ParticleDensity)
	assert.Equal(t, "tea-garden", fresh.Theme())
}

func TestSwitchEnvironment(t *testing.T) {
	cfg := config.New(config.Development)
	s := NewUIStore(cfg, Deps{Log: logger.NewNop()})
	s.afterFunc = (&manualTimers{}).afterFunc

	require.NoError(t, s.SwitchEnvironment(config.Production))
	assert.Equal(t, config.Production, s.Environment())
	assert.False(t, cfg.Settings().UseMocks)
	require.Len(t, s.Toasts(), 1)
	assert.Equal(t, ToastSuccess, s.Toasts()[0].Kind)

	err := s.SwitchEnvironment(config.Environment("moon"))
	require.Error(t, err)
	assert.Equal(t, config.Production, s.Environment())
	assert.Equal(t, ToastError, s.Toasts()[1].Kind)
}

func TestSubscribe_SeesToastChanges(t *testing.T) {
	s, timers, _ := newUIStore(t)
	var counts []int
	s.Subscribe(func() { counts = append(counts, len(s.Toasts())) })

	s.ShowToast("a", ToastInfo, 0)
	timers.fire(0)

	assert.Equal(t, []int{1, 0}, counts)
}
