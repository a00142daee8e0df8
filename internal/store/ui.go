package store

import (
	"context"
	"sync"
	"time"

	"github.com/portgasray/yunnan-taste-mini-sub000/internal/config"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/storage"
)

// ToastKind selects the toast icon.
type ToastKind string

const (
	ToastInfo    ToastKind = "info"
	ToastSuccess ToastKind = "success"
	ToastError   ToastKind = "error"
)

// DefaultToastDuration is how long a toast stays visible.
const DefaultToastDuration = 2 * time.Second

// Toast is a queued notification.
type Toast struct {
	ID       int           `json:"id"`
	Message  string        `json:"message"`
	Kind     ToastKind     `json:"kind"`
	Duration time.Duration `json:"duration"`
}

// Settings are the persisted display preferences.
type Settings struct {
	AnimationsEnabled bool   `json:"animationsEnabled"`
	ParticleDensity   string `json:"particleDensity"`
	ReduceMotion      bool   `json:"reduceMotion"`
	FontScale         string `json:"fontScale"`
}

// DefaultSettings are used until preferences are saved.
func DefaultSettings() Settings {
	return Settings{AnimationsEnabled: true, ParticleDensity: "medium", FontScale: "normal"}
}

// DefaultTheme is the theme id used until one is chosen.
const DefaultTheme = "bioluminescent-forest"

// UIStore owns the toast queue, display preferences, connectivity and the
// environment selector. It is the notifier, navigator and network status
// of the error handler.
type UIStore struct {
	base
	cfg       *config.Config
	afterFunc func(time.Duration, func()) *time.Timer

	mu          sync.RWMutex
	toasts      []Toast
	timers      map[int]*time.Timer
	nextToastID int
	settings    Settings
	theme       string
	online      bool
	navigations []string
}

// NewUIStore creates a UI store that switches environments through cfg.
func NewUIStore(cfg *config.Config, deps Deps) *UIStore {
	return &UIStore{
		base:      newBase(deps, "ui-store"),
		cfg:       cfg,
		afterFunc: time.AfterFunc,
		timers:    make(map[int]*time.Timer),
		settings:  DefaultSettings(),
		theme:     DefaultTheme,
		online:    true,
	}
}

// Restore loads display preferences from storage.
func (s *UIStore) Restore(ctx context.Context) {
	settings := DefaultSettings()
	s.restore(ctx, storage.KeyUISettings, &settings)
	theme := DefaultTheme
	s.restore(ctx, storage.KeyThemePreference, &theme)

	s.mu.Lock()
	s.settings = settings
	s.theme = theme
	s.mu.Unlock()
	s.notify()
}

// ShowToast queues a toast that hides itself after d, or after
// DefaultToastDuration when d is not positive. It returns the toast id.
func (s *UIStore) ShowToast(message string, kind ToastKind, d time.Duration) int {
	if d <= 0 {
		d = DefaultToastDuration
	}
	s.mu.Lock()
	s.nextToastID++
	id := s.nextToastID
	s.toasts = append(s.toasts, Toast{ID: id, Message: message, Kind: kind, Duration: d})
	s.timers[id] = s.afterFunc(d, func() { s.DismissToast(id) })
	s.mu.Unlock()
	s.notify()
	return id
}

// ShowError queues an error toast.
func (s *UIStore) ShowError(message string) {
	s.ShowToast(message, ToastError, 0)
}

// DismissToast removes a toast before it hides itself.
func (s *UIStore) DismissToast(id int) {
	s.mu.Lock()
	removed := false
	for i, t := range s.toasts {
		if t.ID == id {
			s.toasts = append(s.toasts[:i:i], s.toasts[i+1:]...)
			removed = true
			break
		}
	}
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
	if removed {
		s.notify()
	}
}

// Toasts returns the visible toasts, oldest first.
func (s *UIStore) Toasts() []Toast {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Toast(nil), s.toasts...)
}

// Settings returns the display preferences.
func (s *UIStore) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// UpdateSettings edits and persists the display preferences.
func (s *UIStore) UpdateSettings(ctx context.Context, fn func(*Settings)) Settings {
	s.mu.Lock()
	fn(&s.settings)
	out := s.settings
	s.mu.Unlock()
	s.persist(ctx, storage.KeyUISettings, out)
	s.notify()
	return out
}

// Theme returns the selected theme id.
func (s *UIStore) Theme() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.theme
}

// SetTheme selects and persists a theme id.
func (s *UIStore) SetTheme(ctx context.Context, theme string) {
	s.mu.Lock()
	s.theme = theme
	s.mu.Unlock()
	s.persist(ctx, storage.KeyThemePreference, theme)
	s.notify()
}

// SetOnline records device connectivity.
func (s *UIStore) SetOnline(online bool) {
	s.mu.Lock()
	changed := s.online != online
	s.online = online
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// Online implements apperr.NetworkStatus.
func (s *UIStore) Online() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.online
}

// Environment returns the active environment.
func (s *UIStore) Environment() config.Environment {
	return s.cfg.Environment()
}

// SwitchEnvironment activates env. Calls already in flight keep the
// settings they started with.
func (s *UIStore) SwitchEnvironment(env config.Environment) error {
	if err := s.cfg.SetEnvironment(env); err != nil {
		s.ShowError(err.Error())
		return err
	}
	s.ShowToast("已切换到"+string(env)+"环境", ToastSuccess, 0)
	s.deps.Log.WithField("environment", env).Info("environment switched")
	return nil
}

// Navigate implements apperr.Navigator by recording the page for the shell
// to open.
func (s *UIStore) Navigate(page string) {
	s.mu.Lock()
	s.navigations = append(s.navigations, page)
	s.mu.Unlock()
	s.notify()
}

// Navigations returns the pages requested so far.
func (s *UIStore) Navigations() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.navigations...)
}
