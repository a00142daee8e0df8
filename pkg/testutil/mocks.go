// Package testutil provides common testing utilities and recording
// implementations of the storefront's collaborator interfaces.
package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/portgasray/yunnan-taste-mini-sub000/internal/config"
)

// Recorder is a test implementation of the error handler's notifier,
// navigator and network status.
type Recorder struct {
	mu      sync.RWMutex
	toasts  []string
	pages   []string
	offline bool
}

// NewRecorder creates an online recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// ShowError records a toast.
func (r *Recorder) ShowError(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, message)
}

// Navigate records a page.
func (r *Recorder) Navigate(page string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages = append(r.pages, page)
}

// Online reports the connectivity set by SetOffline.
func (r *Recorder) Online() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.offline
}

// SetOffline changes the reported connectivity.
func (r *Recorder) SetOffline(offline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offline = offline
}

// Toasts returns the recorded toasts.
func (r *Recorder) Toasts() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.toasts...)
}

// Pages returns the recorded navigations.
func (r *Recorder) Pages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.pages...)
}

// StaticSettings is a settings provider whose settings can be swapped.
type StaticSettings struct {
	mu sync.RWMutex
	s  config.Settings
}

// NewStaticSettings creates a provider returning s.
func NewStaticSettings(s config.Settings) *StaticSettings {
	return &StaticSettings{s: s}
}

// Settings returns the current settings.
func (p *StaticSettings) Settings() config.Settings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.s
}

// Set replaces the settings.
func (p *StaticSettings) Set(s config.Settings) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.s = s
}

// ErrStorage is returned by FailingKV.
var ErrStorage = errors.New("storage unavailable")

// FailingKV is a key/value store whose every operation fails.
type FailingKV struct{}

// Get fails.
func (FailingKV) Get(context.Context, string, any) (bool, error) { return false, ErrStorage }

// Set fails.
func (FailingKV) Set(context.Context, string, any) error { return ErrStorage }

// Remove fails.
func (FailingKV) Remove(context.Context, string) error { return ErrStorage }
