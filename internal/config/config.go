// Package config holds the per-environment API settings. A Config is owned by
// the application and passed to the components that read it; nothing in this
// package is a process-wide singleton.
package config

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/portgasray/yunnan-taste-mini-sub000/internal/apperr"
)

// Environment names a deployment target.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// ParseEnvironment accepts the canonical names and the short forms dev,
// stage and prod, case-insensitively.
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "development", "dev":
		return Development, nil
	case "staging", "stage":
		return Staging, nil
	case "production", "prod":
		return Production, nil
	}
	return "", apperr.NewValidationError("environment", fmt.Sprintf("unknown environment %q", s))
}

// Settings is the API configuration of one environment.
type Settings struct {
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
	UseMocks bool          `yaml:"use_mocks"`
}

// Defaults returns the compiled-in settings of every environment.
func Defaults() map[Environment]Settings {
	return map[Environment]Settings{
		Development: {
			BaseURL:  "http://localhost:3000/api",
			Timeout:  10 * time.Second,
			UseMocks: true,
		},
		Staging: {
			BaseURL: "https://staging-api.yunnan-taste.example.com/api",
			Timeout: 15 * time.Second,
		},
		Production: {
			BaseURL: "https://api.yunnan-taste.example.com/api",
			Timeout: 15 * time.Second,
		},
	}
}

// Config holds the active environment and the settings table.
type Config struct {
	mu        sync.RWMutex
	active    Environment
	settings  map[Environment]Settings
	listeners map[int]func(Environment, Settings)
	nextID    int
}

// Option customizes a Config at construction.
type Option func(*Config)

// WithSettings replaces the settings of env.
func WithSettings(env Environment, s Settings) Option {
	return func(c *Config) { c.settings[env] = s }
}

// New creates a Config with env active. An unknown env falls back to
// Development.
func New(env Environment, opts ...Option) *Config {
	c := &Config{
		settings:  Defaults(),
		listeners: make(map[int]func(Environment, Settings)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if _, ok := c.settings[env]; !ok {
		env = Development
	}
	c.active = env
	return c
}

// Current returns the active environment and its settings.
func (c *Config) Current() (Environment, Settings) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active, c.settings[c.active]
}

// Environment returns the active environment.
func (c *Config) Environment() Environment {
	env, _ := c.Current()
	return env
}

// Settings returns the active settings.
func (c *Config) Settings() Settings {
	_, s := c.Current()
	return s
}

// Lookup returns the settings of env.
func (c *Config) Lookup(env Environment) (Settings, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.settings[env]
	return s, ok
}

// Environments lists the known environments in name order.
func (c *Config) Environments() []Environment {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Environment, 0, len(c.settings))
	for env := range c.settings {
		out = append(out, env)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SetEnvironment switches the active environment. Calls already in flight
// keep the settings they started with.
func (c *Config) SetEnvironment(env Environment) error {
	c.mu.Lock()
	s, ok := c.settings[env]
	if !ok {
		c.mu.Unlock()
		return apperr.NewValidationError("environment", fmt.Sprintf("unknown environment %q", env))
	}
	c.active = env
	listeners := c.snapshotListeners()
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(env, s)
	}
	return nil
}

// Override replaces the settings of env at runtime.
func (c *Config) Override(env Environment, s Settings) {
	c.mu.Lock()
	c.settings[env] = s
	active := c.active
	listeners := c.snapshotListeners()
	c.mu.Unlock()

	if env != active {
		return
	}
	for _, fn := range listeners {
		fn(env, s)
	}
}

// Subscribe registers fn to be called after every change of the active
// settings. The returned func removes the subscription.
func (c *Config) Subscribe(fn func(Environment, Settings)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

func (c *Config) snapshotListeners() []func(Environment, Settings) {
	ids := make([]int, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(Environment, Settings), 0, len(ids))
	for _, id := range ids {
		out = append(out, c.listeners[id])
	}
	return out
}
