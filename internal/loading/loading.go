// Package loading tracks the named loading flags the UI renders spinners
// from, with GLOBAL derived from the others.
package loading

import (
	"sort"
	"sync"

	"github.com/portgasray/yunnan-taste-mini-sub000/internal/httputil"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/metrics"
)

// Type names a category of concurrent work.
type Type string

const (
	Global     Type = "GLOBAL"
	Products   Type = "PRODUCTS"
	Categories Type = "CATEGORIES"
	User       Type = "USER"
	Cart       Type = "CART"
	Content    Type = "CONTENT"
)

// Types lists every loading type.
var Types = []Type{Global, Products, Categories, User, Cart, Content}

// Flag is the state of one loading type.
type Flag struct {
	IsLoading bool   `json:"isLoading"`
	Message   string `json:"message,omitempty"`
}

// Manager holds the flags. Start and Stop are last-write-wins: there is no
// reference count, so overlapping work of one type shares a single flag.
type Manager struct {
	mu        sync.RWMutex
	flags     map[Type]Flag
	nextID    int
	listeners []listener
}

type listener struct {
	id int
	fn func(map[Type]Flag)
}

// NewManager creates a manager with every flag cleared.
func NewManager() *Manager {
	m := &Manager{flags: make(map[Type]Flag, len(Types))}
	for _, t := range Types {
		m.flags[t] = Flag{}
		metrics.SetLoading(string(t), false)
	}
	return m
}

// Start sets t. Starting any type also sets GLOBAL; GLOBAL's message is
// only taken when it has none.
func (m *Manager) Start(t Type, message string) {
	m.mu.Lock()
	if t != Global {
		m.setLocked(t, Flag{IsLoading: true, Message: message})
	}
	g := m.flags[Global]
	g.IsLoading = true
	if g.Message == "" {
		g.Message = message
	}
	m.setLocked(Global, g)
	m.mu.Unlock()
	m.notify()
}

// Stop clears t. Stopping a non-GLOBAL type also clears GLOBAL when no
// other non-GLOBAL type is loading; stopping GLOBAL clears only GLOBAL.
func (m *Manager) Stop(t Type) {
	m.mu.Lock()
	m.setLocked(t, Flag{})
	if t != Global && !m.anyTypedLocked() {
		m.setLocked(Global, Flag{})
	}
	m.mu.Unlock()
	m.notify()
}

// Track starts t and returns the func that stops it.
func (m *Manager) Track(t Type, message string) func() {
	m.Start(t, message)
	return func() { m.Stop(t) }
}

// IsLoading reports whether t is set.
func (m *Manager) IsLoading(t Type) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.flags[t].IsLoading
}

// Message returns the message of t.
func (m *Manager) Message(t Type) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.flags[t].Message
}

// AnyLoading reports whether any flag is set.
func (m *Manager) AnyLoading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, f := range m.flags {
		if f.IsLoading {
			return true
		}
	}
	return false
}

// Active returns the set types in a stable order.
func (m *Manager) Active() []Type {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Type
	for t, f := range m.flags {
		if f.IsLoading {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Snapshot copies every flag.
func (m *Manager) Snapshot() map[Type]Flag {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after every change and
// returns the unregister func.
func (m *Manager) Subscribe(fn func(map[Type]Flag)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners = append(m.listeners, listener{id: id, fn: fn})
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, l := range m.listeners {
			if l.id == id {
				m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
				return
			}
		}
	}
}

// Attach toggles t around every attempt made by c and returns the func
// that detaches it. Attached to GLOBAL, the end of an attempt leaves GLOBAL
// set while a typed flag is still loading.
func (m *Manager) Attach(c *httputil.Client, t Type, message string) func() {
	return httputil.InstallHooks(c,
		func() { m.Start(t, message) },
		func() { m.release(t) },
	)
}

func (m *Manager) release(t Type) {
	if t != Global {
		m.Stop(t)
		return
	}
	m.mu.Lock()
	if m.anyTypedLocked() {
		m.mu.Unlock()
		return
	}
	m.setLocked(Global, Flag{})
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) setLocked(t Type, f Flag) {
	m.flags[t] = f
	metrics.SetLoading(string(t), f.IsLoading)
}

func (m *Manager) anyTypedLocked() bool {
	for t, f := range m.flags {
		if t != Global && f.IsLoading {
			return true
		}
	}
	return false
}

func (m *Manager) snapshotLocked() map[Type]Flag {
	out := make(map[Type]Flag, len(m.flags))
	for t, f := range m.flags {
		out[t] = f
	}
	return out
}

func (m *Manager) notify() {
	m.mu.RLock()
	snap := m.snapshotLocked()
	fns := make([]func(map[Type]Flag), 0, len(m.listeners))
	for _, l := range m.listeners {
		fns = append(fns, l.fn)
	}
	m.mu.RUnlock()
	for _, fn := range fns {
		fn(snap)
	}
}
