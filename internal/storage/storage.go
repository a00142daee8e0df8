// Package storage provides the device key/value persistence used by the
// auth service and the stores. Values are JSON-serialized.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Keys used by the storefront.
const (
	KeyAuthToken       = "auth_token"
	KeyUISettings      = "ui_settings"
	KeyCartItems       = "cart_items"
	KeySearchHistory   = "search_history"
	KeyFavorites       = "favorites"
	KeyViewHistory     = "view_history"
	KeyThemePreference = "theme_preference"
)

// KV is a string-keyed store of JSON values.
type KV interface {
	// Get decodes the value at key into dst. It reports false when the key
	// is absent, leaving dst untouched.
	Get(ctx context.Context, key string, dst any) (bool, error)
	// Set encodes v and stores it at key.
	Set(ctx context.Context, key string, v any) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}

// Memory is an in-process KV.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory KV.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Get implements KV.
func (m *Memory) Get(_ context.Context, key string, dst any) (bool, error) {
	m.mu.RLock()
	raw, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// Set implements KV.
func (m *Memory) Set(_ context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = raw
	return nil
}

// Remove implements KV.
func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Has reports whether key is present.
func (m *Memory) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[key]
	return ok
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
