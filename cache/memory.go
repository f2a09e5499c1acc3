// Package cache provides caching implementations for Rampart access
// decisions.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xraph/rampart"
)

// Compile-time interface check.
var _ rampart.Cache = (*Memory)(nil)

// Memory is an in-memory cache with TTL-based expiration. Keys include
// the device so trust transitions can invalidate precisely.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttl     time.Duration
	maxSize int
}

type entry struct {
	decision  *rampart.AccessDecision
	expiresAt time.Time
}

// MemoryOption configures the memory cache.
type MemoryOption func(*Memory)

// WithTTL sets the cache entry time-to-live.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(m *Memory) { m.ttl = ttl }
}

// WithMaxSize sets the maximum number of cache entries.
func WithMaxSize(n int) MemoryOption {
	return func(m *Memory) { m.maxSize = n }
}

// NewMemory creates a new in-memory cache.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]*entry),
		ttl:     time.Minute,
		maxSize: 10000,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns a cached access decision.
func (m *Memory) Get(_ context.Context, tenantID string, access *rampart.AccessContext) (*rampart.AccessDecision, bool) {
	key := cacheKey(tenantID, access)
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false
	}
	return e.decision, true
}

// Set stores an access decision in the cache.
func (m *Memory) Set(_ context.Context, tenantID string, access *rampart.AccessContext, decision *rampart.AccessDecision) {
	key := cacheKey(tenantID, access)
	m.mu.Lock()
	defer m.mu.Unlock()

	// Evict if at capacity.
	if len(m.entries) >= m.maxSize {
		m.evictExpired()
		if len(m.entries) >= m.maxSize {
			// Evict oldest entry.
			m.evictOne()
		}
	}

	m.entries[key] = &entry{
		decision:  decision,
		expiresAt: time.Now().Add(m.ttl),
	}
}

// InvalidateTenant removes all cached decisions for a tenant.
func (m *Memory) InvalidateTenant(_ context.Context, tenantID string) {
	prefix := tenantID + ":"
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.entries {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			delete(m.entries, k)
		}
	}
}

// InvalidateDevice removes all cached decisions involving a device.
func (m *Memory) InvalidateDevice(_ context.Context, tenantID, deviceID string) {
	devKey := fmt.Sprintf("%s:%s:", tenantID, deviceID)
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.entries {
		if len(k) >= len(devKey) && k[:len(devKey)] == devKey {
			delete(m.entries, k)
		}
	}
}

func cacheKey(tenantID string, access *rampart.AccessContext) string {
	// The trust score participates in the key so a refreshed score is
	// never served a decision computed from the stale one.
	return fmt.Sprintf("%s:%s:%s:%s:%s:%s:%.3f",
		tenantID,
		access.DeviceID,
		access.UserID,
		access.Resource,
		access.Action,
		access.RiskLevel,
		access.Trust.Overall,
	)
}

// evictExpired removes all expired entries. Must hold write lock.
func (m *Memory) evictExpired() {
	now := time.Now()
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
		}
	}
}

// evictOne removes one arbitrary entry. Must hold write lock.
func (m *Memory) evictOne() {
	for k := range m.entries {
		delete(m.entries, k)
		return
	}
}
