// Package cache provides an in-process key-value cache with expiry.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultSize is the capacity used when none is configured
const DefaultSize = 10000

type entry struct {
	value     string
	expiresAt time.Time
}

// Memory is a size-bounded LRU whose entries also expire.
// The LRU evicts after maxTTL; shorter per-entry TTLs are checked on read.
type Memory struct {
	lru *expirable.LRU[string, entry]
	now func() time.Time
}

// NewMemory creates a cache holding at most size entries, none older than maxTTL
func NewMemory(size int, maxTTL time.Duration) *Memory {
	if size <= 0 {
		size = DefaultSize
	}
	return &Memory{
		lru: expirable.NewLRU[string, entry](size, nil, maxTTL),
		now: time.Now,
	}
}

// Get returns the value for key if present and unexpired
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	e, ok := m.lru.Get(key)
	if !ok {
		return "", false, nil
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		m.lru.Remove(key)
		return "", false, nil
	}
	return e.value, true, nil
}

// Set stores value under key. A non-positive ttl keeps the entry until evicted.
func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.lru.Add(key, e)
	return nil
}

// Len returns the number of cached entries, expired ones included until purged
func (m *Memory) Len() int {
	return m.lru.Len()
}

// Purge drops every entry
func (m *Memory) Purge() {
	m.lru.Purge()
}
