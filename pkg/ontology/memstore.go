// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ontology

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MemStore is an in-process EdgeStore. It backs tests and short-lived
// sessions that do not need persistence across restarts.
//
// Safe for concurrent use. SaveAll swaps a scope's slice under the write
// lock, so readers observe either the old or the new full set.
type MemStore struct {
	mu      sync.RWMutex
	scopes  map[string][]DiscoveredEdge
	ttl     time.Duration
	savedAt time.Time
	stale   bool

	// FailNext forces the next store operation to fail. Test hook for the
	// degradation paths; atomic so read paths can consume it without
	// taking the write lock.
	FailNext atomic.Bool
}

// NewMemStore creates an empty store with the given freshness TTL.
// ttl <= 0 means entries never expire.
func NewMemStore(ttl time.Duration) *MemStore {
	return &MemStore{
		scopes: make(map[string][]DiscoveredEdge),
		ttl:    ttl,
	}
}

// SaveAll replaces the named scope atomically.
func (s *MemStore) SaveAll(ctx context.Context, scope string, edges []DiscoveredEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailNext.CompareAndSwap(true, false) {
		return ErrStorageUnavailable
	}
	replacement := make([]DiscoveredEdge, len(edges))
	copy(replacement, edges)
	s.scopes[scope] = replacement
	s.savedAt = time.Now()
	s.stale = false
	return nil
}

// LoadAll returns every entry across all scopes, schema scope first for a
// deterministic order.
func (s *MemStore) LoadAll(ctx context.Context) ([]DiscoveredEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailNext.CompareAndSwap(true, false) {
		return nil, ErrStorageUnavailable
	}
	all := make([]DiscoveredEdge, 0)
	all = append(all, s.scopes[ScopeSchema]...)
	all = append(all, s.scopes[ScopeInstances]...)
	for scope, edges := range s.scopes {
		if scope == ScopeSchema || scope == ScopeInstances {
			continue
		}
		all = append(all, edges...)
	}
	return all, nil
}

// LoadScope returns the entries of one scope.
func (s *MemStore) LoadScope(ctx context.Context, scope string) ([]DiscoveredEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailNext.CompareAndSwap(true, false) {
		return nil, ErrStorageUnavailable
	}
	edges := s.scopes[scope]
	out := make([]DiscoveredEdge, len(edges))
	copy(out, edges)
	return out, nil
}

// IsValid reports non-empty and within TTL.
func (s *MemStore) IsValid(ctx context.Context) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stale {
		return false
	}
	total := 0
	for _, edges := range s.scopes {
		total += len(edges)
	}
	if total == 0 {
		return false
	}
	if s.ttl > 0 && time.Since(s.savedAt) > s.ttl {
		return false
	}
	return true
}

// Clear removes the named scope; no-op when absent.
func (s *MemStore) Clear(ctx context.Context, scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scopes, scope)
	return nil
}

// Invalidate marks the store stale without removing data.
func (s *MemStore) Invalidate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stale = true
	return nil
}

var _ EdgeStore = (*MemStore)(nil)
