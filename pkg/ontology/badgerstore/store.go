// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package badgerstore persists discovered relationships in BadgerDB for
// embedded deployments without a SQLite file (~100µs access).
//
// Each scope is stored as a single value, so a scope replacement is one
// key write inside a Badger transaction: readers observe either the old
// or the new full set.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/ontograph/pkg/ontology"
)

// DefaultTTL is the default freshness window for cached ontology entries.
const DefaultTTL = 24 * time.Hour

const (
	edgesKeyPrefix = "ontology/edges/"
	metaKeyPrefix  = "ontology/meta/"
)

// Config holds configuration for the Badger-backed store.
type Config struct {
	// Path is the directory for Badger files. Required unless InMemory.
	Path string

	// InMemory enables in-memory mode (no disk persistence). For tests.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// TTL is the freshness window. Default: 24h. Negative never expires.
	TTL time.Duration

	// Logger for store operations. If nil, Badger's internal logging is
	// disabled and slog.Default() is used for the store itself.
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults for production use.
func DefaultConfig() Config {
	return Config{
		SyncWrites: true,
		TTL:        DefaultTTL,
	}
}

// InMemoryConfig returns configuration optimized for testing.
func InMemoryConfig() Config {
	return Config{
		InMemory: true,
		TTL:      DefaultTTL,
	}
}

// scopeMeta tracks per-scope freshness.
type scopeMeta struct {
	SavedAtUnix int64 `json:"saved_at_unix"`
	Stale       bool  `json:"stale"`
	Count       int   `json:"count"`
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is the Badger-backed EdgeStore.
type Store struct {
	db     *badger.DB
	cfg    Config
	logger *slog.Logger
}

// Open creates and opens a store with the given configuration.
//
// The caller must Close() the returned store.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badgerstore: path required for persistent databases")
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("%w: create %s: %v", ontology.ErrStorageUnavailable, cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path).WithSyncWrites(cfg.SyncWrites)
	}
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger: %v", ontology.ErrStorageUnavailable, err)
	}

	return &Store{db: db, cfg: cfg, logger: logger.With("component", "badgerstore")}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveAll replaces the named scope in one transaction.
func (s *Store) SaveAll(ctx context.Context, scope string, edges []ontology.DiscoveredEdge) error {
	payload, err := json.Marshal(edges)
	if err != nil {
		return fmt.Errorf("%w: encode edges: %v", ontology.ErrStorageUnavailable, err)
	}
	meta, err := json.Marshal(scopeMeta{
		SavedAtUnix: time.Now().Unix(),
		Count:       len(edges),
	})
	if err != nil {
		return fmt.Errorf("%w: encode meta: %v", ontology.ErrStorageUnavailable, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(edgesKeyPrefix+scope), payload); err != nil {
			return err
		}
		return txn.Set([]byte(metaKeyPrefix+scope), meta)
	})
	if err != nil {
		return fmt.Errorf("%w: save scope %s: %v", ontology.ErrStorageUnavailable, scope, err)
	}

	s.logger.Debug("scope replaced", "scope", scope, "edges", len(edges))
	return nil
}

// LoadAll returns every entry across all scopes, schema scope first.
func (s *Store) LoadAll(ctx context.Context) ([]ontology.DiscoveredEdge, error) {
	all := make([]ontology.DiscoveredEdge, 0)

	for _, scope := range []string{ontology.ScopeSchema, ontology.ScopeInstances} {
		edges, err := s.LoadScope(ctx, scope)
		if err != nil {
			return nil, err
		}
		all = append(all, edges...)
	}

	// Any additional scopes, in key order.
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(edgesKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			scope := string(it.Item().Key()[len(prefix):])
			if scope == ontology.ScopeSchema || scope == ontology.ScopeInstances {
				continue
			}
			err := it.Item().Value(func(val []byte) error {
				var edges []ontology.DiscoveredEdge
				if err := json.Unmarshal(val, &edges); err != nil {
					return err
				}
				all = append(all, edges...)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: load all: %v", ontology.ErrStorageUnavailable, err)
	}
	return all, nil
}

// LoadScope returns the entries of one scope in insertion order.
func (s *Store) LoadScope(ctx context.Context, scope string) ([]ontology.DiscoveredEdge, error) {
	edges := make([]ontology.DiscoveredEdge, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(edgesKeyPrefix + scope))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &edges)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: load scope %s: %v", ontology.ErrStorageUnavailable, scope, err)
	}
	return edges, nil
}

// IsValid reports whether any scope holds a non-stale, non-empty set
// younger than the TTL.
func (s *Store) IsValid(ctx context.Context) bool {
	valid := false
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(metaKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var meta scopeMeta
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			}); err != nil {
				continue
			}
			if meta.Stale || meta.Count == 0 {
				continue
			}
			if s.cfg.TTL > 0 && time.Since(time.Unix(meta.SavedAtUnix, 0)) > s.cfg.TTL {
				continue
			}
			valid = true
			return nil
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("freshness check failed", "error", err)
		return false
	}
	return valid
}

// Clear removes all entries in the named scope; no-op when absent.
func (s *Store) Clear(ctx context.Context, scope string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(edgesKeyPrefix + scope)); err != nil {
			return err
		}
		return txn.Delete([]byte(metaKeyPrefix + scope))
	})
	if err != nil {
		return fmt.Errorf("%w: clear scope %s: %v", ontology.ErrStorageUnavailable, scope, err)
	}
	return nil
}

// Invalidate marks every scope stale without removing data.
func (s *Store) Invalidate(ctx context.Context) error {
	type pending struct {
		key  []byte
		meta scopeMeta
	}
	updates := make([]pending, 0)

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(metaKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var meta scopeMeta
			key := it.Item().KeyCopy(nil)
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			}); err != nil {
				return err
			}
			meta.Stale = true
			updates = append(updates, pending{key: key, meta: meta})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: read meta: %v", ontology.ErrStorageUnavailable, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, u := range updates {
			encoded, err := json.Marshal(u.meta)
			if err != nil {
				return err
			}
			if err := txn.Set(u.key, encoded); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: invalidate: %v", ontology.ErrStorageUnavailable, err)
	}
	return nil
}

var _ ontology.EdgeStore = (*Store)(nil)
