// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package sqlitestore persists discovered relationships in a SQLite
// database, serving as the durable ontology cache.
//
// Writes are generation-based: SaveAll inserts a new generation, flips the
// scope's generation pointer inside the same transaction, then drops the
// superseded rows. A concurrent reader therefore sees either the old full
// set or the new full set, never a mix.
//
// Freshness policy: the store is valid while at least one scope has a
// non-stale generation with rows younger than the TTL (default 24h).
// Invalidate marks every generation stale without removing data.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/AleutianAI/ontograph/pkg/ontology"
)

// DefaultTTL is the default freshness window for cached ontology entries.
const DefaultTTL = 24 * time.Hour

const schema = `
CREATE TABLE IF NOT EXISTS edge_generations (
    scope      TEXT PRIMARY KEY,
    generation TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    stale      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS discovered_edges (
    scope           TEXT NOT NULL,
    generation      TEXT NOT NULL,
    seq             INTEGER NOT NULL,
    source_label    TEXT NOT NULL,
    source_key      TEXT NOT NULL DEFAULT '',
    source_column   TEXT NOT NULL,
    target_label    TEXT NOT NULL,
    edge_type       TEXT NOT NULL,
    edge_label      TEXT NOT NULL,
    properties_json TEXT
);

CREATE INDEX IF NOT EXISTS idx_discovered_edges_scope
    ON discovered_edges(scope, generation, seq);
`

// Config configures the store.
type Config struct {
	// Path is the SQLite file path, or ":memory:" for tests. Required.
	Path string

	// TTL is the freshness window. Default: 24h. Zero or negative means
	// entries never expire.
	TTL time.Duration

	// Logger for store operations. Default: slog.Default().
	Logger *slog.Logger
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Path == "" {
		return errors.New("path must not be empty")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.TTL == 0 {
		c.TTL = DefaultTTL
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Store is the SQLite-backed EdgeStore.
type Store struct {
	db     *sql.DB
	cfg    Config
	logger *slog.Logger
}

// Open creates or opens the store at cfg.Path and ensures the schema.
func Open(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("sqlitestore config: %w", err)
	}
	cfg.applyDefaults()

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ontology.ErrStorageUnavailable, cfg.Path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ensure schema: %v", ontology.ErrStorageUnavailable, err)
	}

	return &Store{db: db, cfg: cfg, logger: cfg.Logger.With("component", "sqlitestore")}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the configured database location.
func (s *Store) Path() string {
	return s.cfg.Path
}

// SaveAll replaces the named scope with a fresh generation.
func (s *Store) SaveAll(ctx context.Context, scope string, edges []ontology.DiscoveredEdge) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin save: %v", ontology.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	generation := uuid.NewString()
	now := time.Now().Unix()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO discovered_edges
		    (scope, generation, seq, source_label, source_key, source_column,
		     target_label, edge_type, edge_label, properties_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare insert: %v", ontology.ErrStorageUnavailable, err)
	}
	defer stmt.Close()

	for i, edge := range edges {
		props, err := marshalProperties(edge)
		if err != nil {
			return fmt.Errorf("%w: encode properties: %v", ontology.ErrStorageUnavailable, err)
		}
		if _, err := stmt.ExecContext(ctx,
			scope, generation, i,
			edge.SourceLabel, edge.SourceKey, edge.SourceColumn,
			edge.TargetLabel, edge.EdgeType, edge.EdgeLabel, props,
		); err != nil {
			return fmt.Errorf("%w: insert edge: %v", ontology.ErrStorageUnavailable, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO edge_generations (scope, generation, created_at, stale)
		VALUES (?, ?, ?, 0)
		ON CONFLICT(scope) DO UPDATE SET generation = excluded.generation,
		                                 created_at = excluded.created_at,
		                                 stale      = 0`,
		scope, generation, now,
	); err != nil {
		return fmt.Errorf("%w: flip generation: %v", ontology.ErrStorageUnavailable, err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM discovered_edges WHERE scope = ? AND generation <> ?`,
		scope, generation,
	); err != nil {
		return fmt.Errorf("%w: drop superseded generation: %v", ontology.ErrStorageUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit save: %v", ontology.ErrStorageUnavailable, err)
	}

	s.logger.Debug("scope replaced", "scope", scope, "edges", len(edges), "generation", generation)
	return nil
}

// LoadAll returns every entry across all scopes, schema scope first.
func (s *Store) LoadAll(ctx context.Context) ([]ontology.DiscoveredEdge, error) {
	return s.load(ctx, `
		SELECT e.source_label, e.source_key, e.source_column, e.target_label,
		       e.edge_type, e.edge_label, e.properties_json
		FROM discovered_edges e
		JOIN edge_generations g ON g.scope = e.scope AND g.generation = e.generation
		ORDER BY CASE e.scope WHEN ? THEN 0 WHEN ? THEN 1 ELSE 2 END, e.seq`,
		ontology.ScopeSchema, ontology.ScopeInstances)
}

// LoadScope returns the current generation of one scope in insertion order.
func (s *Store) LoadScope(ctx context.Context, scope string) ([]ontology.DiscoveredEdge, error) {
	return s.load(ctx, `
		SELECT e.source_label, e.source_key, e.source_column, e.target_label,
		       e.edge_type, e.edge_label, e.properties_json
		FROM discovered_edges e
		JOIN edge_generations g ON g.scope = e.scope AND g.generation = e.generation
		WHERE e.scope = ?
		ORDER BY e.seq`,
		scope)
}

func (s *Store) load(ctx context.Context, query string, args ...any) ([]ontology.DiscoveredEdge, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: load edges: %v", ontology.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	edges := make([]ontology.DiscoveredEdge, 0)
	for rows.Next() {
		var edge ontology.DiscoveredEdge
		var props sql.NullString
		if err := rows.Scan(
			&edge.SourceLabel, &edge.SourceKey, &edge.SourceColumn,
			&edge.TargetLabel, &edge.EdgeType, &edge.EdgeLabel, &props,
		); err != nil {
			return nil, fmt.Errorf("%w: scan edge: %v", ontology.ErrStorageUnavailable, err)
		}
		if props.Valid && props.String != "" {
			if err := unmarshalProperties(props.String, &edge); err != nil {
				return nil, fmt.Errorf("%w: decode properties: %v", ontology.ErrStorageUnavailable, err)
			}
		}
		edges = append(edges, edge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate edges: %v", ontology.ErrStorageUnavailable, err)
	}
	return edges, nil
}

// IsValid reports whether any scope holds a non-stale generation younger
// than the TTL with at least one row.
func (s *Store) IsValid(ctx context.Context) bool {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM edge_generations g
		WHERE g.stale = 0
		  AND EXISTS (SELECT 1 FROM discovered_edges e
		              WHERE e.scope = g.scope AND e.generation = g.generation)
		  AND (? <= 0 OR g.created_at >= ?)`,
		int64(s.cfg.TTL/time.Second), time.Now().Add(-s.cfg.TTL).Unix())

	var count int
	if err := row.Scan(&count); err != nil {
		s.logger.Warn("freshness check failed", "error", err)
		return false
	}
	return count > 0
}

// Clear removes all entries in the named scope; no-op when absent.
func (s *Store) Clear(ctx context.Context, scope string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin clear: %v", ontology.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM discovered_edges WHERE scope = ?`, scope); err != nil {
		return fmt.Errorf("%w: clear edges: %v", ontology.ErrStorageUnavailable, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM edge_generations WHERE scope = ?`, scope); err != nil {
		return fmt.Errorf("%w: clear generation: %v", ontology.ErrStorageUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit clear: %v", ontology.ErrStorageUnavailable, err)
	}
	return nil
}

// Invalidate marks every generation stale. Data stays in place so a later
// SaveAll can be diffed against it if needed.
func (s *Store) Invalidate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE edge_generations SET stale = 1`); err != nil {
		return fmt.Errorf("%w: invalidate: %v", ontology.ErrStorageUnavailable, err)
	}
	return nil
}

// The wire format has no dedicated columns for the key-column name or the
// bound target key, so both ride inside properties_json under reserved
// keys and are stripped again on read.
const (
	propSourceKeyColumn = "source_key_column"
	propTargetKey       = "target_key"
)

func marshalProperties(edge ontology.DiscoveredEdge) (string, error) {
	if len(edge.Properties) == 0 && edge.SourceKeyColumn == "" && edge.TargetKey == "" {
		return "", nil
	}
	props := make(map[string]any, len(edge.Properties)+2)
	for k, v := range edge.Properties {
		props[k] = v
	}
	if edge.SourceKeyColumn != "" {
		props[propSourceKeyColumn] = edge.SourceKeyColumn
	}
	if edge.TargetKey != "" {
		props[propTargetKey] = edge.TargetKey
	}
	encoded, err := json.Marshal(props)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func unmarshalProperties(raw string, edge *ontology.DiscoveredEdge) error {
	props := make(map[string]any)
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return err
	}
	if v, ok := props[propSourceKeyColumn].(string); ok {
		edge.SourceKeyColumn = v
		delete(props, propSourceKeyColumn)
	}
	if v, ok := props[propTargetKey].(string); ok {
		edge.TargetKey = v
		delete(props, propTargetKey)
	}
	if len(props) > 0 {
		edge.Properties = props
	}
	return nil
}

var _ ontology.EdgeStore = (*Store)(nil)
