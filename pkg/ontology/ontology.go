// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ontology provides relationship discovery and the persistent edge
// store that feeds the in-memory graph engine.
//
// The ontology is a read-mostly set of DiscoveredEdge records. Discovery
// infers schema-level relationships from metadata (role mapping, key-column
// suffixes, entity-name containment); the Loader expands them into
// instance-level edges whose endpoints carry the "Label:Key" convention.
//
// # Failure policy
//
// Storage failures surface as ErrStorageUnavailable and are treated
// identically to a stale cache: discovery re-infers and degrades to the
// inferred set rather than failing.
package ontology

import (
	"context"
	"errors"

	"github.com/AleutianAI/ontograph/pkg/graph"
)

// Store scopes. SaveAll and Clear operate per scope; a reader observes
// either the pre-write or the post-write set of a scope, never a mix.
const (
	// ScopeSchema holds schema-level relationships produced by discovery.
	ScopeSchema = "schema"

	// ScopeInstances holds instance-level edges produced by the Loader.
	// These are what the in-memory engine materializes.
	ScopeInstances = "instances"
)

// ErrStorageUnavailable is the single error kind for edge-store failures.
// Callers treat it identically to IsValid() == false.
var ErrStorageUnavailable = errors.New("edge store unavailable")

// DiscoveredEdge is one ontology entry: a typed directed relationship
// between entities, optionally bound to a concrete row pair.
//
// Schema-level entries (produced by discovery) leave SourceKey and
// TargetKey empty. Instance-level entries (produced by the Loader) bind
// both, and their endpoints render as "Label:Key" node ids.
type DiscoveredEdge struct {
	// SourceLabel is the entity kind owning the referencing column.
	SourceLabel string `json:"source_label"`

	// SourceKey is the instance key of the source row. Empty for
	// schema-level entries.
	SourceKey string `json:"source_key"`

	// SourceKeyColumn names the source entity's primary-key column.
	SourceKeyColumn string `json:"source_key_column"`

	// SourceColumn is the referencing column the edge was inferred from.
	SourceColumn string `json:"source_column"`

	// TargetLabel is the referenced entity kind.
	TargetLabel string `json:"target_label"`

	// TargetKey is the instance key of the target row. Empty for
	// schema-level entries; persisted inside the properties map on the
	// wire (the row format carries no dedicated column for it).
	TargetKey string `json:"target_key,omitempty"`

	// EdgeType records which inference rule produced the relationship.
	EdgeType string `json:"edge_type"`

	// EdgeLabel is the relationship kind (e.g., "HAS_SUPPLIER").
	EdgeLabel string `json:"edge_label"`

	// Properties holds free-form scalar attributes.
	Properties map[string]any `json:"properties,omitempty"`
}

// IsBound reports whether the entry carries instance keys.
func (e *DiscoveredEdge) IsBound() bool {
	return e.SourceKey != "" && e.TargetKey != ""
}

// SourceID renders the source endpoint as a "Label:Key" node id.
func (e *DiscoveredEdge) SourceID() string {
	return graph.FormatNodeID(e.SourceLabel, e.SourceKey)
}

// TargetID renders the target endpoint as a "Label:Key" node id.
func (e *DiscoveredEdge) TargetID() string {
	return graph.FormatNodeID(e.TargetLabel, e.TargetKey)
}

// EdgeStore persists DiscoveredEdge records. Implementations choose their
// own freshness policy; the shipped stores use non-empty + generation TTL.
//
// Writes are atomic per scope with respect to readers.
type EdgeStore interface {
	// SaveAll replaces the named scope with the given set. A concurrent
	// reader sees either the old full set or the new full set.
	SaveAll(ctx context.Context, scope string, edges []DiscoveredEdge) error

	// LoadAll returns every entry across all scopes.
	LoadAll(ctx context.Context) ([]DiscoveredEdge, error)

	// LoadScope returns the entries of one scope.
	LoadScope(ctx context.Context, scope string) ([]DiscoveredEdge, error)

	// IsValid reports whether the store is non-empty and fresh. False is
	// the signal to fall back to discovery.
	IsValid(ctx context.Context) bool

	// Clear removes all entries in the named scope; no-op when absent.
	Clear(ctx context.Context, scope string) error

	// Invalidate marks the whole store stale without removing data.
	Invalidate(ctx context.Context) error
}
