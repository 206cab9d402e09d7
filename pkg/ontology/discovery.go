// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ontology

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/AleutianAI/ontograph/pkg/datasource"
)

// Edge types recording which inference rule produced a relationship.
const (
	EdgeTypeRoleMapping = "role_mapping"
	EdgeTypeKeySuffix   = "key_suffix"
	EdgeTypeNameMatch   = "name_match"
)

// keySuffixes are the column-name suffixes that mark a reference to another
// entity's key. Checked longest-first so "Number" wins over "ID" when both
// would match.
var keySuffixes = []string{"Number", "Code", "Key", "ID"}

// DiscoveryConfig configures relationship discovery.
type DiscoveryConfig struct {
	// Scope is the schema scope passed to the data source's metadata
	// calls. Required for inference.
	Scope string

	// Roles maps column names to canonical entities. Default:
	// DefaultRoleMap().
	Roles RoleMap

	// Logger for discovery operations. Default: slog.Default().
	Logger *slog.Logger
}

func (c *DiscoveryConfig) applyDefaults() {
	if c.Roles == nil {
		c.Roles = DefaultRoleMap()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Discovery produces the set of typed directed edges between entities,
// cache-first and by inference otherwise.
//
// Discovery is deterministic for a fixed metadata set and role map, and it
// never fails: storage errors degrade to returning only the inferred set.
type Discovery struct {
	store  EdgeStore
	ds     datasource.GraphDataSource
	cfg    DiscoveryConfig
	logger *slog.Logger
}

// NewDiscovery wires discovery to an edge store and a metadata source.
func NewDiscovery(store EdgeStore, ds datasource.GraphDataSource, cfg DiscoveryConfig) *Discovery {
	cfg.applyDefaults()
	return &Discovery{
		store:  store,
		ds:     ds,
		cfg:    cfg,
		logger: cfg.Logger.With("component", "discovery"),
	}
}

// Discover returns the ontology edge set.
//
// Strategy: when the store is valid, its cached schema entries are
// returned. Otherwise edges are inferred from table metadata, persisted,
// and returned. The only error condition is context cancellation; storage
// failures are logged and degrade to the inferred set.
func (d *Discovery) Discover(ctx context.Context) ([]DiscoveredEdge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if d.store != nil && d.store.IsValid(ctx) {
		cached, err := d.store.LoadScope(ctx, ScopeSchema)
		if err == nil && len(cached) > 0 {
			d.logger.Debug("ontology served from cache", "edges", len(cached))
			return cached, nil
		}
		if err != nil {
			d.logger.Warn("ontology cache read failed, re-inferring", "error", err)
		}
	}

	edges := d.infer(ctx)

	if d.store != nil {
		if err := d.store.SaveAll(ctx, ScopeSchema, edges); err != nil {
			d.logger.Warn("ontology persist failed, returning inferred set", "error", err)
		}
	}
	return edges, ctx.Err()
}

// infer builds the edge set from naming conventions and metadata.
//
// Rule precedence: role mapping, then key-suffix stripping, then entity
// name containment. Self-references are discarded. Ties within a rule
// prefer the longer match. Tables are visited in name order and columns in
// metadata order, so the output is deterministic.
func (d *Discovery) infer(ctx context.Context) []DiscoveredEdge {
	tables, err := d.ds.GetTables(ctx, d.cfg.Scope)
	if err != nil {
		d.logger.Warn("metadata enumeration failed", "scope", d.cfg.Scope, "error", err)
		return []DiscoveredEdge{}
	}

	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })

	// Known entity labels for the containment rule, longest first.
	labels := make([]string, 0, len(tables))
	for _, t := range tables {
		labels = append(labels, t.Name)
	}
	sort.Slice(labels, func(i, j int) bool {
		if len(labels[i]) != len(labels[j]) {
			return len(labels[i]) > len(labels[j])
		}
		return labels[i] < labels[j]
	})

	edges := make([]DiscoveredEdge, 0)
	for _, table := range tables {
		structure, err := d.ds.GetTableStructure(ctx, d.cfg.Scope, table.Name)
		if err != nil {
			d.logger.Warn("table structure unavailable, skipping", "table", table.Name, "error", err)
			continue
		}

		keyColumn := primaryKeyColumn(structure)
		for _, col := range structure.Columns {
			if col.IsPrimaryKey {
				continue
			}
			target, ruleType := d.resolveTarget(table.Name, col.Name, labels)
			if target == "" || strings.EqualFold(target, table.Name) {
				continue
			}
			edges = append(edges, DiscoveredEdge{
				SourceLabel:     table.Name,
				SourceKeyColumn: keyColumn,
				SourceColumn:    col.Name,
				TargetLabel:     target,
				EdgeType:        ruleType,
				EdgeLabel:       "HAS_" + strings.ToUpper(target),
			})
		}
	}

	d.logger.Info("ontology inferred", "tables", len(tables), "edges", len(edges))
	return edges
}

// resolveTarget applies the inference rules in priority order and returns
// the target label plus the rule that matched, or ("", "").
func (d *Discovery) resolveTarget(sourceLabel, column string, labels []string) (string, string) {
	// Role mapping: exact case-insensitive column-name match.
	if target, ok := d.cfg.Roles.Resolve(column); ok {
		return target, EdgeTypeRoleMapping
	}

	// Suffix stripping: a non-empty stem ahead of a key suffix is the
	// target. Canonicalized to a known label's casing when one matches.
	for _, suffix := range keySuffixes {
		if len(column) <= len(suffix) {
			continue
		}
		if !strings.EqualFold(column[len(column)-len(suffix):], suffix) {
			continue
		}
		stem := column[:len(column)-len(suffix)]
		if stem == "" || strings.EqualFold(stem, sourceLabel) {
			continue
		}
		return canonicalLabel(stem, labels), EdgeTypeKeySuffix
	}

	// Containment: a known entity label embedded in the column name.
	// labels is pre-sorted longest-first, so the longest match wins.
	lower := strings.ToLower(column)
	for _, label := range labels {
		if strings.EqualFold(label, sourceLabel) {
			continue
		}
		if strings.Contains(lower, strings.ToLower(label)) {
			return label, EdgeTypeNameMatch
		}
	}

	return "", ""
}

// canonicalLabel returns the known label matching stem case-insensitively,
// or the stem itself when no table carries that name.
func canonicalLabel(stem string, labels []string) string {
	for _, label := range labels {
		if strings.EqualFold(label, stem) {
			return label
		}
	}
	return stem
}

// primaryKeyColumn returns the first primary-key column, or "ID".
func primaryKeyColumn(t *datasource.Table) string {
	for _, col := range t.Columns {
		if col.IsPrimaryKey {
			return col.Name
		}
	}
	return "ID"
}
