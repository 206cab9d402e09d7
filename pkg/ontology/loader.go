// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ontology

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/ontograph/pkg/datasource"
)

// Loader expands schema-level ontology entries into instance-level edges by
// reading the referencing rows through the data source, and persists them
// under ScopeInstances. The in-memory engine materializes its graph from
// that scope; the loader runs offline or on demand, never on the hot query
// path.
type Loader struct {
	store  EdgeStore
	ds     datasource.GraphDataSource
	logger *slog.Logger
}

// NewLoader wires a loader to an edge store and a row source.
func NewLoader(store EdgeStore, ds datasource.GraphDataSource, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{store: store, ds: ds, logger: logger.With("component", "loader")}
}

// Load binds every schema edge to concrete row pairs and replaces the
// instance scope with the result.
//
// Row-level query failures degrade per relationship (logged, skipped);
// store failures are returned wrapped in ErrStorageUnavailable. Returns the
// number of instance edges persisted.
func (l *Loader) Load(ctx context.Context) (int, error) {
	schema, err := l.store.LoadScope(ctx, ScopeSchema)
	if err != nil {
		return 0, fmt.Errorf("%w: load schema scope: %v", ErrStorageUnavailable, err)
	}

	instances := make([]DiscoveredEdge, 0)
	seen := make(map[string]bool)

	for _, rel := range schema {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		rows := l.fetchPairs(ctx, rel)
		for _, pair := range rows {
			bound := rel
			bound.SourceKey = pair[0]
			bound.TargetKey = pair[1]

			// One instance edge per (source, target, label).
			dedupeKey := bound.SourceID() + "|" + bound.TargetID() + "|" + bound.EdgeLabel
			if seen[dedupeKey] {
				continue
			}
			seen[dedupeKey] = true
			instances = append(instances, bound)
		}
	}

	if err := l.store.SaveAll(ctx, ScopeInstances, instances); err != nil {
		return 0, fmt.Errorf("%w: persist instance scope: %v", ErrStorageUnavailable, err)
	}

	l.logger.Info("instance edges loaded", "schema_edges", len(schema), "instance_edges", len(instances))
	return len(instances), nil
}

// fetchPairs reads (source key, referenced key) pairs for one relationship.
// Failures yield an empty slice; the relationship is skipped, not fatal.
func (l *Loader) fetchPairs(ctx context.Context, rel DiscoveredEdge) [][2]string {
	query := fmt.Sprintf(
		`SELECT %s, %s FROM %s WHERE %s IS NOT NULL AND %s <> ''`,
		quoteIdent(rel.SourceKeyColumn),
		quoteIdent(rel.SourceColumn),
		quoteIdent(rel.SourceLabel),
		quoteIdent(rel.SourceColumn),
		quoteIdent(rel.SourceColumn),
	)

	res := l.ds.ExecuteQuery(ctx, query)
	if !res.Success {
		l.logger.Warn("instance binding query failed, skipping relationship",
			"source", rel.SourceLabel,
			"column", rel.SourceColumn,
			"code", res.Error.Code,
			"error", res.Error.Message,
		)
		return nil
	}

	pairs := make([][2]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		source := scalarString(row[rel.SourceKeyColumn])
		target := scalarString(row[rel.SourceColumn])
		if source == "" || target == "" {
			continue
		}
		pairs = append(pairs, [2]string{source, target})
	}
	return pairs
}

// scalarString renders a row value as a node key string.
func scalarString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprintf("%v", s)
	}
}

// quoteIdent double-quotes an identifier from trusted metadata for
// interpolation into generated statements.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
