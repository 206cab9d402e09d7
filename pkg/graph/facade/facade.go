// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package facade selects a graph backend from the data source's
// self-reported flavor and re-exports the full engine contract against it.
//
// Selection happens once at construction and is final for the facade's
// lifetime: a "remote" data source gets the remote engine, falling back to
// the in-memory engine with a warning when remote construction fails; every
// other flavor gets the in-memory engine. No runtime feature probing.
package facade

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/AleutianAI/ontograph/pkg/datasource"
	"github.com/AleutianAI/ontograph/pkg/graph"
	"github.com/AleutianAI/ontograph/pkg/graph/memory"
	"github.com/AleutianAI/ontograph/pkg/graph/remote"
	"github.com/AleutianAI/ontograph/pkg/ontology"
	"github.com/AleutianAI/ontograph/pkg/ontology/sqlitestore"
	"github.com/AleutianAI/ontograph/pkg/telemetry"
)

// remoteSourceType is the connection flavor that selects the remote engine.
const remoteSourceType = "remote"

// Config configures facade construction.
type Config struct {
	// DataSource classifies the backend and serves remote queries.
	// Required.
	DataSource datasource.GraphDataSource

	// Store is the ontology edge store backing the in-memory engine.
	// Required unless StorePath is set.
	Store ontology.EdgeStore

	// StorePath opens a SQLite-backed edge store at the given path when
	// Store is nil.
	StorePath string

	// Workspace is the remote graph workspace name. Only consulted for
	// remote data sources. Default: remote.DefaultWorkspace.
	Workspace string

	// Logger receives structured diagnostics. Default: slog.Default().
	Logger *slog.Logger

	// Metrics, when set, records per-query counters and durations tagged
	// with the selected backend. Optional.
	Metrics *telemetry.Metrics
}

// Facade re-exports the engine contract over the backend selected at
// construction time.
type Facade struct {
	engine  graph.Engine
	logger  *slog.Logger
	metrics *telemetry.Metrics

	// store is owned by the facade only when it opened one from StorePath.
	ownedStore *sqlitestore.Store
}

var _ graph.Engine = (*Facade)(nil)
var _ graph.Analytics = (*Facade)(nil)

// New classifies the data source and constructs the backing engine.
//
// Description:
//
//	A data source reporting type "remote" selects the remote engine; if
//	its construction fails the facade logs a warning and falls back to
//	the in-memory engine. Any other type selects the in-memory engine
//	directly. The choice is final for the life of the facade.
//
// Outputs:
//
//   - *Facade: ready facade on success.
//   - error: ErrEngineConstruction when no engine could be built.
func New(ctx context.Context, cfg Config) (*Facade, error) {
	if cfg.DataSource == nil {
		return nil, fmt.Errorf("%w: nil data source", graph.ErrEngineConstruction)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	f := &Facade{logger: logger, metrics: cfg.Metrics}

	if cfg.DataSource.ConnectionInfo().Type == remoteSourceType {
		engine, err := remote.New(ctx, remote.Config{
			DataSource: cfg.DataSource,
			Workspace:  cfg.Workspace,
			Logger:     logger,
		})
		if err == nil {
			f.engine = engine
			logger.Info("graph facade using remote backend", "workspace", engine.Workspace())
			return f, nil
		}
		logger.Warn("remote engine construction failed, falling back to in-memory backend",
			"error", err)
		if f.metrics != nil {
			f.metrics.RemoteFallbacksTotal.Add(ctx, 1)
		}
	}

	store := cfg.Store
	if store == nil {
		if cfg.StorePath == "" {
			return nil, fmt.Errorf("%w: no edge store and no store path configured",
				graph.ErrEngineConstruction)
		}
		opened, err := sqlitestore.Open(sqlitestore.Config{Path: cfg.StorePath, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("%w: opening edge store at %s: %v",
				graph.ErrEngineConstruction, cfg.StorePath, err)
		}
		f.ownedStore = opened
		store = opened
	}

	info := cfg.DataSource.ConnectionInfo()
	engine, err := memory.New(store, memory.Config{
		DataSourceType: info.Type,
		Database:       info.Database,
		Logger:         logger,
	})
	if err != nil {
		f.closeOwnedStore()
		return nil, err
	}
	f.engine = engine
	logger.Info("graph facade using in-memory backend", "data_source", info.Type)
	return f, nil
}

// Close releases resources the facade opened itself. Engines and stores
// passed in by the caller remain the caller's to close.
func (f *Facade) Close() error {
	return f.closeOwnedStore()
}

func (f *Facade) closeOwnedStore() error {
	if f.ownedStore == nil {
		return nil
	}
	err := f.ownedStore.Close()
	f.ownedStore = nil
	return err
}

// Engine exposes the selected backend, mainly for tests and diagnostics.
func (f *Facade) Engine() graph.Engine {
	return f.engine
}

// BackendInfo reports the selected backend. Constant for the facade's
// lifetime.
func (f *Facade) BackendInfo() graph.BackendInfo {
	return f.engine.Backend()
}

// Backend implements graph.Engine.
func (f *Facade) Backend() graph.BackendInfo {
	return f.engine.Backend()
}

// observe records one delegated query against the backend-tagged counters.
// No-op when no metrics were configured.
func (f *Facade) observe(ctx context.Context, op string, start time.Time, err error) {
	if f.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("backend", f.engine.Backend().Backend),
		attribute.String("status", status),
	)
	f.metrics.GraphQueriesTotal.Add(ctx, 1, attrs)
	f.metrics.GraphQueryDuration.Record(ctx, time.Since(start).Seconds(), attrs)
}

// Neighbors delegates to the selected backend.
func (f *Facade) Neighbors(ctx context.Context, nodeID string, opts ...graph.QueryOption) ([]*graph.Node, error) {
	start := time.Now()
	nodes, err := f.engine.Neighbors(ctx, nodeID, opts...)
	f.observe(ctx, "neighbors", start, err)
	return nodes, err
}

// ShortestPath delegates to the selected backend.
func (f *Facade) ShortestPath(ctx context.Context, startID, endID string, opts ...graph.QueryOption) (*graph.Path, error) {
	start := time.Now()
	path, err := f.engine.ShortestPath(ctx, startID, endID, opts...)
	f.observe(ctx, "shortest_path", start, err)
	return path, err
}

// Traverse delegates to the selected backend.
func (f *Facade) Traverse(ctx context.Context, startID string, depth int, opts ...graph.QueryOption) ([]*graph.Node, error) {
	start := time.Now()
	nodes, err := f.engine.Traverse(ctx, startID, depth, opts...)
	f.observe(ctx, "traverse", start, err)
	return nodes, err
}

// Subgraph delegates to the selected backend.
func (f *Facade) Subgraph(ctx context.Context, nodeIDs []string, includeEdges bool) (*graph.Subgraph, error) {
	start := time.Now()
	sub, err := f.engine.Subgraph(ctx, nodeIDs, includeEdges)
	f.observe(ctx, "subgraph", start, err)
	return sub, err
}

// GetNode delegates to the selected backend.
func (f *Facade) GetNode(ctx context.Context, nodeID string) (*graph.Node, error) {
	start := time.Now()
	node, err := f.engine.GetNode(ctx, nodeID)
	f.observe(ctx, "get_node", start, err)
	return node, err
}

// NodeExists delegates to the selected backend.
func (f *Facade) NodeExists(ctx context.Context, nodeID string) (bool, error) {
	start := time.Now()
	exists, err := f.engine.NodeExists(ctx, nodeID)
	f.observe(ctx, "node_exists", start, err)
	return exists, err
}

// NodeCount delegates to the selected backend.
func (f *Facade) NodeCount(ctx context.Context) (int, error) {
	return f.engine.NodeCount(ctx)
}

// EdgeCount delegates to the selected backend.
func (f *Facade) EdgeCount(ctx context.Context) (int, error) {
	return f.engine.EdgeCount(ctx)
}

// PageRank delegates with graceful degradation: an engine without
// analytics yields an empty map, never an error.
func (f *Facade) PageRank(ctx context.Context) (map[string]float64, error) {
	if a, ok := f.engine.(graph.Analytics); ok {
		start := time.Now()
		scores, err := a.PageRank(ctx)
		f.observe(ctx, "pagerank", start, err)
		return scores, err
	}
	return map[string]float64{}, nil
}

// DegreeCentrality delegates with graceful degradation.
func (f *Facade) DegreeCentrality(ctx context.Context) (map[string]float64, error) {
	if a, ok := f.engine.(graph.Analytics); ok {
		start := time.Now()
		scores, err := a.DegreeCentrality(ctx)
		f.observe(ctx, "degree_centrality", start, err)
		return scores, err
	}
	return map[string]float64{}, nil
}

// Communities delegates with graceful degradation.
func (f *Facade) Communities(ctx context.Context) (map[string]int, error) {
	if a, ok := f.engine.(graph.Analytics); ok {
		start := time.Now()
		labels, err := a.Communities(ctx)
		f.observe(ctx, "communities", start, err)
		return labels, err
	}
	return map[string]int{}, nil
}

// Cycles delegates with graceful degradation.
func (f *Facade) Cycles(ctx context.Context, limit int) ([][]string, error) {
	if a, ok := f.engine.(graph.Analytics); ok {
		start := time.Now()
		cycles, err := a.Cycles(ctx, limit)
		f.observe(ctx, "cycles", start, err)
		return cycles, err
	}
	return [][]string{}, nil
}
