// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package memory implements the graph query contract over an in-process
// directed multigraph materialized from the ontology edge store.
//
// # Lifecycle
//
// The first query (or an explicit Preload) reads every instance-level edge
// from the EdgeStore and builds an immutable snapshot. Subsequent queries
// are CPU-only against that snapshot until ClearCache discards it, after
// which the next query rematerializes. ClearCache must be externally
// serialized against in-flight readers by the caller.
//
// # Determinism
//
// Result ordering follows edge-insertion order for a fixed snapshot.
// Across snapshots no ordering guarantee is made.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/ontograph/pkg/graph"
	"github.com/AleutianAI/ontograph/pkg/ontology"
)

// contextCheckInterval is how often BFS loops poll the context.
const contextCheckInterval = 100

var tracer = otel.Tracer("ontograph.memory")

// Config configures the in-memory engine.
type Config struct {
	// DataSourceType is the self-reported flavor of the data source the
	// facade was built with, echoed in BackendInfo.
	DataSourceType string

	// Database is the ontology store location, echoed in BackendInfo.
	Database string

	// Logger for engine operations. Default: slog.Default().
	Logger *slog.Logger
}

// Engine answers the query contract from an in-memory snapshot.
//
// Safe for concurrent queries: the snapshot is immutable once built and
// materialization is guarded by a mutex.
type Engine struct {
	store  ontology.EdgeStore
	cfg    Config
	logger *slog.Logger

	loadMu sync.Mutex
	snap   atomic.Pointer[snapshot]
}

// New creates an engine over the given edge store.
func New(store ontology.EdgeStore, cfg Config) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: edge store is required", graph.ErrEngineConstruction)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		store:  store,
		cfg:    cfg,
		logger: cfg.Logger.With("component", "memory-engine"),
	}, nil
}

// Preload materializes the snapshot eagerly so the first query does not
// pay the load cost.
func (e *Engine) Preload(ctx context.Context) error {
	_, err := e.materialize(ctx)
	return err
}

// ClearCache discards the snapshot. The next query rematerializes from the
// edge store. Callers must serialize this against concurrent readers.
func (e *Engine) ClearCache() {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()
	e.snap.Store(nil)
	e.logger.Info("snapshot discarded")
}

// LoadedAt returns the snapshot's materialization time, or the zero time
// when no snapshot is loaded.
func (e *Engine) LoadedAt() time.Time {
	if s := e.snap.Load(); s != nil {
		return s.loadedAt
	}
	return time.Time{}
}

// Stats summarizes a materialized snapshot.
type Stats struct {
	Nodes    int
	Edges    int
	LoadedAt time.Time
}

// Stats reports the snapshot's size and load time, materializing it first
// when necessary.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	s, err := e.materialize(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Nodes: len(s.nodes), Edges: len(s.edges), LoadedAt: s.loadedAt}, nil
}

// materialize returns the current snapshot, building it on first use.
// A failed build is not cached; the next call retries.
func (e *Engine) materialize(ctx context.Context) (*snapshot, error) {
	if s := e.snap.Load(); s != nil {
		return s, nil
	}

	e.loadMu.Lock()
	defer e.loadMu.Unlock()
	if s := e.snap.Load(); s != nil {
		return s, nil
	}

	ctx, span := tracer.Start(ctx, "graph.materialize")
	defer span.End()

	start := time.Now()
	entries, err := e.store.LoadAll(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", graph.ErrGraphLoad, err)
	}

	s := build(entries, e.logger)
	e.snap.Store(s)

	span.SetAttributes(
		attribute.Int("graph.nodes", len(s.nodes)),
		attribute.Int("graph.edges", len(s.edges)),
	)
	e.logger.Info("graph materialized",
		"nodes", len(s.nodes),
		"edges", len(s.edges),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return s, nil
}

// Neighbors returns the nodes adjacent to nodeID in edge-insertion order,
// each at most once. Absent nodes yield an empty list.
func (e *Engine) Neighbors(ctx context.Context, nodeID string, opts ...graph.QueryOption) ([]*graph.Node, error) {
	options := graph.ApplyQueryOptions(opts)
	if err := validateCommon(nodeID, options); err != nil {
		return nil, err
	}

	s, err := e.materialize(ctx)
	if err != nil {
		return nil, err
	}

	if options.HasLimit && options.Limit == 0 {
		return []*graph.Node{}, nil
	}

	filter := options.EdgeTypeSet()
	seen := make(map[string]bool)
	neighbors := make([]*graph.Node, 0)

	for _, record := range s.incident(nodeID, options.Direction) {
		if filter != nil && !filter[record.edge.Label] {
			continue
		}
		id := record.neighborOf(nodeID)
		if seen[id] {
			continue
		}
		seen[id] = true
		neighbors = append(neighbors, cloneNode(s.nodes[id]))
		if options.HasLimit && len(neighbors) >= options.Limit {
			break
		}
	}
	return neighbors, nil
}

// ShortestPath returns an unweighted shortest path via BFS, ties broken by
// edge-insertion order, or nil when no path of length <= MaxHops exists or
// either endpoint is missing.
func (e *Engine) ShortestPath(ctx context.Context, startID, endID string, opts ...graph.QueryOption) (*graph.Path, error) {
	options := graph.ApplyQueryOptions(opts)
	if err := validateNodeID(startID); err != nil {
		return nil, err
	}
	if err := validateNodeID(endID); err != nil {
		return nil, err
	}
	if options.MaxHops < 0 {
		return nil, fmt.Errorf("%w: max hops must be >= 0, got %d", graph.ErrInvalidArgument, options.MaxHops)
	}

	s, err := e.materialize(ctx)
	if err != nil {
		return nil, err
	}

	if _, ok := s.nodes[startID]; !ok {
		return nil, nil
	}
	if _, ok := s.nodes[endID]; !ok {
		return nil, nil
	}

	if startID == endID {
		return &graph.Path{Nodes: []*graph.Node{cloneNode(s.nodes[startID])}, Edges: []*graph.Edge{}}, nil
	}

	parents := map[string]bfsHop{startID: {}}
	queue := []string{startID}
	depth := map[string]int{startID: 0}
	checkCounter := 0

	for len(queue) > 0 {
		checkCounter++
		if checkCounter%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		current := queue[0]
		queue = queue[1:]

		if depth[current] >= options.MaxHops {
			continue
		}

		for _, record := range s.incident(current, options.Direction) {
			next := record.neighborOf(current)
			if options.Direction == graph.DirectionOutgoing && record.edge.SourceID != current {
				continue
			}
			if options.Direction == graph.DirectionIncoming && record.edge.TargetID != current {
				continue
			}
			if _, visited := parents[next]; visited {
				continue
			}
			parents[next] = bfsHop{parent: current, via: record}
			depth[next] = depth[current] + 1

			if next == endID {
				return reconstructPath(s, startID, endID, parents), nil
			}
			queue = append(queue, next)
		}
	}
	return nil, nil
}

// bfsHop records how BFS reached a node: its parent and the edge used.
type bfsHop struct {
	parent string
	via    *edgeRecord
}

// reconstructPath walks the parent map back from endID.
func reconstructPath(s *snapshot, startID, endID string, parents map[string]bfsHop) *graph.Path {
	nodeIDs := []string{endID}
	edges := make([]*graph.Edge, 0)
	for current := endID; current != startID; {
		h := parents[current]
		edges = append([]*graph.Edge{cloneEdge(h.via.edge)}, edges...)
		nodeIDs = append([]string{h.parent}, nodeIDs...)
		current = h.parent
	}
	nodes := make([]*graph.Node, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		nodes = append(nodes, cloneNode(s.nodes[id]))
	}
	return &graph.Path{Nodes: nodes, Edges: edges}
}

// Traverse returns every node within depth hops in BFS first-discovery
// order, the start node first. An absent start yields an empty list.
func (e *Engine) Traverse(ctx context.Context, startID string, depth int, opts ...graph.QueryOption) ([]*graph.Node, error) {
	options := graph.ApplyQueryOptions(opts)
	if err := validateNodeID(startID); err != nil {
		return nil, err
	}
	if depth < 0 {
		return nil, fmt.Errorf("%w: depth must be >= 0, got %d", graph.ErrInvalidArgument, depth)
	}
	if depth > graph.MaxTraversalDepth {
		depth = graph.MaxTraversalDepth
	}

	s, err := e.materialize(ctx)
	if err != nil {
		return nil, err
	}

	if _, ok := s.nodes[startID]; !ok {
		return []*graph.Node{}, nil
	}

	filter := options.EdgeTypeSet()
	type queueItem struct {
		nodeID string
		depth  int
	}
	visited := map[string]bool{startID: true}
	queue := []queueItem{{startID, 0}}
	result := make([]*graph.Node, 0)
	checkCounter := 0

	for len(queue) > 0 {
		checkCounter++
		if checkCounter%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		item := queue[0]
		queue = queue[1:]
		result = append(result, cloneNode(s.nodes[item.nodeID]))

		if item.depth >= depth {
			continue
		}

		for _, record := range s.incident(item.nodeID, options.Direction) {
			if options.Direction == graph.DirectionOutgoing && record.edge.SourceID != item.nodeID {
				continue
			}
			if options.Direction == graph.DirectionIncoming && record.edge.TargetID != item.nodeID {
				continue
			}
			if filter != nil && !filter[record.edge.Label] {
				continue
			}
			next := record.neighborOf(item.nodeID)
			if visited[next] {
				continue
			}
			visited[next] = true
			queue = append(queue, queueItem{next, item.depth + 1})
		}
	}
	return result, nil
}

// Subgraph restricts the snapshot to the given node ids. Unknown ids are
// dropped; with includeEdges every edge whose endpoints are both present
// is included with label and properties preserved.
func (e *Engine) Subgraph(ctx context.Context, nodeIDs []string, includeEdges bool) (*graph.Subgraph, error) {
	for _, id := range nodeIDs {
		if err := validateNodeID(id); err != nil {
			return nil, err
		}
	}

	s, err := e.materialize(ctx)
	if err != nil {
		return nil, err
	}

	members := make(map[string]bool, len(nodeIDs))
	nodes := make([]*graph.Node, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		if members[id] {
			continue
		}
		node, ok := s.nodes[id]
		if !ok {
			continue
		}
		members[id] = true
		nodes = append(nodes, cloneNode(node))
	}

	sub := &graph.Subgraph{Nodes: nodes, Edges: []*graph.Edge{}}
	if !includeEdges {
		return sub, nil
	}

	for _, record := range s.edges {
		if members[record.edge.SourceID] && members[record.edge.TargetID] {
			sub.Edges = append(sub.Edges, cloneEdge(record.edge))
		}
	}
	return sub, nil
}

// GetNode returns the node or nil when absent.
func (e *Engine) GetNode(ctx context.Context, nodeID string) (*graph.Node, error) {
	if err := validateNodeID(nodeID); err != nil {
		return nil, err
	}
	s, err := e.materialize(ctx)
	if err != nil {
		return nil, err
	}
	node, ok := s.nodes[nodeID]
	if !ok {
		return nil, nil
	}
	return cloneNode(node), nil
}

// NodeExists reports membership in the snapshot.
func (e *Engine) NodeExists(ctx context.Context, nodeID string) (bool, error) {
	node, err := e.GetNode(ctx, nodeID)
	if err != nil {
		return false, err
	}
	return node != nil, nil
}

// NodeCount returns the snapshot's node count.
func (e *Engine) NodeCount(ctx context.Context) (int, error) {
	s, err := e.materialize(ctx)
	if err != nil {
		return 0, err
	}
	return len(s.nodes), nil
}

// EdgeCount returns the snapshot's edge count.
func (e *Engine) EdgeCount(ctx context.Context) (int, error) {
	s, err := e.materialize(ctx)
	if err != nil {
		return 0, err
	}
	return len(s.edges), nil
}

// Backend describes this engine. Constant for the engine's lifetime.
func (e *Engine) Backend() graph.BackendInfo {
	return graph.BackendInfo{
		Backend:     "in-memory",
		DataSource:  e.cfg.DataSourceType,
		Database:    e.cfg.Database,
		Platform:    "embedded",
		Performance: "CPU-only traversals over a cached snapshot",
	}
}

func validateNodeID(id string) error {
	_, _, err := graph.ParseNodeID(id)
	return err
}

func validateCommon(nodeID string, options graph.QueryOptions) error {
	if err := validateNodeID(nodeID); err != nil {
		return err
	}
	if options.HasLimit && options.Limit < 0 {
		return fmt.Errorf("%w: limit must be >= 0, got %d", graph.ErrInvalidArgument, options.Limit)
	}
	return nil
}

// Compile-time contract checks.
var (
	_ graph.Engine    = (*Engine)(nil)
	_ graph.Analytics = (*Engine)(nil)
)
