// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package remote implements the graph engine contract against a remote
// store with native property-graph primitives, reached through the
// datasource port.
//
// Every operation is a network round-trip; remote failures short-circuit to
// safe empty results (empty slice, nil path, zero count, empty map) and are
// logged. The engine never retries; retry policy belongs to callers.
package remote

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/ontograph/pkg/datasource"
	"github.com/AleutianAI/ontograph/pkg/graph"
)

var tracer = otel.Tracer("ontograph.remote")

// DefaultWorkspace is used when the config does not name one.
const DefaultWorkspace = "ontograph"

// defaultCycleLimit bounds server-side cycle enumeration when the caller
// passes no positive limit.
const defaultCycleLimit = 100

// =============================================================================
// Configuration
// =============================================================================

// Config configures the remote engine.
type Config struct {
	// DataSource executes graph SQL against the remote store. Required.
	DataSource datasource.GraphDataSource

	// Workspace is the named graph workspace on the server.
	// Default: DefaultWorkspace.
	Workspace string

	// Logger receives structured diagnostics. Default: slog.Default().
	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.Workspace == "" {
		c.Workspace = DefaultWorkspace
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// =============================================================================
// Engine
// =============================================================================

// Engine answers graph queries by issuing native graph SQL to the remote
// store. Construction probes the workspace; all later failures degrade to
// safe empty results.
type Engine struct {
	ds        datasource.GraphDataSource
	workspace string
	logger    *slog.Logger

	// pkCache maps table name to its primary-key column, filled lazily
	// from schema metadata.
	pkMu    sync.Mutex
	pkCache map[string]string
}

var _ graph.Engine = (*Engine)(nil)
var _ graph.Analytics = (*Engine)(nil)

// New constructs the remote engine and verifies the workspace answers.
//
// Description:
//
//	Issues the workspace metadata query once as a construction probe. A
//	failed probe returns ErrEngineConstruction so the caller (typically
//	the facade) can fall back to another backend.
//
// Outputs:
//
//   - *Engine: ready engine on success.
//   - error: ErrEngineConstruction wrapped with the probe failure.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.DataSource == nil {
		return nil, fmt.Errorf("%w: nil data source", graph.ErrEngineConstruction)
	}
	cfg.applyDefaults()

	e := &Engine{
		ds:        cfg.DataSource,
		workspace: cfg.Workspace,
		logger:    cfg.Logger,
		pkCache:   make(map[string]string),
	}

	probe := e.ds.ExecuteQuery(ctx, buildNodeCountQuery(e.workspace))
	if !probe.Success {
		return nil, fmt.Errorf("%w: workspace %q probe failed: %s",
			graph.ErrEngineConstruction, e.workspace, failureMessage(probe))
	}
	e.logger.Info("remote graph engine ready", "workspace", e.workspace)
	return e, nil
}

// Workspace returns the configured workspace name.
func (e *Engine) Workspace() string {
	return e.workspace
}

// Backend describes this engine for facade introspection.
func (e *Engine) Backend() graph.BackendInfo {
	return graph.BackendInfo{
		Backend:     "remote",
		DataSource:  e.ds.ConnectionInfo().Type,
		Workspace:   e.workspace,
		Platform:    "server",
		Performance: "native graph primitives executed on the remote store",
	}
}

// =============================================================================
// Query Contract
// =============================================================================

// Neighbors returns the 1-hop neighborhood of nodeID. Edge-label filters
// and limits are pushed into the server-side statement. Remote failures
// return an empty slice.
func (e *Engine) Neighbors(ctx context.Context, nodeID string, opts ...graph.QueryOption) ([]*graph.Node, error) {
	options := graph.ApplyQueryOptions(opts)
	if err := validateCommon(nodeID, options); err != nil {
		return nil, err
	}
	if options.HasLimit && options.Limit == 0 {
		return []*graph.Node{}, nil
	}

	ctx, span := tracer.Start(ctx, "remote.Neighbors",
		trace.WithAttributes(attribute.String("node_id", nodeID)),
	)
	defer span.End()

	query, params := buildNeighborsQuery(e.workspace, nodeID, 1, 1, options)
	result := e.ds.ExecuteQuery(ctx, query, params...)
	if !result.Success {
		e.warnFailure("neighbors", nodeID, result)
		return []*graph.Node{}, nil
	}

	// The statement expands from depth 1, so a row carrying the start id
	// is a genuine self-loop and counts as a neighbor, matching the
	// in-memory engine.
	nodes := make([]*graph.Node, 0, len(result.Rows))
	seen := make(map[string]bool, len(result.Rows))
	for _, row := range result.Rows {
		id := rowString(row, "node_id")
		if id == "" || seen[id] {
			continue
		}
		node, err := nodeFromID(id)
		if err != nil {
			continue
		}
		seen[id] = true
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// ShortestPath returns an unweighted shortest path from startID to endID,
// or nil when no path of at most MaxHops edges exists. The server returns
// hop-ordered rows; each row's edge_label names the edge entering that row's
// node from the previous one.
func (e *Engine) ShortestPath(ctx context.Context, startID, endID string, opts ...graph.QueryOption) (*graph.Path, error) {
	options := graph.ApplyQueryOptions(opts)
	if err := validateNodeID(startID); err != nil {
		return nil, err
	}
	if err := validateNodeID(endID); err != nil {
		return nil, err
	}
	if options.MaxHops < 0 {
		return nil, fmt.Errorf("%w: max hops must be non-negative, got %d",
			graph.ErrInvalidArgument, options.MaxHops)
	}

	// The server is only consulted for paths of one or more hops. A node
	// is trivially connected to itself by the zero-length path; a hop
	// budget of zero cannot reach any other node.
	if startID == endID {
		node, err := e.GetNode(ctx, startID)
		if err != nil || node == nil {
			return nil, nil
		}
		return &graph.Path{Nodes: []*graph.Node{node}, Edges: []*graph.Edge{}}, nil
	}
	if options.MaxHops == 0 {
		return nil, nil
	}

	ctx, span := tracer.Start(ctx, "remote.ShortestPath",
		trace.WithAttributes(
			attribute.String("start_id", startID),
			attribute.String("end_id", endID),
			attribute.Int("max_hops", options.MaxHops),
		),
	)
	defer span.End()

	query, params := buildShortestPathQuery(e.workspace, startID, endID, options.MaxHops, options.Direction)
	result := e.ds.ExecuteQuery(ctx, query, params...)
	if !result.Success {
		e.warnFailure("shortest_path", startID, result)
		return nil, nil
	}
	if len(result.Rows) == 0 {
		return nil, nil
	}

	path := &graph.Path{}
	var prev *graph.Node
	for _, row := range result.Rows {
		id := rowString(row, "node_id")
		node, err := nodeFromID(id)
		if err != nil {
			e.logger.Warn("malformed node id in shortest path result", "node_id", id)
			return nil, nil
		}
		path.Nodes = append(path.Nodes, node)
		if prev != nil {
			label := rowString(row, "edge_label")
			path.Edges = append(path.Edges, &graph.Edge{
				ID:         prev.ID + "->" + node.ID,
				SourceID:   prev.ID,
				TargetID:   node.ID,
				Label:      label,
				Properties: map[string]any{},
			})
		}
		prev = node
	}
	return path, nil
}

// Traverse returns every node within depth hops of startID, the start node
// included at depth 0. Ordering is by server-reported depth ascending, then
// node id ascending.
func (e *Engine) Traverse(ctx context.Context, startID string, depth int, opts ...graph.QueryOption) ([]*graph.Node, error) {
	options := graph.ApplyQueryOptions(opts)
	if err := validateNodeID(startID); err != nil {
		return nil, err
	}
	if depth < 0 {
		return nil, fmt.Errorf("%w: depth must be non-negative, got %d",
			graph.ErrInvalidArgument, depth)
	}
	if depth > graph.MaxTraversalDepth {
		depth = graph.MaxTraversalDepth
	}

	ctx, span := tracer.Start(ctx, "remote.Traverse",
		trace.WithAttributes(
			attribute.String("start_id", startID),
			attribute.Int("depth", depth),
		),
	)
	defer span.End()

	query, params := buildNeighborsQuery(e.workspace, startID, 0, depth, options)
	result := e.ds.ExecuteQuery(ctx, query, params...)
	if !result.Success {
		e.warnFailure("traverse", startID, result)
		return []*graph.Node{}, nil
	}

	type visited struct {
		node  *graph.Node
		depth int
	}
	var order []visited
	seen := make(map[string]bool, len(result.Rows)+1)
	for _, row := range result.Rows {
		id := rowString(row, "node_id")
		if id == "" || seen[id] {
			continue
		}
		node, err := nodeFromID(id)
		if err != nil {
			continue
		}
		seen[id] = true
		order = append(order, visited{node: node, depth: rowInt(row, "depth")})
	}

	// Some server dialects start expansion at depth 1 even when asked for
	// min_depth 0. Inject the start node when it exists and is absent.
	if !seen[startID] {
		if node, err := e.GetNode(ctx, startID); err == nil && node != nil {
			order = append(order, visited{node: node, depth: 0})
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].depth != order[j].depth {
			return order[i].depth < order[j].depth
		}
		return order[i].node.ID < order[j].node.ID
	})

	nodes := make([]*graph.Node, 0, len(order))
	for _, v := range order {
		nodes = append(nodes, v.node)
	}
	return nodes, nil
}

// Subgraph restricts the graph to the requested nodes. The server has no
// subgraph primitive, so the engine fetches each node individually, then
// queries 1-hop outgoing neighbors per node and retains the edges whose
// target is also in the set.
func (e *Engine) Subgraph(ctx context.Context, nodeIDs []string, includeEdges bool) (*graph.Subgraph, error) {
	for _, id := range nodeIDs {
		if err := validateNodeID(id); err != nil {
			return nil, err
		}
	}

	ctx, span := tracer.Start(ctx, "remote.Subgraph",
		trace.WithAttributes(attribute.Int("requested", len(nodeIDs))),
	)
	defer span.End()

	sub := &graph.Subgraph{Nodes: []*graph.Node{}, Edges: []*graph.Edge{}}
	present := make(map[string]bool, len(nodeIDs))
	for _, id := range nodeIDs {
		if present[id] {
			continue
		}
		node, err := e.GetNode(ctx, id)
		if err != nil || node == nil {
			continue
		}
		present[id] = true
		sub.Nodes = append(sub.Nodes, node)
	}
	if !includeEdges {
		return sub, nil
	}

	seenEdges := make(map[string]bool)
	for _, node := range sub.Nodes {
		query, params := buildNeighborsQuery(e.workspace, node.ID, 1, 1, graph.QueryOptions{
			Direction: graph.DirectionOutgoing,
			MaxHops:   graph.DefaultMaxHops,
		})
		result := e.ds.ExecuteQuery(ctx, query, params...)
		if !result.Success {
			e.warnFailure("subgraph_edges", node.ID, result)
			continue
		}
		for _, row := range result.Rows {
			target := rowString(row, "node_id")
			if !present[target] {
				continue
			}
			label := rowString(row, "edge_label")
			key := node.ID + "|" + target + "|" + label
			if seenEdges[key] {
				continue
			}
			seenEdges[key] = true
			sub.Edges = append(sub.Edges, &graph.Edge{
				ID:         node.ID + "->" + target,
				SourceID:   node.ID,
				TargetID:   target,
				Label:      label,
				Properties: map[string]any{},
			})
		}
	}
	return sub, nil
}

// GetNode fetches the node's full column map from its underlying table.
// Missing nodes and remote failures both return nil without error.
func (e *Engine) GetNode(ctx context.Context, nodeID string) (*graph.Node, error) {
	label, key, err := graph.ParseNodeID(nodeID)
	if err != nil {
		return nil, err
	}

	pk := e.primaryKey(ctx, label)
	result := e.ds.ExecuteQuery(ctx, buildGetNodeQuery(label, pk), key)
	if !result.Success {
		e.warnFailure("get_node", nodeID, result)
		return nil, nil
	}
	if len(result.Rows) == 0 {
		return nil, nil
	}

	props := make(map[string]any, len(result.Rows[0]))
	for k, v := range result.Rows[0] {
		props[k] = v
	}
	return &graph.Node{ID: nodeID, Label: label, Key: key, Properties: props}, nil
}

// NodeExists reports whether the node resolves on the remote store.
func (e *Engine) NodeExists(ctx context.Context, nodeID string) (bool, error) {
	node, err := e.GetNode(ctx, nodeID)
	if err != nil {
		return false, err
	}
	return node != nil, nil
}

// NodeCount reads the vertex count from workspace metadata, 0 when
// unavailable.
func (e *Engine) NodeCount(ctx context.Context) (int, error) {
	count, _ := e.workspaceCounts(ctx)
	return count, nil
}

// EdgeCount reads the edge count from workspace metadata, 0 when
// unavailable.
func (e *Engine) EdgeCount(ctx context.Context) (int, error) {
	_, count := e.workspaceCounts(ctx)
	return count, nil
}

func (e *Engine) workspaceCounts(ctx context.Context) (int, int) {
	result := e.ds.ExecuteQuery(ctx, buildNodeCountQuery(e.workspace))
	if !result.Success || len(result.Rows) == 0 {
		e.warnFailure("workspace_info", e.workspace, result)
		return 0, 0
	}
	row := result.Rows[0]
	return rowInt(row, "node_count"), rowInt(row, "edge_count")
}

// =============================================================================
// Analytics
// =============================================================================

// PageRank delegates to the server's PageRank function. Missing capability
// or remote failure returns an empty map.
func (e *Engine) PageRank(ctx context.Context) (map[string]float64, error) {
	return e.scoreQuery(ctx, "pagerank", buildPageRankQuery(e.workspace))
}

// DegreeCentrality delegates to the server's degree function.
func (e *Engine) DegreeCentrality(ctx context.Context) (map[string]float64, error) {
	return e.scoreQuery(ctx, "degree_centrality", buildDegreeQuery(e.workspace))
}

func (e *Engine) scoreQuery(ctx context.Context, op, query string) (map[string]float64, error) {
	result := e.ds.ExecuteQuery(ctx, query)
	scores := make(map[string]float64)
	if !result.Success {
		e.warnFailure(op, e.workspace, result)
		return scores, nil
	}
	for _, row := range result.Rows {
		id := rowString(row, "node_id")
		if id == "" {
			continue
		}
		scores[id] = rowFloat(row, "score")
	}
	return scores, nil
}

// Communities delegates to the server's community detection.
func (e *Engine) Communities(ctx context.Context) (map[string]int, error) {
	result := e.ds.ExecuteQuery(ctx, buildCommunitiesQuery(e.workspace))
	communities := make(map[string]int)
	if !result.Success {
		e.warnFailure("communities", e.workspace, result)
		return communities, nil
	}
	for _, row := range result.Rows {
		id := rowString(row, "node_id")
		if id == "" {
			continue
		}
		communities[id] = rowInt(row, "community")
	}
	return communities, nil
}

// Cycles delegates to the server's cycle enumeration, grouping rows by
// cycle id in server order.
func (e *Engine) Cycles(ctx context.Context, limit int) ([][]string, error) {
	if limit <= 0 {
		limit = defaultCycleLimit
	}
	result := e.ds.ExecuteQuery(ctx, buildCyclesQuery(e.workspace), limit)
	cycles := [][]string{}
	if !result.Success {
		e.warnFailure("cycles", e.workspace, result)
		return cycles, nil
	}

	var current []string
	currentID := -1
	for _, row := range result.Rows {
		cycleID := rowInt(row, "cycle_id")
		if cycleID != currentID {
			if len(current) > 0 {
				cycles = append(cycles, current)
			}
			current = nil
			currentID = cycleID
		}
		if id := rowString(row, "node_id"); id != "" {
			current = append(current, id)
		}
	}
	if len(current) > 0 {
		cycles = append(cycles, current)
	}
	if len(cycles) > limit {
		cycles = cycles[:limit]
	}
	return cycles, nil
}

// =============================================================================
// Helpers
// =============================================================================

// primaryKey resolves the primary-key column of a table through schema
// metadata, caching per table. Falls back to "ID" when metadata is
// unavailable or names no key.
func (e *Engine) primaryKey(ctx context.Context, table string) string {
	e.pkMu.Lock()
	if pk, ok := e.pkCache[table]; ok {
		e.pkMu.Unlock()
		return pk
	}
	e.pkMu.Unlock()

	pk := "ID"
	structure, err := e.ds.GetTableStructure(ctx, e.workspace, table)
	if err != nil {
		e.logger.Warn("table structure lookup failed", "table", table, "error", err)
	} else if structure != nil {
		for _, col := range structure.Columns {
			if col.IsPrimaryKey {
				pk = col.Name
				break
			}
		}
	}

	e.pkMu.Lock()
	e.pkCache[table] = pk
	e.pkMu.Unlock()
	return pk
}

func (e *Engine) warnFailure(op, subject string, result *datasource.QueryResult) {
	e.logger.Warn("remote graph query failed, returning empty result",
		"operation", op,
		"subject", subject,
		"error", failureMessage(result),
	)
}

func failureMessage(result *datasource.QueryResult) string {
	if result == nil || result.Error == nil {
		return "unknown error"
	}
	return result.Error.Code + ": " + result.Error.Message
}

func nodeFromID(id string) (*graph.Node, error) {
	label, key, err := graph.ParseNodeID(id)
	if err != nil {
		return nil, err
	}
	return &graph.Node{ID: id, Label: label, Key: key, Properties: map[string]any{}}, nil
}

func validateNodeID(nodeID string) error {
	_, _, err := graph.ParseNodeID(nodeID)
	return err
}

func validateCommon(nodeID string, opts graph.QueryOptions) error {
	if err := validateNodeID(nodeID); err != nil {
		return err
	}
	if opts.HasLimit && opts.Limit < 0 {
		return fmt.Errorf("%w: limit must be non-negative, got %d",
			graph.ErrInvalidArgument, opts.Limit)
	}
	return nil
}

// rowString reads a string cell case-insensitively; remote dialects differ
// in column-name casing.
func rowString(row map[string]any, column string) string {
	v, ok := rowValue(row, column)
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	default:
		return fmt.Sprintf("%v", s)
	}
}

func rowInt(row map[string]any, column string) int {
	v, ok := rowValue(row, column)
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		parsed, err := strconv.Atoi(n)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

func rowFloat(row map[string]any, column string) float64 {
	v, ok := rowValue(row, column)
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

func rowValue(row map[string]any, column string) (any, bool) {
	if v, ok := row[column]; ok {
		return v, true
	}
	for k, v := range row {
		if strings.EqualFold(k, column) {
			return v, true
		}
	}
	return nil, false
}
