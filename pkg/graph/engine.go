// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import "context"

// Query configuration limits.
const (
	// DefaultMaxHops is the default hop budget for shortest-path queries.
	DefaultMaxHops = 10

	// MaxTraversalDepth is the maximum allowed traversal depth.
	MaxTraversalDepth = 100
)

// QueryOptions configures a single query. The zero value means: outgoing
// direction, no edge-type filter, no limit, DefaultMaxHops.
type QueryOptions struct {
	// Direction selects which incident edges are considered.
	Direction Direction

	// EdgeTypes restricts results to edges whose label is in the set.
	// Nil or empty means no filter.
	EdgeTypes []string

	// Limit truncates results after filtering. Negative values are
	// rejected with ErrInvalidArgument. HasLimit distinguishes an explicit
	// zero from "no limit".
	Limit    int
	HasLimit bool

	// MaxHops bounds shortest-path search. Default: 10.
	MaxHops int
}

// DefaultQueryOptions returns the zero-filter defaults.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{
		Direction: DirectionOutgoing,
		MaxHops:   DefaultMaxHops,
	}
}

// QueryOption is a functional option for configuring queries.
type QueryOption func(*QueryOptions)

// WithDirection sets the traversal direction.
func WithDirection(d Direction) QueryOption {
	return func(o *QueryOptions) {
		o.Direction = d
	}
}

// WithEdgeTypes restricts matching edges to the given labels.
func WithEdgeTypes(labels ...string) QueryOption {
	return func(o *QueryOptions) {
		o.EdgeTypes = labels
	}
}

// WithLimit truncates results to the first n after filtering.
//
// n must be >= 0; negative values surface as ErrInvalidArgument at query
// time. WithLimit(0) yields an empty result.
func WithLimit(n int) QueryOption {
	return func(o *QueryOptions) {
		o.Limit = n
		o.HasLimit = true
	}
}

// WithMaxHops bounds shortest-path search to paths of at most n edges.
func WithMaxHops(n int) QueryOption {
	return func(o *QueryOptions) {
		o.MaxHops = n
	}
}

// ApplyQueryOptions folds functional options over the defaults.
func ApplyQueryOptions(opts []QueryOption) QueryOptions {
	options := DefaultQueryOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// EdgeTypeSet converts the EdgeTypes slice to a set, or nil when no filter
// is configured.
func (o *QueryOptions) EdgeTypeSet() map[string]bool {
	if len(o.EdgeTypes) == 0 {
		return nil
	}
	set := make(map[string]bool, len(o.EdgeTypes))
	for _, t := range o.EdgeTypes {
		set[t] = true
	}
	return set
}

// Engine is the behavioral contract shared by the in-memory and remote
// backends. Implementations are synchronous; concurrent callers are
// supported through snapshot immutability (in-memory) or the remote
// store's own concurrency.
//
// Missing nodes yield empty or nil results, never errors. Remote failures
// degrade to safe empty results; only invalid arguments and in-memory
// materialization failures return errors.
type Engine interface {
	// Neighbors returns the nodes adjacent to nodeID. Result order is
	// edge-insertion order (in-memory) or server order (remote), with each
	// node appearing at most once.
	Neighbors(ctx context.Context, nodeID string, opts ...QueryOption) ([]*Node, error)

	// ShortestPath returns an unweighted shortest path from startID to
	// endID, or nil when no path of length <= MaxHops exists or either
	// endpoint is missing. A zero-length path is returned iff
	// startID == endID and the node exists.
	ShortestPath(ctx context.Context, startID, endID string, opts ...QueryOption) (*Path, error)

	// Traverse returns all nodes within depth hops of startID in BFS
	// first-discovery order, the start node included at depth 0.
	Traverse(ctx context.Context, startID string, depth int, opts ...QueryOption) ([]*Node, error)

	// Subgraph restricts the snapshot to the given node ids. When
	// includeEdges is true, every edge with both endpoints in the set is
	// included with its label and properties.
	Subgraph(ctx context.Context, nodeIDs []string, includeEdges bool) (*Subgraph, error)

	// GetNode returns the node or nil when absent.
	GetNode(ctx context.Context, nodeID string) (*Node, error)

	// NodeExists reports whether the node is present in the snapshot.
	NodeExists(ctx context.Context, nodeID string) (bool, error)

	// NodeCount returns the number of nodes in the snapshot.
	NodeCount(ctx context.Context) (int, error)

	// EdgeCount returns the number of edges in the snapshot.
	EdgeCount(ctx context.Context) (int, error)

	// Backend describes this engine. Constant for the engine's lifetime.
	Backend() BackendInfo
}

// Analytics is the optional analytic surface. Engines that cannot serve a
// method return an empty mapping rather than an error; the facade degrades
// the same way when the active engine lacks the interface entirely.
type Analytics interface {
	// PageRank returns per-node scores summing to approximately 1.
	PageRank(ctx context.Context) (map[string]float64, error)

	// DegreeCentrality returns degree / (n-1) per node.
	DegreeCentrality(ctx context.Context) (map[string]float64, error)

	// Communities assigns a community id to every node. Tie-breaks are
	// fixed by node id ascending, so assignments are deterministic for a
	// fixed snapshot.
	Communities(ctx context.Context) (map[string]int, error)

	// Cycles enumerates up to limit directed cycles as node-id sequences.
	Cycles(ctx context.Context, limit int) ([][]string, error)
}
