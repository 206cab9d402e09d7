// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package facade

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/ontograph/pkg/datasource"
	"github.com/AleutianAI/ontograph/pkg/graph"
	"github.com/AleutianAI/ontograph/pkg/graph/memory"
	"github.com/AleutianAI/ontograph/pkg/graph/remote"
	"github.com/AleutianAI/ontograph/pkg/ontology"
)

// Both backends must answer identically for the same materialized graph:
// set-equal neighbor lists and agreeing shortest-path lengths. The tests
// below drive the in-memory engine from a MemStore and the remote engine
// from a scripted server computing over the very same edge list.

type parityEdge struct {
	source string
	target string
	label  string
}

// parityGraph is the shared fixture. It includes a self-loop on
// Material:M-1 so loop handling is compared too.
func parityGraph() []parityEdge {
	return []parityEdge{
		{"PurchaseOrder:PO-1", "Supplier:S100", "HAS_SUPPLIER"},
		{"PurchaseOrder:PO-1", "Material:M-1", "HAS_MATERIAL"},
		{"Supplier:S100", "Plant:P01", "HAS_PLANT"},
		{"SupplierInvoice:INV-9", "Supplier:S100", "HAS_SUPPLIER"},
		{"Material:M-1", "Material:M-1", "HAS_MATERIAL"},
	}
}

// graphServer implements the datasource port by evaluating graph statements
// directly over the edge list, standing in for a store with native graph
// primitives.
type graphServer struct {
	edges []parityEdge
}

func (s *graphServer) nodeIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, e := range s.edges {
		for _, id := range []string{e.source, e.target} {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	return ids
}

// adjacent returns the edges leaving id under the given direction token,
// as (neighbor, label) pairs.
func (s *graphServer) adjacent(id, direction string, labels map[string]bool) []parityEdge {
	var out []parityEdge
	for _, e := range s.edges {
		if labels != nil && !labels[e.label] {
			continue
		}
		if (direction == "OUTGOING" || direction == "ANY") && e.source == id {
			out = append(out, parityEdge{source: id, target: e.target, label: e.label})
		}
		if (direction == "INCOMING" || direction == "ANY") && e.target == id {
			out = append(out, parityEdge{source: id, target: e.source, label: e.label})
		}
	}
	return out
}

func (s *graphServer) ExecuteQuery(ctx context.Context, query string, params ...any) *datasource.QueryResult {
	switch {
	case strings.Contains(query, "GRAPH_WORKSPACE_INFO"):
		return &datasource.QueryResult{Success: true, Rows: []map[string]any{
			{"node_count": len(s.nodeIDs()), "edge_count": len(s.edges)},
		}}

	case strings.Contains(query, "GRAPH_NEIGHBORS"):
		nodeID := params[0].(string)
		minDepth := params[1].(int)
		maxDepth := params[2].(int)
		direction := params[3].(string)
		var labels map[string]bool
		if len(params) > 4 {
			labels = make(map[string]bool)
			for _, p := range params[4:] {
				labels[p.(string)] = true
			}
		}
		rows := s.expandRows(nodeID, minDepth, maxDepth, direction, labels)
		return &datasource.QueryResult{Success: true, Rows: rows, RowCount: len(rows)}

	case strings.Contains(query, "GRAPH_SHORTEST_PATH"):
		rows := s.pathRows(params[0].(string), params[1].(string), params[2].(int), params[3].(string))
		return &datasource.QueryResult{Success: true, Rows: rows, RowCount: len(rows)}

	case strings.HasPrefix(query, "SELECT * FROM "):
		rest := strings.TrimPrefix(query, "SELECT * FROM ")
		table := strings.Trim(strings.SplitN(rest, " ", 2)[0], `"`)
		key, _ := params[0].(string)
		for _, id := range s.nodeIDs() {
			if id == table+":"+key {
				return &datasource.QueryResult{
					Success:  true,
					Rows:     []map[string]any{{"ID": key}},
					RowCount: 1,
				}
			}
		}
		return &datasource.QueryResult{Success: true, Rows: []map[string]any{}}
	}
	return &datasource.QueryResult{Success: true, Rows: []map[string]any{}}
}

// expandRows walks outward from nodeID, one row per node at its discovery
// depth. Depth-1 rows report plain adjacency, so a self-loop yields a row
// carrying the start id.
func (s *graphServer) expandRows(nodeID string, minDepth, maxDepth int, direction string, labels map[string]bool) []map[string]any {
	var rows []map[string]any
	if minDepth <= 0 {
		rows = append(rows, map[string]any{"node_id": nodeID, "depth": 0, "edge_label": nil})
	}

	visited := map[string]bool{nodeID: true}
	frontier := []string{nodeID}
	for depth := 1; depth <= maxDepth; depth++ {
		emitted := make(map[string]bool)
		var next []string
		for _, current := range frontier {
			for _, e := range s.adjacent(current, direction, labels) {
				if depth == 1 && !emitted[e.target] {
					// Adjacency level: every neighbor counts, loops
					// included.
					emitted[e.target] = true
					if depth >= minDepth {
						rows = append(rows, map[string]any{
							"node_id": e.target, "depth": depth, "edge_label": e.label,
						})
					}
				} else if depth > 1 && !visited[e.target] {
					if depth >= minDepth {
						rows = append(rows, map[string]any{
							"node_id": e.target, "depth": depth, "edge_label": e.label,
						})
					}
				}
				if !visited[e.target] {
					visited[e.target] = true
					next = append(next, e.target)
				}
			}
		}
		frontier = next
	}
	return rows
}

// pathRows runs BFS and emits hop-ordered rows, empty when no path of at
// most maxHops edges exists.
func (s *graphServer) pathRows(startID, endID string, maxHops int, direction string) []map[string]any {
	type hop struct {
		parent string
		label  string
	}
	if startID == endID {
		return []map[string]any{{"node_id": startID, "hop": 0, "edge_label": nil}}
	}

	parents := map[string]hop{startID: {}}
	frontier := []string{startID}
	found := false
	for depth := 1; depth <= maxHops && !found; depth++ {
		var next []string
		for _, current := range frontier {
			for _, e := range s.adjacent(current, direction, nil) {
				if _, ok := parents[e.target]; ok {
					continue
				}
				parents[e.target] = hop{parent: current, label: e.label}
				if e.target == endID {
					found = true
					break
				}
				next = append(next, e.target)
			}
			if found {
				break
			}
		}
		frontier = next
	}
	if !found {
		return nil
	}

	var ids []string
	var entering []string
	for current := endID; current != startID; {
		h := parents[current]
		ids = append([]string{current}, ids...)
		entering = append([]string{h.label}, entering...)
		current = h.parent
	}
	rows := []map[string]any{{"node_id": startID, "hop": 0, "edge_label": nil}}
	for i, id := range ids {
		rows = append(rows, map[string]any{"node_id": id, "hop": i + 1, "edge_label": entering[i]})
	}
	return rows
}

func (s *graphServer) GetTables(ctx context.Context, scope string) ([]datasource.Table, error) {
	return nil, nil
}

func (s *graphServer) GetTableStructure(ctx context.Context, scope, table string) (*datasource.Table, error) {
	return &datasource.Table{Name: table, Columns: []datasource.Column{
		{Name: "ID", IsPrimaryKey: true},
	}}, nil
}

func (s *graphServer) ConnectionInfo() datasource.ConnectionInfo {
	return datasource.ConnectionInfo{Type: "remote", Database: "GRAPHDB"}
}

// parityEngines builds both backends over the shared fixture.
func parityEngines(t *testing.T) (*memory.Engine, *remote.Engine, *graphServer) {
	t.Helper()
	ctx := context.Background()

	var discovered []ontology.DiscoveredEdge
	for _, e := range parityGraph() {
		srcLabel, srcKey, err := graph.ParseNodeID(e.source)
		require.NoError(t, err)
		tgtLabel, tgtKey, err := graph.ParseNodeID(e.target)
		require.NoError(t, err)
		discovered = append(discovered, ontology.DiscoveredEdge{
			SourceLabel: srcLabel, SourceKey: srcKey,
			TargetLabel: tgtLabel, TargetKey: tgtKey,
			EdgeType: ontology.EdgeTypeKeySuffix, EdgeLabel: e.label,
		})
	}
	store := ontology.NewMemStore(0)
	require.NoError(t, store.SaveAll(ctx, ontology.ScopeInstances, discovered))

	mem, err := memory.New(store, memory.Config{DataSourceType: "sqlite", Database: "test.db"})
	require.NoError(t, err)

	server := &graphServer{edges: parityGraph()}
	rem, err := remote.New(ctx, remote.Config{DataSource: server, Workspace: "parity_ws"})
	require.NoError(t, err)

	return mem, rem, server
}

func neighborIDs(t *testing.T, e graph.Engine, nodeID string, opts ...graph.QueryOption) []string {
	t.Helper()
	nodes, err := e.Neighbors(context.Background(), nodeID, opts...)
	require.NoError(t, err)
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	sort.Strings(ids)
	return ids
}

func TestBackendParity_Neighbors(t *testing.T) {
	mem, rem, server := parityEngines(t)

	for _, nodeID := range server.nodeIDs() {
		for _, direction := range []graph.Direction{
			graph.DirectionOutgoing, graph.DirectionIncoming, graph.DirectionBoth,
		} {
			opt := graph.WithDirection(direction)
			assert.Equal(t,
				neighborIDs(t, mem, nodeID, opt),
				neighborIDs(t, rem, nodeID, opt),
				"neighbors of %s (%s)", nodeID, direction)
		}
	}
}

func TestBackendParity_SelfLoopIsOwnNeighbor(t *testing.T) {
	mem, rem, _ := parityEngines(t)

	memIDs := neighborIDs(t, mem, "Material:M-1")
	remIDs := neighborIDs(t, rem, "Material:M-1")
	assert.Contains(t, memIDs, "Material:M-1")
	assert.Equal(t, memIDs, remIDs)
}

func TestBackendParity_ShortestPathLengths(t *testing.T) {
	mem, rem, _ := parityEngines(t)
	ctx := context.Background()

	pairs := []struct {
		start, end string
	}{
		{"PurchaseOrder:PO-1", "Supplier:S100"},
		{"PurchaseOrder:PO-1", "Plant:P01"},
		{"SupplierInvoice:INV-9", "Plant:P01"},
		{"Supplier:S100", "PurchaseOrder:PO-1"}, // unreachable outgoing
		{"Material:M-1", "Material:M-1"},
	}
	for _, p := range pairs {
		memPath, err := mem.ShortestPath(ctx, p.start, p.end)
		require.NoError(t, err)
		remPath, err := rem.ShortestPath(ctx, p.start, p.end)
		require.NoError(t, err)

		if memPath == nil {
			assert.Nil(t, remPath, "%s -> %s", p.start, p.end)
			continue
		}
		require.NotNil(t, remPath, "%s -> %s", p.start, p.end)
		assert.Equal(t, memPath.Length(), remPath.Length(), "%s -> %s", p.start, p.end)
	}
}

func TestBackendParity_SameNodeZeroHops(t *testing.T) {
	mem, rem, _ := parityEngines(t)
	ctx := context.Background()

	for _, e := range []graph.Engine{mem, rem} {
		path, err := e.ShortestPath(ctx, "PurchaseOrder:PO-1", "PurchaseOrder:PO-1",
			graph.WithMaxHops(0))
		require.NoError(t, err)
		require.NotNil(t, path)
		assert.Equal(t, 0, path.Length())
	}
}
