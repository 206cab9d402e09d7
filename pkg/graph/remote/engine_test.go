// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/ontograph/pkg/datasource"
	"github.com/AleutianAI/ontograph/pkg/graph"
)

// fakeRemote scripts the remote store. Graph-function results are keyed by
// a statement substring; "FUNC|firstParam" keys take precedence over plain
// "FUNC" keys so per-node responses can be scripted.
type fakeRemote struct {
	rows           map[string][]map[string]any
	failSubstrings []string
	nodes          map[string]map[string]any
	structures     map[string]*datasource.Table

	queries        []string
	params         [][]any
	structureCalls int
}

func (f *fakeRemote) ExecuteQuery(ctx context.Context, query string, params ...any) *datasource.QueryResult {
	f.queries = append(f.queries, query)
	f.params = append(f.params, params)

	for _, s := range f.failSubstrings {
		if strings.Contains(query, s) {
			return datasource.Failed(datasource.CodeConnectionError, "scripted failure")
		}
	}

	// Node fetch by primary key.
	if strings.HasPrefix(query, "SELECT * FROM ") {
		rest := strings.TrimPrefix(query, "SELECT * FROM ")
		table := strings.Trim(strings.SplitN(rest, " ", 2)[0], `"`)
		key := fmt.Sprintf("%v", params[0])
		if row, ok := f.nodes[table+"|"+key]; ok {
			return &datasource.QueryResult{Success: true, Rows: []map[string]any{row}, RowCount: 1}
		}
		return &datasource.QueryResult{Success: true, Rows: []map[string]any{}}
	}

	if len(params) > 0 {
		for key, rows := range f.rows {
			fn, param, ok := strings.Cut(key, "|")
			if ok && strings.Contains(query, fn) && fmt.Sprintf("%v", params[0]) == param {
				return &datasource.QueryResult{Success: true, Rows: rows, RowCount: len(rows)}
			}
		}
	}
	for key, rows := range f.rows {
		if !strings.Contains(key, "|") && strings.Contains(query, key) {
			return &datasource.QueryResult{Success: true, Rows: rows, RowCount: len(rows)}
		}
	}
	return &datasource.QueryResult{Success: true, Rows: []map[string]any{}}
}

func (f *fakeRemote) GetTables(ctx context.Context, scope string) ([]datasource.Table, error) {
	return nil, nil
}

func (f *fakeRemote) GetTableStructure(ctx context.Context, scope, table string) (*datasource.Table, error) {
	f.structureCalls++
	if t, ok := f.structures[table]; ok {
		return t, nil
	}
	return nil, errors.New("no such table: " + table)
}

func (f *fakeRemote) ConnectionInfo() datasource.ConnectionInfo {
	return datasource.ConnectionInfo{Type: "remote", Database: "GRAPHDB"}
}

func newTestEngine(t *testing.T, ds *fakeRemote) *Engine {
	t.Helper()
	engine, err := New(context.Background(), Config{DataSource: ds, Workspace: "test_ws"})
	require.NoError(t, err)
	return engine
}

func supplierTable() *datasource.Table {
	return &datasource.Table{Name: "Supplier", Columns: []datasource.Column{
		{Name: "SupplierNumber", IsPrimaryKey: true},
		{Name: "Name"},
	}}
}

// =============================================================================
// Construction
// =============================================================================

func TestNew_NilDataSource(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.ErrorIs(t, err, graph.ErrEngineConstruction)
}

func TestNew_ProbeFailure(t *testing.T) {
	ds := &fakeRemote{failSubstrings: []string{"GRAPH_WORKSPACE_INFO"}}

	_, err := New(context.Background(), Config{DataSource: ds, Workspace: "test_ws"})
	require.Error(t, err)
	assert.ErrorIs(t, err, graph.ErrEngineConstruction)
	assert.Contains(t, err.Error(), "test_ws")
}

func TestNew_DefaultWorkspace(t *testing.T) {
	engine, err := New(context.Background(), Config{DataSource: &fakeRemote{}})
	require.NoError(t, err)
	assert.Equal(t, DefaultWorkspace, engine.Workspace())
}

func TestBackend(t *testing.T) {
	engine := newTestEngine(t, &fakeRemote{})

	info := engine.Backend()
	assert.Equal(t, "remote", info.Backend)
	assert.Equal(t, "remote", info.DataSource)
	assert.Equal(t, "test_ws", info.Workspace)
	assert.Equal(t, "server", info.Platform)
}

// =============================================================================
// Neighbors
// =============================================================================

func TestNeighbors_ParsesRows(t *testing.T) {
	ds := &fakeRemote{rows: map[string][]map[string]any{
		"GRAPH_NEIGHBORS": {
			{"node_id": "Supplier:S100", "depth": 1, "edge_label": "HAS_SUPPLIER"},
			{"node_id": "Material:M-1", "depth": 1, "edge_label": "HAS_MATERIAL"},
			{"node_id": "Supplier:S100", "depth": 1, "edge_label": "HAS_SUPPLIER"},
			{"node_id": "PurchaseOrder:PO-1", "depth": 1, "edge_label": "SELF"},
			{"node_id": "not-a-node-id", "depth": 1, "edge_label": "BROKEN"},
		},
	}}
	engine := newTestEngine(t, ds)

	nodes, err := engine.Neighbors(context.Background(), "PurchaseOrder:PO-1")
	require.NoError(t, err)
	require.Len(t, nodes, 3, "duplicates and malformed ids are dropped, self-loops kept")
	assert.Equal(t, "Supplier:S100", nodes[0].ID)
	assert.Equal(t, "Material:M-1", nodes[1].ID)
	assert.Equal(t, "PurchaseOrder:PO-1", nodes[2].ID)

	// The statement binds node id, depth range 1..1, and direction.
	last := ds.params[len(ds.params)-1]
	assert.Equal(t, []any{"PurchaseOrder:PO-1", 1, 1, "OUTGOING"}, last)
}

func TestNeighbors_FilterAndLimitPushedDown(t *testing.T) {
	ds := &fakeRemote{}
	engine := newTestEngine(t, ds)

	_, err := engine.Neighbors(context.Background(), "PurchaseOrder:PO-1",
		graph.WithEdgeTypes("HAS_SUPPLIER"),
		graph.WithDirection(graph.DirectionBoth),
		graph.WithLimit(5))
	require.NoError(t, err)

	query := ds.queries[len(ds.queries)-1]
	assert.Contains(t, query, "WHERE edge_label IN (?)")
	assert.Contains(t, query, "LIMIT 5")
	last := ds.params[len(ds.params)-1]
	assert.Equal(t, []any{"PurchaseOrder:PO-1", 1, 1, "ANY", "HAS_SUPPLIER"}, last)
}

func TestNeighbors_LimitZeroSkipsRemoteCall(t *testing.T) {
	ds := &fakeRemote{}
	engine := newTestEngine(t, ds)
	before := len(ds.queries)

	nodes, err := engine.Neighbors(context.Background(), "PurchaseOrder:PO-1",
		graph.WithLimit(0))
	require.NoError(t, err)
	assert.Empty(t, nodes)
	assert.Len(t, ds.queries, before)
}

func TestNeighbors_RemoteFailureIsEmpty(t *testing.T) {
	ds := &fakeRemote{}
	engine := newTestEngine(t, ds)
	ds.failSubstrings = []string{"GRAPH_NEIGHBORS"}

	nodes, err := engine.Neighbors(context.Background(), "PurchaseOrder:PO-1")
	require.NoError(t, err)
	assert.NotNil(t, nodes)
	assert.Empty(t, nodes)
}

func TestNeighbors_MalformedID(t *testing.T) {
	engine := newTestEngine(t, &fakeRemote{})

	_, err := engine.Neighbors(context.Background(), "bad")
	assert.ErrorIs(t, err, graph.ErrInvalidArgument)
}

// =============================================================================
// ShortestPath
// =============================================================================

func TestShortestPath_ReconstructsFromHopRows(t *testing.T) {
	ds := &fakeRemote{rows: map[string][]map[string]any{
		"GRAPH_SHORTEST_PATH": {
			{"node_id": "PurchaseOrder:PO-1", "hop": 0, "edge_label": nil},
			{"node_id": "Supplier:S100", "hop": 1, "edge_label": "HAS_SUPPLIER"},
			{"node_id": "Plant:P01", "hop": 2, "edge_label": "HAS_PLANT"},
		},
	}}
	engine := newTestEngine(t, ds)

	path, err := engine.ShortestPath(context.Background(), "PurchaseOrder:PO-1", "Plant:P01")
	require.NoError(t, err)
	require.NotNil(t, path)
	assert.Equal(t, 2, path.Length())
	require.Len(t, path.Nodes, 3)
	assert.Equal(t, "Supplier:S100", path.Nodes[1].ID)
	assert.Equal(t, "HAS_SUPPLIER", path.Edges[0].Label)
	assert.Equal(t, "PurchaseOrder:PO-1->Supplier:S100", path.Edges[0].ID)

	last := ds.params[len(ds.params)-1]
	assert.Equal(t, []any{"PurchaseOrder:PO-1", "Plant:P01", graph.DefaultMaxHops, "OUTGOING"}, last)
}

func TestShortestPath_NoRowsIsNil(t *testing.T) {
	engine := newTestEngine(t, &fakeRemote{})

	path, err := engine.ShortestPath(context.Background(), "PurchaseOrder:PO-1", "Plant:P01")
	require.NoError(t, err)
	assert.Nil(t, path)
}

func TestShortestPath_RemoteFailureIsNil(t *testing.T) {
	ds := &fakeRemote{}
	engine := newTestEngine(t, ds)
	ds.failSubstrings = []string{"GRAPH_SHORTEST_PATH"}

	path, err := engine.ShortestPath(context.Background(), "PurchaseOrder:PO-1", "Plant:P01")
	require.NoError(t, err)
	assert.Nil(t, path)
}

func TestShortestPath_NegativeMaxHops(t *testing.T) {
	engine := newTestEngine(t, &fakeRemote{})

	_, err := engine.ShortestPath(context.Background(), "A:1", "B:1", graph.WithMaxHops(-1))
	assert.ErrorIs(t, err, graph.ErrInvalidArgument)
}

func TestShortestPath_SameNodeIsZeroLengthPath(t *testing.T) {
	ds := &fakeRemote{
		nodes: map[string]map[string]any{
			"Supplier|S100": {"SupplierNumber": "S100", "Name": "Acme"},
		},
		structures: map[string]*datasource.Table{"Supplier": supplierTable()},
	}
	engine := newTestEngine(t, ds)
	before := len(ds.queries)

	path, err := engine.ShortestPath(context.Background(), "Supplier:S100", "Supplier:S100",
		graph.WithMaxHops(0))
	require.NoError(t, err)
	require.NotNil(t, path)
	assert.Equal(t, 0, path.Length())
	require.Len(t, path.Nodes, 1)
	assert.Equal(t, "Supplier:S100", path.Nodes[0].ID)
	assert.Empty(t, path.Edges)

	// Only the node fetch hits the store; no path statement is issued.
	for _, q := range ds.queries[before:] {
		assert.NotContains(t, q, "GRAPH_SHORTEST_PATH")
	}
}

func TestShortestPath_SameNodeAbsentIsNil(t *testing.T) {
	engine := newTestEngine(t, &fakeRemote{
		structures: map[string]*datasource.Table{"Supplier": supplierTable()},
	})

	path, err := engine.ShortestPath(context.Background(), "Supplier:S999", "Supplier:S999")
	require.NoError(t, err)
	assert.Nil(t, path)
}

func TestShortestPath_ZeroMaxHopsDistinctNodesIsNil(t *testing.T) {
	ds := &fakeRemote{}
	engine := newTestEngine(t, ds)
	before := len(ds.queries)

	path, err := engine.ShortestPath(context.Background(), "A:1", "B:1", graph.WithMaxHops(0))
	require.NoError(t, err)
	assert.Nil(t, path)
	assert.Len(t, ds.queries, before, "a zero hop budget never reaches the store")
}

// =============================================================================
// Traverse
// =============================================================================

func TestTraverse_OrdersByDepthThenID(t *testing.T) {
	ds := &fakeRemote{
		rows: map[string][]map[string]any{
			"GRAPH_NEIGHBORS": {
				{"node_id": "Supplier:S100", "depth": 1, "edge_label": "HAS_SUPPLIER"},
				{"node_id": "Plant:P01", "depth": 2, "edge_label": "HAS_PLANT"},
				{"node_id": "Material:M-1", "depth": 1, "edge_label": "HAS_MATERIAL"},
			},
		},
		structures: map[string]*datasource.Table{
			"PurchaseOrder": {Name: "PurchaseOrder", Columns: []datasource.Column{
				{Name: "PurchaseOrderNumber", IsPrimaryKey: true},
			}},
		},
		nodes: map[string]map[string]any{
			"PurchaseOrder|PO-1": {"PurchaseOrderNumber": "PO-1"},
		},
	}
	engine := newTestEngine(t, ds)

	nodes, err := engine.Traverse(context.Background(), "PurchaseOrder:PO-1", 2)
	require.NoError(t, err)

	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	// The server omitted the start node; the engine injects it at depth 0.
	assert.Equal(t, []string{"PurchaseOrder:PO-1", "Material:M-1", "Supplier:S100", "Plant:P01"}, ids)
}

func TestTraverse_NegativeDepth(t *testing.T) {
	engine := newTestEngine(t, &fakeRemote{})

	_, err := engine.Traverse(context.Background(), "A:1", -1)
	assert.ErrorIs(t, err, graph.ErrInvalidArgument)
}

func TestTraverse_RemoteFailureIsEmpty(t *testing.T) {
	ds := &fakeRemote{}
	engine := newTestEngine(t, ds)
	ds.failSubstrings = []string{"GRAPH_NEIGHBORS"}

	nodes, err := engine.Traverse(context.Background(), "A:1", 2)
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

// =============================================================================
// Subgraph
// =============================================================================

func TestSubgraph_RetainsEdgesInsideSet(t *testing.T) {
	ds := &fakeRemote{
		structures: map[string]*datasource.Table{
			"PurchaseOrder": {Name: "PurchaseOrder", Columns: []datasource.Column{
				{Name: "PurchaseOrderNumber", IsPrimaryKey: true},
			}},
			"Supplier": supplierTable(),
		},
		nodes: map[string]map[string]any{
			"PurchaseOrder|PO-1": {"PurchaseOrderNumber": "PO-1"},
			"Supplier|S100":      {"SupplierNumber": "S100", "Name": "Acme Metals"},
		},
		rows: map[string][]map[string]any{
			"GRAPH_NEIGHBORS|PurchaseOrder:PO-1": {
				{"node_id": "Supplier:S100", "depth": 1, "edge_label": "HAS_SUPPLIER"},
				{"node_id": "Material:M-1", "depth": 1, "edge_label": "HAS_MATERIAL"},
			},
		},
	}
	engine := newTestEngine(t, ds)

	sub, err := engine.Subgraph(context.Background(),
		[]string{"PurchaseOrder:PO-1", "Supplier:S100", "Ghost:G-1"}, true)
	require.NoError(t, err)

	require.Len(t, sub.Nodes, 2, "unresolvable ids are dropped")
	require.Len(t, sub.Edges, 1, "edges leaving the set are dropped")
	assert.Equal(t, "PurchaseOrder:PO-1", sub.Edges[0].SourceID)
	assert.Equal(t, "Supplier:S100", sub.Edges[0].TargetID)
	assert.Equal(t, "HAS_SUPPLIER", sub.Edges[0].Label)
}

func TestSubgraph_WithoutEdges(t *testing.T) {
	ds := &fakeRemote{
		structures: map[string]*datasource.Table{"Supplier": supplierTable()},
		nodes: map[string]map[string]any{
			"Supplier|S100": {"SupplierNumber": "S100"},
		},
	}
	engine := newTestEngine(t, ds)

	sub, err := engine.Subgraph(context.Background(), []string{"Supplier:S100"}, false)
	require.NoError(t, err)
	assert.Len(t, sub.Nodes, 1)
	assert.Empty(t, sub.Edges)
}

// =============================================================================
// Node Lookup
// =============================================================================

func TestGetNode_FullRowAsProperties(t *testing.T) {
	ds := &fakeRemote{
		structures: map[string]*datasource.Table{"Supplier": supplierTable()},
		nodes: map[string]map[string]any{
			"Supplier|S100": {"SupplierNumber": "S100", "Name": "Acme Metals"},
		},
	}
	engine := newTestEngine(t, ds)

	node, err := engine.GetNode(context.Background(), "Supplier:S100")
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.Equal(t, "Supplier", node.Label)
	assert.Equal(t, "S100", node.Key)
	assert.Equal(t, "Acme Metals", node.Properties["Name"])
}

func TestGetNode_PrimaryKeyCached(t *testing.T) {
	ds := &fakeRemote{
		structures: map[string]*datasource.Table{"Supplier": supplierTable()},
		nodes: map[string]map[string]any{
			"Supplier|S100": {"SupplierNumber": "S100"},
		},
	}
	engine := newTestEngine(t, ds)

	_, err := engine.GetNode(context.Background(), "Supplier:S100")
	require.NoError(t, err)
	_, err = engine.GetNode(context.Background(), "Supplier:S100")
	require.NoError(t, err)
	assert.Equal(t, 1, ds.structureCalls)
}

func TestGetNode_MissingAndFailure(t *testing.T) {
	ds := &fakeRemote{}
	engine := newTestEngine(t, ds)

	node, err := engine.GetNode(context.Background(), "Supplier:MISSING")
	require.NoError(t, err)
	assert.Nil(t, node)

	ds.failSubstrings = []string{"SELECT * FROM"}
	node, err = engine.GetNode(context.Background(), "Supplier:S100")
	require.NoError(t, err)
	assert.Nil(t, node)
}

func TestNodeExists(t *testing.T) {
	ds := &fakeRemote{
		structures: map[string]*datasource.Table{"Supplier": supplierTable()},
		nodes: map[string]map[string]any{
			"Supplier|S100": {"SupplierNumber": "S100"},
		},
	}
	engine := newTestEngine(t, ds)

	exists, err := engine.NodeExists(context.Background(), "Supplier:S100")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = engine.NodeExists(context.Background(), "Supplier:MISSING")
	require.NoError(t, err)
	assert.False(t, exists)
}

// =============================================================================
// Counts
// =============================================================================

func TestCounts_FromWorkspaceInfo(t *testing.T) {
	ds := &fakeRemote{rows: map[string][]map[string]any{
		"GRAPH_WORKSPACE_INFO": {
			{"node_count": 42, "edge_count": 99},
		},
	}}
	engine := newTestEngine(t, ds)

	nodes, err := engine.NodeCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, nodes)

	edges, err := engine.EdgeCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 99, edges)
}

func TestCounts_FailureIsZero(t *testing.T) {
	ds := &fakeRemote{}
	engine := newTestEngine(t, ds)
	ds.failSubstrings = []string{"GRAPH_WORKSPACE_INFO"}

	nodes, err := engine.NodeCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, nodes)
}

// =============================================================================
// Analytics
// =============================================================================

func TestPageRank_Remote(t *testing.T) {
	ds := &fakeRemote{rows: map[string][]map[string]any{
		"GRAPH_PAGERANK": {
			{"node_id": "Supplier:S100", "score": 0.4},
			{"node_id": "PurchaseOrder:PO-1", "score": "0.6"},
		},
	}}
	engine := newTestEngine(t, ds)

	scores, err := engine.PageRank(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.4, scores["Supplier:S100"], 1e-9)
	assert.InDelta(t, 0.6, scores["PurchaseOrder:PO-1"], 1e-9, "string scores are coerced")
}

func TestDegreeCentrality_FailureIsEmpty(t *testing.T) {
	ds := &fakeRemote{}
	engine := newTestEngine(t, ds)
	ds.failSubstrings = []string{"GRAPH_DEGREE_CENTRALITY"}

	scores, err := engine.DegreeCentrality(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, scores)
	assert.Empty(t, scores)
}

func TestCommunities_Remote(t *testing.T) {
	ds := &fakeRemote{rows: map[string][]map[string]any{
		"GRAPH_COMMUNITIES": {
			{"node_id": "Supplier:S100", "community": 0},
			{"node_id": "PurchaseOrder:PO-1", "community": 0},
			{"node_id": "Plant:P01", "community": 1},
		},
	}}
	engine := newTestEngine(t, ds)

	communities, err := engine.Communities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, communities["Supplier:S100"], communities["PurchaseOrder:PO-1"])
	assert.NotEqual(t, communities["Supplier:S100"], communities["Plant:P01"])
}

func TestCycles_GroupsByCycleID(t *testing.T) {
	ds := &fakeRemote{rows: map[string][]map[string]any{
		"GRAPH_CYCLES": {
			{"cycle_id": 0, "step": 0, "node_id": "A:1"},
			{"cycle_id": 0, "step": 1, "node_id": "B:1"},
			{"cycle_id": 0, "step": 2, "node_id": "A:1"},
			{"cycle_id": 1, "step": 0, "node_id": "C:1"},
			{"cycle_id": 1, "step": 1, "node_id": "C:1"},
		},
	}}
	engine := newTestEngine(t, ds)

	cycles, err := engine.Cycles(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, cycles, 2)
	assert.Equal(t, []string{"A:1", "B:1", "A:1"}, cycles[0])
	assert.Equal(t, []string{"C:1", "C:1"}, cycles[1])

	// The limit binds into the server statement.
	last := ds.params[len(ds.params)-1]
	assert.Equal(t, []any{10}, last)
}

func TestCycles_FailureIsEmpty(t *testing.T) {
	ds := &fakeRemote{}
	engine := newTestEngine(t, ds)
	ds.failSubstrings = []string{"GRAPH_CYCLES"}

	cycles, err := engine.Cycles(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, cycles)
	assert.Empty(t, cycles)
}
