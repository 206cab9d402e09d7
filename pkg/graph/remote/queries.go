// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package remote

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/ontograph/pkg/graph"
)

// =============================================================================
// Graph SQL Builders
// =============================================================================
//
// The remote store exposes its graph primitives as table functions over a
// named workspace. Values bind positionally with "?"; the workspace name is
// an identifier and is quoted into the statement text.

// Remote direction tokens.
const (
	directionOut = "OUTGOING"
	directionIn  = "INCOMING"
	directionAny = "ANY"
)

// remoteDirection maps the engine direction to the server token.
func remoteDirection(d graph.Direction) string {
	switch d {
	case graph.DirectionIncoming:
		return directionIn
	case graph.DirectionBoth:
		return directionAny
	default:
		return directionOut
	}
}

// quoteIdent double-quotes an identifier for statement text.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// buildNeighborsQuery produces a neighbor expansion from minDepth to
// maxDepth hops. The optional edge-label filter and limit are pushed into
// the server-side statement.
func buildNeighborsQuery(workspace, nodeID string, minDepth, maxDepth int, opts graph.QueryOptions) (string, []any) {
	var sb strings.Builder
	params := []any{nodeID, minDepth, maxDepth, remoteDirection(opts.Direction)}

	sb.WriteString("SELECT node_id, depth, edge_label FROM GRAPH_NEIGHBORS(")
	sb.WriteString(quoteIdent(workspace))
	sb.WriteString(", ?, ?, ?, ?)")

	if len(opts.EdgeTypes) > 0 {
		sb.WriteString(" WHERE edge_label IN (")
		for i, label := range opts.EdgeTypes {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("?")
			params = append(params, label)
		}
		sb.WriteString(")")
	}
	sb.WriteString(" ORDER BY depth, node_id")
	if opts.HasLimit {
		sb.WriteString(fmt.Sprintf(" LIMIT %d", opts.Limit))
	}
	return sb.String(), params
}

// buildShortestPathQuery produces a hop-ordered shortest-path expansion.
// Rows come back ordered by hop; row N's edge_label names the edge entering
// node N from node N-1.
func buildShortestPathQuery(workspace, startID, endID string, maxHops int, direction graph.Direction) (string, []any) {
	query := "SELECT node_id, hop, edge_label FROM GRAPH_SHORTEST_PATH(" +
		quoteIdent(workspace) + ", ?, ?, ?, ?) ORDER BY hop"
	return query, []any{startID, endID, maxHops, remoteDirection(direction)}
}

// buildNodeCountQuery reads the workspace's vertex count from graph
// metadata.
func buildNodeCountQuery(workspace string) string {
	return "SELECT node_count, edge_count FROM GRAPH_WORKSPACE_INFO(" +
		quoteIdent(workspace) + ")"
}

// buildPageRankQuery delegates PageRank to the server.
func buildPageRankQuery(workspace string) string {
	return "SELECT node_id, score FROM GRAPH_PAGERANK(" + quoteIdent(workspace) + ")"
}

// buildDegreeQuery delegates degree centrality to the server.
func buildDegreeQuery(workspace string) string {
	return "SELECT node_id, score FROM GRAPH_DEGREE_CENTRALITY(" + quoteIdent(workspace) + ")"
}

// buildCommunitiesQuery delegates community detection to the server.
func buildCommunitiesQuery(workspace string) string {
	return "SELECT node_id, community FROM GRAPH_COMMUNITIES(" + quoteIdent(workspace) + ")"
}

// buildCyclesQuery delegates cycle enumeration to the server. Rows group by
// cycle_id and order by step within each cycle.
func buildCyclesQuery(workspace string) string {
	return "SELECT cycle_id, step, node_id FROM GRAPH_CYCLES(" + quoteIdent(workspace) +
		", ?) ORDER BY cycle_id, step"
}

// buildGetNodeQuery fetches the first row of the node's underlying table by
// primary key.
func buildGetNodeQuery(table, pkColumn string) string {
	return "SELECT * FROM " + quoteIdent(table) + " WHERE " + quoteIdent(pkColumn) + " = ? LIMIT 1"
}
