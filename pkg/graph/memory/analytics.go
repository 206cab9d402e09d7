// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package memory

import (
	"context"
	"math"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/ontograph/pkg/graph"
)

// =============================================================================
// Graph Analytics
// =============================================================================

// PageRank configuration constants.
const (
	// dampingFactor is the probability of following a link (vs random jump).
	// Standard value from the original PageRank paper.
	dampingFactor = 0.85

	// pageRankMaxIterations is the maximum power iterations before stopping.
	pageRankMaxIterations = 100

	// pageRankConvergence stops iteration when the max score change drops
	// below this threshold.
	pageRankConvergence = 1e-6

	// labelPropMaxIterations bounds community label propagation.
	labelPropMaxIterations = 50
)

// PageRank computes per-node importance scores via power iteration.
//
// Description:
//
//	Scores sum to approximately 1.0. Sink nodes (no outgoing edges)
//	redistribute their score evenly across all nodes, preventing rank
//	leakage. Non-convergence within the iteration budget is tolerated;
//	the last iterate is returned.
//
// Outputs:
//
//   - map[string]float64: nodeID to score. Empty map for an empty graph.
//   - error: ErrGraphLoad if the snapshot cannot be materialized.
//
// Thread Safety: Safe for concurrent use.
func (e *Engine) PageRank(ctx context.Context) (map[string]float64, error) {
	s, err := e.materialize(ctx)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "Engine.PageRank",
		trace.WithAttributes(attribute.Int("node_count", len(s.nodeOrder))),
	)
	defer span.End()

	n := float64(len(s.nodeOrder))
	scores := make(map[string]float64, len(s.nodeOrder))
	if n == 0 {
		return scores, nil
	}

	initial := 1.0 / n
	for _, id := range s.nodeOrder {
		scores[id] = initial
	}

	// Cache out-degrees and collect sink nodes once.
	outDegree := make(map[string]int, len(s.nodeOrder))
	var sinks []string
	for _, id := range s.nodeOrder {
		deg := len(s.outgoing[id])
		outDegree[id] = deg
		if deg == 0 {
			sinks = append(sinks, id)
		}
	}

	next := make(map[string]float64, len(s.nodeOrder))
	for iter := 0; iter < pageRankMaxIterations; iter++ {
		if ctx.Err() != nil {
			span.AddEvent("cancelled", trace.WithAttributes(
				attribute.Int("iterations_completed", iter),
			))
			return scores, nil
		}

		sinkMass := 0.0
		for _, id := range sinks {
			sinkMass += scores[id]
		}
		sinkShare := dampingFactor * sinkMass / n

		maxDiff := 0.0
		for _, id := range s.nodeOrder {
			score := (1-dampingFactor)/n + sinkShare
			for _, rec := range s.incoming[id] {
				from := rec.edge.SourceID
				if deg := outDegree[from]; deg > 0 {
					score += dampingFactor * scores[from] / float64(deg)
				}
			}
			next[id] = score
			if diff := math.Abs(score - scores[id]); diff > maxDiff {
				maxDiff = diff
			}
		}
		scores, next = next, scores

		if maxDiff < pageRankConvergence {
			span.SetAttributes(attribute.Int("iterations", iter+1))
			break
		}
	}

	// Guard against numerical blowups from degenerate inputs.
	for _, v := range scores {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			uniform := make(map[string]float64, len(s.nodeOrder))
			for _, id := range s.nodeOrder {
				uniform[id] = initial
			}
			span.AddEvent("non_finite_scores_reset")
			return uniform, nil
		}
	}
	return scores, nil
}

// DegreeCentrality returns, for each node, the number of distinct
// neighbors (either direction) divided by n-1. A single-node graph maps
// its node to 0.
func (e *Engine) DegreeCentrality(ctx context.Context) (map[string]float64, error) {
	s, err := e.materialize(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64, len(s.nodeOrder))
	if len(s.nodeOrder) == 0 {
		return out, nil
	}
	denom := float64(len(s.nodeOrder) - 1)

	for _, id := range s.nodeOrder {
		neighbors := make(map[string]struct{})
		for _, rec := range s.outgoing[id] {
			neighbors[rec.edge.TargetID] = struct{}{}
		}
		for _, rec := range s.incoming[id] {
			neighbors[rec.edge.SourceID] = struct{}{}
		}
		delete(neighbors, id)
		if denom == 0 {
			out[id] = 0
		} else {
			out[id] = float64(len(neighbors)) / denom
		}
	}
	return out, nil
}

// Communities partitions nodes by synchronous label propagation over the
// undirected view of the graph.
//
// Description:
//
//	Each node starts in its own community and repeatedly adopts the most
//	frequent label among its neighbors. Ties break toward the smallest
//	label, and nodes are visited in id-ascending order, so the result is
//	deterministic for a fixed snapshot. Final labels are renumbered from
//	0 in order of first appearance over the sorted node ids.
func (e *Engine) Communities(ctx context.Context) (map[string]int, error) {
	s, err := e.materialize(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(s.nodeOrder))
	copy(ids, s.nodeOrder)
	sort.Strings(ids)

	labels := make(map[string]int, len(ids))
	for i, id := range ids {
		labels[id] = i
	}

	adjacency := make(map[string][]string, len(ids))
	for _, id := range ids {
		seen := make(map[string]struct{})
		for _, rec := range s.outgoing[id] {
			seen[rec.edge.TargetID] = struct{}{}
		}
		for _, rec := range s.incoming[id] {
			seen[rec.edge.SourceID] = struct{}{}
		}
		delete(seen, id)
		for n := range seen {
			adjacency[id] = append(adjacency[id], n)
		}
		sort.Strings(adjacency[id])
	}

	for iter := 0; iter < labelPropMaxIterations; iter++ {
		if ctx.Err() != nil {
			break
		}
		changed := false
		nextLabels := make(map[string]int, len(ids))
		for _, id := range ids {
			counts := make(map[int]int)
			for _, n := range adjacency[id] {
				counts[labels[n]]++
			}
			best := labels[id]
			bestCount := 0
			for label, count := range counts {
				if count > bestCount || (count == bestCount && label < best) {
					best = label
					bestCount = count
				}
			}
			nextLabels[id] = best
			if best != labels[id] {
				changed = true
			}
		}
		labels = nextLabels
		if !changed {
			break
		}
	}

	// Renumber communities by first appearance in id order.
	renumber := make(map[int]int)
	out := make(map[string]int, len(ids))
	for _, id := range ids {
		label := labels[id]
		compact, ok := renumber[label]
		if !ok {
			compact = len(renumber)
			renumber[label] = compact
		}
		out[id] = compact
	}
	return out, nil
}

// Cycles enumerates up to limit directed cycles as node-id sequences.
//
// Description:
//
//	Bounded DFS from each node in id-ascending order. A cycle is reported
//	only from its minimal node id, so each cycle appears exactly once.
//	The returned sequences start and end at the same node. limit <= 0
//	returns an empty slice.
func (e *Engine) Cycles(ctx context.Context, limit int) ([][]string, error) {
	s, err := e.materialize(ctx)
	if err != nil {
		return nil, err
	}

	cycles := [][]string{}
	if limit <= 0 {
		return cycles, nil
	}

	ids := make([]string, len(s.nodeOrder))
	copy(ids, s.nodeOrder)
	sort.Strings(ids)

	var dfs func(start, current string, stack []string, onStack map[string]bool) bool
	dfs = func(start, current string, stack []string, onStack map[string]bool) bool {
		if ctx.Err() != nil {
			return true
		}
		for _, rec := range s.outgoing[current] {
			next := rec.edge.TargetID
			// Restricting to ids >= start makes "start" the minimal
			// node of every reported cycle.
			if next < start {
				continue
			}
			if next == start {
				cycle := make([]string, 0, len(stack)+1)
				cycle = append(cycle, stack...)
				cycle = append(cycle, start)
				cycles = append(cycles, cycle)
				if len(cycles) >= limit {
					return true
				}
				continue
			}
			if onStack[next] {
				continue
			}
			if len(stack) >= graph.MaxTraversalDepth {
				continue
			}
			onStack[next] = true
			done := dfs(start, next, append(stack, next), onStack)
			delete(onStack, next)
			if done {
				return true
			}
		}
		return false
	}

	for _, start := range ids {
		onStack := map[string]bool{start: true}
		if dfs(start, start, []string{start}, onStack) {
			break
		}
	}
	return cycles, nil
}
