// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import "sort"

// ScoredNode pairs a node id with an analytics score.
type ScoredNode struct {
	ID    string
	Score float64
}

// TopN ranks a score map and returns the n highest-scoring nodes in
// descending score order, ties broken by node id ascending.
//
// Description:
//
//	Intended for the maps returned by PageRank and DegreeCentrality,
//	which are unordered. n <= 0 or an empty map yields an empty slice;
//	n larger than the map returns every entry ranked.
func TopN(scores map[string]float64, n int) []ScoredNode {
	if n <= 0 || len(scores) == 0 {
		return []ScoredNode{}
	}

	ranked := make([]ScoredNode, 0, len(scores))
	for id, score := range scores {
		ranked = append(ranked, ScoredNode{ID: id, Score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ID < ranked[j].ID
	})

	if n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}
