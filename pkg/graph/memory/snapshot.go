// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package memory

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/ontograph/pkg/graph"
	"github.com/AleutianAI/ontograph/pkg/ontology"
)

// reservedPropertyKeys are attribute names owned by the graph structure
// itself. Arbitrary edge properties must not overwrite them, so they are
// filtered before insertion.
var reservedPropertyKeys = map[string]bool{
	"label":        true,
	"type":         true,
	"source_table": true,
	"target_table": true,
}

// edgeRecord pairs an edge with a global insertion sequence number. The
// sequence fixes result ordering: queries over a snapshot are deterministic
// because incident edge lists and merges are ordered by seq.
type edgeRecord struct {
	edge *graph.Edge
	seq  int
}

// snapshot is the immutable in-memory directed multigraph. After build()
// returns, a snapshot is never mutated; concurrent readers need no
// coordination.
type snapshot struct {
	nodes     map[string]*graph.Node
	nodeOrder []string
	outgoing  map[string][]*edgeRecord
	incoming  map[string][]*edgeRecord
	edges     []*edgeRecord
	loadedAt  time.Time
}

// build materializes a snapshot from instance-level ontology entries.
//
// Endpoints follow the "Label:Key" convention. Duplicate
// (source, target, label) triples with identical properties are
// deduplicated; differing property maps are retained as parallel edges
// with a "#n" id discriminator. Unbound (schema-level) entries and
// entries with empty labels or keys are skipped.
func build(entries []ontology.DiscoveredEdge, logger *slog.Logger) *snapshot {
	s := &snapshot{
		nodes:    make(map[string]*graph.Node),
		outgoing: make(map[string][]*edgeRecord),
		incoming: make(map[string][]*edgeRecord),
	}

	identical := make(map[string]bool) // (source|target|label|props) -> seen
	pairCount := make(map[string]int)  // (source->target) -> edge count
	skipped := 0

	for _, entry := range entries {
		if !entry.IsBound() {
			continue
		}
		if entry.SourceLabel == "" || entry.TargetLabel == "" {
			skipped++
			continue
		}

		sourceID := entry.SourceID()
		targetID := entry.TargetID()
		props := filterProperties(entry.Properties)

		dedupeKey := sourceID + "|" + targetID + "|" + entry.EdgeLabel + "|" + canonicalProps(props)
		if identical[dedupeKey] {
			continue
		}
		identical[dedupeKey] = true

		s.ensureNode(sourceID, entry.SourceLabel, entry.SourceKey)
		s.ensureNode(targetID, entry.TargetLabel, entry.TargetKey)

		pairKey := sourceID + "->" + targetID
		pairCount[pairKey]++
		edgeID := pairKey
		if n := pairCount[pairKey]; n > 1 {
			edgeID = fmt.Sprintf("%s#%d", pairKey, n)
		}

		record := &edgeRecord{
			edge: &graph.Edge{
				ID:         edgeID,
				SourceID:   sourceID,
				TargetID:   targetID,
				Label:      entry.EdgeLabel,
				Properties: props,
			},
			seq: len(s.edges),
		}
		s.edges = append(s.edges, record)
		s.outgoing[sourceID] = append(s.outgoing[sourceID], record)
		s.incoming[targetID] = append(s.incoming[targetID], record)
	}

	if skipped > 0 && logger != nil {
		logger.Warn("skipped malformed ontology entries", "count", skipped)
	}

	s.loadedAt = time.Now()
	return s
}

func (s *snapshot) ensureNode(id, label, key string) {
	if _, ok := s.nodes[id]; ok {
		return
	}
	s.nodes[id] = &graph.Node{ID: id, Label: label, Key: key}
	s.nodeOrder = append(s.nodeOrder, id)
}

// incident returns the edge records touching nodeID in the given
// direction, ordered by insertion sequence. For DirectionBoth the two
// per-node lists are merged by seq.
func (s *snapshot) incident(nodeID string, direction graph.Direction) []*edgeRecord {
	switch direction {
	case graph.DirectionOutgoing:
		return s.outgoing[nodeID]
	case graph.DirectionIncoming:
		return s.incoming[nodeID]
	default:
		out := s.outgoing[nodeID]
		in := s.incoming[nodeID]
		merged := make([]*edgeRecord, 0, len(out)+len(in))
		i, j := 0, 0
		for i < len(out) && j < len(in) {
			if out[i].seq <= in[j].seq {
				merged = append(merged, out[i])
				i++
			} else {
				merged = append(merged, in[j])
				j++
			}
		}
		merged = append(merged, out[i:]...)
		merged = append(merged, in[j:]...)
		return merged
	}
}

// neighborOf returns the far endpoint of record relative to nodeID.
func (r *edgeRecord) neighborOf(nodeID string) string {
	if r.edge.SourceID == nodeID {
		return r.edge.TargetID
	}
	return r.edge.SourceID
}

// cloneNode returns a defensive copy so callers cannot mutate the snapshot.
func cloneNode(n *graph.Node) *graph.Node {
	clone := &graph.Node{ID: n.ID, Label: n.Label, Key: n.Key}
	if len(n.Properties) > 0 {
		clone.Properties = make(map[string]any, len(n.Properties))
		for k, v := range n.Properties {
			clone.Properties[k] = v
		}
	}
	return clone
}

func cloneEdge(e *graph.Edge) *graph.Edge {
	clone := &graph.Edge{ID: e.ID, SourceID: e.SourceID, TargetID: e.TargetID, Label: e.Label}
	if len(e.Properties) > 0 {
		clone.Properties = make(map[string]any, len(e.Properties))
		for k, v := range e.Properties {
			clone.Properties[k] = v
		}
	}
	return clone
}

// filterProperties drops reserved attribute names from a property map.
func filterProperties(props map[string]any) map[string]any {
	if len(props) == 0 {
		return nil
	}
	filtered := make(map[string]any, len(props))
	for k, v := range props {
		if reservedPropertyKeys[k] {
			continue
		}
		filtered[k] = v
	}
	if len(filtered) == 0 {
		return nil
	}
	return filtered
}

// canonicalProps renders properties with sorted keys for dedupe
// comparison. encoding/json sorts map keys, which is exactly the stable
// form needed here.
func canonicalProps(props map[string]any) string {
	if len(props) == 0 {
		return ""
	}
	encoded, err := json.Marshal(props)
	if err != nil {
		return fmt.Sprintf("%v", props)
	}
	return string(encoded)
}
