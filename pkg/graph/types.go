// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"fmt"
	"strings"
)

// Node identity wire format: "<Label>:<Key>". Only the first colon is the
// separator; colons embedded in the key are preserved.
const nodeIDSeparator = ":"

// Direction selects which incident edges a traversal considers.
type Direction int

const (
	// DirectionOutgoing follows edges from source to target.
	DirectionOutgoing Direction = iota

	// DirectionIncoming follows edges from target to source.
	DirectionIncoming

	// DirectionBoth follows edges in either sense.
	DirectionBoth
)

// String returns the string representation of the Direction.
func (d Direction) String() string {
	switch d {
	case DirectionOutgoing:
		return "outgoing"
	case DirectionIncoming:
		return "incoming"
	case DirectionBoth:
		return "both"
	default:
		return "unknown"
	}
}

// Node is an identified vertex in the graph.
//
// Identity is the composite "Label:Key" id; equality is by ID. Nodes are
// value-typed: within a single snapshot a given ID always represents the
// same node.
type Node struct {
	// ID is the composite "Label:Key" identifier.
	ID string

	// Label names the entity kind (e.g., "Supplier").
	Label string

	// Key is the primary identifier within the entity kind.
	Key string

	// Properties holds scalar attributes (strings, numbers, booleans,
	// timestamps, or nil).
	Properties map[string]any
}

// Edge is a directed, labeled connection between two node ids.
//
// Edges carry their own id, conventionally "source->target" plus a
// discriminator when parallel edges exist. Direction is a storage property;
// undirected traversal is a query-time option.
type Edge struct {
	// ID uniquely identifies the edge within a snapshot.
	ID string

	// SourceID is the "Label:Key" id of the source node.
	SourceID string

	// TargetID is the "Label:Key" id of the target node.
	TargetID string

	// Label is the relationship kind (e.g., "HAS_SUPPLIER").
	Label string

	// Properties holds scalar attributes of the relationship.
	Properties map[string]any
}

// Path is an ordered alternating sequence of nodes and edges, starting and
// ending with a node. A zero-length path has one node and no edges.
type Path struct {
	Nodes []*Node
	Edges []*Edge
}

// Length returns the number of edges in the path.
func (p *Path) Length() int {
	if p == nil {
		return 0
	}
	return len(p.Edges)
}

// Subgraph is an unordered set of nodes and edges where every edge's
// endpoints are members of the node set.
type Subgraph struct {
	Nodes []*Node
	Edges []*Edge
}

// BackendInfo describes the engine serving a facade instance. It is
// constant for the lifetime of the facade.
type BackendInfo struct {
	// Backend names the active engine ("in-memory" or "remote").
	Backend string `json:"backend"`

	// DataSource is the self-reported type of the underlying data source.
	DataSource string `json:"data_source"`

	// Workspace is the remote graph workspace name (remote backend only).
	Workspace string `json:"workspace,omitempty"`

	// Database is the local ontology store location (in-memory backend only).
	Database string `json:"database,omitempty"`

	// Platform describes where graph processing happens.
	Platform string `json:"platform"`

	// Performance is a human-readable performance characterization.
	Performance string `json:"performance"`
}

// FormatNodeID builds the composite "Label:Key" id.
func FormatNodeID(label, key string) string {
	return label + nodeIDSeparator + key
}

// ParseNodeID splits a composite node id into (label, key).
//
// Only the first colon separates label from key; any further colons remain
// part of the key. Returns ErrInvalidArgument when the id has no separator
// or an empty label or key.
func ParseNodeID(id string) (label, key string, err error) {
	idx := strings.Index(id, nodeIDSeparator)
	if idx <= 0 || idx == len(id)-1 {
		return "", "", fmt.Errorf("%w: malformed node id %q (want \"Label:Key\")", ErrInvalidArgument, id)
	}
	return id[:idx], id[idx+1:], nil
}
