// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package graph defines the backend-agnostic graph query contract: the
// node/edge/path value types, the Engine interface with its two concrete
// variants (in-memory and remote), and the facade that selects between them.
//
// # Identity
//
// Node identity is the composite string "Label:Key". Within a snapshot the
// id is unique per node. Only the first colon is parsed; keys may embed
// further colons.
//
// # Failure policy
//
// Missing nodes, missing paths, and unsupported analytics are not errors;
// they yield empty or nil results. Engines surface errors only for invalid
// arguments and for in-memory materialization failures.
package graph

import "errors"

// Sentinel errors for the query contract.
var (
	// ErrInvalidArgument is returned for negative limits or depths and for
	// malformed node ids. No partial work is performed.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrGraphLoad is returned when in-memory materialization fails after a
	// successful ontology read. The partial graph is never cached.
	ErrGraphLoad = errors.New("graph load failed")

	// ErrBackendQuery marks a remote query failure. It is logged and
	// converted to a safe empty result; query methods never return it.
	ErrBackendQuery = errors.New("backend query failed")

	// ErrEngineConstruction is returned when an engine cannot be built for
	// the given data source. The facade treats it as a fallback trigger.
	ErrEngineConstruction = errors.New("engine construction failed")
)
