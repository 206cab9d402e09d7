// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/ontograph/pkg/graph"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	queryDirection string
	queryEdgeTypes []string
	queryLimit     int
	queryMaxHops   int
	queryDepth     int
	queryJSON      bool
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

var neighborsCmd = &cobra.Command{
	Use:   "neighbors NODE_ID",
	Short: "List the 1-hop neighbors of a node",
	Long: `List the nodes adjacent to NODE_ID.

NODE_ID uses the "Label:Key" convention, e.g. "Supplier:S100".

Examples:
  ontograph neighbors "Supplier:S100"
  ontograph neighbors "PurchaseOrder:PO-1" --direction both
  ontograph neighbors "Customer:C200" --edge-types HAS_SUPPLIER --limit 10`,
	Args: cobra.ExactArgs(1),
	RunE: runNeighbors,
}

var pathCmd = &cobra.Command{
	Use:   "path START_ID END_ID",
	Short: "Find the shortest path between two nodes",
	Long: `Find an unweighted shortest path from START_ID to END_ID.

Prints nothing and exits 0 when no path of at most --max-hops edges
exists.

Examples:
  ontograph path "PurchaseOrder:PO-1" "Invoice:INV-9"
  ontograph path "Supplier:S100" "Plant:P01" --max-hops 5 --direction both`,
	Args: cobra.ExactArgs(2),
	RunE: runPath,
}

var traverseCmd = &cobra.Command{
	Use:   "traverse NODE_ID",
	Short: "List all nodes within a given depth of a node",
	Long: `Breadth-first traversal from NODE_ID up to --depth hops. The start
node is included at depth 0.

Examples:
  ontograph traverse "Customer:C200" --depth 2
  ontograph traverse "Material:M-42" --depth 3 --direction incoming`,
	Args: cobra.ExactArgs(1),
	RunE: runTraverse,
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	for _, cmd := range []*cobra.Command{neighborsCmd, pathCmd, traverseCmd} {
		cmd.Flags().StringVar(&queryDirection, "direction", "outgoing",
			"Traversal direction: outgoing, incoming, both")
		cmd.Flags().StringSliceVar(&queryEdgeTypes, "edge-types", nil,
			"Restrict to edges with these labels")
		cmd.Flags().BoolVar(&queryJSON, "json", false,
			"Output as JSON for scripting")
	}
	neighborsCmd.Flags().IntVar(&queryLimit, "limit", 0,
		"Maximum results (0 = no limit)")
	pathCmd.Flags().IntVar(&queryMaxHops, "max-hops", graph.DefaultMaxHops,
		"Maximum path length in edges")
	traverseCmd.Flags().IntVar(&queryDepth, "depth", 1,
		"Maximum traversal depth in hops")

	rootCmd.AddCommand(neighborsCmd)
	rootCmd.AddCommand(pathCmd)
	rootCmd.AddCommand(traverseCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATIONS
// =============================================================================

func parseDirection(s string) (graph.Direction, error) {
	switch strings.ToLower(s) {
	case "outgoing", "out":
		return graph.DirectionOutgoing, nil
	case "incoming", "in":
		return graph.DirectionIncoming, nil
	case "both", "any":
		return graph.DirectionBoth, nil
	default:
		return 0, fmt.Errorf("unknown direction %q (want outgoing, incoming, or both)", s)
	}
}

func queryOptions() ([]graph.QueryOption, error) {
	direction, err := parseDirection(queryDirection)
	if err != nil {
		return nil, err
	}
	opts := []graph.QueryOption{graph.WithDirection(direction)}
	if len(queryEdgeTypes) > 0 {
		opts = append(opts, graph.WithEdgeTypes(queryEdgeTypes...))
	}
	return opts, nil
}

func runNeighbors(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	opts, err := queryOptions()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("limit") {
		opts = append(opts, graph.WithLimit(queryLimit))
	}

	env, err := openEnvironment(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	nodes, err := env.facade.Neighbors(ctx, args[0], opts...)
	if err != nil {
		return err
	}

	if queryJSON {
		return printJSON(nodes)
	}
	if len(nodes) == 0 {
		fmt.Println("No neighbors found.")
		return nil
	}
	for _, n := range nodes {
		fmt.Println(n.ID)
	}
	return nil
}

func runPath(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	opts, err := queryOptions()
	if err != nil {
		return err
	}
	opts = append(opts, graph.WithMaxHops(queryMaxHops))

	env, err := openEnvironment(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	path, err := env.facade.ShortestPath(ctx, args[0], args[1], opts...)
	if err != nil {
		return err
	}

	if queryJSON {
		return printJSON(path)
	}
	if path == nil {
		fmt.Println("No path found.")
		return nil
	}
	for i, node := range path.Nodes {
		if i > 0 {
			fmt.Printf("  -[%s]->\n", path.Edges[i-1].Label)
		}
		fmt.Println(node.ID)
	}
	fmt.Printf("Length: %d\n", path.Length())
	return nil
}

func runTraverse(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	opts, err := queryOptions()
	if err != nil {
		return err
	}

	env, err := openEnvironment(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	nodes, err := env.facade.Traverse(ctx, args[0], queryDepth, opts...)
	if err != nil {
		return err
	}

	if queryJSON {
		return printJSON(nodes)
	}
	for _, n := range nodes {
		fmt.Println(n.ID)
	}
	return nil
}
