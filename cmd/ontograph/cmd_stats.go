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
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/ontograph/pkg/graph"
)

var (
	statsJSON bool
	statsTop  int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show graph size and active backend",
	Long: `Report node and edge counts along with backend information for the
configured data source.

Examples:
  ontograph stats
  ontograph stats --json
  ontograph stats --top 10`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false,
		"Output as JSON for scripting")
	statsCmd.Flags().IntVar(&statsTop, "top", 0,
		"Also list the N highest-PageRank nodes")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	env, err := openEnvironment(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	nodes, err := env.facade.NodeCount(ctx)
	if err != nil {
		return err
	}
	edges, err := env.facade.EdgeCount(ctx)
	if err != nil {
		return err
	}
	info := env.facade.BackendInfo()

	var ranked []graph.ScoredNode
	if statsTop > 0 {
		scores, err := env.facade.PageRank(ctx)
		if err != nil {
			return err
		}
		ranked = graph.TopN(scores, statsTop)
	}

	if statsJSON {
		out := map[string]any{
			"nodes":   nodes,
			"edges":   edges,
			"backend": info,
		}
		if ranked != nil {
			out["top_nodes"] = ranked
		}
		return printJSON(out)
	}

	fmt.Printf("Backend:     %s\n", info.Backend)
	fmt.Printf("Data source: %s\n", info.DataSource)
	if info.Workspace != "" {
		fmt.Printf("Workspace:   %s\n", info.Workspace)
	}
	if info.Database != "" {
		fmt.Printf("Database:    %s\n", info.Database)
	}
	fmt.Printf("Platform:    %s\n", info.Platform)
	fmt.Printf("Nodes:       %d\n", nodes)
	fmt.Printf("Edges:       %d\n", edges)
	if len(ranked) > 0 {
		fmt.Println()
		fmt.Printf("Top %d nodes by PageRank:\n", len(ranked))
		for i, node := range ranked {
			fmt.Printf("  %2d. %-40s %.6f\n", i+1, node.ID, node.Score)
		}
	}
	return nil
}
