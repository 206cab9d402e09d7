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

	"github.com/AleutianAI/ontograph/pkg/ontology"
)

var (
	discoverForce bool
	discoverJSON  bool
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover entity relationships from schema metadata",
	Long: `Infer typed relationships between entities from the database schema,
persist them to the edge store, and bind instance-level edges from the data.

Discovery is cache-first: a fresh edge store short-circuits inference.
Use --force to invalidate the cache and re-run inference.

Examples:
  ontograph discover
  ontograph discover --force
  ontograph discover --json`,
	Args: cobra.NoArgs,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().BoolVar(&discoverForce, "force", false,
		"Invalidate the cached ontology and re-run inference")
	discoverCmd.Flags().BoolVar(&discoverJSON, "json", false,
		"Output discovered relationships as JSON")
	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	env, err := openEnvironment(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	if discoverForce {
		if err := env.store.Invalidate(ctx); err != nil {
			logger.Warn("cache invalidation failed, continuing with inference", "error", err)
		}
	}

	roles := ontology.DefaultRoleMap().Merge(ontology.RoleMap(config.Roles))
	discovery := ontology.NewDiscovery(env.store, env.ds, ontology.DiscoveryConfig{
		Scope:  config.Scope,
		Roles:  roles,
		Logger: logger.Slog(),
	})

	started := time.Now()
	edges, err := discovery.Discover(ctx)
	if err != nil {
		return fmt.Errorf("discovery: %w", err)
	}

	loader := ontology.NewLoader(env.store, env.ds, logger.Slog())
	bound, err := loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("binding instance edges: %w", err)
	}

	if discoverJSON {
		return printJSON(map[string]any{
			"relationships":  edges,
			"instance_edges": bound,
			"elapsed_ms":     time.Since(started).Milliseconds(),
		})
	}

	fmt.Printf("Discovered %d schema relationships, bound %d instance edges in %s\n",
		len(edges), bound, time.Since(started).Round(time.Millisecond))
	for _, e := range edges {
		fmt.Printf("  %s.%s -[%s]-> %s (%s)\n",
			e.SourceLabel, e.SourceColumn, e.EdgeLabel, e.TargetLabel, e.EdgeType)
	}
	return nil
}
