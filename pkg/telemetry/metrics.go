// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics contains pre-defined metrics for ontograph.
//
// Description:
//
//	Provides standard counters and histograms for relationship discovery,
//	graph materialization, graph queries, and edge-store operations.
//	All metrics use the "ontograph_" prefix for consistent naming.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// --- Discovery Metrics ---

	// DiscoveryRunsTotal counts discovery runs by outcome (cache_hit,
	// inferred, degraded).
	DiscoveryRunsTotal metric.Int64Counter

	// DiscoveryEdgesTotal counts edges produced by discovery runs.
	DiscoveryEdgesTotal metric.Int64Counter

	// DiscoveryDuration records discovery run duration in seconds.
	DiscoveryDuration metric.Float64Histogram

	// --- Graph Metrics ---

	// GraphBuildsTotal counts snapshot materializations by status.
	GraphBuildsTotal metric.Int64Counter

	// GraphBuildDuration records snapshot materialization duration in
	// seconds.
	GraphBuildDuration metric.Float64Histogram

	// GraphQueriesTotal counts graph queries by operation, backend, and
	// status.
	GraphQueriesTotal metric.Int64Counter

	// GraphQueryDuration records graph query duration in seconds.
	GraphQueryDuration metric.Float64Histogram

	// --- Edge Store Metrics ---

	// StoreOpsTotal counts edge-store operations by operation and status.
	StoreOpsTotal metric.Int64Counter

	// StoreOpDuration records edge-store operation duration in seconds.
	StoreOpDuration metric.Float64Histogram

	// --- Backend Metrics ---

	// RemoteFallbacksTotal counts remote-to-in-memory fallbacks at facade
	// construction.
	RemoteFallbacksTotal metric.Int64Counter

	// ErrorsTotal counts errors by kind and component.
	ErrorsTotal metric.Int64Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
//
// Example:
//
//	meter := otel.Meter("ontograph")
//	metrics, err := telemetry.NewMetrics(meter)
//	if err != nil {
//	    return fmt.Errorf("create metrics: %w", err)
//	}
//	metrics.GraphQueriesTotal.Add(ctx, 1, ...)
//
// Thread Safety: Safe for concurrent use after creation.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	// --- Discovery Metrics ---
	m.DiscoveryRunsTotal, err = meter.Int64Counter(
		"ontograph_discovery_runs_total",
		metric.WithDescription("Total relationship discovery runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create discovery_runs_total: %w", err)
	}

	m.DiscoveryEdgesTotal, err = meter.Int64Counter(
		"ontograph_discovery_edges_total",
		metric.WithDescription("Total edges produced by discovery"),
		metric.WithUnit("{edge}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create discovery_edges_total: %w", err)
	}

	m.DiscoveryDuration, err = meter.Float64Histogram(
		"ontograph_discovery_duration_seconds",
		metric.WithDescription("Discovery run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, fmt.Errorf("create discovery_duration: %w", err)
	}

	// --- Graph Metrics ---
	m.GraphBuildsTotal, err = meter.Int64Counter(
		"ontograph_graph_builds_total",
		metric.WithDescription("Total snapshot materializations"),
		metric.WithUnit("{build}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create graph_builds_total: %w", err)
	}

	m.GraphBuildDuration, err = meter.Float64Histogram(
		"ontograph_graph_build_duration_seconds",
		metric.WithDescription("Snapshot materialization duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10),
	)
	if err != nil {
		return nil, fmt.Errorf("create graph_build_duration: %w", err)
	}

	m.GraphQueriesTotal, err = meter.Int64Counter(
		"ontograph_graph_queries_total",
		metric.WithDescription("Total graph queries"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create graph_queries_total: %w", err)
	}

	m.GraphQueryDuration, err = meter.Float64Histogram(
		"ontograph_graph_query_duration_seconds",
		metric.WithDescription("Graph query duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1),
	)
	if err != nil {
		return nil, fmt.Errorf("create graph_query_duration: %w", err)
	}

	// --- Edge Store Metrics ---
	m.StoreOpsTotal, err = meter.Int64Counter(
		"ontograph_store_ops_total",
		metric.WithDescription("Total edge-store operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create store_ops_total: %w", err)
	}

	m.StoreOpDuration, err = meter.Float64Histogram(
		"ontograph_store_op_duration_seconds",
		metric.WithDescription("Edge-store operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1),
	)
	if err != nil {
		return nil, fmt.Errorf("create store_op_duration: %w", err)
	}

	// --- Backend Metrics ---
	m.RemoteFallbacksTotal, err = meter.Int64Counter(
		"ontograph_remote_fallbacks_total",
		metric.WithDescription("Total remote-to-in-memory backend fallbacks"),
		metric.WithUnit("{fallback}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create remote_fallbacks_total: %w", err)
	}

	m.ErrorsTotal, err = meter.Int64Counter(
		"ontograph_errors_total",
		metric.WithDescription("Total errors by kind and component"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create errors_total: %w", err)
	}

	return m, nil
}
