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
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/ontograph/pkg/logging"
	"github.com/AleutianAI/ontograph/pkg/telemetry"
)

// Config is the YAML configuration for the CLI.
type Config struct {
	// Database is the path to the SQLite database holding the source
	// tables.
	Database string `yaml:"database"`

	// StorePath is where the ontology edge store lives. For the sqlite
	// backend this is a database file; for badger, a directory.
	StorePath string `yaml:"store_path"`

	// StoreBackend selects the edge store implementation: "sqlite"
	// (default) or "badger".
	StoreBackend string `yaml:"store_backend"`

	// Workspace names the remote graph workspace (remote sources only).
	Workspace string `yaml:"workspace"`

	// Scope is the schema scope used for discovery metadata. Default:
	// "main" (the SQLite main schema).
	Scope string `yaml:"scope"`

	// Roles overrides or extends the built-in role-to-entity mapping.
	Roles map[string]string `yaml:"roles"`

	// Log configures structured logging.
	Log struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
		JSON  bool   `yaml:"json"`
		Quiet bool   `yaml:"quiet"`
	} `yaml:"log"`

	// Telemetry configures metrics. MetricExporter defaults to "none"
	// for the CLI; set "prometheus" for scraping setups.
	Telemetry telemetry.Config `yaml:"telemetry"`
}

func (c *Config) applyDefaults() {
	if c.StoreBackend == "" {
		c.StoreBackend = "sqlite"
	}
	if c.Scope == "" {
		c.Scope = "main"
	}
	if c.StorePath == "" {
		c.StorePath = "ontograph_edges.db"
	}
	if c.Telemetry.MetricExporter == "" {
		c.Telemetry.MetricExporter = "none"
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "ontograph"
	}
}

func (c *Config) validate() error {
	if c.Database == "" {
		return fmt.Errorf("config: database path is required")
	}
	switch c.StoreBackend {
	case "sqlite", "badger":
	default:
		return fmt.Errorf("config: unknown store_backend %q (want sqlite or badger)", c.StoreBackend)
	}
	return nil
}

func (c *Config) logLevel() logging.Level {
	switch c.Log.Level {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

var (
	config     Config
	configPath string
	logger     *logging.Logger

	telemetryShutdown func(context.Context) error

	// metrics is nil when the metric exporter is disabled.
	metrics *telemetry.Metrics
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "ontograph.yaml",
		"Path to the YAML configuration file")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("reading %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return fmt.Errorf("parsing %s: %w", configPath, err)
		}
		config.applyDefaults()
		if err := config.validate(); err != nil {
			return err
		}

		logger = logging.New(logging.Config{
			Level:   config.logLevel(),
			LogDir:  config.Log.Dir,
			Service: "cli",
			JSON:    config.Log.JSON,
			Quiet:   config.Log.Quiet,
		})

		if config.Telemetry.MetricExporter != "none" {
			shutdown, err := telemetry.Init(cmd.Context(), config.Telemetry)
			if err != nil {
				return fmt.Errorf("init telemetry: %w", err)
			}
			telemetryShutdown = shutdown

			m, err := telemetry.NewMetrics(otel.Meter("ontograph"))
			if err != nil {
				return fmt.Errorf("create metrics: %w", err)
			}
			metrics = m
		}
		return nil
	}

	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if telemetryShutdown != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := telemetryShutdown(ctx); err != nil {
				logger.Warn("telemetry shutdown failed", "error", err)
			}
		}
		if logger != nil {
			_ = logger.Close()
		}
	}
}
