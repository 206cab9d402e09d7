// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/AleutianAI/ontograph/pkg/datasource"
	"github.com/AleutianAI/ontograph/pkg/graph/facade"
	"github.com/AleutianAI/ontograph/pkg/ontology"
	"github.com/AleutianAI/ontograph/pkg/ontology/badgerstore"
	"github.com/AleutianAI/ontograph/pkg/ontology/sqlitestore"
)

// environment bundles the wired collaborators a command needs.
type environment struct {
	ds     *datasource.SQLite
	store  ontology.EdgeStore
	facade *facade.Facade

	closers []func() error
}

// openEnvironment wires the data source, edge store, and facade from the
// loaded config. Callers must Close().
func openEnvironment(ctx context.Context) (*environment, error) {
	env := &environment{}

	ds, err := datasource.NewSQLite(datasource.SQLiteConfig{
		Path:   config.Database,
		Logger: logger.Slog(),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", config.Database, err)
	}
	env.ds = ds
	env.closers = append(env.closers, ds.Close)

	store, closeStore, err := openStore()
	if err != nil {
		env.Close()
		return nil, err
	}
	env.store = store
	if closeStore != nil {
		env.closers = append(env.closers, closeStore)
	}

	fc, err := facade.New(ctx, facade.Config{
		DataSource: ds,
		Store:      store,
		Workspace:  config.Workspace,
		Logger:     logger.Slog(),
		Metrics:    metrics,
	})
	if err != nil {
		env.Close()
		return nil, err
	}
	env.facade = fc
	return env, nil
}

// openStore opens the configured edge store backend.
func openStore() (ontology.EdgeStore, func() error, error) {
	switch config.StoreBackend {
	case "badger":
		cfg := badgerstore.DefaultConfig()
		cfg.Path = config.StorePath
		cfg.Logger = logger.Slog()
		store, err := badgerstore.Open(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("opening badger store at %s: %w", config.StorePath, err)
		}
		return store, store.Close, nil
	default:
		store, err := sqlitestore.Open(sqlitestore.Config{
			Path:   config.StorePath,
			Logger: logger.Slog(),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite store at %s: %w", config.StorePath, err)
		}
		return store, store.Close, nil
	}
}

// Close releases everything the environment opened, last-in first-out.
func (e *environment) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
	e.closers = nil
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
