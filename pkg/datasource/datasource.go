// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datasource defines the narrow port the graph engines and the
// ontology layer consume for raw data access: parameterized query execution
// and schema enumeration.
//
// The core treats GraphDataSource as a port. Concrete adapters (the
// embedded SQLite adapter in this package, remote-protocol adapters
// elsewhere) own connection handling and timeouts; a timeout surfaces as a
// failed QueryResult, never as a panic or a raw error at the engine
// boundary.
package datasource

import "context"

// Canonical error codes surfaced in QueryResult.Error.Code.
const (
	// CodeSQLError indicates the statement failed at the server.
	CodeSQLError = "SQL_ERROR"

	// CodeConnectionError indicates the backend could not be reached.
	CodeConnectionError = "CONNECTION_ERROR"

	// CodeStorageUnavailable indicates the backing store is down or stale.
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
)

// QueryError describes a failed query.
type QueryError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// QueryResult is the strict result shape for ExecuteQuery.
//
// When Success is false, Rows and Columns are empty and Error is set.
type QueryResult struct {
	Success         bool             `json:"success"`
	Rows            []map[string]any `json:"rows"`
	Columns         []string         `json:"columns"`
	RowCount        int              `json:"row_count"`
	ExecutionTimeMS float64          `json:"execution_time_ms"`
	Error           *QueryError      `json:"error,omitempty"`
}

// Failed builds a failure result with the canonical empty shape.
func Failed(code, message string) *QueryResult {
	return &QueryResult{
		Success: false,
		Rows:    []map[string]any{},
		Columns: []string{},
		Error:   &QueryError{Message: message, Code: code},
	}
}

// Column describes one column of a schema object.
type Column struct {
	Name         string `json:"name"`
	DataType     string `json:"data_type"`
	IsNullable   bool   `json:"is_nullable"`
	IsPrimaryKey bool   `json:"is_primary_key"`

	// ForeignKey is "Table.Column" when the column references another
	// table, empty otherwise.
	ForeignKey string `json:"foreign_key,omitempty"`
}

// Table describes a schema object (table or view) and its columns.
type Table struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Columns []Column `json:"columns,omitempty"`
}

// ConnectionInfo is the data source's self-description. Type is the flavor
// the facade keys backend selection on ("remote" selects the remote
// engine); no runtime feature probing happens.
type ConnectionInfo struct {
	Type     string            `json:"type"`
	Database string            `json:"database,omitempty"`
	Details  map[string]string `json:"details,omitempty"`
}

// GraphDataSource is the port consumed by the remote engine and by the
// relationship-discovery metadata path.
type GraphDataSource interface {
	// ExecuteQuery runs a parameterized statement with positional binding.
	// Failures are reported inside the result (Success=false plus a
	// canonical error code); the method itself never returns an error.
	ExecuteQuery(ctx context.Context, query string, params ...any) *QueryResult

	// GetTables enumerates schema objects in the named scope.
	GetTables(ctx context.Context, scope string) ([]Table, error)

	// GetTableStructure returns the column layout of one table.
	GetTableStructure(ctx context.Context, scope, table string) (*Table, error)

	// ConnectionInfo reports the data source flavor.
	ConnectionInfo() ConnectionInfo
}
