// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteConfig configures the embedded SQLite adapter.
type SQLiteConfig struct {
	// Path is the database file path, or ":memory:" for an in-memory
	// database. Required.
	Path string

	// QueryTimeout bounds each statement. Default: 30s.
	QueryTimeout time.Duration

	// Logger for adapter operations. Default: slog.Default().
	Logger *slog.Logger
}

// Validate checks the configuration.
func (c *SQLiteConfig) Validate() error {
	if c.Path == "" {
		return errors.New("path must not be empty")
	}
	if c.QueryTimeout < 0 {
		return errors.New("query_timeout must be non-negative")
	}
	return nil
}

func (c *SQLiteConfig) applyDefaults() {
	if c.QueryTimeout == 0 {
		c.QueryTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// SQLite is a file-backed GraphDataSource adapter. It reports type
// "sqlite", so the facade routes queries to the in-memory engine.
//
// Safe for concurrent use; database/sql pools connections internally.
type SQLite struct {
	db     *sql.DB
	cfg    SQLiteConfig
	logger *slog.Logger
}

// NewSQLite opens (or creates) the database at cfg.Path.
//
// The caller owns the returned adapter and must Close() it.
func NewSQLite(cfg SQLiteConfig) (*SQLite, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("sqlite config: %w", err)
	}
	cfg.applyDefaults()

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	return &SQLite{db: db, cfg: cfg, logger: cfg.Logger}, nil
}

// Close releases the underlying connection pool.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for callers that seed test fixtures.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

// ExecuteQuery runs one statement with positional binding. Failures are
// reported inside the result with a canonical error code.
func (s *SQLite) ExecuteQuery(ctx context.Context, query string, params ...any) *QueryResult {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		s.logger.Warn("sqlite query failed", "error", err)
		return s.failure(err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return s.failure(err)
	}

	result := &QueryResult{
		Success: true,
		Rows:    make([]map[string]any, 0),
		Columns: columns,
	}

	values := make([]any, len(columns))
	scanners := make([]any, len(columns))
	for i := range values {
		scanners[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanners...); err != nil {
			return s.failure(err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return s.failure(err)
	}

	result.RowCount = len(result.Rows)
	result.ExecutionTimeMS = float64(time.Since(start).Microseconds()) / 1000.0
	return result
}

// failure maps driver errors to the canonical code set.
func (s *SQLite) failure(err error) *QueryResult {
	code := CodeSQLError
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sql.ErrConnDone) {
		code = CodeConnectionError
	}
	return Failed(code, err.Error())
}

// GetTables enumerates user tables and views. The scope argument is
// accepted for port compatibility; SQLite has a single schema per file.
func (s *SQLite) GetTables(ctx context.Context, scope string) ([]Table, error) {
	res := s.ExecuteQuery(ctx,
		`SELECT name, type FROM sqlite_master
		 WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
		 ORDER BY name`)
	if !res.Success {
		return nil, fmt.Errorf("enumerate tables: %s", res.Error.Message)
	}

	tables := make([]Table, 0, len(res.Rows))
	for _, row := range res.Rows {
		tables = append(tables, Table{
			Name: asString(row["name"]),
			Type: asString(row["type"]),
		})
	}
	return tables, nil
}

// GetTableStructure returns the column layout via PRAGMA table_info plus
// foreign_key_list.
func (s *SQLite) GetTableStructure(ctx context.Context, scope, table string) (*Table, error) {
	info := s.ExecuteQuery(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, quoteIdent(table)))
	if !info.Success {
		return nil, fmt.Errorf("table structure for %s: %s", table, info.Error.Message)
	}
	if len(info.Rows) == 0 {
		return nil, fmt.Errorf("table %s not found", table)
	}

	// Foreign keys keyed by referencing column name.
	fks := make(map[string]string)
	fkRes := s.ExecuteQuery(ctx, fmt.Sprintf(`PRAGMA foreign_key_list(%s)`, quoteIdent(table)))
	if fkRes.Success {
		for _, row := range fkRes.Rows {
			from := asString(row["from"])
			refTable := asString(row["table"])
			refCol := asString(row["to"])
			if from != "" && refTable != "" {
				if refCol == "" {
					fks[from] = refTable
				} else {
					fks[from] = refTable + "." + refCol
				}
			}
		}
	}

	result := &Table{Name: table, Type: "table", Columns: make([]Column, 0, len(info.Rows))}
	for _, row := range info.Rows {
		name := asString(row["name"])
		result.Columns = append(result.Columns, Column{
			Name:         name,
			DataType:     asString(row["type"]),
			IsNullable:   asInt(row["notnull"]) == 0,
			IsPrimaryKey: asInt(row["pk"]) > 0,
			ForeignKey:   fks[name],
		})
	}
	return result, nil
}

// ConnectionInfo reports the "sqlite" flavor; the facade maps anything
// other than "remote" to the in-memory engine.
func (s *SQLite) ConnectionInfo() ConnectionInfo {
	return ConnectionInfo{
		Type:     "sqlite",
		Database: s.cfg.Path,
	}
}

// normalizeValue converts driver byte slices to strings so rows hold only
// scalar JSON-representable values.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func asInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

// quoteIdent quotes an identifier for interpolation into PRAGMA calls,
// which do not accept positional parameters.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Ensure SQLite implements the port.
var _ GraphDataSource = (*SQLite)(nil)
