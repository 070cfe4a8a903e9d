// Copyright (C) 2025 Mono Technologies Inc.
//
// This program is free software; you can redistribute it and/or
// modify it under the terms of the GNU General Public License
// as published by the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.

package logger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

const logsSchema = `
	CREATE TABLE IF NOT EXISTS logs (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp  TEXT NOT NULL,
		level      TEXT NOT NULL,
		component  TEXT NOT NULL,
		message    TEXT NOT NULL,
		fields     TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON logs(timestamp);
	CREATE INDEX IF NOT EXISTS idx_logs_level ON logs(level);
`

// SQLiteBackend stores entries in a "logs" table. When maxEntries is positive
// the oldest rows are pruned after each insert.
type SQLiteBackend struct {
	db         *sql.DB
	maxEntries int
	mu         sync.Mutex
}

// NewSQLiteBackend opens (or creates) the database at path.
func NewSQLiteBackend(path string, maxEntries int) (*SQLiteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers and keeps the file lock simple.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(logsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create logs table: %w", err)
	}

	return &SQLiteBackend{db: db, maxEntries: maxEntries}, nil
}

func (b *SQLiteBackend) Write(entry *Entry) error {
	fields, err := json.Marshal(entry.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal log fields: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	_, err = b.db.Exec(`INSERT INTO logs (timestamp, level, component, message, fields) VALUES (?, ?, ?, ?, ?)`,
		entry.Timestamp, entry.Level, entry.Component, entry.Message, string(fields))
	if err != nil {
		return fmt.Errorf("failed to insert log: %w", err)
	}

	if b.maxEntries > 0 {
		_, err = b.db.Exec(`DELETE FROM logs WHERE id <= (SELECT MAX(id) FROM logs) - ?`, b.maxEntries)
		if err != nil {
			return fmt.Errorf("failed to prune logs: %w", err)
		}
	}
	return nil
}

// Count returns the number of stored entries.
func (b *SQLiteBackend) Count() (int, error) {
	var n int
	if err := b.db.QueryRow(`SELECT COUNT(*) FROM logs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count logs: %w", err)
	}
	return n, nil
}

// Recent returns up to limit entries, newest first.
func (b *SQLiteBackend) Recent(limit int) ([]*Entry, error) {
	rows, err := b.db.Query(`SELECT timestamp, level, component, message, fields FROM logs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var fields sql.NullString
		if err := rows.Scan(&e.Timestamp, &e.Level, &e.Component, &e.Message, &fields); err != nil {
			return nil, fmt.Errorf("failed to scan log row: %w", err)
		}
		e.Fields = make(map[string]interface{})
		if fields.Valid && fields.String != "" {
			if err := json.Unmarshal([]byte(fields.String), &e.Fields); err != nil {
				return nil, fmt.Errorf("failed to decode log fields: %w", err)
			}
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
