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
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}

	assert.True(t, ValidLevel("warn"))
	assert.False(t, ValidLevel("alert"))
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Format: "text"}, NewWriterBackend(&buf, "text"))

	log.Debug("debug message")
	log.Info("info message")
	log.Warn("warn message")
	log.Error("error message")

	out := buf.String()
	assert.NotContains(t, out, "debug message")
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "[warn] warn message")
	assert.Contains(t, out, "[error] error message")
}

func TestLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Component: "bridge"}, NewWriterBackend(&buf, "json"))

	log.Info("listening", Field{Key: "port", Value: 8080})

	var entry Entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry.Level)
	assert.Equal(t, "bridge", entry.Component)
	assert.Equal(t, "listening", entry.Message)
	assert.Equal(t, float64(8080), entry.Fields["port"])
}

func TestLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	parent := New(Config{Level: "debug", Component: "bridge"}, NewWriterBackend(&buf, "text"))

	child := parent.With(
		Field{Key: "component", Value: "listener"},
		Field{Key: "conn", Value: "abc"},
	)
	child.Info("accepted", Field{Key: "remote", Value: "127.0.0.1:5000"})
	parent.Info("parent message")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[listener] accepted conn=abc remote=127.0.0.1:5000")
	assert.Contains(t, lines[1], "[bridge] parent message")
	assert.NotContains(t, lines[1], "conn=")
}

func TestGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Component: "test"}, NewWriterBackend(&buf, "text"))
	defer Close()

	Info("hello", Field{Key: "n", Value: 1})
	Debug("hidden")

	assert.Contains(t, buf.String(), "[test] hello n=1")
	assert.NotContains(t, buf.String(), "hidden")

	require.NoError(t, Close())
	Info("after close")
	assert.NotContains(t, buf.String(), "after close")
}

func TestNopLogger(t *testing.T) {
	log := Nop()
	log.Info("ignored")
	assert.Equal(t, log, log.With(Field{Key: "k", Value: "v"}))
}

func TestFileBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "bridge.log")

	backend, err := NewFileBackend(path, "json")
	require.NoError(t, err)

	require.NoError(t, backend.Write(NewEntry("info", "bridge", "first", nil)))
	require.NoError(t, backend.Close())
	require.NoError(t, backend.Close(), "second close is a no-op")

	assert.Error(t, backend.Write(NewEntry("info", "bridge", "late", nil)))
}

func TestSQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs.db")

	backend, err := NewSQLiteBackend(path, 3)
	require.NoError(t, err)
	defer backend.Close()

	log := New(Config{Level: "debug", Component: "bridge"}, backend)
	for _, msg := range []string{"one", "two", "three", "four", "five"} {
		log.Info(msg, Field{Key: "msg", Value: msg})
	}

	count, err := backend.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, count, "oldest entries are pruned")

	entries, err := backend.Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "five", entries[0].Message)
	assert.Equal(t, "three", entries[2].Message)
	assert.Equal(t, "five", entries[0].Fields["msg"])
}

func TestEntryToText(t *testing.T) {
	entry := &Entry{
		Timestamp: "2025-01-01T00:00:00Z",
		Level:     "info",
		Component: "bridge",
		Message:   "started",
		Fields:    map[string]interface{}{"port": 8080, "addr": "127.0.0.1"},
	}

	assert.Equal(t, "2025-01-01T00:00:00Z [info] [bridge] started addr=127.0.0.1 port=8080", entry.ToText())
}
