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

// Package logger provides structured logging for the bridge with pluggable
// output backends.
package logger

import (
	"fmt"
	"os"
	"sync"
)

// Logger is the structured logging interface used across the bridge.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger // child logger with preset fields
}

// Field is a key/value pair attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}

// Backend receives every entry that passes the level filter.
type Backend interface {
	Write(entry *Entry) error
	Close() error
}

// Config holds logger settings.
type Config struct {
	Level     string // debug, info, warn, error
	Format    string // text, json
	Component string // default component name
}

// LogLevel orders log severities.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[LogLevel]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
}

// ParseLevel maps a level name to a LogLevel, defaulting to info.
func ParseLevel(level string) LogLevel {
	for l, name := range levelNames {
		if name == level {
			return l
		}
	}
	return LevelInfo
}

// ValidLevel reports whether level is a known level name.
func ValidLevel(level string) bool {
	for _, name := range levelNames {
		if name == level {
			return true
		}
	}
	return false
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "info"
}

type standardLogger struct {
	level     LogLevel
	backends  []Backend
	component string
	fields    []Field
}

// New creates a logger writing to the given backends.
func New(config Config, backends ...Backend) Logger {
	return &standardLogger{
		level:     ParseLevel(config.Level),
		backends:  backends,
		component: config.Component,
	}
}

func (l *standardLogger) Debug(msg string, fields ...Field) { l.log(LevelDebug, msg, fields) }
func (l *standardLogger) Info(msg string, fields ...Field)  { l.log(LevelInfo, msg, fields) }
func (l *standardLogger) Warn(msg string, fields ...Field)  { l.log(LevelWarn, msg, fields) }
func (l *standardLogger) Error(msg string, fields ...Field) { l.log(LevelError, msg, fields) }

// With returns a child logger. A "component" field replaces the component
// instead of being added to the entry fields.
func (l *standardLogger) With(fields ...Field) Logger {
	child := &standardLogger{
		level:     l.level,
		backends:  l.backends,
		component: l.component,
		fields:    make([]Field, 0, len(l.fields)+len(fields)),
	}
	child.fields = append(child.fields, l.fields...)
	for _, f := range fields {
		if f.Key == "component" {
			if s, ok := f.Value.(string); ok {
				child.component = s
				continue
			}
		}
		child.fields = append(child.fields, f)
	}
	return child
}

func (l *standardLogger) log(level LogLevel, msg string, fields []Field) {
	if level < l.level {
		return
	}

	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for _, f := range l.fields {
		merged[f.Key] = f.Value
	}
	for _, f := range fields {
		merged[f.Key] = f.Value
	}

	entry := NewEntry(level.String(), l.component, msg, merged)
	for _, backend := range l.backends {
		if err := backend.Write(entry); err != nil {
			fmt.Fprintf(os.Stderr, "Logger backend error: %v\n", err)
		}
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...Field)  {}
func (nopLogger) Info(string, ...Field)   {}
func (nopLogger) Warn(string, ...Field)   {}
func (nopLogger) Error(string, ...Field)  {}
func (n nopLogger) With(...Field) Logger { return n }

// Nop returns a logger that discards everything.
func Nop() Logger { return nopLogger{} }

var (
	mu       sync.RWMutex
	std      Logger = nopLogger{}
	backends []Backend
)

// Init installs the process-wide logger used by the package-level functions.
func Init(config Config, b ...Backend) {
	mu.Lock()
	defer mu.Unlock()
	backends = b
	std = New(config, b...)
}

// Close closes all backends installed by Init and resets the global logger.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	var firstErr error
	for _, b := range backends {
		if err := b.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	backends = nil
	std = nopLogger{}
	return firstErr
}

// Default returns the process-wide logger.
func Default() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return std
}

func Debug(msg string, fields ...Field) { Default().Debug(msg, fields...) }
func Info(msg string, fields ...Field)  { Default().Info(msg, fields...) }
func Warn(msg string, fields ...Field)  { Default().Warn(msg, fields...) }
func Error(msg string, fields ...Field) { Default().Error(msg, fields...) }
