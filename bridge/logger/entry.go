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
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Entry is a single structured log record.
type Entry struct {
	Timestamp string                 `json:"timestamp"` // RFC3339
	Level     string                 `json:"level"`
	Component string                 `json:"component"` // bridge, listener, plugin, ...
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
}

// NewEntry creates an entry stamped with the current UTC time.
func NewEntry(level, component, message string, fields map[string]interface{}) *Entry {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	return &Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level,
		Component: component,
		Message:   message,
		Fields:    fields,
	}
}

// ToJSON encodes the entry as JSON.
func (e *Entry) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ToText renders the entry as a single human-readable line with fields
// sorted by key.
func (e *Entry) ToText() string {
	var b strings.Builder
	b.WriteString(e.Timestamp)
	b.WriteString(" [" + e.Level + "]")
	if e.Component != "" {
		b.WriteString(" [" + e.Component + "]")
	}
	b.WriteString(" " + e.Message)

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(" " + k + "=" + fieldString(e.Fields[k]))
	}
	return b.String()
}

// Render formats the entry as "json" or text, without a trailing newline.
func (e *Entry) Render(format string) (string, error) {
	if format != "json" {
		return e.ToText(), nil
	}
	data, err := e.ToJSON()
	if err != nil {
		return "", fmt.Errorf("failed to marshal log entry: %w", err)
	}
	return string(data), nil
}

func fieldString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case error:
		return val.Error()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
