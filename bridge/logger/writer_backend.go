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
	"fmt"
	"io"
	"sync"
)

// WriterBackend writes one line per entry to an io.Writer such as os.Stderr
// or a bytes.Buffer in tests.
type WriterBackend struct {
	w      io.Writer
	format string // "json" or "text"
	mu     sync.Mutex
}

// NewWriterBackend creates a backend writing to w.
func NewWriterBackend(w io.Writer, format string) *WriterBackend {
	return &WriterBackend{w: w, format: format}
}

func (b *WriterBackend) Write(entry *Entry) error {
	line, err := entry.Render(b.format)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := io.WriteString(b.w, line+"\n"); err != nil {
		return fmt.Errorf("failed to write log entry: %w", err)
	}
	return nil
}

// Close is a no-op; the writer is owned by the caller.
func (b *WriterBackend) Close() error {
	return nil
}
