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
	"os/exec"
	"strings"
)

// JournaldBackend forwards entries to the systemd journal through systemd-cat.
type JournaldBackend struct {
	tag    string
	format string
}

// NewJournaldBackend fails when systemd-cat is not installed.
func NewJournaldBackend(tag, format string) (*JournaldBackend, error) {
	if _, err := exec.LookPath("systemd-cat"); err != nil {
		return nil, fmt.Errorf("systemd-cat not found: %w", err)
	}
	return &JournaldBackend{tag: tag, format: format}, nil
}

// journalPriority maps a level to a syslog priority.
func journalPriority(level string) string {
	switch level {
	case "debug":
		return "7"
	case "warn":
		return "4"
	case "error":
		return "3"
	default:
		return "6"
	}
}

func (b *JournaldBackend) Write(entry *Entry) error {
	line, err := entry.Render(b.format)
	if err != nil {
		return err
	}

	cmd := exec.Command("systemd-cat", "-t", b.tag, "-p", journalPriority(entry.Level))
	cmd.Stdin = strings.NewReader(line)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to write to journal: %w", err)
	}
	return nil
}

func (b *JournaldBackend) Close() error {
	return nil
}
