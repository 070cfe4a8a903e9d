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

package cmd

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
	"github.com/we-are-mono/hostbridge/bridge/logger"
	"github.com/we-are-mono/hostbridge/config"
)

var (
	logsFollow bool
	logsLines  int
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show hostbridge logs",
	Long: `Display recent log entries. Reads the sqlite log database when that
output is configured, otherwise journalctl (systemd) or tail on the log file.`,
	RunE: runLogs,
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output in real-time (journal and file only)")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 100, "Number of lines to show")
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		cfg = config.Default()
	}

	if !logsFollow && hasOutput(cfg.Logging, "sqlite") {
		if _, err := os.Stat(cfg.Logging.Database); err == nil {
			return printDatabaseLogs(cmd.OutOrStdout(), cfg.Logging.Database, logsLines, cfg.Logging.Format)
		}
	}

	if _, err := exec.LookPath("journalctl"); err == nil && hasOutput(cfg.Logging, "journald") {
		return runExternal(journalctlArgs(logsFollow, logsLines))
	}

	if _, err := os.Stat(cfg.Logging.File); os.IsNotExist(err) {
		return fmt.Errorf("log file not found: %s", cfg.Logging.File)
	}
	return runExternal(tailArgs(cfg.Logging.File, logsFollow, logsLines))
}

func hasOutput(cfg config.LoggingConfig, output string) bool {
	for _, out := range cfg.Outputs {
		if out == output {
			return true
		}
	}
	return false
}

// printDatabaseLogs prints the newest limit entries, oldest first.
func printDatabaseLogs(out io.Writer, path string, limit int, format string) error {
	db, err := logger.NewSQLiteBackend(path, 0)
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := db.Recent(limit)
	if err != nil {
		return fmt.Errorf("failed to read logs: %w", err)
	}

	for i := len(entries) - 1; i >= 0; i-- {
		line, err := entries[i].Render(format)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

func journalctlArgs(follow bool, lines int) []string {
	args := []string{"journalctl", "-t", "hostbridge"}
	if follow {
		args = append(args, "-f")
	} else {
		args = append(args, "--no-pager")
		if lines > 0 {
			args = append(args, "-n", fmt.Sprintf("%d", lines))
		}
	}
	return args
}

func tailArgs(file string, follow bool, lines int) []string {
	args := []string{"tail"}
	if follow {
		args = append(args, "-f")
	}
	if lines > 0 {
		args = append(args, "-n", fmt.Sprintf("%d", lines))
	}
	return append(args, file)
}

func runExternal(argv []string) error {
	execCmd := exec.Command(argv[0], argv[1:]...) //nolint:gosec // argv built from fixed binaries and validated flags
	execCmd.Stdout = os.Stdout
	execCmd.Stderr = os.Stderr
	execCmd.Stdin = os.Stdin
	if err := execCmd.Run(); err != nil {
		return fmt.Errorf("failed to run %s: %w", argv[0], err)
	}
	return nil
}
