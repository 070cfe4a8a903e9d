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
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/we-are-mono/hostbridge/bridge"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show bridge status",
	Long:  `Asks a running bridge for its status and the last command it received.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	resp, err := sendCommand(bridge.Command{Type: "bridge_status"})
	if err != nil {
		fmt.Fprintf(out, "[DOWN] Bridge:       Not reachable at %s\n", resolveAddr())
		return err
	}
	if !resp.Success {
		return errors.New(resp.Error)
	}

	printStatus(out, resp.Result)
	return nil
}

func printStatus(out io.Writer, data map[string]interface{}) {
	fmt.Fprintln(out, "Hostbridge Command Bridge")
	fmt.Fprintln(out, "=========================")
	fmt.Fprintln(out)

	running, _ := data["running"].(bool) //nolint:errcheck // Default to false if not present
	if running {
		fmt.Fprintf(out, "[OK] Bridge:         %v\n", data["status"])
	} else {
		fmt.Fprintf(out, "[DOWN] Bridge:       %v\n", data["status"])
	}
	if port, ok := data["port"].(float64); ok {
		fmt.Fprintf(out, "  Port:             %d\n", int(port))
	}
	if last, ok := data["last_command"].(string); ok {
		fmt.Fprintf(out, "  Last command:     %s\n", last)
	}
}
