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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/we-are-mono/hostbridge/bridge"
)

var sendTimeout time.Duration

var sendCmd = &cobra.Command{
	Use:   "send <type> [parameters-json]",
	Short: "Send one command to the bridge",
	Long: `Sends a single command and prints the response.

Example:
  hostbridge send ping
  hostbridge send echo '{"message":"hello"}'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 10*time.Second, "Time to wait for the response")
}

func runSend(cmd *cobra.Command, args []string) error {
	command := bridge.Command{Type: args[0]}
	if len(args) == 2 {
		if err := json.Unmarshal([]byte(args[1]), &command.Parameters); err != nil {
			return fmt.Errorf("parameters must be a JSON object: %w", err)
		}
	}

	resp, err := sendCommand(command)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format response: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if !resp.Success {
		cmd.SilenceUsage = true
		return errors.New(resp.Error)
	}
	return nil
}

// sendCommand delivers one command through defaultClient.
func sendCommand(command bridge.Command) (*bridge.Response, error) {
	timeout := sendTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return defaultClient.Send(ctx, resolveAddr(), command)
}
