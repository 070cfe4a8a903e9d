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

// Package cmd implements the CLI commands for hostbridge using cobra.
// It provides the root command structure and version management.
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/we-are-mono/hostbridge/client"
)

// Version is the application version string.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

var addrFlag string

var rootCmd = &cobra.Command{
	Use:   "hostbridge",
	Short: "Hostbridge - loopback command bridge",
	Long: `Hostbridge lets an external controller drive a host application.

Commands are single JSON lines sent over a loopback TCP connection; each
connection carries one command and receives one response.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loadEnvFile()
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("Hostbridge v%s (built: %s)\n", Version, BuildTime))
	rootCmd.PersistentFlags().StringVar(&addrFlag, "addr", "", "Bridge address (default $HOSTBRIDGE_ADDR or 127.0.0.1:8080)")
}

// Execute runs the root command and handles any errors.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// SetVersion updates the version and build time for display in help and version output.
func SetVersion(version, buildTime string) {
	Version = version
	BuildTime = buildTime
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("Hostbridge v%s (built: %s)\n", version, buildTime))
}

// loadEnvFile reads .env from the working directory, or the file named by
// HOSTBRIDGE_ENV_FILE. Variables already set in the environment win.
func loadEnvFile() {
	path := os.Getenv("HOSTBRIDGE_ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := godotenv.Load(path); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] Failed to load %s: %v\n", path, err)
	}
}

// resolveAddr returns --addr when given, else the client default.
func resolveAddr() string {
	if addrFlag != "" {
		return addrFlag
	}
	return client.GetAddress()
}
