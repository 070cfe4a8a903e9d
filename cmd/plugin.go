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
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/we-are-mono/hostbridge/config"
	"github.com/we-are-mono/hostbridge/plugins"
)

var pluginCmd = &cobra.Command{
	Use:   "plugin",
	Short: "Inspect command provider plugins",
	Long:  `List installed command provider plugins and show the commands they contribute.`,
}

var pluginListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all installed plugins",
	Long:  `List all installed plugins and whether bridge.json enables them.`,
	RunE:  runPluginList,
}

var pluginInfoCmd = &cobra.Command{
	Use:   "info <plugin>",
	Short: "Show detailed information about a plugin",
	Long:  `Starts the plugin and prints its metadata and the commands it provides.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runPluginInfo,
}

func init() {
	pluginCmd.AddCommand(pluginListCmd)
	pluginCmd.AddCommand(pluginInfoCmd)
	rootCmd.AddCommand(pluginCmd)
}

// pluginSettings returns the manager and enabled set from bridge.json,
// falling back to defaults when the file cannot be loaded.
func pluginSettings() (*plugins.PluginManager, map[string]bool) {
	cfg, err := config.Load()
	if err != nil {
		cfg = config.Default()
	}
	enabled := make(map[string]bool, len(cfg.Plugins))
	for _, name := range cfg.Plugins {
		enabled[name] = true
	}
	return plugins.NewPluginManager(cfg.PluginDirs...), enabled
}

func runPluginList(cmd *cobra.Command, args []string) error {
	pm, enabled := pluginSettings()
	return listPlugins(cmd.OutOrStdout(), pm, enabled)
}

func listPlugins(out io.Writer, pm *plugins.PluginManager, enabled map[string]bool) error {
	names, err := pm.ListPlugins()
	if err != nil {
		return fmt.Errorf("failed to list plugins: %w", err)
	}

	if len(names) == 0 {
		fmt.Fprintln(out, "No plugins found")
		return nil
	}

	fmt.Fprintln(out, "Installed plugins:")
	for _, name := range names {
		path, err := pm.FindPlugin(name)
		if err != nil {
			fmt.Fprintf(out, "  %s - [ERROR: %v]\n", name, err)
			continue
		}

		status := "disabled"
		if enabled[name] {
			status = "enabled"
		}
		fmt.Fprintf(out, "  %s [%s] - %s\n", name, status, path)
	}
	return nil
}

func runPluginInfo(cmd *cobra.Command, args []string) error {
	pm, enabled := pluginSettings()
	return pluginInfo(cmd.OutOrStdout(), pm, args[0], enabled[args[0]])
}

func pluginInfo(out io.Writer, pm *plugins.PluginManager, name string, enabled bool) error {
	path, err := pm.FindPlugin(name)
	if err != nil {
		return fmt.Errorf("plugin '%s' not found: %w", name, err)
	}

	fmt.Fprintf(out, "Plugin: %s\n", name)
	fmt.Fprintf(out, "Path: %s\n", path)
	if enabled {
		fmt.Fprintln(out, "Status: enabled")
	} else {
		fmt.Fprintln(out, "Status: disabled")
	}

	client, err := plugins.NewPluginClient(path)
	if err != nil {
		fmt.Fprintf(out, "Metadata: ERROR - failed to start plugin: %v\n", err)
		return nil
	}
	defer client.Close()

	provider, err := client.Dispense()
	if err != nil {
		fmt.Fprintf(out, "Metadata: ERROR - failed to dispense plugin: %v\n", err)
		return nil
	}

	metadata, err := provider.Metadata(context.Background())
	if err != nil {
		fmt.Fprintf(out, "Metadata: ERROR - %v\n", err)
		return nil
	}

	fmt.Fprintf(out, "Name: %s\n", metadata.Name)
	fmt.Fprintf(out, "Version: %s\n", metadata.Version)
	fmt.Fprintf(out, "Description: %s\n", metadata.Description)
	if len(metadata.Commands) > 0 {
		fmt.Fprintln(out, "Commands:")
		for _, c := range metadata.Commands {
			fmt.Fprintf(out, "  %-16s %s\n", c.Name, c.Description)
		}
	}
	return nil
}
