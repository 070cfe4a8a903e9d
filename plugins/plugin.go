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

// Package plugins lets separate processes contribute bridge commands through
// Hashicorp's go-plugin framework.
package plugins

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// binaryPrefix is prepended to a plugin name to form its executable name.
const binaryPrefix = "hostbridge-plugin-"

// PluginManager locates plugin executables on disk.
type PluginManager struct {
	pluginDirs []string
}

// NewPluginManager creates a manager searching dirs in order. Without dirs it
// searches ./bin, /usr/lib/hostbridge/plugins and /opt/hostbridge/plugins.
func NewPluginManager(dirs ...string) *PluginManager {
	if len(dirs) == 0 {
		dirs = []string{
			"./bin",                       // local development
			"/usr/lib/hostbridge/plugins", // system installation
			"/opt/hostbridge/plugins",
		}
	}
	return &PluginManager{pluginDirs: dirs}
}

// Dirs returns the search directories.
func (pm *PluginManager) Dirs() []string {
	return append([]string(nil), pm.pluginDirs...)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode().Perm()&0111 != 0
}

// FindPlugin returns the path of the first executable named
// hostbridge-plugin-<name> in the search directories.
func (pm *PluginManager) FindPlugin(name string) (string, error) {
	for _, dir := range pm.pluginDirs {
		path := filepath.Join(dir, binaryPrefix+name)
		if isExecutable(path) {
			return path, nil
		}
	}
	return "", fmt.Errorf("plugin not found: %s", name)
}

// ListPlugins returns the sorted, de-duplicated names of all plugins found.
func (pm *PluginManager) ListPlugins() ([]string, error) {
	seen := make(map[string]bool)

	for _, dir := range pm.pluginDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue // directory might not exist
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasPrefix(name, binaryPrefix) {
				continue
			}
			if isExecutable(filepath.Join(dir, name)) {
				seen[strings.TrimPrefix(name, binaryPrefix)] = true
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
