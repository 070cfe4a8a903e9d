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

//go:build integration
// +build integration

package integration

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/we-are-mono/hostbridge/bridge"
	"github.com/we-are-mono/hostbridge/bridge/logger"
	"github.com/we-are-mono/hostbridge/client"
	"github.com/we-are-mono/hostbridge/plugins"
)

// TestHarness runs a bridge on an ephemeral loopback port with freshly built
// plugin binaries.
type TestHarness struct {
	t         *testing.T
	pluginDir string
	registry  *bridge.CommandRegistry
	bridge    *bridge.Bridge
	plugins   *bridge.PluginSet
}

// NewTestHarness builds the sample plugins into a temporary directory.
func NewTestHarness(t *testing.T) *TestHarness {
	t.Helper()

	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("Integration tests need the go toolchain to build plugins")
	}

	h := &TestHarness{
		t:         t,
		pluginDir: t.TempDir(),
		registry:  bridge.NewCommandRegistry(),
		plugins:   &bridge.PluginSet{},
	}
	h.buildPlugin("text")

	h.bridge = bridge.New(h.registry, bridge.WithLogger(logger.Nop()))
	require.NoError(t, bridge.RegisterBuiltins(h.registry, h.bridge))
	return h
}

func moduleRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		require.NotEqual(t, dir, parent, "go.mod not found")
		dir = parent
	}
}

func (h *TestHarness) buildPlugin(name string) {
	h.t.Helper()

	out := filepath.Join(h.pluginDir, "hostbridge-plugin-"+name)
	cmd := exec.Command("go", "build", "-o", out, "./plugins/core/"+name)
	cmd.Dir = moduleRoot(h.t)
	if output, err := cmd.CombinedOutput(); err != nil {
		h.t.Fatalf("Failed to build plugin %s: %v\nOutput: %s", name, err, output)
	}
}

// LoadPlugins queues the named plugins to start on the first enable.
func (h *TestHarness) LoadPlugins(names ...string) {
	pm := plugins.NewPluginManager(h.pluginDir)
	h.registry.OnInitialize(func() error {
		h.plugins = h.registry.LoadPlugins(context.Background(), pm, names, logger.Nop())
		return nil
	})
}

// Start enables the bridge on an ephemeral port.
func (h *TestHarness) Start() {
	h.t.Helper()
	status := h.bridge.Start(true, 0)
	require.True(h.t, strings.HasPrefix(status, "Running on port "), status)
}

// Send delivers one command to the running bridge.
func (h *TestHarness) Send(cmdType string, params map[string]interface{}) *bridge.Response {
	h.t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.SendTo(ctx, h.bridge.Addr().String(), bridge.Command{Type: cmdType, Parameters: params})
	require.NoError(h.t, err)
	return resp
}

// Cleanup stops the bridge and every plugin process.
func (h *TestHarness) Cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h.bridge.Shutdown(ctx)
	h.plugins.Close()
}
