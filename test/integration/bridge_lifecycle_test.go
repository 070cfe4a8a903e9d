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
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/we-are-mono/hostbridge/bridge"
	"github.com/we-are-mono/hostbridge/client"
)

// TestBridgeLifecycle covers enable, disable and re-enable with plugins loaded once
func TestBridgeLifecycle(t *testing.T) {
	harness := NewTestHarness(t)
	defer harness.Cleanup()

	harness.LoadPlugins("text")
	harness.Start()
	addr := harness.bridge.Addr().String()

	assert.Equal(t, "Stopped", harness.bridge.Start(false, 0))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := client.SendTo(ctx, addr, bridge.Command{Type: "ping"})
	assert.Error(t, err, "disabled bridge refuses connections")

	harness.Start()
	assert.Equal(t, 1, harness.plugins.Len(), "plugins start only once")

	resp := harness.Send("text_reverse", map[string]interface{}{"text": "abc"})
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, "cba", resp.Result["text"])

	resp = harness.Send("bridge_status", nil)
	require.True(t, resp.Success, resp.Error)
	assert.True(t, strings.HasPrefix(resp.Result["status"].(string), "Running on port "))
	assert.Equal(t, `{"type":"bridge_status","parameters":{}}`, resp.Result["last_command"])
}
