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

package plugins

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
)

// debugEnv enables go-plugin framework logs when set.
const debugEnv = "HOSTBRIDGE_DEBUG"

func logLevel() hclog.Level {
	if os.Getenv(debugEnv) != "" {
		return hclog.Debug
	}
	return hclog.Error
}

// PluginClient owns a running plugin process.
type PluginClient struct {
	client    *plugin.Client
	rpcClient plugin.ClientProtocol
}

// NewPluginClient starts the plugin at pluginPath and connects to it.
func NewPluginClient(pluginPath string) (*PluginClient, error) {
	output := io.Discard
	if os.Getenv(debugEnv) != "" {
		output = os.Stderr
	}

	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]plugin.Plugin{
			pluginKey: &RPCPlugin{},
		},
		Cmd: exec.Command(pluginPath),
		Logger: hclog.New(&hclog.LoggerOptions{
			Name:   "plugin",
			Output: output,
			Level:  logLevel(),
		}),
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolNetRPC},
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("failed to get RPC client: %w", err)
	}

	return &PluginClient{client: client, rpcClient: rpcClient}, nil
}

// Dispense returns the plugin's CommandProvider.
func (c *PluginClient) Dispense() (CommandProvider, error) {
	raw, err := c.rpcClient.Dispense(pluginKey)
	if err != nil {
		return nil, fmt.Errorf("failed to dispense plugin: %w", err)
	}

	provider, ok := raw.(CommandProvider)
	if !ok {
		return nil, fmt.Errorf("dispensed plugin is not a CommandProvider")
	}
	return provider, nil
}

// Close terminates the plugin process.
func (c *PluginClient) Close() error {
	if c.client != nil {
		c.client.Kill()
	}
	return nil
}
