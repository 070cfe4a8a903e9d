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

package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/we-are-mono/hostbridge/bridge/logger"
	"github.com/we-are-mono/hostbridge/plugins"
)

// RegisterProvider registers every command declared by provider. Either all
// of them are registered or none are. It returns the registered types.
func (r *CommandRegistry) RegisterProvider(ctx context.Context, provider plugins.CommandProvider) ([]string, error) {
	metadata, err := provider.Metadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read plugin metadata: %w", err)
	}

	var registered []string
	for _, desc := range metadata.Commands {
		if err := r.Register(desc.Name, providerHandler(metadata.Name, desc.Name, provider)); err != nil {
			for _, name := range registered {
				r.Unregister(name)
			}
			return nil, fmt.Errorf("plugin %s: %w", metadata.Name, err)
		}
		registered = append(registered, desc.Name)
	}
	return registered, nil
}

func providerHandler(pluginName, command string, provider plugins.CommandProvider) HandlerFunc {
	return func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
		paramsJSON, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to encode parameters: %w", err)
		}

		out, err := provider.Execute(ctx, command, paramsJSON)
		if err != nil {
			return nil, err
		}

		var result map[string]interface{}
		if len(out) > 0 {
			if err := json.Unmarshal(out, &result); err != nil {
				return nil, fmt.Errorf("plugin %s returned an invalid result: %w", pluginName, err)
			}
		}
		return result, nil
	}
}

// PluginSet tracks the plugin processes started for a registry.
type PluginSet struct {
	clients []*plugins.PluginClient
}

// LoadPlugins starts each named plugin found by pm and registers its
// commands. A plugin that fails to start or register is skipped with a
// warning; the others still load.
func (r *CommandRegistry) LoadPlugins(ctx context.Context, pm *plugins.PluginManager, names []string, log logger.Logger) *PluginSet {
	set := &PluginSet{}
	for _, name := range names {
		if err := set.load(ctx, r, pm, name, log); err != nil {
			log.Warn("Failed to load plugin",
				logger.Field{Key: "plugin", Value: name},
				logger.Field{Key: "error", Value: err.Error()})
		}
	}
	return set
}

func (s *PluginSet) load(ctx context.Context, r *CommandRegistry, pm *plugins.PluginManager, name string, log logger.Logger) error {
	path, err := pm.FindPlugin(name)
	if err != nil {
		return err
	}

	client, err := plugins.NewPluginClient(path)
	if err != nil {
		return err
	}
	provider, err := client.Dispense()
	if err != nil {
		client.Close()
		return err
	}

	commands, err := r.RegisterProvider(ctx, provider)
	if err != nil {
		client.Close()
		return err
	}

	s.clients = append(s.clients, client)
	log.Info("Plugin loaded",
		logger.Field{Key: "plugin", Value: name},
		logger.Field{Key: "commands", Value: commands})
	return nil
}

// Len returns the number of running plugins.
func (s *PluginSet) Len() int {
	return len(s.clients)
}

// Close stops every plugin process.
func (s *PluginSet) Close() {
	for _, c := range s.clients {
		c.Close()
	}
	s.clients = nil
}
