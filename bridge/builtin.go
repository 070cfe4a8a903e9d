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

import "context"

// RegisterBuiltins adds the commands every bridge answers regardless of the
// host: ping, echo, list_commands and bridge_status.
func RegisterBuiltins(reg *CommandRegistry, b *Bridge) error {
	builtins := map[string]HandlerFunc{
		"ping": func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
			return map[string]interface{}{"pong": true}, nil
		},
		"echo": func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
			return params, nil
		},
		"list_commands": func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
			return map[string]interface{}{"commands": reg.List()}, nil
		},
		"bridge_status": func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
			return map[string]interface{}{
				"running":      b.Running(),
				"port":         b.Port(),
				"status":       b.Status(),
				"last_command": b.LastCommand(),
			}, nil
		},
	}

	for name, fn := range builtins {
		if err := reg.Register(name, fn); err != nil {
			return err
		}
	}
	return nil
}
