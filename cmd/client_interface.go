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

	"github.com/we-are-mono/hostbridge/bridge"
	"github.com/we-are-mono/hostbridge/client"
)

// ClientInterface defines the interface for talking to a running bridge.
// This interface allows for easy testing by enabling mock implementations.
type ClientInterface interface {
	Send(ctx context.Context, addr string, cmd bridge.Command) (*bridge.Response, error)
}

// realClient wraps client.SendTo to implement ClientInterface.
type realClient struct{}

func (r *realClient) Send(ctx context.Context, addr string, cmd bridge.Command) (*bridge.Response, error) {
	return client.SendTo(ctx, addr, cmd)
}

// defaultClient is the default client used by CLI commands.
// Tests can replace this with a mock implementation.
var defaultClient ClientInterface = &realClient{}
