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
	"context"
	"net/rpc"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
)

// Handshake is used to verify that the bridge and a plugin are compatible.
var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "HOSTBRIDGE_PLUGIN",
	MagicCookieValue: "commands",
}

// pluginKey names the single plugin type served over the connection.
const pluginKey = "commands"

// CommandProvider is implemented by plugins that contribute commands.
// Parameters and results travel as JSON objects.
type CommandProvider interface {
	// Metadata describes the plugin and the commands it provides.
	Metadata(ctx context.Context) (MetadataResponse, error)

	// Execute runs command with JSON-encoded parameters and returns a
	// JSON-encoded result object.
	Execute(ctx context.Context, command string, paramsJSON []byte) ([]byte, error)
}

// CommandDescriptor describes one provided command.
type CommandDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// MetadataResponse contains plugin metadata.
type MetadataResponse struct {
	Name        string              `json:"name"`
	Version     string              `json:"version"`
	Description string              `json:"description"`
	Commands    []CommandDescriptor `json:"commands"`
}

// RPCPlugin is the go-plugin Plugin implementation.
type RPCPlugin struct {
	plugin.Plugin
	Impl CommandProvider
}

func (p *RPCPlugin) Server(broker *plugin.MuxBroker) (interface{}, error) {
	return &RPCServer{Impl: p.Impl}, nil
}

func (p *RPCPlugin) Client(broker *plugin.MuxBroker, client *rpc.Client) (interface{}, error) {
	return &RPCClient{client: client}, nil
}

// RPCServer exposes a CommandProvider over net/rpc. Provider errors are sent
// back in the reply so the call itself succeeds.
type RPCServer struct {
	Impl CommandProvider
}

type MetadataArgs struct{}
type MetadataReply struct {
	Error    string
	Metadata MetadataResponse
}

func (s *RPCServer) Metadata(args *MetadataArgs, reply *MetadataReply) error {
	metadata, err := s.Impl.Metadata(context.Background())
	if err != nil {
		reply.Error = err.Error()
		return nil
	}
	reply.Metadata = metadata
	return nil
}

type ExecuteArgs struct {
	Command    string
	ParamsJSON []byte
}
type ExecuteReply struct {
	Error      string
	ResultJSON []byte
}

func (s *RPCServer) Execute(args *ExecuteArgs, reply *ExecuteReply) error {
	result, err := s.Impl.Execute(context.Background(), args.Command, args.ParamsJSON)
	if err != nil {
		reply.Error = err.Error()
		return nil
	}
	reply.ResultJSON = result
	return nil
}

// RPCClient implements CommandProvider on the bridge side.
type RPCClient struct {
	client *rpc.Client
}

// call runs an RPC and gives up waiting when ctx is done. The plugin keeps
// running the request; only the caller stops waiting.
func (c *RPCClient) call(ctx context.Context, method string, args, reply interface{}) error {
	pending := c.client.Go(method, args, reply, make(chan *rpc.Call, 1))
	select {
	case <-pending.Done:
		return pending.Error
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *RPCClient) Metadata(ctx context.Context) (MetadataResponse, error) {
	var reply MetadataReply
	if err := c.call(ctx, "Plugin.Metadata", &MetadataArgs{}, &reply); err != nil {
		return MetadataResponse{}, err
	}
	if reply.Error != "" {
		return MetadataResponse{}, ErrFromString(reply.Error)
	}
	return reply.Metadata, nil
}

func (c *RPCClient) Execute(ctx context.Context, command string, paramsJSON []byte) ([]byte, error) {
	var reply ExecuteReply
	args := &ExecuteArgs{Command: command, ParamsJSON: paramsJSON}
	if err := c.call(ctx, "Plugin.Execute", args, &reply); err != nil {
		return nil, err
	}
	if reply.Error != "" {
		return nil, ErrFromString(reply.Error)
	}
	return reply.ResultJSON, nil
}

// ErrFromString rebuilds an error sent across RPC as a string.
func ErrFromString(s string) error {
	if s == "" {
		return nil
	}
	return &rpcError{msg: s}
}

type rpcError struct {
	msg string
}

func (e *rpcError) Error() string {
	return e.msg
}

// ServePlugin serves impl from a plugin executable's main. stdout carries the
// go-plugin handshake, so logs go to stderr.
func ServePlugin(impl CommandProvider) {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]plugin.Plugin{
			pluginKey: &RPCPlugin{Impl: impl},
		},
		Logger: hclog.New(&hclog.LoggerOptions{
			Name:   "hostbridge-plugin",
			Output: os.Stderr,
			Level:  logLevel(),
		}),
	})
}
