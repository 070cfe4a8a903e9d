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
	"encoding/json"
	"errors"
	"net"
	"net/rpc"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProvider implements CommandProvider for testing
type mockProvider struct {
	metadataFunc func(ctx context.Context) (MetadataResponse, error)
	executeFunc  func(ctx context.Context, command string, paramsJSON []byte) ([]byte, error)
}

func (m *mockProvider) Metadata(ctx context.Context) (MetadataResponse, error) {
	if m.metadataFunc != nil {
		return m.metadataFunc(ctx)
	}
	return MetadataResponse{
		Name:     "test",
		Version:  "1.0.0",
		Commands: []CommandDescriptor{{Name: "test_cmd"}},
	}, nil
}

func (m *mockProvider) Execute(ctx context.Context, command string, paramsJSON []byte) ([]byte, error) {
	if m.executeFunc != nil {
		return m.executeFunc(ctx, command, paramsJSON)
	}
	return []byte(`{"ok":true}`), nil
}

// setupRPCPair creates a connected RPC client and server over an in-memory pipe
func setupRPCPair(t *testing.T, provider CommandProvider) *RPCClient {
	t.Helper()

	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("Plugin", &RPCServer{Impl: provider}))

	clientConn, serverConn := net.Pipe()
	go server.ServeConn(serverConn)

	client := rpc.NewClient(clientConn)
	t.Cleanup(func() { client.Close() })
	return &RPCClient{client: client}
}

func TestRPCClient_Metadata(t *testing.T) {
	tests := []struct {
		name        string
		provider    *mockProvider
		expected    MetadataResponse
		expectError string
	}{
		{
			name: "successful metadata retrieval",
			provider: &mockProvider{
				metadataFunc: func(ctx context.Context) (MetadataResponse, error) {
					return MetadataResponse{
						Name:        "geometry",
						Version:     "2.1.0",
						Description: "Geometry commands",
						Commands: []CommandDescriptor{
							{Name: "add_point", Description: "Add a point"},
							{Name: "clear"},
						},
					}, nil
				},
			},
			expected: MetadataResponse{
				Name:        "geometry",
				Version:     "2.1.0",
				Description: "Geometry commands",
				Commands: []CommandDescriptor{
					{Name: "add_point", Description: "Add a point"},
					{Name: "clear"},
				},
			},
		},
		{
			name: "provider error is propagated",
			provider: &mockProvider{
				metadataFunc: func(ctx context.Context) (MetadataResponse, error) {
					return MetadataResponse{}, errors.New("metadata unavailable")
				},
			},
			expectError: "metadata unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := setupRPCPair(t, tt.provider)

			metadata, err := client.Metadata(context.Background())
			if tt.expectError != "" {
				require.Error(t, err)
				assert.Equal(t, tt.expectError, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, metadata)
		})
	}
}

func TestRPCClient_Execute(t *testing.T) {
	var gotCommand string
	var gotParams map[string]interface{}

	client := setupRPCPair(t, &mockProvider{
		executeFunc: func(ctx context.Context, command string, paramsJSON []byte) ([]byte, error) {
			gotCommand = command
			if err := json.Unmarshal(paramsJSON, &gotParams); err != nil {
				return nil, err
			}
			if command == "fail" {
				return nil, errors.New("command failed")
			}
			return []byte(`{"sum":3}`), nil
		},
	})

	result, err := client.Execute(context.Background(), "add", []byte(`{"a":1,"b":2}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"sum":3}`, string(result))
	assert.Equal(t, "add", gotCommand)
	assert.Equal(t, map[string]interface{}{"a": float64(1), "b": float64(2)}, gotParams)

	_, err = client.Execute(context.Background(), "fail", []byte(`{}`))
	require.Error(t, err)
	assert.Equal(t, "command failed", err.Error())
}

func TestRPCClient_ExecuteContextCancelled(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	client := setupRPCPair(t, &mockProvider{
		executeFunc: func(ctx context.Context, command string, paramsJSON []byte) ([]byte, error) {
			<-release
			return []byte(`{}`), nil
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Execute(ctx, "slow", []byte(`{}`))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestErrFromString(t *testing.T) {
	assert.NoError(t, ErrFromString(""))

	err := ErrFromString("boom")
	require.Error(t, err)
	assert.Equal(t, "boom", err.Error())
}

func TestRPCPlugin_ServerAndClient(t *testing.T) {
	impl := &mockProvider{}
	p := &RPCPlugin{Impl: impl}

	server, err := p.Server(nil)
	require.NoError(t, err)
	rpcServer, ok := server.(*RPCServer)
	require.True(t, ok)
	assert.Same(t, impl, rpcServer.Impl)

	client, err := p.Client(nil, nil)
	require.NoError(t, err)
	_, ok = client.(CommandProvider)
	assert.True(t, ok)
}
