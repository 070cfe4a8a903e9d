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
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunningBridge(t *testing.T) (*Bridge, *CommandRegistry) {
	t.Helper()

	reg := NewCommandRegistry()
	b := New(reg, WithLogger(nopLog()))
	require.NoError(t, RegisterBuiltins(reg, b))

	status := b.Start(true, 0)
	require.True(t, strings.HasPrefix(status, "Running on port "), status)
	t.Cleanup(func() { b.Stop() })
	return b, reg
}

// roundTrip opens one connection, sends payload and returns everything the
// bridge wrote back.
func roundTrip(t *testing.T, addr net.Addr, payload string) string {
	t.Helper()

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = io.WriteString(conn, payload)
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	out, err := io.ReadAll(conn)
	require.NoError(t, err)
	return string(out)
}

func TestBridge_Defaults(t *testing.T) {
	b := New(NewCommandRegistry(), WithLogger(nopLog()))
	assert.False(t, b.Running())
	assert.Equal(t, DefaultPort, b.Port())
	assert.Equal(t, "Stopped", b.Status())
	assert.Equal(t, "None", b.LastCommand())
	assert.Nil(t, b.Addr())

	b = New(NewCommandRegistry(), WithLogger(nopLog()), WithPort(9000))
	assert.Equal(t, 9000, b.Port())
}

func TestBridge_Commands(t *testing.T) {
	b, _ := newRunningBridge(t)

	tests := []struct {
		name     string
		payload  string
		expected string
	}{
		{
			name:     "ping",
			payload:  "{\"type\":\"ping\"}\n",
			expected: "{\"success\":true,\"result\":{\"pong\":true}}\n",
		},
		{
			name:     "echo",
			payload:  "{\"type\":\"echo\",\"parameters\":{\"name\":\"Cube\",\"size\":2}}\n",
			expected: "{\"success\":true,\"result\":{\"name\":\"Cube\",\"size\":2}}\n",
		},
		{
			name:     "unknown",
			payload:  "{\"type\":\"unknown\"}\n",
			expected: "{\"success\":false,\"error\":\"Unknown command: unknown\"}\n",
		},
		{
			name:     "empty line",
			payload:  "\n",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, roundTrip(t, b.Addr(), tt.payload))
		})
	}
}

func TestBridge_MalformedCommand(t *testing.T) {
	b, _ := newRunningBridge(t)

	resp, err := DecodeResponse(roundTrip(t, b.Addr(), "{\"type\":\n"))
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.True(t, strings.HasPrefix(resp.Error, "malformed command"), resp.Error)

	// The bridge keeps serving.
	assert.Equal(t, "{\"success\":true,\"result\":{\"pong\":true}}\n", roundTrip(t, b.Addr(), "{\"type\":\"ping\"}\n"))
}

func TestBridge_LastCommand(t *testing.T) {
	b, _ := newRunningBridge(t)
	assert.Equal(t, "None", b.LastCommand())

	roundTrip(t, b.Addr(), "{\"type\":\"ping\"}\n")
	assert.Equal(t, `{"type":"ping"}`, b.LastCommand())

	roundTrip(t, b.Addr(), "\n")
	assert.Equal(t, `{"type":"ping"}`, b.LastCommand(), "empty lines are not recorded")

	roundTrip(t, b.Addr(), "garbage\n")
	assert.Equal(t, "garbage", b.LastCommand())
}

func TestBridge_ConcurrentClients(t *testing.T) {
	b, _ := newRunningBridge(t)

	const clients = 20
	var wg sync.WaitGroup
	results := make([]string, clients)
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn, err := net.Dial("tcp", b.Addr().String())
			if err != nil {
				results[i] = err.Error()
				return
			}
			defer conn.Close()
			fmt.Fprintf(conn, "{\"type\":\"echo\",\"parameters\":{\"id\":%d}}\n", i)
			conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			out, _ := io.ReadAll(conn)
			results[i] = string(out)
		}(i)
	}
	wg.Wait()

	for i, out := range results {
		assert.Equal(t, fmt.Sprintf("{\"success\":true,\"result\":{\"id\":%d}}\n", i), out)
	}
}

func TestBridge_StartIsIdempotent(t *testing.T) {
	b, _ := newRunningBridge(t)
	port := b.Port()
	expected := fmt.Sprintf("Running on port %d", port)

	assert.Equal(t, expected, b.Start(true, 0))
	assert.Equal(t, expected, b.Status())

	// A new port does not rebind a running bridge.
	assert.Equal(t, expected, b.Start(true, port+1))
	assert.Equal(t, port, b.Port())

	assert.Equal(t, "Stopped", b.Start(false, 0))
	assert.Equal(t, "Stopped", b.Start(false, 0))
	assert.False(t, b.Running())
	assert.Equal(t, 0, b.Port(), "configured port is reported while stopped")
}

func TestBridge_Restart(t *testing.T) {
	b, _ := newRunningBridge(t)

	require.NoError(t, b.Stop())
	require.NoError(t, b.Stop())
	assert.Equal(t, "Stopped", b.Status())

	status := b.Start(true, 0)
	require.True(t, strings.HasPrefix(status, "Running on port "), status)
	assert.Equal(t, "{\"success\":true,\"result\":{\"pong\":true}}\n", roundTrip(t, b.Addr(), "{\"type\":\"ping\"}\n"))
}

func TestBridge_IndependentInstances(t *testing.T) {
	first, _ := newRunningBridge(t)
	second, _ := newRunningBridge(t)
	assert.NotEqual(t, first.Port(), second.Port())

	roundTrip(t, first.Addr(), "{\"type\":\"ping\"}\n")
	assert.Equal(t, `{"type":"ping"}`, first.LastCommand())
	assert.Equal(t, "None", second.LastCommand())

	require.NoError(t, first.Stop())
	assert.True(t, second.Running())
}

func TestBridge_StartErrors(t *testing.T) {
	occupied, _ := newRunningBridge(t)

	b := New(NewCommandRegistry(), WithLogger(nopLog()))
	status := b.Start(true, occupied.Port())
	assert.True(t, strings.HasPrefix(status, "Error: failed to listen on port"), status)
	assert.False(t, b.Running())

	reg := NewCommandRegistry()
	reg.OnInitialize(func() error { return errors.New("scene unavailable") })
	b = New(reg, WithLogger(nopLog()))
	status = b.Start(true, 0)
	assert.Equal(t, "Error: failed to initialize command registry: scene unavailable", status)
	assert.False(t, b.Running())
}

func TestBridge_Builtins(t *testing.T) {
	b, reg := newRunningBridge(t)
	assert.Equal(t, []string{"bridge_status", "echo", "list_commands", "ping"}, reg.List())

	resp, err := DecodeResponse(roundTrip(t, b.Addr(), "{\"type\":\"bridge_status\"}\n"))
	require.NoError(t, err)
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, true, resp.Result["running"])
	assert.Equal(t, float64(b.Port()), resp.Result["port"])
	assert.Equal(t, b.Status(), resp.Result["status"])
	assert.Equal(t, `{"type":"bridge_status"}`, resp.Result["last_command"])

	resp, err = DecodeResponse(roundTrip(t, b.Addr(), "{\"type\":\"list_commands\"}\n"))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"bridge_status", "echo", "list_commands", "ping"}, resp.Result["commands"])

	assert.Error(t, RegisterBuiltins(reg, b), "builtins register once")
}

func TestBridge_Shutdown(t *testing.T) {
	b, _ := newRunningBridge(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, b.Shutdown(ctx))
	assert.False(t, b.Running())
}

func TestBridge_Timeouts(t *testing.T) {
	reg := NewCommandRegistry()
	b := New(reg, WithLogger(nopLog()), WithReadTimeout(50*time.Millisecond), WithWriteTimeout(time.Second))
	require.NoError(t, RegisterBuiltins(reg, b))
	require.True(t, strings.HasPrefix(b.Start(true, 0), "Running"))
	defer b.Stop()

	resp, err := DecodeResponse(roundTrip(t, b.Addr(), `{"type":"ping"`))
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "Server error:")
}

func TestBridge_InvalidPort(t *testing.T) {
	b := New(NewCommandRegistry(), WithLogger(nopLog()), WithPort(9000))

	assert.Equal(t, "Error: invalid port 70000", b.Start(true, 70000))
	assert.Equal(t, "Error: invalid port -1", b.Start(true, -1))
	assert.False(t, b.Running())
	assert.Equal(t, 9000, b.Port(), "rejected ports are not recorded")

	b = New(NewCommandRegistry(), WithLogger(nopLog()), WithPort(65536))
	assert.Equal(t, DefaultPort, b.Port())
}

func TestBridge_MaxLineBytes(t *testing.T) {
	reg := NewCommandRegistry()
	b := New(reg, WithLogger(nopLog()), WithMaxLineBytes(32))
	require.NoError(t, RegisterBuiltins(reg, b))
	require.True(t, strings.HasPrefix(b.Start(true, 0), "Running"))
	defer b.Stop()

	assert.Equal(t, "{\"success\":false,\"error\":\"Server error: line too long\"}\n",
		roundTrip(t, b.Addr(), strings.Repeat("x", 33)))
	assert.Equal(t, "{\"success\":true,\"result\":{\"pong\":true}}\n", roundTrip(t, b.Addr(), "{\"type\":\"ping\"}\n"))
}
