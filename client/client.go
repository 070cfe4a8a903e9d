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

// Package client sends one-shot commands to a running bridge.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/we-are-mono/hostbridge/bridge"
)

// DefaultTimeout bounds a Send whose context has no deadline.
const DefaultTimeout = 10 * time.Second

// GetAddress returns the bridge address, preferring HOSTBRIDGE_ADDR env var
func GetAddress() string {
	if addr := os.Getenv("HOSTBRIDGE_ADDR"); addr != "" {
		return addr
	}
	return fmt.Sprintf("127.0.0.1:%d", bridge.DefaultPort)
}

// Send delivers cmd to the bridge at GetAddress.
func Send(cmd bridge.Command) (*bridge.Response, error) {
	return SendTo(context.Background(), GetAddress(), cmd)
}

// SendTo opens a connection to addr, writes cmd as one line and reads the
// single response line. The bridge closes the connection after answering.
func SendTo(ctx context.Context, addr string, cmd bridge.Command) (*bridge.Response, error) {
	line, err := bridge.EncodeCommand(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to encode command: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to bridge at %s (is it running?): %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if _, err := io.WriteString(conn, line); err != nil {
		return nil, fmt.Errorf("failed to send command: %w", err)
	}

	respLine, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	resp, err := bridge.DecodeResponse(respLine)
	if err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &resp, nil
}
