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
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/we-are-mono/hostbridge/bridge/logger"
)

// noCommand is reported by LastCommand before any command arrives.
const noCommand = "None"

// Bridge is the lifecycle controller an embedder uses to run the command
// server. Each Bridge owns its own listener, so several can coexist.
type Bridge struct {
	registry Registry
	log      logger.Logger
	listener *Listener
	handler  *connHandler

	mu          sync.Mutex // serializes Start
	port        atomic.Int32
	lastCommand atomic.Pointer[string]
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger. The default is the package-level logger.
func WithLogger(log logger.Logger) Option {
	return func(b *Bridge) { b.log = log }
}

// WithPort sets the port reported before the first Start. Ports outside
// 0-65535 are ignored.
func WithPort(port int) Option {
	return func(b *Bridge) {
		if port >= 0 && port <= 65535 {
			b.port.Store(int32(port))
		}
	}
}

// WithReadTimeout bounds how long a connection may take to send its command.
func WithReadTimeout(d time.Duration) Option {
	return func(b *Bridge) { b.handler.readTimeout = d }
}

// WithWriteTimeout bounds how long writing a response may take.
func WithWriteTimeout(d time.Duration) Option {
	return func(b *Bridge) { b.handler.writeTimeout = d }
}

// WithMaxLineBytes caps the length of a command line. Zero keeps
// DefaultMaxLineBytes.
func WithMaxLineBytes(n int) Option {
	return func(b *Bridge) { b.handler.maxLineBytes = n }
}

// New creates a stopped bridge dispatching to registry.
func New(registry Registry, opts ...Option) *Bridge {
	b := &Bridge{
		registry: registry,
		log:      logger.Default(),
	}
	b.port.Store(DefaultPort)
	b.handler = &connHandler{registry: registry, record: b.recordCommand}

	for _, opt := range opts {
		opt(b)
	}

	b.log = b.log.With(logger.Field{Key: "component", Value: "bridge"})
	b.handler.log = b.log
	b.listener = NewListener(func(conn net.Conn) {
		b.handler.serve(context.Background(), conn)
	}, b.log.With(logger.Field{Key: "component", Value: "listener"}), b.onFault)
	return b
}

// Start reconciles the bridge with the embedder's inputs and returns a status
// line. It is safe to call repeatedly with the same arguments. A new port only
// takes effect on the next start after a stop.
func (b *Bridge) Start(enabled bool, port int) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if port < 0 || port > 65535 {
		b.log.Error("Rejected invalid port", logger.Field{Key: "port", Value: port})
		return fmt.Sprintf("Error: invalid port %d", port)
	}
	b.port.Store(int32(port))
	running := b.Running()

	switch {
	case enabled && !running:
		if err := b.registry.Initialize(); err != nil {
			b.log.Error("Failed to initialize command registry", logger.Field{Key: "error", Value: err.Error()})
			return "Error: " + err.Error()
		}
		if err := b.listener.Start(port); err != nil {
			b.log.Error("Failed to start bridge", logger.Field{Key: "error", Value: err.Error()})
			return "Error: " + err.Error()
		}
		b.log.Info("Bridge started", logger.Field{Key: "port", Value: b.listener.Port()})
	case !enabled && running:
		if err := b.Stop(); err != nil {
			b.log.Warn("Bridge stopped with error", logger.Field{Key: "error", Value: err.Error()})
		}
	}
	return b.Status()
}

// Stop stops accepting connections. In-flight connections complete.
func (b *Bridge) Stop() error {
	if !b.Running() {
		return nil
	}
	if err := b.listener.Stop(); err != nil {
		return err
	}
	b.log.Info("Bridge stopped")
	return nil
}

// Shutdown stops the bridge and waits for in-flight connections until ctx
// is done.
func (b *Bridge) Shutdown(ctx context.Context) error {
	return b.listener.Shutdown(ctx)
}

// Running reports whether the bridge is accepting connections.
func (b *Bridge) Running() bool {
	return b.listener.State() == StateRunning
}

// Port returns the bound port while running, otherwise the configured one.
func (b *Bridge) Port() int {
	if port := b.listener.Port(); port != 0 {
		return port
	}
	return int(b.port.Load())
}

// Addr returns the bound address, or nil when stopped.
func (b *Bridge) Addr() net.Addr {
	return b.listener.Addr()
}

// Status returns "Running on port N" or "Stopped".
func (b *Bridge) Status() string {
	if b.Running() {
		return fmt.Sprintf("Running on port %d", b.listener.Port())
	}
	return "Stopped"
}

// LastCommand returns the most recent raw command line, or "None".
func (b *Bridge) LastCommand() string {
	if last := b.lastCommand.Load(); last != nil {
		return *last
	}
	return noCommand
}

func (b *Bridge) recordCommand(raw string) {
	b.lastCommand.Store(&raw)
}

func (b *Bridge) onFault(err error) {
	b.log.Error("Bridge stopped after listener failure", logger.Field{Key: "error", Value: err.Error()})
}
