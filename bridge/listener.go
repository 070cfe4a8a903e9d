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
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/we-are-mono/hostbridge/bridge/logger"
)

// State is the lifecycle state of a Listener.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Listener owns the loopback server socket and its accept loop. Every
// accepted connection is passed to handle on its own goroutine.
//
// Stop closes a dedicated quit channel before closing the socket, so the
// accept loop can tell a requested shutdown from a genuine accept failure.
// A genuine failure tears the listener down (no retry) and is reported to
// onFault.
type Listener struct {
	handle  func(net.Conn)
	log     logger.Logger
	onFault func(error)
	listen  func(port int) (net.Listener, error)

	lifecycle sync.Mutex // serializes Start and Stop
	state     atomic.Int32
	addr      atomic.Pointer[net.TCPAddr]
	ln        net.Listener
	quit      chan struct{}
	loopDone  chan struct{}
	conns     sync.WaitGroup
}

// NewListener creates a stopped listener. onFault may be nil.
func NewListener(handle func(net.Conn), log logger.Logger, onFault func(error)) *Listener {
	if log == nil {
		log = logger.Default()
	}
	return &Listener{
		handle:  handle,
		log:     log,
		onFault: onFault,
		listen:  listenLoopback,
	}
}

func listenLoopback(port int) (net.Listener, error) {
	lc := net.ListenConfig{Control: controlReuseAddr}
	return lc.Listen(context.Background(), "tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
}

// State returns the current lifecycle state.
func (l *Listener) State() State {
	return State(l.state.Load())
}

// Addr returns the bound address, or nil when not running.
func (l *Listener) Addr() net.Addr {
	if addr := l.addr.Load(); addr != nil {
		return addr
	}
	return nil
}

// Port returns the bound port, or 0 when not running.
func (l *Listener) Port() int {
	if addr := l.addr.Load(); addr != nil {
		return addr.Port
	}
	return 0
}

// Start binds 127.0.0.1:port and starts accepting in the background. Port 0
// binds an ephemeral port. Start is a no-op when already running.
func (l *Listener) Start(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("invalid port %d", port)
	}

	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()

	if l.State() == StateRunning {
		return nil
	}
	// A loop torn down by an accept fault may still be returning.
	if l.loopDone != nil {
		<-l.loopDone
	}

	l.state.Store(int32(StateStarting))
	ln, err := l.listen(port)
	if err != nil {
		l.state.Store(int32(StateStopped))
		return fmt.Errorf("failed to listen on port %d: %w", port, err)
	}

	l.ln = ln
	l.quit = make(chan struct{})
	l.loopDone = make(chan struct{})
	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		l.addr.Store(tcpAddr)
	}
	l.state.Store(int32(StateRunning))

	l.log.Info("Listener started", logger.Field{Key: "addr", Value: ln.Addr().String()})
	go l.acceptLoop(ln, l.quit, l.loopDone)
	return nil
}

func (l *Listener) acceptLoop(ln net.Listener, quit, done chan struct{}) {
	err := l.serve(ln, quit)
	close(done)
	if err != nil && l.onFault != nil {
		l.onFault(err)
	}
}

// serve accepts until quit is closed (nil) or accept fails on its own.
func (l *Listener) serve(ln net.Listener, quit chan struct{}) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-quit:
				return nil
			default:
			}
			if !l.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
				// Stop won the race and is about to close quit.
				return nil
			}

			l.log.Error("Accept failed, stopping listener", logger.Field{Key: "error", Value: err.Error()})
			ln.Close()
			l.addr.Store(nil)
			l.state.Store(int32(StateStopped))
			return fmt.Errorf("accept failed: %w", err)
		}

		l.conns.Add(1)
		go func() {
			defer l.conns.Done()
			l.handle(conn)
		}()
	}
}

// Stop closes the server socket and waits for the accept loop to exit.
// Connections already accepted keep running. Stop is a no-op when the
// listener is not running.
func (l *Listener) Stop() error {
	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()

	if !l.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		if l.loopDone != nil {
			<-l.loopDone
		}
		return nil
	}

	close(l.quit)
	err := l.ln.Close()
	<-l.loopDone

	l.addr.Store(nil)
	l.state.Store(int32(StateStopped))
	l.log.Info("Listener stopped")

	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("failed to close listener: %w", err)
	}
	return nil
}

// Shutdown stops accepting and then waits for in-flight connections until
// ctx is done.
func (l *Listener) Shutdown(ctx context.Context) error {
	if err := l.Stop(); err != nil {
		return err
	}

	drained := make(chan struct{})
	go func() {
		l.conns.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for connections: %w", ctx.Err())
	}
}
