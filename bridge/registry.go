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
	"sort"
	"sync"
)

// ErrDuplicateCommand is returned when a command type is registered twice.
var ErrDuplicateCommand = errors.New("command already registered")

// Registry executes decoded commands. Execute must never panic; failures are
// reported as a Response with Success set to false.
type Registry interface {
	// Initialize prepares dispatch tables. It is idempotent.
	Initialize() error
	Execute(ctx context.Context, cmd Command) Response
}

// HandlerFunc implements a single command type.
type HandlerFunc func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error)

// CommandRegistry is the default Registry: a table from command type to
// handler.
type CommandRegistry struct {
	handlers map[string]HandlerFunc
	hooks    []func() error
	initOnce sync.Once
	initErr  error
	mu       sync.RWMutex
}

// NewCommandRegistry creates an empty registry.
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		handlers: make(map[string]HandlerFunc),
	}
}

// Register adds a handler for cmdType.
func (r *CommandRegistry) Register(cmdType string, fn HandlerFunc) error {
	if cmdType == "" {
		return errors.New("command type must not be empty")
	}
	if fn == nil {
		return fmt.Errorf("nil handler for command %q", cmdType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[cmdType]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCommand, cmdType)
	}
	r.handlers[cmdType] = fn
	return nil
}

// Unregister removes cmdType. It reports whether a handler was removed.
func (r *CommandRegistry) Unregister(cmdType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[cmdType]; !exists {
		return false
	}
	delete(r.handlers, cmdType)
	return true
}

// Has reports whether cmdType is registered.
func (r *CommandRegistry) Has(cmdType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.handlers[cmdType]
	return exists
}

// List returns the registered command types in sorted order.
func (r *CommandRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// OnInitialize queues fn to run on the first Initialize call. Hooks added
// after initialization never run.
func (r *CommandRegistry) OnInitialize(fn func() error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, fn)
}

// Initialize runs the queued hooks once. Later calls return the result of
// the first one.
func (r *CommandRegistry) Initialize() error {
	r.initOnce.Do(func() {
		r.mu.RLock()
		hooks := append([]func() error(nil), r.hooks...)
		r.mu.RUnlock()

		for _, hook := range hooks {
			if err := hook(); err != nil {
				r.initErr = fmt.Errorf("failed to initialize command registry: %w", err)
				return
			}
		}
	})
	return r.initErr
}

// Execute dispatches cmd to its handler.
func (r *CommandRegistry) Execute(ctx context.Context, cmd Command) (resp Response) {
	r.mu.RLock()
	handler, exists := r.handlers[cmd.Type]
	r.mu.RUnlock()

	if !exists {
		return Failf("Unknown command: %s", cmd.Type)
	}

	defer func() {
		if p := recover(); p != nil {
			resp = Failf("Command %s failed: %v", cmd.Type, p)
		}
	}()

	result, err := handler(ctx, cmd.Parameters)
	if err != nil {
		return Fail(err.Error())
	}
	return OK(result)
}
