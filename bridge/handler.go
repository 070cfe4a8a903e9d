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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/we-are-mono/hostbridge/bridge/logger"
)

// DefaultMaxLineBytes caps a command line, excluding its terminator.
const DefaultMaxLineBytes = 1 << 20

// connHandler owns one accepted connection: read one line, answer it, close.
type connHandler struct {
	registry     Registry
	record       func(raw string)
	log          logger.Logger
	readTimeout  time.Duration
	writeTimeout time.Duration
	maxLineBytes int
}

func (h *connHandler) serve(ctx context.Context, conn net.Conn) {
	log := h.log.With(
		logger.Field{Key: "conn", Value: uuid.NewString()},
		logger.Field{Key: "remote", Value: conn.RemoteAddr().String()},
	)
	defer conn.Close()
	defer func() {
		if p := recover(); p != nil {
			log.Error("Connection handler panicked", logger.Field{Key: "panic", Value: fmt.Sprint(p)})
		}
	}()

	if h.readTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	}

	maxLine := h.maxLineBytes
	if maxLine <= 0 {
		maxLine = DefaultMaxLineBytes
	}
	// One byte past the cap for the terminator.
	limited := io.LimitReader(conn, int64(maxLine)+1)
	line, err := bufio.NewReader(limited).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		log.Warn("Failed to read command", logger.Field{Key: "error", Value: err.Error()})
		h.respond(conn, log, Failf("Server error: %v", err))
		return
	}
	if len(line) > maxLine && !strings.HasSuffix(line, "\n") {
		log.Warn("Rejected oversized command", logger.Field{Key: "limit", Value: maxLine})
		h.respond(conn, log, Fail("Server error: line too long"))
		return
	}

	raw := strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(raw) == "" {
		log.Debug("Connection closed without a command")
		return
	}
	h.record(raw)

	var resp Response
	cmd, err := Decode(raw)
	if err != nil {
		log.Warn("Rejected malformed command", logger.Field{Key: "error", Value: err.Error()})
		resp = Fail(err.Error())
	} else {
		log.Debug("Received command", logger.Field{Key: "type", Value: cmd.Type})
		resp = h.dispatch(ctx, log, cmd)
	}

	h.respond(conn, log, resp)
}

// dispatch guards against registries that break the no-panic contract.
func (h *connHandler) dispatch(ctx context.Context, log logger.Logger, cmd Command) (resp Response) {
	defer func() {
		if p := recover(); p != nil {
			log.Error("Command registry panicked",
				logger.Field{Key: "type", Value: cmd.Type},
				logger.Field{Key: "panic", Value: fmt.Sprint(p)})
			resp = Failf("Server error: %v", p)
		}
	}()

	resp = h.registry.Execute(ctx, cmd)
	log.Debug("Command executed",
		logger.Field{Key: "type", Value: cmd.Type},
		logger.Field{Key: "success", Value: resp.Success})
	return resp
}

func (h *connHandler) respond(conn net.Conn, log logger.Logger, resp Response) {
	if h.writeTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	}
	if _, err := io.WriteString(conn, Encode(resp)); err != nil {
		log.Warn("Failed to write response", logger.Field{Key: "error", Value: err.Error()})
	}
}
