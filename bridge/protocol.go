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

// Package bridge implements the host command bridge: a loopback TCP server
// that reads one JSON command line per connection, dispatches it to a command
// registry and writes back one JSON response line.
package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DefaultPort is the TCP port the bridge listens on when none is configured.
const DefaultPort = 8080

// ErrMalformedCommand is returned by Decode for lines that are empty, are not
// a JSON object or carry no command type.
var ErrMalformedCommand = errors.New("malformed command")

const utf8BOM = "\ufeff"

// Command is one request sent by the controller.
type Command struct {
	Type       string                 `json:"type"`
	Parameters map[string]interface{} `json:"parameters"`
}

// Response is the single reply written for a command. Result is only
// meaningful when Success is true, Error only when it is false.
type Response struct {
	Result  map[string]interface{} `json:"result,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Success bool                   `json:"success"`
}

// OK builds a successful response.
func OK(result map[string]interface{}) Response {
	return Response{Success: true, Result: result}
}

// Fail builds a failed response carrying message.
func Fail(message string) Response {
	return Response{Success: false, Error: message}
}

// Failf is Fail with fmt.Sprintf formatting.
func Failf(format string, args ...interface{}) Response {
	return Fail(fmt.Sprintf(format, args...))
}

// MarshalJSON emits exactly one of result or error. A successful response
// without a result payload is written with an empty result object.
func (r Response) MarshalJSON() ([]byte, error) {
	if r.Success {
		result := r.Result
		if result == nil {
			result = map[string]interface{}{}
		}
		return json.Marshal(struct {
			Success bool                   `json:"success"`
			Result  map[string]interface{} `json:"result"`
		}{true, result})
	}
	return json.Marshal(struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}{false, r.Error})
}

// wireCommand keeps type as a pointer so a missing field can be told apart
// from a non-string one (which fails to unmarshal).
type wireCommand struct {
	Type       *string                `json:"type"`
	Parameters map[string]interface{} `json:"parameters"`
}

// Decode parses one command line. Any trailing line break and a leading UTF-8
// byte order mark are ignored.
func Decode(line string) (Command, error) {
	line = strings.TrimPrefix(strings.TrimRight(line, "\r\n"), utf8BOM)
	if strings.TrimSpace(line) == "" {
		return Command{}, fmt.Errorf("%w: empty line", ErrMalformedCommand)
	}

	var wire wireCommand
	if err := json.Unmarshal([]byte(line), &wire); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}
	if wire.Type == nil || *wire.Type == "" {
		return Command{}, fmt.Errorf("%w: missing type", ErrMalformedCommand)
	}

	params := wire.Parameters
	if params == nil {
		params = make(map[string]interface{})
	}
	return Command{Type: *wire.Type, Parameters: params}, nil
}

// Encode renders resp as a single JSON line terminated by '\n'. It never
// fails: a result that cannot be represented as JSON is replaced by a failure
// response describing why.
func Encode(resp Response) string {
	data, err := json.Marshal(resp)
	if err != nil {
		data, _ = json.Marshal(Failf("failed to encode response: %v", err))
	}
	return string(data) + "\n"
}

// EncodeCommand renders cmd as a single JSON line terminated by '\n'.
func EncodeCommand(cmd Command) (string, error) {
	if cmd.Type == "" {
		return "", fmt.Errorf("%w: missing type", ErrMalformedCommand)
	}
	if cmd.Parameters == nil {
		cmd.Parameters = make(map[string]interface{})
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return "", fmt.Errorf("failed to encode command: %w", err)
	}
	return string(data) + "\n", nil
}

// DecodeResponse parses one response line as read by a controller.
func DecodeResponse(line string) (Response, error) {
	line = strings.TrimSpace(strings.TrimPrefix(line, utf8BOM))
	if line == "" {
		return Response{}, errors.New("empty response")
	}

	var resp Response
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		return Response{}, fmt.Errorf("failed to parse response: %w", err)
	}
	return resp, nil
}
