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

package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextProvider_Metadata(t *testing.T) {
	metadata, err := NewTextProvider().Metadata(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "text", metadata.Name)
	require.Len(t, metadata.Commands, 3)
	assert.Equal(t, "text_upper", metadata.Commands[0].Name)
}

func TestTextProvider_Execute(t *testing.T) {
	p := NewTextProvider()

	tests := []struct {
		name     string
		command  string
		params   string
		expected string
		errorMsg string
	}{
		{name: "upper", command: "text_upper", params: `{"text":"hello"}`, expected: `{"text":"HELLO"}`},
		{name: "reverse unicode", command: "text_reverse", params: `{"text":"héllo"}`, expected: `{"text":"olléh"}`},
		{name: "words", command: "text_words", params: `{"text":" a b  c "}`, expected: `{"words":["a","b","c"],"count":3}`},
		{name: "unknown", command: "text_nope", params: `{}`, errorMsg: "unknown command: text_nope"},
		{name: "bad params", command: "text_upper", params: `{"text":5}`, errorMsg: "invalid parameters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := p.Execute(context.Background(), tt.command, []byte(tt.params))
			if tt.errorMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, string(out))
		})
	}
}
