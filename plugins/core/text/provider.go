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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/we-are-mono/hostbridge/plugins"
)

// TextProvider implements plugins.CommandProvider.
type TextProvider struct{}

func NewTextProvider() *TextProvider {
	return &TextProvider{}
}

type textParams struct {
	Text string `json:"text"`
}

func (p *TextProvider) Metadata(ctx context.Context) (plugins.MetadataResponse, error) {
	return plugins.MetadataResponse{
		Name:        "text",
		Version:     "1.0.0",
		Description: "String helpers",
		Commands: []plugins.CommandDescriptor{
			{Name: "text_upper", Description: "Upper-case the text parameter"},
			{Name: "text_reverse", Description: "Reverse the text parameter"},
			{Name: "text_words", Description: "Split the text parameter into words"},
		},
	}, nil
}

func (p *TextProvider) Execute(ctx context.Context, command string, paramsJSON []byte) ([]byte, error) {
	var params textParams
	if err := json.Unmarshal(paramsJSON, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	var result map[string]interface{}
	switch command {
	case "text_upper":
		result = map[string]interface{}{"text": strings.ToUpper(params.Text)}
	case "text_reverse":
		result = map[string]interface{}{"text": reverse(params.Text)}
	case "text_words":
		words := strings.Fields(params.Text)
		result = map[string]interface{}{"words": words, "count": len(words)}
	default:
		return nil, fmt.Errorf("unknown command: %s", command)
	}
	return json.Marshal(result)
}

func reverse(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}
