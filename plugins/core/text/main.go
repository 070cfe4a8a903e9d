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

// hostbridge-plugin-text is a sample plugin that contributes string
// commands to the bridge. It runs as a separate process and talks to the
// bridge over RPC.
package main

import (
	"log"
	"os"

	"github.com/we-are-mono/hostbridge/plugins"
)

func main() {
	// stdout carries the plugin handshake
	log.SetOutput(os.Stderr)
	log.SetPrefix("[hostbridge-plugin-text] ")

	plugins.ServePlugin(NewTextProvider())
}
