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

package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"github.com/we-are-mono/hostbridge/bridge"
)

var (
	probeCount    int
	probeInterval time.Duration
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Measure bridge round-trip latency",
	Long: `Sends a series of ping commands, one connection each, and plots the
round-trip latency.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVarP(&probeCount, "count", "c", 20, "Number of pings to send")
	probeCmd.Flags().DurationVarP(&probeInterval, "interval", "i", 100*time.Millisecond, "Delay between pings")
}

// probeResult holds per-ping latencies in milliseconds.
type probeResult struct {
	latencies []float64
	failures  int
}

func runProbe(cmd *cobra.Command, args []string) error {
	if probeCount < 1 {
		return errors.New("count must be at least 1")
	}

	result := probe(probeCount, probeInterval)
	if len(result.latencies) == 0 {
		return fmt.Errorf("all %d pings to %s failed", result.failures, resolveAddr())
	}

	printProbe(cmd.OutOrStdout(), result)
	return nil
}

func probe(count int, interval time.Duration) probeResult {
	var result probeResult
	for i := 0; i < count; i++ {
		if i > 0 && interval > 0 {
			time.Sleep(interval)
		}

		start := time.Now()
		resp, err := sendCommand(bridge.Command{Type: "ping"})
		elapsed := time.Since(start)

		if err != nil || !resp.Success {
			result.failures++
			continue
		}
		result.latencies = append(result.latencies, float64(elapsed.Microseconds())/1000)
	}
	return result
}

func printProbe(out io.Writer, result probeResult) {
	minMs, maxMs, sum := result.latencies[0], result.latencies[0], 0.0
	for _, v := range result.latencies {
		if v < minMs {
			minMs = v
		}
		if v > maxMs {
			maxMs = v
		}
		sum += v
	}

	sent := len(result.latencies) + result.failures
	fmt.Fprintf(out, "%d sent, %d ok, %d failed\n", sent, len(result.latencies), result.failures)
	fmt.Fprintf(out, "min/avg/max = %.3f/%.3f/%.3f ms\n", minMs, sum/float64(len(result.latencies)), maxMs)

	if len(result.latencies) > 1 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, asciigraph.Plot(result.latencies,
			asciigraph.Height(8),
			asciigraph.Width(60),
			asciigraph.Caption("round-trip latency (ms)")))
	}
}
