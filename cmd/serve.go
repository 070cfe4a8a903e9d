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
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/we-are-mono/hostbridge/bridge"
	"github.com/we-are-mono/hostbridge/bridge/logger"
	"github.com/we-are-mono/hostbridge/config"
	"github.com/we-are-mono/hostbridge/plugins"
)

const shutdownTimeout = 10 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the command bridge",
	Long: `Starts the command bridge on 127.0.0.1 and serves until SIGINT or SIGTERM.

SIGHUP reloads bridge.json and enables or disables the bridge accordingly.`,
	Run: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", -1, "Override the configured port (0 picks a free port)")
}

// hostServer is everything serve runs: the registry, the bridge and the
// plugin processes that contribute commands.
type hostServer struct {
	registry *bridge.CommandRegistry
	bridge   *bridge.Bridge
	plugins  *bridge.PluginSet
}

// newHostServer wires a stopped bridge from cfg. Plugins are started lazily
// on the first enable.
func newHostServer(cfg *config.Config, log logger.Logger) (*hostServer, error) {
	s := &hostServer{
		registry: bridge.NewCommandRegistry(),
		plugins:  &bridge.PluginSet{},
	}
	s.bridge = bridge.New(s.registry,
		bridge.WithLogger(log),
		bridge.WithPort(cfg.Port),
		bridge.WithReadTimeout(cfg.ReadTimeout()),
		bridge.WithWriteTimeout(cfg.WriteTimeout()),
	)

	if err := bridge.RegisterBuiltins(s.registry, s.bridge); err != nil {
		return nil, fmt.Errorf("failed to register built-in commands: %w", err)
	}

	if len(cfg.Plugins) > 0 {
		pm := plugins.NewPluginManager(cfg.PluginDirs...)
		names := cfg.Plugins
		s.registry.OnInitialize(func() error {
			s.plugins = s.registry.LoadPlugins(context.Background(), pm, names, log)
			return nil
		})
	}
	return s, nil
}

// apply reconciles the bridge with cfg and returns its status line.
func (s *hostServer) apply(cfg *config.Config) string {
	return s.bridge.Start(cfg.Enabled, cfg.Port)
}

func (s *hostServer) shutdown(ctx context.Context) error {
	defer s.plugins.Close()
	return s.bridge.Shutdown(ctx)
}

func runServe(cmd *cobra.Command, args []string) {
	// Check for existing server via PID file
	pidFile := os.Getenv("HOSTBRIDGE_PID_FILE")
	if pidFile == "" {
		pidFile = "/var/run/hostbridge.pid"
	}
	if err := checkExistingServer(pidFile); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		os.Exit(1)
	}

	if err := writePIDFile(pidFile); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] Failed to write PID file: %v\n", err)
		os.Exit(1)
	}
	defer os.Remove(pidFile)

	cfg, err := loadServeConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		exitServe(pidFile, 1)
		return
	}

	if err := initializeLogger(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] Failed to initialize logger: %v\n", err)
		exitServe(pidFile, 1)
		return
	}
	defer logger.Close()

	server, err := newHostServer(cfg, logger.Default())
	if err != nil {
		logger.Error("Failed to create server", logger.Field{Key: "error", Value: err.Error()})
		exitServe(pidFile, 1)
		return
	}

	status := server.apply(cfg)
	logger.Info("Bridge status", logger.Field{Key: "status", Value: status})
	if strings.HasPrefix(status, "Error:") {
		server.plugins.Close()
		exitServe(pidFile, 1)
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigChan {
		if sig == syscall.SIGHUP {
			reloaded, err := loadServeConfig()
			if err != nil {
				logger.Warn("Ignoring invalid configuration", logger.Field{Key: "error", Value: err.Error()})
				continue
			}
			logger.Info("Configuration reloaded",
				logger.Field{Key: "status", Value: server.apply(reloaded)})
			continue
		}
		break
	}

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.shutdown(ctx); err != nil {
		logger.Error("Failed to stop bridge", logger.Field{Key: "error", Value: err.Error()})
	}
}

// exitWithError terminates the process. Tests override it to avoid exiting.
var exitWithError = os.Exit

// exitServe removes the PID file and flushes logs before exiting, since
// deferred cleanup does not run on os.Exit.
func exitServe(pidFile string, code int) {
	os.Remove(pidFile)
	logger.Close()
	exitWithError(code)
}

// loadServeConfig loads bridge.json and applies the --port override.
func loadServeConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if servePort >= 0 {
		cfg.Port = servePort
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// checkExistingServer checks if another server is already running
func checkExistingServer(pidFile string) error {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("PID file exists but cannot be read: %w (remove %s manually if hostbridge is not running)", err, pidFile)
	}

	pidStr := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return fmt.Errorf("invalid PID in %s: %s (remove file manually if hostbridge is not running)", pidFile, pidStr)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		os.Remove(pidFile)
		return nil
	}

	// Signal 0 only checks that the process exists
	if err := process.Signal(syscall.Signal(0)); err != nil {
		os.Remove(pidFile)
		return nil
	}

	return fmt.Errorf("hostbridge already running with PID %d (stop it first or remove %s if it's stale)", pid, pidFile)
}

// writePIDFile writes the current process PID to a file
func writePIDFile(pidFile string) error {
	return os.WriteFile(pidFile, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0600)
}

// initializeLogger builds the configured backends and installs the global
// logger. A journald output falls back to console when systemd-cat is
// missing.
func initializeLogger(cfg config.LoggingConfig) error {
	var backends []logger.Backend
	for _, out := range cfg.Outputs {
		backend, err := newBackend(out, cfg)
		if err != nil {
			for _, b := range backends {
				b.Close()
			}
			return err
		}
		backends = append(backends, backend)
	}

	logger.Init(logger.Config{
		Level:     cfg.Level,
		Format:    cfg.Format,
		Component: "hostbridge",
	}, backends...)

	logger.Info("Logging initialized",
		logger.Field{Key: "outputs", Value: strings.Join(cfg.Outputs, ",")},
		logger.Field{Key: "level", Value: cfg.Level},
		logger.Field{Key: "format", Value: cfg.Format})
	return nil
}

func newBackend(output string, cfg config.LoggingConfig) (logger.Backend, error) {
	switch output {
	case "console":
		return logger.NewWriterBackend(os.Stderr, cfg.Format), nil
	case "file":
		b, err := logger.NewFileBackend(cfg.File, cfg.Format)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize file backend: %w", err)
		}
		return b, nil
	case "journald":
		b, err := logger.NewJournaldBackend("hostbridge", cfg.Format)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] Could not initialize journald backend: %v, falling back to console\n", err)
			return logger.NewWriterBackend(os.Stderr, cfg.Format), nil
		}
		return b, nil
	case "sqlite":
		b, err := logger.NewSQLiteBackend(cfg.Database, cfg.MaxEntries)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize sqlite backend: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown log output %q", output)
	}
}
