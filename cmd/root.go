// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/Thermoquad/chargeport/pkg/config"
	"github.com/Thermoquad/chargeport/pkg/logging"
	"github.com/Thermoquad/chargeport/pkg/transport"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Runtime flags
	configPath  string
	logLevel    string
	logFile     string
	metricsAddr string
	interval    time.Duration

	// Set by the persistent pre-run
	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "chargeport",
	Short: "Multi-channel battery charger driver",
	Long: `Chargeport - A CLI tool for driving a multi-channel battery charger.

Commands are validated, staged in a fixed 32-slot dispatch pool and sent to
the charger in order by a background sender.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  Test:      --port /dev/null (no device is opened)
  WebSocket: --url ws://host/path [--username user]

Settings are read from --config (or CHARGEPORT_CONFIG), then CHARGEPORT_*
environment variables, then flags.

For WebSocket authentication, the password is read from the
CHARGEPORT_PASSWORD environment variable, or prompted interactively if not
set. The --password flag is intentionally not provided to avoid leaking
credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device (/dev/null for test mode)")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Runtime flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write JSON logs to a rotating file instead of stderr")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9100)")
	rootCmd.PersistentFlags().DurationVar(&interval, "interval", 10*time.Millisecond, "Sender poll interval")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// setup loads the configuration, applies explicitly set flags on top of it
// and builds the logger
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Resolve(configPath)
	if err != nil {
		return err
	}

	applyFlags(cmd, loaded)

	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	l, err := logging.New(loaded.Logging)
	if err != nil {
		return err
	}

	cfg = loaded
	logger = l
	return nil
}

func applyFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("port") {
		c.Transport.Port = portName
	}
	if flags.Changed("baud") {
		c.Transport.Baud = baudRate
	}
	if flags.Changed("url") {
		c.Transport.Kind = config.TransportWebSocket
		c.Transport.WebSocket.URL = wsURL
		if !flags.Changed("port") && c.Transport.Port == config.Default().Transport.Port {
			c.Transport.Port = "websocket"
		}
	}
	if flags.Changed("username") {
		c.Transport.WebSocket.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		c.Transport.WebSocket.SkipSSLVerify = wsNoSSLVerify
	}
	if flags.Changed("log-level") {
		c.Logging.Level = logLevel
	}
	if flags.Changed("log-file") {
		c.Logging.File = logFile
	}
	if flags.Changed("metrics-addr") {
		c.Metrics.Addr = metricsAddr
	}
	if flags.Changed("interval") {
		c.Sender.IntervalMs = int(interval / time.Millisecond)
	}
}

// connectionInfo describes the configured link for banners
func connectionInfo(c *config.Config) string {
	if c.Transport.Kind == config.TransportWebSocket {
		return fmt.Sprintf("WebSocket: %s (%s)", c.Transport.WebSocket.URL, c.Transport.Port)
	}
	if c.Transport.Port == transport.NullPortName {
		return "Serial: /dev/null (test mode)"
	}
	return fmt.Sprintf("Serial: %s @ %d baud", c.Transport.Port, c.Transport.Baud)
}
