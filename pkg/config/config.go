// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads chargeport settings: built-in defaults, then an
// optional YAML file, then CHARGEPORT_* environment variables. The result is
// validated before use.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/Thermoquad/chargeport/pkg/dispatch"
	"github.com/Thermoquad/chargeport/pkg/transport"
	"gopkg.in/yaml.v2"
)

// Environment variables
const (
	EnvConfig      = "CHARGEPORT_CONFIG"
	EnvPort        = "CHARGEPORT_PORT"
	EnvBaud        = "CHARGEPORT_BAUD"
	EnvTransport   = "CHARGEPORT_TRANSPORT"
	EnvLogLevel    = "CHARGEPORT_LOG_LEVEL"
	EnvMetricsAddr = "CHARGEPORT_METRICS_ADDR"
)

// Transport kinds
const (
	TransportSerial    = "serial"
	TransportWebSocket = "websocket"
)

// Config is the complete chargeport configuration
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	Sender    SenderConfig    `yaml:"sender"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// TransportConfig selects and configures the charger link
type TransportConfig struct {
	Kind      string          `yaml:"kind"`
	Port      string          `yaml:"port"`
	Baud      int             `yaml:"baud"`
	WebSocket WebSocketConfig `yaml:"websocket"`
}

// WebSocketConfig holds websocket bridge settings. The password is never
// read from the file; it is prompted for at connect time.
type WebSocketConfig struct {
	URL           string `yaml:"url"`
	Username      string `yaml:"username"`
	SkipSSLVerify bool   `yaml:"skipSslVerify"`
}

// SenderConfig holds consumer loop settings
type SenderConfig struct {
	IntervalMs int `yaml:"intervalMs"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
}

// MetricsConfig holds the Prometheus endpoint settings. An empty Addr
// disables the endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Interval returns the sender poll interval
func (s SenderConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMs) * time.Millisecond
}

// Load builds the configuration with Resolve and validates it.
func Load(path string) (*Config, error) {
	cfg, err := Resolve(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Resolve builds the configuration from defaults, the file at path (or
// CHARGEPORT_CONFIG when path is empty) and environment overrides without
// validating it. Callers layering flags on top validate afterwards.
func Resolve(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the built-in configuration: the /dev/null test port at
// 115200 baud with info logging to stderr.
func Default() *Config {
	return &Config{
		Transport: TransportConfig{
			Kind: TransportSerial,
			Port: transport.NullPortName,
			Baud: int(transport.DefaultBaud),
		},
		Sender: SenderConfig{
			IntervalMs: int(transport.DefaultInterval / time.Millisecond),
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) error {
	if port := os.Getenv(EnvPort); port != "" {
		cfg.Transport.Port = port
	}

	if baud := os.Getenv(EnvBaud); baud != "" {
		n, err := strconv.Atoi(baud)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvBaud, baud, err)
		}
		cfg.Transport.Baud = n
	}

	if kind := os.Getenv(EnvTransport); kind != "" {
		cfg.Transport.Kind = kind
	}

	if level := os.Getenv(EnvLogLevel); level != "" {
		cfg.Logging.Level = level
	}

	if addr := os.Getenv(EnvMetricsAddr); addr != "" {
		cfg.Metrics.Addr = addr
	}

	return nil
}

// Validate checks the configuration for values the pool or transports would
// reject later
func (c *Config) Validate() error {
	switch c.Transport.Kind {
	case TransportSerial:
		if c.Transport.Port == "" {
			return fmt.Errorf("serial transport requires a port")
		}
	case TransportWebSocket:
		if c.Transport.WebSocket.URL == "" {
			return fmt.Errorf("websocket transport requires a url")
		}
		u, err := url.Parse(c.Transport.WebSocket.URL)
		if err != nil {
			return fmt.Errorf("invalid websocket url: %w", err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("websocket url scheme must be ws or wss, got %q", u.Scheme)
		}
		if c.Transport.Port == "" {
			return fmt.Errorf("websocket transport requires a port name")
		}
	default:
		return fmt.Errorf("invalid transport %q, must be one of: %s, %s",
			c.Transport.Kind, TransportSerial, TransportWebSocket)
	}

	if len([]rune(c.Transport.Port)) > dispatch.MaxPortName {
		return fmt.Errorf("port name %q exceeds %d characters", c.Transport.Port, dispatch.MaxPortName)
	}

	if _, err := transport.ParseBaud(c.Transport.Baud); err != nil {
		return err
	}

	if c.Sender.IntervalMs <= 0 || c.Sender.IntervalMs > 10000 {
		return fmt.Errorf("sender interval %dms is outside range [1, 10000]", c.Sender.IntervalMs)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", c.Logging.Level)
	}

	return nil
}

// Baud returns the configured baud rate. Valid after Validate.
func (c *Config) Baud() transport.Baud {
	return transport.Baud(c.Transport.Baud)
}
