// Copyright 2026 The termmux Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads termmux server configuration.
//
// Configuration comes from a single file named by the --config flag or
// the TERMMUX_CONFIG environment variable. There is no discovery and no
// per-field environment override: the file is the whole truth, apart
// from ${VAR} expansion in paths.
//
// YAML is the primary format. Files ending in .json or .jsonc are
// accepted too; comments and trailing commas are stripped before the
// (JSON-compatible) YAML decoder sees them.
//
// A file may carry development and production sections whose non-zero
// fields override the base values when the environment matches.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the variable Load reads the config path from.
const EnvironmentVariable = "TERMMUX_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// Config is the complete termmux server configuration.
type Config struct {
	Environment Environment `yaml:"environment"`

	Server   ServerConfig   `yaml:"server"`
	Sessions SessionsConfig `yaml:"sessions"`
	Viewers  ViewersConfig  `yaml:"viewers"`
	Logging  LoggingConfig  `yaml:"logging"`

	// Sources are processes started at server boot and attached to the
	// session named by their key.
	Sources []SourceConfig `yaml:"sources"`

	Development *Overrides `yaml:"development,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides holds the sections an environment block may replace.
type Overrides struct {
	Server   *ServerConfig   `yaml:"server,omitempty"`
	Sessions *SessionsConfig `yaml:"sessions,omitempty"`
	Viewers  *ViewersConfig  `yaml:"viewers,omitempty"`
	Logging  *LoggingConfig  `yaml:"logging,omitempty"`
}

// ServerConfig configures the listening surfaces.
type ServerConfig struct {
	// HTTPAddress serves /ws, /api/sessions, /metrics and /healthz.
	HTTPAddress string `yaml:"http_address"`

	// SocketPath is the unix socket for the CBOR control protocol.
	SocketPath string `yaml:"socket_path"`

	// ShutdownTimeout bounds how long in-flight HTTP requests may run
	// after a shutdown signal.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// SessionsConfig configures the session registry.
type SessionsConfig struct {
	// GraceWindow is how long a session may have no subscribers before
	// it is evicted.
	GraceWindow time.Duration `yaml:"grace_window"`

	// BufferUnit, HardMultiplier and SoftMultiplier define the
	// scrollback caps: once the buffer exceeds unit*hard bytes, oldest
	// chunks are dropped until it is at most unit*soft bytes.
	BufferUnit     int `yaml:"buffer_unit"`
	HardMultiplier int `yaml:"hard_multiplier"`
	SoftMultiplier int `yaml:"soft_multiplier"`
}

// ViewersConfig configures websocket viewer connections.
type ViewersConfig struct {
	// QueueDepth is the per-connection outbound event limit. On
	// overflow the oldest queued event is dropped.
	QueueDepth int `yaml:"queue_depth"`

	WriteTimeout time.Duration `yaml:"write_timeout"`
	PingInterval time.Duration `yaml:"ping_interval"`

	// AllowedOrigins restricts the websocket Origin header. Empty
	// allows same-origin requests only; "*" allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// Format is text, json, or auto (text when stderr is a terminal).
	Format string `yaml:"format"`
}

// SourceConfig describes a process attached to a session at boot.
type SourceConfig struct {
	Key       string   `yaml:"key"`
	Command   []string `yaml:"command"`
	Directory string   `yaml:"directory"`
	Env       []string `yaml:"env"`

	// PTY runs the command on a pseudo-terminal instead of pipes.
	PTY     bool   `yaml:"pty"`
	Columns uint16 `yaml:"columns"`
	Rows    uint16 `yaml:"rows"`
}

// Default returns the configuration every file is merged onto.
func Default() *Config {
	return &Config{
		Environment: Development,
		Server: ServerConfig{
			HTTPAddress:     "127.0.0.1:7681",
			SocketPath:      "/run/termmux/control.sock",
			ShutdownTimeout: 10 * time.Second,
		},
		Sessions: SessionsConfig{
			GraceWindow:    60 * time.Second,
			BufferUnit:     1000,
			HardMultiplier: 100,
			SoftMultiplier: 80,
		},
		Viewers: ViewersConfig{
			QueueDepth:   256,
			WriteTimeout: 10 * time.Second,
			PingInterval: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads the file named by TERMMUX_CONFIG.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your termmux config file, or use --config", EnvironmentVariable)
	}
	return LoadFile(path)
}

// LoadFile loads, overrides, expands and validates the file at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML (or plain JSON) onto Default and finishes the
// configuration the same way LoadFile does.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if server := overrides.Server; server != nil {
		setString(&c.Server.HTTPAddress, server.HTTPAddress)
		setString(&c.Server.SocketPath, server.SocketPath)
		setDuration(&c.Server.ShutdownTimeout, server.ShutdownTimeout)
	}
	if sessions := overrides.Sessions; sessions != nil {
		setDuration(&c.Sessions.GraceWindow, sessions.GraceWindow)
		setInt(&c.Sessions.BufferUnit, sessions.BufferUnit)
		setInt(&c.Sessions.HardMultiplier, sessions.HardMultiplier)
		setInt(&c.Sessions.SoftMultiplier, sessions.SoftMultiplier)
	}
	if viewers := overrides.Viewers; viewers != nil {
		setInt(&c.Viewers.QueueDepth, viewers.QueueDepth)
		setDuration(&c.Viewers.WriteTimeout, viewers.WriteTimeout)
		setDuration(&c.Viewers.PingInterval, viewers.PingInterval)
		if len(viewers.AllowedOrigins) > 0 {
			c.Viewers.AllowedOrigins = viewers.AllowedOrigins
		}
	}
	if logging := overrides.Logging; logging != nil {
		setString(&c.Logging.Level, logging.Level)
		setString(&c.Logging.Format, logging.Format)
	}
}

func setString(target *string, value string) {
	if value != "" {
		*target = value
	}
}

func setInt(target *int, value int) {
	if value != 0 {
		*target = value
	}
}

func setDuration(target *time.Duration, value time.Duration) {
	if value != 0 {
		*target = value
	}
}

func (c *Config) expandVariables() {
	c.Server.SocketPath = expandVars(c.Server.SocketPath)
	for i := range c.Sources {
		c.Sources[i].Directory = expandVars(c.Sources[i].Directory)
	}
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %q", c.Environment))
	}
	if c.Server.HTTPAddress == "" && c.Server.SocketPath == "" {
		errs = append(errs, errors.New("at least one of server.http_address and server.socket_path is required"))
	}
	if c.Sessions.GraceWindow <= 0 {
		errs = append(errs, errors.New("sessions.grace_window must be positive"))
	}
	if c.Sessions.BufferUnit <= 0 {
		errs = append(errs, errors.New("sessions.buffer_unit must be positive"))
	}
	if c.Sessions.SoftMultiplier <= 0 || c.Sessions.SoftMultiplier >= c.Sessions.HardMultiplier {
		errs = append(errs, fmt.Errorf("sessions.soft_multiplier (%d) must be positive and below sessions.hard_multiplier (%d)",
			c.Sessions.SoftMultiplier, c.Sessions.HardMultiplier))
	}
	if c.Viewers.QueueDepth <= 0 {
		errs = append(errs, errors.New("viewers.queue_depth must be positive"))
	}
	if c.Viewers.WriteTimeout <= 0 {
		errs = append(errs, errors.New("viewers.write_timeout must be positive"))
	}
	if c.Viewers.PingInterval <= 0 {
		errs = append(errs, errors.New("viewers.ping_interval must be positive"))
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "auto", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be one of auto, text, json; got %q", c.Logging.Format))
	}

	seen := make(map[string]bool, len(c.Sources))
	for index, source := range c.Sources {
		if source.Key == "" {
			errs = append(errs, fmt.Errorf("sources[%d].key is required", index))
		} else if seen[source.Key] {
			errs = append(errs, fmt.Errorf("sources[%d].key %q is duplicated", index, source.Key))
		}
		seen[source.Key] = true
		if len(source.Command) == 0 {
			errs = append(errs, fmt.Errorf("sources[%d].command is required", index))
		}
	}

	return errors.Join(errs...)
}
