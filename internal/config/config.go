// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config holds the client and daemon configuration types, decoded
// from YAML with environment variable overrides applied afterward.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when configuration validation fails.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the complete dist-clang configuration file.
type Config struct {
	Client ClientConfig `yaml:"client"`
	Daemon DaemonConfig `yaml:"daemon"`
	Log    LogConfig    `yaml:"log"`
}

// ClientConfig configures the client wrapper.
type ClientConfig struct {
	// SocketPath is the Unix socket the client connects to.
	// Environment: DISTCLANG_SOCKET
	SocketPath string `yaml:"socket_path,omitempty"`

	// CompilerPath is the absolute path of the real compiler binary the
	// client execs into on fall-back.
	// Environment: DISTCLANG_COMPILER
	CompilerPath string `yaml:"compiler_path,omitempty"`

	// ConnectTimeout, plus a fixed five seconds, is the deadline distccc
	// sets on its whole exchange with the daemon (driver expansion,
	// connect, request and reply); the connect step has no separate
	// deadline of its own.
	ConnectTimeout time.Duration `yaml:"connect_timeout,omitempty"`
}

// DaemonConfig configures the daemon process.
type DaemonConfig struct {
	// Listen configures how the daemon accepts connections.
	Listen DaemonListenConfig `yaml:"listen,omitempty"`

	// Concurrency is the number of connect-completion workers the network
	// service spawns (see spec.md §4.D).
	Concurrency int `yaml:"concurrency,omitempty"`

	// NonCachedFlags names flags added to the built-in set of flags
	// excluded from the cache key (spec.md §9 "cache-key exclusion list is
	// policy, not mechanism"); the built-in entries always stay in the
	// set. Empty means the built-in set alone.
	NonCachedFlags []string `yaml:"non_cached_flags,omitempty"`
}

// DaemonListenConfig configures how the daemon listens for connections.
// This is the configuration type internal/netsvc.New consumes.
type DaemonListenConfig struct {
	// SocketPath is the Unix-namespace socket path (default transport).
	SocketPath string `yaml:"socket_path,omitempty"`

	// TCPAddr is an optional IP-namespace address (e.g. "127.0.0.1:9000").
	// When set it takes precedence over SocketPath.
	TCPAddr string `yaml:"tcp_addr,omitempty"`

	// AllowRemote must be true to bind to a non-loopback TCP address.
	AllowRemote bool `yaml:"allow_remote"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Client: ClientConfig{
			SocketPath:     RuntimeSocketPath(),
			ConnectTimeout: 200 * time.Millisecond,
		},
		Daemon: DaemonConfig{
			Listen: DaemonListenConfig{
				SocketPath: RuntimeSocketPath(),
			},
			Concurrency: 4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads and decodes the configuration file at path, applying
// environment variable overrides afterward. A missing file is not an
// error: Default() is returned with overrides applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: reading %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv layers environment variables over a decoded config, the same
// precedence the teacher project uses for CONDUCTOR_* overrides.
func applyEnv(cfg *Config) {
	if v := os.Getenv("DISTCLANG_SOCKET"); v != "" {
		cfg.Client.SocketPath = v
		cfg.Daemon.Listen.SocketPath = v
	}
	if v := os.Getenv("DISTCLANG_COMPILER"); v != "" {
		cfg.Client.CompilerPath = v
	}
	if v := os.Getenv("DISTCLANG_HOST"); v != "" {
		cfg.Daemon.Listen.TCPAddr = v
	}
	if v := os.Getenv("DISTCLANG_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// Validate checks structural invariants of a decoded config.
func Validate(cfg *Config) error {
	if cfg.Daemon.Concurrency < 0 {
		return fmt.Errorf("%w: daemon.concurrency must be >= 0", ErrInvalidConfig)
	}
	return nil
}
