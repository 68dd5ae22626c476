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

// Package netsvc is the network service (spec.md §4.D, component D): it
// owns listening sockets and the shared pool that drives outbound
// connects, in both the Unix-namespace and IP-namespace transports
// spec.md §4.D calls for.
package netsvc

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/andrey-malets/dist-clang/internal/config"
)

// New creates a listener from cfg. TCPAddr takes precedence over
// SocketPath when both are set.
func New(cfg config.DaemonListenConfig) (net.Listener, error) {
	if cfg.TCPAddr != "" {
		return newTCPListener(cfg)
	}
	return newUnixListener(cfg.SocketPath)
}

func newUnixListener(socketPath string) (net.Listener, error) {
	dir := filepath.Dir(socketPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("netsvc: create socket directory: %w", err)
	}

	if err := removeStaleSocket(socketPath); err != nil {
		return nil, err
	}

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("netsvc: listen on unix socket: %w", err)
	}

	if err := os.Chmod(socketPath, 0600); err != nil {
		ln.Close()
		return nil, fmt.Errorf("netsvc: chmod socket: %w", err)
	}

	return ln, nil
}

// removeStaleSocket unlinks socketPath if a stat finds it but nothing
// answers a dial to it. A path that does answer is a live listener's;
// duplicate registration on it fails instead of unlinking the file out
// from under the running listener (spec.md §4.D's fd-table semantics).
func removeStaleSocket(socketPath string) error {
	if _, err := os.Stat(socketPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("netsvc: stat socket: %w", err)
	}

	conn, err := net.DialTimeout("unix", socketPath, 100*time.Millisecond)
	if err == nil {
		conn.Close()
		return fmt.Errorf("netsvc: %s is already bound by a live listener", socketPath)
	}

	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("netsvc: remove stale socket: %w", err)
	}
	return nil
}

func newTCPListener(cfg config.DaemonListenConfig) (net.Listener, error) {
	if !cfg.AllowRemote && isRemoteAddr(cfg.TCPAddr) {
		return nil, fmt.Errorf(
			"netsvc: binding to %s accepts connections from other hosts; "+
				"pass AllowRemote to confirm this is intended", cfg.TCPAddr)
	}

	ln, err := net.Listen("tcp", cfg.TCPAddr)
	if err != nil {
		return nil, fmt.Errorf("netsvc: listen on tcp: %w", err)
	}
	return ln, nil
}

// isRemoteAddr reports whether addr binds to something other than the
// loopback interface.
func isRemoteAddr(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
		if strings.HasPrefix(addr, ":") {
			host = ""
		}
	}

	if host == "" || host == "0.0.0.0" || host == "::" {
		return true
	}
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return false
	}
	return true
}

// ParseDaemonHost parses a DISTCLANG_HOST value of the form
// "unix:///path/to/socket" or "tcp://host:port" into listener config.
func ParseDaemonHost(host string) (*config.DaemonListenConfig, error) {
	if host == "" {
		return nil, nil
	}

	cfg := &config.DaemonListenConfig{}
	switch {
	case strings.HasPrefix(host, "unix://"):
		cfg.SocketPath = strings.TrimPrefix(host, "unix://")
	case strings.HasPrefix(host, "tcp://"):
		cfg.TCPAddr = strings.TrimPrefix(host, "tcp://")
	default:
		return nil, fmt.Errorf("netsvc: invalid DISTCLANG_HOST %q (must start with unix:// or tcp://)", host)
	}
	return cfg, nil
}
