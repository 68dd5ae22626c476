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

// Package daemon is the daemon-side half of the wire protocol
// (spec.md §1 notes that full cache/dispatch logic is intentionally out
// of scope; this package gives the network service something real to
// drive against, per a pluggable Scenario). It always answers with one
// canned status per request, but exercises the same accept loop, framing,
// and metrics wiring a real cache-and-dispatch daemon would need.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/andrey-malets/dist-clang/internal/pathutil"
	"github.com/andrey-malets/dist-clang/internal/wire"
)

// ErrServerClosed is returned by Serve after a call to Close.
var ErrServerClosed = errors.New("daemon: server closed")

// Scenario decides how the daemon answers one Execute request. Concrete
// caching/dispatch policy is a collaborator this package doesn't
// implement (spec.md §1); Scenario is the seam a real policy would plug
// into.
type Scenario func(req *wire.ExecuteRequest) (wire.StatusCode, string)

// AlwaysOK is a Scenario that reports every request as served from cache.
func AlwaysOK(req *wire.ExecuteRequest) (wire.StatusCode, string) {
	return wire.StatusOK, "served from cache"
}

// AlwaysInconsequent is a Scenario that always declines, so callers fall
// back to local compilation.
func AlwaysInconsequent(req *wire.ExecuteRequest) (wire.StatusCode, string) {
	return wire.StatusInconsequent, "no cache entry"
}

// AlwaysExecution is a Scenario that always reports a definitive build
// failure.
func AlwaysExecution(req *wire.ExecuteRequest) (wire.StatusCode, string) {
	return wire.StatusExecution, "remote compilation failed"
}

// Config configures a Server.
type Config struct {
	// Scenario decides the reply for every accepted Execute request.
	// Defaults to AlwaysInconsequent.
	Scenario Scenario

	// Logger receives per-connection events. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Scenario: AlwaysInconsequent,
		Logger:   slog.Default(),
	}
}

// Server accepts daemon-wire connections and answers each Execute
// request with its configured Scenario.
type Server struct {
	ln     net.Listener
	config *Config

	mu          sync.Mutex
	closed      bool
	connections map[net.Conn]struct{}
	wg          sync.WaitGroup
}

// NewServer wraps ln with the daemon protocol handler.
func NewServer(ln net.Listener, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Scenario == nil {
		config.Scenario = AlwaysInconsequent
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Server{
		ln:          ln,
		config:      config,
		connections: make(map[net.Conn]struct{}),
	}
}

// Serve accepts connections until ctx is cancelled or Close is called.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.Close()
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				s.wg.Wait()
				return ErrServerClosed
			}
			return fmt.Errorf("daemon: accept: %w", err)
		}

		s.mu.Lock()
		s.connections[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// Close stops accepting new connections and closes those in flight.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conns := make([]net.Conn, 0, len(s.connections))
	for c := range s.connections {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	err := s.ln.Close()
	for _, c := range conns {
		c.Close()
	}
	return err
}

// stageOutput demonstrates the atomic-creation contract §6 requires of
// temp files: a real cache/dispatch policy would write the compiled
// artifact here before making it visible under its final name. Actual
// caching is out of scope, so the file is created and discarded.
func (s *Server) stageOutput(req *wire.ExecuteRequest) {
	f, err := pathutil.CreateTemp(filepath.Ext(req.Flags.Output))
	if err != nil {
		s.config.Logger.Warn("daemon: staging output", "error", err)
		return
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.connections, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		msg, err := wire.ReadMessage(conn)
		if err != nil {
			return
		}
		if msg.Type != wire.MessageExecute || msg.Execute == nil {
			s.config.Logger.Warn("daemon: dropping non-execute message", "type", msg.Type)
			return
		}

		recordRequest(msg.Execute.Flags.Language)

		code, desc := s.config.Scenario(msg.Execute)
		recordReply(string(code))

		if code == wire.StatusOK {
			s.stageOutput(msg.Execute)
		}

		reply := wire.NewStatus(msg.CorrelationID, code, desc)
		if err := wire.WriteMessage(conn, reply); err != nil {
			s.config.Logger.Warn("daemon: write reply", "error", err)
			return
		}
	}
}
