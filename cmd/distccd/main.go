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

// Command distccd is the daemon process: it listens for client
// connections and answers Execute requests per its configured scenario
// (spec.md §1 notes the cache/dispatch policy itself is out of scope).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/andrey-malets/dist-clang/internal/config"
	"github.com/andrey-malets/dist-clang/internal/daemon"
	"github.com/andrey-malets/dist-clang/internal/log"
	"github.com/andrey-malets/dist-clang/internal/netsvc"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		socketPath  = flag.String("socket", "", "Unix socket path")
		tcpAddr     = flag.String("tcp", "", "TCP address to listen on")
		allowRemote = flag.Bool("allow-remote", false, "Allow binding to non-loopback addresses")
		concurrency = flag.Int("concurrency", 0, "Number of connect-completion workers")
		metricsAddr = flag.String("metrics-addr", "", "Address to serve Prometheus metrics on (empty disables)")
		scenario    = flag.String("scenario", "inconsequent", "Canned reply scenario: ok, inconsequent, execution")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("distccd %s (commit %s)\n", version, commit)
		os.Exit(0)
	}

	logger := log.New(log.FromEnv())
	slog.SetDefault(logger)

	cfg, err := config.Load(mustConfigPath())
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	if *socketPath != "" {
		cfg.Daemon.Listen.SocketPath = *socketPath
	}
	if *tcpAddr != "" {
		cfg.Daemon.Listen.TCPAddr = *tcpAddr
	}
	if *allowRemote {
		cfg.Daemon.Listen.AllowRemote = true
	}
	if *concurrency > 0 {
		cfg.Daemon.Concurrency = *concurrency
	}

	ln, err := netsvc.New(cfg.Daemon.Listen)
	if err != nil {
		logger.Error("failed to create listener", slog.Any("error", err))
		os.Exit(1)
	}
	ln = netsvc.NewRateLimitedListener(ln, 200, 50)

	pool, err := netsvc.NewConnectPool(cfg.Daemon.Concurrency)
	if err != nil {
		logger.Error("failed to create connect pool", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	srv := daemon.NewServer(ln, &daemon.Config{
		Scenario: scenarioByName(*scenario),
		Logger:   logger,
	})

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("distccd listening",
		slog.String("socket", cfg.Daemon.Listen.SocketPath),
		slog.String("tcp", cfg.Daemon.Listen.TCPAddr))

	if err := srv.Serve(ctx); err != nil && err != daemon.ErrServerClosed {
		logger.Error("daemon serve failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func scenarioByName(name string) daemon.Scenario {
	switch name {
	case "ok":
		return daemon.AlwaysOK
	case "execution":
		return daemon.AlwaysExecution
	default:
		return daemon.AlwaysInconsequent
	}
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", slog.Any("error", err))
	}
}

func mustConfigPath() string {
	path, err := config.ConfigPath()
	if err != nil {
		return ""
	}
	return path
}
