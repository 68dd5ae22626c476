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

// Command distccc is the client wrapper: it is exec'd in place of the
// real compiler, tries to have the daemon satisfy the build, and falls
// back to the real compiler locally otherwise (spec.md §4.E).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/andrey-malets/dist-clang/internal/client"
	"github.com/andrey-malets/dist-clang/internal/config"
	"github.com/andrey-malets/dist-clang/internal/driver"
	"github.com/andrey-malets/dist-clang/internal/flags"
	"github.com/andrey-malets/dist-clang/internal/log"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "distccc:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var showVersion bool

	cmd := &cobra.Command{
		Use:                "distccc [compiler args...]",
		Short:              "Distributed compilation client wrapper",
		DisableFlagParsing: true, // every arg belongs to the wrapped compiler
		SilenceUsage:       true,
		SilenceErrors:      true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 && (args[0] == "--version" || args[0] == "-v") {
				showVersion = true
			}
			if showVersion {
				fmt.Printf("distccc %s (commit %s)\n", version, commit)
				return nil
			}
			return run(args)
		},
	}

	return cmd
}

func run(compilerArgs []string) error {
	logger := log.New(log.FromEnv())
	slog.SetDefault(logger)

	cfg, err := config.Load(mustConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg.Client.CompilerPath == "" {
		return fmt.Errorf("distccc: no compiler configured (set DISTCLANG_COMPILER or client.compiler_path)")
	}
	argv := append([]string{cfg.Client.CompilerPath}, compilerArgs...)

	deps := client.NewDeps(driver.NewTraceAdapter(), flags.NewClassifier(cfg.Daemon.NonCachedFlags))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Client.ConnectTimeout+5*time.Second)
	defer cancel()

	outcome := client.DoMain(ctx, deps, argv, cfg.Client.SocketPath, cfg.Client.CompilerPath)

	switch outcome {
	case client.OutcomeCompleted:
		logger.Debug("distccc: completed by daemon")
		return nil
	case client.OutcomeExecutionFailure:
		os.Exit(1)
	}

	return execLocal(cfg.Client.CompilerPath, compilerArgs)
}

// execLocal replaces the current process with the real compiler, the way
// a transparent wrapper must: the compiler's own exit code has to reach
// the build system unchanged.
func execLocal(compilerPath string, args []string) error {
	if compilerPath == "" {
		return fmt.Errorf("distccc: no local compiler configured to fall back to")
	}

	argv := append([]string{compilerPath}, args...)
	return syscall.Exec(compilerPath, argv, os.Environ())
}

func mustConfigPath() string {
	path, err := config.ConfigPath()
	if err != nil {
		return ""
	}
	return path
}
