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

// Package client implements the client driver (spec.md §4.E, component F):
// it orchestrates the driver adapter, the flag classifier, and one
// synchronous round trip to the daemon, then reports what the caller
// should do next.
package client

import (
	"context"
	"net"
	"os"

	"github.com/andrey-malets/dist-clang/internal/driver"
	"github.com/andrey-malets/dist-clang/internal/flags"
	"github.com/andrey-malets/dist-clang/internal/netsvc"
	"github.com/andrey-malets/dist-clang/internal/pathutil"
	"github.com/andrey-malets/dist-clang/internal/wire"
)

// Outcome is what DoMain decided the caller should do.
type Outcome string

const (
	// OutcomeFallback means exec the real compiler locally.
	OutcomeFallback Outcome = "fallback"

	// OutcomeCompleted means the daemon finished the build; do not exec
	// locally.
	OutcomeCompleted Outcome = "completed"

	// OutcomeExecutionFailure means the daemon definitively failed the
	// build; terminate with exit 1, never fall back.
	OutcomeExecutionFailure Outcome = "execution_failure"
)

// Deps collects DoMain's external collaborators so tests can substitute
// fakes for the driver adapter, the daemon connection, and the two
// syscalls DoMain otherwise makes directly.
type Deps struct {
	Adapter    driver.Adapter
	Classifier *flags.Classifier

	// Dial opens the synchronous connection to socketPath (spec.md §4.E
	// step 5, ConnectSync).
	Dial func(ctx context.Context, socketPath string) (net.Conn, error)

	// Getwd returns the current working directory for the request
	// record (step 6).
	Getwd func() (string, error)

	// StatInput reports whether the classified input file exists
	// (step 4). A non-nil error means "does not exist" for DoMain's
	// purposes.
	StatInput func(path string) error
}

// NewDeps returns Deps wired to the real filesystem and a Unix-socket
// ConnectSync dial.
func NewDeps(adapter driver.Adapter, classifier *flags.Classifier) *Deps {
	return &Deps{
		Adapter:    adapter,
		Classifier: classifier,
		Dial: func(ctx context.Context, socketPath string) (net.Conn, error) {
			return netsvc.ConnectSync(ctx, "unix", socketPath)
		},
		Getwd: pathutil.Getwd,
		StatInput: func(path string) error {
			_, err := os.Stat(path)
			return err
		},
	}
}

// DoMain runs the algorithm of spec.md §4.E for one compiler invocation.
// argv is the user's original command line (argv[0] is the compiler the
// wrapper was invoked as). compilerPath, when non-empty, overrides the
// compiler identity sent to the daemon (the wrapper's caller may know a
// more authoritative path than what appears in argv[0]).
//
// Multi-command expansions are an open extension (spec.md §9); this
// implementation always falls back for them rather than guessing which
// sub-command to classify.
func DoMain(ctx context.Context, deps *Deps, argv []string, socketPath, compilerPath string) Outcome {
	result, err := deps.Adapter.Expand(ctx, argv)
	if err != nil {
		return OutcomeFallback
	}

	if len(result.Commands) != 1 {
		return OutcomeFallback
	}

	rec, err := deps.Classifier.Classify(result.Commands[0])
	if err != nil {
		return OutcomeFallback
	}
	rec.Compiler.Version = result.Version

	if socketPath == "" {
		return OutcomeFallback
	}

	if err := deps.StatInput(rec.Input); err != nil {
		return OutcomeFallback
	}

	conn, err := deps.Dial(ctx, socketPath)
	if err != nil {
		return OutcomeFallback
	}
	defer conn.Close()

	cwd, err := deps.Getwd()
	if err != nil {
		cwd = ""
	}

	payload := wire.FromFlagRecord(rec)
	if compilerPath != "" {
		payload.CompilerPath = compilerPath
	}

	req := wire.NewExecute(payload, cwd, false)
	if err := wire.WriteMessage(conn, req); err != nil {
		return OutcomeFallback
	}

	reply, err := wire.ReadMessage(conn)
	if err != nil {
		return OutcomeFallback
	}
	if reply.Type != wire.MessageStatus || reply.Status == nil {
		return OutcomeFallback
	}

	switch reply.Status.Code {
	case wire.StatusOK:
		return OutcomeCompleted
	case wire.StatusExecution:
		return OutcomeExecutionFailure
	default:
		return OutcomeFallback
	}
}
