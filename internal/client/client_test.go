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

package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrey-malets/dist-clang/internal/driver"
	"github.com/andrey-malets/dist-clang/internal/flags"
	"github.com/andrey-malets/dist-clang/internal/wire"
)

var errBoom = errors.New("boom")

type fakeAdapter struct {
	result *driver.Result
	err    error
}

func (a *fakeAdapter) Expand(ctx context.Context, argv []string) (*driver.Result, error) {
	return a.result, a.err
}

func singleCommandResult() *driver.Result {
	return &driver.Result{
		Version:  "clang version 3.4",
		Commands: [][]string{{"", "clang", "-cc1", "-o", "a.o", "a.c"}},
	}
}

// fakeConn is a minimal net.Conn double whose Write/Read behavior is
// configured per test, so DoMain's fall-back decisions can be driven
// deterministically without a real socket.
type fakeConn struct {
	writeErr error
	writeN   int
	written  bytes.Buffer
	readBuf  *bytes.Buffer
	readErr  error
	closed   bool
}

func (c *fakeConn) Read(p []byte) (int, error) {
	if c.readErr != nil {
		return 0, c.readErr
	}
	return c.readBuf.Read(p)
}

func (c *fakeConn) Write(p []byte) (int, error) {
	c.writeN++
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	c.written.Write(p)
	return len(p), nil
}

func (c *fakeConn) Close() error                       { c.closed = true; return nil }
func (c *fakeConn) LocalAddr() net.Addr                { return nil }
func (c *fakeConn) RemoteAddr() net.Addr               { return nil }
func (c *fakeConn) SetDeadline(t time.Time) error      { return nil }
func (c *fakeConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(t time.Time) error { return nil }

func statusConn(t *testing.T, code wire.StatusCode) *fakeConn {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, wire.WriteMessage(&buf, wire.NewStatus("corr", code, "")))
	return &fakeConn{readBuf: &buf}
}

func testDeps(t *testing.T, adapter driver.Adapter, dial func(ctx context.Context, socketPath string) (net.Conn, error)) *Deps {
	t.Helper()
	return &Deps{
		Adapter:    adapter,
		Classifier: flags.NewClassifier(nil),
		Dial:       dial,
		Getwd:      func() (string, error) { return "/build", nil },
		StatInput:  func(path string) error { return nil },
	}
}

func TestDoMain_S3_NoConnect(t *testing.T) {
	connectCount := 0
	deps := testDeps(t, &fakeAdapter{result: singleCommandResult()}, func(ctx context.Context, socketPath string) (net.Conn, error) {
		connectCount++
		return nil, errBoom
	})

	outcome := DoMain(context.Background(), deps, []string{"clang", "-c", "a.c"}, "/tmp/d.sock", "")
	assert.Equal(t, OutcomeFallback, outcome)
	assert.Equal(t, 1, connectCount)
}

func TestDoMain_S4_SendFailure(t *testing.T) {
	conn := &fakeConn{writeErr: errBoom}
	deps := testDeps(t, &fakeAdapter{result: singleCommandResult()}, func(ctx context.Context, socketPath string) (net.Conn, error) {
		return conn, nil
	})

	outcome := DoMain(context.Background(), deps, []string{"clang", "-c", "a.c"}, "/tmp/d.sock", "")
	assert.Equal(t, OutcomeFallback, outcome)
	assert.Equal(t, 1, conn.writeN)
	assert.True(t, conn.closed)
}

func TestDoMain_S5_Inconsequent(t *testing.T) {
	conn := statusConn(t, wire.StatusInconsequent)
	deps := testDeps(t, &fakeAdapter{result: singleCommandResult()}, func(ctx context.Context, socketPath string) (net.Conn, error) {
		return conn, nil
	})

	outcome := DoMain(context.Background(), deps, []string{"clang", "-c", "a.c"}, "/tmp/d.sock", "")
	assert.Equal(t, OutcomeFallback, outcome)
	assert.Equal(t, 1, conn.writeN)
}

func TestDoMain_S6_ExecutionFailure(t *testing.T) {
	conn := statusConn(t, wire.StatusExecution)
	deps := testDeps(t, &fakeAdapter{result: singleCommandResult()}, func(ctx context.Context, socketPath string) (net.Conn, error) {
		return conn, nil
	})

	outcome := DoMain(context.Background(), deps, []string{"clang", "-c", "a.c"}, "/tmp/d.sock", "")
	assert.Equal(t, OutcomeExecutionFailure, outcome)
}

func TestDoMain_S7_Success(t *testing.T) {
	conn := statusConn(t, wire.StatusOK)
	deps := testDeps(t, &fakeAdapter{result: singleCommandResult()}, func(ctx context.Context, socketPath string) (net.Conn, error) {
		return conn, nil
	})

	outcome := DoMain(context.Background(), deps, []string{"clang", "-c", "a.c"}, "/tmp/d.sock", "")
	assert.Equal(t, OutcomeCompleted, outcome)
}

func TestDoMain_ExpandFailure_FallsBack(t *testing.T) {
	deps := testDeps(t, &fakeAdapter{err: errBoom}, nil)
	outcome := DoMain(context.Background(), deps, []string{"clang", "-c", "a.c"}, "/tmp/d.sock", "")
	assert.Equal(t, OutcomeFallback, outcome)
}

func TestDoMain_MultiCommand_AlwaysFallsBack(t *testing.T) {
	result := &driver.Result{
		Version: "clang version 3.4",
		Commands: [][]string{
			{"", "clang", "-cc1", "-o", "a.o", "a.c"},
			{"", "objcopy", "--strip-all", "a.o", "b.o"},
		},
	}
	deps := testDeps(t, &fakeAdapter{result: result}, nil)
	outcome := DoMain(context.Background(), deps, []string{"clang", "-c", "a.c"}, "/tmp/d.sock", "")
	assert.Equal(t, OutcomeFallback, outcome)
}

func TestDoMain_EmptySocketPath_FallsBack(t *testing.T) {
	deps := testDeps(t, &fakeAdapter{result: singleCommandResult()}, nil)
	outcome := DoMain(context.Background(), deps, []string{"clang", "-c", "a.c"}, "", "")
	assert.Equal(t, OutcomeFallback, outcome)
}

func TestDoMain_MissingInputFile_FallsBack(t *testing.T) {
	deps := testDeps(t, &fakeAdapter{result: singleCommandResult()}, nil)
	deps.StatInput = func(path string) error { return io.ErrUnexpectedEOF }
	outcome := DoMain(context.Background(), deps, []string{"clang", "-c", "a.c"}, "/tmp/d.sock", "")
	assert.Equal(t, OutcomeFallback, outcome)
}

func TestDoMain_PopulatesCompilerVersion(t *testing.T) {
	reply := &bytes.Buffer{}
	require.NoError(t, wire.WriteMessage(reply, wire.NewStatus("corr", wire.StatusOK, "")))
	conn := &fakeConn{readBuf: reply}

	deps := testDeps(t, &fakeAdapter{result: singleCommandResult()}, func(ctx context.Context, socketPath string) (net.Conn, error) {
		return conn, nil
	})

	outcome := DoMain(context.Background(), deps, []string{"clang", "-c", "a.c"}, "/tmp/d.sock", "")
	assert.Equal(t, OutcomeCompleted, outcome)

	req, err := wire.ReadMessage(&conn.written)
	require.NoError(t, err)
	assert.Equal(t, "clang version 3.4", req.Execute.Flags.CompilerVersion)
}

func TestDoMain_CompilerPathOverride(t *testing.T) {
	var buf bytes.Buffer
	conn := &fakeConn{readBuf: &buf}
	// capture the write, then hand back an OK status
	deps := testDeps(t, &fakeAdapter{result: singleCommandResult()}, func(ctx context.Context, socketPath string) (net.Conn, error) {
		return conn, nil
	})

	statusBuf := &bytes.Buffer{}
	require.NoError(t, wire.WriteMessage(statusBuf, wire.NewStatus("corr", wire.StatusOK, "")))
	conn.readBuf = statusBuf

	outcome := DoMain(context.Background(), deps, []string{"clang", "-c", "a.c"}, "/tmp/d.sock", "/opt/clang/bin/clang")
	assert.Equal(t, OutcomeCompleted, outcome)
}
