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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "does-not-exist.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Client.ConnectTimeout, cfg.Client.ConnectTimeout)
}

func TestLoad_ParsesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
client:
  compiler_path: /usr/bin/clang
daemon:
  concurrency: 8
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/clang", cfg.Client.CompilerPath)
	assert.Equal(t, 8, cfg.Daemon.Concurrency)
}

func TestLoad_RejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("client: [}"), 0600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_EnvOverridesPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
client:
  socket_path: /from/file.sock
  compiler_path: /from/file/clang
daemon:
  listen:
    tcp_addr: "10.0.0.1:9000"
log:
  level: warn
`), 0600))

	t.Setenv("DISTCLANG_SOCKET", "/from/env.sock")
	t.Setenv("DISTCLANG_COMPILER", "/from/env/clang")
	t.Setenv("DISTCLANG_HOST", "tcp://10.0.0.2:9001")
	t.Setenv("DISTCLANG_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/from/env.sock", cfg.Client.SocketPath)
	assert.Equal(t, "/from/env.sock", cfg.Daemon.Listen.SocketPath)
	assert.Equal(t, "/from/env/clang", cfg.Client.CompilerPath)
	assert.Equal(t, "tcp://10.0.0.2:9001", cfg.Daemon.Listen.TCPAddr)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_NoEnvLeavesFileValuesAlone(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
client:
  socket_path: /from/file.sock
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/from/file.sock", cfg.Client.SocketPath)
}

func TestValidate_RejectsNegativeConcurrency(t *testing.T) {
	cfg := Default()
	cfg.Daemon.Concurrency = -1

	err := Validate(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate_AcceptsZeroConcurrency(t *testing.T) {
	cfg := Default()
	cfg.Daemon.Concurrency = 0

	assert.NoError(t, Validate(cfg))
}
