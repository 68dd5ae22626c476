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
)

// ConfigDir returns the XDG config directory for dist-clang.
// Respects XDG_CONFIG_HOME, falling back to ~/.config.
func ConfigDir() (string, error) {
	var base string

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		base = xdg
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}

	dir := filepath.Join(base, "dist-clang")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}

// ConfigPath returns the full path to the default config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// RuntimeSocketPath returns the default daemon socket path, preferring
// XDG_RUNTIME_DIR when it is set (the same precedence the teacher project
// uses for its own daemon socket default).
func RuntimeSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "dist-clang", "daemon.sock")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/dist-clang/daemon.sock"
	}
	return filepath.Join(home, ".dist-clang", "daemon.sock")
}
