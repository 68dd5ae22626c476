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

// Package pathutil provides the small filesystem/environment utilities
// component A of spec.md needs: temp file creation and cwd resolution.
package pathutil

import (
	"fmt"
	"os"
)

// CreateTemp creates a uniquely named temporary file under /tmp named
// clangd-XXXXXX, optionally with the given suffix appended, mirroring
// original_source/src/base/c_utils.h's temp-file contract. The file is
// opened close-on-exec; callers own closing and removing it.
func CreateTemp(suffix string) (*os.File, error) {
	pattern := "clangd-*"
	if suffix != "" {
		pattern += suffix
	}
	f, err := os.CreateTemp("/tmp", pattern)
	if err != nil {
		return nil, fmt.Errorf("pathutil: create temp file: %w", err)
	}
	if err := setCloseOnExec(f); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("pathutil: set close-on-exec: %w", err)
	}
	return f, nil
}

// Getwd resolves the current working directory. It exists as a thin
// wrapper so callers depend on this package rather than os directly,
// matching the shape of a real client's path/env utility layer.
func Getwd() (string, error) {
	return os.Getwd()
}
