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

package driver

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnparsable is returned when a driver trace does not follow the
// grammar in spec.md §4.A: a header of informational lines followed by at
// least one indented, double-quote-quoted command line.
var ErrUnparsable = errors.New("driver: unparsable driver output")

// Result is what any Adapter implementation produces: the driver's
// version string plus the ordered list of tokenized sub-commands it would
// run for one user invocation.
type Result struct {
	Version  string
	Commands [][]string
}

// ParseTrace parses the stdout of `<compiler> -### <args...>`.
//
// Grammar (spec.md §4.A "Parsing a driver trace"):
//   - a header of informational lines, the first of which is the version
//     string;
//   - for each sub-command, one line beginning with whitespace containing
//     space-separated, double-quote-quoted tokens.
//
// Each quoted line becomes one tokenized argv, with an empty string
// prepended at position 0 (the reserved program-name slot).
func ParseTrace(trace string) (*Result, error) {
	lines := strings.Split(trace, "\n")

	var version string
	var commands [][]string

	for _, line := range lines {
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "\t") {
			if version == "" {
				version = line
			}
			continue
		}

		tokens, err := tokenizeQuotedLine(line)
		if err != nil {
			return nil, err
		}
		if len(tokens) == 0 {
			continue
		}

		argv := make([]string, 0, len(tokens)+1)
		argv = append(argv, "")
		argv = append(argv, tokens...)
		commands = append(commands, argv)
	}

	if version == "" || len(commands) == 0 {
		return nil, ErrUnparsable
	}

	return &Result{Version: version, Commands: commands}, nil
}

// tokenizeQuotedLine splits a line of the form
// `"tok1" "tok2 with spaces" "tok3"` into ["tok1", "tok2 with spaces", "tok3"].
func tokenizeQuotedLine(line string) ([]string, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil, nil
	}

	var tokens []string
	i := 0
	n := len(trimmed)
	for i < n {
		for i < n && trimmed[i] == ' ' {
			i++
		}
		if i >= n {
			break
		}
		if trimmed[i] != '"' {
			return nil, fmt.Errorf("%w: expected quoted token at %q", ErrUnparsable, trimmed[i:])
		}
		i++
		start := i
		var sb strings.Builder
		closed := false
		for i < n {
			if trimmed[i] == '"' {
				closed = true
				break
			}
			sb.WriteByte(trimmed[i])
			i++
		}
		if !closed {
			return nil, fmt.Errorf("%w: unterminated quote starting at %q", ErrUnparsable, trimmed[start-1:])
		}
		tokens = append(tokens, sb.String())
		i++ // skip closing quote
	}

	return tokens, nil
}
