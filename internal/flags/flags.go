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

// Package flags classifies a tokenized compiler sub-command into the
// partitioned flag record used as a cache key and as the payload of a
// remote execution request (spec.md §3, §4.A).
package flags

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownArgument is returned when a token is not in the classifier's
// recognized vocabulary.
var ErrUnknownArgument = errors.New("flags: unknown argument")

// ErrMissingValue is returned when a flag that requires a value is the
// last token, or when no input file was found in the command.
var ErrMissingValue = errors.New("flags: missing argument value")

// Compiler identifies the compiler binary that produced a sub-command.
type Compiler struct {
	Path    string
	Version string
	Plugins []string
}

// Record is the structured, partitioned representation of one compiler
// sub-command, suitable as a cache key and for remote execution.
type Record struct {
	Compiler Compiler

	Input    string
	Output   string
	Action   string
	Language string
	DepsFile string

	// Other holds cacheable flags (spellings and values, in input order).
	Other []string

	// NonCached holds flags whose values must be forwarded but must not
	// influence the cache key (spellings and values, in input order).
	NonCached []string

	// CCOnly holds flags relevant only to local assembly/codegen, never
	// forwarded to remote preprocessing.
	CCOnly []string

	// argv is the original tokenized sub-command, kept for Render.
	argv []string
}

// Render reconstructs the full space-joined argument list, in original
// order, the way original_source's Command::RenderAllArgs does. Element 0
// (the program path slot) is excluded.
func (r *Record) Render() string {
	if len(r.argv) <= 1 {
		return ""
	}
	return strings.Join(r.argv[1:], " ")
}

type arity int

const (
	arityNone arity = 0
	arityOne  arity = 1
)

type role int

const (
	roleOther role = iota // candidate for the cacheable/non-cached partition
	rolePluginAdd
	roleAction
	roleDepsFile
	roleDrop
	roleCCOnly
	roleOutput
	roleLanguage
)

type flagSpec struct {
	arity arity
	role  role
}

// knownFlags is the classifier's fixed vocabulary. Any token starting with
// "-" that is absent from this table is an unknown argument (spec.md §4.A
// rule 11). New cacheable/non-cached flags can be added here; whether an
// "other" flag lands in the cacheable or non-cached partition is policy,
// controlled separately by defaultNonCachedFlags / Classifier.NonCached.
var knownFlags = map[string]flagSpec{
	// structural
	"-add-plugin":      {arityOne, rolePluginAdd},
	"-emit-obj":        {arityNone, roleAction},
	"-E":               {arityNone, roleAction},
	"-dependency-file": {arityOne, roleDepsFile},
	"-load":            {arityOne, roleDrop},
	"-mrelax-all":      {arityNone, roleCCOnly},
	"-o":               {arityOne, roleOutput},
	"-x":               {arityOne, roleLanguage},

	// candidates for the cacheable/non-cached partition (policy decides)
	"-coverage-file":             {arityOne, roleOther},
	"-fdebug-compilation-dir":    {arityOne, roleOther},
	"-ferror-limit":              {arityOne, roleOther},
	"-include":                   {arityOne, roleOther},
	"-internal-isystem":          {arityOne, roleOther},
	"-internal-externc-isystem":  {arityOne, roleOther},
	"-isysroot":                  {arityOne, roleOther},
	"-main-file-name":            {arityOne, roleOther},
	"-MF":                        {arityOne, roleOther},
	"-MMD":                       {arityNone, roleOther},
	"-MT":                        {arityOne, roleOther},
	"-resource-dir":              {arityOne, roleOther},

	"-cc1":                      {arityNone, roleOther},
	"-triple":                   {arityOne, roleOther},
	"-disable-free":             {arityNone, roleOther},
	"-mrelocation-model":        {arityOne, roleOther},
	"-mdisable-fp-elim":         {arityNone, roleOther},
	"-fmath-errno":              {arityNone, roleOther},
	"-masm-verbose":             {arityNone, roleOther},
	"-mconstructor-aliases":     {arityNone, roleOther},
	"-munwind-tables":           {arityNone, roleOther},
	"-fuse-init-array":          {arityNone, roleOther},
	"-target-cpu":               {arityOne, roleOther},
	"-target-linker-version":    {arityOne, roleOther},
	"-fdeprecated-macro":        {arityNone, roleOther},
	"-fmessage-length":          {arityOne, roleOther},
	"-mstackrealign":            {arityNone, roleOther},
	"-fobjc-runtime=gcc":        {arityNone, roleOther},
	"-fcxx-exceptions":          {arityNone, roleOther},
	"-fexceptions":              {arityNone, roleOther},
	"-fdiagnostics-show-option": {arityNone, roleOther},
	"-fcolor-diagnostics":       {arityNone, roleOther},
	"-vectorize-slp":            {arityNone, roleOther},
}

// defaultNonCachedFlags is the built-in cache-key exclusion list from
// spec.md §3 ("non_cached"). It names spellings only; the classifier's
// structure never changes when this set changes (spec.md §9).
func defaultNonCachedFlags() map[string]bool {
	return map[string]bool{
		"-coverage-file":            true,
		"-fdebug-compilation-dir":   true,
		"-ferror-limit":             true,
		"-include":                  true,
		"-internal-isystem":         true,
		"-internal-externc-isystem": true,
		"-isysroot":                 true,
		"-main-file-name":           true,
		"-MF":                       true,
		"-MMD":                      true,
		"-MT":                       true,
		"-resource-dir":             true,
	}
}

// Classifier classifies sub-commands using a configurable non-cached set.
type Classifier struct {
	nonCached map[string]bool
}

// NewClassifier builds a Classifier. If extra is non-nil, its entries are
// merged into the built-in non-cached set (additive override), giving
// operators a way to widen the cache-key exclusion policy without
// touching classification mechanism.
func NewClassifier(extra []string) *Classifier {
	set := defaultNonCachedFlags()
	for _, name := range extra {
		set[name] = true
	}
	return &Classifier{nonCached: set}
}

// Classify walks argv (element 0 is the reserved program-name slot that
// ParseTrace leaves empty, element 1 is the compiler path; neither is
// itself a flag) and produces a Record, or an error naming the offending
// token.
func (c *Classifier) Classify(argv []string) (*Record, error) {
	rec := &Record{argv: argv}
	if len(argv) > 1 {
		rec.Compiler.Path = argv[1]
	}

	sawInput := false
	for i := 2; i < len(argv); {
		tok := argv[i]

		if !strings.HasPrefix(tok, "-") {
			if sawInput {
				return nil, fmt.Errorf("%w: multiple input files (%q and %q)", ErrUnknownArgument, rec.Input, tok)
			}
			rec.Input = tok
			sawInput = true
			i++
			continue
		}

		spec, ok := knownFlags[tok]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownArgument, tok)
		}

		var value string
		if spec.arity == arityOne {
			if i+1 >= len(argv) {
				return nil, fmt.Errorf("%w: %s", ErrMissingValue, tok)
			}
			value = argv[i+1]
		}

		switch spec.role {
		case rolePluginAdd:
			rec.Other = append(rec.Other, tok, value)
			rec.Compiler.Plugins = append(rec.Compiler.Plugins, value)
		case roleAction:
			rec.Action = tok
		case roleDepsFile:
			rec.DepsFile = value
		case roleDrop:
			// dropped entirely, per spec.md §4.A rule 5
		case roleCCOnly:
			rec.CCOnly = append(rec.CCOnly, tok)
		case roleOutput:
			rec.Output = value
		case roleLanguage:
			rec.Language = value
		default:
			dest := &rec.Other
			if c.nonCached[tok] {
				dest = &rec.NonCached
			}
			*dest = append(*dest, tok)
			if spec.arity == arityOne {
				*dest = append(*dest, value)
			}
		}

		i += 1 + int(spec.arity)
	}

	if !sawInput {
		return nil, fmt.Errorf("%w: no input file in command", ErrMissingValue)
	}

	return rec, nil
}
