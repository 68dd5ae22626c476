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

// Package wire defines the daemon wire message (spec.md §6 "Daemon wire")
// and its length-framed encoding. The concrete wire schema is treated as
// an opaque structured record by the rest of the core (spec.md §1); this
// package is the one place that gives it a shape.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/andrey-malets/dist-clang/internal/flags"
)

// ErrMissingStatus is returned when a reply is read successfully but
// carries no status field (spec.md §7 "Protocol errors").
var ErrMissingStatus = errors.New("wire: reply missing status field")

// StatusCode is the daemon's terminal disposition for one Execute request.
type StatusCode string

const (
	// StatusOK means the daemon completed the request; the client must
	// not fall back to local execution.
	StatusOK StatusCode = "OK"

	// StatusInconsequent means the daemon declined the request for a
	// reason that does not indict the build; the client falls back.
	StatusInconsequent StatusCode = "INCONSEQUENT"

	// StatusExecution means the daemon definitively failed the build;
	// the client must not retry locally.
	StatusExecution StatusCode = "EXECUTION"
)

// MessageType identifies which payload a Message carries.
type MessageType string

const (
	MessageExecute MessageType = "execute"
	MessageStatus  MessageType = "status"
)

// FlagPayload is the wire representation of a flags.Record.
type FlagPayload struct {
	CompilerPath    string   `json:"compiler_path"`
	CompilerVersion string   `json:"compiler_version,omitempty"`
	CompilerPlugins []string `json:"compiler_plugins,omitempty"`

	Input    string `json:"input"`
	Output   string `json:"output,omitempty"`
	Action   string `json:"action,omitempty"`
	Language string `json:"language,omitempty"`
	DepsFile string `json:"deps_file,omitempty"`

	Other     []string `json:"other,omitempty"`
	NonCached []string `json:"non_cached,omitempty"`
	CCOnly    []string `json:"cc_only,omitempty"`
}

// FromFlagRecord converts a classified flags.Record into its wire form.
func FromFlagRecord(r *flags.Record) FlagPayload {
	return FlagPayload{
		CompilerPath:    r.Compiler.Path,
		CompilerVersion: r.Compiler.Version,
		CompilerPlugins: r.Compiler.Plugins,
		Input:           r.Input,
		Output:          r.Output,
		Action:          r.Action,
		Language:        r.Language,
		DepsFile:        r.DepsFile,
		Other:           r.Other,
		NonCached:       r.NonCached,
		CCOnly:          r.CCOnly,
	}
}

// ExecuteRequest is sent by the client to request (cached or remote)
// execution of one compiler sub-command.
type ExecuteRequest struct {
	Flags      FlagPayload `json:"flags"`
	CurrentDir string      `json:"current_dir"`
	Remote     bool        `json:"remote"`
}

// StatusReply is the daemon's response to an ExecuteRequest.
type StatusReply struct {
	Code        StatusCode `json:"code"`
	Description string     `json:"description,omitempty"`
}

// Message is the single envelope type exchanged over the socket. Exactly
// one of Execute or Status is populated, selected by Type.
type Message struct {
	Type          MessageType     `json:"type"`
	CorrelationID string          `json:"correlation_id"`
	Execute       *ExecuteRequest `json:"execute,omitempty"`
	Status        *StatusReply    `json:"status,omitempty"`
}

// NewExecute builds an Execute message with a freshly generated
// correlation ID.
func NewExecute(payload FlagPayload, currentDir string, remote bool) *Message {
	return &Message{
		Type:          MessageExecute,
		CorrelationID: uuid.New().String(),
		Execute: &ExecuteRequest{
			Flags:      payload,
			CurrentDir: currentDir,
			Remote:     remote,
		},
	}
}

// NewStatus builds a Status message replying to correlationID.
func NewStatus(correlationID string, code StatusCode, description string) *Message {
	return &Message{
		Type:          MessageStatus,
		CorrelationID: correlationID,
		Status: &StatusReply{
			Code:        code,
			Description: description,
		},
	}
}

// Validate checks that a decoded message is well-formed for its type.
func (m *Message) Validate() error {
	switch m.Type {
	case MessageExecute:
		if m.Execute == nil {
			return fmt.Errorf("wire: execute message missing payload")
		}
		if m.Execute.Flags.Input == "" {
			return fmt.Errorf("wire: execute message missing input")
		}
	case MessageStatus:
		if m.Status == nil {
			return ErrMissingStatus
		}
	default:
		return fmt.Errorf("wire: unknown message type %q", m.Type)
	}
	return nil
}

// Marshal encodes the message to JSON.
func (m *Message) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage decodes and validates a JSON message.
func ParseMessage(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("wire: invalid message: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
