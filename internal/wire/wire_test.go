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

package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrey-malets/dist-clang/internal/flags"
)

func TestFromFlagRecord(t *testing.T) {
	c := flags.NewClassifier(nil)
	rec, err := c.Classify([]string{"", "clang", "-cc1", "-o", "a.o", "a.c"})
	require.NoError(t, err)

	payload := FromFlagRecord(rec)
	assert.Equal(t, "clang", payload.CompilerPath)
	assert.Equal(t, "a.c", payload.Input)
	assert.Equal(t, "a.o", payload.Output)
}

func TestMessageRoundTrip_Execute(t *testing.T) {
	payload := FlagPayload{CompilerPath: "clang", Input: "a.c", Output: "a.o"}
	msg := NewExecute(payload, "/build", false)
	require.NotEmpty(t, msg.CorrelationID)

	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, msg))

	got, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, MessageExecute, got.Type)
	assert.Equal(t, msg.CorrelationID, got.CorrelationID)
	assert.Equal(t, "a.c", got.Execute.Flags.Input)
	assert.Equal(t, "/build", got.Execute.CurrentDir)
}

func TestMessageRoundTrip_Status(t *testing.T) {
	msg := NewStatus("corr-1", StatusInconsequent, "cache miss")

	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, msg))

	got, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, MessageStatus, got.Type)
	assert.Equal(t, StatusInconsequent, got.Status.Code)
	assert.Equal(t, "cache miss", got.Status.Description)
}

func TestMessageRoundTrip_MultipleFrames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, NewStatus("a", StatusOK, "")))
	require.NoError(t, WriteMessage(&buf, NewStatus("b", StatusExecution, "boom")))

	first, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, "a", first.CorrelationID)

	second, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, "b", second.CorrelationID)
	assert.Equal(t, StatusExecution, second.Status.Code)
}

func TestParseMessage_UnknownType(t *testing.T) {
	_, err := ParseMessage([]byte(`{"type":"bogus","correlation_id":"x"}`))
	require.Error(t, err)
}

func TestParseMessage_ExecuteMissingInput(t *testing.T) {
	_, err := ParseMessage([]byte(`{"type":"execute","correlation_id":"x","execute":{"flags":{"compiler_path":"clang"},"current_dir":"/"}}`))
	require.Error(t, err)
}

func TestParseMessage_StatusMissingPayload(t *testing.T) {
	_, err := ParseMessage([]byte(`{"type":"status","correlation_id":"x"}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingStatus)
}

func TestReadMessage_FrameTooLarge(t *testing.T) {
	var buf bytes.Buffer
	header := []byte{0xff, 0xff, 0xff, 0xff}
	buf.Write(header)

	_, err := ReadMessage(&buf)
	require.Error(t, err)
}
