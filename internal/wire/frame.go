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
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize bounds a single frame's payload so a corrupt or hostile
// peer cannot force an unbounded allocation.
const MaxFrameSize = 16 * 1024 * 1024

// WriteMessage writes m to w as one length-prefixed frame:
// [length: 4 bytes big-endian][json payload].
func WriteMessage(w io.Writer, m *Message) error {
	payload, err := m.Marshal()
	if err != nil {
		return fmt.Errorf("wire: marshal message: %w", err)
	}
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("wire: message of %d bytes exceeds max frame size", len(payload))
	}

	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(payload)))
	copy(frame[4:], payload)

	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("wire: write frame: %w", err)
	}
	return nil
}

// ReadMessage reads one length-prefixed frame from r and decodes it.
func ReadMessage(r io.Reader) (*Message, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("wire: read frame header: %w", err)
	}

	length := binary.BigEndian.Uint32(header[:])
	if length > MaxFrameSize {
		return nil, fmt.Errorf("wire: frame of %d bytes exceeds max frame size", length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("wire: read frame payload: %w", err)
	}

	return ParseMessage(payload)
}
