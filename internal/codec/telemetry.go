// Package codec implements the flasher telemetry frame format and the outbound command encoding.
//
// Frame layout (integers little-endian):
//
//	offset  field           width
//	0       active          1      nonzero means on
//	1       flash index     1
//	2       pattern length  1      N, 0..255
//	3+2i    pattern[i]      2      milliseconds
//
// Bytes past 3+2N are ignored.
package codec

import (
	"encoding/binary"
	"fmt"
	"slices"
	"strings"
)

const (
	headerSize = 3
	entrySize  = 2

	// MaxPatternLength is the largest pattern a frame can describe.
	MaxPatternLength = 255
)

// ToggleCommand flips the device's active flag. The firmware toggles on any received packet.
var ToggleCommand = []byte{0x2A}

// TelemetryState is an immutable snapshot decoded from one frame.
// Pattern must not be mutated by holders; use Clone for a private copy.
type TelemetryState struct {
	Active     bool     `json:"active"`
	FlashIndex uint8    `json:"flash_index"`
	Pattern    []uint16 `json:"pattern"`
}

// Clone returns a deep copy.
func (s TelemetryState) Clone() TelemetryState {
	s.Pattern = slices.Clone(s.Pattern)
	if s.Pattern == nil {
		s.Pattern = []uint16{}
	}
	return s
}

// Equal reports whether both snapshots carry the same values.
func (s TelemetryState) Equal(o TelemetryState) bool {
	return s.Active == o.Active && s.FlashIndex == o.FlashIndex && slices.Equal(s.Pattern, o.Pattern)
}

func (s TelemetryState) String() string {
	state := "off"
	if s.Active {
		state = "on"
	}
	parts := make([]string, len(s.Pattern))
	for i, v := range s.Pattern {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return fmt.Sprintf("%s index=%d pattern=[%s]", state, s.FlashIndex, strings.Join(parts, " "))
}

// Decode parses a telemetry frame.
// Fails with DecodeEmpty for a zero-length buffer and DecodeTruncated when the buffer
// is shorter than the declared pattern; a partial state is never returned.
func Decode(buf []byte) (TelemetryState, error) {
	if len(buf) == 0 {
		return TelemetryState{}, &DecodeError{Kind: DecodeEmpty}
	}
	if len(buf) < headerSize {
		return TelemetryState{}, &DecodeError{Kind: DecodeTruncated, Want: headerSize, Got: len(buf)}
	}

	n := int(buf[2])
	want := headerSize + entrySize*n
	if len(buf) < want {
		return TelemetryState{}, &DecodeError{Kind: DecodeTruncated, Want: want, Got: len(buf)}
	}

	pattern := make([]uint16, n)
	for i := range pattern {
		off := headerSize + entrySize*i
		pattern[i] = binary.LittleEndian.Uint16(buf[off : off+entrySize])
	}

	return TelemetryState{
		Active:     buf[0] != 0,
		FlashIndex: buf[1],
		Pattern:    pattern,
	}, nil
}

// Marshal produces the frame a device would send for s.
func Marshal(s TelemetryState) ([]byte, error) {
	if len(s.Pattern) > MaxPatternLength {
		return nil, fmt.Errorf("pattern has %d entries, frame allows at most %d", len(s.Pattern), MaxPatternLength)
	}

	buf := make([]byte, headerSize+entrySize*len(s.Pattern))
	if s.Active {
		buf[0] = 1
	}
	buf[1] = s.FlashIndex
	buf[2] = byte(len(s.Pattern))
	for i, v := range s.Pattern {
		binary.LittleEndian.PutUint16(buf[headerSize+entrySize*i:], v)
	}
	return buf, nil
}

// Encode prepares command bytes for a transport write. The bytes are passed through
// unmodified; maxWrite is the transport's advertised limit (0 = unbounded).
func Encode(command []byte, maxWrite int) ([]byte, error) {
	if len(command) == 0 {
		return nil, &EncodeError{Kind: EncodeEmpty}
	}
	if maxWrite > 0 && len(command) > maxWrite {
		return nil, &EncodeError{Kind: EncodeTooLarge, Size: len(command), Max: maxWrite}
	}
	return slices.Clone(command), nil
}
