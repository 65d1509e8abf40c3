package protocol

import (
	"bytes"
	"errors"
	"time"

	"moving-head/internal/color"
	"moving-head/internal/fade"
	"moving-head/internal/servo"
)

// ErrMalformedFrame is returned, wrapped, for structurally invalid input
var ErrMalformedFrame = errors.New("malformed frame")

// Encoding identifies the wire form of a raw frame
type Encoding int

const (
	// Tokens is the flat `<id>;key=value;...` form used over datagrams
	Tokens Encoding = iota
	// Document is the structured JSON form used over sockets
	Document
)

func (e Encoding) String() string {
	if e == Document {
		return "document"
	}
	return "tokens"
}

// Detect guesses the encoding from the first non-space byte
func Detect(raw []byte) Encoding {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return Document
	}
	return Tokens
}

// ActuatorCommand moves one axis to an angle. The angle is clamped when
// applied, not when decoded.
type ActuatorCommand struct {
	Axis  servo.Axis
	Angle int
}

// ColorCommand is the single color directive a frame may carry. When both
// Flicker and Fade are set the dispatcher honors Flicker only.
type ColorCommand struct {
	Target  color.Triple
	Flicker *time.Duration
	Fade    *time.Duration
	// From is the fade source; unset channels are zero
	From  color.Triple
	Curve *fade.Curve
}

// Frame is one decoded command message
type Frame struct {
	Sequence uint32
	// Sequenced is false for structured frames sent without an id
	Sequenced bool
	// Actuators are applied in order
	Actuators []ActuatorCommand
	Color     *ColorCommand
}

// Decode parses raw using the given encoding
func Decode(raw []byte, enc Encoding) (*Frame, error) {
	if enc == Document {
		return DecodeDocument(raw)
	}
	return DecodeTokens(raw)
}
