package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"moving-head/internal/color"
	"moving-head/internal/fade"
	"moving-head/internal/servo"
)

// Servo names used by the structured form
const (
	ServoTop  = "top"
	ServoBase = "base"
)

// CommandDocument is the structured frame, e.g.
//
//	{"servo":"top","angle":45}
//	{"servo":[{"servo":"base","angle":10},{"servo":"top","angle":80}]}
//	{"led":{"r":255,"g":0,"b":0},"fade":1000,"from":{"r":0,"g":0,"b":255}}
type CommandDocument struct {
	ID      *uint32         `json:"id,omitempty"`
	Servo   json.RawMessage `json:"servo,omitempty"`
	Angle   *int            `json:"angle,omitempty"`
	LED     *ChannelLevels  `json:"led,omitempty"`
	Flicker *uint32         `json:"flicker,omitempty"`
	Fade    *uint32         `json:"fade,omitempty"`
	From    *ChannelLevels  `json:"from,omitempty"`
	Curve   *string         `json:"curve,omitempty"`
}

// ChannelLevels is an RGB object whose channels may be individually absent
type ChannelLevels struct {
	R *int `json:"r,omitempty"`
	G *int `json:"g,omitempty"`
	B *int `json:"b,omitempty"`
}

// ServoMove is one element of a servo array
type ServoMove struct {
	Servo string `json:"servo"`
	Angle *int   `json:"angle"`
}

// DecodeDocument parses a structured frame. Absent fields mean "no directive
// of that kind"; absent "from" channels default to zero. Unknown servo names
// are ignored.
func DecodeDocument(raw []byte) (*Frame, error) {
	var doc CommandDocument
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	frame := &Frame{}
	if doc.ID != nil {
		frame.Sequence = *doc.ID
		frame.Sequenced = true
	}

	moves, err := doc.servoMoves()
	if err != nil {
		return nil, err
	}
	for _, m := range moves {
		if m.Angle == nil {
			continue
		}
		switch m.Servo {
		case ServoBase:
			frame.Actuators = append(frame.Actuators, ActuatorCommand{Axis: servo.Pan, Angle: *m.Angle})
		case ServoTop:
			frame.Actuators = append(frame.Actuators, ActuatorCommand{Axis: servo.Tilt, Angle: *m.Angle})
		}
	}

	if doc.LED == nil {
		return frame, nil
	}
	if doc.LED.R == nil || doc.LED.G == nil || doc.LED.B == nil {
		return nil, fmt.Errorf("%w: led needs r, g and b", ErrMalformedFrame)
	}

	cc := &ColorCommand{Target: doc.LED.triple()}
	if doc.Flicker != nil {
		d := time.Duration(*doc.Flicker) * time.Millisecond
		cc.Flicker = &d
	}
	if doc.Fade != nil {
		d := time.Duration(*doc.Fade) * time.Millisecond
		cc.Fade = &d
		if doc.From != nil {
			cc.From = doc.From.triple()
		}
		if doc.Curve != nil {
			curve, err := fade.ParseCurve(*doc.Curve)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
			}
			cc.Curve = &curve
		}
	}
	frame.Color = cc
	return frame, nil
}

// servoMoves accepts either a servo name paired with the top-level angle or
// an array of {servo, angle} objects
func (doc *CommandDocument) servoMoves() ([]ServoMove, error) {
	raw := bytes.TrimSpace(doc.Servo)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	if raw[0] == '[' {
		var moves []ServoMove
		if err := json.Unmarshal(raw, &moves); err != nil {
			return nil, fmt.Errorf("%w: servo list: %v", ErrMalformedFrame, err)
		}
		return moves, nil
	}

	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		return nil, fmt.Errorf("%w: servo: %v", ErrMalformedFrame, err)
	}
	return []ServoMove{{Servo: name, Angle: doc.Angle}}, nil
}

func (l *ChannelLevels) triple() color.Triple {
	var t color.Triple
	if l.R != nil {
		t.R = *l.R
	}
	if l.G != nil {
		t.G = *l.G
	}
	if l.B != nil {
		t.B = *l.B
	}
	return t
}
