package protocol

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"moving-head/internal/color"
	"moving-head/internal/fade"
	"moving-head/internal/servo"
)

// MaxTokens bounds the work done per flat-token frame. Anything after the
// last permitted separator is dropped.
const MaxTokens = 20

// Flat-token keys
const (
	KeyBaseServo = "bS"
	KeyTopServo  = "tS"
	KeyRed       = "r"
	KeyGreen     = "g"
	KeyBlue      = "b"
	KeyFlicker   = "fl"
	KeyFade      = "fa"
	KeyFromRed   = "fr"
	KeyFromGreen = "fg"
	KeyFromBlue  = "fb"
	KeyCurve     = "fc"
)

// DecodeTokens parses `<id>;key=value;key=value;...`. Unknown keys and
// tokens without '=' are ignored. Recognized keys must carry integers, and
// r, g and b must appear together.
func DecodeTokens(raw []byte) (*Frame, error) {
	text := strings.TrimSpace(strings.TrimRight(string(raw), "\x00"))
	if text == "" {
		return nil, fmt.Errorf("%w: empty frame", ErrMalformedFrame)
	}

	tokens := splitTokens(text)

	id, err := strconv.ParseUint(strings.TrimSpace(tokens[0]), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: sequence id %q", ErrMalformedFrame, tokens[0])
	}
	frame := &Frame{Sequence: uint32(id), Sequenced: true}

	args := make(map[string]string, len(tokens)-1)
	for _, tok := range tokens[1:] {
		key, value, ok := strings.Cut(tok, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case KeyBaseServo, KeyTopServo:
			angle, err := tokenInt(key, value)
			if err != nil {
				return nil, err
			}
			axis := servo.Pan
			if key == KeyTopServo {
				axis = servo.Tilt
			}
			frame.Actuators = append(frame.Actuators, ActuatorCommand{Axis: axis, Angle: angle})
		default:
			args[key] = value
		}
	}

	cc, err := tokenColor(args)
	if err != nil {
		return nil, err
	}
	frame.Color = cc
	return frame, nil
}

func splitTokens(text string) []string {
	tokens := make([]string, 0, MaxTokens)
	for len(tokens) < MaxTokens {
		tok, rest, found := strings.Cut(text, ";")
		tokens = append(tokens, tok)
		if !found {
			break
		}
		text = rest
	}
	return tokens
}

func tokenColor(args map[string]string) (*ColorCommand, error) {
	channels := []string{KeyRed, KeyGreen, KeyBlue}
	present := 0
	for _, k := range channels {
		if _, ok := args[k]; ok {
			present++
		}
	}
	if present == 0 {
		return nil, nil
	}
	if present != len(channels) {
		return nil, fmt.Errorf("%w: r, g and b must be sent together", ErrMalformedFrame)
	}

	var cc ColorCommand
	var err error
	if cc.Target, err = tokenTriple(args, KeyRed, KeyGreen, KeyBlue); err != nil {
		return nil, err
	}

	if v, ok := args[KeyFlicker]; ok {
		d, err := tokenDuration(KeyFlicker, v)
		if err != nil {
			return nil, err
		}
		cc.Flicker = &d
	}

	if v, ok := args[KeyFade]; ok {
		d, err := tokenDuration(KeyFade, v)
		if err != nil {
			return nil, err
		}
		cc.Fade = &d
		if cc.From, err = tokenTriple(args, KeyFromRed, KeyFromGreen, KeyFromBlue); err != nil {
			return nil, err
		}
		if name, ok := args[KeyCurve]; ok {
			curve, err := fade.ParseCurve(name)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
			}
			cc.Curve = &curve
		}
	}
	return &cc, nil
}

// tokenTriple reads three channel keys; missing ones are zero
func tokenTriple(args map[string]string, r, g, b string) (color.Triple, error) {
	var levels [3]int
	for i, k := range []string{r, g, b} {
		v, ok := args[k]
		if !ok {
			continue
		}
		n, err := tokenInt(k, v)
		if err != nil {
			return color.Triple{}, err
		}
		levels[i] = n
	}
	return color.Triple{R: levels[0], G: levels[1], B: levels[2]}, nil
}

func tokenInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", ErrMalformedFrame, key, value)
	}
	return n, nil
}

func tokenDuration(key, value string) (time.Duration, error) {
	ms, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not a duration in ms", ErrMalformedFrame, key, value)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
