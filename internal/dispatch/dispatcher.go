// Package dispatch turns raw command frames into actuator and color output.
//
// Dispatch is not serialized: frames arriving on different transports are
// applied concurrently and their hardware writes interleave, last write
// wins. A fade or flicker blocks the caller for its full duration and is
// never pre-empted by a newer frame.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"moving-head/internal/color"
	"moving-head/internal/fade"
	"moving-head/internal/protocol"
	"moving-head/internal/sequence"
	"moving-head/internal/servo"
)

// Outcome of one dispatch
type Outcome int

const (
	Applied Outcome = iota
	Malformed
	Stale
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Malformed:
		return "malformed"
	case Stale:
		return "stale"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result describes what happened to one raw frame
type Result struct {
	Outcome   Outcome
	Encoding  protocol.Encoding
	Sequence  uint32
	Sequenced bool
	// Err is the decode error for Malformed, or the first hardware or
	// context error for Applied
	Err error
	// Ack is the datagram acknowledgement; set only for applied sequenced frames
	Ack []byte
	At  time.Time
}

// Dispatcher owns the sequence guard and drives the color and actuator surfaces
type Dispatcher struct {
	guard   *sequence.Guard
	mixer   *color.Mixer
	port    *servo.Port
	engine  *fade.Engine
	journal *Journal
	curve   fade.Curve
	now     func() time.Time
}

type Option func(*Dispatcher)

// WithJournal records every result in j
func WithJournal(j *Journal) Option {
	return func(d *Dispatcher) {
		d.journal = j
	}
}

// WithDefaultCurve sets the easing used by fades that do not name one
func WithDefaultCurve(c fade.Curve) Option {
	return func(d *Dispatcher) {
		d.curve = c
	}
}

// New creates a dispatcher. Fades default to EaseInQuart.
func New(mixer *color.Mixer, port *servo.Port, engine *fade.Engine, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		guard:  &sequence.Guard{},
		mixer:  mixer,
		port:   port,
		engine: engine,
		curve:  fade.EaseInQuart,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ResetSequence is the operator reset action
func (d *Dispatcher) ResetSequence() {
	prev := d.guard.Last()
	d.guard.Reset()
	log.Info().Uint32("previous", prev).Msg("Packet index counter reset")
}

// LastSequence returns the last accepted sequence id
func (d *Dispatcher) LastSequence() uint32 {
	return d.guard.Last()
}

// Journal returns the journal, or nil
func (d *Dispatcher) Journal() *Journal {
	return d.journal
}

// WithTransport returns ctx carrying a logger tagged with the transport
// name; Dispatch and Apply log through it
func WithTransport(ctx context.Context, name string) context.Context {
	l := log.With().Str("transport", name).Logger()
	return l.WithContext(ctx)
}

func logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}

// Dispatch decodes raw, admits it and applies its directives. Malformed and
// stale frames have no side effects.
func (d *Dispatcher) Dispatch(ctx context.Context, raw []byte, enc protocol.Encoding) Result {
	res := d.dispatch(ctx, raw, enc)
	if d.journal != nil {
		d.journal.Record(res)
	}
	return res
}

func (d *Dispatcher) dispatch(ctx context.Context, raw []byte, enc protocol.Encoding) Result {
	res := Result{Encoding: enc, At: d.now()}
	l := logger(ctx)

	frame, err := protocol.Decode(raw, enc)
	if err != nil {
		res.Outcome = Malformed
		res.Err = err
		l.Warn().
			Err(err).
			Stringer("reason", Malformed).
			Stringer("encoding", enc).
			Msg("Dropping malformed frame")
		return res
	}
	res.Sequence = frame.Sequence
	res.Sequenced = frame.Sequenced

	if frame.Sequenced && d.guard.Admit(frame.Sequence) == sequence.Stale {
		res.Outcome = Stale
		l.Debug().
			Stringer("reason", Stale).
			Uint32("seq", frame.Sequence).
			Uint32("last", d.guard.Last()).
			Msg("Duplicate or old packet. Ignoring.")
		return res
	}

	res.Outcome = Applied
	res.Err = d.Apply(ctx, frame)
	if frame.Sequenced {
		res.Ack = protocol.FormatAck(frame.Sequence)
	}
	return res
}

// Apply runs a decoded frame's directives without admission: actuators in
// frame order, then at most one color directive with flicker taking
// precedence over fade, and fade over an immediate set.
func (d *Dispatcher) Apply(ctx context.Context, frame *protocol.Frame) error {
	l := logger(ctx)
	for _, a := range frame.Actuators {
		angle := d.port.MoveTo(a.Axis, a.Angle)
		l.Debug().Uint32("seq", frame.Sequence).Stringer("axis", a.Axis).Int("angle", angle).Msg("Moving actuator")
	}

	cc := frame.Color
	if cc == nil {
		return nil
	}

	var err error
	switch {
	case cc.Flicker != nil:
		if cc.Fade != nil {
			l.Debug().Uint32("seq", frame.Sequence).Msg("Frame asks for flicker and fade, flicker wins")
		}
		l.Debug().
			Uint32("seq", frame.Sequence).
			Stringer("color", cc.Target).
			Dur("duration", *cc.Flicker).
			Msg("Flickering LED")
		err = d.engine.Play(ctx, d.engine.Flicker(fade.FlickerRequest{
			Color:    cc.Target,
			Duration: *cc.Flicker,
		}), d.mixer)

	case cc.Fade != nil:
		curve := d.curve
		if cc.Curve != nil {
			curve = *cc.Curve
		}
		l.Debug().
			Uint32("seq", frame.Sequence).
			Stringer("from", cc.From).
			Stringer("to", cc.Target).
			Dur("duration", *cc.Fade).
			Stringer("curve", curve).
			Msg("Fading LED")
		err = d.engine.Play(ctx, d.engine.Fade(fade.FadeRequest{
			From:     cc.From,
			To:       cc.Target,
			Duration: *cc.Fade,
			Curve:    curve,
		}), d.mixer)

	default:
		l.Debug().Uint32("seq", frame.Sequence).Stringer("color", cc.Target).Msg("Setting LED")
		_, err = d.mixer.Apply(cc.Target)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		l.Warn().Err(err).Uint32("seq", frame.Sequence).Msg("Color output failed")
	}
	return err
}
