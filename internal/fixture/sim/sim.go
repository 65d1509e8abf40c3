// Package sim is an in-memory moving head. It keeps the last level written
// to every channel and servo and an ordered log of writes, and is used when
// no hardware is attached.
package sim

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"moving-head/internal/color"
	"moving-head/internal/fixture"
	"moving-head/internal/servo"
)

// Write is one recorded hardware write
type Write struct {
	Channel *color.Channel
	Level   uint8
	Axis    *servo.Axis
	Angle   int
	Transit time.Duration
}

// State is what the simulated hardware currently shows
type State struct {
	Color color.Triple
	Pan   int
	Tilt  int
}

// Fixture is a simulated device
type Fixture struct {
	mu     sync.Mutex
	state  State
	writes []Write
	closed bool
}

var _ fixture.Device = (*Fixture)(nil)

// New creates a simulated fixture with both servos centered
func New() *Fixture {
	return &Fixture{state: State{Pan: 90, Tilt: 90}}
}

func (f *Fixture) WriteChannel(ch color.Channel, level uint8) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch ch {
	case color.Red:
		f.state.Color.R = int(level)
	case color.Green:
		f.state.Color.G = int(level)
	case color.Blue:
		f.state.Color.B = int(level)
	}
	c := ch
	f.writes = append(f.writes, Write{Channel: &c, Level: level})
	return nil
}

func (f *Fixture) Move(axis servo.Axis, angle int, transit time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch axis {
	case servo.Pan:
		f.state.Pan = angle
	case servo.Tilt:
		f.state.Tilt = angle
	}
	a := axis
	f.writes = append(f.writes, Write{Axis: &a, Angle: angle, Transit: transit})

	log.Debug().
		Stringer("axis", axis).
		Int("angle", angle).
		Dur("transit", transit).
		Msg("Simulated servo move")
	return nil
}

func (f *Fixture) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// State returns a copy of the current simulated state
func (f *Fixture) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Writes returns a copy of every write so far
func (f *Fixture) Writes() []Write {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Write(nil), f.writes...)
}

// Colors replays the channel writes and returns the triple visible after
// every blue write, which completes a mixer application
func (f *Fixture) Colors() []color.Triple {
	f.mu.Lock()
	defer f.mu.Unlock()

	var cur color.Triple
	var out []color.Triple
	for _, w := range f.writes {
		if w.Channel == nil {
			continue
		}
		switch *w.Channel {
		case color.Red:
			cur.R = int(w.Level)
		case color.Green:
			cur.G = int(w.Level)
		case color.Blue:
			cur.B = int(w.Level)
			out = append(out, cur)
		}
	}
	return out
}

// Moves returns the recorded servo writes in order
func (f *Fixture) Moves() []Write {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []Write
	for _, w := range f.writes {
		if w.Axis != nil {
			out = append(out, w)
		}
	}
	return out
}

// Reset clears the write log
func (f *Fixture) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = nil
}

// Closed reports whether Close was called
func (f *Fixture) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
