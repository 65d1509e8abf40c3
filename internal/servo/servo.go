package servo

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"
)

// Axis is one of the two positional actuators
type Axis int

const (
	// Pan is the base servo
	Pan Axis = iota
	// Tilt is the top servo
	Tilt
)

func (a Axis) String() string {
	switch a {
	case Pan:
		return "pan"
	case Tilt:
		return "tilt"
	default:
		return fmt.Sprintf("axis(%d)", int(a))
	}
}

const (
	DefaultMinAngle = 0
	DefaultMaxAngle = 180
	// DefaultTransit is how long an actuator is given to reach a new target
	DefaultTransit = 2000 * time.Millisecond
)

// Driver moves a physical actuator. Implementations must not wait for the
// actuator to settle.
type Driver interface {
	Move(axis Axis, angle int, transit time.Duration) error
}

// Config for a Port
type Config struct {
	MinAngle int
	MaxAngle int
	Transit  time.Duration
	// MinInterval rate-limits driver writes per axis. Targets arriving during
	// the cooldown replace each other and only the latest is sent. Zero
	// sends every target immediately.
	MinInterval time.Duration
}

// DefaultConfig returns the mechanical defaults of the fixture
func DefaultConfig() Config {
	return Config{
		MinAngle: DefaultMinAngle,
		MaxAngle: DefaultMaxAngle,
		Transit:  DefaultTransit,
	}
}

type axisState struct {
	throttle
	last    atomic.Int64
	pending int
}

// Port is an open-loop two-axis actuator. It remembers only the last
// commanded angle per axis.
type Port struct {
	driver Driver
	cfg    Config
	stopCh chan struct{}
	axes   [2]*axisState
}

// NewPort creates a port driving d
func NewPort(d Driver, cfg Config) *Port {
	if cfg.MaxAngle <= cfg.MinAngle {
		cfg.MinAngle, cfg.MaxAngle = DefaultMinAngle, DefaultMaxAngle
	}
	if cfg.Transit <= 0 {
		cfg.Transit = DefaultTransit
	}

	p := &Port{
		driver: d,
		cfg:    cfg,
		stopCh: make(chan struct{}),
	}

	for i := range p.axes {
		axis := Axis(i)
		st := &axisState{}
		st.last.Store(-1)
		st.minInterval = cfg.MinInterval
		st.stopCh = p.stopCh
		st.flush = func() {
			if err := p.driver.Move(axis, st.pending, p.cfg.Transit); err != nil {
				log.Warn().Err(err).Stringer("axis", axis).Int("angle", st.pending).Msg("Actuator move failed")
			}
		}
		p.axes[i] = st
	}
	return p
}

// Clamp limits angle to the mechanical range
func (p *Port) Clamp(angle int) int {
	if angle < p.cfg.MinAngle {
		return p.cfg.MinAngle
	}
	if angle > p.cfg.MaxAngle {
		return p.cfg.MaxAngle
	}
	return angle
}

// MoveTo clamps angle, commands the axis toward it and returns the clamped
// angle without waiting for the actuator. A newer target for the same axis
// replaces one not yet sent.
func (p *Port) MoveTo(axis Axis, angle int) int {
	st := p.state(axis)
	if st == nil {
		log.Warn().Stringer("axis", axis).Msg("Ignoring move for unknown axis")
		return angle
	}
	angle = p.Clamp(angle)

	st.trigger(func() {
		st.pending = angle
		st.last.Store(int64(angle))
	})
	return angle
}

// Last returns the last commanded angle for axis, or false if none was
// commanded yet
func (p *Port) Last(axis Axis) (int, bool) {
	st := p.state(axis)
	if st == nil {
		return 0, false
	}
	v := st.last.Load()
	if v < 0 {
		return 0, false
	}
	return int(v), true
}

// Transit returns the configured transit duration
func (p *Port) Transit() time.Duration {
	return p.cfg.Transit
}

// Close drops any trailing sends still waiting on the throttle
func (p *Port) Close() {
	select {
	case <-p.stopCh:
	default:
		close(p.stopCh)
	}
}

func (p *Port) state(axis Axis) *axisState {
	if axis < 0 || int(axis) >= len(p.axes) {
		return nil
	}
	return p.axes[axis]
}
