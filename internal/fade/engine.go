package fade

import (
	"context"
	"math"
	"time"

	"moving-head/internal/color"
)

const (
	// DefaultSteps is the number of intermediate samples per fade. The
	// smallest meaningful fade duration is DefaultSteps milliseconds.
	DefaultSteps = 50

	// DefaultFlickerInterval is how long each on and off half of a flicker
	// cycle is held.
	DefaultFlickerInterval = 25 * time.Millisecond
)

// FadeRequest describes one transition between two colors
type FadeRequest struct {
	From     color.Triple
	To       color.Triple
	Duration time.Duration
	Curve    Curve
}

// FlickerRequest describes an on/off alternation of one color
type FlickerRequest struct {
	Color    color.Triple
	Duration time.Duration
}

// Sample is one color to apply, followed by a hold before the next sample
type Sample struct {
	Color color.Triple
	Hold  time.Duration
}

// Sequence is a finite, lazily computed run of samples. It cannot be restarted.
type Sequence struct {
	n, i   int
	sample func(i int) Sample
}

// Next returns the next sample, or false once the sequence is exhausted
func (s *Sequence) Next() (Sample, bool) {
	if s.i >= s.n {
		return Sample{}, false
	}
	s.i++
	return s.sample(s.i), true
}

// Len is the total number of samples the sequence produces
func (s *Sequence) Len() int {
	return s.n
}

// Applier receives samples. color.Mixer satisfies it.
type Applier interface {
	Apply(t color.Triple) (color.Triple, error)
}

// SleepFunc holds the calling goroutine for d, returning early with the
// context error if ctx ends first.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Engine produces fade and flicker sequences and plays them onto an Applier
type Engine struct {
	steps           int
	flickerInterval time.Duration
	sleep           SleepFunc
}

type Option func(*Engine)

// WithSteps overrides the number of fade steps. Values below 1 are ignored.
func WithSteps(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.steps = n
		}
	}
}

// WithFlickerInterval overrides the flicker half-period
func WithFlickerInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.flickerInterval = d
		}
	}
}

// WithSleep replaces the wall-clock hold between samples
func WithSleep(fn SleepFunc) Option {
	return func(e *Engine) {
		if fn != nil {
			e.sleep = fn
		}
	}
}

// NewEngine creates an engine with DefaultSteps and DefaultFlickerInterval
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		steps:           DefaultSteps,
		flickerInterval: DefaultFlickerInterval,
		sleep:           sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Steps returns the configured fade step count
func (e *Engine) Steps() int {
	return e.steps
}

// Fade returns the samples for req: one per step, each held for
// Duration/steps, followed by the exact target with no hold. A zero duration
// yields only the target.
func (e *Engine) Fade(req FadeRequest) *Sequence {
	target := color.Clamp(req.To)
	if req.Duration <= 0 {
		return &Sequence{n: 1, sample: func(int) Sample {
			return Sample{Color: target}
		}}
	}

	steps := e.steps
	hold := req.Duration / time.Duration(steps)
	return &Sequence{
		n: steps + 1,
		sample: func(i int) Sample {
			if i > steps {
				return Sample{Color: target}
			}
			eased := Ease(float64(i)/float64(steps), req.Curve)
			return Sample{
				Color: color.Clamp(color.Triple{
					R: lerp(req.From.R, req.To.R, eased),
					G: lerp(req.From.G, req.To.G, eased),
					B: lerp(req.From.B, req.To.B, eased),
				}),
				Hold: hold,
			}
		},
	}
}

// Flicker returns alternating color/off samples, each held for the flicker
// interval, for as many whole on/off cycles as fit in req.Duration. The last
// sample is always off.
func (e *Engine) Flicker(req FlickerRequest) *Sequence {
	cycles := 0
	if req.Duration > 0 {
		cycles = int(req.Duration / (2 * e.flickerInterval))
	}
	on := color.Clamp(req.Color)
	return &Sequence{
		n: cycles * 2,
		sample: func(i int) Sample {
			if i%2 == 1 {
				return Sample{Color: on, Hold: e.flickerInterval}
			}
			return Sample{Color: color.Off, Hold: e.flickerInterval}
		},
	}
}

// Play applies every sample of seq in order, holding after each one. It
// blocks for the full duration of the sequence. Apply errors do not stop
// playback; the first one is returned at the end. Cancelling ctx stops
// playback between samples.
func (e *Engine) Play(ctx context.Context, seq *Sequence, out Applier) error {
	var applyErr error
	for {
		s, ok := seq.Next()
		if !ok {
			return applyErr
		}
		if _, err := out.Apply(s.Color); err != nil && applyErr == nil {
			applyErr = err
		}
		if s.Hold <= 0 {
			continue
		}
		if err := e.sleep(ctx, s.Hold); err != nil {
			return err
		}
	}
}

// lerp truncates the eased delta toward zero and clamps the result to a
// channel level. The arithmetic is float64 so extreme endpoints cannot overflow.
func lerp(from, to int, p float64) int {
	v := float64(from) + math.Trunc((float64(to)-float64(from))*p)
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return int(v)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
