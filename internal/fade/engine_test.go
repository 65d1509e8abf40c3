package fade

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moving-head/internal/color"
)

type recorder struct {
	applied []color.Triple
	slept   []time.Duration
}

func (r *recorder) Apply(t color.Triple) (color.Triple, error) {
	c := color.Clamp(t)
	r.applied = append(r.applied, c)
	return c, nil
}

func (r *recorder) sleep(ctx context.Context, d time.Duration) error {
	r.slept = append(r.slept, d)
	return ctx.Err()
}

func (r *recorder) total() time.Duration {
	var sum time.Duration
	for _, d := range r.slept {
		sum += d
	}
	return sum
}

func newTestEngine(r *recorder, opts ...Option) *Engine {
	return NewEngine(append([]Option{WithSleep(r.sleep)}, opts...)...)
}

func TestEase(t *testing.T) {
	assert.InDelta(t, 0.5, Ease(0.5, Linear), 1e-12)
	assert.InDelta(t, 0.25, Ease(0.5, EaseInQuad), 1e-12)
	assert.InDelta(t, 0.125, Ease(0.5, EaseInCubic), 1e-12)
	assert.InDelta(t, 0.0625, Ease(0.5, EaseInQuart), 1e-12)

	for _, c := range []Curve{Linear, EaseInQuad, EaseInCubic, EaseInQuart} {
		assert.Equal(t, 0.0, Ease(0, c), c.String())
		assert.Equal(t, 1.0, Ease(1, c), c.String())
	}
}

func TestParseCurve(t *testing.T) {
	for _, c := range []Curve{Linear, EaseInQuad, EaseInCubic, EaseInQuart} {
		got, err := ParseCurve(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err := ParseCurve("bounce")
	assert.Error(t, err)
}

func TestFadeMidpointFollowsCurve(t *testing.T) {
	e := NewEngine(WithSteps(2))
	from, to := color.Triple{}, color.Triple{R: 160, G: 160, B: 160}

	linear := e.Fade(FadeRequest{From: from, To: to, Duration: time.Second, Curve: Linear})
	quart := e.Fade(FadeRequest{From: from, To: to, Duration: time.Second, Curve: EaseInQuart})

	l, ok := linear.Next()
	require.True(t, ok)
	q, ok := quart.Next()
	require.True(t, ok)

	assert.Equal(t, color.Triple{R: 80, G: 80, B: 80}, l.Color)
	assert.Equal(t, color.Triple{R: 10, G: 10, B: 10}, q.Color)
}

func TestFadeEndsExactlyOnTarget(t *testing.T) {
	r := &recorder{}
	e := newTestEngine(r, WithSteps(15))

	to := color.Triple{R: 7, G: 201, B: 99}
	seq := e.Fade(FadeRequest{From: color.Triple{R: 250, G: 3, B: 13}, To: to, Duration: 700 * time.Millisecond, Curve: EaseInCubic})
	assert.Equal(t, 16, seq.Len())

	require.NoError(t, e.Play(context.Background(), seq, r))
	require.Len(t, r.applied, 16)
	assert.Equal(t, to, r.applied[len(r.applied)-1])
	assert.Equal(t, r.applied[14], r.applied[15])
}

func TestFadeDecreasingChannels(t *testing.T) {
	r := &recorder{}
	e := newTestEngine(r, WithSteps(4))

	seq := e.Fade(FadeRequest{From: color.Triple{R: 255}, To: color.Triple{}, Duration: 40 * time.Millisecond})
	require.NoError(t, e.Play(context.Background(), seq, r))

	reds := make([]int, 0, len(r.applied))
	for _, c := range r.applied {
		reds = append(reds, c.R)
	}
	assert.Equal(t, []int{192, 128, 64, 0, 0}, reds)
}

func TestFadeExtremeEndpoints(t *testing.T) {
	r := &recorder{}
	e := newTestEngine(r, WithSteps(4))

	seq := e.Fade(FadeRequest{
		From:     color.Triple{R: math.MinInt64},
		To:       color.Triple{R: math.MaxInt64},
		Duration: 40 * time.Millisecond,
		Curve:    Linear,
	})
	require.NoError(t, e.Play(context.Background(), seq, r))

	reds := make([]int, 0, len(r.applied))
	for _, c := range r.applied {
		reds = append(reds, c.R)
	}
	assert.Equal(t, []int{0, 0, 255, 255, 255}, reds)
}

func TestLerpClampsToChannelRange(t *testing.T) {
	assert.Equal(t, 0, lerp(-500, -100, 0.5))
	assert.Equal(t, 255, lerp(300, 1000, 0.5))
	assert.Equal(t, 100, lerp(0, 200, 0.5))
	assert.Equal(t, 150, lerp(200, 0, 0.25))
}

func TestFadeConstantHoldsFullDuration(t *testing.T) {
	r := &recorder{}
	e := newTestEngine(r)

	seq := e.Fade(FadeRequest{Duration: 500 * time.Millisecond, Curve: Linear})
	require.NoError(t, e.Play(context.Background(), seq, r))

	assert.Len(t, r.applied, DefaultSteps+1)
	for _, c := range r.applied {
		assert.Equal(t, color.Off, c)
	}
	assert.Equal(t, 500*time.Millisecond, r.total())
	assert.Len(t, r.slept, DefaultSteps)
}

func TestFadeZeroDuration(t *testing.T) {
	r := &recorder{}
	e := newTestEngine(r)

	seq := e.Fade(FadeRequest{From: color.Triple{R: 1}, To: color.Triple{G: 300}, Duration: 0})
	require.NoError(t, e.Play(context.Background(), seq, r))

	assert.Equal(t, []color.Triple{{G: 255}}, r.applied)
	assert.Empty(t, r.slept)
}

func TestFlicker(t *testing.T) {
	red := color.Triple{R: 255}

	tests := []struct {
		name     string
		duration time.Duration
		samples  int
	}{
		{"zero is a no-op", 0, 0},
		{"shorter than one cycle", 49 * time.Millisecond, 0},
		{"exact cycles", 200 * time.Millisecond, 8},
		{"rounds down", 230 * time.Millisecond, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &recorder{}
			e := newTestEngine(r)

			require.NoError(t, e.Play(context.Background(), e.Flicker(FlickerRequest{Color: red, Duration: tt.duration}), r))
			require.Len(t, r.applied, tt.samples)
			for i, c := range r.applied {
				if i%2 == 0 {
					assert.Equal(t, red, c)
				} else {
					assert.Equal(t, color.Off, c)
				}
			}
			assert.Equal(t, time.Duration(tt.samples)*DefaultFlickerInterval, r.total())
		})
	}
}

func TestPlayStopsWhenContextEnds(t *testing.T) {
	r := &recorder{}
	e := newTestEngine(r)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Play(ctx, e.Fade(FadeRequest{To: color.Triple{B: 255}, Duration: time.Second}), r)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, r.applied, 1)
}

func TestSleepContext(t *testing.T) {
	require.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
