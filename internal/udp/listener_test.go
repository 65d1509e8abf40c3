package udp

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moving-head/internal/color"
	"moving-head/internal/dispatch"
	"moving-head/internal/fade"
	"moving-head/internal/fixture/sim"
	"moving-head/internal/servo"
)

func startListener(t *testing.T) (*sim.Fixture, *net.UDPConn) {
	t.Helper()

	fx := sim.New()
	port := servo.NewPort(fx, servo.DefaultConfig())
	t.Cleanup(port.Close)
	engine := fade.NewEngine(fade.WithSleep(func(ctx context.Context, _ time.Duration) error {
		return ctx.Err()
	}))
	d := dispatch.New(color.NewMixer(fx), port, engine)

	l, err := Listen("127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Serve(ctx, d) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("listener did not stop")
		}
	})

	client, err := net.DialUDP("udp", nil, l.Addr().(*net.UDPAddr))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return fx, client
}

func readAck(t *testing.T, c *net.UDPConn) string {
	t.Helper()
	buf := make([]byte, 64)
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, err := c.Read(buf)
	require.NoError(t, err)
	return string(buf[:n])
}

func TestServeAcksAppliedFrames(t *testing.T) {
	fx, client := startListener(t)

	_, err := client.Write([]byte("12;bS=45;r=10;g=20;b=30"))
	require.NoError(t, err)
	assert.Equal(t, "ACK:12", readAck(t, client))

	assert.Equal(t, sim.State{Color: color.Triple{R: 10, G: 20, B: 30}, Pan: 45, Tilt: 90}, fx.State())
}

func TestServeDropsStaleAndMalformed(t *testing.T) {
	fx, client := startListener(t)

	for _, frame := range []string{"5;tS=10", "5;tS=20", "x;tS=30", "4;tS=40", "6;tS=50"} {
		_, err := client.Write([]byte(frame))
		require.NoError(t, err)
	}

	// only the first and last frames are acknowledged, in order
	assert.Equal(t, "ACK:5", readAck(t, client))
	assert.Equal(t, "ACK:6", readAck(t, client))
	assert.Equal(t, 50, fx.State().Tilt)

	moves := fx.Moves()
	require.Len(t, moves, 2)
	assert.Equal(t, 10, moves[0].Angle)
}
