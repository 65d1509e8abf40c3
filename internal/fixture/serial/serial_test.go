package serial

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moving-head/internal/color"
	"moving-head/internal/servo"
)

type fakePort struct {
	bytes.Buffer
	closed bool
	err    error
}

func (p *fakePort) Write(b []byte) (int, error) {
	if p.err != nil {
		return 0, p.err
	}
	return p.Buffer.Write(b)
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func TestWriteChannelFrame(t *testing.T) {
	port := &fakePort{}
	f := New(port, 2)

	require.NoError(t, f.WriteChannel(color.Blue, 200))
	assert.Equal(t, []byte{0x82, 0x01, 0x02, 0x01, 0x48, 0xFF}, port.Bytes())
}

func TestMoveFrame(t *testing.T) {
	port := &fakePort{}
	f := New(port, 0)

	require.NoError(t, f.Move(servo.Tilt, 180, 2*time.Second))
	// angle 180 = 1<<7 | 52, transit 200 ticks = 1<<7 | 72
	assert.Equal(t, []byte{0x81, 0x02, 0x01, 0x01, 0x34, 0x01, 0x48, 0xFF}, port.Bytes())
}

func TestMoveClampsArguments(t *testing.T) {
	port := &fakePort{}
	f := New(port, 1)

	require.NoError(t, f.Move(servo.Pan, -10, time.Hour))
	assert.Equal(t, []byte{0x81, 0x02, 0x00, 0x00, 0x00, 0x7F, 0x7F, 0xFF}, port.Bytes())
}

func TestArgumentsNeverContainTerminator(t *testing.T) {
	port := &fakePort{}
	f := New(port, 7)

	for level := 0; level < 256; level++ {
		require.NoError(t, f.WriteChannel(color.Red, uint8(level)))
	}
	frames := bytes.Split(bytes.TrimSuffix(port.Bytes(), []byte{0xFF}), []byte{0xFF})
	assert.Len(t, frames, 256)
}

func TestWriteErrorAndClose(t *testing.T) {
	port := &fakePort{err: errors.New("unplugged")}
	f := New(port, 1)

	assert.Error(t, f.WriteChannel(color.Red, 1))
	require.NoError(t, f.Close())
	assert.True(t, port.closed)
}
