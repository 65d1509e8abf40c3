// Package udp receives flat-token command datagrams and echoes acks.
package udp

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/rs/zerolog/log"

	"moving-head/internal/dispatch"
	"moving-head/internal/protocol"
)

// MaxDatagram bounds a single command datagram
const MaxDatagram = 4096

// Dispatcher applies raw frames
type Dispatcher interface {
	Dispatch(ctx context.Context, raw []byte, enc protocol.Encoding) dispatch.Result
}

// Listener is a bound UDP command socket
type Listener struct {
	conn *net.UDPConn
}

// Listen binds addr, e.g. ":1234"
func Listen(addr string) (*Listener, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("error resolving UDP address %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("error starting UDP server: %w", err)
	}
	return &Listener{conn: conn}, nil
}

// Addr returns the bound local address
func (l *Listener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// Close releases the socket
func (l *Listener) Close() error {
	return l.conn.Close()
}

// Serve handles datagrams one at a time until ctx is done. Each applied
// sequenced frame is acknowledged to its sender.
func (l *Listener) Serve(ctx context.Context, d Dispatcher) error {
	stop := context.AfterFunc(ctx, func() {
		l.conn.Close()
	})
	defer stop()
	ctx = dispatch.WithTransport(ctx, "udp")

	log.Info().Stringer("addr", l.Addr()).Msg("UDP command listener started")

	buffer := make([]byte, MaxDatagram)
	for {
		n, peer, err := l.conn.ReadFromUDP(buffer)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Err(err).Msg("Error reading UDP datagram")
			continue
		}

		raw := make([]byte, n)
		copy(raw, buffer[:n])

		res := d.Dispatch(ctx, raw, protocol.Tokens)
		if res.Ack == nil {
			continue
		}
		if _, err := l.conn.WriteToUDP(res.Ack, peer); err != nil {
			log.Warn().Err(err).Stringer("peer", peer).Uint32("seq", res.Sequence).Msg("Failed to send ack")
		}
	}
}
