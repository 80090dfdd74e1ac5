package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"syscall"
	"time"

	"tagarena/wire"
)

// readTimeout bounds each socket read so loops observe cancellation.
const readTimeout = 1 * time.Second

// Handler consumes one decoded datagram. Implementations must not
// block on the socket; long work belongs on another goroutine.
type Handler func(msg wire.Message, from netip.AddrPort)

// Endpoint is a bound UDP socket with an owned receive loop.
type Endpoint struct {
	conn *net.UDPConn

	cancel context.CancelFunc
	done   chan struct{}
}

// Listen binds a UDP socket on the given port (all interfaces). The
// socket is opened with SO_BROADCAST so discovery beacons can go to the
// subnet broadcast address.
func Listen(port int) (*Endpoint, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}

	pc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("bind udp :%d: %w", port, err)
	}
	return &Endpoint{conn: pc.(*net.UDPConn)}, nil
}

// LocalPort returns the bound port (useful when port 0 was requested).
func (e *Endpoint) LocalPort() int {
	return e.conn.LocalAddr().(*net.UDPAddr).Port
}

// Start launches the receive loop. Malformed and unknown datagrams are
// dropped; unknown types are logged at debug level only.
func (e *Endpoint) Start(ctx context.Context, handler Handler) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})

	go func() {
		defer close(e.done)
		buf := make([]byte, wire.MaxDatagram)
		for {
			if ctx.Err() != nil {
				return
			}
			_ = e.conn.SetReadDeadline(time.Now().Add(readTimeout))
			n, from, err := e.conn.ReadFromUDPAddrPort(buf)
			if err != nil {
				if errors.Is(err, os.ErrDeadlineExceeded) {
					continue
				}
				if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return
				}
				slog.Error("udp read", "err", err)
				continue
			}

			msg, err := wire.Decode(buf[:n])
			if err != nil {
				if errors.Is(err, wire.ErrUnknownType) {
					slog.Debug("dropping unknown datagram", "from", from)
				}
				continue
			}
			handler(msg, from)
		}
	}()
}

// Stop cancels the receive loop, waits for it to exit, and closes the
// socket. Safe to call when Start was never called.
func (e *Endpoint) Stop() {
	if e.cancel != nil {
		e.cancel()
		<-e.done
	}
	_ = e.conn.Close()
}

// Send encodes and transmits one message. Send failures are the
// caller's to log; the next heartbeat cycle retries implicitly.
func (e *Endpoint) Send(msg wire.Message, to netip.AddrPort) error {
	data, err := wire.Encode(msg)
	if err != nil {
		return err
	}
	if _, err := e.conn.WriteToUDPAddrPort(data, to); err != nil {
		return fmt.Errorf("send %s to %s: %w", msg.WireType(), to, err)
	}
	return nil
}
