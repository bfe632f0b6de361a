//go:build linux || darwin
// +build linux darwin

package utils

import (
	"context"
	"io"
	"net"
	"sync"

	"github.com/pkg/errors"
	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"
)

// Bus is one SocketCAN socket used for both directions. Frames sent on it
// are not looped back to it.
type Bus struct {
	iface string
	conn  net.Conn
	tx    *socketcan.Transmitter

	frames chan can.Frame
	done   chan struct{}
	quit   chan struct{}
	once   sync.Once
	err    error
}

// DialBus opens iface and starts receiving. A single pump goroutine owns the
// receiver; ReadFrame only waits on it.
func DialBus(ctx context.Context, iface string) (*Bus, error) {
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, errors.Wrapf(err, "socketcan dial %s", iface)
	}

	b := &Bus{
		iface:  iface,
		conn:   conn,
		tx:     socketcan.NewTransmitter(conn),
		frames: make(chan can.Frame, 64),
		done:   make(chan struct{}),
		quit:   make(chan struct{}),
	}
	go b.pump(socketcan.NewReceiver(conn))
	return b, nil
}

func (b *Bus) pump(recv *socketcan.Receiver) {
	defer close(b.done)
	for recv.Receive() {
		select {
		case b.frames <- recv.Frame():
		case <-b.quit:
			b.err = net.ErrClosed
			return
		}
	}
	b.err = recv.Err()
	if b.err == nil {
		b.err = io.EOF
	}
}

// ReadFrame blocks until a frame arrives, the receiver stops or ctx ends.
func (b *Bus) ReadFrame(ctx context.Context) (can.Frame, error) {
	select {
	case <-ctx.Done():
		return can.Frame{}, ctx.Err()
	case frame := <-b.frames:
		return frame, nil
	case <-b.done:
		return can.Frame{}, errors.Wrapf(b.err, "receive on %s", b.iface)
	}
}

func (b *Bus) WriteFrame(ctx context.Context, frame can.Frame) error {
	return b.tx.TransmitFrame(ctx, frame)
}

// Close is safe to call more than once.
func (b *Bus) Close() error {
	var err error
	b.once.Do(func() {
		close(b.quit)
		err = b.conn.Close()
	})
	return err
}
