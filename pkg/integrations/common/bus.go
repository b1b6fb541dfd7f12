package common

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
)

// Caller issues a single D-Bus method call bounded by ctx
type Caller interface {
	Call(ctx context.Context, dest, path, method string, args ...interface{}) (*dbus.Call, error)
}

// Bus is a lazily connected D-Bus connection that reconnects after the
// peer goes away. Connecting is bounded by the caller's context like the
// call itself.
type Bus struct {
	name    string
	connect func(opts ...dbus.ConnOption) (*dbus.Conn, error)

	mu      sync.Mutex
	conn    *dbus.Conn
	cancel  context.CancelFunc
	pending *dial
}

// dial is one connection attempt shared by every caller waiting on it
type dial struct {
	done   chan struct{}
	cancel context.CancelFunc
	conn   *dbus.Conn
	err    error
}

func NewSessionBus() *Bus {
	return &Bus{name: "session", connect: dbus.ConnectSessionBus}
}

func NewSystemBus() *Bus {
	return &Bus{name: "system", connect: dbus.ConnectSystemBus}
}

func (b *Bus) connection(ctx context.Context) (*dbus.Conn, error) {
	b.mu.Lock()
	if b.conn != nil && b.conn.Connected() {
		conn := b.conn
		b.mu.Unlock()
		return conn, nil
	}
	d := b.pending
	if d == nil {
		d = b.startDial()
		b.pending = d
	}
	b.mu.Unlock()

	select {
	case <-d.done:
		if d.err != nil {
			return nil, fmt.Errorf("failed to connect to %s bus: %w", b.name, d.err)
		}
		return d.conn, nil
	case <-ctx.Done():
		// Abandon the handshake so the next call dials again.
		b.mu.Lock()
		if b.pending == d {
			b.pending = nil
		}
		b.mu.Unlock()
		d.cancel()
		return nil, fmt.Errorf("failed to connect to %s bus: %w", b.name, ctx.Err())
	}
}

// startDial connects in the background. The dial context outlives any single
// caller because it becomes the lifetime of the connection. Called with mu held.
func (b *Bus) startDial() *dial {
	dialCtx, cancel := context.WithCancel(context.Background())
	d := &dial{done: make(chan struct{}), cancel: cancel}

	go func() {
		conn, err := b.connect(dbus.WithContext(dialCtx))

		b.mu.Lock()
		if b.pending == d {
			b.pending = nil
		}
		if err != nil {
			cancel()
		} else {
			if b.cancel != nil {
				b.cancel()
			}
			b.conn, b.cancel = conn, cancel
		}
		d.conn, d.err = conn, err
		b.mu.Unlock()

		close(d.done)
	}()
	return d
}

func (b *Bus) Call(ctx context.Context, dest, path, method string, args ...interface{}) (*dbus.Call, error) {
	conn, err := b.connection(ctx)
	if err != nil {
		return nil, err
	}

	call := conn.Object(dest, dbus.ObjectPath(path)).CallWithContext(ctx, method, 0, args...)
	if call.Err != nil {
		return nil, fmt.Errorf("%s %s: %w", dest, method, call.Err)
	}
	return call, nil
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pending != nil {
		b.pending.cancel()
		b.pending = nil
	}
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.cancel()
	b.conn, b.cancel = nil, nil
	return err
}
