package x11

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/screensaver"
	"github.com/jezek/xgb/xproto"
)

// IdleQuery reads MsSinceUserInput from the MIT-SCREEN-SAVER extension
type IdleQuery struct {
	display string

	busy atomic.Bool

	mu   sync.Mutex
	conn *xgb.Conn
	root xproto.Window
}

// NewIdleQuery targets display, or $DISPLAY when empty
func NewIdleQuery(display string) *IdleQuery {
	return &IdleQuery{display: display}
}

func (q *IdleQuery) Name() string {
	return "x11-screensaver"
}

type idleReply struct {
	idle time.Duration
	err  error
}

// IdleTime gives up when ctx ends. A reply still pending from an earlier
// call makes later calls fail fast instead of queueing on the connection.
func (q *IdleQuery) IdleTime(ctx context.Context) (time.Duration, error) {
	if !q.busy.CompareAndSwap(false, true) {
		return 0, fmt.Errorf("previous X11 idle query still pending")
	}

	replies := make(chan idleReply, 1)
	go func() {
		defer q.busy.Store(false)
		idle, err := q.query()
		replies <- idleReply{idle: idle, err: err}
	}()

	select {
	case r := <-replies:
		return r.idle, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (q *IdleQuery) query() (time.Duration, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.conn == nil {
		if err := q.connect(); err != nil {
			return 0, err
		}
	}

	reply, err := screensaver.QueryInfo(q.conn, xproto.Drawable(q.root)).Reply()
	if err != nil {
		q.conn.Close()
		q.conn = nil
		return 0, fmt.Errorf("screensaver QueryInfo failed: %w", err)
	}

	return time.Duration(reply.MsSinceUserInput) * time.Millisecond, nil
}

func (q *IdleQuery) connect() error {
	conn, err := xgb.NewConnDisplay(q.display)
	if err != nil {
		return fmt.Errorf("failed to connect to X server: %w", err)
	}

	if err := screensaver.Init(conn); err != nil {
		conn.Close()
		return fmt.Errorf("MIT-SCREEN-SAVER extension unavailable: %w", err)
	}

	q.conn = conn
	q.root = xproto.Setup(conn).DefaultScreen(conn).Root
	return nil
}

func (q *IdleQuery) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.conn != nil {
		q.conn.Close()
		q.conn = nil
	}
	return nil
}
