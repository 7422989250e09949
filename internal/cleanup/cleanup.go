// Package cleanup unifies the multi-handle teardown used by every backend
// operation into a single scoped guard: on every exit path, channel,
// transport, and client are each closed exactly once, in that order.
package cleanup

import (
	"io"
	"sync"

	"github.com/lurehive/sshlure/internal/applog"
)

// Guard holds up to three handles (channel, transport connection, client)
// and releases them exactly once in the fixed order channel, conn,
// client, whatever order they were registered in. It tolerates partial
// acquisition: any handle may be nil if the step that obtains it failed
// or was never reached.
type Guard struct {
	mu      sync.Mutex
	closed  bool
	channel io.Closer
	conn    io.Closer
	client  io.Closer
}

// SetChannel registers the channel handle.
func (g *Guard) SetChannel(c io.Closer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channel = c
}

// SetConn registers the transport connection handle.
func (g *Guard) SetConn(c io.Closer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.conn = c
}

// SetClient registers the client handle.
func (g *Guard) SetClient(c io.Closer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.client = c
}

// Close releases channel, conn, and client in that order. Safe to call
// more than once; only the first call does anything. A handle whose
// identity is identical to one already closed (e.g. a client that also
// implements the conn it was built on) is not closed twice.
func (g *Guard) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true

	closedAlready := make(map[io.Closer]bool, 3)
	closeOnce := func(label string, c io.Closer) {
		if c == nil || closedAlready[c] {
			return
		}
		closedAlready[c] = true
		if err := c.Close(); err != nil {
			applog.L().Debugw("cleanup: close failed", "handle", label, "error", err)
		}
	}

	closeOnce("channel", g.channel)
	closeOnce("conn", g.conn)
	closeOnce("client", g.client)
}
