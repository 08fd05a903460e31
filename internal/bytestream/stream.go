// Package bytestream provides the ByteStream abstraction (§6 External
// Interfaces / §9 "Plain vs TLS byte stream"): a transport-agnostic
// non-blocking byte pipe that the protocol state machines in internal/wire
// and internal/ws read from and write to, without knowing whether the
// underlying transport is a raw TCP socket or a TLS session.
package bytestream

import (
	"log"
	"sync"

	"github.com/panjf2000/gnet/v2"
)

// Receiver is the set of inbound callbacks a ByteStream owner registers
// (§6 onReceive/onReadError/onWriteError). Exactly one Receiver is bound
// to a stream for its lifetime.
type Receiver interface {
	OnReceive(p []byte)
	OnReadError(peerReset bool)
	OnWriteError(err error)
}

// ByteStream is the non-blocking duplex byte pipe external to the protocol
// core (§6). Enqueue never blocks; Close half-closes the write side once
// pending writes have drained.
type ByteStream interface {
	Enqueue(p []byte) error
	Close() error
}

// Gnet adapts a gnet.Conn into a ByteStream, batching outbound writes with
// AsyncWritev the way the teacher's internal/h1 ResponseWriter batches
// response fragments: a write in flight accumulates further Enqueue calls
// into a queued backlog instead of issuing another syscall.
type Gnet struct {
	conn   gnet.Conn
	logger *log.Logger

	mu       sync.Mutex
	pending  [][]byte
	inflight bool
	closed   bool
}

// NewGnet wraps c as a ByteStream. logger may be nil.
func NewGnet(c gnet.Conn, logger *log.Logger) *Gnet {
	return &Gnet{conn: c, logger: logger}
}

// Enqueue appends p to the outbound batch and triggers a write if none is
// already in flight. p is copied; callers may reuse it immediately.
func (g *Gnet) Enqueue(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	buf := make([]byte, len(p))
	copy(buf, p)

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.pending = append(g.pending, buf)
	g.mu.Unlock()

	return g.flush()
}

func (g *Gnet) flush() error {
	g.mu.Lock()
	if g.inflight || g.closed {
		g.mu.Unlock()
		return nil
	}
	batch := g.pending
	g.pending = nil
	if len(batch) == 0 {
		g.mu.Unlock()
		return nil
	}
	g.inflight = true
	g.mu.Unlock()

	return g.conn.AsyncWritev(batch, g.onWriteDone)
}

func (g *Gnet) onWriteDone(_ gnet.Conn, err error) error {
	if err != nil && g.logger != nil {
		g.logger.Printf("bytestream: write error: %v", err)
	}

	g.mu.Lock()
	g.inflight = false
	g.mu.Unlock()

	if err != nil {
		return err
	}
	return g.flush()
}

// Close half-closes the stream. Any data still batched is flushed first by
// the caller's last Enqueue; Close itself just tears down the socket.
func (g *Gnet) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	g.mu.Unlock()

	return g.conn.Close()
}
