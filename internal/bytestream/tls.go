package bytestream

import (
	"crypto/tls"
	"errors"
	"io"
	"net"
	"sync"
)

// Phase is the TLS session's lifecycle phase (§9 "{Plain, Tls{session,
// phase}} variant"): record-layer bytes behave differently depending on
// whether the handshake is still in progress.
type Phase int

const (
	PhaseHandshaking Phase = iota
	PhaseEstablished
	PhaseClosing
)

// TLS layers a server-side TLS session over an inner plain ByteStream,
// presenting the same ByteStream interface to callers (internal/wire,
// internal/ws never see ciphertext). The record layer itself is delegated
// to crypto/tls by bridging it onto an in-process net.Conn pipe: ciphertext
// arriving on the inner stream is fed into one end of the pipe, and
// crypto/tls's output on the other end is re-enqueued on the inner stream.
type TLS struct {
	inner  ByteStream
	config *tls.Config

	mu    sync.Mutex
	phase Phase

	pipeLocal  net.Conn
	pipeRemote net.Conn
	tlsConn    *tls.Conn

	plaintextOut chan []byte
	recv         Receiver
}

// NewTLS wraps inner in a server-side TLS session using config. The
// handshake and subsequent record-layer traffic run on a dedicated
// goroutine pumping through a net.Pipe bridge; application bytes reach recv
// through the normal Receiver callbacks once the session is Established.
func NewTLS(inner ByteStream, config *tls.Config, recv Receiver) *TLS {
	local, remote := net.Pipe()
	t := &TLS{
		inner:        inner,
		config:       config,
		phase:        PhaseHandshaking,
		pipeLocal:    local,
		pipeRemote:   remote,
		plaintextOut: make(chan []byte, 16),
		recv:         recv,
	}
	t.tlsConn = tls.Server(remote, config)

	go t.pumpCiphertextOut()
	go t.pumpPlaintextIn()

	return t
}

// pumpCiphertextOut drains whatever crypto/tls writes to its side of the
// pipe and re-enqueues it on the inner plain stream.
func (t *TLS) pumpCiphertextOut() {
	buf := make([]byte, 16384)
	for {
		n, err := t.pipeLocal.Read(buf)
		if n > 0 {
			_ = t.inner.Enqueue(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

// pumpPlaintextIn runs the handshake then continuously reads decrypted
// application data, handing it to the Receiver exactly as a plain stream
// would.
func (t *TLS) pumpPlaintextIn() {
	if err := t.tlsConn.Handshake(); err != nil {
		t.recv.OnReadError(false)
		return
	}
	t.mu.Lock()
	t.phase = PhaseEstablished
	t.mu.Unlock()

	buf := make([]byte, 16384)
	for {
		n, err := t.tlsConn.Read(buf)
		if n > 0 {
			t.recv.OnReceive(buf[:n])
		}
		if err != nil {
			t.mu.Lock()
			t.phase = PhaseClosing
			t.mu.Unlock()
			t.recv.OnReadError(isResetLike(err))
			return
		}
	}
}

// FeedCiphertext delivers ciphertext bytes read from the underlying
// transport into the TLS record layer. Callers (the transport's OnTraffic
// handler) invoke this instead of handing bytes straight to a Receiver
// when the connection has TLS layered on it. It writes to the local end of
// the pipe so that tlsConn, built over the remote end, observes it as
// incoming data on its Read side; writing to pipeRemote here would instead
// loop the bytes back out through pumpCiphertextOut.
func (t *TLS) FeedCiphertext(p []byte) {
	_, _ = t.pipeLocal.Write(p)
}

// Enqueue encrypts p via the TLS record layer and forwards the resulting
// ciphertext to the inner stream.
func (t *TLS) Enqueue(p []byte) error {
	_, err := t.tlsConn.Write(p)
	return err
}

// Close tears down the TLS session and the inner stream.
func (t *TLS) Close() error {
	t.mu.Lock()
	t.phase = PhaseClosing
	t.mu.Unlock()
	_ = t.tlsConn.Close()
	return t.inner.Close()
}

// Phase reports the current handshake lifecycle phase.
func (t *TLS) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

func isResetLike(err error) bool {
	return errors.Is(err, io.EOF)
}
