// Package transport is the gnet.EventHandler that ties one network
// connection to an internal/wire.Server (HTTP/1.1) and, once a response
// upgrades the connection, to an internal/ws.Receiver (WebSocket frames).
// It owns connection admission, the per-connection ByteStream, and the
// protocol handoff; it carries none of the parsing logic itself (§4.2,
// §4.4, §6 "external collaborator: the OS socket / event loop").
package transport

import (
	"context"
	"crypto/tls"
	"log"
	"sync"
	"sync/atomic"

	"github.com/brekkeio/streamcore/internal/bytestream"
	"github.com/brekkeio/streamcore/internal/netaddr"
	"github.com/brekkeio/streamcore/internal/wire"
	"github.com/brekkeio/streamcore/internal/ws"
	"github.com/panjf2000/gnet/v2"
)

// WSHandler receives fully assembled WebSocket messages and lifecycle
// events for connections this transport has upgraded (§4.5, §4.4).
type WSHandler interface {
	OnWSOpen(conn *Conn)
	OnWSMessage(conn *Conn, opcode byte, payload []byte)
	OnWSClose(conn *Conn, code int)
}

// Config configures the transport server. It is constructed once and never
// mutated afterward (§9 "no global mutable configuration state").
type Config struct {
	Addr           string
	Multicore      bool
	NumEventLoop   int
	ReusePort      bool
	Logger         *log.Logger
	MaxConnections uint32

	DocumentRoot    string
	CompressMinSize int
	ServerName      string

	// TLSConfig, if non-nil, layers TLS over every accepted connection
	// before any HTTP bytes are parsed (§9 Plain/Tls variant).
	TLSConfig *tls.Config
}

// Conn is the per-connection handle exposed to WSHandler, wrapping the
// raw gnet.Conn behind the address abstraction and a Send method
// bound to whichever ByteStream (plain or TLS) is in effect.
type Conn struct {
	raw    gnet.Conn
	stream bytestream.ByteStream
}

// RemoteAddr returns the classified peer address (§9 SocketAddress).
func (c *Conn) RemoteAddr() netaddr.SocketAddress {
	return netaddr.FromNetAddr(c.raw.RemoteAddr())
}

// Send enqueues a WebSocket frame's raw bytes (already framed by the
// caller) onto the connection's outbound stream.
func (c *Conn) Send(p []byte) error {
	return c.stream.Enqueue(p)
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.stream.Close()
}

// Server is the gnet.EventHandler. One Server serves many connections;
// each connection gets its own wire.Server / ws.Receiver pair.
type Server struct {
	gnet.BuiltinEventEngine

	cfg        Config
	dispatcher wire.Dispatcher
	wsHandler  WSHandler

	ctx    context.Context
	cancel context.CancelFunc
	logger *log.Logger

	sessions sync.Map // map[gnet.Conn]*session

	maxConnections uint32
	activeConns    uint32

	engine        gnet.Engine
	engineStarted bool
}

type session struct {
	conn *Conn
	gn   *bytestream.Gnet
	tls  *bytestream.TLS

	http     *wire.Server
	upgraded bool
	ws       *ws.Receiver
}

// NewServer creates a transport server. dispatcher handles HTTP requests;
// wsHandler (may be nil if the application never upgrades a connection)
// handles WebSocket traffic after an upgrade.
func NewServer(dispatcher wire.Dispatcher, wsHandler WSHandler, cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = 10000
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:            cfg,
		dispatcher:     dispatcher,
		wsHandler:      wsHandler,
		ctx:            ctx,
		cancel:         cancel,
		logger:         cfg.Logger,
		maxConnections: cfg.MaxConnections,
	}
}

// Start runs the gnet event loop in a background goroutine.
func (s *Server) Start() error {
	options := []gnet.Option{
		gnet.WithMulticore(s.cfg.Multicore),
		gnet.WithReusePort(s.cfg.ReusePort),
		gnet.WithTCPNoDelay(gnet.TCPNoDelay),
		gnet.WithLogger(silentGnetLogger{}),
	}
	if s.cfg.NumEventLoop > 0 {
		options = append(options, gnet.WithNumEventLoop(s.cfg.NumEventLoop))
	}

	s.logger.Printf("starting transport on %s", s.cfg.Addr)
	go func() {
		_ = gnet.Run(s, "tcp://"+s.cfg.Addr, options...)
	}()
	return nil
}

// Stop closes every open connection and stops the event engine.
func (s *Server) Stop(ctx context.Context) error {
	s.cancel()
	s.sessions.Range(func(key, _ any) bool {
		if c, ok := key.(gnet.Conn); ok {
			_ = c.Close()
		}
		return true
	})
	if s.engineStarted {
		return s.engine.Stop(ctx)
	}
	return nil
}

func (s *Server) OnBoot(eng gnet.Engine) gnet.Action {
	s.engine = eng
	s.engineStarted = true
	return gnet.None
}

func (s *Server) OnOpen(c gnet.Conn) ([]byte, gnet.Action) {
	if atomic.LoadUint32(&s.activeConns) >= s.maxConnections {
		return nil, gnet.Close
	}
	atomic.AddUint32(&s.activeConns, 1)

	sess := &session{}
	sess.gn = bytestream.NewGnet(c, s.logger)
	sess.conn = &Conn{raw: c, stream: sess.gn}

	var sink bytestream.ByteStream = sess.gn
	if s.cfg.TLSConfig != nil {
		sess.tls = bytestream.NewTLS(sess.gn, s.cfg.TLSConfig, &sessionReceiver{s: s, conn: c})
		sink = sess.tls
		sess.conn.stream = sink
	}

	sess.http = wire.NewServer(wire.Config{
		DocumentRoot:    s.cfg.DocumentRoot,
		CompressMinSize: s.cfg.CompressMinSize,
		ServerName:      s.cfg.ServerName,
	}, s.dispatcher, sink.Enqueue, func() { _ = c.Close() })

	sess.http.OnUpgrade(func() { s.onUpgrade(sess) })

	s.sessions.Store(c, sess)
	return nil, gnet.None
}

func (s *Server) OnClose(c gnet.Conn, _ error) gnet.Action {
	if v, ok := s.sessions.LoadAndDelete(c); ok {
		sess := v.(*session)
		if sess.upgraded && s.wsHandler != nil {
			s.wsHandler.OnWSClose(sess.conn, 1006)
		}
	}
	atomic.AddUint32(&s.activeConns, ^uint32(0))
	return gnet.None
}

// OnTraffic is invoked whenever bytes arrive on a connection. On a plain
// connection they go straight to session.deliver; on a TLS connection they
// are ciphertext fed into bytestream.TLS, whose own read loop hands the
// decrypted bytes back through sessionReceiver.OnReceive.
func (s *Server) OnTraffic(c gnet.Conn) gnet.Action {
	v, ok := s.sessions.Load(c)
	if !ok {
		return gnet.Close
	}
	sess := v.(*session)

	buf, err := c.Next(-1)
	if err != nil || len(buf) == 0 {
		return gnet.None
	}

	if sess.tls != nil {
		sess.tls.FeedCiphertext(buf)
		return gnet.None
	}
	sess.deliver(buf)
	return gnet.None
}

// deliver routes plaintext bytes to whichever protocol state machine owns
// the connection right now.
func (sess *session) deliver(p []byte) {
	if sess.upgraded {
		pos := 0
		for pos < len(p) {
			n := sess.ws.Feed(p[pos:])
			if n == 0 {
				return
			}
			pos += n
		}
		return
	}
	sess.http.Receive(p)
}

// sessionReceiver adapts the plaintext output of a bytestream.TLS session
// back into the same session.deliver routing plain connections use.
type sessionReceiver struct {
	s    *Server
	conn gnet.Conn
}

func (r *sessionReceiver) OnReceive(p []byte) {
	if v, ok := r.s.sessions.Load(r.conn); ok {
		v.(*session).deliver(p)
	}
}

func (r *sessionReceiver) OnReadError(peerReset bool) {
	if v, ok := r.s.sessions.Load(r.conn); ok {
		sess := v.(*session)
		if !peerReset {
			r.s.logger.Printf("transport: read error on %s, resetting connection", r.conn.RemoteAddr())
		}
		if !sess.upgraded {
			sess.http.OnReadError(peerReset)
		}
	}
}

func (r *sessionReceiver) OnWriteError(err error) {}

// onUpgrade installs a ws.Receiver in place of the HTTP parser once a
// response's Upgrade() has been flushed (§4.2 -> §4.4 handoff).
func (s *Server) onUpgrade(sess *session) {
	sess.upgraded = true
	sess.ws = ws.NewReceiver(&wsObserver{s: s, sess: sess})
	if s.wsHandler != nil {
		s.wsHandler.OnWSOpen(sess.conn)
	}
}

type silentGnetLogger struct{}

func (silentGnetLogger) Debugf(string, ...any) {}
func (silentGnetLogger) Infof(string, ...any)  {}
func (silentGnetLogger) Warnf(string, ...any)  {}
func (silentGnetLogger) Errorf(string, ...any) {}
func (silentGnetLogger) Fatalf(string, ...any) {}
