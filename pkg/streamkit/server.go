package streamkit

import (
	"context"
	"fmt"

	"github.com/brekkeio/streamcore/internal/transport"
	"github.com/brekkeio/streamcore/internal/wire"
)

// WSHandler receives fully-assembled WebSocket messages for connections
// this Server has upgraded, generalizing internal/transport.WSHandler
// onto a streamkit-level connection handle.
type WSHandler interface {
	OnWSOpen(conn *Conn)
	OnWSMessage(conn *Conn, opcode byte, payload []byte)
	OnWSClose(conn *Conn, code int)
}

// Conn is the per-connection handle an upgraded WSHandler operates on.
type Conn struct{ inner *transport.Conn }

// RemoteAddr returns the peer's classified socket address.
func (c *Conn) RemoteAddr() string { return c.inner.RemoteAddr().String() }

// Send writes a pre-framed WebSocket message (see internal/ws.WriteFrame).
func (c *Conn) Send(p []byte) error { return c.inner.Send(p) }

// Close closes the underlying connection.
func (c *Conn) Close() error { return c.inner.Close() }

// Server is the HTTP/1.1 + WebSocket server: it wires a Router (as the
// wire.Dispatcher) and an optional WSHandler onto an internal/transport
// event loop.
type Server struct {
	cfg       Config
	router    *Router
	wsHandler WSHandler
	transport *transport.Server
}

// New creates a Server bound to router, validating and normalizing cfg.
func New(cfg Config, router *Router) *Server {
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	return &Server{cfg: cfg, router: router}
}

// OnWebSocket registers the handler for upgraded connections.
func (s *Server) OnWebSocket(h WSHandler) *Server {
	s.wsHandler = h
	return s
}

// ListenAndServe starts the event loop in a background goroutine and
// returns immediately; a failure of the listener to bind is not reported
// through its return value.
func (s *Server) ListenAndServe() error {
	s.transport = transport.NewServer(&dispatcherAdapter{router: s.router}, s.wsAdapter(), transport.Config{
		Addr:            s.cfg.Addr,
		Multicore:       s.cfg.Multicore,
		NumEventLoop:    s.cfg.NumEventLoop,
		ReusePort:       s.cfg.ReusePort,
		Logger:          s.cfg.Logger,
		MaxConnections:  s.cfg.MaxConnections,
		DocumentRoot:    s.cfg.DocumentRoot,
		CompressMinSize: s.cfg.CompressMinSize,
		ServerName:      s.cfg.ServerName,
		TLSConfig:       s.cfg.TLSConfig,
	})
	return s.transport.Start()
}

// Stop gracefully shuts the server down, closing every open connection.
func (s *Server) Stop(ctx context.Context) error {
	if s.transport == nil {
		return nil
	}
	return s.transport.Stop(ctx)
}

func (s *Server) wsAdapter() transport.WSHandler {
	if s.wsHandler == nil {
		return nil
	}
	return &wsHandlerAdapter{h: s.wsHandler}
}

// dispatcherAdapter implements wire.Dispatcher by running the front
// request through the Router inside a fresh Context (§6 "Dispatcher
// hook").
type dispatcherAdapter struct {
	router *Router
}

func (d *dispatcherAdapter) OnRequestReady(req *wire.Request, res *wire.Response) {
	ctx := newContext(context.Background(), req, res)
	if err := d.router.Serve(ctx); err != nil {
		// The router's own error handler already had a chance to render
		// a body; a surviving error here means it chose not to, so fall
		// back to a bare 500 rather than leaving the response half-built.
		if res.Status < 400 {
			res.SetStatus(500)
		}
		_ = res.SendString(fmt.Sprintf("internal error: %v", err))
	}
}

func (d *dispatcherAdapter) OnRequestCompleted(req *wire.Request, res *wire.Response) {}

// wsHandlerAdapter bridges internal/transport.WSHandler to the
// streamkit.WSHandler surface applications implement.
type wsHandlerAdapter struct{ h WSHandler }

func (a *wsHandlerAdapter) OnWSOpen(c *transport.Conn) { a.h.OnWSOpen(&Conn{inner: c}) }
func (a *wsHandlerAdapter) OnWSMessage(c *transport.Conn, opcode byte, payload []byte) {
	a.h.OnWSMessage(&Conn{inner: c}, opcode, payload)
}
func (a *wsHandlerAdapter) OnWSClose(c *transport.Conn, code int) {
	a.h.OnWSClose(&Conn{inner: c}, code)
}
