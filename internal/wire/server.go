package wire

// Dispatcher is the handler interface HTTPServerContext drives (§6,
// "Dispatcher hook"). OnRequestReady is invoked synchronously, exactly
// once per RequestContext, only after it becomes ready and only when it is
// at the front of the pipeline queue (invariant 1, non-reentrant dispatch).
// OnRequestCompleted runs once the response has been flushed, or once,
// with whatever partial response exists, if the connection tears down
// mid-flight.
type Dispatcher interface {
	OnRequestReady(req *Request, res *Response)
	OnRequestCompleted(req *Request, res *Response)
}

// ErrorReporter is an optional extension a Dispatcher may also implement,
// shaped for path errors (§7 kind 2) with a POSIX-like code. Server never
// calls OnPathError: Response.SendFile reports a path error only through the
// *PathError it returns to its caller.
type ErrorReporter interface {
	OnPathError(req *Request, res *Response, err *PathError)
}

// Config bundles the construction-time, process-wide-but-immutable values
// an HTTPServerContext needs (§9 "Global configuration": no mutable
// singleton — an explicit record passed in instead).
type Config struct {
	DocumentRoot    string
	CompressMinSize int
	ServerName      string
}

// Server is the HTTPServerContext (§4.2): one instance per connection,
// owning the pipeline queue, driving the parser, and serializing responses
// onto the outbound ByteStream.
type Server struct {
	cfg        Config
	dispatcher Dispatcher
	parser     *Parser
	clock      *clock
	writer     *ResponseWriter

	sink    func([]byte) error
	closeFn func()

	queue    []*RequestContext
	building *RequestContext

	dispatching bool
	closed      bool

	// onUpgrade is invoked once, after a response with Upgrade() called is
	// flushed, handing control to the next protocol (e.g. WSFrameReceiver).
	onUpgrade func()
}

// NewServer creates an HTTPServerContext for one connection. sink enqueues
// bytes on the outbound ByteStream; closeFn half-closes it.
func NewServer(cfg Config, dispatcher Dispatcher, sink func([]byte) error, closeFn func()) *Server {
	if cfg.ServerName == "" {
		cfg.ServerName = "streamcore"
	}
	clk := sharedClockRef()
	s := &Server{
		cfg:        cfg,
		dispatcher: dispatcher,
		clock:      clk,
		sink:       sink,
		closeFn:    closeFn,
	}
	s.writer = NewResponseWriter(sink, clk.Now)
	s.parser = NewParser(s)
	return s
}

// OnUpgrade registers the callback fired once an upgraded response drains.
func (s *Server) OnUpgrade(fn func()) {
	s.onUpgrade = fn
}

// Receive feeds one chunk of bytes to the parser (§4.2 `receive`),
// tolerating arbitrary fragmentation and pipelined requests within the
// chunk.
func (s *Server) Receive(chunk []byte) {
	if s.closed {
		return
	}
	pos := 0
	for pos < len(chunk) {
		n := s.parser.Feed(chunk[pos:])
		if n == 0 {
			// The parser is quiescent after an error; nothing more can be
			// done with this chunk.
			return
		}
		pos += n
	}
}

// OnReadError handles a read failure from the ByteStream (§4.2
// `onReadError`, §7 kind 3): peer-reset codes are swallowed; anything else
// is logged by the caller and forces a reset.
func (s *Server) OnReadError(peerReset bool) {
	if peerReset {
		return
	}
	s.Close()
}

// --- Observer implementation -------------------------------------------------

func (s *Server) Begin() {
	rc := newRequestContext()
	s.queue = append(s.queue, rc)
	s.building = rc
	rc.Response.CompressMinSize = s.cfg.CompressMinSize
	rc.Response.DocumentRoot = s.cfg.DocumentRoot
	rc.Response.onFlush = func(status int, headers [][2]string, body []byte, keepAlive bool) error {
		return s.flushResponse(rc, status, headers, body, keepAlive)
	}
}

func (s *Server) RequestLine(method, target, version string) *ParseError {
	if version != "HTTP/1.1" && version != "HTTP/1.0" {
		return errUnsupportedVersion
	}
	if !s.building.Request.setRequestLine(method, target, version) {
		return errBadTarget
	}
	return nil
}

func (s *Server) Header(name, value string) *ParseError {
	return s.building.Request.applyHeader(name, value)
}

func (s *Server) HeadersComplete() int64 {
	req := s.building.Request
	req.finishHeaders()
	s.building.Response.acceptEncoding = req.Headers.Get("accept-encoding")
	s.building.Response.keepAlive = req.KeepAlive
	return req.ContentLength
}

func (s *Server) Body(p []byte) {
	s.building.Request.Body = append(s.building.Request.Body, p...)
}

func (s *Server) Parsed() {
	s.building.state = stateReady
	s.building = nil
	s.maybeDispatch()
}

func (s *Server) Error(status int, reason string) {
	rc := s.building
	rc.status = status
	rc.reason = reason
	rc.state = stateReady
	rc.Response.SetStatus(status)
	rc.Response.SetHeader("connection", "close")
	_ = rc.Response.SendString(reason)
	s.building = nil
	s.maybeDispatch()
}

// --- pipeline engine ---------------------------------------------------------

// maybeDispatch invokes the handler for the queue front exactly once, only
// when it is ready and no other request is currently dispatched (invariant
// 1, non-reentrant dispatch).
func (s *Server) maybeDispatch() {
	if s.dispatching || s.closed || len(s.queue) == 0 {
		return
	}
	front := s.queue[0]
	if !front.Ready() || front.state != stateReady {
		return
	}

	s.dispatching = true
	front.state = stateDispatched

	if front.Failed() {
		// Parser errors bypass the handler entirely (§4.2): the response
		// was already populated by Error().
		_ = front.Response.flush()
		return
	}

	s.dispatcher.OnRequestReady(front.Request, front.Response)
	if front.Response.state != ResponseClosed {
		_ = front.Response.flush()
	}
}

// flushResponse writes the response onto the wire in queue order
// (invariant 2) and then runs responseCompleted bookkeeping.
func (s *Server) flushResponse(rc *RequestContext, status int, headers [][2]string, body []byte, keepAlive bool) error {
	err := s.writer.Write(status, headers, body, keepAlive)
	s.responseCompleted(rc, keepAlive)
	return err
}

// responseCompleted is called once the front Response has been flushed
// (§4.2 `responseCompleted`). It pops the entry, notifies the dispatcher,
// and either advances keep-alive or terminates the connection.
func (s *Server) responseCompleted(rc *RequestContext, keepAlive bool) {
	rc.state = stateComplete
	s.dispatcher.OnRequestCompleted(rc.Request, rc.Response)

	upgraded := rc.Response.Upgraded()
	s.dispatching = false
	if len(s.queue) > 0 && s.queue[0] == rc {
		s.queue = s.queue[1:]
	}

	if upgraded {
		s.closed = true
		if s.onUpgrade != nil {
			s.onUpgrade()
		}
		return
	}

	if !(rc.Request.KeepAlive && keepAlive) || rc.Failed() {
		s.Close()
		return
	}

	s.maybeDispatch()
}

// Close tears down the connection idempotently (§4.2 destructor
// semantics): if a request is in flight, its OnRequestCompleted hook still
// fires once so application resources can be released.
func (s *Server) Close() {
	if s.closed {
		return
	}
	s.closed = true

	for _, rc := range s.queue {
		if rc.state == stateDispatched {
			rc.state = stateComplete
			s.dispatcher.OnRequestCompleted(rc.Request, rc.Response)
		}
	}
	s.queue = nil
	s.building = nil

	if s.closeFn != nil {
		s.closeFn()
	}
}
