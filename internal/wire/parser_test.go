package wire

import (
	"reflect"
	"strings"
	"testing"
)

// recordingObserver captures every Observer callback as a comparable event
// so fragmentation invariance can be checked by comparing event slices.
type recordingObserver struct {
	events                  []string
	method, target, version string
	headers                 [][2]string
	body                    []byte
	contentLength           int64
}

func (r *recordingObserver) Begin() { r.events = append(r.events, "begin") }

func (r *recordingObserver) RequestLine(method, target, version string) *ParseError {
	r.method, r.target, r.version = method, target, version
	r.events = append(r.events, "requestLine:"+method+" "+target+" "+version)
	return nil
}

func (r *recordingObserver) Header(name, value string) *ParseError {
	r.headers = append(r.headers, [2]string{name, value})
	r.events = append(r.events, "header:"+name+"="+value)
	return nil
}

func (r *recordingObserver) HeadersComplete() int64 {
	r.events = append(r.events, "headersComplete")
	return r.contentLength
}

func (r *recordingObserver) Body(p []byte) {
	r.body = append(r.body, p...)
	r.events = append(r.events, "body:"+string(p))
}

func (r *recordingObserver) Parsed() { r.events = append(r.events, "parsed") }

func (r *recordingObserver) Error(status int, reason string) {
	r.events = append(r.events, "error")
}

func feedAllAtOnce(t *testing.T, input []byte) *recordingObserver {
	t.Helper()
	obs := &recordingObserver{}
	p := NewParser(obs)
	pos := 0
	for pos < len(input) {
		n := p.Feed(input[pos:])
		if n == 0 {
			break
		}
		pos += n
	}
	return obs
}

func feedByteAtATime(t *testing.T, input []byte) *recordingObserver {
	t.Helper()
	obs := &recordingObserver{}
	p := NewParser(obs)
	for _, b := range input {
		p.Feed([]byte{b})
	}
	return obs
}

func TestMinimalGET(t *testing.T) {
	input := []byte("GET /a?x=1&y=2 HTTP/1.1\r\nHost: h\r\n\r\n")
	obs := feedAllAtOnce(t, input)

	if obs.method != "GET" || obs.target != "/a?x=1&y=2" || obs.version != "HTTP/1.1" {
		t.Fatalf("unexpected request line: %+v", obs)
	}
	if len(obs.body) != 0 {
		t.Fatalf("expected empty body, got %q", obs.body)
	}

	last := obs.events[len(obs.events)-1]
	if last != "parsed" && obs.events[len(obs.events)-2] != "parsed" {
		t.Fatalf("expected a parsed event, got %v", obs.events)
	}
}

func TestFragmentationInvariance(t *testing.T) {
	input := []byte("GET /a?x=1&y=2 HTTP/1.1\r\nHost: h\r\n\r\n")
	whole := feedAllAtOnce(t, input)
	perByte := feedByteAtATime(t, input)

	if !reflect.DeepEqual(whole.events, perByte.events) {
		t.Fatalf("events differ:\nwhole:   %v\nperByte: %v", whole.events, perByte.events)
	}
}

// fakeDispatcher records every dispatched request/response pair in arrival
// order, standing in for the application handler in pipeline tests.
type fakeDispatcher struct {
	ready     []*Request
	completed []*Request
	onReady   func(req *Request, res *Response)
}

func (f *fakeDispatcher) OnRequestReady(req *Request, res *Response) {
	f.ready = append(f.ready, req)
	if f.onReady != nil {
		f.onReady(req, res)
		return
	}
	_ = res.SendString("ok")
}

func (f *fakeDispatcher) OnRequestCompleted(req *Request, res *Response) {
	f.completed = append(f.completed, req)
}

func newTestServer(d Dispatcher) (*Server, *[][]byte) {
	var wire [][]byte
	sink := func(p []byte) error {
		b := append([]byte(nil), p...)
		wire = append(wire, b)
		return nil
	}
	srv := NewServer(Config{}, d, sink, func() {})
	return srv, &wire
}

// TestBodyWithContentLength drives content-length through the full
// pipeline (§8 scenario 3).
func TestBodyWithContentLength(t *testing.T) {
	d := &fakeDispatcher{}
	srv, _ := newTestServer(d)
	srv.Receive([]byte("POST / HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello"))

	if len(d.ready) != 1 {
		t.Fatalf("expected 1 dispatched request, got %d", len(d.ready))
	}
	req := d.ready[0]
	if string(req.Body) != "hello" {
		t.Fatalf("expected body %q, got %q", "hello", req.Body)
	}
	if req.ContentLength != 5 {
		t.Fatalf("expected content length 5, got %d", req.ContentLength)
	}
}

func TestPipeliningOrder(t *testing.T) {
	d := &fakeDispatcher{}
	srv, wireBytes := newTestServer(d)

	reqs := "GET /one/req HTTP/1.1\r\nConnection: keep-alive\r\n\r\n" +
		"GET /two/req HTTP/1.1\r\nConnection: keep-alive\r\n\r\n" +
		"GET /three/req HTTP/1.1\r\nConnection: close\r\n\r\n"
	srv.Receive([]byte(reqs))

	if len(d.ready) != 3 {
		t.Fatalf("expected 3 dispatched requests, got %d", len(d.ready))
	}
	order := []string{d.ready[0].Path, d.ready[1].Path, d.ready[2].Path}
	want := []string{"/one", "/two", "/three"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("dispatch order = %v, want %v", order, want)
	}
	if len(*wireBytes) != 3 {
		t.Fatalf("expected 3 responses written, got %d", len(*wireBytes))
	}
	if !srv.closed {
		t.Fatalf("expected connection to be closed after a Connection: close request")
	}
}

func TestKeepAliveCorrectness(t *testing.T) {
	d := &fakeDispatcher{}
	srv, _ := newTestServer(d)
	srv.Receive([]byte("GET / HTTP/1.1\r\nConnection: keep-alive\r\n\r\n"))
	if len(d.ready) != 1 || srv.closed {
		t.Fatalf("expected 1 dispatch and an open connection, got %d dispatches, closed=%v", len(d.ready), srv.closed)
	}

	srv.Receive([]byte("GET /again HTTP/1.1\r\nConnection: keep-alive\r\n\r\n"))
	if len(d.ready) != 2 || srv.closed {
		t.Fatalf("expected 2 dispatches and an open connection, got %d dispatches, closed=%v", len(d.ready), srv.closed)
	}
}

func TestConnectionCloseEndsAfterOneDispatch(t *testing.T) {
	d := &fakeDispatcher{}
	srv, _ := newTestServer(d)
	srv.Receive([]byte("GET / HTTP/1.1\r\nConnection: close\r\n\r\n"))
	if len(d.ready) != 1 {
		t.Fatalf("expected exactly 1 dispatch, got %d", len(d.ready))
	}
	if !srv.closed {
		t.Fatalf("expected connection closed after Connection: close")
	}
}

func TestIdempotentReset(t *testing.T) {
	d := &fakeDispatcher{}
	srv, _ := newTestServer(d)
	srv.Close()
	closedAfterFirst := srv.closed
	srv.Close()
	if !closedAfterFirst || !srv.closed {
		t.Fatalf("expected Close to be idempotent")
	}
}

func TestMalformedRequestProduces400AndClose(t *testing.T) {
	d := &fakeDispatcher{}
	srv, wireBytes := newTestServer(d)
	srv.Receive([]byte("\r\n"))

	if len(*wireBytes) != 1 {
		t.Fatalf("expected exactly one response written, got %d", len(*wireBytes))
	}
	resp := string((*wireBytes)[0])
	if !containsAll(resp, "HTTP/1.1 400", "connection: close") {
		t.Fatalf("expected a 400 with Connection: close, got %q", resp)
	}
	if !srv.closed {
		t.Fatalf("expected the connection to terminate after a malformed request")
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}

func TestMalformedRequestLine(t *testing.T) {
	obs := &recordingObserver{}
	p := NewParser(obs)
	p.Feed([]byte("\r\n"))

	found := false
	for _, e := range obs.events {
		if e == "error" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an error event, got %v", obs.events)
	}
}

func TestHeaderFolding(t *testing.T) {
	input := []byte("GET / HTTP/1.1\r\nX-Long: first\r\n continuation\r\n\r\n")
	obs := feedAllAtOnce(t, input)

	want := [][2]string{{"x-long", "first continuation"}}
	if !reflect.DeepEqual(obs.headers, want) {
		t.Fatalf("expected folded header %v, got %v", want, obs.headers)
	}
}

func TestPipelinedRawBytesSplitRequestBoundary(t *testing.T) {
	// Two minimal requests back to back; the parser must stop consuming
	// at the boundary of the first so a caller (HTTPServerContext) can
	// re-arm for the next one independently.
	first := "GET /one HTTP/1.1\r\nHost: h\r\n\r\n"
	second := "GET /two HTTP/1.1\r\nHost: h\r\n\r\n"
	input := []byte(first + second)

	obs := &recordingObserver{}
	p := NewParser(obs)
	n := p.Feed(input)
	if n != len(first) {
		t.Fatalf("expected parser to consume exactly the first request (%d bytes), consumed %d", len(first), n)
	}
}
