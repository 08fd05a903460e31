package wire

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
)

// ResponseState is the Response's position in its Open -> HeaderSent ->
// Closed lifecycle (§3). Once HeaderSent, headers and cookies are frozen.
type ResponseState int

const (
	ResponseOpen ResponseState = iota
	ResponseHeaderSent
	ResponseClosed
)

// Cookie is one Set-Cookie entry: a value plus ordered attribute options
// (e.g. Path, Max-Age, HttpOnly). Options preserve insertion order, same as
// headers and query parameters.
type Cookie struct {
	Value   string
	Options [][2]string
}

// Response is the mutable builder side of one request/response pair. It
// accumulates status, headers, cookies, and body, and is frozen once its
// header line is emitted onto the wire (invariant 4).
type Response struct {
	Status      int
	Headers     MultiMap
	Cookies     map[string]Cookie
	cookieOrder []string
	Body        bytes.Buffer

	state     ResponseState
	keepAlive bool
	upgraded  bool

	// CompressMinSize gates transparent gzip/brotli compression of the
	// body (§4.3); 0 disables it.
	CompressMinSize int
	acceptEncoding  string

	// DocumentRoot, when non-empty, is the canonical base directory
	// SendFile resolves paths beneath.
	DocumentRoot string

	onFlush func(status int, headers [][2]string, body []byte, keepAlive bool) error
}

func newResponse() *Response {
	return &Response{
		Status:  200,
		Headers: NewMultiMap(),
		Cookies: make(map[string]Cookie),
	}
}

func (r *Response) reset() {
	r.Status = 200
	r.Headers.reset()
	for k := range r.Cookies {
		delete(r.Cookies, k)
	}
	r.cookieOrder = r.cookieOrder[:0]
	r.Body.Reset()
	r.state = ResponseOpen
	r.keepAlive = false
	r.acceptEncoding = ""
	r.upgraded = false
}

// Upgrade marks the response as the tail end of a successful protocol
// upgrade (e.g. WebSocket): once flushed, HTTPServerContext hands the
// underlying ByteStream to the next protocol's receiver instead of
// continuing HTTP/1.1 keep-alive (§4.2, §4.5).
func (r *Response) Upgrade() {
	r.upgraded = true
}

// Upgraded reports whether Upgrade was called for this response.
func (r *Response) Upgraded() bool {
	return r.upgraded
}

// SetStatus sets the response status code. A no-op once headers are sent.
func (r *Response) SetStatus(code int) {
	if r.state != ResponseOpen {
		return
	}
	r.Status = code
}

// SetHeader sets a response header. A no-op once headers are sent
// (invariant 4: no header mutation is observable on the wire afterward).
func (r *Response) SetHeader(name, value string) {
	if r.state != ResponseOpen {
		return
	}
	r.Headers.Add(strings.ToLower(name), value)
}

// SetCookie registers a Set-Cookie entry with the given options, in the
// order provided.
func (r *Response) SetCookie(name, value string, options ...[2]string) {
	if r.state != ResponseOpen {
		return
	}
	if _, exists := r.Cookies[name]; !exists {
		r.cookieOrder = append(r.cookieOrder, name)
	}
	r.Cookies[name] = Cookie{Value: value, Options: options}
}

// Send writes body bytes with a default Content-Type of
// application/octet-stream when none has been set.
func (r *Response) Send(body []byte) error {
	if !r.Headers.Has("content-type") {
		r.SetHeader("content-type", "application/octet-stream")
	}
	_, err := r.Body.Write(body)
	return err
}

// SendString writes a string body with a default Content-Type of
// text/html; charset=utf-8 when none has been set.
func (r *Response) SendString(s string) error {
	if !r.Headers.Has("content-type") {
		r.SetHeader("content-type", "text/html; charset=utf-8")
	}
	_, err := r.Body.WriteString(s)
	return err
}

// SendJSON is a convenience wrapper matching the ambient handler surface:
// callers marshal themselves and hand Send the bytes with "application/json".
func (r *Response) SendJSON(body []byte) error {
	r.SetHeader("content-type", "application/json")
	_, err := r.Body.Write(body)
	return err
}

// PathError carries the ENOENT/EACCES code of a SendFile path error (§7
// kind 2) together with the underlying error.
type PathError struct {
	Code string // "ENOENT" or "EACCES"
	Err  error
}

func (e *PathError) Error() string { return e.Code + ": " + e.Err.Error() }

// SendFile resolves name beneath DocumentRoot, rejecting any path that
// escapes the root (403) or does not exist (404), and otherwise streams the
// file with an inferred Content-Type, Content-Length, and Last-Modified.
func (r *Response) SendFile(name string) error {
	root, err := filepath.Abs(r.DocumentRoot)
	if err != nil {
		return err
	}
	joined := filepath.Join(root, filepath.Clean("/"+name))
	abs, err := filepath.Abs(joined)
	if err != nil {
		return err
	}
	if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		r.Status = 403
		return &PathError{Code: "EACCES", Err: fmt.Errorf("path escapes document root: %s", name)}
	}

	f, err := os.Open(abs)
	if err != nil {
		r.Status = 404
		return &PathError{Code: "ENOENT", Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		r.Status = 404
		return &PathError{Code: "ENOENT", Err: err}
	}
	if info.IsDir() {
		r.Status = 404
		return &PathError{Code: "ENOENT", Err: fmt.Errorf("%s is a directory", name)}
	}

	ctype := mime.TypeByExtension(filepath.Ext(abs))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	r.SetHeader("content-type", ctype)
	r.SetHeader("last-modified", info.ModTime().UTC().Format(imfFixdate))

	if _, err := io.Copy(&r.Body, f); err != nil {
		return err
	}
	return nil
}

const imfFixdate = "Mon, 02 Jan 2006 15:04:05 GMT"

// flush finalizes the response: it freezes headers/cookies, optionally
// compresses the body (§4.3), and hands the finished status/headers/body to
// onFlush, which serializes it onto the wire via HTTPResponseWriter.
func (r *Response) flush() error {
	if r.state == ResponseClosed {
		return nil
	}
	body := r.Body.Bytes()
	encoding, compressed := r.maybeCompress(body)
	if encoding != "" {
		r.SetHeader("content-encoding", encoding)
		r.SetHeader("vary", "accept-encoding")
		body = compressed
	}

	headers := make([][2]string, 0, r.Headers.Len()+len(r.cookieOrder)+2)
	r.Headers.Each(func(k, v string) {
		headers = append(headers, [2]string{k, v})
	})
	for _, name := range r.cookieOrder {
		headers = append(headers, [2]string{"set-cookie", formatSetCookie(name, r.Cookies[name])})
	}

	r.state = ResponseHeaderSent
	var err error
	if r.onFlush != nil {
		err = r.onFlush(r.Status, headers, body, r.keepAlive)
	}
	r.state = ResponseClosed
	return err
}

// maybeCompress applies gzip or brotli when the body is at least
// CompressMinSize bytes and the client's Accept-Encoding mentions one,
// choosing brotli whenever "br" appears (as the teacher's Compress
// middleware does); quality values are not consulted.
func (r *Response) maybeCompress(body []byte) (encoding string, out []byte) {
	if r.CompressMinSize <= 0 || len(body) < r.CompressMinSize {
		return "", nil
	}
	if r.Headers.Has("content-encoding") {
		return "", nil
	}
	supportsBrotli := strings.Contains(r.acceptEncoding, "br")
	supportsGzip := strings.Contains(r.acceptEncoding, "gzip")
	if !supportsBrotli && !supportsGzip {
		return "", nil
	}

	var buf bytes.Buffer
	if supportsBrotli {
		w := brotli.NewWriter(&buf)
		if _, err := w.Write(body); err != nil {
			return "", nil
		}
		_ = w.Close()
		if buf.Len() < len(body) {
			return "br", buf.Bytes()
		}
		return "", nil
	}
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(body); err != nil {
		return "", nil
	}
	_ = w.Close()
	if buf.Len() < len(body) {
		return "gzip", buf.Bytes()
	}
	return "", nil
}

func formatSetCookie(name string, c Cookie) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('=')
	b.WriteString(c.Value)
	for _, opt := range c.Options {
		b.WriteString("; ")
		b.WriteString(opt[0])
		if opt[1] != "" {
			b.WriteByte('=')
			b.WriteString(opt[1])
		}
	}
	return b.String()
}

// ResponseWriter serializes a Response onto a ByteStream-like sink,
// enforcing status-line + header + body ordering and Connection framing
// per §4.3. The default headers (Date, Cache-Control, Accept-Ranges,
// Server, Connection) are synthesized here rather than on Response so a
// Response stays a plain data builder.
type ResponseWriter struct {
	sink       func(b []byte) error
	dateFn     func() []byte
	serverName string
}

// NewResponseWriter creates a writer that appends serialized bytes via
// sink (typically ByteStream.Enqueue) and stamps the Date header using
// dateFn (see internal/wire/date.go for the cached-clock source).
func NewResponseWriter(sink func([]byte) error, dateFn func() []byte) *ResponseWriter {
	return &ResponseWriter{sink: sink, dateFn: dateFn, serverName: "streamcore"}
}

// Write serializes status/headers/cookies/body per §4.3: status line, Date,
// default headers when absent, user headers in insertion order, then
// Set-Cookie lines, then the blank line and body.
func (w *ResponseWriter) Write(status int, headers [][2]string, body []byte, keepAlive bool) error {
	var buf bytes.Buffer
	buf.WriteString("HTTP/1.1 ")
	buf.WriteString(strconv.Itoa(status))
	buf.WriteByte(' ')
	buf.WriteString(statusText(status))
	buf.WriteString("\r\n")

	seen := make(map[string]bool, len(headers)+6)
	for _, h := range headers {
		seen[h[0]] = true
	}

	if !seen["date"] {
		buf.WriteString("date: ")
		buf.Write(w.dateFn())
		buf.WriteString("\r\n")
	}
	if !seen["cache-control"] {
		buf.WriteString("cache-control: public, max-age=0\r\n")
	}
	if !seen["accept-ranges"] {
		buf.WriteString("accept-ranges: bytes\r\n")
	}
	if !seen["server"] {
		buf.WriteString("server: ")
		buf.WriteString(w.serverName)
		buf.WriteString("\r\n")
	}
	if !seen["content-length"] {
		buf.WriteString("content-length: ")
		buf.WriteString(strconv.Itoa(len(body)))
		buf.WriteString("\r\n")
	}
	if !seen["connection"] {
		if keepAlive {
			buf.WriteString("connection: keep-alive\r\n")
		} else {
			buf.WriteString("connection: close\r\n")
		}
	}

	for _, h := range headers {
		buf.WriteString(h[0])
		buf.WriteString(": ")
		buf.WriteString(h[1])
		buf.WriteString("\r\n")
	}

	buf.WriteString("\r\n")
	if len(body) > 0 {
		buf.Write(body)
	}

	return w.sink(buf.Bytes())
}

func statusText(code int) string {
	if t, ok := statusTexts[code]; ok {
		return t
	}
	return "Unknown"
}

var statusTexts = map[int]string{
	100: "Continue", 101: "Switching Protocols",
	200: "OK", 201: "Created", 202: "Accepted", 204: "No Content", 206: "Partial Content",
	301: "Moved Permanently", 302: "Found", 304: "Not Modified", 307: "Temporary Redirect", 308: "Permanent Redirect",
	400: "Bad Request", 401: "Unauthorized", 403: "Forbidden", 404: "Not Found", 405: "Method Not Allowed",
	408: "Request Timeout", 409: "Conflict", 410: "Gone", 413: "Payload Too Large", 414: "URI Too Long",
	415: "Unsupported Media Type", 429: "Too Many Requests",
	500: "Internal Server Error", 501: "Not Implemented", 502: "Bad Gateway", 503: "Service Unavailable", 504: "Gateway Timeout",
}
