package wire

import (
	"strconv"
	"strings"
)

// Request is an immutable-after-parse view of one HTTP/1.1 request. It is
// owned by a RequestContext and reset for reuse once that context is
// recycled (internal/wire/context.go).
type Request struct {
	Method        string
	Path          string
	RawQuery      string
	Query         MultiMap
	Version       string
	Headers       MultiMap
	Cookies       map[string]string
	ContentLength int64
	Body          []byte
	KeepAlive     bool
}

func newRequest() *Request {
	return &Request{
		Query:   NewMultiMap(),
		Headers: NewMultiMap(),
		Cookies: make(map[string]string),
	}
}

// reset clears r for reuse by the next pipelined request on the same
// connection, keeping backing arrays to avoid per-request allocation.
func (r *Request) reset() {
	r.Method = ""
	r.Path = ""
	r.RawQuery = ""
	r.Query.reset()
	r.Version = ""
	r.Headers.reset()
	for k := range r.Cookies {
		delete(r.Cookies, k)
	}
	r.ContentLength = 0
	r.Body = nil
	r.KeepAlive = false
}

// setRequestLine decodes method/target/version per §4.1: method lowercased,
// target percent-decoded then split on the first '?' into path and raw
// query, path normalized, query multimap built by splitting on '&' then the
// first '='. Returns false if the target cannot be percent-decoded.
func (r *Request) setRequestLine(method, target, version string) bool {
	r.Method = strings.ToLower(method)
	r.Version = version

	decoded, ok := percentDecode(target)
	if !ok {
		return false
	}

	path := decoded
	query := ""
	if i := strings.IndexByte(decoded, '?'); i >= 0 {
		path = decoded[:i]
		query = decoded[i+1:]
	}

	r.Path = normalizePath(path)
	r.RawQuery = query
	parseQuery(query, &r.Query)
	return true
}

// normalizePath strips the path down to the last segment's parent (§4.1:
// "Path with a trailing slash is normalized by stripping to the last
// segment's parent; empty path becomes /"), cutting at the last '/'
// unconditionally rather than only when one trails the path.
func normalizePath(p string) string {
	idx := strings.LastIndexByte(p, '/')
	if idx <= 0 {
		return "/"
	}
	return p[:idx]
}

// parseQuery splits s on '&' and each pair on the first '=', preserving
// duplicate keys and the order of first occurrence.
func parseQuery(s string, out *MultiMap) {
	if s == "" {
		return
	}
	for _, pair := range strings.Split(s, "&") {
		if pair == "" {
			continue
		}
		key := pair
		value := ""
		if i := strings.IndexByte(pair, '='); i >= 0 {
			key = pair[:i]
			value = pair[i+1:]
		}
		out.Add(key, value)
	}
}

// percentDecode decodes %XX escapes. It reports ok=false on a malformed
// escape sequence, which the parser surfaces as a 400.
func percentDecode(s string) (string, bool) {
	if strings.IndexByte(s, '%') < 0 {
		return s, true
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		if i+2 >= len(s) {
			return "", false
		}
		hi, ok1 := hexVal(s[i+1])
		lo, ok2 := hexVal(s[i+2])
		if !ok1 || !ok2 {
			return "", false
		}
		b.WriteByte(byte(hi<<4 | lo))
		i += 2
	}
	return b.String(), true
}

func hexVal(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	default:
		return 0, false
	}
}

// applyHeader accumulates one decoded header line into r, handling the
// content-length, cookie, and connection special cases from §4.1.
func (r *Request) applyHeader(name, value string) *ParseError {
	r.Headers.Add(name, value)

	switch name {
	case "content-length":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || n < 0 {
			return errBadContentLength
		}
		r.ContentLength = n
	case "cookie":
		parseCookieHeader(value, r.Cookies)
	case "connection":
		r.KeepAlive = connectionKeepAlive(r.Version, value)
	}
	return nil
}

// finishHeaders derives keep-alive when no Connection header was present:
// HTTP/1.1 defaults to keep-alive, anything else defaults to close.
func (r *Request) finishHeaders() {
	if !r.Headers.Has("connection") {
		r.KeepAlive = r.Version == "HTTP/1.1"
	}
}

func connectionKeepAlive(version, value string) bool {
	v := strings.ToLower(value)
	switch {
	case strings.Contains(v, "close"):
		return false
	case strings.Contains(v, "keep-alive"):
		return true
	default:
		return version == "HTTP/1.1"
	}
}

// parseCookieHeader splits a Cookie header value on ';' and each pair on
// the first '=', trimming whitespace from both name and value.
func parseCookieHeader(value string, out map[string]string) {
	for _, part := range strings.Split(value, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name := part
		val := ""
		if i := strings.IndexByte(part, '='); i >= 0 {
			name = part[:i]
			val = part[i+1:]
		}
		out[strings.TrimSpace(name)] = strings.TrimSpace(val)
	}
}
