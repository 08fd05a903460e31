package wire

// ParseError pairs an HTTP status with a diagnostic reason. It is the value
// carried by Observer.Error and by the errors an Observer implementation
// returns from RequestLine/Header/HeadersComplete to abort the current
// request.
type ParseError struct {
	Status int
	Reason string
}

func (e *ParseError) Error() string { return e.Reason }

var errBadContentLength = &ParseError{Status: 400, Reason: "invalid content-length"}
var errBadRequestLine = &ParseError{Status: 400, Reason: "malformed request line"}
var errBadHeaderLine = &ParseError{Status: 400, Reason: "malformed header line"}
var errBadTarget = &ParseError{Status: 400, Reason: "malformed request target"}
var errUnsupportedVersion = &ParseError{Status: 400, Reason: "unsupported HTTP version"}

// Observer is the callback interface HTTPRequestParser drives as it
// recognizes request boundaries. HTTPServerContext implements it directly
// (see internal/wire/server.go), avoiding nested callback closures.
type Observer interface {
	// Begin is invoked when the parser starts working on a new request.
	Begin()
	// RequestLine delivers the raw method/target/version tokens. Returning
	// a non-nil *ParseError aborts the request with that status.
	RequestLine(method, target, version string) *ParseError
	// Header delivers one decoded header line (name already lowercased and
	// trimmed, value trimmed). Returning a non-nil *ParseError aborts the
	// request with that status.
	Header(name, value string) *ParseError
	// HeadersComplete is invoked once the blank line terminating the header
	// block is seen. It returns how many body bytes to expect (0 if the
	// request carries no body).
	HeadersComplete() int64
	// Body delivers a contiguous slice of body bytes. The slice is only
	// valid for the duration of the call.
	Body(p []byte)
	// Parsed is invoked once the full request (headers + body) has been
	// consumed.
	Parsed()
	// Error is invoked when the request is malformed; the parser performs
	// no further work on this request until Reset is called.
	Error(status int, reason string)
}

type parserState int

const (
	stateRequestLine parserState = iota
	stateHeaders
	stateBody
	stateError
)

// Parser is an incremental HTTP/1.1 request-line/header/body state machine.
// It tolerates arbitrary fragmentation of the input: Feed may be called with
// chunks that split a line, a header value, or the body at any byte
// boundary, and the resulting Observer callbacks are identical regardless
// of how the input was chunked (§8 fragmentation invariance).
type Parser struct {
	obs   Observer
	state parserState
	line  []byte

	haveFoldTarget bool
	foldName       string
	foldValue      string

	bodyRemaining int64
}

// NewParser creates a parser bound to obs and emits the first Begin.
func NewParser(obs Observer) *Parser {
	p := &Parser{obs: obs}
	p.Reset()
	return p
}

// Reset discards any partially-parsed request and arms the parser for a
// fresh one, emitting Begin. Calling Reset twice in a row leaves the parser
// in the same state as calling it once, though each call emits its own Begin.
func (p *Parser) Reset() {
	p.state = stateRequestLine
	p.line = p.line[:0]
	p.haveFoldTarget = false
	p.foldName = ""
	p.foldValue = ""
	p.bodyRemaining = 0
	p.obs.Begin()
}

// Feed consumes data and returns the number of bytes consumed. Partial
// lines are buffered internally and body bytes are delivered as they
// arrive, so Feed stops short of len(data) only when the current request
// has just completed (the rest belongs to the next pipelined request, and
// the caller feeds it again; see Server.Receive) or after an error (Feed
// then returns 0 until Reset).
func (p *Parser) Feed(data []byte) int {
	pos := 0
	for pos < len(data) {
		switch p.state {
		case stateRequestLine, stateHeaders:
			b := data[pos]
			pos++
			switch b {
			case '\r':
				// Carriage returns are ignored outside the body.
			case '\n':
				line := p.line
				p.line = nil // detach; handleLine may retain a copy via observer calls only
				cont := p.handleLine(line)
				p.line = line[:0]
				if !cont {
					return pos
				}
			default:
				p.line = append(p.line, b)
			}
		case stateBody:
			avail := len(data) - pos
			need := int(p.bodyRemaining)
			n := avail
			if n > need {
				n = need
			}
			if n > 0 {
				p.obs.Body(data[pos : pos+n])
				pos += n
				p.bodyRemaining -= int64(n)
			}
			if p.bodyRemaining == 0 {
				p.obs.Parsed()
				p.finishAndRearm()
				return pos
			}
			return pos
		case stateError:
			return pos
		}
	}
	return pos
}

// handleLine processes one fully-assembled line (CR already stripped) and
// reports whether Feed should keep consuming bytes for the current request
// (true) or stop because the request just completed or errored (false).
func (p *Parser) handleLine(line []byte) bool {
	switch p.state {
	case stateRequestLine:
		return p.handleRequestLine(line)
	case stateHeaders:
		return p.handleHeaderLine(line)
	default:
		return true
	}
}

func (p *Parser) handleRequestLine(line []byte) bool {
	method, rest, ok := cutSpace(line)
	if !ok {
		return p.fail(errBadRequestLine)
	}
	target, version, ok := cutSpace(rest)
	if !ok {
		return p.fail(errBadRequestLine)
	}
	if perr := p.obs.RequestLine(string(method), string(target), string(version)); perr != nil {
		return p.fail(perr)
	}
	p.state = stateHeaders
	return true
}

// cutSpace splits b on the first space byte, returning ok=false if none is
// found. Used twice to split METHOD SP TARGET SP VERSION.
func cutSpace(b []byte) (before, after []byte, ok bool) {
	for i, c := range b {
		if c == ' ' {
			return b[:i], b[i+1:], true
		}
	}
	return nil, nil, false
}

func (p *Parser) handleHeaderLine(line []byte) bool {
	if len(line) == 0 {
		// Flush any pending folded header before finishing.
		if p.haveFoldTarget {
			if perr := p.obs.Header(p.foldName, p.foldValue); perr != nil {
				return p.fail(perr)
			}
			p.haveFoldTarget = false
		}
		n := p.obs.HeadersComplete()
		if n < 0 {
			n = 0
		}
		p.bodyRemaining = n
		if n == 0 {
			p.obs.Parsed()
			p.finishAndRearm()
			return false
		}
		p.state = stateBody
		return true
	}

	if line[0] == ' ' || line[0] == '\t' {
		// LWS folding: continuation of the previous header's value.
		if !p.haveFoldTarget {
			return p.fail(errBadHeaderLine)
		}
		p.foldValue = p.foldValue + " " + string(trimSpace(line))
		return true
	}

	// A new header line starts; flush any pending fold first.
	if p.haveFoldTarget {
		if perr := p.obs.Header(p.foldName, p.foldValue); perr != nil {
			return p.fail(perr)
		}
		p.haveFoldTarget = false
	}

	colon := -1
	for i, c := range line {
		if c == ':' {
			colon = i
			break
		}
	}
	if colon < 0 {
		return p.fail(errBadHeaderLine)
	}
	name := toLowerASCII(trimSpace(line[:colon]))
	value := trimSpace(line[colon+1:])

	p.haveFoldTarget = true
	p.foldName = string(name)
	p.foldValue = string(value)
	return true
}

func (p *Parser) fail(perr *ParseError) bool {
	p.state = stateError
	p.obs.Error(perr.Status, perr.Reason)
	return false
}

// finishAndRearm resets internal per-request state and immediately arms the
// parser for the next pipelined request, emitting Begin.
func (p *Parser) finishAndRearm() {
	p.Reset()
}

func trimSpace(b []byte) []byte {
	i, j := 0, len(b)
	for i < j && isSpaceByte(b[i]) {
		i++
	}
	for j > i && isSpaceByte(b[j-1]) {
		j--
	}
	return b[i:j]
}

func isSpaceByte(c byte) bool {
	return c == ' ' || c == '\t'
}

func toLowerASCII(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			c |= 0x20
		}
		out[i] = c
	}
	return out
}
