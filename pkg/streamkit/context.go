// Package streamkit is the application-facing convenience layer built on
// top of internal/wire: a Context, a trie Router, and a middleware chain,
// the way the teacher's pkg/celeris sits on top of internal/h2 (§2
// "Dispatcher hook" is the 5% of budget this layer fills in).
package streamkit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/brekkeio/streamcore/internal/wire"
	"github.com/brekkeio/streamcore/internal/ws"
)

// Context wraps one in-flight wire.Request/wire.Response pair with the
// ergonomics a handler actually wants: JSON/string/HTML helpers, route
// parameters, query/cookie access, and a context.Context for cancellation
// plumbing and tracing spans.
type Context struct {
	req *wire.Request
	res *wire.Response
	ctx context.Context

	params map[string]string
	values map[string]any

	status int
}

func newContext(parent context.Context, req *wire.Request, res *wire.Response) *Context {
	return &Context{req: req, res: res, ctx: parent, status: 200}
}

// Request exposes the underlying parsed request for callers that need raw
// access (headers multimap, body bytes, cookies map).
func (c *Context) Request() *wire.Request { return c.req }

// Response exposes the underlying response builder.
func (c *Context) Response() *wire.Response { return c.res }

// Method returns the lowercased HTTP method.
func (c *Context) Method() string { return c.req.Method }

// Path returns the decoded, normalized request path.
func (c *Context) Path() string { return c.req.Path }

// Header returns the first value of a request header (lowercase name).
func (c *Context) Header(name string) string { return c.req.Headers.Get(strings.ToLower(name)) }

// Query returns the first value of a decoded query parameter.
func (c *Context) Query(name string) string { return c.req.Query.Get(name) }

// QueryDefault returns the query value, or def if absent.
func (c *Context) QueryDefault(name, def string) string {
	if v := c.Query(name); v != "" {
		return v
	}
	return def
}

// QueryInt parses the query parameter as a decimal integer.
func (c *Context) QueryInt(name string) (int, error) {
	v := c.Query(name)
	if v == "" {
		return 0, fmt.Errorf("query parameter %q not found", name)
	}
	return strconv.Atoi(v)
}

// Cookie returns a request cookie's trimmed value.
func (c *Context) Cookie(name string) string { return c.req.Cookies[name] }

// Body returns the request body bytes.
func (c *Context) Body() []byte { return c.req.Body }

// BindJSON unmarshals the request body as JSON.
func (c *Context) BindJSON(v any) error {
	return json.Unmarshal(c.req.Body, v)
}

// FormValue reads a single urlencoded form field from the body (requires
// application/x-www-form-urlencoded Content-Type).
func (c *Context) FormValue(key string) (string, error) {
	if !strings.HasPrefix(c.Header("content-type"), "application/x-www-form-urlencoded") {
		return "", fmt.Errorf("content-type is not application/x-www-form-urlencoded")
	}
	values, err := url.ParseQuery(string(c.req.Body))
	if err != nil {
		return "", err
	}
	return values.Get(key), nil
}

// Param returns a route parameter extracted by the Router.
func (c *Context) Param(name string) string { return c.params[name] }

// Context returns the per-request context.Context (used by Tracing to
// carry a span, and by handlers wanting a deadline-aware context).
func (c *Context) Context() context.Context { return c.ctx }

// Set stores an arbitrary value keyed by name, for middleware to hand data
// downstream (e.g. RequestID).
func (c *Context) Set(key string, value any) {
	if c.values == nil {
		c.values = make(map[string]any, 4)
	}
	c.values[key] = value
}

// Get retrieves a value stored by Set.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// SetStatus sets the response status code.
func (c *Context) SetStatus(code int) {
	c.status = code
	c.res.SetStatus(code)
}

// Status returns the status code set so far.
func (c *Context) Status() int { return c.status }

// SetHeader sets a response header.
func (c *Context) SetHeader(name, value string) { c.res.SetHeader(name, value) }

// SetCookie registers a Set-Cookie entry.
func (c *Context) SetCookie(name, value string, options ...[2]string) {
	c.res.SetCookie(name, value, options...)
}

// JSON marshals v and sends it with status code.
func (c *Context) JSON(status int, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.SetStatus(status)
	return c.res.SendJSON(data)
}

// String sends a formatted text/plain body.
func (c *Context) String(status int, format string, args ...any) error {
	c.SetStatus(status)
	c.SetHeader("content-type", "text/plain; charset=utf-8")
	return c.res.Send([]byte(fmt.Sprintf(format, args...)))
}

// HTML sends an HTML body.
func (c *Context) HTML(status int, html string) error {
	c.SetStatus(status)
	return c.res.SendString(html)
}

// Data sends a body with an explicit Content-Type.
func (c *Context) Data(status int, contentType string, body []byte) error {
	c.SetStatus(status)
	c.SetHeader("content-type", contentType)
	return c.res.Send(body)
}

// NoContent sends an empty body with the given status.
func (c *Context) NoContent(status int) error {
	c.SetStatus(status)
	return c.res.Send(nil)
}

// Redirect sends a Location redirect.
func (c *Context) Redirect(status int, url string) error {
	if status < 300 || status > 308 {
		status = 302
	}
	c.SetStatus(status)
	c.SetHeader("location", url)
	return c.res.Send(nil)
}

// File streams a file from the server's configured document root (§4.3);
// escaping the root or a missing file sets 403/404 on the Response.
func (c *Context) File(name string) error {
	return c.res.SendFile(name)
}

// upgradeHandshake is the WebSocket upgrade sentinel a handler calls to
// complete an upgrade from inside OnRequestReady (§4.5). It validates the
// Sec-WebSocket-Key, writes the 101 response, and marks the Response as
// Upgraded so HTTPServerContext hands the connection to a WSFrameReceiver
// once it drains.
func (c *Context) upgradeHandshake(subprotocol string) error {
	key := c.Header("sec-websocket-key")
	if key == "" || strings.ToLower(c.Header("upgrade")) != "websocket" {
		return fmt.Errorf("streamkit: not a websocket upgrade request")
	}
	c.SetStatus(101)
	c.SetHeader("upgrade", "websocket")
	c.SetHeader("connection", "Upgrade")
	c.SetHeader("sec-websocket-accept", ws.Accept(key))
	if subprotocol != "" {
		c.SetHeader("sec-websocket-protocol", subprotocol)
	}
	c.res.Upgrade()
	return c.res.Send(nil)
}

// Upgrade completes a WebSocket handshake for this request, optionally
// negotiating subprotocol out of the client's Sec-WebSocket-Protocol
// offers via accept.
func (c *Context) Upgrade(accept func(offered string) bool) error {
	var chosen string
	if accept != nil {
		chosen, _ = ws.SelectProtocol(c.Header("sec-websocket-protocol"), accept)
	}
	return c.upgradeHandshake(chosen)
}
