package streamkit

import (
	"fmt"
	"strings"

	"github.com/brekkeio/streamcore/internal/wire"
)

// HTTPError is an error carrying the status/message a handler wants the
// router's error handler to render (ported from the teacher's router.go).
type HTTPError struct {
	Code    int
	Message string
	Details any
}

func (e *HTTPError) Error() string { return e.Message }

// NewHTTPError creates an HTTPError.
func NewHTTPError(code int, message string) *HTTPError {
	return &HTTPError{Code: code, Message: message}
}

// WithDetails attaches structured detail to an HTTPError.
func (e *HTTPError) WithDetails(details any) *HTTPError {
	e.Details = details
	return e
}

// ErrorHandler renders an error returned by a Handler onto ctx.
type ErrorHandler func(ctx *Context, err error) error

// DefaultErrorHandler renders *HTTPError as its own status/message and
// anything else as a 500, honoring an Accept: application/json request.
func DefaultErrorHandler(ctx *Context, err error) error {
	wantsJSON := strings.Contains(ctx.Header("accept"), "application/json")

	if httpErr, ok := err.(*HTTPError); ok {
		if wantsJSON {
			return ctx.JSON(httpErr.Code, map[string]any{
				"error": httpErr.Message, "code": httpErr.Code, "details": httpErr.Details,
			})
		}
		return ctx.String(httpErr.Code, "%s", httpErr.Message)
	}

	if wantsJSON {
		return ctx.JSON(500, map[string]any{"error": err.Error(), "code": 500})
	}
	return ctx.String(500, "Internal Server Error")
}

// routeNode is one segment of the method-scoped path trie: a literal
// segment, a ":name" parameter segment, or a "*name" wildcard.
type routeNode struct {
	handler   Handler
	children  map[string]*routeNode
	paramName string
	wildName  string
}

// Router dispatches by method and path-trie lookup, the way the teacher's
// router.go does, generalized from HTTP/2 streams to streamkit.Context.
type Router struct {
	roots        map[string]*routeNode
	middlewares  []Middleware
	notFound     Handler
	errorHandler ErrorHandler
}

// NewRouter creates an empty Router with a 404 default and
// DefaultErrorHandler.
func NewRouter() *Router {
	return &Router{
		roots: make(map[string]*routeNode),
		notFound: HandlerFunc(func(ctx *Context) error {
			return ctx.String(404, "Not Found")
		}),
		errorHandler: DefaultErrorHandler,
	}
}

// Use appends router-wide middleware, applied to every route.
func (r *Router) Use(mw ...Middleware) { r.middlewares = append(r.middlewares, mw...) }

// NotFound overrides the handler used when no route matches.
func (r *Router) NotFound(h Handler) { r.notFound = h }

// SetErrorHandler overrides how a Handler's returned error is rendered.
func (r *Router) SetErrorHandler(h ErrorHandler) { r.errorHandler = h }

func (r *Router) GET(path string, h HandlerFunc)     { r.Handle("get", path, h) }
func (r *Router) POST(path string, h HandlerFunc)    { r.Handle("post", path, h) }
func (r *Router) PUT(path string, h HandlerFunc)     { r.Handle("put", path, h) }
func (r *Router) DELETE(path string, h HandlerFunc)  { r.Handle("delete", path, h) }
func (r *Router) PATCH(path string, h HandlerFunc)   { r.Handle("patch", path, h) }
func (r *Router) HEAD(path string, h HandlerFunc)    { r.Handle("head", path, h) }
func (r *Router) OPTIONS(path string, h HandlerFunc) { r.Handle("options", path, h) }

// Handle registers h for method (lowercased) and path.
func (r *Router) Handle(method, path string, h Handler) {
	r.addRoute(strings.ToLower(method), path, h)
}

func (r *Router) addRoute(method, path string, h Handler) {
	if path == "" || path[0] != '/' {
		panic("streamkit: route path must begin with '/'")
	}
	root, ok := r.roots[method]
	if !ok {
		root = &routeNode{children: make(map[string]*routeNode)}
		r.roots[method] = root
	}

	segments := splitPath(path)
	current := root
	for _, seg := range segments {
		key := seg
		var paramName, wildName string
		switch {
		case strings.HasPrefix(seg, ":"):
			key = ":"
			paramName = seg[1:]
		case strings.HasPrefix(seg, "*"):
			key = "*"
			wildName = seg[1:]
		}
		child, ok := current.children[key]
		if !ok {
			child = &routeNode{children: make(map[string]*routeNode), paramName: paramName, wildName: wildName}
			current.children[key] = child
		}
		current = child
	}
	current.handler = h
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// Match finds the handler and route parameters for method/path, returning
// the Router's NotFound handler if nothing matches.
func (r *Router) Match(method, path string) (Handler, map[string]string) {
	root, ok := r.roots[strings.ToLower(method)]
	if !ok {
		return r.notFound, nil
	}

	segments := splitPath(path)
	current := root
	var params map[string]string
	for i, seg := range segments {
		if child, ok := current.children[seg]; ok {
			current = child
			continue
		}
		if child, ok := current.children[":"]; ok {
			if params == nil {
				params = make(map[string]string, 4)
			}
			params[child.paramName] = seg
			current = child
			continue
		}
		if child, ok := current.children["*"]; ok {
			if params == nil {
				params = make(map[string]string, 4)
			}
			params[child.wildName] = strings.Join(segments[i:], "/")
			current = child
			goto matched
		}
		return r.notFound, nil
	}
matched:
	if current.handler == nil {
		return r.notFound, nil
	}
	return current.handler, params
}

// Serve implements Handler, making a Router usable as the Dispatcher's
// innermost handler: it matches the route, applies router-wide
// middleware, and renders any returned error.
func (r *Router) Serve(ctx *Context) error {
	handler, params := r.Match(ctx.Method(), ctx.Path())
	ctx.params = params

	if len(r.middlewares) > 0 {
		handler = Chain(r.middlewares...)(handler)
	}

	if err := handler.Serve(ctx); err != nil {
		if r.errorHandler != nil {
			return r.errorHandler(ctx, err)
		}
		return err
	}
	return nil
}

// Group scopes a path prefix and an extra middleware stack onto a shared
// Router.
type Group struct {
	router      *Router
	prefix      string
	middlewares []Middleware
}

// Group creates a route group under prefix with its own middleware stack.
func (r *Router) Group(prefix string, mw ...Middleware) *Group {
	return &Group{router: r, prefix: prefix, middlewares: mw}
}

// Group nests a further prefix/middleware stack under g.
func (g *Group) Group(prefix string, mw ...Middleware) *Group {
	return &Group{router: g.router, prefix: g.prefix + prefix, middlewares: append(append([]Middleware{}, g.middlewares...), mw...)}
}

func (g *Group) Use(mw ...Middleware) { g.middlewares = append(g.middlewares, mw...) }

func (g *Group) handle(method, path string, h Handler) {
	if len(g.middlewares) > 0 {
		h = Chain(g.middlewares...)(h)
	}
	g.router.addRoute(method, g.prefix+path, h)
}

func (g *Group) GET(path string, h HandlerFunc)    { g.handle("get", path, h) }
func (g *Group) POST(path string, h HandlerFunc)   { g.handle("post", path, h) }
func (g *Group) PUT(path string, h HandlerFunc)    { g.handle("put", path, h) }
func (g *Group) DELETE(path string, h HandlerFunc) { g.handle("delete", path, h) }
func (g *Group) PATCH(path string, h HandlerFunc)  { g.handle("patch", path, h) }

// Static serves files from root beneath prefix/*filepath, going through
// Context.File so the document-root escape/404 rules in §4.3 apply.
func (r *Router) Static(prefix string) {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	r.GET(prefix+"*filepath", func(ctx *Context) error {
		name := ctx.Param("filepath")
		if name == "" {
			name = "index.html"
		}
		if err := ctx.File(name); err != nil {
			if _, ok := err.(*wire.PathError); ok {
				return ctx.String(ctx.Response().Status, "%s", err.Error())
			}
			return fmt.Errorf("static: %w", err)
		}
		return nil
	})
}
