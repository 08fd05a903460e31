package streamkit

// Handler is the application-level request handler (§6 "Handler
// interface (consumed)"), generalized from the teacher's ServeHTTP2 to
// the HTTP/1.1 Context this module builds.
type Handler interface {
	Serve(ctx *Context) error
}

// HandlerFunc adapts an ordinary function to Handler.
type HandlerFunc func(ctx *Context) error

// Serve calls f(ctx).
func (f HandlerFunc) Serve(ctx *Context) error { return f(ctx) }

// Middleware wraps a Handler with additional behavior.
type Middleware func(Handler) Handler

// Chain composes middlewares into a single Middleware, applied in the
// order given (the first middleware sees the request first).
func Chain(middlewares ...Middleware) Middleware {
	return func(final Handler) Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
