package streamkit

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// LoggerConfig configures the Logger middleware.
type LoggerConfig struct {
	Output    io.Writer
	Format    string // "text" (default) or "json"
	SkipPaths []string
}

// DefaultLoggerConfig returns text-format logging to stdout.
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{Output: os.Stdout, Format: "text"}
}

// Logger returns a middleware that logs one line per request, ported from
// the teacher's Logger/LoggerWithConfig.
func Logger() Middleware { return LoggerWithConfig(DefaultLoggerConfig()) }

// LoggerWithConfig is Logger with explicit output/format/skip-list.
func LoggerWithConfig(config LoggerConfig) Middleware {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Format == "" {
		config.Format = "text"
	}
	skip := make(map[string]bool, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skip[p] = true
	}

	return func(next Handler) Handler {
		return HandlerFunc(func(ctx *Context) error {
			if skip[ctx.Path()] {
				return next.Serve(ctx)
			}
			start := time.Now()
			err := next.Serve(ctx)
			duration := time.Since(start)

			if config.Format == "json" {
				entry := map[string]any{
					"time": start.Format(time.RFC3339), "method": ctx.Method(),
					"path": ctx.Path(), "status": ctx.Status(), "duration_ms": duration.Milliseconds(),
				}
				if err != nil {
					entry["error"] = err.Error()
				}
				data, _ := json.Marshal(entry)
				fmt.Fprintf(config.Output, "%s\n", data)
				return err
			}

			fmt.Fprintf(config.Output, "[%s] %s %s %d %dms", start.Format(time.RFC3339), ctx.Method(), ctx.Path(), ctx.Status(), duration.Milliseconds())
			if err != nil {
				fmt.Fprintf(config.Output, " error=%q", err.Error())
			}
			fmt.Fprintln(config.Output)
			return err
		})
	}
}

// Recovery returns a middleware that turns a handler panic into a 500
// instead of tearing down the connection's dispatch loop.
func Recovery() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx *Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = ctx.String(500, "Internal Server Error")
				}
			}()
			return next.Serve(ctx)
		})
	}
}

// CORSConfig configures the CORS middleware.
type CORSConfig struct {
	AllowOrigin      string
	AllowMethods     string
	AllowHeaders     string
	AllowCredentials bool
	MaxAge           int
}

// DefaultCORSConfig allows any origin with the common verbs/headers.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigin:  "*",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS, PATCH",
		AllowHeaders: "Accept, Content-Type, Content-Length, Authorization",
		MaxAge:       3600,
	}
}

// CORS returns a middleware answering preflight OPTIONS requests and
// annotating every response with the configured CORS headers.
func CORS(config CORSConfig) Middleware {
	if config.AllowOrigin == "" {
		config.AllowOrigin = "*"
	}
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx *Context) error {
			ctx.SetHeader("access-control-allow-origin", config.AllowOrigin)
			if config.AllowMethods != "" {
				ctx.SetHeader("access-control-allow-methods", config.AllowMethods)
			}
			if config.AllowHeaders != "" {
				ctx.SetHeader("access-control-allow-headers", config.AllowHeaders)
			}
			if config.AllowCredentials {
				ctx.SetHeader("access-control-allow-credentials", "true")
			}
			if config.MaxAge > 0 {
				ctx.SetHeader("access-control-max-age", fmt.Sprintf("%d", config.MaxAge))
			}
			if ctx.Method() == "options" {
				return ctx.NoContent(204)
			}
			return next.Serve(ctx)
		})
	}
}

// RequestID returns a middleware that stamps each request with a random
// 128-bit hex ID, available to later middleware/handlers via
// ctx.Get("request-id") and echoed on the response.
func RequestID() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx *Context) error {
			id := generateRequestID()
			ctx.Set("request-id", id)
			ctx.SetHeader("x-request-id", id)
			return next.Serve(ctx)
		})
	}
}

func generateRequestID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	hi := binary.BigEndian.Uint64(b[:8])
	lo := binary.BigEndian.Uint64(b[8:])
	return fmt.Sprintf("%016x%016x", hi, lo)
}

// Compress sets the response's compression threshold (§4.3): bodies at or
// above minSize get transparently gzip/brotli-encoded by
// wire.Response.flush according to the request's Accept-Encoding.
func Compress(minSize int) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx *Context) error {
			ctx.res.CompressMinSize = minSize
			return next.Serve(ctx)
		})
	}
}
