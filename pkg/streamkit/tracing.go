package streamkit

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig configures the Tracing middleware.
type TracingConfig struct {
	TracerName string
	SkipPaths  []string
	Propagator propagation.TextMapPropagator
}

// DefaultTracingConfig uses the "streamkit" tracer and W3C trace-context
// propagation, skipping health/metrics endpoints.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		TracerName: "streamkit",
		SkipPaths:  []string{"/health", "/metrics"},
		Propagator: propagation.TraceContext{},
	}
}

// Tracing returns a middleware that opens one OpenTelemetry span per
// request, ported from the teacher's pkg/celeris/tracing.go onto
// streamkit.Context's header accessors.
func Tracing() Middleware { return TracingWithConfig(DefaultTracingConfig()) }

// TracingWithConfig is Tracing with an explicit tracer name/propagator.
func TracingWithConfig(config TracingConfig) Middleware {
	if config.TracerName == "" {
		config.TracerName = "streamkit"
	}
	if config.Propagator == nil {
		config.Propagator = propagation.TraceContext{}
	}
	skip := make(map[string]bool, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skip[p] = true
	}
	tracer := otel.Tracer(config.TracerName)

	return func(next Handler) Handler {
		return HandlerFunc(func(ctx *Context) error {
			if skip[ctx.Path()] {
				return next.Serve(ctx)
			}

			carrier := &headerCarrier{ctx: ctx}
			parentCtx := config.Propagator.Extract(ctx.Context(), carrier)

			spanCtx, span := tracer.Start(parentCtx, ctx.Method()+" "+ctx.Path(), trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()

			span.SetAttributes(
				attribute.String("http.method", ctx.Method()),
				attribute.String("http.target", ctx.Path()),
				attribute.String("http.host", ctx.Header("host")),
			)
			if reqID, ok := ctx.Get("request-id"); ok {
				if s, ok := reqID.(string); ok {
					span.SetAttributes(attribute.String("http.request_id", s))
				}
			}

			original := ctx.ctx
			ctx.ctx = spanCtx
			err := next.Serve(ctx)
			ctx.ctx = original

			span.SetAttributes(attribute.Int("http.status_code", ctx.Status()))
			switch {
			case err != nil:
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			case ctx.Status() >= 400:
				span.SetStatus(codes.Error, "HTTP error")
			default:
				span.SetStatus(codes.Ok, "")
			}
			return err
		})
	}
}

// headerCarrier adapts Context's request headers / response headers to
// propagation.TextMapCarrier: Get reads the inbound request, Set writes
// an outbound response header (used when this server acts as the
// downstream hop of a propagated trace).
type headerCarrier struct {
	ctx *Context
}

func (h *headerCarrier) Get(key string) string { return h.ctx.Header(key) }
func (h *headerCarrier) Set(key, value string) { h.ctx.SetHeader(key, value) }
func (h *headerCarrier) Keys() []string        { return h.ctx.req.Headers.Keys() }
