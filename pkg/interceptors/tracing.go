package interceptors

import (
	"context"
	"strings"

	"connectrpc.com/connect"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingInterceptor instruments RPCs with OpenTelemetry spans.
type TracingInterceptor struct {
	tracer trace.Tracer
}

// NewTracingInterceptor creates a tracing interceptor.
func NewTracingInterceptor(tracer trace.Tracer) *TracingInterceptor {
	if tracer == nil {
		tracer = otel.Tracer("billing-intake/interceptors")
	}
	return &TracingInterceptor{tracer: tracer}
}

// WrapUnary implements connect.Interceptor.
func (i *TracingInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		ctx, span := i.start(ctx, req.Spec().Procedure)
		if id := GetRequestIDFromContext(ctx); id != "" {
			span.SetAttributes(attribute.String("request.id", id))
		}

		resp, err := next(ctx, req)
		finish(span, err)
		return resp, err
	}
}

// WrapStreamingClient implements connect.Interceptor.
func (i *TracingInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		return next(ctx, spec)
	}
}

// WrapStreamingHandler implements connect.Interceptor.
func (i *TracingInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		ctx, span := i.start(ctx, conn.Spec().Procedure)
		err := next(ctx, conn)
		finish(span, err)
		return err
	}
}

func (i *TracingInterceptor) start(ctx context.Context, procedure string) (context.Context, trace.Span) {
	ctx, span := i.tracer.Start(ctx, procedure, trace.WithSpanKind(trace.SpanKindServer))
	span.SetAttributes(
		attribute.String("rpc.system", "connect"),
		attribute.String("rpc.service", serviceFromProcedure(procedure)),
		attribute.String("rpc.method", methodFromProcedure(procedure)),
	)
	return ctx, span
}

// finish records the Connect code and ends the span.
func finish(span trace.Span, err error) {
	defer span.End()
	if err == nil {
		span.SetAttributes(attribute.String("rpc.connect.code", "ok"))
		span.SetStatus(codes.Ok, "")
		return
	}
	span.SetAttributes(attribute.String("rpc.connect.code", connect.CodeOf(err).String()))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// methodFromProcedure returns "Method" for "/pkg.Service/Method".
func methodFromProcedure(procedure string) string {
	return procedure[strings.LastIndex(procedure, "/")+1:]
}

// serviceFromProcedure returns "pkg.Service" for "/pkg.Service/Method".
func serviceFromProcedure(procedure string) string {
	if procedure == "" {
		return ""
	}
	trimmed := strings.TrimPrefix(procedure, "/")
	service, _, ok := strings.Cut(trimmed, "/")
	if !ok {
		return trimmed
	}
	return service
}
