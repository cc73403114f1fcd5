package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"staybook/internal/app/commands"
	"staybook/internal/app/queries"
	"staybook/internal/domain/shared/domainerr"
)

const tracerName = "staybook/app"

// Tracing opens one span per command. A nil tracer falls back to the global
// provider, which is a no-op until one is installed.
func Tracing(tracer trace.Tracer) CommandMiddleware {
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			ctx, span := tracer.Start(ctx, "command "+cmd.Key(),
				trace.WithAttributes(attribute.String("staybook.command", cmd.Key())))
			defer span.End()
			res, err := next.Dispatch(ctx, cmd)
			finishSpan(span, err)
			return res, err
		})
	}
}

func QueryTracing(tracer trace.Tracer) QueryMiddleware {
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return func(next queries.Bus) queries.Bus {
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			ctx, span := tracer.Start(ctx, "query "+q.Key(),
				trace.WithAttributes(attribute.String("staybook.query", q.Key())))
			defer span.End()
			res, err := next.Ask(ctx, q)
			finishSpan(span, err)
			return res, err
		})
	}
}

func finishSpan(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.SetAttributes(attribute.String("error.kind", domainerr.Kind(err)))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
