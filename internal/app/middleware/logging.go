package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/queries"
	"staybook/internal/domain/shared/domainerr"
)

// Logging records every bus message with its duration and error class.
// Expected outcomes (validation, conflict, not found) log at Info, store
// failures at Error.
func Logging(logger *slog.Logger) CommandMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			start := time.Now()
			res, err := next.Dispatch(ctx, cmd)
			logOutcome(ctx, logger, "command", cmd.Key(), time.Since(start), err)
			return res, err
		})
	}
}

func QueryLogging(logger *slog.Logger) QueryMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next queries.Bus) queries.Bus {
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			start := time.Now()
			res, err := next.Ask(ctx, q)
			logOutcome(ctx, logger, "query", q.Key(), time.Since(start), err)
			return res, err
		})
	}
}

func logOutcome(ctx context.Context, logger *slog.Logger, kind, key string, took time.Duration, err error) {
	attrs := []any{slog.String(kind, key), slog.Duration("took", took)}
	if err == nil {
		logger.DebugContext(ctx, kind+" handled", attrs...)
		return
	}
	class := domainerr.Kind(err)
	attrs = append(attrs, slog.String("error_kind", class), slog.Any("error", err))
	switch {
	case errors.Is(err, context.Canceled):
		logger.InfoContext(ctx, kind+" canceled", attrs...)
	case class == "transient" || class == "internal":
		logger.ErrorContext(ctx, kind+" failed", attrs...)
	default:
		logger.InfoContext(ctx, kind+" rejected", attrs...)
	}
}
