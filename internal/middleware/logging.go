package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"
)

// LoggingInterceptor returns a Connect interceptor that logs every bridge call.
// It logs the procedure name, caller, duration, and any error codes/messages.
// Expected outcomes such as not-found or rejected input log at INFO.
func LoggingInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			procedure := req.Spec().Procedure

			resp, err := next(ctx, req)

			caller := GetCaller(ctx)
			duration := time.Since(start).Milliseconds()
			var connectErr *connect.Error
			switch {
			case err == nil:
				slog.Info("RPC ok",
					"procedure", procedure,
					"caller", caller,
					"duration_ms", duration,
				)
			case errors.As(err, &connectErr) && isExpected(connectErr.Code()):
				slog.Info("RPC rejected",
					"procedure", procedure,
					"code", connectErr.Code(),
					"error", connectErr.Message(),
					"duration_ms", duration,
				)
			case connectErr != nil:
				slog.Warn("RPC error",
					"procedure", procedure,
					"code", connectErr.Code(),
					"error", connectErr.Message(),
					"caller", caller,
					"duration_ms", duration,
				)
			default:
				slog.Error("RPC error",
					"procedure", procedure,
					"error", err,
					"caller", caller,
					"duration_ms", duration,
				)
			}

			return resp, err
		}
	}
}

func isExpected(code connect.Code) bool {
	return code == connect.CodeNotFound || code == connect.CodeInvalidArgument
}
