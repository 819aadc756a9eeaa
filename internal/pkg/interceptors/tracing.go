package interceptors

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// LoggingServerInterceptor logs every unary call with its outcome. It runs
// after UnaryServerInterceptor so the request id is available.
func LoggingServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		level := slog.LevelDebug
		if err != nil {
			level = slog.LevelWarn
		}
		slog.Log(ctx, level, "grpc call",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"request_id", RequestIDFromContext(ctx),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}
