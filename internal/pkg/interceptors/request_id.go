// Package interceptors carries request ids across HTTP and gRPC boundaries
// and logs ops gRPC calls.
package interceptors

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/jcmexdev/storefront/internal/pkg/interceptors/constants"
)

// WithRequestID stores id in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, constants.ContextKeyRequestID, id)
}

// RequestIDFromContext returns the id stored by WithRequestID or found in
// incoming gRPC metadata, or "".
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(constants.ContextKeyRequestID).(string); ok {
		return id
	}
	return GetMetadataValue(ctx, constants.HeaderXRequestId)
}

func GetMetadataValue(ctx context.Context, key string) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get(key); len(ids) > 0 {
			return ids[0]
		}
	}
	if md, ok := metadata.FromOutgoingContext(ctx); ok {
		if ids := md.Get(key); len(ids) > 0 {
			return ids[0]
		}
	}
	return ""
}

// UnaryServerInterceptor puts the caller's x-request-id, or a fresh one,
// into the handler context.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		requestID := GetMetadataValue(ctx, constants.HeaderXRequestId)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		return handler(WithRequestID(ctx, requestID), req)
	}
}
