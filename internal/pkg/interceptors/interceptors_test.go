package interceptors

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/jcmexdev/storefront/internal/pkg/interceptors/constants"
)

var info = &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

func TestUnaryServerInterceptor_KeepsIncomingID(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(constants.HeaderXRequestId, "req-1"))

	var seen string
	_, err := UnaryServerInterceptor()(ctx, nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		seen = RequestIDFromContext(ctx)
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "req-1", seen)
}

func TestUnaryServerInterceptor_GeneratesID(t *testing.T) {
	var seen string
	_, err := UnaryServerInterceptor()(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		seen = RequestIDFromContext(ctx)
		return nil, nil
	})
	require.NoError(t, err)
	assert.Len(t, seen, 36)
}

func TestLoggingServerInterceptor_PassesThrough(t *testing.T) {
	boom := errors.New("boom")
	resp, err := LoggingServerInterceptor()(context.Background(), "req", info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return "resp", boom
	})
	assert.Equal(t, "resp", resp)
	assert.ErrorIs(t, err, boom)
}
