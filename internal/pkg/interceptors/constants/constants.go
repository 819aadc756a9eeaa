package constants

// contextKey keeps these keys from colliding with other packages' values.
type contextKey string

const (
	HeaderXRequestId      = "x-request-id"
	HeaderXIdempotencyKey = "idempotency-key"

	ContextKeyRequestID      contextKey = HeaderXRequestId
	ContextKeyIdempotencyKey contextKey = HeaderXIdempotencyKey
)
