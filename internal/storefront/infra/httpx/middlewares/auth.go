// Package middlewares holds the chi middlewares of the storefront API.
package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jcmexdev/storefront/internal/storefront/core/apperr"
	"github.com/jcmexdev/storefront/internal/storefront/core/domain/entity"
	"github.com/jcmexdev/storefront/internal/storefront/infra/httpx/envelope"
)

type ctxKey string

const userIDKey ctxKey = "user_id"

// UserID returns the authenticated caller, or "" on public routes.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// Authenticate accepts an HS256 bearer token and puts its subject in the
// request context. Anything else is rejected before the handler runs.
func Authenticate(secret []byte) func(http.Handler) http.Handler {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	keyFunc := func(*jwt.Token) (any, error) { return secret, nil }

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				unauthorized(w)
				return
			}
			var claims jwt.RegisteredClaims
			if _, err := parser.ParseWithClaims(strings.TrimSpace(raw), &claims, keyFunc); err != nil || claims.Subject == "" {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.Subject)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	envelope.WriteError(w, apperr.New(apperr.Unauthorized, "Unauthorized"))
}

type AdminChecker interface {
	RequireAdmin(ctx context.Context, userID string) (*entity.User, error)
}

// RequireAdmin runs after Authenticate and lets only stored admins through.
func RequireAdmin(users AdminChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := users.RequireAdmin(r.Context(), UserID(r.Context())); err != nil {
				envelope.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
