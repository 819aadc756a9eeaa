package middlewares

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/storefront/internal/pkg/metrics"
	"github.com/jcmexdev/storefront/internal/storefront/core/apperr"
	"github.com/jcmexdev/storefront/internal/storefront/core/domain/entity"
)

var secret = []byte("test-secret")

func token(t *testing.T, key []byte, method jwt.SigningMethod, sub string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(method, jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString(key)
	require.NoError(t, err)
	return s
}

func echoUser(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(UserID(r.Context())))
}

func TestAuthenticate(t *testing.T) {
	h := Authenticate(secret)(http.HandlerFunc(echoUser))
	valid := token(t, secret, jwt.SigningMethodHS256, "user_1", time.Now().Add(time.Hour))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + valid, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic " + valid, http.StatusUnauthorized},
		{"wrong key", "Bearer " + token(t, []byte("other"), jwt.SigningMethodHS256, "user_1", time.Now().Add(time.Hour)), http.StatusUnauthorized},
		{"expired", "Bearer " + token(t, secret, jwt.SigningMethodHS256, "user_1", time.Now().Add(-time.Minute)), http.StatusUnauthorized},
		{"no subject", "Bearer " + token(t, secret, jwt.SigningMethodHS256, "", time.Now().Add(time.Hour)), http.StatusUnauthorized},
		{"other alg", "Bearer " + token(t, secret, jwt.SigningMethodHS512, "user_1", time.Now().Add(time.Hour)), http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/cart", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "user_1", rec.Body.String())
			} else {
				assert.JSONEq(t, `{"success":false,"message":"Unauthorized","data":null,"error":{"code":"UNAUTHORIZED"}}`, rec.Body.String())
			}
		})
	}
}

type adminStub map[string]entity.Role

func (a adminStub) RequireAdmin(_ context.Context, userID string) (*entity.User, error) {
	if a[userID] != entity.RoleAdmin {
		return nil, apperr.New(apperr.Forbidden, "Forbidden: Admin access required")
	}
	return &entity.User{ID: userID, Role: entity.RoleAdmin}, nil
}

func TestRequireAdmin(t *testing.T) {
	h := RequireAdmin(adminStub{"boss": entity.RoleAdmin, "joe": entity.RoleUser})(http.HandlerFunc(echoUser))

	for user, want := range map[string]int{"boss": http.StatusOK, "joe": http.StatusForbidden, "ghost": http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
		req = req.WithContext(WithUserID(req.Context(), user))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, user)
	}
}

func TestUserRateLimiter(t *testing.T) {
	l := NewUserRateLimiter(1, 2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"), "burst exhausted")
	assert.True(t, l.Allow("b"), "buckets are per user")

	now = now.Add(time.Second)
	assert.True(t, l.Allow("a"))

	now = now.Add(time.Hour)
	l.Allow("c")
	l.mu.Lock()
	_, kept := l.visitors["a"]
	l.mu.Unlock()
	assert.False(t, kept, "idle buckets are swept")
}

func TestUserRateLimiter_Middleware(t *testing.T) {
	l := NewUserRateLimiter(1, 1)
	h := l.Middleware(http.HandlerFunc(echoUser))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
		req = req.WithContext(WithUserID(req.Context(), "u1"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}
	assert.Equal(t, http.StatusOK, send().Code)
	rec := send()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestObserve_RecordsRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewServerMetrics(reg)

	r := chi.NewRouter()
	r.Use(Observe(m))
	r.Get("/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/abc", nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("GET /orders/{id}", "404")))
}
