package middlewares

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jcmexdev/storefront/internal/storefront/infra/httpx/envelope"
)

const limiterIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// UserRateLimiter keeps one token bucket per authenticated user.
type UserRateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

func NewUserRateLimiter(perSecond float64, burst int) *UserRateLimiter {
	return &UserRateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		now:      time.Now,
	}
}

func (l *UserRateLimiter) Allow(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > time.Minute {
		for id, v := range l.visitors {
			if now.Sub(v.lastSeen) > limiterIdleTTL {
				delete(l.visitors, id)
			}
		}
		l.lastSweep = now
	}

	v, ok := l.visitors[userID]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[userID] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Middleware must run after Authenticate.
func (l *UserRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(UserID(r.Context())) {
			w.Header().Set("Retry-After", strconv.Itoa(int(max(1, 1/float64(l.limit)))))
			envelope.Write(w, http.StatusTooManyRequests, envelope.Fail(envelope.CodeRateLimited, "Too many requests"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
