package httpx

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const maxTrackedUsers = 10000

// UserRateLimiter hands out one token bucket per authenticated user.
// Buckets for users idle longer than the TTL are evicted.
type UserRateLimiter struct {
	limit    rate.Limit
	burst    int
	limiters *expirable.LRU[string, *rate.Limiter]
}

// NewUserRateLimiter builds a limiter allowing perMinute sustained requests per user.
func NewUserRateLimiter(perMinute, burst int, idleTTL time.Duration) *UserRateLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &UserRateLimiter{
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    burst,
		limiters: expirable.NewLRU[string, *rate.Limiter](maxTrackedUsers, nil, idleTTL),
	}
}

func (l *UserRateLimiter) limiter(userID string) *rate.Limiter {
	if lim, ok := l.limiters.Get(userID); ok {
		// Re-adding refreshes the idle deadline.
		l.limiters.Add(userID, lim)
		return lim
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	l.limiters.Add(userID, lim)
	return lim
}

// Allow reports whether userID may proceed now, and if not, how long to wait.
func (l *UserRateLimiter) Allow(userID string, now time.Time) (bool, time.Duration) {
	r := l.limiter(userID).ReserveN(now, 1)
	if !r.OK() {
		return false, time.Minute
	}
	delay := r.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	r.CancelAt(now)
	return false, delay
}

// RateLimit rejects requests from users over their budget with 429.
// It must run after RequireIdentity.
func RateLimit(l *UserRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := UserIDFromContext(r.Context())
			if l == nil || userID == "" {
				next.ServeHTTP(w, r)
				return
			}
			ok, wait := l.Allow(userID, time.Now())
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				WriteError(w, ErrorParams{
					Code:    http.StatusTooManyRequests,
					ErrCode: "rate_limited",
					Err:     errors.New("Too many requests. Please slow down."),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
