package middleware

import (
	"strconv"
	"time"

	"net/http"

	"github.com/skyanchor/skyanchor/internal/api/response"
	"github.com/skyanchor/skyanchor/internal/cache"
)

const defaultRequestsPerMinute = 10

// RateLimit provides sliding-window rate limiting via Redis, keyed by the
// authenticated user. Solves are expensive: each one occupies a solver
// worker for up to the full wall-clock budget.
type RateLimit struct {
	cache          cache.Cache
	requestsPerMin int
}

func NewRateLimit(c cache.Cache, requestsPerMin int) *RateLimit {
	if requestsPerMin <= 0 {
		requestsPerMin = defaultRequestsPerMinute
	}
	return &RateLimit{cache: c, requestsPerMin: requestsPerMin}
}

// Limit applies rate limiting based on the user ID set by Identity.
func (rl *RateLimit) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := GetUserID(r)
		if !ok {
			// Identity middleware didn't run; pass through.
			next.ServeHTTP(w, r)
			return
		}

		key := cache.RateLimitKey(userID)
		count, err := rl.cache.IncrWithExpiry(r.Context(), key, 60*time.Second)
		if err != nil {
			// On Redis error, allow the request (fail open).
			next.ServeHTTP(w, r)
			return
		}

		remaining := rl.requestsPerMin - int(count)
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requestsPerMin))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if count > int64(rl.requestsPerMin) {
			w.Header().Set("Retry-After", "60")
			response.Error(w, http.StatusTooManyRequests, "too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}
