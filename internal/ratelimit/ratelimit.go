package ratelimit

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Limiter admits at most a fixed number of calls per key per window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Middleware rejects requests over the limit with 429. Limiter errors let the
// request through.
func Middleware(limiter Limiter, scope string, window time.Duration, keyFn func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := scope + ":" + keyFn(r)
			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				log.Printf("ratelimit: %s: %v", key, err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate_limited"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func ByIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
