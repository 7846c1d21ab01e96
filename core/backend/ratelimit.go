package backend

import (
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/relabs-tech/plantparenthood/core/logger"
)

// maxLimiters bounds the number of tracked clients. The map is reset when it is exceeded.
const maxLimiters = 10000

// rateLimiter limits requests per client address
type rateLimiter struct {
	limiters map[string]*rate.Limiter
	mutex    sync.Mutex
	rate     rate.Limit
	burst    int
}

func newRateLimiter(limit rate.Limit, burst int) *rateLimiter {
	if limit == 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     limit,
		burst:    burst,
	}
}

func (rl *rateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	limiter, exists := rl.limiters[key]
	if !exists {
		if len(rl.limiters) >= maxLimiters {
			rl.limiters = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = limiter
	}
	return limiter
}

// clientKey is the host part of the remote address
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// limit wraps h and answers 429 when the client exceeds its rate
func (rl *rateLimiter) limit(h http.HandlerFunc) http.HandlerFunc {
	if rl.rate == rate.Inf {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		if !rl.getLimiter(key).Allow() {
			logger.FromContext(r.Context()).Warnln("rate limit exceeded for", key, r.URL.Path)
			w.Header().Set("Retry-After", "1")
			writeError(w, r, errRateLimited)
			return
		}
		h(w, r)
	}
}
