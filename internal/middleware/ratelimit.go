package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit allows each client IP limit requests per window, refilled
// continuously. Idle clients are forgotten after a few windows.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	if limit < 1 {
		limit = 1
	}
	every := rate.Every(per / time.Duration(limit))
	var mu sync.Mutex
	visitors := make(map[string]*visitor)
	lastSweep := time.Now()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIPForRateLimit(r)
			now := time.Now()

			mu.Lock()
			if now.Sub(lastSweep) > per {
				for key, v := range visitors {
					if now.Sub(v.lastSeen) > 3*per {
						delete(visitors, key)
					}
				}
				lastSweep = now
			}
			v, ok := visitors[ip]
			if !ok {
				v = &visitor{limiter: rate.NewLimiter(every, limit)}
				visitors[ip] = v
			}
			v.lastSeen = now
			allowed := v.limiter.AllowN(now, 1)
			mu.Unlock()

			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(per.Seconds()/float64(limit)))))
				writeJSONError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIPForRateLimit(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			ip := strings.TrimSpace(part)
			if ip == "" {
				continue
			}
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		if net.ParseIP(host) != nil {
			return host
		}
	} else if net.ParseIP(r.RemoteAddr) != nil {
		return r.RemoteAddr
	}

	return r.RemoteAddr
}
