package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"identity-server/internal/model"
)

// authPaths get the stricter bucket: they are the endpoints worth
// brute-forcing.
var authPaths = map[string]struct{}{
	"/api/user/login":    {},
	"/api/user/register": {},
	"/api/user/refresh":  {},
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type RateLimiter struct {
	mu          sync.Mutex
	clients     map[string]*clientLimiter
	authClients map[string]*clientLimiter

	limit     rate.Limit
	burst     int
	authLimit rate.Limit
	authBurst int

	lastGC time.Time
}

func NewRateLimiter(requestsPerMinute, authRequestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 120
	}
	if authRequestsPerMinute <= 0 {
		authRequestsPerMinute = 10
	}

	return &RateLimiter{
		clients:     make(map[string]*clientLimiter),
		authClients: make(map[string]*clientLimiter),
		limit:       rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:       requestsPerMinute,
		authLimit:   rate.Limit(float64(authRequestsPerMinute) / 60.0),
		authBurst:   authRequestsPerMinute,
		lastGC:      time.Now(),
	}
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := extractClientIP(r)

		if !rl.allow(ip, r.URL.Path) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = jsonEncode(w, model.APIResponse{
				Success: false,
				Error: &model.APIError{
					Code:    "RATE_LIMITED",
					Message: "Too many requests",
				},
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(ip, path string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastGC) > 5*time.Minute {
		rl.gcLocked(now)
		rl.lastGC = now
	}

	pool := rl.clients
	limit, burst := rl.limit, rl.burst
	if _, ok := authPaths[path]; ok {
		pool = rl.authClients
		limit, burst = rl.authLimit, rl.authBurst
	}

	client, ok := pool[ip]
	if !ok {
		client = &clientLimiter{limiter: rate.NewLimiter(limit, burst)}
		pool[ip] = client
	}
	client.lastSeen = now

	return client.limiter.Allow()
}

func (rl *RateLimiter) gcLocked(now time.Time) {
	for _, pool := range []map[string]*clientLimiter{rl.clients, rl.authClients} {
		for ip, client := range pool {
			if now.Sub(client.lastSeen) > 10*time.Minute {
				delete(pool, ip)
			}
		}
	}
}

func extractClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.IndexByte(forwarded, ','); idx >= 0 {
			return strings.TrimSpace(forwarded[:idx])
		}
		return strings.TrimSpace(forwarded)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
