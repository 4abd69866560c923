package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"go-wine-shop/internal/model"
)

const (
	defaultGeneralRPM = 100
	defaultAuthRPM    = 10
	rateWindow        = time.Minute
)

type bucket string

const (
	bucketGeneral bucket = "general"
	bucketAuth    bucket = "auth"
)

// limitStore decides whether one more request for key fits in limit per minute.
type limitStore interface {
	Allow(ctx context.Context, b bucket, key string, limit int) (bool, error)
}

type RateLimitMiddleware struct {
	generalRPM int
	authRPM    int
	store      limitStore
}

// NewRateLimitMiddleware limits per client IP in process memory.
func NewRateLimitMiddleware(generalRPM int, authRPM int) *RateLimitMiddleware {
	return newRateLimit(generalRPM, authRPM, newMemoryLimitStore())
}

// NewRedisRateLimitMiddleware shares counters between instances through Redis.
func NewRedisRateLimitMiddleware(client redis.Scripter, generalRPM int, authRPM int) *RateLimitMiddleware {
	return newRateLimit(generalRPM, authRPM, &redisLimitStore{client: client, prefix: "ratelimit"})
}

func newRateLimit(generalRPM int, authRPM int, store limitStore) *RateLimitMiddleware {
	if generalRPM <= 0 {
		generalRPM = defaultGeneralRPM
	}
	if authRPM <= 0 {
		authRPM = defaultAuthRPM
	}

	return &RateLimitMiddleware{generalRPM: generalRPM, authRPM: authRPM, store: store}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		target, limit := bucketGeneral, m.generalRPM
		if strings.HasPrefix(strings.ToLower(r.URL.Path), "/auth/") {
			target, limit = bucketAuth, m.authRPM
		}

		allowed, err := m.store.Allow(r.Context(), target, extractClientIP(r), limit)
		if err != nil {
			// The limiter fails open.
			slog.Warn("rate limiter unavailable", "error", err)
			allowed = true
		}

		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(rateWindow.Seconds())))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(model.APIResponse{
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

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type memoryLimitStore struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
}

func newMemoryLimitStore() *memoryLimitStore {
	return &memoryLimitStore{clients: map[string]*clientLimiter{}}
}

func (s *memoryLimitStore) Allow(_ context.Context, b bucket, key string, limit int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := string(b) + ":" + key
	entry, exists := s.clients[id]
	if !exists {
		entry = &clientLimiter{
			limiter: rate.NewLimiter(rate.Every(rateWindow/time.Duration(limit)), limit),
		}
		s.clients[id] = entry
	}
	entry.lastSeen = time.Now()
	s.gcLocked()

	return entry.limiter.Allow(), nil
}

func (s *memoryLimitStore) gcLocked() {
	if len(s.clients) < 1000 {
		return
	}

	cutoff := time.Now().Add(-10 * time.Minute)
	for id, entry := range s.clients {
		if entry.lastSeen.Before(cutoff) {
			delete(s.clients, id)
		}
	}
}

// fixedWindowScript counts requests in the current window and arms the
// expiry on the first hit.
var fixedWindowScript = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	return count
`)

type redisLimitStore struct {
	client redis.Scripter
	prefix string
}

func (s *redisLimitStore) Allow(ctx context.Context, b bucket, key string, limit int) (bool, error) {
	window := time.Now().Unix() / int64(rateWindow.Seconds())
	redisKey := strings.Join([]string{s.prefix, string(b), key, strconv.FormatInt(window, 10)}, ":")

	count, err := fixedWindowScript.Run(ctx, s.client, []string{redisKey}, rateWindow.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return count <= int64(limit), nil
}

func extractClientIP(r *http.Request) string {
	forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	realIP := strings.TrimSpace(r.Header.Get("X-Real-IP"))
	if realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}

	if strings.TrimSpace(r.RemoteAddr) == "" {
		return "unknown"
	}

	return r.RemoteAddr
}
