package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	apperrors "github.com/kbukum/speechgate/errors"
	"github.com/kbukum/speechgate/resilience"
)

// RateLimitConfig configures request admission. Limits apply to the paths
// under Prefixes, or to every path when Prefixes is empty.
type RateLimitConfig struct {
	Enabled           bool     `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerSecond float64  `yaml:"requests_per_second" mapstructure:"requests_per_second" validate:"gte=0"`
	Burst             int      `yaml:"burst" mapstructure:"burst" validate:"gte=0"`
	PerClient         bool     `yaml:"per_client" mapstructure:"per_client"`
	Prefixes          []string `yaml:"prefixes" mapstructure:"prefixes"`
}

// ApplyDefaults fills unset fields.
func (c *RateLimitConfig) ApplyDefaults() {
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = 20
	}
}

// KeyFunc extracts the rate limit key from a request.
type KeyFunc func(*http.Request) string

// IPBasedKey keys requests by the remote host.
func IPBasedKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit returns middleware that rejects requests over the configured
// token bucket rate with 503 OVERLOADED. With PerClient set, every client
// IP gets its own bucket.
func RateLimit(cfg RateLimitConfig) Middleware {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	limiters := newLimiterSet(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !matchesPrefix(r.URL.Path, cfg.Prefixes) {
				next.ServeHTTP(w, r)
				return
			}
			if !limiters.get(r).Allow() {
				w.Header().Set("Retry-After", "1")
				writeError(w, apperrors.New(apperrors.ErrCodeOverloaded,
					"Rate limit exceeded. Please retry later.", http.StatusServiceUnavailable))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type limiterSet struct {
	cfg    RateLimitConfig
	key    KeyFunc
	global *resilience.RateLimiter

	mu       sync.Mutex
	clients  map[string]*clientLimiter
	lastScan time.Time
}

type clientLimiter struct {
	limiter  *resilience.RateLimiter
	lastSeen time.Time
}

const clientIdleTTL = 5 * time.Minute

func newLimiterSet(cfg RateLimitConfig) *limiterSet {
	s := &limiterSet{cfg: cfg, key: IPBasedKey, lastScan: time.Now()}
	if cfg.PerClient {
		s.clients = make(map[string]*clientLimiter)
	} else {
		s.global = s.newLimiter("global")
	}
	return s
}

func (s *limiterSet) newLimiter(name string) *resilience.RateLimiter {
	return resilience.NewRateLimiter(resilience.RateLimiterConfig{
		Name:  name,
		Rate:  s.cfg.RequestsPerSecond,
		Burst: s.cfg.Burst,
	})
}

func (s *limiterSet) get(r *http.Request) *resilience.RateLimiter {
	if s.global != nil {
		return s.global
	}
	key := s.key(r)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.lastScan) > clientIdleTTL {
		for k, c := range s.clients {
			if now.Sub(c.lastSeen) > clientIdleTTL {
				delete(s.clients, k)
			}
		}
		s.lastScan = now
	}
	c, ok := s.clients[key]
	if !ok {
		c = &clientLimiter{limiter: s.newLimiter(key)}
		s.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter
}

func matchesPrefix(path string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if len(path) >= len(p) && path[:len(p)] == p {
			return true
		}
	}
	return false
}
