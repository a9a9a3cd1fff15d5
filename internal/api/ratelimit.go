package api

import (
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures the per-client request limiter
type RateLimitConfig struct {
	RequestsPerSecond float64       // Requests allowed per second per client
	Burst             int           // Maximum burst size
	CleanupInterval   time.Duration // How often idle clients are forgotten
}

// DefaultRateLimitConfig suits input clients that post an intent on every
// key change.
var DefaultRateLimitConfig = RateLimitConfig{
	RequestsPerSecond: 20,
	Burst:             40,
	CleanupInterval:   5 * time.Minute,
}

// AdmissionStats is the admission-control section of /api/stats.
type AdmissionStats struct {
	Requests  RequestStats `json:"requests"`
	WebSocket ConnStats    `json:"websocket"`
}

// RequestStats counts HTTP admission decisions.
type RequestStats struct {
	Allowed  uint64 `json:"allowed"`
	Rejected uint64 `json:"rejected"`
	Clients  int    `json:"clients"` // clients with a live token bucket
}

// =============================================================================
// PER-CLIENT REQUEST LIMITER
// =============================================================================

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientLimiter gives every client IP its own token bucket. Buckets idle for
// two cleanup intervals are dropped.
type ClientLimiter struct {
	cfg RateLimitConfig

	mu      sync.Mutex
	buckets map[string]*clientBucket

	allowed  atomic.Uint64
	rejected atomic.Uint64

	stop     chan struct{}
	stopOnce sync.Once
}

// NewClientLimiter creates a limiter and starts its cleanup goroutine.
func NewClientLimiter(cfg RateLimitConfig) *ClientLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultRateLimitConfig.CleanupInterval
	}
	l := &ClientLimiter{
		cfg:     cfg,
		buckets: make(map[string]*clientBucket),
		stop:    make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Stop ends the cleanup goroutine.
func (l *ClientLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Allow spends one token from ip's bucket.
func (l *ClientLimiter) Allow(ip string) bool {
	now := time.Now()

	l.mu.Lock()
	b, ok := l.buckets[ip]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), l.cfg.Burst)}
		l.buckets[ip] = b
	}
	b.lastSeen = now
	allowed := b.limiter.AllowN(now, 1)
	l.mu.Unlock()

	if allowed {
		l.allowed.Add(1)
	} else {
		l.rejected.Add(1)
	}
	return allowed
}

// Middleware rejects over-budget requests with 429.
func (l *ClientLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(GetClientIP(r)) {
			RecordConnectionRejected("rate_limit")
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Stats reports admission counters.
func (l *ClientLimiter) Stats() RequestStats {
	l.mu.Lock()
	clients := len(l.buckets)
	l.mu.Unlock()
	return RequestStats{
		Allowed:  l.allowed.Load(),
		Rejected: l.rejected.Load(),
		Clients:  clients,
	}
}

func (l *ClientLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case now := <-ticker.C:
			l.sweep(now)
		}
	}
}

// sweep forgets clients not seen since now - 2*CleanupInterval.
func (l *ClientLimiter) sweep(now time.Time) int {
	cutoff := now.Add(-2 * l.cfg.CleanupInterval)

	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for ip, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, ip)
			removed++
		}
	}
	return removed
}

// GetClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then
// the socket peer. Forwarded headers are trusted, so run behind a proxy that
// overwrites them.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// =============================================================================
// WEBSOCKET CONNECTION LIMITER
// =============================================================================

var (
	// ErrHubFull is returned when the hub holds its total connection budget.
	ErrHubFull = errors.New("websocket hub full")
	// ErrClientFull is returned when one IP holds its per-client budget.
	ErrClientFull = errors.New("too many websocket connections from client")
)

// ConnStats counts open WebSocket connections.
type ConnStats struct {
	Open     int    `json:"open"`
	Clients  int    `json:"clients"`
	Rejected uint64 `json:"rejected"`
}

// ConnLimiter caps open WebSocket connections in total and per client IP.
type ConnLimiter struct {
	maxTotal int
	maxPerIP int

	mu    sync.Mutex
	open  map[string]int
	total int

	rejected atomic.Uint64
}

// NewConnLimiter creates a limiter. A non-positive max disables that cap.
func NewConnLimiter(maxTotal, maxPerIP int) *ConnLimiter {
	return &ConnLimiter{
		maxTotal: maxTotal,
		maxPerIP: maxPerIP,
		open:     make(map[string]int),
	}
}

// Acquire reserves a connection slot for ip. Every successful Acquire must
// be paired with one Release.
func (c *ConnLimiter) Acquire(ip string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxTotal > 0 && c.total >= c.maxTotal {
		c.rejected.Add(1)
		return ErrHubFull
	}
	if c.maxPerIP > 0 && c.open[ip] >= c.maxPerIP {
		c.rejected.Add(1)
		return ErrClientFull
	}
	c.open[ip]++
	c.total++
	return nil
}

// Release frees a slot taken by Acquire.
func (c *ConnLimiter) Release(ip string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.open[ip]
	if !ok {
		return
	}
	if n <= 1 {
		delete(c.open, ip)
	} else {
		c.open[ip] = n - 1
	}
	c.total--
}

// Stats reports open connections and rejections.
func (c *ConnLimiter) Stats() ConnStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ConnStats{
		Open:     c.total,
		Clients:  len(c.open),
		Rejected: c.rejected.Load(),
	}
}

// =============================================================================
// ORIGIN POLICY
// =============================================================================

// OriginPolicy decides which browser origins may call the API and open
// WebSockets. Loopback origins on any port are always allowed; extra origins
// come from CORS_ORIGINS and must match exactly.
type OriginPolicy struct {
	extra []string
}

// NewOriginPolicy builds a policy from configured origins. Blank entries
// and trailing slashes are dropped.
func NewOriginPolicy(extra []string) *OriginPolicy {
	p := &OriginPolicy{}
	for _, o := range extra {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			p.extra = append(p.extra, o)
		}
	}
	return p
}

// Allows reports whether a request carrying this Origin header is admitted.
func (p *OriginPolicy) Allows(origin string) bool {
	if origin == "" {
		return false
	}
	if isLoopbackOrigin(origin) {
		return true
	}
	for _, o := range p.extra {
		if origin == o {
			return true
		}
	}
	return false
}

// CORSPatterns returns the origin list in go-chi/cors pattern form.
func (p *OriginPolicy) CORSPatterns() []string {
	patterns := []string{
		"http://localhost",
		"http://localhost:*",
		"http://127.0.0.1",
		"http://127.0.0.1:*",
	}
	return append(patterns, p.extra...)
}

func isLoopbackOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme != "http" || (u.Path != "" && u.Path != "/") {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1"
}
