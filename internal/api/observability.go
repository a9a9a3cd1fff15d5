package api

import (
	"net/http"
	"net/http/pprof"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"tank-arena/internal/game"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics with bounded cardinality (no per-slot labels)
var (
	// Simulation metrics
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sim_tick_duration_seconds",
		Help:    "Time spent in one simulation step",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025},
	})

	aliveTanks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sim_tanks_alive",
		Help: "Tanks with health left",
	})

	activeObstacles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sim_obstacles_active",
		Help: "Obstacles that still block movement",
	})

	liveProjectiles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sim_projectiles_live",
		Help: "Rounds currently in flight",
	})

	liveRain = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sim_rain_live",
		Help: "Rain drops currently falling",
	})

	hitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_hits_total",
		Help: "Hits applied by the resolver",
	}, []string{"target", "cause"}) // Bounded: obstacle|tank x projectile|rain

	destroyedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_destroyed_total",
		Help: "Entities knocked out",
	}, []string{"target"})

	// Event log metrics
	eventLogTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "event_log_total",
		Help: "Total events logged",
	})

	eventLogDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "event_log_dropped_total",
		Help: "Events dropped due to rate limiting or buffer full",
	})

	// DoS detection metrics - use ONLY bounded label values
	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter or origin check",
	}, []string{"reason"}) // Bounded: "rate_limit", "origin", "ws_total_limit", "ws_ip_limit"

	// HTTP metrics with bounded labels
	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"}) // endpoint is path pattern, not full URL

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	// WebSocket metrics
	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "Total WebSocket messages sent",
	})

	wsInputTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "websocket_input_total",
		Help: "Input messages received over WebSocket",
	}, []string{"type"}) // Bounded: "intent", "keys", "invalid"
)

// Last-seen event log counters, turned into counter deltas
var (
	seenEventTotal   atomic.Uint64
	seenEventDropped atomic.Uint64
)

// ObservabilityConfig configures the debug server
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddr    string // MUST be on loopback in production
	BasicAuthUser string // Optional basic auth
	BasicAuthPass string
}

// DefaultObservabilityConfig returns safe defaults
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060", // Localhost only - NEVER expose externally
	}
}

// NewDebugServer builds the internal observability server (pprof and
// /metrics). It returns nil when disabled. The caller owns ListenAndServe
// and Shutdown.
func NewDebugServer(cfg ObservabilityConfig, logger *zap.Logger) *http.Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		logger.Info("📊 Debug server disabled")
		return nil
	}

	// SECURITY: keep pprof on loopback unless explicitly allowed
	if !isLoopbackAddr(cfg.ListenAddr) && os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
		logger.Warn("⚠️ Debug server forced to localhost for security", zap.String("requested", cfg.ListenAddr))
		cfg.ListenAddr = DefaultObservabilityConfig().ListenAddr
	}

	mux := http.NewServeMux()

	// pprof endpoints for profiling
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	var handler http.Handler = mux
	if cfg.BasicAuthUser != "" {
		handler = basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass, mux)
	}

	logger.Info("📊 Debug server configured",
		zap.String("pprof", "http://"+cfg.ListenAddr+"/debug/pprof/"),
		zap.String("metrics", "http://"+cfg.ListenAddr+"/metrics"))

	return &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func isLoopbackAddr(addr string) bool {
	return strings.HasPrefix(addr, "127.0.0.1:") || strings.HasPrefix(addr, "localhost:")
}

// basicAuthMiddleware adds basic authentication to the handler
func basicAuthMiddleware(user, pass string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RecordTick records tick timing for metrics
func RecordTick(duration time.Duration) {
	tickDuration.Observe(duration.Seconds())
}

// UpdateWorldGauges copies entity counts from a snapshot into gauges.
func UpdateWorldGauges(snap *game.GameSnapshot) {
	if snap == nil {
		return
	}
	aliveTanks.Set(float64(snap.AliveTanks))
	activeObstacles.Set(float64(snap.ActiveObstacles))
	liveProjectiles.Set(float64(len(snap.Projectiles)))
	liveRain.Set(float64(len(snap.Rain)))
}

// RecordHit counts one resolver hit.
func RecordHit(h game.HitEvent) {
	hitsTotal.WithLabelValues(h.Target, h.CauseName).Inc()
	if h.Destroyed {
		destroyedTotal.WithLabelValues(h.Target).Inc()
	}
}

// UpdateEventLogStats advances the event log counters to the given totals.
// It is called periodically; totals only grow.
func UpdateEventLogStats(total, dropped uint64) {
	if prev := seenEventTotal.Swap(total); total > prev {
		eventLogTotal.Add(float64(total - prev))
	}
	if prev := seenEventDropped.Swap(dropped); dropped > prev {
		eventLogDropped.Add(float64(dropped - prev))
	}
}

// RecordConnectionRejected increments the rejection counter
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, http.StatusText(status)).Inc()
}

// UpdateWSConnections updates WebSocket connection count
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages increments WebSocket message counter
func IncrementWSMessages() {
	wsMessagesTotal.Inc()
}

// RecordWSInput counts an inbound WebSocket message by type.
func RecordWSInput(kind string) {
	wsInputTotal.WithLabelValues(kind).Inc()
}
