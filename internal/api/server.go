package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ServerConfig configures NewServer.
type ServerConfig struct {
	Addr              string
	BroadcastInterval time.Duration
	RateLimit         RateLimitConfig
	CORSOrigins       []string // exact origins allowed besides loopback
}

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with WebSocket hub for real-time updates.
type Server struct {
	engine      EngineInterface
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *ClientLimiter
	httpServer  *http.Server
	cfg         ServerConfig
	logger      *zap.Logger
}

// NewServer creates a new API server.
//
// IMPORTANT: Background workers do NOT start until Run() is called.
// This enables testing by allowing the server to be constructed without
// starting goroutines or opening network listeners.
//
// For testing HTTP endpoints without WebSocket support, use NewRouter() directly.
func NewServer(engine EngineInterface, input InputSink, cfg ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		engine:      engine,
		wsHub:       NewWebSocketHub(input, NewOriginPolicy(cfg.CORSOrigins), logger),
		rateLimiter: NewClientLimiter(cfg.RateLimit),
		cfg:         cfg,
		logger:      logger.Named("server"),
	}

	s.router = NewRouter(RouterConfig{
		Engine:      engine,
		Input:       input,
		RateLimiter: s.rateLimiter,
		CORSOrigins: cfg.CORSOrigins,
		Connections: s.wsHub.conns,
		Logger:      logger,
	})

	// WebSocket routes need the wsHub instance, so they can't be part of
	// the generic NewRouter factory.
	s.router.Get("/ws", s.handleWS)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Run starts the WebSocket hub, the broadcast loop and the HTTP listener,
// and blocks until ctx is done or the listener fails. On cancellation the
// server shuts down gracefully within the given timeout.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	hubCtx, cancelHub := context.WithCancel(ctx)
	defer cancelHub()

	go s.wsHub.Run(hubCtx)
	s.wsHub.StartBroadcastLoop(hubCtx, s.engine, s.cfg.BroadcastInterval)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("🌐 API server starting", zap.String("addr", s.cfg.Addr))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.rateLimiter.Stop()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)
	s.rateLimiter.Stop()
	s.logger.Info("🛑 API server stopped")
	return err
}

// Router returns the HTTP handler for use with httptest.
// Use this in integration tests instead of calling Run().
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub exposes the WebSocket hub.
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	s.wsHub.HandleWebSocket(w, r)
}
