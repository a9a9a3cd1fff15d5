// =============================================================================
// TANK ARENA - SPECTATOR
// =============================================================================
// Standalone process that attaches to the server's snapshot feed and logs a
// summary of the world once per interval. Renderers follow the same pattern:
// subscribe, keep the latest snapshot, draw at their own rate.
//
// USAGE:
//   1. Start the server with IPC_SOCKET set: IPC_SOCKET=/tmp/tank-arena.sock go run ./cmd/server
//   2. Then start this spectator:             go run ./cmd/spectator
// =============================================================================
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tank-arena/internal/config"
	"tank-arena/internal/ipc"
	"tank-arena/internal/logging"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load("../.env"); err != nil {
		_ = godotenv.Load(".env")
	}

	appConfig := config.Load()
	logger, err := logging.New(appConfig.Log.Level, appConfig.Log.Development)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	socketPath := appConfig.IPC.SocketPath
	if socketPath == "" {
		socketPath = ipc.DefaultSocketPath
	}

	interval := time.Second
	if v := os.Getenv("SPECTATOR_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			interval = d
		}
	}

	subscriber := ipc.NewSubscriber(socketPath, logger)
	subscriber.OnConnect(func() {
		logger.Info("✅ Connected to arena")
	})
	subscriber.OnDisconnect(func() {
		logger.Warn("🔌 Lost arena connection, retrying")
	})
	subscriber.OnWorld(func(w *ipc.WorldMessage) {
		logger.Info("🗺️ Match",
			zap.String("match_id", w.MatchID),
			zap.Int("slots", w.Slots),
			zap.Int("tick_rate", w.TickRate),
			zap.Any("bounds", w.Bounds))
	})

	if err := subscriber.Start(); err != nil {
		logger.Fatal("start subscriber", zap.Error(err))
	}
	defer subscriber.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watch(ctx, subscriber, interval, logger)
	logger.Info("👋 Goodbye!")
}

// watch logs a summary of the newest snapshot each interval until ctx ends.
func watch(ctx context.Context, sub *ipc.Subscriber, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastSeq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := sub.Latest()
			if snap == nil || snap.Sequence == lastSeq {
				continue
			}
			lastSeq = snap.Sequence
			stats := sub.Stats()
			logger.Info("📊 Arena",
				zap.Uint64("tick", snap.TickNumber),
				zap.Int("alive_tanks", snap.AliveTanks),
				zap.Int("active_obstacles", snap.ActiveObstacles),
				zap.Int("projectiles", len(snap.Projectiles)),
				zap.Int("rain", len(snap.Rain)),
				zap.Bool("running", snap.Running),
				zap.Int64("received", stats.Received))
		}
	}
}
