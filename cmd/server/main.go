package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"tank-arena/internal/api"
	"tank-arena/internal/config"
	"tank-arena/internal/game"
	"tank-arena/internal/ipc"
	"tank-arena/internal/logging"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load .env file from parent directory, then the current one
	envSource := "../.env"
	if err := godotenv.Load(envSource); err != nil {
		envSource = ".env"
		if err := godotenv.Load(envSource); err != nil {
			envSource = ""
		}
	}

	// Load centralized configuration (SSOT - Single Source of Truth)
	appConfig := config.Load()

	logger, err := logging.New(appConfig.Log.Level, appConfig.Log.Development)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	if envSource != "" {
		logger.Info("✅ Loaded environment", zap.String("file", envSource))
	} else {
		logger.Info("💡 No .env file found, using environment variables only")
	}

	if err := run(appConfig, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
	logger.Info("👋 Goodbye!")
}

func run(appConfig config.AppConfig, logger *zap.Logger) error {
	simCfg := appConfig.Sim
	serverCfg := appConfig.Server

	layout, err := loadLayout(simCfg)
	if err != nil {
		return err
	}
	logger.Info("🗺️ Arena layout",
		zap.String("source", layoutSource(simCfg)),
		zap.Int64("seed", layout.Seed),
		zap.Int("tanks", len(layout.Tanks)),
		zap.Int("obstacles", max(layout.ObstacleCount, len(layout.Obstacles))),
		zap.Int("rain", layout.RainCount))

	input := game.NewIntentBuffer(len(layout.Tanks), simCfg.FireDebounce)
	engine := game.NewEngine(game.EngineConfig{
		TickRate:     simCfg.TickRate,
		Layout:       layout,
		GridCellSize: appConfig.Spatial.GridCellSize,
		Logger:       logger,
		Input:        input,
	})
	// Optional snapshot feed for out-of-process renderers
	var publisher *ipc.Publisher
	if appConfig.IPC.SocketPath != "" {
		publisher = ipc.NewPublisher(appConfig.IPC.SocketPath, logger)
		publisher.SetWorld(ipc.WorldMessage{
			MatchID:  engine.MatchID(),
			TickRate: engine.TickRate(),
			Slots:    engine.Slots(),
			Bounds:   layout.Bounds,
		})
	}

	engine.SetCallbacks(func(snap *game.GameSnapshot) {
		api.UpdateWorldGauges(snap)
		if publisher != nil {
			publisher.PublishSnapshot(snap)
		}
	}, api.RecordHit)

	if err := engine.StartEventLog(appConfig.EventLog.Path); err != nil {
		logger.Warn("⚠️ Event log disabled", zap.Error(err))
	} else if appConfig.EventLog.Path != "" {
		logger.Info("📝 Event log", zap.String("path", appConfig.EventLog.Path))
	}
	defer engine.StopEventLog()

	broadcast := time.Second / time.Duration(max(serverCfg.BroadcastHz, 1))
	server := api.NewServer(engine, input, api.ServerConfig{
		Addr:              ":" + strconv.Itoa(serverCfg.Port),
		BroadcastInterval: broadcast,
		RateLimit: api.RateLimitConfig{
			RequestsPerSecond: serverCfg.RateLimit,
			Burst:             serverCfg.RateBurst,
			CleanupInterval:   api.DefaultRateLimitConfig.CleanupInterval,
		},
		CORSOrigins: serverCfg.CORSOrigins,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := engine.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		return server.Run(ctx, serverCfg.ShutdownTimeout)
	})

	if publisher != nil {
		g.Go(func() error {
			if err := publisher.Run(ctx); err != nil {
				logger.Warn("⚠️ Snapshot feed disabled", zap.Error(err))
			}
			return nil
		})
	}

	if debugSrv := newDebugServer(serverCfg, logger); debugSrv != nil {
		g.Go(func() error {
			if err := debugSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("⚠️ Debug server error", zap.Error(err))
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
			defer cancel()
			return debugSrv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				stats := engine.GetEventLogStats()
				api.UpdateEventLogStats(stats.Total, stats.Dropped)
				api.RecordTick(engine.Stats().LastTick)
			}
		}
	})

	logger.Info("✅ Server ready! Press Ctrl+C to stop.",
		zap.Int("port", serverCfg.Port),
		zap.Int("tick_rate", engine.TickRate()),
		zap.String("match_id", engine.MatchID()))

	err = g.Wait()
	logger.Info("🛑 Shutting down...")
	return err
}

func loadLayout(cfg config.SimConfig) (game.Layout, error) {
	layout := game.DefaultLayout()
	if cfg.LayoutPath != "" {
		l, err := game.LoadLayout(cfg.LayoutPath)
		if err != nil {
			return game.Layout{}, fmt.Errorf("load arena layout: %w", err)
		}
		layout = l
	}
	if cfg.HasSeed {
		layout.Seed = cfg.Seed
	}
	if cfg.RainCount >= 0 {
		layout.RainCount = cfg.RainCount
	}
	return layout, layout.Validate()
}

func layoutSource(cfg config.SimConfig) string {
	if cfg.LayoutPath == "" {
		return "built-in"
	}
	return cfg.LayoutPath
}

func newDebugServer(cfg config.ServerConfig, logger *zap.Logger) *http.Server {
	if cfg.DebugPort == 0 || os.Getenv("DISABLE_DEBUG_SERVER") == "true" {
		return nil
	}
	debugCfg := api.DefaultObservabilityConfig()
	debugCfg.ListenAddr = "127.0.0.1:" + strconv.Itoa(cfg.DebugPort)
	debugCfg.BasicAuthUser = os.Getenv("DEBUG_USER")
	debugCfg.BasicAuthPass = os.Getenv("DEBUG_PASS")
	return api.NewDebugServer(debugCfg, logger)
}
