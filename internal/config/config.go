// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for simulation and server settings.
//
// Every section has a DefaultX constructor and an XFromEnv constructor that
// applies environment overrides on top of the defaults.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// SIMULATION CONFIGURATION
// =============================================================================

// SimConfig holds tick loop and world settings.
type SimConfig struct {
	TickRate     int    // Simulation steps per second
	LayoutPath   string // Optional YAML arena layout; empty uses the built-in arena
	Seed         int64  // World seed, applied only when HasSeed is set
	HasSeed      bool   // Whether SIM_SEED overrides the layout's seed
	RainCount    int    // Rain pool size, applied only when >= 0
	FireDebounce int    // Held-key polls per shot for raw key input
}

// DefaultSim returns the default simulation configuration.
func DefaultSim() SimConfig {
	return SimConfig{
		TickRate:     60,
		RainCount:    -1, // keep the layout's value
		FireDebounce: 150,
	}
}

// SimFromEnv returns simulation configuration with environment variable overrides.
func SimFromEnv() SimConfig {
	cfg := DefaultSim()

	if tr := getEnvInt("SIM_TICK_RATE", 0); tr > 0 {
		cfg.TickRate = tr
	}
	if p := os.Getenv("SIM_LAYOUT"); p != "" {
		cfg.LayoutPath = p
	}
	if v := os.Getenv("SIM_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Seed = seed
			cfg.HasSeed = true
		}
	}
	if rc := getEnvInt("SIM_RAIN_COUNT", -1); rc >= 0 {
		cfg.RainCount = rc
	}
	if fd := getEnvInt("SIM_FIRE_DEBOUNCE", -1); fd >= 0 {
		cfg.FireDebounce = fd
	}

	return cfg
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int
	DebugPort       int           // pprof and /metrics; 0 disables
	BroadcastHz     int           // WebSocket world:state rate
	RateLimit       float64       // API requests per second per IP
	RateBurst       int           // API burst per IP
	ShutdownTimeout time.Duration // Graceful shutdown budget
	CORSOrigins     []string      // Exact browser origins allowed besides loopback
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:            3000,
		DebugPort:       6060,
		BroadcastHz:     10,
		RateLimit:       20,
		RateBurst:       40,
		ShutdownTimeout: 10 * time.Second,
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if dp := getEnvInt("DEBUG_PORT", -1); dp >= 0 {
		cfg.DebugPort = dp
	}
	if hz := getEnvInt("BROADCAST_HZ", 0); hz > 0 {
		cfg.BroadcastHz = hz
	}
	if rl := getEnvFloat("RATE_LIMIT", 0); rl > 0 {
		cfg.RateLimit = rl
	}
	if rb := getEnvInt("RATE_BURST", 0); rb > 0 {
		cfg.RateBurst = rb
	}
	if st := getEnvInt("SHUTDOWN_TIMEOUT_SEC", 0); st > 0 {
		cfg.ShutdownTimeout = time.Duration(st) * time.Second
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}

	return cfg
}

// =============================================================================
// SPATIAL CONFIGURATION
// =============================================================================

// SpatialConfig holds spatial indexing settings.
type SpatialConfig struct {
	GridCellSize float64 // Obstacle broad-phase cell size in world units
}

// DefaultSpatial returns the default spatial configuration.
func DefaultSpatial() SpatialConfig {
	return SpatialConfig{
		GridCellSize: 4, // 10x10 cells over the default 40x40 arena
	}
}

// SpatialFromEnv returns spatial configuration with environment variable overrides.
func SpatialFromEnv() SpatialConfig {
	cfg := DefaultSpatial()

	if cs := getEnvFloat("GRID_CELL_SIZE", 0); cs > 0 {
		cfg.GridCellSize = cs
	}

	return cfg
}

// =============================================================================
// LOGGING CONFIGURATION
// =============================================================================

// LogConfig holds logger settings.
type LogConfig struct {
	Level       string // debug, info, warn, error
	Development bool   // Console output with callers
}

// DefaultLog returns the default logging configuration.
func DefaultLog() LogConfig {
	return LogConfig{
		Level: "info",
	}
}

// LogFromEnv returns logging configuration with environment variable overrides.
func LogFromEnv() LogConfig {
	cfg := DefaultLog()

	if l := os.Getenv("LOG_LEVEL"); l != "" {
		cfg.Level = l
	}
	cfg.Development = getEnvBool("LOG_DEV", cfg.Development)

	return cfg
}

// =============================================================================
// EVENT LOG CONFIGURATION
// =============================================================================

// EventLogConfig holds event log settings.
type EventLogConfig struct {
	Path string // JSON-lines output; empty keeps events in memory only
}

// DefaultEventLog returns the default event log configuration.
func DefaultEventLog() EventLogConfig {
	return EventLogConfig{
		Path: "events.jsonl",
	}
}

// EventLogFromEnv returns event log configuration with environment variable overrides.
func EventLogFromEnv() EventLogConfig {
	cfg := DefaultEventLog()

	if p, ok := os.LookupEnv("EVENT_LOG_PATH"); ok {
		cfg.Path = p
	}

	return cfg
}

// =============================================================================
// IPC CONFIGURATION
// =============================================================================

// IPCConfig holds the local snapshot feed settings.
type IPCConfig struct {
	SocketPath string // Unix socket for out-of-process renderers; empty disables
}

// DefaultIPC returns the default IPC configuration (feed disabled).
func DefaultIPC() IPCConfig {
	return IPCConfig{}
}

// IPCFromEnv returns IPC configuration with environment variable overrides.
func IPCFromEnv() IPCConfig {
	cfg := DefaultIPC()

	if p := os.Getenv("IPC_SOCKET"); p != "" {
		cfg.SocketPath = p
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Sim      SimConfig
	Server   ServerConfig
	Spatial  SpatialConfig
	Log      LogConfig
	EventLog EventLogConfig
	IPC      IPCConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Sim:      SimFromEnv(),
		Server:   ServerFromEnv(),
		Spatial:  SpatialFromEnv(),
		Log:      LogFromEnv(),
		EventLog: EventLogFromEnv(),
		IPC:      IPCFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

// splitList splits a comma-separated value, dropping blank entries.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
