package game

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"tank-arena/internal/game/spatial"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTickRate is how many simulation steps run per second.
const DefaultTickRate = 60

// ErrUnknownSlot is returned for a tank slot the world does not have.
var ErrUnknownSlot = errors.New("unknown tank slot")

// EngineConfig configures a new Engine. Zero values fall back to defaults.
type EngineConfig struct {
	TickRate     int
	Layout       Layout
	GridCellSize float64
	Logger       *zap.Logger
	Input        InputProvider
}

// HitEvent is delivered to the OnHit callback after the tick that caused it.
type HitEvent struct {
	Tick      uint64   `json:"tick"`
	Target    string   `json:"target"` // "obstacle" or "tank"
	Index     int      `json:"index"`  // obstacle index or tank slot
	Cause     HitCause `json:"-"`
	CauseName string   `json:"cause"`
	Health    float64  `json:"health"`
	Destroyed bool     `json:"destroyed"`
}

// EngineStats is a point-in-time summary for the API and metrics.
type EngineStats struct {
	TickCount       uint64        `json:"tickCount"`
	MatchID         string        `json:"matchId"`
	Running         bool          `json:"running"`
	Tanks           int           `json:"tanks"`
	AliveTanks      int           `json:"aliveTanks"`
	Obstacles       int           `json:"obstacles"`
	ActiveObstacles int           `json:"activeObstacles"`
	Projectiles     int           `json:"projectiles"`
	RainPool        int           `json:"rainPool"`
	LastTick        time.Duration     `json:"lastTickNs"`
	EventLog        EventLogStats     `json:"eventLog"`
	BroadPhase      spatial.GridStats `json:"broadPhase"`
}

// Engine drives the simulation: it owns the Environment, polls input once per
// tank per tick, and publishes an immutable snapshot after every step.
type Engine struct {
	mu sync.Mutex

	env      *Environment
	layout   Layout
	cellSize float64
	input    InputProvider
	tickRate int

	logger    *zap.Logger
	eventLog  *EventLog
	snapshots *SnapshotBuffer

	matchID   string
	tickCount uint64
	lastTick  time.Duration

	// hits collected during the current step, dispatched after unlock
	pendingHits []HitEvent

	// Event callbacks
	onTick func(*GameSnapshot)
	onHit  func(HitEvent)

	// Start/Stop background loop
	loopCancel context.CancelFunc
	loopDone   chan struct{}
}

// NewEngine builds the world described by cfg.Layout and publishes its
// initial snapshot.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.TickRate <= 0 {
		cfg.TickRate = DefaultTickRate
	}
	if cfg.GridCellSize <= 0 {
		cfg.GridCellSize = DefaultGridCellSize
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Input == nil {
		cfg.Input = NoInput{}
	}
	if len(cfg.Layout.Tanks) == 0 {
		cfg.Layout = DefaultLayout()
	}

	logger := cfg.Logger.Named("engine")
	e := &Engine{
		layout:    cfg.Layout,
		cellSize:  cfg.GridCellSize,
		input:     cfg.Input,
		tickRate:  cfg.TickRate,
		logger:    logger,
		eventLog:  NewEventLog(cfg.Logger),
		snapshots: NewSnapshotBuffer(),
		matchID:   uuid.NewString(),
	}
	e.env = NewEnvironment(e.layout, e.cellSize)
	e.env.SetObserver(e)
	e.snapshots.Publish(buildSnapshot(e.env, 0, e.matchID))
	return e
}

// TickRate returns the configured steps per second.
func (e *Engine) TickRate() int {
	return e.tickRate
}

// Run steps the simulation at the configured tick rate until the running flag
// is cleared or ctx is cancelled. Each step is given the real wall-clock time
// since the previous one. The flag is checked only between steps.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(e.tickRate))
	defer ticker.Stop()

	e.logger.Info("🎮 Simulation started",
		zap.Int("tick_rate", e.tickRate),
		zap.String("match_id", e.MatchID()))

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("🛑 Simulation cancelled", zap.Uint64("ticks", e.TickCount()))
			return ctx.Err()
		case now := <-ticker.C:
			if !e.Running() {
				e.logger.Info("🛑 Simulation stopped", zap.Uint64("ticks", e.TickCount()))
				return nil
			}
			dt := now.Sub(last).Seconds()
			last = now
			e.Step(dt)
		}
	}
}

// Start runs the loop in the background. Calling Start twice is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.loopCancel != nil {
		e.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.loopCancel = cancel
	e.loopDone = done
	e.mu.Unlock()

	go func() {
		defer close(done)
		if err := e.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Error("simulation loop exited", zap.Error(err))
		}
	}()
}

// Stop clears the running flag and waits for a background loop to exit.
// A stopped world stays stopped, including across ResetWorld.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.env.Terminate()
	cancel, done := e.loopCancel, e.loopDone
	e.loopCancel, e.loopDone = nil, nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Running reports whether the world's running flag is still set.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.env.Running()
}

// Step advances the world by dt seconds and publishes a snapshot.
func (e *Engine) Step(dt float64) {
	e.mu.Lock()
	start := time.Now()
	e.tickCount++
	tick := e.tickCount
	env := e.env

	for i := range env.Obstacles {
		if o := &env.Obstacles[i]; o.Active() {
			o.Refresh(dt)
		}
	}
	for i := range env.Tanks {
		env.Tanks[i].Refresh(dt)
	}

	for slot := range env.Tanks {
		in := e.input.Intent(slot).Clamp()
		t := &env.Tanks[slot]

		// Dead tanks still turn; the resolver and Fire refuse them.
		t.Turn(float64(in.Turn) * dt)
		env.ResolveTankMove(slot, t.Azimuth, t.Elevation, float64(in.Advance)*dt, 0)

		if in.Fire {
			p := t.Fire()
			if p.Fired {
				p.OwnerSlot = slot
				env.Projectiles = append(env.Projectiles, p)
				e.eventLog.EmitSimple(EventTypeFire, tick, e.matchID, tankSource(slot), FirePayload{
					Slot: slot, X: p.X, Y: p.Y, Z: p.Z,
					Azimuth: p.Azimuth, AmmoLeft: t.Ammo,
				})
			}
		}
	}

	// Compact in place; survivors keep their firing order.
	kept := env.Projectiles[:0]
	for i := range env.Projectiles {
		p := env.Projectiles[i]
		env.ResolveProjectileMove(&p, p.Azimuth, p.Elevation, p.Speed*dt)
		if p.Fired {
			kept = append(kept, p)
		}
	}
	clear(env.Projectiles[len(kept):])
	env.Projectiles = kept

	for i := range env.Rain {
		env.advanceRainDrop(&env.Rain[i], dt)
		if !env.Rain[i].Fired {
			env.Rain[i] = env.NewRainDrop()
		}
	}

	snap := buildSnapshot(env, tick, e.matchID)
	e.eventLog.EmitSimple(EventTypeTick, tick, e.matchID, "", TickPayload{
		DeltaTimeNs:     int64(dt * 1e9),
		AliveTanks:      snap.AliveTanks,
		ActiveObstacles: snap.ActiveObstacles,
		Projectiles:     len(snap.Projectiles),
	})
	e.snapshots.Publish(snap)
	e.lastTick = time.Since(start)

	hits := e.pendingHits
	e.pendingHits = nil
	onTick, onHit := e.onTick, e.onHit
	e.mu.Unlock()

	if onHit != nil {
		for _, h := range hits {
			onHit(h)
		}
	}
	if onTick != nil {
		onTick(snap)
	}
}

// ObstacleHit implements HitObserver.
func (e *Engine) ObstacleHit(index int, o *Obstacle, cause HitCause) {
	destroyed := !o.Active()
	e.recordHit(HitEvent{
		Tick:      e.tickCount,
		Target:    "obstacle",
		Index:     index,
		Cause:     cause,
		CauseName: cause.String(),
		Health:    o.Health,
		Destroyed: destroyed,
	})

	payload := ObstacleHitPayload{Index: index, Cause: cause.String(), Health: o.Health}
	e.eventLog.EmitSimple(EventTypeObstacleHit, e.tickCount, e.matchID, "", payload)
	if destroyed {
		e.eventLog.EmitSimple(EventTypeObstacleDestroyed, e.tickCount, e.matchID, "", payload)
		e.logger.Debug("obstacle destroyed", zap.Int("index", index), zap.Stringer("cause", cause))
	}
}

// TankHit implements HitObserver.
func (e *Engine) TankHit(slot int, t *Tank, cause HitCause) {
	destroyed := !t.Alive()
	e.recordHit(HitEvent{
		Tick:      e.tickCount,
		Target:    "tank",
		Index:     slot,
		Cause:     cause,
		CauseName: cause.String(),
		Health:    t.Health,
		Destroyed: destroyed,
	})

	payload := TankHitPayload{Slot: slot, Cause: cause.String(), Health: t.Health}
	e.eventLog.EmitSimple(EventTypeTankHit, e.tickCount, e.matchID, tankSource(slot), payload)
	if destroyed {
		e.eventLog.EmitSimple(EventTypeTankDestroyed, e.tickCount, e.matchID, tankSource(slot), payload)
		e.logger.Info("💥 Tank destroyed", zap.Int("slot", slot), zap.Stringer("cause", cause))
	}
}

func (e *Engine) recordHit(h HitEvent) {
	e.pendingHits = append(e.pendingHits, h)
}

// ResetTank revives the tank in slot at default health.
func (e *Engine) ResetTank(slot int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.env.Tank(slot)
	if t == nil {
		return fmt.Errorf("%w: %d", ErrUnknownSlot, slot)
	}
	t.Revive()

	e.eventLog.EmitSimple(EventTypeTankReset, e.tickCount, e.matchID, tankSource(slot),
		ResetPayload{Slot: slot, MatchID: e.matchID})
	e.snapshots.Publish(buildSnapshot(e.env, e.tickCount, e.matchID))
	e.logger.Info("🔄 Tank reset", zap.Int("slot", slot))
	return nil
}

// ResetWorld rebuilds the world from the layout and starts a new match.
// The same layout and seed always produce the same world.
func (e *Engine) ResetWorld() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	wasRunning := e.env.Running()
	e.env = NewEnvironment(e.layout, e.cellSize)
	e.env.SetObserver(e)
	if !wasRunning {
		e.env.Terminate()
	}
	if r, ok := e.input.(interface{ Reset() }); ok {
		r.Reset()
	}

	e.matchID = uuid.NewString()
	e.pendingHits = nil
	e.eventLog.EmitSimple(EventTypeWorldReset, e.tickCount, e.matchID, "",
		ResetPayload{MatchID: e.matchID})
	e.snapshots.Publish(buildSnapshot(e.env, e.tickCount, e.matchID))
	e.logger.Info("🌍 World reset", zap.String("match_id", e.matchID))
	return e.matchID
}

// Snapshot returns the latest published world state. Never nil.
func (e *Engine) Snapshot() *GameSnapshot {
	return e.snapshots.Latest()
}

// MatchID returns the current match identifier.
func (e *Engine) MatchID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.matchID
}

// TickCount returns how many steps have run.
func (e *Engine) TickCount() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tickCount
}

// Slots returns how many tanks the world has.
func (e *Engine) Slots() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.env.Tanks)
}

// Stats returns aggregate counters.
func (e *Engine) Stats() EngineStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	live := 0
	for i := range e.env.Rain {
		if e.env.Rain[i].Fired {
			live++
		}
	}
	return EngineStats{
		TickCount:       e.tickCount,
		MatchID:         e.matchID,
		Running:         e.env.Running(),
		Tanks:           len(e.env.Tanks),
		AliveTanks:      e.env.AliveTanks(),
		Obstacles:       len(e.env.Obstacles),
		ActiveObstacles: e.env.ActiveObstacles(),
		Projectiles:     len(e.env.Projectiles),
		RainPool:        live,
		LastTick:        e.lastTick,
		EventLog:        e.eventLog.GetStats(),
		BroadPhase:      e.env.grid.Stats(),
	}
}

// SetCallbacks installs hooks run after each step, outside the engine lock.
// Either may be nil. Callbacks must not block.
func (e *Engine) SetCallbacks(onTick func(*GameSnapshot), onHit func(HitEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTick = onTick
	e.onHit = onHit
}

// StartEventLog starts persisting events to filePath (JSON lines).
func (e *Engine) StartEventLog(filePath string) error {
	return e.eventLog.Start(filePath)
}

// StopEventLog flushes and closes the event log.
func (e *Engine) StopEventLog() {
	e.eventLog.Stop()
}

// GetEventLogStats returns event log counters.
func (e *Engine) GetEventLogStats() EventLogStats {
	return e.eventLog.GetStats()
}

// withEnvironment runs fn with the world locked. Used by tests to arrange
// scenarios.
func (e *Engine) withEnvironment(fn func(env *Environment)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.env)
}

func tankSource(slot int) string {
	return "tank-" + strconv.Itoa(slot)
}
