package game

import (
	"sync/atomic"
	"time"
)

// GameSnapshot is a complete immutable world state for readers outside the
// tick loop. Every slice is freshly allocated, so a published snapshot is
// never touched again by the engine.
type GameSnapshot struct {
	Sequence   uint64    `json:"sequence"`   // Monotonic sequence for ordering
	Timestamp  time.Time `json:"timestamp"`  // When snapshot was created
	TickNumber uint64    `json:"tickNumber"` // Tick this represents
	MatchID    string    `json:"matchId"`

	Bounds      Bounds               `json:"bounds"`
	Obstacles   []ObstacleSnapshot   `json:"obstacles"`
	Tanks       []TankSnapshot       `json:"tanks"`
	Projectiles []ProjectileSnapshot `json:"projectiles"`
	Rain        []ProjectileSnapshot `json:"rain"`

	// Aggregate stats
	ActiveObstacles int  `json:"activeObstacles"`
	AliveTanks      int  `json:"aliveTanks"`
	Running         bool `json:"running"`
}

// SnapshotBuffer hands the newest snapshot from the tick loop to any number
// of readers. Publishing swaps a pointer; readers never block the writer and
// never observe a half-built world.
type SnapshotBuffer struct {
	latest   atomic.Pointer[GameSnapshot]
	sequence atomic.Uint64
}

// NewSnapshotBuffer creates an empty buffer.
func NewSnapshotBuffer() *SnapshotBuffer {
	return &SnapshotBuffer{}
}

// Publish stamps snap with the next sequence number and makes it current.
// The caller must not modify snap afterwards.
func (b *SnapshotBuffer) Publish(snap *GameSnapshot) {
	snap.Sequence = b.sequence.Add(1)
	b.latest.Store(snap)
}

// Latest returns the most recent snapshot, or nil before the first publish.
func (b *SnapshotBuffer) Latest() *GameSnapshot {
	return b.latest.Load()
}

// buildSnapshot copies the environment into a new GameSnapshot.
func buildSnapshot(env *Environment, tick uint64, matchID string) *GameSnapshot {
	snap := &GameSnapshot{
		Timestamp:   time.Now(),
		TickNumber:  tick,
		MatchID:     matchID,
		Bounds:      env.Bounds,
		Obstacles:   make([]ObstacleSnapshot, 0, len(env.Obstacles)),
		Tanks:       make([]TankSnapshot, 0, len(env.Tanks)),
		Projectiles: make([]ProjectileSnapshot, 0, len(env.Projectiles)),
		Rain:        make([]ProjectileSnapshot, 0, len(env.Rain)),
		Running:     env.Running(),
	}

	for i := range env.Obstacles {
		o := &env.Obstacles[i]
		snap.Obstacles = append(snap.Obstacles, o.ToSnapshot())
		if o.Active() {
			snap.ActiveObstacles++
		}
	}
	for slot := range env.Tanks {
		t := &env.Tanks[slot]
		snap.Tanks = append(snap.Tanks, t.ToSnapshot(slot))
		if t.Alive() {
			snap.AliveTanks++
		}
	}
	for i := range env.Projectiles {
		snap.Projectiles = append(snap.Projectiles, env.Projectiles[i].ToSnapshot())
	}
	for i := range env.Rain {
		if env.Rain[i].Fired {
			snap.Rain = append(snap.Rain, env.Rain[i].ToSnapshot())
		}
	}
	return snap
}
