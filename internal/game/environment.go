package game

import (
	"math"
	"math/rand"
	"sync/atomic"

	"tank-arena/internal/game/spatial"
)

// Rain pool constants
const (
	RainMinRadius = 0.1
	RainMaxRadius = 0.5
	RainMinSpeed  = 1.0
	RainMaxSpeed  = 5.0
	RainElevation = -math.Pi / 2 // straight down
)

// DefaultGridCellSize is the obstacle broad-phase cell edge in world units.
const DefaultGridCellSize = 4.0

// HitCause tells observers what struck an entity.
type HitCause uint8

const (
	CauseProjectile HitCause = iota
	CauseRain
)

// String returns a stable name for logs and events.
func (c HitCause) String() string {
	switch c {
	case CauseProjectile:
		return "projectile"
	case CauseRain:
		return "rain"
	default:
		return "unknown"
	}
}

// HitObserver is told about every hit the simulation applies.
// Observers run synchronously inside the tick and must not mutate the world.
type HitObserver interface {
	ObstacleHit(index int, o *Obstacle, cause HitCause)
	TankHit(slot int, t *Tank, cause HitCause)
}

// Environment owns every entity in a match. Tanks live in fixed slots, one per
// player; the resolver addresses them by slot so push chains never hold
// nested references into the arena.
//
// Environment is not safe for concurrent use. The Engine serialises access.
type Environment struct {
	Bounds      Bounds
	Obstacles   []Obstacle
	Projectiles []Projectile // live rounds, in firing order
	Rain        []Projectile // fixed-size pool, recycled in place
	Tanks       []Tank

	running  atomic.Bool
	rng      *rand.Rand
	grid     *spatial.SpatialGrid
	cellSize float64
	observer HitObserver
}

// NewEnvironment builds a world from layout. The generator is seeded from the
// layout so the same layout always produces the same world.
func NewEnvironment(layout Layout, cellSize float64) *Environment {
	if cellSize <= 0 {
		cellSize = DefaultGridCellSize
	}
	rng := rand.New(rand.NewSource(layout.Seed))

	env := &Environment{
		Bounds:      layout.Bounds,
		Obstacles:   layout.placeObstacles(rng),
		Projectiles: make([]Projectile, 0, len(layout.Tanks)*TankDefaultMaxAmmo),
		Rain:        make([]Projectile, layout.RainCount),
		Tanks:       make([]Tank, 0, len(layout.Tanks)),
		rng:         rng,
		cellSize:    cellSize,
	}
	for i := range env.Rain {
		env.Rain[i] = NewInertProjectile()
	}
	for _, s := range layout.Tanks {
		env.Tanks = append(env.Tanks, NewTank(s.X, s.Y, s.Z, s.R))
	}

	env.Reindex()
	env.running.Store(true)
	return env
}

// Reindex rebuilds the obstacle broad-phase. Call it after replacing
// Obstacles wholesale; obstacles never move, so nothing else needs it.
func (e *Environment) Reindex() {
	b := e.Bounds
	if e.grid == nil {
		e.grid = spatial.NewSpatialGrid(b.XMin, b.YMin, b.XMax, b.YMax, e.cellSize, len(e.Obstacles))
	}
	e.grid.Clear()
	for i := range e.Obstacles {
		o := &e.Obstacles[i]
		e.grid.Insert(uint32(i), o.X, o.Y, o.R)
	}
}

// SetObserver installs the hit observer. nil disables reporting.
func (e *Environment) SetObserver(obs HitObserver) {
	e.observer = obs
}

// Running reports whether the tick loop should keep going.
func (e *Environment) Running() bool {
	return e.running.Load()
}

// Terminate clears the running flag. The loop notices at its next tick.
func (e *Environment) Terminate() {
	e.running.Store(false)
}

// Tank returns the tank in slot, or nil for an unknown slot.
func (e *Environment) Tank(slot int) *Tank {
	if slot < 0 || slot >= len(e.Tanks) {
		return nil
	}
	return &e.Tanks[slot]
}

// OutOfBounds tests s against this world's bounds.
func (e *Environment) OutOfBounds(s *Sphere) bool {
	return s.OutOfBounds(e.Bounds)
}

// ActiveObstacles counts obstacles that still block.
func (e *Environment) ActiveObstacles() int {
	n := 0
	for i := range e.Obstacles {
		if e.Obstacles[i].Active() {
			n++
		}
	}
	return n
}

// AliveTanks counts tanks with health left.
func (e *Environment) AliveTanks() int {
	n := 0
	for i := range e.Tanks {
		if e.Tanks[i].Alive() {
			n++
		}
	}
	return n
}

// obstacleCandidates returns indices of obstacles that may overlap s, in
// ascending order. The slice is reused by the next call.
func (e *Environment) obstacleCandidates(s *Sphere) []uint32 {
	return e.grid.QueryRadius(s.X, s.Y, s.R)
}

// NewRainDrop returns a freshly randomised drop at the top of the world,
// falling straight down.
func (e *Environment) NewRainDrop() Projectile {
	b := e.Bounds
	x := uniform(e.rng, b.XMin, b.XMax)
	y := uniform(e.rng, b.YMin, b.YMax)
	r := uniform(e.rng, RainMinRadius, RainMaxRadius)
	speed := uniform(e.rng, RainMinSpeed, RainMaxSpeed)
	return NewLiveProjectile(x, y, b.ZMax, r, 0, RainElevation, speed)
}

func (e *Environment) notifyObstacleHit(idx int, cause HitCause) {
	if e.observer != nil {
		e.observer.ObstacleHit(idx, &e.Obstacles[idx], cause)
	}
}

func (e *Environment) notifyTankHit(slot int, cause HitCause) {
	if e.observer != nil {
		e.observer.TankHit(slot, &e.Tanks[slot], cause)
	}
}
