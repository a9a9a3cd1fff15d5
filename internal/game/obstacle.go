package game

// Obstacle system constants
const (
	ObstacleDefaultHealth   = 10.0
	ObstacleDefaultRadius   = 1.0
	ObstacleHitFlashSeconds = 0.1
)

// Obstacle is a static, destructible blocker. It stops tanks and consumes
// projectiles; it never moves and never respawns within a match.
type Obstacle struct {
	Sphere

	Health   float64
	HitTimer float64 // Hit-flash countdown in seconds
}

// NewObstacle creates a full-health obstacle.
func NewObstacle(x, y, z, r float64) Obstacle {
	return Obstacle{
		Sphere: Sphere{X: x, Y: y, Z: z, R: r},
		Health: ObstacleDefaultHealth,
	}
}

// Active reports whether the obstacle still blocks anything.
func (o *Obstacle) Active() bool {
	return o.Health > 0
}

// SetActive restores default health or knocks it to zero.
func (o *Obstacle) SetActive(active bool) {
	if active {
		o.Health = ObstacleDefaultHealth
	} else {
		o.Health = 0
	}
}

// IsHit reports whether the hit flash is showing.
func (o *Obstacle) IsHit() bool {
	return o.HitTimer > 0
}

// SetHit starts the hit flash and costs exactly one health point.
// Health is not clamped; only its sign matters.
func (o *Obstacle) SetHit(hit bool) {
	if hit {
		o.HitTimer = ObstacleHitFlashSeconds
		o.Health--
		return
	}
	o.HitTimer = 0
}

// Refresh decays the hit flash. Destroyed obstacles keep their last value.
func (o *Obstacle) Refresh(dt float64) {
	if !o.Active() {
		return
	}
	if o.HitTimer > 0 {
		o.HitTimer -= dt
	}
}

// ObstacleSnapshot is an immutable copy of obstacle state for rendering
type ObstacleSnapshot struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
	R      float64 `json:"r"`
	Active bool    `json:"active"`
	IsHit  bool    `json:"isHit"`
}

// ToSnapshot creates an immutable snapshot for rendering
func (o *Obstacle) ToSnapshot() ObstacleSnapshot {
	return ObstacleSnapshot{
		X:      o.X,
		Y:      o.Y,
		Z:      o.Z,
		R:      o.R,
		Active: o.Active(),
		IsHit:  o.IsHit(),
	}
}
