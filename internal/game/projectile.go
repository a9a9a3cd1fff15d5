package game

// NoOwner marks projectiles nobody fired (rain drops, inert placeholders).
const NoOwner = -1

// Projectile is a moving sphere used both for tank rounds and rain drops.
// It has no timers of its own: every tick it is driven by the resolver.
type Projectile struct {
	Sphere

	Fired     bool
	Azimuth   float64
	Elevation float64
	Speed     float64 // World units per second

	OwnerSlot int // Firing tank slot, NoOwner for rain
}

// NewInertProjectile returns the placeholder a failed Fire produces.
// Inert projectiles never move, collide, or leave bounds.
func NewInertProjectile() Projectile {
	return Projectile{OwnerSlot: NoOwner}
}

// NewLiveProjectile creates a fired projectile.
func NewLiveProjectile(x, y, z, r, azimuth, elevation, speed float64) Projectile {
	return Projectile{
		Sphere:    Sphere{X: x, Y: y, Z: z, R: r},
		Fired:     true,
		Azimuth:   azimuth,
		Elevation: elevation,
		Speed:     speed,
		OwnerSlot: NoOwner,
	}
}

// Refresh is a no-op; projectiles are advanced by the resolver.
func (p *Projectile) Refresh(dt float64) {}

// ProjectileSnapshot is an immutable copy of projectile state for rendering
type ProjectileSnapshot struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	R         float64 `json:"r"`
	Fired     bool    `json:"fired"`
	OwnerSlot int     `json:"ownerSlot"`
}

// ToSnapshot creates an immutable snapshot for rendering
func (p *Projectile) ToSnapshot() ProjectileSnapshot {
	return ProjectileSnapshot{
		X:         p.X,
		Y:         p.Y,
		Z:         p.Z,
		R:         p.R,
		Fired:     p.Fired,
		OwnerSlot: p.OwnerSlot,
	}
}
