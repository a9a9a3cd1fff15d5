package game

import "math"

// Tank system constants
const (
	TankDefaultHealth        = 10.0
	TankDefaultTurnSpeed     = math.Pi / 6 // rad/s
	TankDefaultMoveSpeed     = 4.5         // units/s
	TankDefaultMaxAmmo       = 12
	TankHitFlashSeconds      = 0.1
	TankFireCooldownSeconds  = 0.1
	TankAmmoReloadSeconds    = 0.8
	TankProjectileRadiusFrac = 0.25 // round radius relative to tank radius
	TankProjectileSpeedMult  = 5.0  // round speed relative to move speed
)

// Tank is a player-controlled sphere with health, a fire cooldown and a
// regenerating magazine. Tanks are never removed, only knocked out.
type Tank struct {
	Sphere

	Health      float64
	HitTimer    float64
	CooldownTmr float64
	ReloadTmr   float64

	MaxAmmo int
	Ammo    int

	Azimuth   float64
	Elevation float64
	TurnSpeed float64
	MoveSpeed float64
}

// NewTank creates a full-health tank with a full magazine facing +X.
func NewTank(x, y, z, r float64) Tank {
	return Tank{
		Sphere:    Sphere{X: x, Y: y, Z: z, R: r},
		Health:    TankDefaultHealth,
		MaxAmmo:   TankDefaultMaxAmmo,
		Ammo:      TankDefaultMaxAmmo,
		TurnSpeed: TankDefaultTurnSpeed,
		MoveSpeed: TankDefaultMoveSpeed,
	}
}

// Alive reports whether the tank can act.
func (t *Tank) Alive() bool {
	return t.Health > 0
}

// SetAlive restores default health or knocks the tank out.
// This is the only way back from zero health.
func (t *Tank) SetAlive(alive bool) {
	if alive {
		t.Health = TankDefaultHealth
	} else {
		t.Health = 0
	}
}

// Revive brings a knocked-out tank back at default health. Position,
// heading and ammo are left as they are.
func (t *Tank) Revive() {
	t.SetAlive(true)
}

// IsHit reports whether the hit flash is showing.
func (t *Tank) IsHit() bool {
	return t.HitTimer > 0
}

// SetHit starts the hit flash and costs exactly one health point,
// regardless of whether the flash was already running.
func (t *Tank) SetHit(hit bool) {
	if hit {
		t.HitTimer = TankHitFlashSeconds
		t.Health--
		return
	}
	t.HitTimer = 0
}

// Turn rotates the heading by delta scaled by turn speed. No wrap is applied;
// only sin/cos of the azimuth are ever used.
func (t *Tank) Turn(delta float64) {
	t.Azimuth += delta * t.TurnSpeed
}

// CanFire reports whether Fire would produce a live round.
func (t *Tank) CanFire() bool {
	return t.Alive() && t.CooldownTmr <= 0 && t.Ammo > 0
}

// Fire spends one round and returns it, already pushed out to the hull
// surface along the current heading. It returns an inert projectile when the
// tank is dead, cooling down, or empty.
func (t *Tank) Fire() Projectile {
	if !t.CanFire() {
		return NewInertProjectile()
	}

	t.CooldownTmr = TankFireCooldownSeconds
	t.Ammo--

	p := NewLiveProjectile(t.X, t.Y, t.Z, t.R*TankProjectileRadiusFrac,
		t.Azimuth, t.Elevation, t.MoveSpeed*TankProjectileSpeedMult)
	p.Move(p.Azimuth, p.Elevation, t.R+p.R)
	return p
}

// Refresh ages the tank's timers by dt. Dead tanks are frozen.
// Each tick the reload timer either decays or, once expired and below a full
// magazine, adds one round and restarts; never both.
func (t *Tank) Refresh(dt float64) bool {
	if !t.Alive() {
		return false
	}
	if t.HitTimer > 0 {
		t.HitTimer -= dt
	}
	if t.CooldownTmr > 0 {
		t.CooldownTmr -= dt
	}
	if t.ReloadTmr > 0 {
		t.ReloadTmr -= dt
	} else if t.Ammo < t.MaxAmmo {
		t.Ammo++
		t.ReloadTmr = TankAmmoReloadSeconds
	}
	return true
}

// TankSnapshot is an immutable copy of tank state for rendering
type TankSnapshot struct {
	Slot    int     `json:"slot"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Z       float64 `json:"z"`
	R       float64 `json:"r"`
	Azimuth float64 `json:"azimuth"`
	Health  float64 `json:"health"`
	Ammo    int     `json:"ammo"`
	MaxAmmo int     `json:"maxAmmo"`
	Alive   bool    `json:"alive"`
	IsHit   bool    `json:"isHit"`
}

// ToSnapshot creates an immutable snapshot for rendering
func (t *Tank) ToSnapshot(slot int) TankSnapshot {
	return TankSnapshot{
		Slot:    slot,
		X:       t.X,
		Y:       t.Y,
		Z:       t.Z,
		R:       t.R,
		Azimuth: t.Azimuth,
		Health:  t.Health,
		Ammo:    t.Ammo,
		MaxAmmo: t.MaxAmmo,
		Alive:   t.Alive(),
		IsHit:   t.IsHit(),
	}
}
