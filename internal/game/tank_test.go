package game

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewTank verifies defaults
func TestNewTank(t *testing.T) {
	tank := NewTank(-5, -5, 0, 2)

	assert.Equal(t, TankDefaultHealth, tank.Health)
	assert.Equal(t, TankDefaultMaxAmmo, tank.Ammo, "magazine starts full")
	assert.Equal(t, TankDefaultMaxAmmo, tank.MaxAmmo)
	assert.InDelta(t, math.Pi/6, tank.TurnSpeed, 1e-12)
	assert.Equal(t, 4.5, tank.MoveSpeed)
	assert.True(t, tank.Alive())
	assert.False(t, tank.IsHit())
	assert.True(t, tank.CanFire())
}

// TestTankSetHitAlwaysCostsOne checks health drops by exactly one per hit
// no matter what the flash timer holds
func TestTankSetHitAlwaysCostsOne(t *testing.T) {
	tank := NewTank(0, 0, 0, 1)

	for i := 1; i <= 12; i++ {
		tank.SetHit(true)
		assert.Equal(t, TankDefaultHealth-float64(i), tank.Health)
		assert.True(t, tank.IsHit())
	}
	assert.False(t, tank.Alive())
	assert.Equal(t, -2.0, tank.Health, "health is not clamped")

	tank.SetHit(false)
	assert.False(t, tank.IsHit())
	assert.Equal(t, -2.0, tank.Health)

	tank.Revive()
	assert.True(t, tank.Alive())
	assert.Equal(t, TankDefaultHealth, tank.Health)

	tank.SetAlive(false)
	assert.False(t, tank.Alive())
}

// TestTankTurn verifies turning is scaled by turn speed and never wraps
func TestTankTurn(t *testing.T) {
	tank := NewTank(0, 0, 0, 1)
	tank.Turn(1)
	assert.InDelta(t, math.Pi/6, tank.Azimuth, 1e-12)

	tank.Turn(-2)
	assert.InDelta(t, -math.Pi/6, tank.Azimuth, 1e-12)

	for i := 0; i < 24; i++ {
		tank.Turn(1)
	}
	assert.Greater(t, tank.Azimuth, 2*math.Pi)
}

// TestTankFire covers a live round and every refusal
func TestTankFire(t *testing.T) {
	tank := NewTank(0, 0, 0, 2)

	p := tank.Fire()
	require.True(t, p.Fired)
	assert.Equal(t, 0.5, p.R)
	assert.Equal(t, 22.5, p.Speed)
	assert.Equal(t, 2.5, p.X, "spawned at hull surface plus own radius")
	assert.Equal(t, 0.0, p.Y)
	assert.Equal(t, TankDefaultMaxAmmo-1, tank.Ammo)
	assert.Equal(t, TankFireCooldownSeconds, tank.CooldownTmr)

	t.Run("cooling down", func(t *testing.T) {
		q := tank.Fire()
		assert.False(t, q.Fired)
		assert.Equal(t, TankDefaultMaxAmmo-1, tank.Ammo)
	})

	t.Run("empty", func(t *testing.T) {
		empty := NewTank(0, 0, 0, 1)
		empty.Ammo = 0
		assert.False(t, empty.Fire().Fired)
		assert.Equal(t, 0, empty.Ammo)
	})

	t.Run("dead", func(t *testing.T) {
		dead := NewTank(0, 0, 0, 1)
		dead.SetAlive(false)
		assert.False(t, dead.Fire().Fired)
		assert.Equal(t, TankDefaultMaxAmmo, dead.Ammo)
	})
}

// TestTankFireFollowsHeading checks the round leaves along the azimuth
func TestTankFireFollowsHeading(t *testing.T) {
	tank := NewTank(1, 1, 0, 2)
	tank.Azimuth = math.Pi / 2

	p := tank.Fire()
	require.True(t, p.Fired)
	assert.InDelta(t, 1, p.X, 1e-12)
	assert.InDelta(t, 3.5, p.Y, 1e-12)
	assert.Equal(t, math.Pi/2, p.Azimuth)
}

// TestTankRefreshReload walks the reload timer through one full cycle
func TestTankRefreshReload(t *testing.T) {
	tank := NewTank(0, 0, 0, 1)
	tank.Ammo = 10

	require.True(t, tank.Refresh(0.1))
	assert.Equal(t, 11, tank.Ammo, "expired timer reloads immediately")
	assert.Equal(t, TankAmmoReloadSeconds, tank.ReloadTmr)

	tank.Refresh(0.5)
	tank.Refresh(0.5)
	assert.Equal(t, 11, tank.Ammo, "no reload while the timer runs")

	tank.Refresh(0.5)
	assert.Equal(t, 12, tank.Ammo)

	tank.Refresh(1)
	tank.Refresh(1)
	assert.Equal(t, 12, tank.Ammo, "never above max")
}

// TestTankRefreshTimers checks hit and cooldown decay
func TestTankRefreshTimers(t *testing.T) {
	tank := NewTank(0, 0, 0, 1)
	tank.Fire()
	tank.SetHit(true)
	require.False(t, tank.CanFire())

	tank.Refresh(0.05)
	assert.True(t, tank.IsHit())
	assert.False(t, tank.CanFire())

	tank.Refresh(0.05)
	assert.False(t, tank.IsHit())
	assert.True(t, tank.CanFire())
}

// TestTankRefreshDead verifies knocked-out tanks are frozen
func TestTankRefreshDead(t *testing.T) {
	tank := NewTank(0, 0, 0, 1)
	tank.Ammo = 3
	tank.CooldownTmr = 0.1
	tank.SetAlive(false)

	assert.False(t, tank.Refresh(1))
	assert.Equal(t, 3, tank.Ammo)
	assert.Equal(t, 0.1, tank.CooldownTmr)
}

// TestObstacleLifecycle covers hit, flash decay and destruction
func TestObstacleLifecycle(t *testing.T) {
	o := NewObstacle(0, 0, 0, 1)
	require.True(t, o.Active())

	o.SetHit(true)
	assert.Equal(t, 9.0, o.Health)
	assert.True(t, o.IsHit())

	o.Refresh(0.25)
	assert.False(t, o.IsHit())

	o.SetHit(true)
	o.SetHit(false)
	assert.False(t, o.IsHit())
	assert.Equal(t, 8.0, o.Health)

	for o.Active() {
		o.SetHit(true)
	}
	assert.Equal(t, 0.0, o.Health)

	// Flash freezes once destroyed
	o.Refresh(1)
	assert.True(t, o.IsHit())

	o.SetActive(true)
	assert.Equal(t, ObstacleDefaultHealth, o.Health)
	o.SetActive(false)
	assert.False(t, o.Active())
}

// TestProjectileConstructors checks inert and live rounds
func TestProjectileConstructors(t *testing.T) {
	inert := NewInertProjectile()
	assert.False(t, inert.Fired)
	assert.Equal(t, NoOwner, inert.OwnerSlot)
	assert.Equal(t, Sphere{}, inert.Sphere)

	live := NewLiveProjectile(1, 2, 3, 0.5, 0.1, 0.2, 7)
	assert.True(t, live.Fired)
	assert.Equal(t, 7.0, live.Speed)

	before := live
	live.Refresh(1)
	assert.Equal(t, before, live, "refresh is a no-op")

	snap := live.ToSnapshot()
	assert.Equal(t, ProjectileSnapshot{X: 1, Y: 2, Z: 3, R: 0.5, Fired: true, OwnerSlot: NoOwner}, snap)
}
