package game

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingObserver collects hit notifications
type recordingObserver struct {
	obstacles []int
	tanks     []int
	causes    []HitCause
}

func (r *recordingObserver) ObstacleHit(index int, o *Obstacle, cause HitCause) {
	r.obstacles = append(r.obstacles, index)
	r.causes = append(r.causes, cause)
}

func (r *recordingObserver) TankHit(slot int, t *Tank, cause HitCause) {
	r.tanks = append(r.tanks, slot)
	r.causes = append(r.causes, cause)
}

// newTestEnvironment builds a world with exactly the given tanks and
// obstacles and no randomness.
func newTestEnvironment(t *testing.T, bounds Bounds, tanks, obstacles []SphereSpec) *Environment {
	t.Helper()
	layout := DefaultLayout()
	layout.Bounds = bounds
	layout.ObstacleCount = 0
	layout.Obstacles = obstacles
	layout.Tanks = tanks
	require.NoError(t, layout.Validate())
	return NewEnvironment(layout, 0)
}

func tankPositions(env *Environment) []Sphere {
	out := make([]Sphere, len(env.Tanks))
	for i := range env.Tanks {
		out[i] = env.Tanks[i].Sphere
	}
	return out
}

// TestResolveTankMoveOutOfBounds verifies the revert is exact
func TestResolveTankMoveOutOfBounds(t *testing.T) {
	env := newTestEnvironment(t, DefaultBounds, []SphereSpec{{X: -5, Y: -5, Z: 0, R: 2}}, nil)

	ok := env.ResolveTankMove(0, 0, 0, 100, 0)

	assert.False(t, ok)
	assert.Equal(t, Sphere{X: -5, Y: -5, Z: 0, R: 2}, env.Tanks[0].Sphere)
}

// TestResolveTankMoveFree verifies an unobstructed move sticks
func TestResolveTankMoveFree(t *testing.T) {
	env := newTestEnvironment(t, DefaultBounds, []SphereSpec{{R: 1}}, nil)

	require.True(t, env.ResolveTankMove(0, 0, 0, 1.5, 0))
	assert.Equal(t, 1.5, env.Tanks[0].X)

	require.True(t, env.ResolveTankMove(0, math.Pi, 0, 1.5, 0))
	assert.InDelta(t, 0, env.Tanks[0].X, 1e-12)
}

// TestResolveTankMoveObstacle verifies obstacles block and are never pushed
func TestResolveTankMoveObstacle(t *testing.T) {
	env := newTestEnvironment(t, DefaultBounds,
		[]SphereSpec{{R: 1}},
		[]SphereSpec{{X: 2.5, R: 1}})

	assert.False(t, env.ResolveTankMove(0, 0, 0, 1, 0))
	assert.Equal(t, Sphere{R: 1}, env.Tanks[0].Sphere)
	assert.Equal(t, 2.5, env.Obstacles[0].X)

	// A destroyed obstacle no longer blocks
	env.Obstacles[0].SetActive(false)
	assert.True(t, env.ResolveTankMove(0, 0, 0, 1, 0))
	assert.Equal(t, 1.0, env.Tanks[0].X)
}

// TestResolveTankMovePush covers a push with room and a pinned push
func TestResolveTankMovePush(t *testing.T) {
	tanks := []SphereSpec{{X: 0, R: 1}, {X: 2, R: 1}}

	t.Run("victim has room", func(t *testing.T) {
		env := newTestEnvironment(t, DefaultBounds, tanks, nil)

		require.True(t, env.ResolveTankMove(0, 0, 0, 0.5, 0))
		assert.Equal(t, 0.5, env.Tanks[0].X)
		assert.Equal(t, 2.5, env.Tanks[1].X, "pushed by the 0.5 overlap")
		assert.Equal(t, 0.0, env.Tanks[1].Y)
		assert.Equal(t, 0.0, env.Tanks[1].Z)
	})

	t.Run("victim pinned by obstacle", func(t *testing.T) {
		env := newTestEnvironment(t, DefaultBounds, tanks, []SphereSpec{{X: 4, R: 1}})
		before := tankPositions(env)

		assert.False(t, env.ResolveTankMove(0, 0, 0, 0.5, 0))
		assert.Equal(t, before, tankPositions(env))
		assert.True(t, env.Obstacles[0].Active())
	})

	t.Run("victim pinned by wall", func(t *testing.T) {
		bounds := DefaultBounds
		bounds.XMax = 2.2
		env := newTestEnvironment(t, bounds, tanks, nil)
		before := tankPositions(env)

		assert.False(t, env.ResolveTankMove(0, 0, 0, 0.5, 0))
		assert.Equal(t, before, tankPositions(env))
	})

	t.Run("dead tanks are passed through", func(t *testing.T) {
		env := newTestEnvironment(t, DefaultBounds, tanks, nil)
		env.Tanks[1].SetAlive(false)

		require.True(t, env.ResolveTankMove(0, 0, 0, 0.5, 0))
		assert.Equal(t, 2.0, env.Tanks[1].X)
	})
}

// chainOf lines up n unit tanks along x, each exactly touching the next.
func chainOf(n int) []SphereSpec {
	specs := make([]SphereSpec, n)
	for i := range specs {
		specs[i] = SphereSpec{X: float64(2 * i), R: 1}
	}
	return specs
}

// TestResolveTankMoveChain verifies the depth cap on push chains
func TestResolveTankMoveChain(t *testing.T) {
	bounds := Bounds{XMin: -5, XMax: 100, YMin: -5, YMax: 5, ZMin: -2, ZMax: 20}

	t.Run("short chain shifts every tank", func(t *testing.T) {
		env := newTestEnvironment(t, bounds, chainOf(5), nil)

		require.True(t, env.ResolveTankMove(0, 0, 0, 0.5, 0))
		for i := range env.Tanks {
			assert.Equal(t, float64(2*i)+0.5, env.Tanks[i].X, "tank %d", i)
		}
	})

	t.Run("deepest allowed chain", func(t *testing.T) {
		// The last tank is pushed at depth MaxPushDepth
		env := newTestEnvironment(t, bounds, chainOf(MaxPushDepth+1), nil)
		assert.True(t, env.ResolveTankMove(0, 0, 0, 0.5, 0))
	})

	t.Run("chain past the cap fails and rolls back", func(t *testing.T) {
		for _, n := range []int{MaxPushDepth + 2, 13, 30} {
			env := newTestEnvironment(t, bounds, chainOf(n), nil)
			before := tankPositions(env)

			assert.False(t, env.ResolveTankMove(0, 0, 0, 0.5, 0), "n=%d", n)
			assert.Equal(t, before, tankPositions(env), "n=%d", n)
		}
	})
}

// TestResolveTankMoveGuards covers bad slots, dead tanks and depth
func TestResolveTankMoveGuards(t *testing.T) {
	env := newTestEnvironment(t, DefaultBounds, []SphereSpec{{R: 1}}, nil)

	assert.False(t, env.ResolveTankMove(-1, 0, 0, 1, 0))
	assert.False(t, env.ResolveTankMove(1, 0, 0, 1, 0))
	assert.False(t, env.ResolveTankMove(0, 0, 0, 1, MaxPushDepth+1))
	assert.True(t, env.ResolveTankMove(0, 0, 0, 1, MaxPushDepth))

	env.Tanks[0].SetAlive(false)
	x := env.Tanks[0].X
	assert.False(t, env.ResolveTankMove(0, 0, 0, 1, 0))
	assert.Equal(t, x, env.Tanks[0].X)
}

// TestResolveProjectileMoveObstacle strikes an obstacle at the origin
func TestResolveProjectileMoveObstacle(t *testing.T) {
	env := newTestEnvironment(t, DefaultBounds,
		[]SphereSpec{{X: 10, Y: 10, R: 1}},
		[]SphereSpec{{R: 1}})
	obs := &recordingObserver{}
	env.SetObserver(obs)

	p := NewLiveProjectile(-3, 0, 0, 0.5, 0, 0, 10)

	require.True(t, env.ResolveProjectileMove(&p, 0, 0, 1))
	assert.Equal(t, -2.0, p.X)
	assert.Equal(t, ObstacleDefaultHealth, env.Obstacles[0].Health)

	assert.False(t, env.ResolveProjectileMove(&p, 0, 0, 1))
	assert.False(t, p.Fired)
	assert.Equal(t, 9.0, env.Obstacles[0].Health)
	assert.True(t, env.Obstacles[0].IsHit())
	assert.Equal(t, []int{0}, obs.obstacles)
	assert.Equal(t, []HitCause{CauseProjectile}, obs.causes)
}

// TestResolveProjectileMoveTank verifies a struck tank is flagged and shoved
func TestResolveProjectileMoveTank(t *testing.T) {
	env := newTestEnvironment(t, DefaultBounds, []SphereSpec{{R: 1}}, nil)
	obs := &recordingObserver{}
	env.SetObserver(obs)

	p := NewLiveProjectile(-2, 0, 0, 0.5, 0, 0, 10)

	assert.False(t, env.ResolveProjectileMove(&p, 0, 0, 0.75))
	assert.False(t, p.Fired)

	tank := &env.Tanks[0]
	assert.Equal(t, TankDefaultHealth-1, tank.Health)
	assert.True(t, tank.IsHit())
	assert.Equal(t, 0.5, tank.X, "shoved by the round's radius")
	assert.Equal(t, []int{0}, obs.tanks)
}

// TestResolveProjectileMoveShoveMayFail checks a blocked shove still counts
// as a hit
func TestResolveProjectileMoveShoveMayFail(t *testing.T) {
	bounds := DefaultBounds
	bounds.XMax = 0.2
	env := newTestEnvironment(t, bounds, []SphereSpec{{R: 1}}, nil)

	p := NewLiveProjectile(-2, 0, 0, 0.5, 0, 0, 10)
	assert.False(t, env.ResolveProjectileMove(&p, 0, 0, 0.75))
	assert.False(t, p.Fired)
	assert.Equal(t, 0.0, env.Tanks[0].X)
	assert.Equal(t, TankDefaultHealth-1, env.Tanks[0].Health)
}

// TestResolveProjectileMoveObstacleFirst verifies obstacles win over tanks
func TestResolveProjectileMoveObstacleFirst(t *testing.T) {
	env := newTestEnvironment(t, DefaultBounds,
		[]SphereSpec{{X: 1, R: 1}},
		[]SphereSpec{{X: -1, R: 1}, {X: 0, Y: 0.5, R: 1}})

	p := NewLiveProjectile(0, 0, 5, 0.5, 0, -math.Pi/2, 10)
	assert.False(t, env.ResolveProjectileMove(&p, p.Azimuth, p.Elevation, 5))

	assert.Equal(t, 9.0, env.Obstacles[0].Health, "first obstacle in arena order")
	assert.Equal(t, ObstacleDefaultHealth, env.Obstacles[1].Health)
	assert.Equal(t, TankDefaultHealth, env.Tanks[0].Health)
}

// TestResolveProjectileMoveEdges covers inert rounds and leaving the world
func TestResolveProjectileMoveEdges(t *testing.T) {
	env := newTestEnvironment(t, DefaultBounds, []SphereSpec{{X: 10, R: 1}}, nil)

	inert := NewInertProjectile()
	assert.False(t, env.ResolveProjectileMove(&inert, 0, 0, 5))
	assert.Equal(t, Sphere{}, inert.Sphere)

	p := NewLiveProjectile(-19, 0, 0, 0.5, math.Pi, 0, 10)
	assert.False(t, env.ResolveProjectileMove(&p, math.Pi, 0, 2))
	assert.False(t, p.Fired)

	// Destroyed obstacles let rounds through
	env2 := newTestEnvironment(t, DefaultBounds, []SphereSpec{{X: 10, R: 1}}, []SphereSpec{{R: 1}})
	env2.Obstacles[0].SetActive(false)
	q := NewLiveProjectile(-1, 0, 0, 0.5, 0, 0, 10)
	assert.True(t, env2.ResolveProjectileMove(&q, 0, 0, 1))
	assert.True(t, q.Fired)
}

// TestAdvanceRainDrop covers rain hits, which flag but never push
func TestAdvanceRainDrop(t *testing.T) {
	t.Run("flags every overlapping obstacle", func(t *testing.T) {
		env := newTestEnvironment(t, DefaultBounds,
			[]SphereSpec{{R: 1}},
			[]SphereSpec{{R: 1}, {X: 0.5, R: 1}, {X: 10, R: 1}})
		obs := &recordingObserver{}
		env.SetObserver(obs)

		drop := NewLiveProjectile(0, 0, 1.2, 0.5, 0, RainElevation, 1)
		env.advanceRainDrop(&drop, 0.5)

		assert.False(t, drop.Fired)
		assert.Equal(t, 9.0, env.Obstacles[0].Health)
		assert.Equal(t, 9.0, env.Obstacles[1].Health)
		assert.Equal(t, ObstacleDefaultHealth, env.Obstacles[2].Health)
		assert.Equal(t, TankDefaultHealth, env.Tanks[0].Health, "tanks are skipped once the drop is spent")
		assert.Equal(t, []int{0, 1}, obs.obstacles)
		assert.Equal(t, []HitCause{CauseRain, CauseRain}, obs.causes)
	})

	t.Run("flags tanks without pushing", func(t *testing.T) {
		env := newTestEnvironment(t, DefaultBounds,
			[]SphereSpec{{R: 1}, {X: 0.5, R: 1}}, nil)
		before := tankPositions(env)

		drop := NewLiveProjectile(0.25, 0, 1.2, 0.5, 0, RainElevation, 1)
		env.advanceRainDrop(&drop, 0.5)

		assert.False(t, drop.Fired)
		assert.Equal(t, TankDefaultHealth-1, env.Tanks[0].Health)
		assert.Equal(t, TankDefaultHealth-1, env.Tanks[1].Health)
		assert.Equal(t, before, tankPositions(env))
	})

	t.Run("leaves through the floor", func(t *testing.T) {
		env := newTestEnvironment(t, DefaultBounds, []SphereSpec{{X: 10, R: 1}}, nil)

		drop := NewLiveProjectile(0, 0, -1.9, 0.5, 0, RainElevation, 1)
		env.advanceRainDrop(&drop, 0.5)
		assert.False(t, drop.Fired)
	})

	t.Run("inert units stay put", func(t *testing.T) {
		env := newTestEnvironment(t, DefaultBounds, []SphereSpec{{X: 10, R: 1}}, nil)

		drop := NewInertProjectile()
		env.advanceRainDrop(&drop, 1)
		assert.Equal(t, NewInertProjectile(), drop)
	})
}

// TestObstacleCandidatesMatchBruteForce checks the broad-phase never hides
// an overlapping obstacle
func TestObstacleCandidatesMatchBruteForce(t *testing.T) {
	layout := DefaultLayout()
	layout.Seed = 7
	layout.ObstacleCount = 200
	layout.ObstacleRadius = 1.5
	env := NewEnvironment(layout, 3)

	probe := Sphere{R: 0.75}
	for x := -20.0; x <= 20; x += 1.25 {
		for y := -20.0; y <= 20; y += 1.25 {
			probe.X, probe.Y = x, y

			var want []uint32
			for i := range env.Obstacles {
				if Collided(&probe, &env.Obstacles[i].Sphere) {
					want = append(want, uint32(i))
				}
			}

			var got []uint32
			for _, idx := range env.obstacleCandidates(&probe) {
				if Collided(&probe, &env.Obstacles[idx].Sphere) {
					got = append(got, idx)
				}
			}
			require.Equal(t, want, got, "probe at (%v, %v)", x, y)
		}
	}
}
