package spatial

import (
	"math"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type disc struct{ x, y, r float64 }

func overlaps(a, b disc) bool {
	return math.Hypot(a.x-b.x, a.y-b.y) < a.r+b.r
}

// TestSpatialGridMatchesBruteForce verifies no overlapping entity is missed
func TestSpatialGridMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	g := NewSpatialGrid(-20, -20, 20, 20, 4, 300)

	discs := make([]disc, 300)
	for i := range discs {
		discs[i] = disc{
			x: -20 + rng.Float64()*40,
			y: -20 + rng.Float64()*40,
			r: 0.2 + rng.Float64()*2,
		}
		g.Insert(uint32(i), discs[i].x, discs[i].y, discs[i].r)
	}

	for q := 0; q < 500; q++ {
		probe := disc{
			x: -25 + rng.Float64()*50,
			y: -25 + rng.Float64()*50,
			r: rng.Float64() * 3,
		}

		candidates := g.QueryRadius(probe.x, probe.y, probe.r)
		require.True(t, slices.IsSorted(candidates))

		for i, d := range discs {
			if overlaps(probe, d) {
				_, found := slices.BinarySearch(candidates, uint32(i))
				require.True(t, found, "probe %+v missed disc %d %+v", probe, i, d)
			}
		}
	}
}

// TestSpatialGridClamp checks positions outside the extent stay queryable
func TestSpatialGridClamp(t *testing.T) {
	g := NewSpatialGrid(0, 0, 10, 10, 2, 4)
	g.Insert(0, -50, -50, 1)
	g.Insert(1, 50, 50, 1)

	assert.Equal(t, []uint32{0}, g.QueryRadius(-50, -50, 0.5))
	assert.Equal(t, []uint32{1}, g.QueryRadius(50, 50, 0.5))
}

// TestSpatialGridClear keeps capacity but forgets entities
func TestSpatialGridClear(t *testing.T) {
	g := NewSpatialGrid(-10, -10, 10, 10, 5, 10)
	for i := 0; i < 10; i++ {
		g.Insert(uint32(i), float64(i), 0, 3)
	}
	require.Equal(t, 10, g.Stats().TotalEntities)

	g.Clear()
	assert.Empty(t, g.QueryRadius(0, 0, 100))
	assert.Equal(t, 0, g.Stats().TotalEntities)

	stats := g.Stats()
	assert.Equal(t, 4, stats.Cols)
	assert.Equal(t, 4, stats.Rows)
	assert.Equal(t, 5.0, stats.CellSize)
}

// TestSpatialGridDegenerate covers zero-size extents and cell sizes
func TestSpatialGridDegenerate(t *testing.T) {
	g := NewSpatialGrid(0, 0, 0, 0, 0, 0)
	stats := g.Stats()
	assert.Equal(t, 1, stats.Cols)
	assert.Equal(t, 1, stats.Rows)
	assert.Equal(t, 1.0, stats.CellSize)

	g.Insert(3, 5, 5, 1)
	g.Insert(1, -5, 5, 1)
	assert.Equal(t, []uint32{1, 3}, g.QueryRadius(0, 0, 0))
}

func BenchmarkSpatialGridQuery(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	g := NewSpatialGrid(-20, -20, 20, 20, 4, 200)
	for i := 0; i < 200; i++ {
		g.Insert(uint32(i), -20+rng.Float64()*40, -20+rng.Float64()*40, 1)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.QueryRadius(float64(i%40)-20, 0, 0.5)
	}
}
