package game

import (
	"math"
	"testing"
)

// =============================================================================
// BENCHMARK SUITE: TICK PATH
// Run with: go test -bench=. -benchmem ./internal/game/...
// =============================================================================

// benchLayout lines tanks up along the x axis inside a wide arena.
func benchLayout(tanks, obstacles, rain int) Layout {
	layout := DefaultLayout()
	layout.Bounds = Bounds{XMin: -200, XMax: 200, YMin: -200, YMax: 200, ZMin: 0, ZMax: 50}
	layout.Seed = 1
	layout.ObstacleCount = obstacles
	layout.RainCount = rain
	layout.Tanks = make([]SphereSpec, tanks)
	for i := range layout.Tanks {
		layout.Tanks[i] = SphereSpec{X: float64(i*6) - 150, Y: -150, R: 2}
	}
	return layout
}

// -----------------------------------------------------------------------------
// ENGINE STEP BENCHMARKS
// -----------------------------------------------------------------------------

func BenchmarkEngineStep_2Tanks(b *testing.B)   { benchmarkEngineStep(b, 2, 20, 0) }
func BenchmarkEngineStep_10Tanks(b *testing.B)  { benchmarkEngineStep(b, 10, 100, 0) }
func BenchmarkEngineStep_50Tanks(b *testing.B)  { benchmarkEngineStep(b, 50, 500, 0) }
func BenchmarkEngineStep_WithRain(b *testing.B) { benchmarkEngineStep(b, 10, 100, 200) }

func benchmarkEngineStep(b *testing.B, tanks, obstacles, rain int) {
	input := make(scriptedInput, tanks)
	for slot := 0; slot < tanks; slot++ {
		input[slot] = Intent{Turn: 1, Advance: 1, Fire: true}
	}
	engine := NewEngine(EngineConfig{
		TickRate: 60,
		Layout:   benchLayout(tanks, obstacles, rain),
		Input:    input,
	})
	dt := 1.0 / 60

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		engine.Step(dt)
	}
}

// -----------------------------------------------------------------------------
// SNAPSHOT BENCHMARKS
// -----------------------------------------------------------------------------

func BenchmarkBuildSnapshot_500Obstacles(b *testing.B) {
	env := NewEnvironment(benchLayout(50, 500, 200), 0)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		buildSnapshot(env, uint64(i), "bench")
	}
}

// -----------------------------------------------------------------------------
// COLLISION RESOLUTION BENCHMARKS
// -----------------------------------------------------------------------------

func BenchmarkResolveTankMove_Free(b *testing.B) {
	env := NewEnvironment(benchLayout(1, 500, 0), 0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		// Alternate direction so the tank stays in place on average
		az := 0.0
		if i%2 == 1 {
			az = math.Pi
		}
		env.ResolveTankMove(0, az, 0, 0.1, 0)
	}
}

func BenchmarkResolveTankMove_PushChain(b *testing.B) {
	layout := benchLayout(MaxPushDepth, 0, 0)
	for i := range layout.Tanks {
		layout.Tanks[i] = SphereSpec{X: float64(i * 4), Y: 0, R: 2}
	}
	env := NewEnvironment(layout, 0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		az := 0.0
		if i%2 == 1 {
			az = math.Pi
		}
		env.ResolveTankMove(0, az, 0, 0.01, 0)
	}
}
