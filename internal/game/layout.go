package game

import (
	"errors"
	"fmt"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidLayout is returned when a layout cannot describe a playable arena.
var ErrInvalidLayout = errors.New("invalid layout")

// SphereSpec is a serialisable sphere placement.
type SphereSpec struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
	R float64 `json:"r" yaml:"r"`
}

// Layout describes how a world is populated at init and on reset.
// When Obstacles is empty, ObstacleCount obstacles are scattered with the
// seeded generator; an explicit list always wins.
type Layout struct {
	Bounds         Bounds       `json:"bounds" yaml:"bounds"`
	Seed           int64        `json:"seed" yaml:"seed"`
	ObstacleCount  int          `json:"obstacleCount" yaml:"obstacleCount"`
	ObstacleRadius float64      `json:"obstacleRadius" yaml:"obstacleRadius"`
	Obstacles      []SphereSpec `json:"obstacles,omitempty" yaml:"obstacles,omitempty"`
	Tanks          []SphereSpec `json:"tanks" yaml:"tanks"`
	RainCount      int          `json:"rainCount" yaml:"rainCount"`
}

// DefaultLayout returns the classic two-tank arena: 20 scattered obstacles,
// tanks at (-5,-5) and (5,5), no rain.
func DefaultLayout() Layout {
	return Layout{
		Bounds:         DefaultBounds,
		Seed:           0,
		ObstacleCount:  20,
		ObstacleRadius: ObstacleDefaultRadius,
		Tanks: []SphereSpec{
			{X: -5, Y: -5, Z: 0, R: 2},
			{X: 5, Y: 5, Z: 0, R: 2},
		},
		RainCount: 0,
	}
}

// LoadLayout reads a YAML layout. Fields missing from the file keep their
// DefaultLayout values.
func LoadLayout(path string) (Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, fmt.Errorf("read layout %s: %w", path, err)
	}
	return ParseLayout(data)
}

// ParseLayout decodes YAML over DefaultLayout and validates the result.
func ParseLayout(data []byte) (Layout, error) {
	layout := DefaultLayout()
	if err := yaml.Unmarshal(data, &layout); err != nil {
		return Layout{}, fmt.Errorf("decode layout: %w", err)
	}
	if err := layout.Validate(); err != nil {
		return Layout{}, err
	}
	return layout, nil
}

// Marshal encodes the layout as YAML.
func (l Layout) Marshal() ([]byte, error) {
	return yaml.Marshal(l)
}

// Validate rejects layouts that cannot produce a playable world.
func (l Layout) Validate() error {
	if l.Bounds.Empty() {
		return fmt.Errorf("%w: empty bounds %+v", ErrInvalidLayout, l.Bounds)
	}
	if len(l.Tanks) == 0 {
		return fmt.Errorf("%w: at least one tank is required", ErrInvalidLayout)
	}
	if l.ObstacleCount < 0 || l.RainCount < 0 {
		return fmt.Errorf("%w: negative counts (obstacles=%d rain=%d)",
			ErrInvalidLayout, l.ObstacleCount, l.RainCount)
	}
	if l.ObstacleRadius < 0 {
		return fmt.Errorf("%w: negative obstacle radius %v", ErrInvalidLayout, l.ObstacleRadius)
	}
	for i, s := range l.Obstacles {
		if s.R < 0 {
			return fmt.Errorf("%w: obstacle %d has negative radius", ErrInvalidLayout, i)
		}
	}
	for i, s := range l.Tanks {
		if s.R < 0 {
			return fmt.Errorf("%w: tank %d has negative radius", ErrInvalidLayout, i)
		}
	}
	return nil
}

// placeObstacles returns the obstacles this layout produces with rng.
// Scattered obstacles are re-drawn off tank spawns; explicit lists are used
// as given.
func (l Layout) placeObstacles(rng *rand.Rand) []Obstacle {
	if len(l.Obstacles) > 0 {
		out := make([]Obstacle, 0, len(l.Obstacles))
		for _, s := range l.Obstacles {
			out = append(out, NewObstacle(s.X, s.Y, s.Z, s.R))
		}
		return out
	}

	spawns := make([]Sphere, len(l.Tanks))
	for i, t := range l.Tanks {
		spawns[i] = Sphere{X: t.X, Y: t.Y, Z: t.Z, R: t.R}
	}

	out := make([]Obstacle, 0, l.ObstacleCount)
	for i := 0; i < l.ObstacleCount; i++ {
		o := l.scatterObstacle(rng)
		// Keep the last draw if the arena is too crowded to clear every spawn
		for attempt := 1; attempt < maxPlacementAttempts && blocksSpawn(&o.Sphere, spawns); attempt++ {
			o = l.scatterObstacle(rng)
		}
		out = append(out, o)
	}
	return out
}

// maxPlacementAttempts bounds re-draws of an obstacle that lands on a spawn.
const maxPlacementAttempts = 64

func (l Layout) scatterObstacle(rng *rand.Rand) Obstacle {
	x := uniform(rng, l.Bounds.XMin, l.Bounds.XMax)
	y := uniform(rng, l.Bounds.YMin, l.Bounds.YMax)
	return NewObstacle(x, y, 0, l.ObstacleRadius)
}

func blocksSpawn(s *Sphere, spawns []Sphere) bool {
	for i := range spawns {
		if Collided(s, &spawns[i]) {
			return true
		}
	}
	return false
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
