package game

import "math"

// Bounds is an axis-aligned world box. Points on a face are inside.
type Bounds struct {
	XMin float64 `json:"xMin" yaml:"xMin"`
	XMax float64 `json:"xMax" yaml:"xMax"`
	YMin float64 `json:"yMin" yaml:"yMin"`
	YMax float64 `json:"yMax" yaml:"yMax"`
	ZMin float64 `json:"zMin" yaml:"zMin"`
	ZMax float64 `json:"zMax" yaml:"zMax"`
}

// DefaultBounds is the arena every match uses unless a layout overrides it.
var DefaultBounds = Bounds{
	XMin: -20, XMax: 20,
	YMin: -20, YMax: 20,
	ZMin: -2, ZMax: 20,
}

// Empty reports whether the box has no volume on some axis.
func (b Bounds) Empty() bool {
	return b.XMin >= b.XMax || b.YMin >= b.YMax || b.ZMin > b.ZMax
}

// Contains reports whether the point lies inside the box.
func (b Bounds) Contains(x, y, z float64) bool {
	return x >= b.XMin && x <= b.XMax &&
		y >= b.YMin && y <= b.YMax &&
		z >= b.ZMin && z <= b.ZMax
}

// Sphere is the position + radius primitive behind every entity.
// Two spheres with identical coordinates are still distinct entities:
// identity is the pointer, never the value.
type Sphere struct {
	X, Y, Z float64
	R       float64
}

// Relation describes where b sits as seen from a.
type Relation struct {
	Azimuth   float64 // atan2(dy, dx)
	Elevation float64 // atan2(dz², dx²+dy²), never negative
	Distance  float64
}

// RelationBetween returns the heading and distance from a to b.
// ok is false when a and b are the same entity.
//
// Elevation uses squared displacements, so it lies in [0, π/2] regardless of
// the sign of dz. A push derived from it can only move a body level or up.
func RelationBetween(a, b *Sphere) (rel Relation, ok bool) {
	dx := b.X - a.X
	dy := b.Y - a.Y
	dz := b.Z - a.Z

	xySq := dx*dx + dy*dy
	zSq := dz * dz

	rel = Relation{
		Azimuth:   math.Atan2(dy, dx),
		Elevation: math.Atan2(zSq, xySq),
		Distance:  math.Sqrt(xySq + zSq),
	}
	if a == b {
		return rel, false
	}
	return rel, true
}

// Collided reports strict overlap of two distinct spheres.
// Spheres that exactly touch do not collide.
func Collided(a, b *Sphere) bool {
	if a == b {
		return false
	}
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	rSum := a.R + b.R
	return dx*dx+dy*dy+dz*dz < rSum*rSum
}

// OutOfBounds reports whether the center lies outside box.
func (s *Sphere) OutOfBounds(box Bounds) bool {
	return !box.Contains(s.X, s.Y, s.Z)
}

// Move displaces the center by dist along (azimuth, elevation).
func (s *Sphere) Move(azimuth, elevation, dist float64) {
	cosEl := math.Cos(elevation)
	s.X += dist * cosEl * math.Cos(azimuth)
	s.Y += dist * cosEl * math.Sin(azimuth)
	s.Z += dist * math.Sin(elevation)
}
