package game

// MaxPushDepth bounds chained tank pushes. A push at depth > MaxPushDepth
// fails, which rolls back every move in the chain.
const MaxPushDepth = 10

// ResolveTankMove tries to move the tank in slot by dist along
// (azimuth, elevation) and reports whether the move stuck.
//
// The move is undone when the tank leaves the world or lands on an active
// obstacle. A live tank it lands on is shoved out of the way by the overlap,
// recursively; if that shove fails the initiating move is undone too. Undo
// restores the saved center, so a failed call leaves the tank bit-for-bit
// where it started.
func (e *Environment) ResolveTankMove(slot int, azimuth, elevation, dist float64, depth int) bool {
	if depth > MaxPushDepth {
		return false
	}
	tank := e.Tank(slot)
	if tank == nil || !tank.Alive() {
		return false
	}

	saved := tank.Sphere
	tank.Move(azimuth, elevation, dist)

	if e.OutOfBounds(&tank.Sphere) {
		tank.Sphere = saved
		return false
	}

	// Obstacles are never pushed.
	for _, idx := range e.obstacleCandidates(&tank.Sphere) {
		o := &e.Obstacles[idx]
		if o.Active() && Collided(&tank.Sphere, &o.Sphere) {
			tank.Sphere = saved
			return false
		}
	}

	for other := range e.Tanks {
		if other == slot {
			continue
		}
		victim := &e.Tanks[other]
		if !victim.Alive() || !Collided(&tank.Sphere, &victim.Sphere) {
			continue
		}

		rel, _ := RelationBetween(&tank.Sphere, &victim.Sphere)
		overlap := tank.R + victim.R - rel.Distance
		if e.ResolveTankMove(other, rel.Azimuth, rel.Elevation, overlap, depth+1) {
			break
		}
		tank.Sphere = saved
		return false
	}

	return true
}

// ResolveProjectileMove advances a live projectile and applies the first
// thing it hits. It reports true only if the projectile is still live, in
// bounds and untouched afterwards; inert projectiles are a no-op failure.
//
// Obstacles are checked before tanks and each in arena order; the first hit
// consumes the projectile. A struck tank is flagged hit and shoved by the
// projectile's radius through ResolveTankMove. Whether that shove succeeds
// does not matter.
func (e *Environment) ResolveProjectileMove(p *Projectile, azimuth, elevation, dist float64) bool {
	if !p.Fired {
		return false
	}

	p.Move(azimuth, elevation, dist)
	if e.OutOfBounds(&p.Sphere) {
		p.Fired = false
		return false
	}

	for _, idx := range e.obstacleCandidates(&p.Sphere) {
		o := &e.Obstacles[idx]
		if o.Active() && Collided(&p.Sphere, &o.Sphere) {
			o.SetHit(true)
			e.notifyObstacleHit(int(idx), CauseProjectile)
			p.Fired = false
			return false
		}
	}

	for slot := range e.Tanks {
		t := &e.Tanks[slot]
		if !t.Alive() || !Collided(&p.Sphere, &t.Sphere) {
			continue
		}
		rel, _ := RelationBetween(&p.Sphere, &t.Sphere)
		t.SetHit(true)
		e.notifyTankHit(slot, CauseProjectile)
		e.ResolveTankMove(slot, rel.Azimuth, rel.Elevation, p.R, 0)
		p.Fired = false
		return false
	}

	return true
}

// advanceRainDrop moves one pool unit and applies its hits directly.
// Rain never pushes: every active obstacle it overlaps is flagged hit, then,
// if the drop survived, every live tank it overlaps. Inert units are left for
// the caller to recycle.
func (e *Environment) advanceRainDrop(r *Projectile, dt float64) {
	if !r.Fired {
		return
	}

	r.Move(r.Azimuth, r.Elevation, r.Speed*dt)
	if e.OutOfBounds(&r.Sphere) {
		r.Fired = false
		return
	}

	for _, idx := range e.obstacleCandidates(&r.Sphere) {
		o := &e.Obstacles[idx]
		if o.Active() && Collided(&r.Sphere, &o.Sphere) {
			o.SetHit(true)
			e.notifyObstacleHit(int(idx), CauseRain)
			r.Fired = false
		}
	}
	if !r.Fired {
		return
	}

	for slot := range e.Tanks {
		t := &e.Tanks[slot]
		if t.Alive() && Collided(&r.Sphere, &t.Sphere) {
			t.SetHit(true)
			e.notifyTankHit(slot, CauseRain)
			r.Fired = false
		}
	}
}
