package ipc

import (
	"time"

	"tank-arena/internal/game"
)

// snapshotToMessage converts a world snapshot to its wire form
func snapshotToMessage(s *game.GameSnapshot) *SnapshotMessage {
	msg := &SnapshotMessage{
		Sequence:        s.Sequence,
		Timestamp:       s.Timestamp.UnixNano(),
		TickNumber:      s.TickNumber,
		MatchID:         s.MatchID,
		ActiveObstacles: s.ActiveObstacles,
		AliveTanks:      s.AliveTanks,
		Running:         s.Running,
	}

	msg.Obstacles = make([]ObstacleData, len(s.Obstacles))
	for i, o := range s.Obstacles {
		msg.Obstacles[i] = ObstacleData{
			X: o.X, Y: o.Y, Z: o.Z, R: o.R,
			Active: o.Active,
			IsHit:  o.IsHit,
		}
	}

	msg.Tanks = make([]TankData, len(s.Tanks))
	for i, t := range s.Tanks {
		msg.Tanks[i] = TankData{
			Slot: t.Slot,
			X:    t.X, Y: t.Y, Z: t.Z, R: t.R,
			Azimuth: t.Azimuth,
			Health:  t.Health,
			Ammo:    t.Ammo,
			MaxAmmo: t.MaxAmmo,
			Alive:   t.Alive,
			IsHit:   t.IsHit,
		}
	}

	msg.Projectiles = projectilesToData(s.Projectiles)
	msg.Rain = projectilesToData(s.Rain)
	return msg
}

func projectilesToData(in []game.ProjectileSnapshot) []ProjectileData {
	out := make([]ProjectileData, 0, len(in))
	for _, p := range in {
		if !p.Fired {
			continue
		}
		out = append(out, ProjectileData{X: p.X, Y: p.Y, Z: p.Z, R: p.R, OwnerSlot: p.OwnerSlot})
	}
	return out
}

// ToGameSnapshot converts an IPC SnapshotMessage back to a game.GameSnapshot
// so renderers can share code with in-process consumers. Bounds are not on
// the wire; take them from the WorldMessage.
func (msg *SnapshotMessage) ToGameSnapshot() *game.GameSnapshot {
	snap := &game.GameSnapshot{
		Sequence:        msg.Sequence,
		Timestamp:       time.Unix(0, msg.Timestamp),
		TickNumber:      msg.TickNumber,
		MatchID:         msg.MatchID,
		ActiveObstacles: msg.ActiveObstacles,
		AliveTanks:      msg.AliveTanks,
		Running:         msg.Running,
	}

	snap.Obstacles = make([]game.ObstacleSnapshot, len(msg.Obstacles))
	for i, o := range msg.Obstacles {
		snap.Obstacles[i] = game.ObstacleSnapshot{
			X: o.X, Y: o.Y, Z: o.Z, R: o.R,
			Active: o.Active,
			IsHit:  o.IsHit,
		}
	}

	snap.Tanks = make([]game.TankSnapshot, len(msg.Tanks))
	for i, t := range msg.Tanks {
		snap.Tanks[i] = game.TankSnapshot{
			Slot: t.Slot,
			X:    t.X, Y: t.Y, Z: t.Z, R: t.R,
			Azimuth: t.Azimuth,
			Health:  t.Health,
			Ammo:    t.Ammo,
			MaxAmmo: t.MaxAmmo,
			Alive:   t.Alive,
			IsHit:   t.IsHit,
		}
	}

	snap.Projectiles = dataToProjectiles(msg.Projectiles)
	snap.Rain = dataToProjectiles(msg.Rain)
	return snap
}

func dataToProjectiles(in []ProjectileData) []game.ProjectileSnapshot {
	out := make([]game.ProjectileSnapshot, len(in))
	for i, p := range in {
		out[i] = game.ProjectileSnapshot{
			X: p.X, Y: p.Y, Z: p.Z, R: p.R,
			Fired:     true,
			OwnerSlot: p.OwnerSlot,
		}
	}
	return out
}
