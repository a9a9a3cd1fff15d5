package game

import (
	"encoding/json"
	"time"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeTick              // Tick boundary with delta time
	EventTypeFire
	EventTypeObstacleHit
	EventTypeObstacleDestroyed
	EventTypeTankHit
	EventTypeTankDestroyed
	EventTypeTankReset
	EventTypeWorldReset
)

// EventVersion for backwards compatibility in replay
const EventVersion uint8 = 1

// Event is the core event structure for the event log
type Event struct {
	Version   uint8     `json:"version"`   // Schema version
	Type      EventType `json:"type"`      // Event type
	Timestamp int64     `json:"timestamp"` // Unix nano
	Sequence  uint64    `json:"sequence"`  // Monotonic sequence
	TickNum   uint64    `json:"tickNum"`   // Tick this occurred in
	MatchID   string    `json:"matchId"`
	Source    string    `json:"source"`  // Originating slot ("tank-0"), empty for world events
	Payload   []byte    `json:"payload"` // JSON-encoded payload
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeTick:
		return "tick"
	case EventTypeFire:
		return "fire"
	case EventTypeObstacleHit:
		return "obstacle_hit"
	case EventTypeObstacleDestroyed:
		return "obstacle_destroyed"
	case EventTypeTankHit:
		return "tank_hit"
	case EventTypeTankDestroyed:
		return "tank_destroyed"
	case EventTypeTankReset:
		return "tank_reset"
	case EventTypeWorldReset:
		return "world_reset"
	default:
		return "unknown"
	}
}

// MarshalText lets events serialise their type by name.
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Typed payloads for different event types

// TickPayload contains tick boundary information for replay
type TickPayload struct {
	DeltaTimeNs     int64 `json:"deltaTimeNs"`
	AliveTanks      int   `json:"aliveTanks"`
	ActiveObstacles int   `json:"activeObstacles"`
	Projectiles     int   `json:"projectiles"`
}

// FirePayload describes a round leaving a barrel.
type FirePayload struct {
	Slot     int     `json:"slot"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	Azimuth  float64 `json:"azimuth"`
	AmmoLeft int     `json:"ammoLeft"`
}

// ObstacleHitPayload describes damage to an obstacle.
type ObstacleHitPayload struct {
	Index  int     `json:"index"`
	Cause  string  `json:"cause"`
	Health float64 `json:"health"`
}

// TankHitPayload describes damage to a tank.
type TankHitPayload struct {
	Slot   int     `json:"slot"`
	Cause  string  `json:"cause"`
	Health float64 `json:"health"`
}

// ResetPayload describes a tank or world reset.
type ResetPayload struct {
	Slot    int    `json:"slot,omitempty"`
	MatchID string `json:"matchId"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload interface{}) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, tickNum uint64, matchID, source string, payload interface{}) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		TickNum:   tickNum,
		MatchID:   matchID,
		Source:    source,
		Payload:   EncodePayload(payload),
	}
}
