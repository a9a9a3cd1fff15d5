package game

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// TestEventLogStopped verifies nothing is accepted outside Start/Stop
func TestEventLogStopped(t *testing.T) {
	el := NewEventLog(nil)
	assert.False(t, el.EmitSimple(EventTypeTick, 1, "m", "", TickPayload{}))

	require.NoError(t, el.Start(""))
	assert.True(t, el.EmitSimple(EventTypeTick, 1, "m", "", TickPayload{}))
	el.Stop()
	el.Stop()

	assert.False(t, el.EmitSimple(EventTypeTick, 2, "m", "", TickPayload{}))
	assert.Equal(t, uint64(1), el.GetTotalCount())
	assert.Equal(t, uint64(0), el.GetDroppedCount())
	assert.False(t, el.GetStats().Running)
}

// TestEventLogFile checks events are written as ordered JSON lines
func TestEventLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	el := NewEventLog(nil)
	require.NoError(t, el.Start(path))

	el.EmitSimple(EventTypeFire, 3, "match", "tank-0", FirePayload{Slot: 0, AmmoLeft: 11})
	el.EmitSimple(EventTypeTankHit, 3, "match", "tank-1", TankHitPayload{Slot: 1, Cause: "projectile", Health: 9})
	el.EmitSimple(EventTypeTick, 3, "match", "", TickPayload{DeltaTimeNs: 16_000_000})
	el.Stop()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	type line struct {
		Version  uint8  `json:"version"`
		Type     string `json:"type"`
		Sequence uint64 `json:"sequence"`
		TickNum  uint64 `json:"tickNum"`
		Source   string `json:"source"`
		Payload  []byte `json:"payload"`
	}
	var lines []line
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var l line
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &l))
		lines = append(lines, l)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, lines, 3)

	assert.Equal(t, "fire", lines[0].Type)
	assert.Equal(t, "tank_hit", lines[1].Type)
	assert.Equal(t, "tick", lines[2].Type)
	for i, l := range lines {
		assert.Equal(t, EventVersion, l.Version)
		assert.Equal(t, uint64(i+1), l.Sequence)
		assert.Equal(t, uint64(3), l.TickNum)
	}
	assert.Equal(t, "tank-1", lines[1].Source)

	var hit TankHitPayload
	require.NoError(t, json.Unmarshal(lines[1].Payload, &hit))
	assert.Equal(t, TankHitPayload{Slot: 1, Cause: "projectile", Health: 9}, hit)
}

// TestEventLogSourceLimit verifies one noisy source is throttled on its own
func TestEventLogSourceLimit(t *testing.T) {
	el := NewEventLog(nil)
	require.NoError(t, el.Start(""))
	defer el.Stop()

	accepted := 0
	for i := 0; i < 100; i++ {
		if el.EmitSimple(EventTypeFire, 1, "m", "tank-0", nil) {
			accepted++
		}
	}
	assert.GreaterOrEqual(t, accepted, MaxEventsPerSource/10)
	assert.Less(t, accepted, 100)
	assert.Equal(t, uint64(100-accepted), el.GetDroppedCount())

	assert.True(t, el.EmitSimple(EventTypeFire, 1, "m", "tank-1", nil), "other sources are unaffected")
	assert.True(t, el.EmitSimple(EventTypeTick, 1, "m", "", nil), "world events skip the source limiter")
}

// TestEventLogOverflow checks a full buffer drops its oldest events
func TestEventLogOverflow(t *testing.T) {
	el := NewEventLog(nil)
	el.globalLimiter = rate.NewLimiter(rate.Inf, 0)
	el.running.Store(true) // no writer, so nothing drains

	const extra = 76
	for i := 0; i < EventBufferSize+extra; i++ {
		require.True(t, el.EmitSimple(EventTypeTick, uint64(i), "m", "", nil))
	}

	stats := el.GetStats()
	assert.Equal(t, uint64(EventBufferSize+extra), stats.Total)
	assert.Equal(t, uint64(extra), stats.Dropped)
	assert.Equal(t, uint64(EventBufferSize), stats.Pending)

	batch := el.collectBatch(nil)
	require.Len(t, batch, BatchFlushSize)
	assert.Equal(t, uint64(extra+1), batch[0].Sequence, "oldest survivor comes first")
	assert.Equal(t, uint64(extra), batch[0].TickNum)
	assert.Equal(t, uint64(EventBufferSize-BatchFlushSize), el.GetStats().Pending)
}

// TestEventTypeNames keeps the wire names stable
func TestEventTypeNames(t *testing.T) {
	names := map[EventType]string{
		EventTypeUnknown:           "unknown",
		EventTypeTick:              "tick",
		EventTypeFire:              "fire",
		EventTypeObstacleHit:       "obstacle_hit",
		EventTypeObstacleDestroyed: "obstacle_destroyed",
		EventTypeTankHit:           "tank_hit",
		EventTypeTankDestroyed:     "tank_destroyed",
		EventTypeTankReset:         "tank_reset",
		EventTypeWorldReset:        "world_reset",
	}
	for typ, want := range names {
		assert.Equal(t, want, typ.String())
		text, err := typ.MarshalText()
		require.NoError(t, err)
		assert.Equal(t, want, string(text))
	}
}
