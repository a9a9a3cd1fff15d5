package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tank-arena/internal/game"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDebugServer(t *testing.T) {
	cfg := DefaultObservabilityConfig()
	cfg.Enabled = false
	assert.Nil(t, NewDebugServer(cfg, nil))

	cfg.Enabled = true
	cfg.ListenAddr = "0.0.0.0:6060"
	srv := NewDebugServer(cfg, nil)
	require.NotNil(t, srv)
	assert.Equal(t, "127.0.0.1:6060", srv.Addr, "forced onto loopback")

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sim_tick_duration_seconds")
}

func TestDebugServerBasicAuth(t *testing.T) {
	cfg := DefaultObservabilityConfig()
	cfg.BasicAuthUser = "ops"
	cfg.BasicAuthPass = "secret"
	srv := NewDebugServer(cfg, nil)
	require.NotNil(t, srv)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.SetBasicAuth("ops", "secret")
	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestRecordHit(t *testing.T) {
	obstacleHits := hitsTotal.WithLabelValues("obstacle", "rain")
	destroyed := destroyedTotal.WithLabelValues("obstacle")
	hitsBefore := testutil.ToFloat64(obstacleHits)
	destroyedBefore := testutil.ToFloat64(destroyed)

	RecordHit(game.HitEvent{Target: "obstacle", Cause: game.CauseRain, CauseName: "rain", Health: 3})
	RecordHit(game.HitEvent{Target: "obstacle", Cause: game.CauseRain, CauseName: "rain", Destroyed: true})

	assert.Equal(t, hitsBefore+2, testutil.ToFloat64(obstacleHits))
	assert.Equal(t, destroyedBefore+1, testutil.ToFloat64(destroyed))
}

func TestUpdateWorldGauges(t *testing.T) {
	UpdateWorldGauges(&game.GameSnapshot{
		AliveTanks:      3,
		ActiveObstacles: 12,
		Projectiles:     make([]game.ProjectileSnapshot, 4),
		Rain:            make([]game.ProjectileSnapshot, 7),
	})

	assert.Equal(t, 3.0, testutil.ToFloat64(aliveTanks))
	assert.Equal(t, 12.0, testutil.ToFloat64(activeObstacles))
	assert.Equal(t, 4.0, testutil.ToFloat64(liveProjectiles))
	assert.Equal(t, 7.0, testutil.ToFloat64(liveRain))

	UpdateWorldGauges(nil)
	RecordTick(2 * time.Millisecond)
}

func TestUpdateEventLogStats(t *testing.T) {
	before := testutil.ToFloat64(eventLogTotal)
	seenEventTotal.Store(0)
	seenEventDropped.Store(0)

	UpdateEventLogStats(10, 1)
	UpdateEventLogStats(25, 1)

	assert.Equal(t, before+25, testutil.ToFloat64(eventLogTotal))
}
