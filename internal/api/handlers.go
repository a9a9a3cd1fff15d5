package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"tank-arena/internal/game"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// maxBodyBytes caps request bodies; intents are tiny.
const maxBodyBytes = 4 << 10

// Handler methods for routerHandlers
// These are used by both the standalone router (for testing) and the full Server.

func (h *routerHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := h.engine.Stats()
	writeJSON(w, map[string]interface{}{
		"status":  "ok",
		"running": stats.Running,
		"tick":    stats.TickCount,
	})
}

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Snapshot()
	if snap == nil {
		writeError(w, "No state yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, snap)
}

// statsResponse is the engine counters plus API admission counters.
type statsResponse struct {
	game.EngineStats
	API AdmissionStats `json:"api"`
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{EngineStats: h.engine.Stats()}
	resp.API.Requests = h.limiter.Stats()
	if h.conns != nil {
		resp.API.WebSocket = h.conns.Stats()
	}
	writeJSON(w, resp)
}

func (h *routerHandlers) handleTankIntent(w http.ResponseWriter, r *http.Request) {
	slot, ok := h.parseSlot(w, r)
	if !ok {
		return
	}

	var in game.Intent
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if !h.input.Set(slot, in) {
		writeError(w, "Unknown tank slot", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]interface{}{
		"success": true,
		"slot":    slot,
		"intent":  in.Clamp(),
	})
}

func (h *routerHandlers) handleTankKeys(w http.ResponseWriter, r *http.Request) {
	slot, ok := h.parseSlot(w, r)
	if !ok {
		return
	}

	var ks game.KeyState
	if err := decodeBody(w, r, &ks); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if !h.input.SetKeys(slot, ks) {
		writeError(w, "Unknown tank slot", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]interface{}{"success": true, "slot": slot})
}

func (h *routerHandlers) handleTankReset(w http.ResponseWriter, r *http.Request) {
	slot, ok := h.parseSlot(w, r)
	if !ok {
		return
	}

	if err := h.engine.ResetTank(slot); err != nil {
		if errors.Is(err, game.ErrUnknownSlot) {
			writeError(w, err.Error(), http.StatusNotFound)
			return
		}
		h.logger.Error("tank reset failed", zap.Int("slot", slot), zap.Error(err))
		writeError(w, "Reset failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{"success": true, "slot": slot})
}

func (h *routerHandlers) handleWorldReset(w http.ResponseWriter, r *http.Request) {
	matchID := h.engine.ResetWorld()
	h.logger.Info("🌍 World reset requested via API", zap.String("match_id", matchID))
	writeJSON(w, map[string]interface{}{"success": true, "matchId": matchID})
}

// parseSlot reads {slot} and writes the error response itself when invalid.
func (h *routerHandlers) parseSlot(w http.ResponseWriter, r *http.Request) (int, bool) {
	slot, err := strconv.Atoi(chi.URLParam(r, "slot"))
	if err != nil {
		writeError(w, "Slot must be an integer", http.StatusBadRequest)
		return 0, false
	}
	if slot < 0 || slot >= h.engine.Slots() {
		writeError(w, "Unknown tank slot", http.StatusNotFound)
		return 0, false
	}
	return slot, true
}

// Helper functions (package-level for reuse)

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
