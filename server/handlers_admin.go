package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/onnwee/replyt/bot"
	"github.com/onnwee/replyt/telemetry"
)

// HandleAdminCycle triggers a processing cycle outside the normal schedule.
// The cycle runs synchronously in the request; an overlap with an in-flight
// cycle returns 409 rather than queueing a second run.
func (h *Handlers) HandleAdminCycle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	logger := telemetry.LoggerWithCorr(r.Context())
	logger.Info("manual cycle triggered", "component", "http")

	err := h.bot.RunCycle(r.Context())
	switch {
	case errors.Is(err, bot.ErrCycleRunning):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "busy", "error": err.Error()})
	case err != nil:
		logger.Error("manual cycle failed", "err", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
	default:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "completed"})
	}
}
