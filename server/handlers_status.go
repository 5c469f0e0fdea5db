package server

import (
	"encoding/json"
	"net/http"

	"github.com/onnwee/replyt/bot"
	"github.com/onnwee/replyt/telemetry"
)

// HandleStatus reports cumulative pipeline counts and the effective
// configuration summary.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stats, err := h.bot.Stats(r.Context())
	if err != nil {
		telemetry.LoggerWithCorr(r.Context()).Error("stats query failed", "err", err)
		http.Error(w, "stats unavailable", http.StatusInternalServerError)
		return
	}
	mode := "read-only"
	if stats.CanPost {
		mode = "full"
	}
	// Last cycle heartbeat, best effort.
	var lastCycle string
	if h.db != nil {
		_ = h.db.QueryRowContext(r.Context(),
			`SELECT value FROM kv WHERE key='job_reply_cycle_last'`).Scan(&lastCycle)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Mode      string `json:"mode"`
		LastCycle string `json:"last_cycle,omitempty"`
		bot.Stats
	}{Mode: mode, LastCycle: lastCycle, Stats: stats})
}
