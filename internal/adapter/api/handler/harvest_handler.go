package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/user/logquarry/internal/domain"
	"github.com/user/logquarry/internal/usecase"
)

// HarvestHandler exposes one-shot harvest requests over HTTP.
type HarvestHandler struct {
	harvester *usecase.Harvester
	logger    *slog.Logger
}

// NewHarvestHandler creates a HarvestHandler.
func NewHarvestHandler(harvester *usecase.Harvester, logger *slog.Logger) *HarvestHandler {
	return &HarvestHandler{harvester: harvester, logger: logger}
}

// Harvest runs the operation synchronously and returns the terminal result
// record. A failed harvest is still a 200: failure is data, not a fault.
func (h *HarvestHandler) Harvest(w http.ResponseWriter, r *http.Request) {
	var req domain.HarvestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result := h.harvester.Harvest(r.Context(), req)
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
