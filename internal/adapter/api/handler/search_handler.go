package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/user/logquarry/internal/domain"
	"github.com/user/logquarry/internal/usecase"
)

// SearchHandler runs searches across all open sessions.
type SearchHandler struct {
	coordinator *usecase.SearchCoordinator
	logger      *slog.Logger
}

// NewSearchHandler creates a SearchHandler.
func NewSearchHandler(coordinator *usecase.SearchCoordinator, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{coordinator: coordinator, logger: logger}
}

// Search runs one logical search. Query parameters: q (pattern), regex,
// case_sensitive. Starting a new search supersedes any running one; the
// superseded request answers 409 and its results are discarded.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := domain.SearchQuery{
		Pattern:       q.Get("q"),
		CaseSensitive: q.Get("case_sensitive") == "true",
		IsRegex:       q.Get("regex") == "true",
	}

	outcome, err := h.coordinator.Search(r.Context(), query)
	if err != nil {
		if errors.Is(err, domain.ErrSearchSuperseded) {
			writeError(w, http.StatusConflict, "search superseded by a newer search")
			return
		}
		h.logger.Error("search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}
