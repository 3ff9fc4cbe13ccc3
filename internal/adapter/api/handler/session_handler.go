package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/user/logquarry/internal/domain"
	"github.com/user/logquarry/internal/usecase"
)

// SessionHandler manages open log sessions over HTTP.
type SessionHandler struct {
	// baseCtx scopes session lifetimes to the server, not to one request.
	baseCtx context.Context
	manager *usecase.SessionManager
	logger  *slog.Logger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(ctx context.Context, manager *usecase.SessionManager, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{baseCtx: ctx, manager: manager, logger: logger}
}

type openSessionRequest struct {
	SourceLabel string `json:"source_label"`
	HostID      string `json:"host_id"`
	LogItemID   string `json:"log_item_id"`
}

type sessionView struct {
	ID                 string `json:"id"`
	SourceLabel        string `json:"source_label"`
	State              string `json:"state"`
	Status             string `json:"status"`
	EntryCount         int    `json:"entry_count"`
	MinRefreshInterval string `json:"min_refresh_interval"`
}

func viewOf(s *usecase.LogSession) sessionView {
	state, status := s.State()
	return sessionView{
		ID:                 s.ID,
		SourceLabel:        s.SourceLabel,
		State:              state.String(),
		Status:             status,
		EntryCount:         len(s.Entries()),
		MinRefreshInterval: s.MinRefreshInterval().String(),
	}
}

// Create opens a session; the initial load proceeds in the background, so the
// response is 202 with the session in its loading state.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.manager.OpenSession(h.baseCtx, req.SourceLabel, domain.HarvestRequest{
		HostID:    req.HostID,
		LogItemID: req.LogItemID,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to open session")
		return
	}

	writeJSON(w, http.StatusAccepted, viewOf(session))
}

// List returns all open sessions sorted by source label.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions := h.manager.Sessions()
	views := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, viewOf(s))
	}
	writeJSON(w, http.StatusOK, views)
}

// Delete closes a session and releases its local file.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.manager.CloseSession(id) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type entryView struct {
	LineNumber int       `json:"line_number"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp,omitzero"`
}

type entriesResponse struct {
	Total   int         `json:"total"`
	Offset  int         `json:"offset"`
	Entries []entryView `json:"entries"`
}

// Entries returns a window of the session's entry snapshot. Entries are
// numbered 1-based here, at the human-facing boundary; internally everything
// is 0-based ordinals.
func (h *SessionHandler) Entries(w http.ResponseWriter, r *http.Request) {
	session, ok := h.manager.Session(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	entries := session.Entries()
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 1000)
	if offset < 0 {
		offset = 0
	}
	if offset > len(entries) {
		offset = len(entries)
	}
	end := offset + limit
	if limit <= 0 || end > len(entries) {
		end = len(entries)
	}

	views := make([]entryView, 0, end-offset)
	for i := offset; i < end; i++ {
		views = append(views, entryView{
			LineNumber: i + 1,
			Text:       entries[i].Text,
			Timestamp:  entries[i].Timestamp,
		})
	}
	writeJSON(w, http.StatusOK, entriesResponse{Total: len(entries), Offset: offset, Entries: views})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
