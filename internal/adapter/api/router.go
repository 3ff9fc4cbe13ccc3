package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/user/logquarry/internal/adapter/api/handler"
	"github.com/user/logquarry/internal/adapter/api/middleware"
	"github.com/user/logquarry/internal/usecase"
)

// NewRouter wires the collaborator-facing HTTP surface: harvesting, session
// management, search, and the SSE notification stream.
func NewRouter(
	ctx context.Context,
	logger *slog.Logger,
	harvester *usecase.Harvester,
	manager *usecase.SessionManager,
	coordinator *usecase.SearchCoordinator,
	broker *handler.EventBroker,
) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logging(logger))

	harvestHandler := handler.NewHarvestHandler(harvester, logger)
	sessionHandler := handler.NewSessionHandler(ctx, manager, logger)
	searchHandler := handler.NewSearchHandler(coordinator, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/harvest", harvestHandler.Harvest)
		r.Post("/sessions", sessionHandler.Create)
		r.Get("/sessions", sessionHandler.List)
		r.Delete("/sessions/{id}", sessionHandler.Delete)
		r.Get("/sessions/{id}/entries", sessionHandler.Entries)
		r.Get("/search", searchHandler.Search)
		r.Get("/events", broker.ServeHTTP)
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
