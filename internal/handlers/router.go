package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups everything the router serves.
type Handlers struct {
	Users     *UserHandler
	Recommend *RecommendHandler
	Plex      *PlexHandler
	// RequireAuth guards every /api route.
	RequireAuth func(http.Handler) http.Handler
}

func NewRouter(h Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(h.RequireAuth)

		r.Get("/me", h.Users.GetCurrentUser)
		r.Get("/preferences", h.Users.GetPreferences)
		r.Post("/preferences", h.Users.UpdatePreferences)

		r.Get("/recommend", h.Recommend.Recommend)
		r.Get("/last-watched", h.Recommend.LastWatched)
		r.Post("/pass", h.Recommend.Pass)
		r.Get("/passed-movies", h.Recommend.ListPassed)
		r.Delete("/passed-movies/{id}", h.Recommend.DeletePassed)

		r.Get("/clients", h.Plex.GetClients)
		r.Post("/play", h.Plex.Play)
		r.Post("/add-to-playlist", h.Plex.AddToPlaylist)
	})

	return r
}
