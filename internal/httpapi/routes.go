package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SetupRoutes builds the router with the REST surface and the websocket
// gateway mounted.
func SetupRoutes(api *API, wsHandler http.HandlerFunc) http.Handler {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Route("/game", func(r chi.Router) {
			r.Post("/create", api.CreateGame)
			r.Get("/available", api.AvailableGames)
			r.Get("/health", api.Health)
			r.Post("/{gameId}/join", api.JoinGame)
			r.Get("/{gameId}", api.GetGame)
		})
		r.Get("/wordpairs/categories", api.WordPairCategories)
	})

	r.Get("/ws/game", wsHandler)
	return r
}
