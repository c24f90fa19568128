package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roamingroutes/undercover-backend/internal/engine"
	"github.com/roamingroutes/undercover-backend/internal/hub"
	"github.com/roamingroutes/undercover-backend/internal/registry"
	"github.com/roamingroutes/undercover-backend/internal/words"
	"github.com/roamingroutes/undercover-backend/pkg/types"
)

type API struct {
	games  *registry.Registry
	hub    *hub.Hub
	words  *words.Provider
	logger *zap.Logger
}

func New(games *registry.Registry, h *hub.Hub, w *words.Provider, logger *zap.Logger) *API {
	return &API{games: games, hub: h, words: w, logger: logger}
}

func (a *API) CreateGame(w http.ResponseWriter, r *http.Request) {
	var req types.CreateGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	_, st, err := a.games.Create(req.HostNickname)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}

	snap := engine.Project(st)
	a.hub.PublishAll(types.EventGameCreated, snap)
	writeJSON(w, http.StatusCreated, snap)
}

func (a *API) JoinGame(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameId")
	var req types.JoinGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rm, err := a.games.Get(gameID)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}

	playerID := uuid.NewString()
	st, err := rm.Do(engine.Command{
		Type:     engine.CmdJoin,
		PlayerID: playerID,
		Nickname: req.Nickname,
		Now:      time.Now(),
	})
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, types.PlayerInfo{
		GameID:   gameID,
		PlayerID: playerID,
		State:    engine.Project(st),
	})
}

func (a *API) GetGame(w http.ResponseWriter, r *http.Request) {
	rm, err := a.games.Get(chi.URLParam(r, "gameId"))
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	view, err := rm.Snapshot()
	if err != nil {
		a.writeDomainError(w, r, registry.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, engine.Project(view.State))
}

func (a *API) AvailableGames(w http.ResponseWriter, r *http.Request) {
	games := a.games.ListJoinable()
	if games == nil {
		games = []types.GameState{}
	}
	writeJSON(w, http.StatusOK, games)
}

func (a *API) WordPairCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.words.Categories())
}

func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "Healthy",
		"timestamp": time.Now().UTC(),
		"service":   "Game API",
	})
}

// writeDomainError maps the typed game errors onto status codes. Anything
// unrecognized is a 500 and logged with request context; internals never
// reach the client.
func (a *API) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrInvalidInput),
		errors.Is(err, engine.ErrInvalidState),
		errors.Is(err, engine.ErrGameFull),
		errors.Is(err, engine.ErrNameTaken),
		errors.Is(err, engine.ErrNotHost),
		errors.Is(err, engine.ErrNotEnoughPlayers),
		errors.Is(err, engine.ErrUnknownPlayer):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		a.logger.Error("unexpected error",
			zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
