package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/cubegame/internal/api/response"
	"github.com/mcoot/cubegame/internal/model"
	"github.com/mcoot/cubegame/internal/storage"
)

// PlayerHandler serves the server's player records
type PlayerHandler struct {
	store storage.Storage
}

// NewPlayerHandler creates a new player handler
func NewPlayerHandler(store storage.Storage) *PlayerHandler {
	return &PlayerHandler{store: store}
}

// List handles GET /api/v1/players
func (h *PlayerHandler) List(w http.ResponseWriter, r *http.Request) {
	players, err := h.store.ListPlayers(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	result := make([]response.Player, len(players))
	for i, p := range players {
		result[i] = response.PlayerFromModel(p)
	}
	response.JSON(w, http.StatusOK, response.PlayerList{Players: result})
}

// Get handles GET /api/v1/players/{id}
func (h *PlayerHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		WriteError(w, NewInvalidRequestError("player id is required"))
		return
	}

	player, err := h.store.GetPlayer(r.Context(), model.PlayerID(id))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.PlayerFromModel(player))
}
