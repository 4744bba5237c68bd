package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/cubegame/internal/api/response"
	"github.com/mcoot/cubegame/internal/model"
	"github.com/mcoot/cubegame/internal/storage"
)

// ConnectionHandler serves the server's connection table
type ConnectionHandler struct {
	store storage.Storage
}

// NewConnectionHandler creates a new connection handler
func NewConnectionHandler(store storage.Storage) *ConnectionHandler {
	return &ConnectionHandler{store: store}
}

// List handles GET /api/v1/connections
func (h *ConnectionHandler) List(w http.ResponseWriter, r *http.Request) {
	conns, err := h.store.ListConnections(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	result := make([]response.Connection, len(conns))
	for i, c := range conns {
		owned, err := h.store.ListOwned(r.Context(), c.Handle)
		if err != nil {
			WriteError(w, err)
			return
		}
		result[i] = response.ConnectionFromModel(c, owned)
	}
	response.JSON(w, http.StatusOK, response.ConnectionList{Connections: result})
}

// Get handles GET /api/v1/connections/{handle}
func (h *ConnectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	handle := model.ConnectionHandle(mux.Vars(r)["handle"])

	conn, err := h.store.GetConnection(r.Context(), handle)
	if err != nil {
		WriteError(w, err)
		return
	}
	owned, err := h.store.ListOwned(r.Context(), handle)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.ConnectionFromModel(conn, owned))
}
