package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/mcoot/cubegame/internal/api/handler"
	"github.com/mcoot/cubegame/internal/api/middleware"
	"github.com/mcoot/cubegame/internal/api/response"
	sharedmw "github.com/mcoot/cubegame/internal/middleware"
	"github.com/mcoot/cubegame/internal/server"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger *slog.Logger
	Server *server.Runtime
	// AllowedOrigins for CORS; empty allows any origin
	AllowedOrigins []string
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	connectionHandler := handler.NewConnectionHandler(cfg.Server.Store())
	playerHandler := handler.NewPlayerHandler(cfg.Server.Store())

	// Create middleware
	loggingMiddleware := sharedmw.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	api.HandleFunc("/health", healthHandler(cfg.Server)).Methods(http.MethodGet)

	api.HandleFunc("/connections", connectionHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/connections/{handle}", connectionHandler.Get).Methods(http.MethodGet)

	api.HandleFunc("/players", playerHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/players/{id}", playerHandler.Get).Methods(http.MethodGet)

	// Websocket endpoint clients join through
	api.Handle("/connect", cfg.Server.Handler()).Methods(http.MethodGet)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(r)
}

func healthHandler(srv *server.Runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, response.Health{
			Status:      "ok",
			Connections: srv.Connections(),
			Tick:        srv.Tick(),
		})
	}
}
