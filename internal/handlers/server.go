// internal/handlers/server.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/shovegame/shove/internal/config"
	"github.com/shovegame/shove/internal/lobby"
	"github.com/shovegame/shove/internal/middleware"
)

// Server wires the HTTP surface to the lobby manager.
type Server struct {
	Logger  *logrus.Logger
	Manager *lobby.Manager
	Config  config.Config
}

func NewServer(logger *logrus.Logger, manager *lobby.Manager, cfg config.Config) *Server {
	return &Server{
		Logger:  logger,
		Manager: manager,
		Config:  cfg,
	}
}

// Mux builds the route table. Dev tools are mounted only when enabled.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	logged := middleware.LogMiddleware(s.Logger)

	mux.Handle("/lobby", logged(http.HandlerFunc(s.CreateLobbyHandler)))
	mux.Handle("/lobby/", logged(http.HandlerFunc(s.LobbyRouteHandler)))

	if s.Config.DevTools {
		mux.Handle("/dev-tools/", logged(http.HandlerFunc(s.DevToolsHandler)))
	}
	return mux
}

// writeJSON sends v as a JSON response body.
func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
