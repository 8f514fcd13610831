// internal/handlers/lobby.go
package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// lobbyResponse is the body of POST /lobby and GET /lobby/{lobby_id}.
type lobbyResponse struct {
	LobbyID  uuid.UUID `json:"lobby_id"`
	JoinCode string    `json:"join_code"`
}

// CreateLobbyHandler handles POST /lobby: mint a join code, register a fresh
// lobby and hand back its coordinates. No body is expected.
func (s *Server) CreateLobbyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	l := s.Manager.CreateLobby()
	writeJSON(w, lobbyResponse{LobbyID: l.ID, JoinCode: l.JoinCode})
}

// LobbyRouteHandler dispatches the /lobby/ subtree:
//
//	GET /lobby/{lobby_id}          lobby info
//	GET /lobby/{id_or_code}/join   WebSocket join
func (s *Server) LobbyRouteHandler(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/lobby/"), "/")
	switch {
	case len(parts) == 1 && parts[0] != "":
		s.GetLobbyHandler(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "join":
		s.JoinLobbyWSHandler(w, r, parts[0])
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// GetLobbyHandler handles GET /lobby/{lobby_id}.
func (s *Server) GetLobbyHandler(w http.ResponseWriter, r *http.Request, idStr string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	lobbyID, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "invalid lobby_id", http.StatusBadRequest)
		return
	}

	l, ok := s.Manager.Lobby(lobbyID)
	if !ok {
		http.Error(w, "lobby not found", http.StatusNotFound)
		return
	}
	writeJSON(w, lobbyResponse{LobbyID: l.ID, JoinCode: l.JoinCode})
}
