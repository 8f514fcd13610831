// internal/handlers/devtools.go
package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shovegame/shove/internal/auth"
	"github.com/shovegame/shove/internal/models"
	"github.com/shovegame/shove/internal/protocol"
)

// lobbyInfo is one row of GET /dev-tools/lobby/list.
type lobbyInfo struct {
	LobbyID   uuid.UUID           `json:"lobby_id"`
	JoinCode  string              `json:"join_code"`
	CreatedAt time.Time           `json:"created_at"`
	Joinable  bool                `json:"joinable"`
	State     string              `json:"state"`
	Players   []models.PlayerInfo `json:"players"`
}

// DevToolsHandler dispatches the /dev-tools/ subtree. Every route requires a
// bearer token minted by this process (see auth.CreateDevToken):
//
//	GET /dev-tools/lobby/list                    all live lobbies
//	GET /dev-tools/protocol/msg-types            known message type tags
//	GET /dev-tools/protocol/example/{msg_type}   synthetic example message
func (s *Server) DevToolsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return
	}
	if err := auth.AuthenticateDevToken(token); err != nil {
		http.Error(w, "invalid token", http.StatusForbidden)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/dev-tools/")
	switch {
	case rest == "lobby/list":
		s.listLobbies(w)
	case rest == "protocol/msg-types":
		writeJSON(w, protocol.MessageTypes())
	case strings.HasPrefix(rest, "protocol/example/"):
		s.exampleMessage(w, r, strings.TrimPrefix(rest, "protocol/example/"))
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) listLobbies(w http.ResponseWriter) {
	lobbies := s.Manager.Lobbies()
	infos := make([]lobbyInfo, 0, len(lobbies))
	for _, l := range lobbies {
		infos = append(infos, lobbyInfo{
			LobbyID:   l.ID,
			JoinCode:  l.JoinCode,
			CreatedAt: l.CreatedAt,
			Joinable:  l.Joinable(),
			State:     l.State().String(),
			Players:   l.PlayerInfos(),
		})
	}
	writeJSON(w, infos)
}

func (s *Server) exampleMessage(w http.ResponseWriter, r *http.Request, msgType string) {
	var seed int64
	if raw := r.URL.Query().Get("seed"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid seed", http.StatusBadRequest)
			return
		}
		seed = parsed
	}

	msg, ok := protocol.Example(msgType, seed)
	if !ok {
		http.Error(w, "unknown message type", http.StatusNotFound)
		return
	}
	writeJSON(w, msg)
}
