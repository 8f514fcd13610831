// internal/handlers/lobby_ws.go
package handlers

import (
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/shovegame/shove/internal/lobby"
	"github.com/shovegame/shove/internal/middleware"
	"github.com/shovegame/shove/internal/protocol"
)

// JoinLobbyWSHandler handles GET /lobby/{id_or_code}/join. The path segment is
// either a lobby UUID or a join code. A session_id query parameter reattaches
// an existing seat instead of claiming a new one.
//
// Plain HTTP requests (no Upgrade header) get ordinary status codes so that
// curl and health probes see something sensible; real upgrades are accepted
// first and then closed with a protocol close code, which is the only channel
// a browser WebSocket client can observe.
func (s *Server) JoinLobbyWSHandler(w http.ResponseWriter, r *http.Request, idOrCode string) {
	var (
		lob   *lobby.Lobby
		found bool
	)
	if lobbyID, err := uuid.Parse(idOrCode); err == nil {
		lob, found = s.Manager.Lobby(lobbyID)
	} else {
		lob, found = s.Manager.LobbyByCode(idOrCode)
	}

	rawSession := r.URL.Query().Get("session_id")
	hasSession := rawSession != ""
	sessionID, sessionErr := uuid.Parse(rawSession)

	if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		switch {
		case !found:
			http.Error(w, "lobby not found", http.StatusNotFound)
		case hasSession && (sessionErr != nil || !lob.HasSession(sessionID)):
			http.Error(w, "session expired", http.StatusGone)
		case !hasSession && !lob.Joinable():
			http.Error(w, "lobby not joinable", http.StatusConflict)
		default:
			// Let Accept produce its own upgrade-required error.
			http.Error(w, "websocket upgrade required", http.StatusUpgradeRequired)
		}
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{"shove"},
		OriginPatterns: []string{"*"}, // Adjust in production
	})
	if err != nil {
		s.Logger.Warnf("websocket accept failed: %v", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "handler finished")

	ch := lobby.NewWSChannel(conn)
	if !found {
		ch.Close(protocol.StatusLobbyNotFound, "lobby not found")
		return
	}

	var (
		player *lobby.Player
		done   <-chan struct{}
	)
	if hasSession {
		var ok bool
		if sessionErr == nil {
			player, done, ok = lob.Reconnect(sessionID, ch)
		}
		if !ok {
			ch.Close(protocol.StatusSessionExpired, "session expired")
			return
		}
	} else {
		player, done, err = lob.Join(ch)
		if err != nil {
			ch.Close(protocol.StatusLobbyNotJoinable, "lobby not joinable")
			return
		}
	}

	middleware.LogWebSocketConnect(s.Logger, r.RemoteAddr, r.URL.Path)
	s.Logger.Infof("player %s connected to lobby %s", player.ID, lob.ID)

	// Block until the lobby detaches this channel (replacement, shutdown or
	// poll loop exit). Returning tears the TCP connection down.
	<-done
	middleware.LogWebSocketDisconnect(s.Logger, r.RemoteAddr, r.URL.Path, nil)
}
