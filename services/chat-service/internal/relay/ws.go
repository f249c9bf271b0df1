package relay

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler upgrades HTTP connections and pumps frames between the hub
// and the socket.
type WSHandler struct {
	hub    *Hub
	logger *slog.Logger
}

func NewWSHandler(hub *Hub, logger *slog.Logger) *WSHandler {
	return &WSHandler{hub: hub, logger: logger}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		userID = r.URL.Query().Get("user_id")
	}
	if userID == "" {
		http.Error(w, "user identity required", http.StatusUnauthorized)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "err", err)
		return
	}

	session := &Session{
		ID:     uuid.NewString(),
		UserID: userID,
		Send:   make(chan []byte, 256),
		conn:   ws,
	}
	if conv := r.URL.Query().Get("conversation_id"); conv != "" {
		session.Conversations = []string{conv}
	}

	h.hub.Register(session)
	h.logger.Info("websocket session opened", "session_id", session.ID, "user_id", userID)

	go h.writePump(session)
	go h.readPump(session)
}

func (h *WSHandler) readPump(s *Session) {
	defer func() {
		h.hub.Unregister(s)
		_ = s.conn.Close()
	}()

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd clientCommand
		if err := json.Unmarshal(raw, &cmd); err != nil {
			continue
		}
		h.hub.handleCommand(s, cmd)
	}
}

func (h *WSHandler) writePump(s *Session) {
	defer func() { _ = s.conn.Close() }()

	for data := range s.Send {
		if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}
