package relay

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Frame is what subscribers receive over the websocket.
type Frame struct {
	Kind           string          `json:"kind"`
	ConversationID string          `json:"conversation_id"`
	Timestamp      time.Time       `json:"timestamp"`
	Data           json.RawMessage `json:"data,omitempty"`
}

// clientCommand is an inbound control message from a websocket client.
type clientCommand struct {
	Action        string   `json:"action"`
	Conversations []string `json:"conversations"`
}

// Conn abstracts the websocket connection so the hub can be tested
// without network sockets.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Session is one connected websocket client. Send is drained by the
// write pump; slow clients get frames dropped rather than blocking the
// hub.
type Session struct {
	ID            string
	UserID        string
	Conversations []string
	Send          chan []byte
	conn          Conn
}

// Hub fans frames out to the sessions subscribed to each conversation.
type Hub struct {
	mu       sync.RWMutex
	byConv   map[string]map[*Session]struct{}
	sessions map[*Session]struct{}
	logger   *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		byConv:   make(map[string]map[*Session]struct{}),
		sessions: make(map[*Session]struct{}),
		logger:   logger,
	}
}

func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sessions[s] = struct{}{}
	for _, conv := range s.Conversations {
		if h.byConv[conv] == nil {
			h.byConv[conv] = make(map[*Session]struct{})
		}
		h.byConv[conv][s] = struct{}{}
	}
}

func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[s]; !ok {
		return
	}
	for _, conv := range s.Conversations {
		h.dropLocked(conv, s)
	}
	delete(h.sessions, s)
	close(s.Send)
}

func (h *Hub) Subscribe(s *Session, conversations []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, conv := range conversations {
		if h.byConv[conv] == nil {
			h.byConv[conv] = make(map[*Session]struct{})
		}
		h.byConv[conv][s] = struct{}{}
	}
	s.Conversations = append(s.Conversations, conversations...)
}

func (h *Hub) Unsubscribe(s *Session, conversations []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	drop := make(map[string]struct{}, len(conversations))
	for _, conv := range conversations {
		drop[conv] = struct{}{}
		h.dropLocked(conv, s)
	}

	kept := s.Conversations[:0]
	for _, conv := range s.Conversations {
		if _, ok := drop[conv]; !ok {
			kept = append(kept, conv)
		}
	}
	s.Conversations = kept
}

func (h *Hub) dropLocked(conversation string, s *Session) {
	if subs, ok := h.byConv[conversation]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(h.byConv, conversation)
		}
	}
}

func (h *Hub) handleCommand(s *Session, cmd clientCommand) {
	switch cmd.Action {
	case "subscribe":
		h.Subscribe(s, cmd.Conversations)
	case "unsubscribe":
		h.Unsubscribe(s, cmd.Conversations)
	}
}

// Broadcast delivers a frame to every session subscribed to its
// conversation.
func (h *Hub) Broadcast(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("relay frame marshal failed", "err", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.byConv[frame.ConversationID] {
		select {
		case s.Send <- data:
		default:
		}
	}
}

func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) SubscriberCount(conversation string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byConv[conversation])
}
