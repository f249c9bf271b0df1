package relay

import (
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

func newTestSession(userID string, conversations ...string) *Session {
	return &Session{
		ID:            "s-" + userID,
		UserID:        userID,
		Conversations: conversations,
		Send:          make(chan []byte, 256),
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	s := newTestSession("u1", "conv-1")

	hub.Register(s)
	if hub.SessionCount() != 1 {
		t.Fatalf("expected 1 session, got %d", hub.SessionCount())
	}
	if hub.SubscriberCount("conv-1") != 1 {
		t.Fatalf("expected 1 subscriber on conv-1, got %d", hub.SubscriberCount("conv-1"))
	}

	hub.Unregister(s)
	if hub.SessionCount() != 0 {
		t.Fatalf("expected 0 sessions, got %d", hub.SessionCount())
	}
	if hub.SubscriberCount("conv-1") != 0 {
		t.Fatalf("expected 0 subscribers on conv-1, got %d", hub.SubscriberCount("conv-1"))
	}

	// Unregistering twice must not panic or double close.
	hub.Unregister(s)
}

func TestHubBroadcastOnlyToSubscribers(t *testing.T) {
	hub := NewHub(slog.Default())
	subscriber := newTestSession("u1", "conv-1")
	other := newTestSession("u2", "conv-2")
	hub.Register(subscriber)
	hub.Register(other)

	hub.Broadcast(Frame{
		Kind:           "message.created",
		ConversationID: "conv-1",
		Timestamp:      time.Now().UTC(),
		Data:           json.RawMessage(`{"content":"hola"}`),
	})

	select {
	case raw := <-subscriber.Send:
		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			t.Fatalf("invalid frame: %v", err)
		}
		if frame.Kind != "message.created" || frame.ConversationID != "conv-1" {
			t.Fatalf("unexpected frame: %+v", frame)
		}
	default:
		t.Fatal("subscriber should have received the frame")
	}

	select {
	case <-other.Send:
		t.Fatal("non-subscriber should not receive the frame")
	default:
	}
}

func TestHubSubscribeUnsubscribe(t *testing.T) {
	hub := NewHub(slog.Default())
	s := newTestSession("u1")
	hub.Register(s)

	hub.Subscribe(s, []string{"conv-1", "conv-2"})
	if hub.SubscriberCount("conv-1") != 1 || hub.SubscriberCount("conv-2") != 1 {
		t.Fatal("subscribe should add the session to both conversations")
	}

	hub.Unsubscribe(s, []string{"conv-1"})
	if hub.SubscriberCount("conv-1") != 0 {
		t.Fatal("unsubscribe should remove the session from conv-1")
	}
	if hub.SubscriberCount("conv-2") != 1 {
		t.Fatal("unsubscribe should keep the session on conv-2")
	}

	hub.Broadcast(Frame{Kind: "message.created", ConversationID: "conv-1"})
	select {
	case <-s.Send:
		t.Fatal("unsubscribed session should not receive frames")
	default:
	}
}

func TestHubSlowClientDoesNotBlock(t *testing.T) {
	hub := NewHub(slog.Default())
	slow := &Session{ID: "slow", UserID: "u1", Conversations: []string{"conv-1"}, Send: make(chan []byte)}
	hub.Register(slow)

	done := make(chan struct{})
	go func() {
		hub.Broadcast(Frame{Kind: "message.created", ConversationID: "conv-1"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a slow client")
	}
}
