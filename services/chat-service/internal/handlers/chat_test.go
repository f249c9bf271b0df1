package handlers

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestHandler() *ChatHandler {
	return NewChatHandler(nil, nil, slog.Default())
}

func newTestMux(h *ChatHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/chat/messages", h.Send)
	mux.HandleFunc("GET /api/v1/chat/messages/search", h.Search)
	mux.HandleFunc("PATCH /api/v1/chat/messages/{id}", h.Edit)
	mux.HandleFunc("GET /api/v1/chat/conversations", h.ListConversations)
	return mux
}

func TestConversationIDDeterministic(t *testing.T) {
	a := ConversationID("user-1", "user-2")
	b := ConversationID("user-2", "user-1")
	if a != b {
		t.Fatalf("conversation id should not depend on argument order: %q vs %q", a, b)
	}
	if a != "user-1:user-2" {
		t.Fatalf("unexpected conversation id %q", a)
	}
}

func TestSendRequiresIdentity(t *testing.T) {
	mux := newTestMux(newTestHandler())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/messages",
		strings.NewReader(`{"recipient_id":"u2","content":"hola"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestSendValidation(t *testing.T) {
	mux := newTestMux(newTestHandler())

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing recipient", `{"content":"hola"}`},
		{"missing content", `{"recipient_id":"u2"}`},
		{"invalid type", `{"recipient_id":"u2","content":"hola","type":"broadcast"}`},
		{"content too long", `{"recipient_id":"u2","content":"` + strings.Repeat("a", 2001) + `"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/messages", strings.NewReader(tc.body))
			req.Header.Set("X-User-Id", "u1")
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	mux := newTestMux(newTestHandler())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/messages/search", nil)
	req.Header.Set("X-User-Id", "u1")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestEditValidation(t *testing.T) {
	mux := newTestMux(newTestHandler())
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/chat/messages/m1", strings.NewReader(`{"content":""}`))
	req.Header.Set("X-User-Id", "u1")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListConversationsRequiresIdentity(t *testing.T) {
	mux := newTestMux(newTestHandler())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/conversations", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
