package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/juanfcarrillo/pet-vet/services/chat-service/internal/model"
	"github.com/juanfcarrillo/pet-vet/services/chat-service/internal/relay"
	"github.com/juanfcarrillo/pet-vet/services/chat-service/internal/storage"
)

// FramePublisher pushes real-time frames to connected websocket
// clients. The relay bridge implements it.
type FramePublisher interface {
	Publish(ctx context.Context, frame relay.Frame)
}

type ChatHandler struct {
	repo   *storage.MessageRepository
	pub    FramePublisher
	logger *slog.Logger
}

func NewChatHandler(repo *storage.MessageRepository, pub FramePublisher, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{repo: repo, pub: pub, logger: logger}
}

type sendMessageRequest struct {
	RecipientID    string `json:"recipient_id"`
	RecipientName  string `json:"recipient_name"`
	Content        string `json:"content"`
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
}

type editMessageRequest struct {
	Content string `json:"content"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type messageResponse struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	SenderName     string `json:"sender_name"`
	RecipientID    string `json:"recipient_id"`
	RecipientName  string `json:"recipient_name"`
	Content        string `json:"content"`
	Type           string `json:"type"`
	Status         string `json:"status"`
	IsEdited       bool   `json:"is_edited"`
	EditedAt       string `json:"edited_at,omitempty"`
	CreatedAt      string `json:"created_at"`
}

type messageListResponse struct {
	Messages []messageResponse `json:"messages"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
}

type conversationResponse struct {
	ConversationID string          `json:"conversation_id"`
	LastMessage    messageResponse `json:"last_message"`
	UnreadCount    int             `json:"unread_count"`
}

func toMessageResponse(msg model.Message) messageResponse {
	resp := messageResponse{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		SenderName:     msg.SenderName,
		RecipientID:    msg.RecipientID,
		RecipientName:  msg.RecipientName,
		Content:        msg.Content,
		Type:           string(msg.Type),
		Status:         string(msg.Status),
		IsEdited:       msg.IsEdited,
		CreatedAt:      msg.CreatedAt.UTC().Format(time.RFC3339),
	}
	if msg.EditedAt != nil {
		resp.EditedAt = msg.EditedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// identity reads the caller identity forwarded by the gateway.
func identity(r *http.Request) (userID, userName string) {
	return r.Header.Get("X-User-Id"), r.Header.Get("X-User-Name")
}

// ConversationID is deterministic for a pair of users so both sides
// land in the same thread without coordination.
func ConversationID(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, userName := identity(r)
	if userID == "" {
		http.Error(w, "user identity required", http.StatusUnauthorized)
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.RecipientID = strings.TrimSpace(req.RecipientID)
	req.Content = strings.TrimSpace(req.Content)
	if req.RecipientID == "" || req.Content == "" {
		http.Error(w, "recipient_id and content required", http.StatusBadRequest)
		return
	}
	if len(req.Content) > 2000 {
		http.Error(w, "content too long (max 2000 characters)", http.StatusBadRequest)
		return
	}
	msgType := model.MessageType(req.Type)
	if req.Type == "" {
		msgType = model.TypeGeneral
	}
	if !model.ValidType(msgType) {
		http.Error(w, "type must be consultation, general or emergency", http.StatusBadRequest)
		return
	}
	conversationID := strings.TrimSpace(req.ConversationID)
	if conversationID == "" {
		conversationID = ConversationID(userID, req.RecipientID)
	}

	msg := model.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       userID,
		SenderName:     userName,
		RecipientID:    req.RecipientID,
		RecipientName:  req.RecipientName,
		Content:        req.Content,
		Type:           msgType,
		Status:         model.StatusSent,
	}
	if err := h.repo.Create(r.Context(), &msg); err != nil {
		h.logger.Error("message create failed", "err", err)
		http.Error(w, "failed to create message", http.StatusInternalServerError)
		return
	}

	h.publish(r.Context(), "message.created", msg)
	writeJSON(w, http.StatusCreated, toMessageResponse(msg))
}

func (h *ChatHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity(r)
	if userID == "" {
		http.Error(w, "user identity required", http.StatusUnauthorized)
		return
	}

	conversations, err := h.repo.ListUserConversations(r.Context(), userID)
	if err != nil {
		h.logger.Error("conversation list failed", "err", err)
		http.Error(w, "failed to list conversations", http.StatusInternalServerError)
		return
	}

	resp := make([]conversationResponse, 0, len(conversations))
	for _, conv := range conversations {
		resp = append(resp, conversationResponse{
			ConversationID: conv.ConversationID,
			LastMessage:    toMessageResponse(conv.LastMessage),
			UnreadCount:    conv.UnreadCount,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity(r)
	if userID == "" {
		http.Error(w, "user identity required", http.StatusUnauthorized)
		return
	}
	conversationID := r.PathValue("conversationId")

	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "page must be a positive integer", http.StatusBadRequest)
			return
		}
		page = n
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 200 {
			http.Error(w, "limit must be between 1 and 200", http.StatusBadRequest)
			return
		}
		limit = n
	}

	messages, total, err := h.repo.ListConversation(r.Context(), conversationID, page, limit)
	if err != nil {
		h.logger.Error("message list failed", "err", err)
		http.Error(w, "failed to list messages", http.StatusInternalServerError)
		return
	}

	resp := messageListResponse{
		Messages: make([]messageResponse, 0, len(messages)),
		Total:    total,
		Page:     page,
		Limit:    limit,
	}
	for _, msg := range messages {
		resp.Messages = append(resp.Messages, toMessageResponse(msg))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ChatHandler) Edit(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity(r)
	if userID == "" {
		http.Error(w, "user identity required", http.StatusUnauthorized)
		return
	}
	id := r.PathValue("id")

	var req editMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		http.Error(w, "content required", http.StatusBadRequest)
		return
	}
	if len(req.Content) > 2000 {
		http.Error(w, "content too long (max 2000 characters)", http.StatusBadRequest)
		return
	}

	msg, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "message not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load message", http.StatusInternalServerError)
		return
	}
	if msg.SenderID != userID {
		http.Error(w, "only the sender can edit a message", http.StatusForbidden)
		return
	}
	if !msg.Editable(userID, time.Now()) {
		http.Error(w, "messages can only be edited within 5 minutes of sending", http.StatusBadRequest)
		return
	}

	updated, err := h.repo.Edit(r.Context(), id, req.Content)
	if err != nil {
		h.logger.Error("message edit failed", "err", err)
		http.Error(w, "failed to edit message", http.StatusInternalServerError)
		return
	}

	h.publish(r.Context(), "message.edited", updated)
	writeJSON(w, http.StatusOK, toMessageResponse(updated))
}

func (h *ChatHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity(r)
	if userID == "" {
		http.Error(w, "user identity required", http.StatusUnauthorized)
		return
	}
	id := r.PathValue("id")

	msg, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "message not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load message", http.StatusInternalServerError)
		return
	}
	if msg.SenderID != userID {
		http.Error(w, "only the sender can delete a message", http.StatusForbidden)
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "message not found", http.StatusNotFound)
			return
		}
		h.logger.Error("message delete failed", "err", err)
		http.Error(w, "failed to delete message", http.StatusInternalServerError)
		return
	}

	h.publish(r.Context(), "message.deleted", msg)
	w.WriteHeader(http.StatusNoContent)
}

func (h *ChatHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity(r)
	if userID == "" {
		http.Error(w, "user identity required", http.StatusUnauthorized)
		return
	}
	id := r.PathValue("id")

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	status := model.Status(req.Status)
	if !model.ValidStatus(status) {
		http.Error(w, "status must be sent, delivered or read", http.StatusBadRequest)
		return
	}

	msg, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "message not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load message", http.StatusInternalServerError)
		return
	}
	if msg.RecipientID != userID {
		http.Error(w, "only the recipient can update message status", http.StatusForbidden)
		return
	}

	if err := h.repo.UpdateStatus(r.Context(), id, status); err != nil {
		h.logger.Error("status update failed", "err", err)
		http.Error(w, "failed to update status", http.StatusInternalServerError)
		return
	}

	msg.Status = status
	h.publish(r.Context(), "message.status", msg)
	writeJSON(w, http.StatusOK, toMessageResponse(msg))
}

func (h *ChatHandler) MarkConversationRead(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity(r)
	if userID == "" {
		http.Error(w, "user identity required", http.StatusUnauthorized)
		return
	}
	conversationID := r.PathValue("conversationId")

	updated, err := h.repo.MarkConversationRead(r.Context(), conversationID, userID)
	if err != nil {
		h.logger.Error("mark read failed", "err", err)
		http.Error(w, "failed to mark conversation read", http.StatusInternalServerError)
		return
	}

	if updated > 0 && h.pub != nil {
		h.pub.Publish(r.Context(), relay.Frame{
			Kind:           "conversation.read",
			ConversationID: conversationID,
			Timestamp:      time.Now().UTC(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": updated})
}

func (h *ChatHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity(r)
	if userID == "" {
		http.Error(w, "user identity required", http.StatusUnauthorized)
		return
	}

	count, err := h.repo.UnreadCount(r.Context(), userID)
	if err != nil {
		h.logger.Error("unread count failed", "err", err)
		http.Error(w, "failed to count unread messages", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread_count": count})
}

func (h *ChatHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity(r)
	if userID == "" {
		http.Error(w, "user identity required", http.StatusUnauthorized)
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		http.Error(w, "q query parameter required", http.StatusBadRequest)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 200 {
			http.Error(w, "limit must be between 1 and 200", http.StatusBadRequest)
			return
		}
		limit = n
	}

	messages, err := h.repo.Search(r.Context(), userID, query, limit)
	if err != nil {
		h.logger.Error("message search failed", "err", err)
		http.Error(w, "failed to search messages", http.StatusInternalServerError)
		return
	}

	resp := make([]messageResponse, 0, len(messages))
	for _, msg := range messages {
		resp = append(resp, toMessageResponse(msg))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ChatHandler) publish(ctx context.Context, kind string, msg model.Message) {
	if h.pub == nil {
		return
	}
	data, err := json.Marshal(toMessageResponse(msg))
	if err != nil {
		h.logger.Error("relay payload marshal failed", "err", err)
		return
	}
	h.pub.Publish(ctx, relay.Frame{
		Kind:           kind,
		ConversationID: msg.ConversationID,
		Timestamp:      time.Now().UTC(),
		Data:           data,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
