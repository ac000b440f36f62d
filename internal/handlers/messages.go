package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hiramGL/CriolloListApp/internal/api/middleware"
	"github.com/hiramGL/CriolloListApp/internal/chat"
	"github.com/hiramGL/CriolloListApp/internal/models"
)

// SendMessageRequest represents the send message request body.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// MessageResponse represents a message in API responses.
type MessageResponse struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Content        string `json:"content"`
	CreatedAt      int64  `json:"created_at"` // Unix milliseconds
}

// MessageListResponse represents the message history response.
type MessageListResponse struct {
	Messages []MessageResponse `json:"messages"`
}

func toMessageResponse(m models.Message) MessageResponse {
	return MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID.String(),
		SenderID:       m.SenderID.String(),
		Content:        m.Content,
		CreatedAt:      m.CreatedAt.UnixMilli(),
	}
}

// conversationForMember parses the {id} URL param and verifies the caller
// participates in that conversation, writing the error response itself.
// The returned ID is uuid.Nil when the request has already been answered.
func (h *Handler) conversationForMember(w http.ResponseWriter, r *http.Request) uuid.UUID {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return uuid.Nil
	}

	convID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid conversation ID format")
		return uuid.Nil
	}

	conv, err := h.chat.Membership(r.Context(), convID, user.ID)
	if err != nil {
		if errors.Is(err, chat.ErrNotParticipant) {
			h.Error(w, http.StatusForbidden, "not a participant of this conversation")
			return uuid.Nil
		}
		h.logger.Error().Err(err).Msg("membership check failed")
		h.Error(w, http.StatusInternalServerError, "database error")
		return uuid.Nil
	}
	if conv == nil {
		h.Error(w, http.StatusNotFound, "conversation not found")
		return uuid.Nil
	}

	return convID
}

// ListMessages returns a conversation's full history, oldest first.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	convID := h.conversationForMember(w, r)
	if convID == uuid.Nil {
		return
	}

	msgs, err := h.chat.History(r.Context(), convID)
	if err != nil {
		h.logger.Error().Err(err).Msg("message history failed")
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	resp := MessageListResponse{Messages: make([]MessageResponse, 0, len(msgs))}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, toMessageResponse(m))
	}

	h.JSON(w, http.StatusOK, resp)
}

// SendMessage appends a message to a conversation the caller participates in.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	convID := h.conversationForMember(w, r)
	if convID == uuid.Nil {
		return
	}
	user := middleware.GetUserFromContext(r.Context())

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg, err := h.chat.Send(r.Context(), convID, user.ID, req.Content)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyMessage) {
			h.Error(w, http.StatusBadRequest, "message content cannot be empty")
			return
		}
		h.logger.Error().Err(err).Msg("message send failed")
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	h.JSON(w, http.StatusCreated, toMessageResponse(*msg))
}
