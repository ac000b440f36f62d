package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hiramGL/CriolloListApp/internal/api/middleware"
	"github.com/hiramGL/CriolloListApp/internal/chat"
)

// ResolveConversationRequest represents the conversation resolve request body.
type ResolveConversationRequest struct {
	UserID string `json:"user_id"` // The counterpart to open a conversation with
}

// ResolveConversationResponse represents the resolve response.
type ResolveConversationResponse struct {
	ID            string `json:"id"`
	Participant1  string `json:"participant_1"`
	Participant2  string `json:"participant_2"`
	CreatedAt     string `json:"created_at"`
	CounterpartID string `json:"counterpart_id"`
}

// ResolveConversation finds or creates the conversation between the caller
// and another user. POSTing the same pair repeatedly returns the same
// conversation, whichever side initiates.
func (h *Handler) ResolveConversation(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req ResolveConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	counterpartID, err := uuid.Parse(req.UserID)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid user ID format")
		return
	}

	counterpart, err := h.db.GetUserByID(r.Context(), counterpartID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if counterpart == nil {
		h.Error(w, http.StatusNotFound, "user not found")
		return
	}

	conv, err := h.chat.Resolve(r.Context(), user.ID, counterpartID)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrSelfConversation):
			h.Error(w, http.StatusBadRequest, "cannot open a conversation with yourself")
		case errors.Is(err, chat.ErrMissingParticipant):
			h.Error(w, http.StatusBadRequest, "missing participant")
		default:
			h.logger.Error().Err(err).Msg("conversation resolve failed")
			h.Error(w, http.StatusInternalServerError, "database error")
		}
		return
	}

	h.JSON(w, http.StatusOK, ResolveConversationResponse{
		ID:            conv.ID.String(),
		Participant1:  conv.Participant1.String(),
		Participant2:  conv.Participant2.String(),
		CreatedAt:     conv.CreatedAt.UTC().Format(time.RFC3339),
		CounterpartID: counterpartID.String(),
	})
}

// ListConversations returns the caller's conversations, newest activity
// first, each carrying the counterpart's name and avatar and a preview of
// the latest message.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	summaries, err := h.chat.ListConversations(r.Context(), user.ID)
	if err != nil {
		h.logger.Error().Err(err).Msg("conversation list failed")
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	h.JSON(w, http.StatusOK, map[string]interface{}{"conversations": summaries})
}
