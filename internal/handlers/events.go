package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hiramGL/CriolloListApp/internal/api/middleware"
	"github.com/hiramGL/CriolloListApp/internal/models"
)

// CreateEventRequest represents the event creation request body.
type CreateEventRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	StartsAt    time.Time `json:"starts_at"`
}

// EventListResponse represents the events response.
type EventListResponse struct {
	Events []models.Event `json:"events"`
}

// ListEvents returns events for one calendar day. The `date` query param is
// YYYY-MM-DD; today when absent.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	day := time.Now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
			return
		}
		day = parsed
	}

	events, err := h.db.ListEventsByDate(r.Context(), day)
	if err != nil {
		h.logger.Error().Err(err).Msg("event list failed")
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	h.JSON(w, http.StatusOK, EventListResponse{Events: events})
}

// CreateEvent adds a campus event created by the caller.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	title := sanitizeText(req.Title, maxTitleLength)
	if title == "" {
		h.Error(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.StartsAt.IsZero() {
		h.Error(w, http.StatusBadRequest, "starts_at is required")
		return
	}

	createdBy := user.ID
	ev := &models.Event{
		Title:       title,
		Description: sanitizeText(req.Description, maxDescriptionLength),
		Location:    sanitizeText(req.Location, 200),
		StartsAt:    req.StartsAt,
		CreatedBy:   &createdBy,
	}

	created, err := h.db.CreateEvent(r.Context(), ev)
	if err != nil {
		h.logger.Error().Err(err).Msg("event create failed")
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	h.JSON(w, http.StatusCreated, created)
}
