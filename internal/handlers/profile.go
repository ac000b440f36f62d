package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hiramGL/CriolloListApp/internal/api/middleware"
)

// UpdateProfileRequest represents the profile update request body.
// Absent fields stay untouched.
type UpdateProfileRequest struct {
	FullName     *string `json:"full_name,omitempty"`
	ProfileImage *string `json:"profile_image,omitempty"`
	Bio          *string `json:"bio,omitempty"`
	Major        *string `json:"major,omitempty"`
}

// GetMyProfile returns the caller's profile.
func (h *Handler) GetMyProfile(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}
	h.JSON(w, http.StatusOK, user)
}

// UpdateMyProfile patches the caller's profile fields.
func (h *Handler) UpdateMyProfile(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.FullName != nil {
		name := sanitizeText(*req.FullName, 100)
		if name == "" {
			h.Error(w, http.StatusBadRequest, "full_name cannot be empty")
			return
		}
		req.FullName = &name
	}
	if req.Bio != nil {
		bio := sanitizeText(*req.Bio, 1000)
		req.Bio = &bio
	}
	if req.Major != nil {
		major := sanitizeText(*req.Major, 100)
		req.Major = &major
	}

	updated, err := h.db.UpdateUserProfile(r.Context(), user.ID, req.FullName, req.ProfileImage, req.Bio, req.Major)
	if err != nil {
		h.logger.Error().Err(err).Msg("profile update failed")
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if updated == nil {
		h.Error(w, http.StatusNotFound, "profile not found")
		return
	}

	h.JSON(w, http.StatusOK, updated)
}

// GetUser returns another user's public profile.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid user ID format")
		return
	}

	user, err := h.db.GetUserByID(r.Context(), id)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if user == nil {
		h.Error(w, http.StatusNotFound, "user not found")
		return
	}

	h.JSON(w, http.StatusOK, user)
}
