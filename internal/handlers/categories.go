package handlers

import (
	"net/http"

	"github.com/hiramGL/CriolloListApp/internal/models"
)

// CategoryListResponse represents the category list response.
type CategoryListResponse struct {
	Categories []models.Category `json:"categories"`
}

// ListCategories returns all listing categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.db.ListCategories(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("category list failed")
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	h.JSON(w, http.StatusOK, CategoryListResponse{Categories: categories})
}
