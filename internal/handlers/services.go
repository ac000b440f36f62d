package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hiramGL/CriolloListApp/internal/api/middleware"
	"github.com/hiramGL/CriolloListApp/internal/metrics"
	"github.com/hiramGL/CriolloListApp/internal/models"
	"github.com/hiramGL/CriolloListApp/internal/worker"
)

const (
	maxTitleLength       = 120
	maxDescriptionLength = 2000
	defaultPageSize      = 20
	maxPageSize          = 100
)

// CreateServiceRequest represents the listing creation request body.
type CreateServiceRequest struct {
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	CategoryID   int64   `json:"category_id"`
	Price        float64 `json:"price"`
	ContactEmail string  `json:"contact_email"`
	ContactPhone string  `json:"contact_phone"`
	ImageURLs    string  `json:"image_urls"`
}

// ServiceListResponse represents the listings response.
type ServiceListResponse struct {
	Services []models.Service `json:"services"`
}

// CreateService creates a marketplace listing owned by the caller and
// enqueues it for search indexing.
func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CreateServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	title := sanitizeText(req.Title, maxTitleLength)
	if title == "" {
		h.Error(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.CategoryID <= 0 {
		h.Error(w, http.StatusBadRequest, "category_id is required")
		return
	}
	if !isValidEmail(req.ContactEmail) {
		h.Error(w, http.StatusBadRequest, "invalid contact email")
		return
	}

	svc := &models.Service{
		UserID:       user.ID,
		CategoryID:   req.CategoryID,
		Title:        title,
		Description:  sanitizeText(req.Description, maxDescriptionLength),
		Price:        req.Price,
		ContactEmail: req.ContactEmail,
		ContactPhone: sanitizeText(req.ContactPhone, 32),
		ImageURLs:    req.ImageURLs,
	}

	created, err := h.db.CreateService(r.Context(), svc)
	if err != nil {
		h.logger.Error().Err(err).Msg("service create failed")
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	metrics.ServicesCreated.Inc()

	h.enqueueIndex(created)

	h.JSON(w, http.StatusCreated, created)
}

// enqueueIndex schedules search indexing for a listing. Failure is logged
// only; the listing still exists and SQL search covers it.
func (h *Handler) enqueueIndex(svc *models.Service) {
	if h.tasks == nil {
		return
	}
	task, err := worker.NewServiceIndexTask(svc.ID)
	if err == nil {
		_, err = h.tasks.Enqueue(task)
	}
	if err != nil {
		h.logger.Warn().Err(err).Str("service_id", svc.ID.String()).Msg("index task enqueue failed")
	}
}

// ListServices returns listings, filtered by category and search query.
// When redis has an index hit for the query, results come from it; the
// database query is the fallback.
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var categoryID int64
	if raw := q.Get("category_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			h.Error(w, http.StatusBadRequest, "invalid category_id")
			return
		}
		categoryID = id
	}

	limit := defaultPageSize
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= maxPageSize {
			limit = n
		}
	}
	offset := 0
	if raw := q.Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			offset = n
		}
	}

	query := sanitizeText(q.Get("q"), 200)
	if query != "" {
		metrics.SearchQueries.Inc()
	}

	if query != "" && categoryID == 0 && offset == 0 && h.redis != nil {
		if services, ok := h.searchViaIndex(r, query, limit); ok {
			h.JSON(w, http.StatusOK, ServiceListResponse{Services: services})
			return
		}
	}

	services, err := h.db.ListServices(r.Context(), categoryID, query, limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("service list failed")
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	h.JSON(w, http.StatusOK, ServiceListResponse{Services: services})
}

// searchViaIndex resolves a search query through the redis word index.
// Returns ok=false when the index has nothing, letting SQL take over.
func (h *Handler) searchViaIndex(r *http.Request, query string, limit int) ([]models.Service, bool) {
	ids, err := h.redis.SearchServiceIDs(r.Context(), query, limit)
	if err != nil {
		h.logger.Warn().Err(err).Msg("redis search failed, falling back to SQL")
		return nil, false
	}
	if len(ids) == 0 {
		return nil, false
	}

	services := make([]models.Service, 0, len(ids))
	for _, id := range ids {
		svc, err := h.db.GetService(r.Context(), id)
		if err != nil {
			h.logger.Warn().Err(err).Msg("service hydrate failed, falling back to SQL")
			return nil, false
		}
		if svc != nil {
			services = append(services, *svc)
		}
	}
	return services, true
}

// GetService returns a single listing.
func (h *Handler) GetService(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid service ID format")
		return
	}

	svc, err := h.db.GetService(r.Context(), id)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if svc == nil {
		h.Error(w, http.StatusNotFound, "service not found")
		return
	}

	h.JSON(w, http.StatusOK, svc)
}

// ListMyServices returns the caller's own listings.
func (h *Handler) ListMyServices(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	services, err := h.db.ListServicesByUser(r.Context(), user.ID)
	if err != nil {
		h.logger.Error().Err(err).Msg("own service list failed")
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	h.JSON(w, http.StatusOK, ServiceListResponse{Services: services})
}

// DeleteService removes a listing the caller owns and schedules its
// removal from the search index.
func (h *Handler) DeleteService(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid service ID format")
		return
	}

	// Snapshot before delete; the deindex task needs the indexed words.
	svc, err := h.db.GetService(r.Context(), id)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if svc == nil {
		h.Error(w, http.StatusNotFound, "service not found")
		return
	}

	deleted, err := h.db.DeleteService(r.Context(), id, user.ID)
	if err != nil {
		h.logger.Error().Err(err).Msg("service delete failed")
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if !deleted {
		h.Error(w, http.StatusForbidden, "only the owner can delete a listing")
		return
	}

	if h.tasks != nil {
		task, err := worker.NewServiceDeindexTask(svc.ID, svc.Title, svc.Description)
		if err == nil {
			_, err = h.tasks.Enqueue(task)
		}
		if err != nil {
			h.logger.Warn().Err(err).Str("service_id", svc.ID.String()).Msg("deindex task enqueue failed")
		}
	}

	w.WriteHeader(http.StatusNoContent)
}
