package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/hiramGL/CriolloListApp/internal/chat"
	"github.com/hiramGL/CriolloListApp/internal/store"
)

// emailRegex validates email addresses per RFC 5322 (simplified).
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	db     store.DataStore
	redis  *store.RedisStore
	chat   *chat.Service
	tasks  *asynq.Client
	logger zerolog.Logger
}

// NewHandler creates a new Handler with the given dependencies. The redis
// store and task client may be nil; handlers that depend on them degrade
// to their database-only paths.
func NewHandler(db store.DataStore, redis *store.RedisStore, chatSvc *chat.Service, tasks *asynq.Client, logger zerolog.Logger) *Handler {
	return &Handler{db: db, redis: redis, chat: chatSvc, tasks: tasks, logger: logger}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// sanitizeText trims and limits a free-text field, removing control
// characters. Truncation lands on a rune boundary so the stored value
// stays valid UTF-8.
func sanitizeText(s string, max int) string {
	s = strings.TrimSpace(s)

	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' {
			return -1
		}
		return r
	}, s)

	if len(s) > max {
		cut := max
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}

	return s
}

// isValidEmail validates email addresses using RFC 5322 pattern.
func isValidEmail(email string) bool {
	if email == "" {
		return true // Empty is valid (optional field)
	}
	if len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}
