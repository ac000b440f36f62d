package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hiramGL/CriolloListApp/internal/models"
	"github.com/hiramGL/CriolloListApp/internal/store"
)

type contextKey string

const UserContextKey contextKey = "user"

// AuthMiddleware resolves the authenticated user from the bearer token the
// hosted identity provider issues. Credentials themselves are never handled
// here; the token's subject claim is the user ID, and the matching profile
// row is created on first sight.
type AuthMiddleware struct {
	db     store.DataStore
	secret []byte
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(db store.DataStore, secret string) *AuthMiddleware {
	return &AuthMiddleware{db: db, secret: []byte(secret)}
}

// RequireAuth verifies the Authorization bearer JWT and injects the user
// into the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, errMsg := m.resolve(r)
		if user == nil {
			jsonError(w, http.StatusUnauthorized, errMsg)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// resolve parses the bearer token and loads (or bootstraps) the user row.
// Returns a nil user and a reason string on failure.
func (m *AuthMiddleware) resolve(r *http.Request) (*models.User, string) {
	token := bearerToken(r)
	if token == "" {
		return nil, "missing bearer token"
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return nil, "invalid token"
	}

	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return nil, "token has no subject"
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, "token subject is not a user ID"
	}

	user, err := m.db.GetUserByID(r.Context(), userID)
	if err != nil {
		return nil, "user lookup failed"
	}
	if user == nil {
		// First authenticated request: mirror the identity provider's
		// account as a profile row. Display name may come along as a claim.
		fullName := ""
		if claims, ok := parsed.Claims.(jwt.MapClaims); ok {
			if name, ok := claims["full_name"].(string); ok {
				fullName = name
			}
		}
		user, err = m.db.UpsertUser(r.Context(), &models.User{ID: userID, FullName: fullName})
		if err != nil {
			return nil, "user bootstrap failed"
		}
	}

	return user, ""
}

// bearerToken extracts the token from the Authorization header, falling
// back to the access_token query parameter for websocket clients that
// cannot set headers.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("access_token")
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// GetUserFromContext retrieves the authenticated user from the request context.
func GetUserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}
