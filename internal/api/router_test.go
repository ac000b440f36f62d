package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiramGL/CriolloListApp/internal/chat"
	"github.com/hiramGL/CriolloListApp/internal/store"
)

const testSecret = "test-secret"

// createTestRouter wires a router over a real SQLite store. No redis, no
// task queue: realtime and indexing stay off, everything else works.
func createTestRouter(t *testing.T) (*chi.Mux, *store.SQLiteStore) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.NewSQLiteStore(context.Background(), dbPath)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	chatSvc := chat.NewService(s, nil, zerolog.Nop())
	return NewRouter(zerolog.Nop(), s, nil, chatSvc, nil, testSecret), s
}

// signToken issues a bearer token the way the identity provider would.
func signToken(t *testing.T, userID uuid.UUID, fullName string) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":       userID.String(),
		"full_name": fullName,
		"exp":       time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(out))
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := createTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	decodeBody(t, rec, &body)
	assert.Equal(t, "healthy", body["status"])
}

func TestAuthRequired(t *testing.T) {
	router, _ := createTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsWrongSecret(t *testing.T) {
	router, _ := createTestRouter(t)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": uuid.New().String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("some-other-secret"))
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodGet, "/me", signed, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthBootstrapsProfileOnFirstRequest(t *testing.T) {
	router, s := createTestRouter(t)

	userID := uuid.New()
	rec := doJSON(t, router, http.MethodGet, "/me", signToken(t, userID, "Nina Colon"), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	decodeBody(t, rec, &body)
	assert.Equal(t, "Nina Colon", body["full_name"])

	user, err := s.GetUserByID(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "Nina Colon", user.FullName)
}

func TestProfilePatch(t *testing.T) {
	router, _ := createTestRouter(t)
	token := signToken(t, uuid.New(), "Before Name")

	rec := doJSON(t, router, http.MethodPatch, "/me", token, map[string]string{
		"full_name": "After Name",
		"major":     "Computer Science",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	decodeBody(t, rec, &body)
	assert.Equal(t, "After Name", body["full_name"])
	assert.Equal(t, "Computer Science", body["major"])
}

func TestResolveConversationIsIdempotent(t *testing.T) {
	router, _ := createTestRouter(t)

	aliceID, bobID := uuid.New(), uuid.New()
	aliceToken := signToken(t, aliceID, "Alice")
	bobToken := signToken(t, bobID, "Bob")

	// Bootstrap both profiles.
	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodGet, "/me", aliceToken, nil).Code)
	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodGet, "/me", bobToken, nil).Code)

	rec := doJSON(t, router, http.MethodPost, "/conversations", aliceToken, map[string]string{
		"user_id": bobID.String(),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var first map[string]interface{}
	decodeBody(t, rec, &first)

	// Bob opening the chat from his side gets the same conversation.
	rec = doJSON(t, router, http.MethodPost, "/conversations", bobToken, map[string]string{
		"user_id": aliceID.String(),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var second map[string]interface{}
	decodeBody(t, rec, &second)

	assert.Equal(t, first["id"], second["id"])
}

func TestResolveConversationRejectsSelf(t *testing.T) {
	router, _ := createTestRouter(t)

	id := uuid.New()
	token := signToken(t, id, "Solo")
	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodGet, "/me", token, nil).Code)

	rec := doJSON(t, router, http.MethodPost, "/conversations", token, map[string]string{
		"user_id": id.String(),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResolveConversationUnknownCounterpart(t *testing.T) {
	router, _ := createTestRouter(t)

	token := signToken(t, uuid.New(), "Alice")
	rec := doJSON(t, router, http.MethodPost, "/conversations", token, map[string]string{
		"user_id": uuid.New().String(),
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMessageFlow(t *testing.T) {
	router, _ := createTestRouter(t)

	aliceID, bobID, carolID := uuid.New(), uuid.New(), uuid.New()
	aliceToken := signToken(t, aliceID, "Alice")
	bobToken := signToken(t, bobID, "Bob")
	carolToken := signToken(t, carolID, "Carol")

	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodGet, "/me", aliceToken, nil).Code)
	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodGet, "/me", bobToken, nil).Code)
	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodGet, "/me", carolToken, nil).Code)

	rec := doJSON(t, router, http.MethodPost, "/conversations", aliceToken, map[string]string{
		"user_id": bobID.String(),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var conv map[string]interface{}
	decodeBody(t, rec, &conv)
	convID := conv["id"].(string)

	msgPath := fmt.Sprintf("/conversations/%s/messages", convID)

	rec = doJSON(t, router, http.MethodPost, msgPath, aliceToken, map[string]string{
		"content": "hey bob",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, msgPath, aliceToken, map[string]string{
		"content": "   ",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Both participants can read; outsiders cannot.
	rec = doJSON(t, router, http.MethodGet, msgPath, bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history struct {
		Messages []struct {
			Content  string `json:"content"`
			SenderID string `json:"sender_id"`
		} `json:"messages"`
	}
	decodeBody(t, rec, &history)
	require.Len(t, history.Messages, 1)
	assert.Equal(t, "hey bob", history.Messages[0].Content)
	assert.Equal(t, aliceID.String(), history.Messages[0].SenderID)

	rec = doJSON(t, router, http.MethodGet, msgPath, carolToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodPost, msgPath, carolToken, map[string]string{
		"content": "let me in",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestConversationListShowsCounterpartAndPreview(t *testing.T) {
	router, _ := createTestRouter(t)

	aliceID, bobID := uuid.New(), uuid.New()
	aliceToken := signToken(t, aliceID, "Alice")
	bobToken := signToken(t, bobID, "Bob Vega")

	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodGet, "/me", aliceToken, nil).Code)
	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodGet, "/me", bobToken, nil).Code)

	rec := doJSON(t, router, http.MethodPost, "/conversations", aliceToken, map[string]string{
		"user_id": bobID.String(),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var conv map[string]interface{}
	decodeBody(t, rec, &conv)

	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/conversations/%s/messages", conv["id"]), bobToken, map[string]string{
		"content": "is the bike still available?",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/conversations", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Conversations []struct {
			Name    string `json:"name"`
			Preview string `json:"preview"`
		} `json:"conversations"`
	}
	decodeBody(t, rec, &list)
	require.Len(t, list.Conversations, 1)
	assert.Equal(t, "Bob Vega", list.Conversations[0].Name)
	assert.Equal(t, "is the bike still available?", list.Conversations[0].Preview)
}

func TestServiceEndpoints(t *testing.T) {
	router, _ := createTestRouter(t)

	ownerToken := signToken(t, uuid.New(), "Owner")
	otherToken := signToken(t, uuid.New(), "Other")
	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodGet, "/me", ownerToken, nil).Code)
	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodGet, "/me", otherToken, nil).Code)

	rec := doJSON(t, router, http.MethodPost, "/services", ownerToken, map[string]interface{}{
		"title":       "Resume review",
		"description": "Fast turnaround",
		"category_id": 3,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]interface{}
	decodeBody(t, rec, &created)
	svcID := created["id"].(string)

	// Missing title is rejected.
	rec = doJSON(t, router, http.MethodPost, "/services", ownerToken, map[string]interface{}{
		"title":       "  ",
		"category_id": 3,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Public browse and search.
	rec = doJSON(t, router, http.MethodGet, "/services?q=resume", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Services []map[string]interface{} `json:"services"`
	}
	decodeBody(t, rec, &list)
	require.Len(t, list.Services, 1)

	// Delete is owner-only.
	rec = doJSON(t, router, http.MethodDelete, "/services/"+svcID, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/services/"+svcID, ownerToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/services/"+svcID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCategoriesPublic(t *testing.T) {
	router, _ := createTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/categories", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Categories []struct {
			Name string `json:"name"`
		} `json:"categories"`
	}
	decodeBody(t, rec, &body)
	assert.Len(t, body.Categories, 6)
}

func TestEventEndpoints(t *testing.T) {
	router, _ := createTestRouter(t)

	token := signToken(t, uuid.New(), "Organizer")
	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodGet, "/me", token, nil).Code)

	rec := doJSON(t, router, http.MethodPost, "/events", token, map[string]interface{}{
		"title":     "Open mic night",
		"location":  "Student center",
		"starts_at": "2026-09-14T19:00:00Z",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/events?date=2026-09-14", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Events []struct {
			Title string `json:"title"`
		} `json:"events"`
	}
	decodeBody(t, rec, &list)
	require.Len(t, list.Events, 1)
	assert.Equal(t, "Open mic night", list.Events[0].Title)

	rec = doJSON(t, router, http.MethodGet, "/events?date=2026-09-15", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &list)
	assert.Empty(t, list.Events)
}
