package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hiramGL/CriolloListApp/internal/api/middleware"
	"github.com/hiramGL/CriolloListApp/internal/chat"
	"github.com/hiramGL/CriolloListApp/internal/realtime"
)

const wsReadTimeout = 60 * time.Second

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The bearer token gates access; origins are not restricted.
		return true
	},
}

// wsInboundFrame represents a client frame on the chat socket.
type wsInboundFrame struct {
	Type           string `json:"type"` // "select" or "message"
	ConversationID string `json:"conversation_id,omitempty"`
	Content        string `json:"content,omitempty"`
}

// wsErrorFrame represents an error frame sent to the client.
type wsErrorFrame struct {
	Type  string `json:"type"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

// wsHistoryFrame carries the full history of the selected conversation.
type wsHistoryFrame struct {
	Type           string            `json:"type"`
	ConversationID string            `json:"conversation_id"`
	Messages       []MessageResponse `json:"messages"`
}

// wsMessageFrame carries one live message for the selected conversation.
type wsMessageFrame struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversation_id"`
	Message        MessageResponse `json:"message"`
}

// ChatSocket upgrades the connection and serves the realtime chat session.
// The client selects one conversation at a time; selecting a new one swaps
// the feed, so frames from the previous conversation stop before the new
// history arrives.
func (h *Handler) ChatSocket(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if !h.chat.HasFeed() {
		h.Error(w, http.StatusServiceUnavailable, "realtime is not available")
		return
	}

	ws, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the response; just log and return.
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := realtime.NewConnection(user.ID, ws)
	conn.Start()

	session := &chatSession{h: h, conn: conn, userID: user.ID}
	defer session.teardown()

	ws.SetReadLimit(1 << 16)
	_ = ws.SetReadDeadline(time.Now().Add(wsReadTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	_ = conn.SendJSON(map[string]string{"type": "connected"})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
				errors.Is(err, websocket.ErrCloseSent) {
				return
			}
			session.replyError("read_error", "could not read frame")
			return
		}

		var frame wsInboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			session.replyError("bad_request", "invalid payload")
			continue
		}

		switch frame.Type {
		case "select":
			session.handleSelect(r.Context(), frame)
		case "message":
			session.handleMessage(r.Context(), frame)
		default:
			session.replyError("unsupported_type", "unknown frame type")
		}
	}
}

// chatSession tracks the single selected conversation feed of one socket.
// All fields are touched only from the read loop goroutine.
type chatSession struct {
	h      *Handler
	conn   *realtime.Connection
	userID uuid.UUID

	feed     *chat.Feed
	pumpDone chan struct{}
}

func (s *chatSession) handleSelect(ctx context.Context, frame wsInboundFrame) {
	convID, err := uuid.Parse(frame.ConversationID)
	if err != nil {
		s.replyError("bad_request", "invalid conversation ID format")
		return
	}

	conv, err := s.h.chat.Membership(ctx, convID, s.userID)
	if err != nil {
		if errors.Is(err, chat.ErrNotParticipant) {
			s.replyError("forbidden", "not a participant of this conversation")
			return
		}
		s.replyError("internal_error", "database error")
		return
	}
	if conv == nil {
		s.replyError("not_found", "conversation not found")
		return
	}

	// Open the new feed before closing the old one so no insert falls in
	// the gap between subscriptions.
	feed, err := s.h.chat.OpenFeed(ctx, convID)
	if err != nil {
		s.replyError("internal_error", "could not open conversation feed")
		return
	}
	s.closeFeed()
	s.feed = feed

	// The history frame must reach the client before any message frame,
	// so the pump is not started until it has been queued. Rows arriving
	// meanwhile wait in the feed's buffer.
	history := feed.Messages()
	resp := wsHistoryFrame{
		Type:           "history",
		ConversationID: convID.String(),
		Messages:       make([]MessageResponse, 0, len(history)),
	}
	inHistory := make(map[string]struct{}, len(history))
	for _, m := range history {
		resp.Messages = append(resp.Messages, toMessageResponse(m))
		inHistory[m.ID] = struct{}{}
	}
	_ = s.conn.SendJSON(resp)

	s.pumpDone = make(chan struct{})
	go s.pump(feed, inHistory, s.pumpDone)
}

func (s *chatSession) handleMessage(ctx context.Context, frame wsInboundFrame) {
	if s.feed == nil {
		s.replyError("bad_request", "no conversation selected")
		return
	}

	_, err := s.h.chat.Send(ctx, s.feed.ConversationID, s.userID, frame.Content)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyMessage) {
			s.replyError("bad_request", "message content cannot be empty")
			return
		}
		s.replyError("internal_error", "message send failed")
		return
	}
	// Delivery to this socket happens through the feed, the same path
	// every other subscriber sees.
}

// closeFeed detaches the current feed and waits for its pump to stop, so
// no frame from the old conversation can follow the next history frame.
func (s *chatSession) closeFeed() {
	if s.feed == nil {
		return
	}
	s.feed.Close()
	if s.pumpDone != nil {
		<-s.pumpDone
	}
	s.feed = nil
	s.pumpDone = nil
}

// pump forwards live messages as frames. Rows already delivered inside
// the history frame are skipped, covering the window between the feed
// subscription and the history snapshot.
func (s *chatSession) pump(feed *chat.Feed, delivered map[string]struct{}, done chan struct{}) {
	defer close(done)
	for msg := range feed.Updates() {
		if _, dup := delivered[msg.ID]; dup {
			continue
		}
		frame := wsMessageFrame{
			Type:           "message",
			ConversationID: feed.ConversationID.String(),
			Message:        toMessageResponse(msg),
		}
		if err := s.conn.SendJSON(frame); err != nil {
			feed.Close()
			return
		}
	}
}

func (s *chatSession) replyError(code, message string) {
	_ = s.conn.SendJSON(wsErrorFrame{Type: "error", Code: code, Error: message})
}

func (s *chatSession) teardown() {
	s.closeFeed()
	s.conn.Close(websocket.CloseNormalClosure, "session closed")
}
