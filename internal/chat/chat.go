// Package chat implements the messaging core: conversation resolution,
// message append/fetch, the conversation list, and live message feeds.
package chat

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hiramGL/CriolloListApp/internal/metrics"
	"github.com/hiramGL/CriolloListApp/internal/models"
	"github.com/hiramGL/CriolloListApp/internal/store"
)

// DefaultAvatar is shown when a counterpart has no profile image or their
// profile lookup fails.
const DefaultAvatar = "/profile_pic.png"

var (
	// ErrEmptyMessage rejects empty or whitespace-only message text. No
	// store call is made; the send is a no-op.
	ErrEmptyMessage = errors.New("chat: empty message text")

	// ErrMissingParticipant rejects operations with absent identifiers.
	ErrMissingParticipant = errors.New("chat: missing participant identifier")

	// ErrSelfConversation rejects resolving a conversation with oneself.
	ErrSelfConversation = errors.New("chat: conversation requires two distinct users")

	// ErrNotParticipant rejects access to a conversation by a non-member.
	ErrNotParticipant = errors.New("chat: user is not a conversation participant")
)

// Service coordinates conversations and messages over the data store and
// the realtime change feed. The feed may be nil (no live delivery, e.g.
// development without redis); sends then rely on history fetches alone.
type Service struct {
	db     store.DataStore
	feed   store.ChangeFeed
	logger zerolog.Logger
}

// NewService creates a chat service.
func NewService(db store.DataStore, feed store.ChangeFeed, logger zerolog.Logger) *Service {
	return &Service{db: db, feed: feed, logger: logger}
}

// HasFeed reports whether live delivery is available.
func (s *Service) HasFeed() bool {
	return s.feed != nil
}

// Resolve returns the conversation for the user pair, creating it when none
// exists. Both slot orientations are checked, so the result is the same
// whichever side initiates. Sequential calls for the same pair return the
// same conversation; concurrent calls converge on one row via the store's
// unordered-pair constraint.
func (s *Service) Resolve(ctx context.Context, currentUserID, counterpartID uuid.UUID) (*models.Conversation, error) {
	if currentUserID == uuid.Nil || counterpartID == uuid.Nil {
		return nil, ErrMissingParticipant
	}
	if currentUserID == counterpartID {
		return nil, ErrSelfConversation
	}

	conv, err := s.db.FindConversation(ctx, currentUserID, counterpartID)
	if err != nil {
		return nil, err
	}
	if conv != nil {
		return conv, nil
	}

	conv, err = s.db.CreateConversation(ctx, currentUserID, counterpartID)
	if err != nil {
		return nil, err
	}
	if conv != nil {
		metrics.ConversationsCreated.Inc()
		return conv, nil
	}

	// Lost a creation race; the row exists now.
	conv, err = s.db.FindConversation(ctx, currentUserID, counterpartID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, errors.New("chat: conversation insert raced and lookup found nothing")
	}
	return conv, nil
}

// Membership returns the conversation if the user participates in it.
// A nil conversation with nil error means the conversation does not exist.
func (s *Service) Membership(ctx context.Context, conversationID, userID uuid.UUID) (*models.Conversation, error) {
	conv, err := s.db.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, nil
	}
	if _, ok := conv.Counterpart(userID); !ok {
		return nil, ErrNotParticipant
	}
	return conv, nil
}

// Send validates and appends a message, then publishes it to the change
// feed. Validation failures happen before any store call. A publish
// failure is logged but does not fail the send: the row is durable and
// reachable through History.
func (s *Service) Send(ctx context.Context, conversationID, senderID uuid.UUID, text string) (*models.Message, error) {
	if conversationID == uuid.Nil || senderID == uuid.Nil {
		return nil, ErrMissingParticipant
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	msg := &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        text,
	}
	if err := s.db.InsertMessage(ctx, msg); err != nil {
		return nil, err
	}
	metrics.MessagesSent.Inc()

	if s.feed != nil {
		if err := s.feed.PublishMessage(ctx, msg); err != nil {
			s.logger.Warn().
				Err(err).
				Str("message_id", msg.ID).
				Str("conversation_id", conversationID.String()).
				Msg("message stored but realtime publish failed")
		}
	}

	return msg, nil
}

// History returns all messages of a conversation ordered oldest first.
// A conversation with no messages yields an empty slice, not an error.
func (s *Service) History(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	return s.db.ListMessages(ctx, conversationID)
}

// ListConversations returns the user's conversations enriched with the
// counterpart's identity and a latest-message preview, ordered by most
// recent activity. A failed counterpart or preview lookup degrades that
// entry to placeholders instead of aborting the list.
func (s *Service) ListConversations(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error) {
	convs, err := s.db.ListConversationsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	type sortable struct {
		summary models.ConversationSummary
		at      time.Time
		empty   bool
	}

	entries := make([]sortable, 0, len(convs))
	for _, conv := range convs {
		sum := models.ConversationSummary{
			ID:      conv.ID,
			Name:    "Unknown",
			Avatar:  DefaultAvatar,
			Preview: "No messages yet",
		}
		activity := conv.CreatedAt

		if counterpartID, ok := conv.Counterpart(userID); ok {
			sum.CounterpartID = counterpartID
			counterpart, err := s.db.GetUserByID(ctx, counterpartID)
			switch {
			case err != nil:
				s.logger.Debug().
					Err(err).
					Str("conversation_id", conv.ID.String()).
					Msg("counterpart lookup failed, degrading entry")
			case counterpart != nil:
				if counterpart.FullName != "" {
					sum.Name = counterpart.FullName
				}
				if counterpart.ProfileImage != "" {
					sum.Avatar = counterpart.ProfileImage
				}
			}
		}

		empty := true
		last, err := s.db.LatestMessage(ctx, conv.ID)
		if err != nil {
			s.logger.Debug().
				Err(err).
				Str("conversation_id", conv.ID.String()).
				Msg("preview lookup failed, degrading entry")
		} else if last != nil {
			sum.Preview = last.Content
			at := last.CreatedAt
			sum.LastActivityAt = &at
			activity = last.CreatedAt
			empty = false
		}

		entries = append(entries, sortable{summary: sum, at: activity, empty: empty})
	}

	// Newest message first; conversations without messages go last,
	// newest created first among themselves.
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].empty != entries[j].empty {
			return entries[j].empty
		}
		return entries[i].at.After(entries[j].at)
	})

	summaries := make([]models.ConversationSummary, len(entries))
	for i, e := range entries {
		summaries[i] = e.summary
	}
	return summaries, nil
}
