package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/hiramGL/CriolloListApp/internal/metrics"
	"github.com/hiramGL/CriolloListApp/internal/models"
	"github.com/hiramGL/CriolloListApp/internal/store"
)

// Feed is a live view of a single conversation: the fetched history merged
// with the realtime insert feed. Rows delivered by both paths are
// deduplicated by message ID, and live rows are appended in arrival
// (commit) order, so the merged list stays ordered by creation time.
//
// A Feed is bound to one conversation for its whole lifetime. Switching
// conversations means opening a new Feed and closing the old one; after
// Close, a feed delivers nothing, so stale subscriptions cannot leak rows
// into another conversation's view.
type Feed struct {
	ConversationID uuid.UUID

	stream store.MessageStream

	mu       sync.Mutex
	messages []models.Message
	seen     map[string]struct{}

	updates   chan models.Message
	done      chan struct{}
	closeOnce sync.Once
}

// OpenFeed subscribes to the conversation's insert feed and loads its
// history. The subscription is established first so a row inserted during
// the history fetch is not lost; the overlap window is covered by dedup.
func (s *Service) OpenFeed(ctx context.Context, conversationID uuid.UUID) (*Feed, error) {
	if s.feed == nil {
		return nil, errors.New("chat: no change feed configured")
	}

	stream, err := s.feed.SubscribeMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	history, err := s.db.ListMessages(ctx, conversationID)
	if err != nil {
		_ = stream.Close()
		return nil, err
	}

	f := &Feed{
		ConversationID: conversationID,
		stream:         stream,
		messages:       history,
		seen:           make(map[string]struct{}, len(history)),
		updates:        make(chan models.Message, 64),
		done:           make(chan struct{}),
	}
	for _, msg := range history {
		f.seen[msg.ID] = struct{}{}
	}

	metrics.FeedSubscriptionsActive.Inc()
	go f.run()

	return f, nil
}

func (f *Feed) run() {
	defer close(f.updates)
	for msg := range f.stream.Updates() {
		f.mu.Lock()
		if _, dup := f.seen[msg.ID]; dup {
			f.mu.Unlock()
			continue
		}
		f.seen[msg.ID] = struct{}{}
		f.messages = append(f.messages, msg)
		f.mu.Unlock()

		select {
		case f.updates <- msg:
		case <-f.done:
			return
		}
	}
}

// Updates delivers deduplicated live messages in arrival order. The channel
// is closed when the feed is closed.
func (f *Feed) Updates() <-chan models.Message {
	return f.updates
}

// Messages returns a snapshot of the merged, time-ordered message list.
func (f *Feed) Messages() []models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Message, len(f.messages))
	copy(out, f.messages)
	return out
}

// Close detaches the subscription and releases the scoped channel. Safe to
// call more than once.
func (f *Feed) Close() {
	f.closeOnce.Do(func() {
		close(f.done)
		_ = f.stream.Close()
		metrics.FeedSubscriptionsActive.Dec()
	})
}
