package chat

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiramGL/CriolloListApp/internal/models"
)

func waitForMessage(t *testing.T, updates <-chan models.Message) models.Message {
	t.Helper()

	select {
	case msg, ok := <-updates:
		require.True(t, ok, "updates channel closed unexpectedly")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for feed update")
		return models.Message{}
	}
}

func TestOpenFeedRequiresChangeFeed(t *testing.T) {
	db := createTestStore(t)
	svc := createTestService(t, db, nil)

	_, err := svc.OpenFeed(context.Background(), uuid.New())
	assert.Error(t, err)
}

func TestFeedDeliversHistoryThenLiveMessages(t *testing.T) {
	db := createTestStore(t)
	feed := newFakeFeed()
	svc := createTestService(t, db, feed)
	ctx := context.Background()

	alice := createTestUser(t, db, "Alice")
	bob := createTestUser(t, db, "Bob")
	conv, err := svc.Resolve(ctx, alice, bob)
	require.NoError(t, err)

	_, err = svc.Send(ctx, conv.ID, alice, "before open")
	require.NoError(t, err)

	f, err := svc.OpenFeed(ctx, conv.ID)
	require.NoError(t, err)
	defer f.Close()

	history := f.Messages()
	require.Len(t, history, 1)
	assert.Equal(t, "before open", history[0].Content)

	sent, err := svc.Send(ctx, conv.ID, bob, "after open")
	require.NoError(t, err)

	live := waitForMessage(t, f.Updates())
	assert.Equal(t, sent.ID, live.ID)
	assert.Equal(t, "after open", live.Content)

	merged := f.Messages()
	require.Len(t, merged, 2)
	assert.Equal(t, "before open", merged[0].Content)
	assert.Equal(t, "after open", merged[1].Content)
}

func TestFeedDeduplicatesOverlapWithHistory(t *testing.T) {
	db := createTestStore(t)
	feed := newFakeFeed()
	svc := createTestService(t, db, feed)
	ctx := context.Background()

	alice := createTestUser(t, db, "Alice")
	bob := createTestUser(t, db, "Bob")
	conv, err := svc.Resolve(ctx, alice, bob)
	require.NoError(t, err)

	overlap, err := svc.Send(ctx, conv.ID, alice, "landed during fetch")
	require.NoError(t, err)

	f, err := svc.OpenFeed(ctx, conv.ID)
	require.NoError(t, err)
	defer f.Close()

	// The same row arrives again over the live subscription, as it would
	// when an insert commits inside the fetch window.
	require.NoError(t, feed.PublishMessage(ctx, overlap))

	fresh, err := svc.Send(ctx, conv.ID, bob, "genuinely new")
	require.NoError(t, err)

	live := waitForMessage(t, f.Updates())
	assert.Equal(t, fresh.ID, live.ID, "duplicate of a history row must be dropped")

	merged := f.Messages()
	require.Len(t, merged, 2)
	assert.Equal(t, overlap.ID, merged[0].ID)
	assert.Equal(t, fresh.ID, merged[1].ID)
}

func TestFeedCloseStopsDelivery(t *testing.T) {
	db := createTestStore(t)
	feed := newFakeFeed()
	svc := createTestService(t, db, feed)
	ctx := context.Background()

	alice := createTestUser(t, db, "Alice")
	bob := createTestUser(t, db, "Bob")
	conv, err := svc.Resolve(ctx, alice, bob)
	require.NoError(t, err)

	f, err := svc.OpenFeed(ctx, conv.ID)
	require.NoError(t, err)

	f.Close()
	f.Close() // safe to call twice

	select {
	case _, ok := <-f.Updates():
		assert.False(t, ok, "updates must be closed after Close")
	case <-time.After(2 * time.Second):
		t.Fatal("updates channel not closed after Close")
	}
}

func TestFeedsAreScopedPerConversation(t *testing.T) {
	db := createTestStore(t)
	feed := newFakeFeed()
	svc := createTestService(t, db, feed)
	ctx := context.Background()

	alice := createTestUser(t, db, "Alice")
	bob := createTestUser(t, db, "Bob")
	carol := createTestUser(t, db, "Carol")

	withBob, err := svc.Resolve(ctx, alice, bob)
	require.NoError(t, err)
	withCarol, err := svc.Resolve(ctx, alice, carol)
	require.NoError(t, err)

	bobFeed, err := svc.OpenFeed(ctx, withBob.ID)
	require.NoError(t, err)
	defer bobFeed.Close()

	_, err = svc.Send(ctx, withCarol.ID, carol, "wrong room")
	require.NoError(t, err)
	sent, err := svc.Send(ctx, withBob.ID, bob, "right room")
	require.NoError(t, err)

	live := waitForMessage(t, bobFeed.Updates())
	assert.Equal(t, sent.ID, live.ID, "feed must only carry its own conversation")
}
