package chat

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiramGL/CriolloListApp/internal/models"
	"github.com/hiramGL/CriolloListApp/internal/store"
)

// fakeStream is an in-memory store.MessageStream.
type fakeStream struct {
	ch   chan models.Message
	once sync.Once
}

func (f *fakeStream) Updates() <-chan models.Message { return f.ch }

func (f *fakeStream) Close() error {
	f.once.Do(func() { close(f.ch) })
	return nil
}

// fakeFeed is an in-memory store.ChangeFeed that fans published messages
// out to subscribers of the same conversation.
type fakeFeed struct {
	mu          sync.Mutex
	streams     map[uuid.UUID][]*fakeStream
	published   []models.Message
	failPublish bool
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{streams: make(map[uuid.UUID][]*fakeStream)}
}

func (f *fakeFeed) PublishMessage(ctx context.Context, msg *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPublish {
		return errors.New("publish failed")
	}
	f.published = append(f.published, *msg)
	for _, st := range f.streams[msg.ConversationID] {
		st.ch <- *msg
	}
	return nil
}

func (f *fakeFeed) SubscribeMessages(ctx context.Context, conversationID uuid.UUID) (store.MessageStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := &fakeStream{ch: make(chan models.Message, 16)}
	f.streams[conversationID] = append(f.streams[conversationID], st)
	return st, nil
}

func createTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.NewSQLiteStore(context.Background(), dbPath)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func createTestService(t *testing.T, db store.DataStore, feed store.ChangeFeed) *Service {
	t.Helper()
	return NewService(db, feed, zerolog.Nop())
}

func createTestUser(t *testing.T, db store.DataStore, name string) uuid.UUID {
	t.Helper()

	user, err := db.UpsertUser(context.Background(), &models.User{
		ID:       uuid.New(),
		FullName: name,
	})
	require.NoError(t, err)
	return user.ID
}

func TestResolveRejectsMissingParticipant(t *testing.T) {
	db := createTestStore(t)
	svc := createTestService(t, db, nil)

	_, err := svc.Resolve(context.Background(), uuid.Nil, uuid.New())
	assert.ErrorIs(t, err, ErrMissingParticipant)

	_, err = svc.Resolve(context.Background(), uuid.New(), uuid.Nil)
	assert.ErrorIs(t, err, ErrMissingParticipant)
}

func TestResolveRejectsSelfConversation(t *testing.T) {
	db := createTestStore(t)
	svc := createTestService(t, db, nil)

	id := uuid.New()
	_, err := svc.Resolve(context.Background(), id, id)
	assert.ErrorIs(t, err, ErrSelfConversation)
}

func TestResolveIsIdempotentAcrossOrientations(t *testing.T) {
	db := createTestStore(t)
	svc := createTestService(t, db, nil)
	ctx := context.Background()

	alice := createTestUser(t, db, "Alice")
	bob := createTestUser(t, db, "Bob")

	first, err := svc.Resolve(ctx, alice, bob)
	require.NoError(t, err)

	again, err := svc.Resolve(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	// The other side opening the same chat lands on the same row.
	swapped, err := svc.Resolve(ctx, bob, alice)
	require.NoError(t, err)
	assert.Equal(t, first.ID, swapped.ID)
}

// racingStore simulates losing a creation race: the first lookup misses
// even though the row exists by the time the insert runs.
type racingStore struct {
	store.DataStore
	misses int
}

func (r *racingStore) FindConversation(ctx context.Context, userA, userB uuid.UUID) (*models.Conversation, error) {
	if r.misses > 0 {
		r.misses--
		return nil, nil
	}
	return r.DataStore.FindConversation(ctx, userA, userB)
}

func TestResolveRecoversFromLostInsertRace(t *testing.T) {
	db := createTestStore(t)
	ctx := context.Background()

	alice := createTestUser(t, db, "Alice")
	bob := createTestUser(t, db, "Bob")

	existing, err := db.CreateConversation(ctx, alice, bob)
	require.NoError(t, err)
	require.NotNil(t, existing)

	svc := createTestService(t, &racingStore{DataStore: db, misses: 1}, nil)

	conv, err := svc.Resolve(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, conv.ID)
}

func TestSendRejectsEmptyContent(t *testing.T) {
	db := createTestStore(t)
	svc := createTestService(t, db, nil)
	ctx := context.Background()

	alice := createTestUser(t, db, "Alice")
	bob := createTestUser(t, db, "Bob")
	conv, err := svc.Resolve(ctx, alice, bob)
	require.NoError(t, err)

	_, err = svc.Send(ctx, conv.ID, alice, "")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = svc.Send(ctx, conv.ID, alice, "   \n\t ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	msgs, err := svc.History(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs, "rejected sends must not persist anything")
}

func TestSendPersistsAndPublishes(t *testing.T) {
	db := createTestStore(t)
	feed := newFakeFeed()
	svc := createTestService(t, db, feed)
	ctx := context.Background()

	alice := createTestUser(t, db, "Alice")
	bob := createTestUser(t, db, "Bob")
	conv, err := svc.Resolve(ctx, alice, bob)
	require.NoError(t, err)

	msg, err := svc.Send(ctx, conv.ID, alice, "  hola bob  ")
	require.NoError(t, err)
	assert.Equal(t, "hola bob", msg.Content, "content is trimmed")
	assert.NotEmpty(t, msg.ID)

	require.Len(t, feed.published, 1)
	assert.Equal(t, msg.ID, feed.published[0].ID)

	msgs, err := svc.History(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hola bob", msgs[0].Content)
}

func TestSendSurvivesPublishFailure(t *testing.T) {
	db := createTestStore(t)
	feed := newFakeFeed()
	feed.failPublish = true
	svc := createTestService(t, db, feed)
	ctx := context.Background()

	alice := createTestUser(t, db, "Alice")
	bob := createTestUser(t, db, "Bob")
	conv, err := svc.Resolve(ctx, alice, bob)
	require.NoError(t, err)

	msg, err := svc.Send(ctx, conv.ID, alice, "still delivered")
	require.NoError(t, err, "a failed publish must not fail the send")
	require.NotNil(t, msg)

	msgs, err := svc.History(ctx, conv.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestMembership(t *testing.T) {
	db := createTestStore(t)
	svc := createTestService(t, db, nil)
	ctx := context.Background()

	alice := createTestUser(t, db, "Alice")
	bob := createTestUser(t, db, "Bob")
	carol := createTestUser(t, db, "Carol")
	conv, err := svc.Resolve(ctx, alice, bob)
	require.NoError(t, err)

	got, err := svc.Membership(ctx, conv.ID, bob)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, conv.ID, got.ID)

	_, err = svc.Membership(ctx, conv.ID, carol)
	assert.ErrorIs(t, err, ErrNotParticipant)

	missing, err := svc.Membership(ctx, uuid.New(), alice)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

// blindStore hides one user so enrichment has to degrade.
type blindStore struct {
	store.DataStore
	hidden uuid.UUID
}

func (b *blindStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if id == b.hidden {
		return nil, nil
	}
	return b.DataStore.GetUserByID(ctx, id)
}

func TestListConversationsEnrichmentAndOrdering(t *testing.T) {
	db := createTestStore(t)
	ctx := context.Background()

	me := createTestUser(t, db, "Me")
	bob := createTestUser(t, db, "Bob Vega")
	carol := createTestUser(t, db, "Carol Diaz")
	dana := createTestUser(t, db, "Dana Ortiz")

	svc := createTestService(t, db, nil)

	withBob, err := svc.Resolve(ctx, me, bob)
	require.NoError(t, err)
	withCarol, err := svc.Resolve(ctx, carol, me)
	require.NoError(t, err)
	withDana, err := svc.Resolve(ctx, me, dana)
	require.NoError(t, err)

	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, db.InsertMessage(ctx, &models.Message{
		ConversationID: withBob.ID, SenderID: bob, Content: "old one", CreatedAt: base.Add(-time.Hour),
	}))
	require.NoError(t, db.InsertMessage(ctx, &models.Message{
		ConversationID: withCarol.ID, SenderID: me, Content: "fresh one", CreatedAt: base,
	}))

	summaries, err := svc.ListConversations(ctx, me)
	require.NoError(t, err)
	require.Len(t, summaries, 3)

	// Most recent message first.
	assert.Equal(t, withCarol.ID, summaries[0].ID)
	assert.Equal(t, "Carol Diaz", summaries[0].Name)
	assert.Equal(t, "fresh one", summaries[0].Preview)

	assert.Equal(t, withBob.ID, summaries[1].ID)
	assert.Equal(t, "Bob Vega", summaries[1].Name)
	assert.Equal(t, "old one", summaries[1].Preview)
	assert.Equal(t, bob, summaries[1].CounterpartID)

	// The empty conversation was created last but sorts after the ones
	// with messages.
	assert.Equal(t, withDana.ID, summaries[2].ID)
	assert.Equal(t, "No messages yet", summaries[2].Preview)
}

func TestListConversationsDegradesToPlaceholders(t *testing.T) {
	db := createTestStore(t)
	ctx := context.Background()

	me := createTestUser(t, db, "Me")
	ghost := createTestUser(t, db, "Ghost")

	_, err := db.CreateConversation(ctx, me, ghost)
	require.NoError(t, err)

	svc := createTestService(t, &blindStore{DataStore: db, hidden: ghost}, nil)

	summaries, err := svc.ListConversations(ctx, me)
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	assert.Equal(t, "Unknown", summaries[0].Name)
	assert.Equal(t, DefaultAvatar, summaries[0].Avatar)
	assert.Equal(t, "No messages yet", summaries[0].Preview)
	assert.Nil(t, summaries[0].LastActivityAt)
}
