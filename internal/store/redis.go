package store

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hiramGL/CriolloListApp/internal/models"
)

const searchTTL = 7 * 24 * time.Hour

// RedisStore handles Redis operations: the realtime message change feed
// and the service search index.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client exposes the underlying client for components that need raw access.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// conversationChannel returns the pub/sub channel for a conversation's inserts.
func conversationChannel(conversationID uuid.UUID) string {
	return fmt.Sprintf("conversation:%s:messages", conversationID)
}

// searchWordKey returns the key for a search word index.
func searchWordKey(word string) string {
	return fmt.Sprintf("search:words:%s", strings.ToLower(word))
}

// PublishMessage broadcasts an inserted message row to the conversation's
// channel. Subscribers receive rows in publish (commit) order.
func (s *RedisStore) PublishMessage(ctx context.Context, msg *models.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, conversationChannel(msg.ConversationID), data).Err()
}

// messageStream adapts a redis pub/sub subscription to a typed stream.
type messageStream struct {
	pubsub  *redis.PubSub
	updates chan models.Message
	done    chan struct{}
	once    sync.Once
}

// Updates returns the live message channel. It is closed after Close.
func (m *messageStream) Updates() <-chan models.Message {
	return m.updates
}

// Close unsubscribes and releases the scoped channel. The done channel
// unblocks the forwarder even when nobody drains updates.
func (m *messageStream) Close() error {
	var err error
	m.once.Do(func() {
		close(m.done)
		err = m.pubsub.Close()
	})
	return err
}

// SubscribeMessages opens a live subscription to message inserts scoped to
// one conversation. Rows that fail to decode are skipped.
func (s *RedisStore) SubscribeMessages(ctx context.Context, conversationID uuid.UUID) (MessageStream, error) {
	pubsub := s.client.Subscribe(ctx, conversationChannel(conversationID))

	// Confirm the subscription before returning so a message published
	// right after this call cannot be missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	stream := &messageStream{
		pubsub:  pubsub,
		updates: make(chan models.Message, 64),
		done:    make(chan struct{}),
	}

	go forwardMessages(pubsub.Channel(), stream.updates, stream.done)

	return stream, nil
}

// forwardMessages decodes pub/sub payloads onto the typed channel until
// the source closes or done is signalled. Rows that fail to decode are
// skipped. The done case keeps the forwarder from blocking on a full
// updates buffer after the subscriber has stopped reading.
func forwardMessages(in <-chan *redis.Message, out chan<- models.Message, done <-chan struct{}) {
	defer close(out)
	for payload := range in {
		var msg models.Message
		if err := json.Unmarshal([]byte(payload.Payload), &msg); err != nil {
			continue
		}
		select {
		case out <- msg:
		case <-done:
			return
		}
	}
}

// wordRegex matches word characters for search indexing.
var wordRegex = regexp.MustCompile(`\w+`)

// IndexService indexes a service listing's title and description for search.
func (s *RedisStore) IndexService(ctx context.Context, svc *models.Service) error {
	words := wordRegex.FindAllString(strings.ToLower(svc.Title+" "+svc.Description), -1)

	score := float64(svc.CreatedAt.UnixMilli())

	seen := make(map[string]bool)
	for _, word := range words {
		if len(word) < 3 || seen[word] {
			continue
		}
		seen[word] = true

		key := searchWordKey(word)
		s.client.ZAdd(ctx, key, redis.Z{
			Score:  score,
			Member: svc.ID.String(),
		})
		s.client.Expire(ctx, key, searchTTL)
	}

	return nil
}

// RemoveServiceFromIndex drops a deleted listing from the search index.
func (s *RedisStore) RemoveServiceFromIndex(ctx context.Context, svc *models.Service) error {
	words := wordRegex.FindAllString(strings.ToLower(svc.Title+" "+svc.Description), -1)

	seen := make(map[string]bool)
	for _, word := range words {
		if len(word) < 3 || seen[word] {
			continue
		}
		seen[word] = true
		s.client.ZRem(ctx, searchWordKey(word), svc.ID.String())
	}

	return nil
}

// SearchServiceIDs returns IDs of services matching every query token,
// newest first. An empty token list yields no results.
func (s *RedisStore) SearchServiceIDs(ctx context.Context, query string, limit int) ([]uuid.UUID, error) {
	tokens := wordRegex.FindAllString(strings.ToLower(query), -1)
	if len(tokens) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	keys := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if len(t) < 3 {
			continue
		}
		keys = append(keys, searchWordKey(t))
	}
	if len(keys) == 0 {
		return nil, nil
	}

	var members []string
	var err error

	if len(keys) == 1 {
		members, err = s.client.ZRevRange(ctx, keys[0], 0, int64(limit)-1).Result()
	} else {
		tempKey := fmt.Sprintf("search:temp:%d", time.Now().UnixNano())
		if err = s.client.ZInterStore(ctx, tempKey, &redis.ZStore{
			Keys:      keys,
			Aggregate: "MIN",
		}).Err(); err != nil {
			return nil, err
		}
		members, err = s.client.ZRevRange(ctx, tempKey, 0, int64(limit)-1).Result()
		s.client.Del(ctx, tempKey)
	}
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	return ids, nil
}
