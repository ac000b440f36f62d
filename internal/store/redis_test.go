package store

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiramGL/CriolloListApp/internal/models"
)

func redisPayload(t *testing.T, msg models.Message) *redis.Message {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	return &redis.Message{Payload: string(data)}
}

func TestForwardMessagesDecodesAndSkipsBadPayloads(t *testing.T) {
	in := make(chan *redis.Message, 3)
	in <- &redis.Message{Payload: "not json"}
	in <- redisPayload(t, models.Message{ID: "01ARZ3NDEKTSV4RRFFQ69G5FAV", Content: "hello"})
	close(in)

	out := make(chan models.Message, 4)
	forwardMessages(in, out, make(chan struct{}))

	msg, ok := <-out
	require.True(t, ok)
	assert.Equal(t, "01ARZ3NDEKTSV4RRFFQ69G5FAV", msg.ID)
	assert.Equal(t, "hello", msg.Content)

	_, ok = <-out
	assert.False(t, ok, "out must close when the source closes")
}

func TestForwardMessagesUnblocksOnDone(t *testing.T) {
	in := make(chan *redis.Message, 128)
	for i := 0; i < 100; i++ {
		in <- redisPayload(t, models.Message{ID: fmt.Sprintf("msg-%03d", i), Content: "backlog"})
	}

	// Nobody drains out, so the forwarder fills the buffer and blocks.
	out := make(chan models.Message, 1)
	done := make(chan struct{})

	finished := make(chan struct{})
	go func() {
		forwardMessages(in, out, done)
		close(finished)
	}()

	close(done)
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("forwarder did not stop after the stream was closed")
	}
}
