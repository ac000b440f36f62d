package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hiramGL/CriolloListApp/internal/models"
)

// DataStore defines the interface for persistent storage of users,
// conversations, messages, services, categories and events.
// Both PostgresStore and SQLiteStore implement this interface.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// User operations
	UpsertUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateUserProfile(ctx context.Context, id uuid.UUID, fullName, profileImage, bio, major *string) (*models.User, error)

	// Conversation operations
	FindConversation(ctx context.Context, userA, userB uuid.UUID) (*models.Conversation, error)
	CreateConversation(ctx context.Context, userA, userB uuid.UUID) (*models.Conversation, error)
	GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	ListConversationsByUser(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error)

	// Message operations. Messages are immutable: insert and read only.
	InsertMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error)
	LatestMessage(ctx context.Context, conversationID uuid.UUID) (*models.Message, error)

	// Service operations
	CreateService(ctx context.Context, svc *models.Service) (*models.Service, error)
	GetService(ctx context.Context, id uuid.UUID) (*models.Service, error)
	ListServices(ctx context.Context, categoryID int64, query string, limit, offset int) ([]models.Service, error)
	ListServicesByUser(ctx context.Context, userID uuid.UUID) ([]models.Service, error)
	DeleteService(ctx context.Context, id, ownerID uuid.UUID) (bool, error)

	// Category operations
	ListCategories(ctx context.Context) ([]models.Category, error)

	// Event operations
	CreateEvent(ctx context.Context, ev *models.Event) (*models.Event, error)
	ListEventsByDate(ctx context.Context, day time.Time) ([]models.Event, error)
}

// MessageStream is a live, scoped subscription to message inserts for one
// conversation. Close releases the channel; Updates is closed afterwards.
type MessageStream interface {
	Updates() <-chan models.Message
	Close() error
}

// ChangeFeed delivers newly inserted messages to subscribers scoped by
// conversation identifier. RedisStore implements it over pub/sub.
type ChangeFeed interface {
	PublishMessage(ctx context.Context, msg *models.Message) error
	SubscribeMessages(ctx context.Context, conversationID uuid.UUID) (MessageStream, error)
}
