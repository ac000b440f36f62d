package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/hiramGL/CriolloListApp/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// UpsertUser inserts the user row or refreshes its display data when the
// row already exists. Used to mirror the identity provider's account.
func (s *PostgresStore) UpsertUser(ctx context.Context, user *models.User) (*models.User, error) {
	out := &models.User{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, full_name, profile_image, bio, major)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET updated_at = NOW()
		RETURNING id, full_name, profile_image, bio, major, created_at, updated_at
	`, user.ID, user.FullName, user.ProfileImage, user.Bio, user.Major).Scan(
		&out.ID,
		&out.FullName,
		&out.ProfileImage,
		&out.Bio,
		&out.Major,
		&out.CreatedAt,
		&out.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetUserByID retrieves a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, full_name, profile_image, bio, major, created_at, updated_at
		FROM users WHERE id = $1
	`, id).Scan(
		&user.ID,
		&user.FullName,
		&user.ProfileImage,
		&user.Bio,
		&user.Major,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// UpdateUserProfile updates the provided fields; nil pointers are left
// untouched. Returns the updated row, or nil if the user does not exist.
func (s *PostgresStore) UpdateUserProfile(ctx context.Context, id uuid.UUID, fullName, profileImage, bio, major *string) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		UPDATE users SET
			full_name = COALESCE($2, full_name),
			profile_image = COALESCE($3, profile_image),
			bio = COALESCE($4, bio),
			major = COALESCE($5, major),
			updated_at = NOW()
		WHERE id = $1
		RETURNING id, full_name, profile_image, bio, major, created_at, updated_at
	`, id, fullName, profileImage, bio, major).Scan(
		&user.ID,
		&user.FullName,
		&user.ProfileImage,
		&user.Bio,
		&user.Major,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// FindConversation retrieves the conversation for an unordered user pair,
// checking both slot orientations. Returns nil when none exists.
func (s *PostgresStore) FindConversation(ctx context.Context, userA, userB uuid.UUID) (*models.Conversation, error) {
	conv := &models.Conversation{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, participant_1, participant_2, created_at
		FROM conversations
		WHERE (participant_1 = $1 AND participant_2 = $2)
		   OR (participant_1 = $2 AND participant_2 = $1)
	`, userA, userB).Scan(
		&conv.ID,
		&conv.Participant1,
		&conv.Participant2,
		&conv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return conv, nil
}

// CreateConversation inserts a conversation row for the pair. The insert is
// conditional on the unordered-pair unique index: when a concurrent resolve
// already created the row, nil is returned and the caller re-reads.
func (s *PostgresStore) CreateConversation(ctx context.Context, userA, userB uuid.UUID) (*models.Conversation, error) {
	conv := &models.Conversation{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO conversations (participant_1, participant_2)
		VALUES ($1, $2)
		ON CONFLICT (LEAST(participant_1, participant_2), GREATEST(participant_1, participant_2)) DO NOTHING
		RETURNING id, participant_1, participant_2, created_at
	`, userA, userB).Scan(
		&conv.ID,
		&conv.Participant1,
		&conv.Participant2,
		&conv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return conv, nil
}

// GetConversation retrieves a conversation by ID.
func (s *PostgresStore) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	conv := &models.Conversation{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, participant_1, participant_2, created_at
		FROM conversations WHERE id = $1
	`, id).Scan(
		&conv.ID,
		&conv.Participant1,
		&conv.Participant2,
		&conv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return conv, nil
}

// ListConversationsByUser retrieves all conversations where the user
// occupies either participant slot.
func (s *PostgresStore) ListConversationsByUser(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, participant_1, participant_2, created_at
		FROM conversations
		WHERE participant_1 = $1 OR participant_2 = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []models.Conversation
	for rows.Next() {
		var conv models.Conversation
		err := rows.Scan(
			&conv.ID,
			&conv.Participant1,
			&conv.Participant2,
			&conv.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}

	return convs, rows.Err()
}

// InsertMessage inserts a message row. A ULID and timestamp are assigned
// when unset so the caller can publish the complete row afterwards.
func (s *PostgresStore) InsertMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, msg.ID, msg.ConversationID, msg.SenderID, msg.Content, msg.CreatedAt)
	return err
}

// ListMessages retrieves all messages for a conversation, oldest first.
func (s *PostgresStore) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, sender_id, content, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []models.Message{}
	for rows.Next() {
		var msg models.Message
		err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.SenderID,
			&msg.Content,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}

	return msgs, rows.Err()
}

// LatestMessage retrieves the most recent message of a conversation, or
// nil when the conversation has no messages yet.
func (s *PostgresStore) LatestMessage(ctx context.Context, conversationID uuid.UUID) (*models.Message, error) {
	msg := &models.Message{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, conversation_id, sender_id, content, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, conversationID).Scan(
		&msg.ID,
		&msg.ConversationID,
		&msg.SenderID,
		&msg.Content,
		&msg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// CreateService creates a new service listing.
func (s *PostgresStore) CreateService(ctx context.Context, svc *models.Service) (*models.Service, error) {
	out := &models.Service{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO services (user_id, category_id, title, description, price, contact_email, contact_phone, image_urls)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, user_id, category_id, title, description, price, contact_email, contact_phone, image_urls, created_at
	`, svc.UserID, svc.CategoryID, svc.Title, svc.Description, svc.Price, svc.ContactEmail, svc.ContactPhone, svc.ImageURLs).Scan(
		&out.ID,
		&out.UserID,
		&out.CategoryID,
		&out.Title,
		&out.Description,
		&out.Price,
		&out.ContactEmail,
		&out.ContactPhone,
		&out.ImageURLs,
		&out.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetService retrieves a service by ID.
func (s *PostgresStore) GetService(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	svc := &models.Service{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, category_id, title, description, price, contact_email, contact_phone, image_urls, created_at
		FROM services WHERE id = $1
	`, id).Scan(
		&svc.ID,
		&svc.UserID,
		&svc.CategoryID,
		&svc.Title,
		&svc.Description,
		&svc.Price,
		&svc.ContactEmail,
		&svc.ContactPhone,
		&svc.ImageURLs,
		&svc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return svc, nil
}

// ListServices retrieves services filtered by category and title substring.
// A zero categoryID or empty query leaves that filter off.
func (s *PostgresStore) ListServices(ctx context.Context, categoryID int64, query string, limit, offset int) ([]models.Service, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, category_id, title, description, price, contact_email, contact_phone, image_urls, created_at
		FROM services
		WHERE ($1 = 0 OR category_id = $1)
		  AND ($2 = '' OR title ILIKE '%' || $2 || '%')
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, categoryID, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanServices(rows)
}

// ListServicesByUser retrieves all services owned by the user.
func (s *PostgresStore) ListServicesByUser(ctx context.Context, userID uuid.UUID) ([]models.Service, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, category_id, title, description, price, contact_email, contact_phone, image_urls, created_at
		FROM services
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanServices(rows)
}

func scanServices(rows pgx.Rows) ([]models.Service, error) {
	svcs := []models.Service{}
	for rows.Next() {
		var svc models.Service
		err := rows.Scan(
			&svc.ID,
			&svc.UserID,
			&svc.CategoryID,
			&svc.Title,
			&svc.Description,
			&svc.Price,
			&svc.ContactEmail,
			&svc.ContactPhone,
			&svc.ImageURLs,
			&svc.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		svcs = append(svcs, svc)
	}
	return svcs, rows.Err()
}

// DeleteService deletes a service owned by ownerID. Returns false when no
// matching row exists (wrong owner or unknown ID).
func (s *PostgresStore) DeleteService(ctx context.Context, id, ownerID uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM services WHERE id = $1 AND user_id = $2
	`, id, ownerID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListCategories retrieves all categories.
func (s *PostgresStore) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM categories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []models.Category
	for rows.Next() {
		var cat models.Category
		if err := rows.Scan(&cat.ID, &cat.Name); err != nil {
			return nil, err
		}
		cats = append(cats, cat)
	}

	return cats, rows.Err()
}

// CreateEvent creates a new event.
func (s *PostgresStore) CreateEvent(ctx context.Context, ev *models.Event) (*models.Event, error) {
	out := &models.Event{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO events (title, description, location, starts_at, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, title, description, location, starts_at, created_by, created_at
	`, ev.Title, ev.Description, ev.Location, ev.StartsAt, ev.CreatedBy).Scan(
		&out.ID,
		&out.Title,
		&out.Description,
		&out.Location,
		&out.StartsAt,
		&out.CreatedBy,
		&out.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListEventsByDate retrieves events starting on the given calendar day (UTC).
func (s *PostgresStore) ListEventsByDate(ctx context.Context, day time.Time) ([]models.Event, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	rows, err := s.pool.Query(ctx, `
		SELECT id, title, description, location, starts_at, created_by, created_at
		FROM events
		WHERE starts_at >= $1 AND starts_at < $2
		ORDER BY starts_at ASC
	`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var ev models.Event
		err := rows.Scan(
			&ev.ID,
			&ev.Title,
			&ev.Description,
			&ev.Location,
			&ev.StartsAt,
			&ev.CreatedBy,
			&ev.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	return events, rows.Err()
}
