package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/hiramGL/CriolloListApp/internal/models"
)

// SQLiteStore handles SQLite database operations. It backs local
// development and tests; production runs on PostgreSQL.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/criollolist.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/criollolist.db"
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		full_name TEXT NOT NULL DEFAULT '',
		profile_image TEXT NOT NULL DEFAULT '',
		bio TEXT NOT NULL DEFAULT '',
		major TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL
	);

	CREATE TABLE IF NOT EXISTS services (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		category_id INTEGER NOT NULL REFERENCES categories(id),
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price REAL NOT NULL DEFAULT 0,
		contact_email TEXT NOT NULL DEFAULT '',
		contact_phone TEXT NOT NULL DEFAULT '',
		image_urls TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		starts_at DATETIME NOT NULL,
		created_by TEXT REFERENCES users(id),
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		participant_1 TEXT NOT NULL REFERENCES users(id),
		participant_2 TEXT NOT NULL REFERENCES users(id),
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		CHECK (participant_1 <> participant_2)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_pair
		ON conversations (min(participant_1, participant_2), max(participant_1, participant_2));

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id),
		sender_id TEXT NOT NULL REFERENCES users(id),
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_conversation_time
		ON messages (conversation_id, created_at);

	INSERT OR IGNORE INTO categories (name) VALUES
		('Design'), ('Tutoring'), ('Finance'), ('Engineering'), ('Health'), ('Technology');
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// UpsertUser inserts the user row or refreshes it when it already exists.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *models.User) (*models.User, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, full_name, profile_image, bio, major, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET updated_at = excluded.updated_at
	`, user.ID.String(), user.FullName, user.ProfileImage, user.Bio, user.Major, now, now)
	if err != nil {
		return nil, err
	}
	return s.GetUserByID(ctx, user.ID)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	var idStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, full_name, profile_image, bio, major, created_at, updated_at
		FROM users WHERE id = ?
	`, id.String()).Scan(
		&idStr,
		&user.FullName,
		&user.ProfileImage,
		&user.Bio,
		&user.Major,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	user.ID = uuid.MustParse(idStr)
	return user, nil
}

// UpdateUserProfile updates the provided fields; nil pointers are left untouched.
func (s *SQLiteStore) UpdateUserProfile(ctx context.Context, id uuid.UUID, fullName, profileImage, bio, major *string) (*models.User, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET
			full_name = COALESCE(?, full_name),
			profile_image = COALESCE(?, profile_image),
			bio = COALESCE(?, bio),
			major = COALESCE(?, major),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, fullName, profileImage, bio, major, id.String())
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, nil
	}
	return s.GetUserByID(ctx, id)
}

// FindConversation retrieves the conversation for an unordered user pair.
func (s *SQLiteStore) FindConversation(ctx context.Context, userA, userB uuid.UUID) (*models.Conversation, error) {
	return s.scanConversation(s.db.QueryRowContext(ctx, `
		SELECT id, participant_1, participant_2, created_at
		FROM conversations
		WHERE (participant_1 = ? AND participant_2 = ?)
		   OR (participant_1 = ? AND participant_2 = ?)
	`, userA.String(), userB.String(), userB.String(), userA.String()))
}

// CreateConversation conditionally inserts a conversation row; returns nil
// when the unordered pair already has one (caller re-reads).
func (s *SQLiteStore) CreateConversation(ctx context.Context, userA, userB uuid.UUID) (*models.Conversation, error) {
	id := uuid.New()
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO conversations (id, participant_1, participant_2, created_at)
		VALUES (?, ?, ?, ?)
	`, id.String(), userA.String(), userB.String(), now)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, nil
	}
	return s.GetConversation(ctx, id)
}

// GetConversation retrieves a conversation by ID.
func (s *SQLiteStore) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	return s.scanConversation(s.db.QueryRowContext(ctx, `
		SELECT id, participant_1, participant_2, created_at
		FROM conversations WHERE id = ?
	`, id.String()))
}

func (s *SQLiteStore) scanConversation(row *sql.Row) (*models.Conversation, error) {
	conv := &models.Conversation{}
	var idStr, p1Str, p2Str string
	err := row.Scan(&idStr, &p1Str, &p2Str, &conv.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	conv.ID = uuid.MustParse(idStr)
	conv.Participant1 = uuid.MustParse(p1Str)
	conv.Participant2 = uuid.MustParse(p2Str)
	return conv, nil
}

// ListConversationsByUser retrieves all conversations where the user
// occupies either participant slot.
func (s *SQLiteStore) ListConversationsByUser(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, participant_1, participant_2, created_at
		FROM conversations
		WHERE participant_1 = ? OR participant_2 = ?
	`, userID.String(), userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []models.Conversation
	for rows.Next() {
		var conv models.Conversation
		var idStr, p1Str, p2Str string
		if err := rows.Scan(&idStr, &p1Str, &p2Str, &conv.CreatedAt); err != nil {
			return nil, err
		}
		conv.ID = uuid.MustParse(idStr)
		conv.Participant1 = uuid.MustParse(p1Str)
		conv.Participant2 = uuid.MustParse(p2Str)
		convs = append(convs, conv)
	}

	return convs, rows.Err()
}

// InsertMessage inserts a message row, assigning a ULID and timestamp when unset.
func (s *SQLiteStore) InsertMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, msg.ID, msg.ConversationID.String(), msg.SenderID.String(), msg.Content, msg.CreatedAt)
	return err
}

// ListMessages retrieves all messages for a conversation, oldest first.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, sender_id, content, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC
	`, conversationID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []models.Message{}
	for rows.Next() {
		msg, err := scanSQLiteMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *msg)
	}

	return msgs, rows.Err()
}

// LatestMessage retrieves the most recent message of a conversation, or nil.
func (s *SQLiteStore) LatestMessage(ctx context.Context, conversationID uuid.UUID) (*models.Message, error) {
	msg := &models.Message{}
	var convStr, senderStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, conversation_id, sender_id, content, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, conversationID.String()).Scan(&msg.ID, &convStr, &senderStr, &msg.Content, &msg.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	msg.ConversationID = uuid.MustParse(convStr)
	msg.SenderID = uuid.MustParse(senderStr)
	return msg, nil
}

func scanSQLiteMessage(rows *sql.Rows) (*models.Message, error) {
	msg := &models.Message{}
	var convStr, senderStr string
	if err := rows.Scan(&msg.ID, &convStr, &senderStr, &msg.Content, &msg.CreatedAt); err != nil {
		return nil, err
	}
	msg.ConversationID = uuid.MustParse(convStr)
	msg.SenderID = uuid.MustParse(senderStr)
	return msg, nil
}

// CreateService creates a new service listing.
func (s *SQLiteStore) CreateService(ctx context.Context, svc *models.Service) (*models.Service, error) {
	id := uuid.New()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO services (id, user_id, category_id, title, description, price, contact_email, contact_phone, image_urls, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id.String(), svc.UserID.String(), svc.CategoryID, svc.Title, svc.Description, svc.Price, svc.ContactEmail, svc.ContactPhone, svc.ImageURLs, now)
	if err != nil {
		return nil, err
	}
	return s.GetService(ctx, id)
}

// GetService retrieves a service by ID.
func (s *SQLiteStore) GetService(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	svc := &models.Service{}
	var idStr, userStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, category_id, title, description, price, contact_email, contact_phone, image_urls, created_at
		FROM services WHERE id = ?
	`, id.String()).Scan(
		&idStr,
		&userStr,
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
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	svc.ID = uuid.MustParse(idStr)
	svc.UserID = uuid.MustParse(userStr)
	return svc, nil
}

// ListServices retrieves services filtered by category and title substring.
func (s *SQLiteStore) ListServices(ctx context.Context, categoryID int64, query string, limit, offset int) ([]models.Service, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, category_id, title, description, price, contact_email, contact_phone, image_urls, created_at
		FROM services
		WHERE (? = 0 OR category_id = ?)
		  AND (? = '' OR title LIKE '%' || ? || '%')
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, categoryID, categoryID, query, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSQLiteServices(rows)
}

// ListServicesByUser retrieves all services owned by the user.
func (s *SQLiteStore) ListServicesByUser(ctx context.Context, userID uuid.UUID) ([]models.Service, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, category_id, title, description, price, contact_email, contact_phone, image_urls, created_at
		FROM services
		WHERE user_id = ?
		ORDER BY created_at DESC
	`, userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSQLiteServices(rows)
}

func scanSQLiteServices(rows *sql.Rows) ([]models.Service, error) {
	svcs := []models.Service{}
	for rows.Next() {
		var svc models.Service
		var idStr, userStr string
		err := rows.Scan(
			&idStr,
			&userStr,
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
		svc.ID = uuid.MustParse(idStr)
		svc.UserID = uuid.MustParse(userStr)
		svcs = append(svcs, svc)
	}
	return svcs, rows.Err()
}

// DeleteService deletes a service owned by ownerID.
func (s *SQLiteStore) DeleteService(ctx context.Context, id, ownerID uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM services WHERE id = ? AND user_id = ?
	`, id.String(), ownerID.String())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListCategories retrieves all categories.
func (s *SQLiteStore) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY id`)
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
func (s *SQLiteStore) CreateEvent(ctx context.Context, ev *models.Event) (*models.Event, error) {
	id := uuid.New()
	now := time.Now().UTC()

	var createdByStr *string
	if ev.CreatedBy != nil {
		str := ev.CreatedBy.String()
		createdByStr = &str
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, title, description, location, starts_at, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id.String(), ev.Title, ev.Description, ev.Location, ev.StartsAt, createdByStr, now)
	if err != nil {
		return nil, err
	}

	out := *ev
	out.ID = id
	out.CreatedAt = now
	return &out, nil
}

// ListEventsByDate retrieves events starting on the given calendar day (UTC).
func (s *SQLiteStore) ListEventsByDate(ctx context.Context, day time.Time) ([]models.Event, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, location, starts_at, created_by, created_at
		FROM events
		WHERE starts_at >= ? AND starts_at < ?
		ORDER BY starts_at ASC
	`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var ev models.Event
		var idStr string
		var createdByStr *string
		err := rows.Scan(
			&idStr,
			&ev.Title,
			&ev.Description,
			&ev.Location,
			&ev.StartsAt,
			&createdByStr,
			&ev.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		ev.ID = uuid.MustParse(idStr)
		if createdByStr != nil {
			createdBy := uuid.MustParse(*createdByStr)
			ev.CreatedBy = &createdBy
		}
		events = append(events, ev)
	}

	return events, rows.Err()
}
