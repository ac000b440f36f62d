package store

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// schema is applied on startup. Every statement is idempotent, so running
// it against an already-migrated database is a no-op.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	full_name TEXT NOT NULL DEFAULT '',
	profile_image TEXT NOT NULL DEFAULT '',
	bio TEXT NOT NULL DEFAULT '',
	major TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS categories (
	id BIGSERIAL PRIMARY KEY,
	name TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS services (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id UUID NOT NULL REFERENCES users(id),
	category_id BIGINT NOT NULL REFERENCES categories(id),
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	price DOUBLE PRECISION NOT NULL DEFAULT 0,
	contact_email TEXT NOT NULL DEFAULT '',
	contact_phone TEXT NOT NULL DEFAULT '',
	image_urls TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS events (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	location TEXT NOT NULL DEFAULT '',
	starts_at TIMESTAMPTZ NOT NULL,
	created_by UUID REFERENCES users(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS conversations (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	participant_1 UUID NOT NULL REFERENCES users(id),
	participant_2 UUID NOT NULL REFERENCES users(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CHECK (participant_1 <> participant_2)
);

-- At most one conversation per unordered participant pair.
CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_pair
	ON conversations (LEAST(participant_1, participant_2), GREATEST(participant_1, participant_2));

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	conversation_id UUID NOT NULL REFERENCES conversations(id),
	sender_id UUID NOT NULL REFERENCES users(id),
	content TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation_time
	ON messages (conversation_id, created_at);

INSERT INTO categories (name) VALUES
	('Design'), ('Tutoring'), ('Finance'), ('Engineering'), ('Health'), ('Technology')
ON CONFLICT (name) DO NOTHING;

CREATE INDEX IF NOT EXISTS idx_services_category ON services (category_id);
CREATE INDEX IF NOT EXISTS idx_services_user ON services (user_id);
CREATE INDEX IF NOT EXISTS idx_events_starts_at ON events (starts_at);
`

// RunMigrations applies the schema against the given database URL.
func RunMigrations(databaseURL string) error {
	ctx := context.Background()

	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	_, err = conn.Exec(ctx, schema)
	return err
}
