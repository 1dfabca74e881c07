package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id                 UUID PRIMARY KEY,
		email              TEXT NOT NULL,
		username           TEXT NOT NULL UNIQUE,
		name               TEXT NOT NULL DEFAULT '',
		display_name       TEXT NOT NULL DEFAULT '',
		password_hash      TEXT NOT NULL,
		photo_url          TEXT,
		provider_photo_url TEXT,
		role               TEXT NOT NULL DEFAULT 'user',
		last_login         TIMESTAMPTZ,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_lower_idx ON users (lower(email))`,
	`CREATE INDEX IF NOT EXISTS users_last_login_idx ON users (last_login DESC NULLS LAST)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id          UUID PRIMARY KEY,
		sender_id   UUID NOT NULL REFERENCES users (id),
		receiver_id UUID NOT NULL REFERENCES users (id),
		text        TEXT NOT NULL CHECK (length(btrim(text)) > 0),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
		read        BOOLEAN NOT NULL DEFAULT false,
		CHECK (sender_id <> receiver_id)
	)`,
	`CREATE INDEX IF NOT EXISTS messages_pair_idx ON messages (sender_id, receiver_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS messages_unread_idx ON messages (receiver_id) WHERE read = false`,
}

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
