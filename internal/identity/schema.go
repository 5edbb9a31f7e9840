package identity

import (
	"context"
	"fmt"
)

// Schema creates the users table. Emails are stored normalized, so a plain
// unique index gives case-insensitive uniqueness.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    id                      UUID PRIMARY KEY,
    first_name              TEXT NOT NULL,
    middle_name             TEXT NOT NULL DEFAULT '',
    last_name               TEXT NOT NULL,
    age                     INTEGER,
    phone                   TEXT NOT NULL DEFAULT '',
    locations               JSONB NOT NULL DEFAULT '[]'::jsonb,
    role                    TEXT NOT NULL DEFAULT 'customer'
        CHECK (role IN ('admin', 'owner', 'manager', 'staff', 'rider', 'customer')),
    branch_id               UUID,
    email                   TEXT NOT NULL,
    password_hash           BYTEA,
    temporary_password_hash BYTEA,
    status                  TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'inactive')),
    created_at              TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at              TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (email);
`

// Migrate applies Schema.
func Migrate(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate users: %w", err)
	}
	return nil
}
