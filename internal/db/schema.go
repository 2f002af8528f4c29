package db

import "context"

// createSubscribersTable is the single persisted table. Bootstrap is
// idempotent so a fresh deployment needs no separate migration step.
const createSubscribersTable = `
CREATE TABLE IF NOT EXISTS subscribers (
    id         BIGSERIAL PRIMARY KEY,
    email      TEXT NOT NULL UNIQUE,
    name       TEXT,
    token      TEXT NOT NULL UNIQUE,
    status     TEXT NOT NULL DEFAULT 'active',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// EnsureSchema applies the subscribers DDL. Safe to run on every startup.
func EnsureSchema(ctx context.Context, db DBTX) error {
	_, err := db.Exec(ctx, createSubscribersTable)
	return err
}
