package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// schemaStatements are idempotent and run in order on startup.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
        id UUID PRIMARY KEY,
        email TEXT NOT NULL,
        name TEXT NOT NULL,
        password_hash TEXT NOT NULL,
        has_accepted_terms BOOLEAN NOT NULL DEFAULT FALSE,
        payment_customer_id TEXT,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        CONSTRAINT users_email_key UNIQUE (email)
    )`,
	`CREATE TABLE IF NOT EXISTS businesses (
        id UUID PRIMARY KEY,
        google_place_id TEXT NOT NULL,
        name TEXT NOT NULL,
        address TEXT NOT NULL DEFAULT '',
        phone TEXT NOT NULL DEFAULT '',
        user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        CONSTRAINT businesses_google_place_id_key UNIQUE (google_place_id),
        CONSTRAINT businesses_user_id_key UNIQUE (user_id)
    )`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
        id UUID PRIMARY KEY,
        user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
        external_subscription_id TEXT NOT NULL,
        external_customer_id TEXT NOT NULL DEFAULT '',
        external_price_id TEXT NOT NULL DEFAULT '',
        status TEXT NOT NULL,
        current_period_start TIMESTAMPTZ NOT NULL,
        current_period_end TIMESTAMPTZ NOT NULL,
        cancel_at_period_end BOOLEAN NOT NULL DEFAULT FALSE,
        amount BIGINT NOT NULL DEFAULT 0,
        currency TEXT NOT NULL DEFAULT 'usd',
        plan TEXT NOT NULL DEFAULT '',
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        CONSTRAINT subscriptions_external_subscription_id_key UNIQUE (external_subscription_id)
    )`,
	`CREATE INDEX IF NOT EXISTS subscriptions_user_created_idx ON subscriptions (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS subscriptions_lapse_idx ON subscriptions (current_period_end) WHERE cancel_at_period_end`,
}

// EnsureSchema creates the tables, constraints and indexes the service needs.
func EnsureSchema(ctx context.Context, db Execer) error {
	for i, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
