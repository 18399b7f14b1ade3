package stacks

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

func AutoMigrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS pgcrypto`); err != nil {
		log.Printf("migrate stacks-service pgcrypto: %v", err)
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS records (
          id             uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          user_id        TEXT NOT NULL,
          release_id     TEXT NOT NULL DEFAULT '',
          title          TEXT NOT NULL,
          artist         TEXT NOT NULL,
          year           INT,
          label          TEXT NOT NULL DEFAULT '',
          art_url        TEXT NOT NULL DEFAULT '',
          genres         TEXT[] NOT NULL DEFAULT '{}',
          styles         TEXT[] NOT NULL DEFAULT '{}',
          play_count     INT NOT NULL DEFAULT 0,
          liked          BOOLEAN NOT NULL DEFAULT FALSE,
          last_played_at TIMESTAMPTZ,
          added_at       TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		log.Printf("migrate stacks-service records: %v", err)
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE INDEX IF NOT EXISTS idx_records_user ON records(user_id)
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS play_history (
          id          uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          user_id     TEXT NOT NULL,
          record_id   uuid NOT NULL REFERENCES records(id) ON DELETE CASCADE,
          was_skipped BOOLEAN NOT NULL DEFAULT FALSE,
          played_at   TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS stack_cache (
          user_id      TEXT NOT NULL,
          scope        TEXT NOT NULL,
          period_key   TEXT NOT NULL,
          payload      JSONB NOT NULL,
          generated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
          PRIMARY KEY (user_id, scope, period_key)
      )
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS custom_stacks (
          id         uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          user_id    TEXT NOT NULL,
          name       TEXT,
          status     TEXT NOT NULL DEFAULT 'draft',
          created_at TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE INDEX IF NOT EXISTS idx_custom_stacks_user_status ON custom_stacks(user_id, status, created_at DESC)
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS custom_stack_items (
          stack_id  uuid NOT NULL REFERENCES custom_stacks(id) ON DELETE CASCADE,
          record_id uuid NOT NULL REFERENCES records(id) ON DELETE CASCADE,
          position  INT NOT NULL,
          added_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
          PRIMARY KEY (stack_id, record_id)
      )
    `); err != nil {
		return err
	}

	return nil
}
