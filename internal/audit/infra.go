package audit

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS operator_actions (
		id               BIGSERIAL PRIMARY KEY,
		action           TEXT NOT NULL,
		conversation_key TEXT NOT NULL,
		actor            TEXT NOT NULL DEFAULT '',
		body             TEXT NOT NULL DEFAULT '',
		failed           BOOLEAN NOT NULL DEFAULT FALSE,
		error            TEXT NOT NULL DEFAULT '',
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS operator_actions_key_created_idx
		ON operator_actions (conversation_key, created_at DESC)`,
}

// Apply creates the audit table if it does not exist yet.
func Apply(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("audit schema step %d: %w", i+1, err)
		}
	}
	return nil
}

type repo struct {
	db *sqlx.DB
}

func NewRepo(db *sqlx.DB) Repo {
	return &repo{db: db}
}

func (r *repo) Record(ctx context.Context, e Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO operator_actions (action, conversation_key, actor, body, failed, error)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		string(e.Action),
		e.ConversationKey,
		e.Actor,
		e.Body,
		e.Failed,
		e.Error,
	)
	return err
}

func (r *repo) Recent(ctx context.Context, key string, limit int) ([]Entry, error) {
	var out []Entry
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, action, conversation_key, actor, body, failed, error, created_at
		FROM operator_actions
		WHERE conversation_key = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, key, limit)
	if err != nil {
		return nil, err
	}
	return out, nil
}
