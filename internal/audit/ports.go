package audit

import (
	"context"
	"time"
)

type Action string

const (
	ActionSend     Action = "send"
	ActionMarkRead Action = "mark_read"
)

// Entry is one operator action against a conversation.
type Entry struct {
	ID              int64     `db:"id" json:"id"`
	Action          Action    `db:"action" json:"action"`
	ConversationKey string    `db:"conversation_key" json:"conversationKey"`
	Actor           string    `db:"actor" json:"actor,omitempty"`
	Body            string    `db:"body" json:"body,omitempty"`
	Failed          bool      `db:"failed" json:"failed"`
	Error           string    `db:"error" json:"error,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
}

// Repo persists operator actions.
type Repo interface {
	Record(ctx context.Context, e Entry) error
	Recent(ctx context.Context, key string, limit int) ([]Entry, error)
}
