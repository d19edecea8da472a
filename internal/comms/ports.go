package comms

import (
	"context"
	"errors"

	"github.com/Vovarama1992/portal-desk/internal/audit"
	"github.com/Vovarama1992/portal-desk/internal/model"
)

var (
	ErrNoConversation = errors.New("comms: no conversation selected")
	ErrEmptyBody      = errors.New("comms: message body is empty")
	ErrAssistDisabled = errors.New("comms: reply assistant is not configured")
)

// Backend is the slice of the portal REST API the communication view uses.
type Backend interface {
	ListConversations(ctx context.Context) ([]model.Conversation, error)
	ListMessages(ctx context.Context, key string, q model.MessageQuery) ([]model.Message, error)
	SendMessage(ctx context.Context, req model.SendRequest) error
	MarkRead(ctx context.Context, key string) error
}

// Auditor records operator actions.
type Auditor interface {
	Record(ctx context.Context, e audit.Entry) error
	Recent(ctx context.Context, key string, limit int) ([]audit.Entry, error)
}

type EventType string

const (
	EventConversations EventType = "conversations"
	EventMessages      EventType = "messages"
	EventUnread        EventType = "unread"
	EventNotification  EventType = "notification"
)

// Event is pushed to the UI stream.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

type Publisher interface {
	Publish(ev Event)
}

type ConversationsUpdate struct {
	Conversations []ConversationView `json:"conversations"`
	TotalUnread   int                `json:"totalUnread"`
}

// ConversationView carries the resolved key so the UI never has to guess it.
type ConversationView struct {
	model.Conversation
	Key         string `json:"key"`
	DisplayName string `json:"displayName"`
}

type MessagesUpdate struct {
	Key            string          `json:"key"`
	Messages       []model.Message `json:"messages"`
	HasMore        bool            `json:"hasMore"`
	LoadingOlder   bool            `json:"loadingOlder"`
	ScrollToBottom bool            `json:"scrollToBottom,omitempty"`
	Prepended      int             `json:"prepended,omitempty"`
}

type UnreadUpdate struct {
	Total int `json:"total"`
}

type Notification struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Total    int    `json:"total"`
	Previous int    `json:"previous"`
}

type nopPublisher struct{}

func (nopPublisher) Publish(Event) {}
