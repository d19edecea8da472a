package comms

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Vovarama1992/portal-desk/internal/ai"
	"github.com/Vovarama1992/portal-desk/internal/audit"
	"github.com/Vovarama1992/portal-desk/internal/auth"
	"github.com/Vovarama1992/portal-desk/internal/model"
)

const (
	DefaultConversationInterval = 15 * time.Second
	DefaultMessageInterval      = 15 * time.Second

	suggestHistory = 20
)

type Intervals struct {
	Conversations time.Duration
	Messages      time.Duration
}

// Inbox is the communication view: it owns the conversation list, the message
// pane and the lifetime of both polling loops.
type Inbox struct {
	conversations *ConversationList
	pane          *MessagePane
	auditor       Auditor
	assistant     ai.AI
	intervals     Intervals
	log           *logrus.Entry

	mu         sync.Mutex
	mountCtx   context.Context
	unmount    context.CancelFunc
	paneCancel context.CancelFunc
	loops      sync.WaitGroup
}

type InboxDeps struct {
	Backend   Backend
	Publisher Publisher
	Auditor   Auditor
	Assistant ai.AI
	Intervals Intervals
	PageSize  int
}

func NewInbox(deps InboxDeps, log *logrus.Logger) *Inbox {
	iv := deps.Intervals
	if iv.Conversations <= 0 {
		iv.Conversations = DefaultConversationInterval
	}
	if iv.Messages <= 0 {
		iv.Messages = DefaultMessageInterval
	}

	in := &Inbox{
		conversations: NewConversationList(deps.Backend, deps.Publisher, log),
		pane:          NewMessagePane(deps.Backend, deps.Publisher, deps.PageSize, log),
		auditor:       deps.Auditor,
		assistant:     deps.Assistant,
		intervals:     iv,
		log:           log.WithField("component", "inbox"),
	}
	in.conversations.OnMarkRead = in.auditMarkRead
	in.pane.OnOptimistic = func(key string, m model.Message) {
		in.conversations.UpdatePreview(key, m.Body, model.DirectionOutbound, m.CreatedAt)
	}
	return in
}

func (in *Inbox) Conversations() *ConversationList { return in.conversations }

func (in *Inbox) Pane() *MessagePane { return in.pane }

// Mount starts the conversation loop. A second Mount is a no-op.
func (in *Inbox) Mount(ctx context.Context) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.unmount != nil {
		return
	}

	in.mountCtx, in.unmount = context.WithCancel(ctx)
	in.loops.Add(1)
	go func(ctx context.Context) {
		defer in.loops.Done()
		in.conversations.Run(ctx, in.intervals.Conversations)
	}(in.mountCtx)

	in.log.WithFields(logrus.Fields{
		"conversations_every": in.intervals.Conversations,
		"messages_every":      in.intervals.Messages,
	}).Info("mounted")
}

// Unmount cancels both loops, waits for them and any pending mark-read, then
// clears the view so the next Mount starts from a first load.
func (in *Inbox) Unmount() {
	in.mu.Lock()
	if in.unmount == nil {
		in.mu.Unlock()
		return
	}
	in.unmount()
	in.unmount = nil
	in.paneCancel = nil
	in.mountCtx = nil
	in.mu.Unlock()

	in.loops.Wait()
	in.conversations.Wait()
	in.conversations.Reset()
	in.pane.Reset()
	in.log.Info("unmounted")
}

// Select opens key: zero its unread counter, mark it read, load its latest
// page and re-arm the message loop for it.
func (in *Inbox) Select(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrNoConversation
	}

	in.conversations.Select(ctx, key)

	in.mu.Lock()
	if in.paneCancel != nil {
		in.paneCancel()
		in.paneCancel = nil
	}
	in.mu.Unlock()

	err := in.pane.Switch(ctx, key)

	in.mu.Lock()
	defer in.mu.Unlock()
	if in.mountCtx != nil && in.pane.Key() == key {
		if in.paneCancel != nil {
			in.paneCancel()
		}
		var paneCtx context.Context
		paneCtx, in.paneCancel = context.WithCancel(in.mountCtx)
		in.loops.Add(1)
		go func() {
			defer in.loops.Done()
			in.pane.Run(paneCtx, in.intervals.Messages)
		}()
	}
	return err
}

// Send posts body to the selected conversation. The preview is updated as
// soon as the optimistic message is shown and stays on failure.
func (in *Inbox) Send(ctx context.Context, body string) (model.Message, error) {
	key := in.pane.Key()
	msg, err := in.pane.Send(ctx, body)
	if errors.Is(err, ErrEmptyBody) || errors.Is(err, ErrNoConversation) {
		return msg, err
	}

	in.record(ctx, audit.Entry{
		Action:          audit.ActionSend,
		ConversationKey: key,
		Body:            msg.Body,
		Failed:          err != nil,
		Error:           errString(err),
	})
	return msg, err
}

func (in *Inbox) LoadOlder(ctx context.Context) (int, error) {
	return in.pane.LoadOlder(ctx)
}

// SuggestReply drafts an answer for the open conversation. Nothing is sent.
func (in *Inbox) SuggestReply(ctx context.Context) (string, error) {
	if in.assistant == nil {
		return "", ErrAssistDisabled
	}

	snap := in.pane.Snapshot()
	if snap.Key == "" {
		return "", ErrNoConversation
	}

	msgs := snap.Messages
	if len(msgs) > suggestHistory {
		msgs = msgs[len(msgs)-suggestHistory:]
	}

	history := make([]ai.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Body == "" {
			continue
		}
		role := "user"
		if m.ResolvedDirection() == model.DirectionOutbound {
			role = "assistant"
		}
		history = append(history, ai.Message{Role: role, Text: m.Body})
	}
	if len(history) == 0 {
		return "", nil
	}

	return in.assistant.GetReply(ctx, history)
}

// History lists recorded operator actions for key.
func (in *Inbox) History(ctx context.Context, key string, limit int) ([]audit.Entry, error) {
	if in.auditor == nil {
		return nil, nil
	}
	return in.auditor.Recent(ctx, key, limit)
}

type State struct {
	Conversations []ConversationView `json:"conversations"`
	TotalUnread   int                `json:"totalUnread"`
	Selected      string             `json:"selected"`
	Messages      MessagesUpdate     `json:"messages"`
}

func (in *Inbox) State() State {
	pane := in.pane.Snapshot()
	return State{
		Conversations: in.conversations.Snapshot(),
		TotalUnread:   in.conversations.Total(),
		Selected:      pane.Key,
		Messages:      pane,
	}
}

func (in *Inbox) auditMarkRead(ctx context.Context, key string, err error) {
	in.record(ctx, audit.Entry{
		Action:          audit.ActionMarkRead,
		ConversationKey: key,
		Failed:          err != nil,
		Error:           errString(err),
	})
}

func (in *Inbox) record(ctx context.Context, e audit.Entry) {
	if in.auditor == nil {
		return
	}
	if u := auth.UserFromContext(ctx); u != nil {
		e.Actor = u.Email
	}
	if err := in.auditor.Record(context.WithoutCancel(ctx), e); err != nil {
		in.log.WithError(err).Warn("audit record failed")
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
