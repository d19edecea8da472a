package comms

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Vovarama1992/portal-desk/internal/model"
)

const markReadTimeout = 10 * time.Second

// ConversationList keeps the conversation list approximately fresh.
type ConversationList struct {
	backend Backend
	pub     Publisher
	log     *logrus.Entry

	mu          sync.RWMutex
	items       []model.Conversation
	loaded      bool
	polledTotal int

	// OnMarkRead is called after every mark-read attempt, if set.
	OnMarkRead func(ctx context.Context, key string, err error)

	inflight sync.WaitGroup
}

func NewConversationList(backend Backend, pub Publisher, log *logrus.Logger) *ConversationList {
	if pub == nil {
		pub = nopPublisher{}
	}
	return &ConversationList{
		backend: backend,
		pub:     pub,
		log:     log.WithField("component", "conversations"),
	}
}

// Refresh fetches the full list and replaces local state only when it differs.
func (l *ConversationList) Refresh(ctx context.Context) (bool, error) {
	fetched, err := l.backend.ListConversations(ctx)
	pollsTotal.WithLabelValues("conversations", result(err)).Inc()
	if err != nil {
		l.log.WithError(err).Warn("fetch conversations failed")
		return false, err
	}

	l.mu.Lock()
	first := !l.loaded
	prevTotal := l.polledTotal
	total := model.TotalUnread(fetched)
	l.loaded = true
	l.polledTotal = total

	changed := !reflect.DeepEqual(l.items, fetched)
	if changed {
		l.items = fetched
	}
	snapshot := l.viewsLocked()
	localTotal := model.TotalUnread(l.items)
	l.mu.Unlock()

	if changed {
		commitsTotal.WithLabelValues("conversations").Inc()
		l.pub.Publish(Event{Type: EventConversations, Data: ConversationsUpdate{Conversations: snapshot, TotalUnread: localTotal}})
		l.publishUnread(localTotal)
	}

	if !first && total > prevTotal {
		l.log.WithFields(logrus.Fields{"previous": prevTotal, "total": total}).Info("new unread messages")
		l.pub.Publish(Event{Type: EventNotification, Data: Notification{
			Title:    "Nuevos mensajes",
			Body:     fmt.Sprintf("Tienes %d mensajes sin leer", total),
			Total:    total,
			Previous: prevTotal,
		}})
	}

	return changed, nil
}

// Run refreshes immediately and then every interval until ctx is done.
// Errors never stop the loop.
func (l *ConversationList) Run(ctx context.Context, interval time.Duration) {
	_, _ = l.Refresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = l.Refresh(ctx)
		}
	}
}

// Select zeroes the conversation's unread counter locally and fires a
// mark-read for key. A failed mark-read is logged and not rolled back.
func (l *ConversationList) Select(ctx context.Context, key string) {
	l.mu.Lock()
	zeroed := false
	for i := range l.items {
		if l.items[i].Key() == key && l.items[i].UnreadCount != 0 {
			l.items[i].UnreadCount = 0
			zeroed = true
		}
	}
	snapshot := l.viewsLocked()
	total := model.TotalUnread(l.items)
	l.mu.Unlock()

	if zeroed {
		l.pub.Publish(Event{Type: EventConversations, Data: ConversationsUpdate{Conversations: snapshot, TotalUnread: total}})
		l.publishUnread(total)
	}

	l.inflight.Add(1)
	go func() {
		defer l.inflight.Done()

		mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markReadTimeout)
		defer cancel()

		err := l.backend.MarkRead(mctx, key)
		if err != nil {
			l.log.WithError(err).WithField("key", key).Warn("mark read failed")
		}
		if l.OnMarkRead != nil {
			l.OnMarkRead(mctx, key, err)
		}
	}()
}

// Reset forgets the list and the last polled total, so the next refresh is
// a first load again.
func (l *ConversationList) Reset() {
	l.mu.Lock()
	l.items = nil
	l.loaded = false
	l.polledTotal = 0
	l.mu.Unlock()

	l.pub.Publish(Event{Type: EventConversations, Data: ConversationsUpdate{Conversations: []ConversationView{}}})
	l.publishUnread(0)
}

// Wait blocks until every fire-and-forget mark-read has finished.
func (l *ConversationList) Wait() {
	l.inflight.Wait()
}

// UpdatePreview sets the last-message preview optimistically after a send.
func (l *ConversationList) UpdatePreview(key, body string, dir model.Direction, at model.Timestamp) {
	l.mu.Lock()
	found := false
	for i := range l.items {
		if l.items[i].Key() == key {
			l.items[i].LastMessage = body
			l.items[i].LastMessageDirection = dir
			l.items[i].LastMessageAt = at
			found = true
		}
	}
	snapshot := l.viewsLocked()
	total := model.TotalUnread(l.items)
	l.mu.Unlock()

	if found {
		l.pub.Publish(Event{Type: EventConversations, Data: ConversationsUpdate{Conversations: snapshot, TotalUnread: total}})
	}
}

// Total is the sum of every conversation's unread counter.
func (l *ConversationList) Total() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return model.TotalUnread(l.items)
}

func (l *ConversationList) Find(key string) (model.Conversation, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, c := range l.items {
		if c.Key() == key {
			return c, true
		}
	}
	return model.Conversation{}, false
}

func (l *ConversationList) Snapshot() []ConversationView {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.viewsLocked()
}

func (l *ConversationList) viewsLocked() []ConversationView {
	out := make([]ConversationView, len(l.items))
	for i, c := range l.items {
		out[i] = ConversationView{Conversation: c, Key: c.Key(), DisplayName: c.DisplayName()}
	}
	return out
}

func (l *ConversationList) publishUnread(total int) {
	unreadGauge.Set(float64(total))
	l.pub.Publish(Event{Type: EventUnread, Data: UnreadUpdate{Total: total}})
}
