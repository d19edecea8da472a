package comms

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Vovarama1992/portal-desk/internal/model"
)

const DefaultPageSize = 50

// MessagePane holds the ordered, deduplicated, paginated messages of the
// selected conversation.
//
// Every fetch captures the generation at dispatch; a response arriving after
// the selection moved on is dropped.
type MessagePane struct {
	backend  Backend
	pub      Publisher
	log      *logrus.Entry
	pageSize int
	now      func() time.Time

	mu           sync.Mutex
	key          string
	gen          uint64
	messages     []model.Message
	hasMore      bool
	loadingOlder bool

	// OnOptimistic is called with every optimistic message right after it is
	// shown and before the send request goes out, if set.
	OnOptimistic func(key string, m model.Message)
}

func NewMessagePane(backend Backend, pub Publisher, pageSize int, log *logrus.Logger) *MessagePane {
	if pub == nil {
		pub = nopPublisher{}
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &MessagePane{
		backend:  backend,
		pub:      pub,
		log:      log.WithField("component", "messages"),
		pageSize: pageSize,
		now:      time.Now,
	}
}

func (p *MessagePane) latestQuery() model.MessageQuery {
	return model.MessageQuery{Limit: p.pageSize, OrderBy: "createdAt", Sort: "desc"}
}

// Switch clears the pane for key and loads its most recent page.
func (p *MessagePane) Switch(ctx context.Context, key string) error {
	p.mu.Lock()
	p.gen++
	gen := p.gen
	p.key = key
	p.messages = nil
	p.hasMore = true
	p.loadingOlder = false
	update := p.updateLocked()
	p.mu.Unlock()

	p.pub.Publish(Event{Type: EventMessages, Data: update})

	if key == "" {
		return nil
	}

	fetched, err := p.backend.ListMessages(ctx, key, p.latestQuery())
	pollsTotal.WithLabelValues("messages_initial", result(err)).Inc()
	if err != nil {
		p.log.WithError(err).WithField("key", key).Warn("fetch messages failed")
		return err
	}
	SortMessages(fetched)

	p.mu.Lock()
	if p.gen != gen {
		p.mu.Unlock()
		staleResponses.WithLabelValues("switch").Inc()
		return nil
	}
	// keep anything sent while the first page was in flight
	p.messages = Reconcile(p.messages, fetched)
	update = p.updateLocked()
	update.ScrollToBottom = true
	p.mu.Unlock()

	commitsTotal.WithLabelValues("messages").Inc()
	p.pub.Publish(Event{Type: EventMessages, Data: update})
	return nil
}

// Reset drops the selection. Responses still in flight are discarded.
func (p *MessagePane) Reset() {
	p.mu.Lock()
	p.gen++
	p.key = ""
	p.messages = nil
	p.hasMore = false
	p.loadingOlder = false
	update := p.updateLocked()
	p.mu.Unlock()

	p.pub.Publish(Event{Type: EventMessages, Data: update})
}

// Poll re-fetches the latest page and reconciles it into the pane.
func (p *MessagePane) Poll(ctx context.Context) (bool, error) {
	p.mu.Lock()
	key, gen := p.key, p.gen
	p.mu.Unlock()

	if key == "" {
		return false, nil
	}

	fetched, err := p.backend.ListMessages(ctx, key, p.latestQuery())
	pollsTotal.WithLabelValues("messages", result(err)).Inc()
	if err != nil {
		p.log.WithError(err).WithField("key", key).Warn("poll messages failed")
		return false, err
	}

	p.mu.Lock()
	if p.gen != gen {
		p.mu.Unlock()
		staleResponses.WithLabelValues("poll").Inc()
		return false, nil
	}

	next := Reconcile(p.messages, fetched)
	if !changed(p.messages, next) {
		p.mu.Unlock()
		return false, nil
	}

	grew := len(next) > len(p.messages)
	p.messages = next
	update := p.updateLocked()
	update.ScrollToBottom = grew
	p.mu.Unlock()

	commitsTotal.WithLabelValues("messages").Inc()
	p.pub.Publish(Event{Type: EventMessages, Data: update})
	return true, nil
}

// Run polls every interval until ctx is done.
func (p *MessagePane) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = p.Poll(ctx)
		}
	}
}

// LoadOlder fetches the page before the oldest held message and prepends it.
// It does nothing while a previous call is in flight or once history is exhausted.
func (p *MessagePane) LoadOlder(ctx context.Context) (int, error) {
	p.mu.Lock()
	if p.key == "" || !p.hasMore || p.loadingOlder {
		p.mu.Unlock()
		return 0, nil
	}
	cursor := ""
	for _, m := range p.messages {
		if !IsOptimistic(m) {
			cursor = m.ID
			break
		}
	}
	if cursor == "" {
		p.mu.Unlock()
		return 0, nil
	}
	key, gen := p.key, p.gen
	p.loadingOlder = true
	p.mu.Unlock()

	q := p.latestQuery()
	q.StartAfter = cursor
	older, err := p.backend.ListMessages(ctx, key, q)
	pollsTotal.WithLabelValues("messages_older", result(err)).Inc()

	p.mu.Lock()
	if p.gen != gen {
		p.mu.Unlock()
		staleResponses.WithLabelValues("older").Inc()
		return 0, nil
	}
	p.loadingOlder = false

	if err != nil {
		p.mu.Unlock()
		p.log.WithError(err).WithField("key", key).Warn("fetch older messages failed")
		return 0, err
	}

	if len(older) < p.pageSize {
		p.hasMore = false
	}

	held := make(map[string]struct{}, len(p.messages))
	for _, m := range p.messages {
		held[m.ID] = struct{}{}
	}
	fresh := make([]model.Message, 0, len(older))
	for _, m := range older {
		if _, ok := held[m.ID]; !ok {
			fresh = append(fresh, m)
		}
	}
	SortMessages(fresh)

	p.messages = append(fresh, p.messages...)
	update := p.updateLocked()
	update.Prepended = len(fresh)
	p.mu.Unlock()

	p.pub.Publish(Event{Type: EventMessages, Data: update})
	return len(fresh), nil
}

// Send appends an optimistic message, then calls the backend. On failure the
// optimistic message stays, marked failed, and the error is returned.
func (p *MessagePane) Send(ctx context.Context, body string) (model.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return model.Message{}, ErrEmptyBody
	}

	p.mu.Lock()
	if p.key == "" {
		p.mu.Unlock()
		return model.Message{}, ErrNoConversation
	}
	key, gen := p.key, p.gen
	msg := NewOptimistic(body, p.now())
	p.messages = append(p.messages, msg)
	update := p.updateLocked()
	update.ScrollToBottom = true
	p.mu.Unlock()

	p.pub.Publish(Event{Type: EventMessages, Data: update})
	if p.OnOptimistic != nil {
		p.OnOptimistic(key, msg)
	}

	err := p.backend.SendMessage(ctx, model.SendRequest{
		ClientID:       key,
		Body:           body,
		IdempotencyKey: msg.IdempotencyKey,
	})
	sendsTotal.WithLabelValues(result(err)).Inc()
	if err == nil {
		return msg, nil
	}

	p.log.WithError(err).WithField("key", key).Warn("send failed")
	msg.Status = model.StatusFailed

	p.mu.Lock()
	if p.gen == gen {
		for i := range p.messages {
			if p.messages[i].ID == msg.ID {
				p.messages[i].Status = model.StatusFailed
			}
		}
		update = p.updateLocked()
		p.mu.Unlock()
		p.pub.Publish(Event{Type: EventMessages, Data: update})
	} else {
		p.mu.Unlock()
	}

	return msg, err
}

// Key is the identifier of the conversation the pane shows.
func (p *MessagePane) Key() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.key
}

func (p *MessagePane) Snapshot() MessagesUpdate {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.updateLocked()
}

func (p *MessagePane) updateLocked() MessagesUpdate {
	msgs := make([]model.Message, len(p.messages))
	copy(msgs, p.messages)
	return MessagesUpdate{
		Key:          p.key,
		Messages:     msgs,
		HasMore:      p.hasMore,
		LoadingOlder: p.loadingOlder,
	}
}
