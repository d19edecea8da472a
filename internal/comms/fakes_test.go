package comms

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Vovarama1992/portal-desk/internal/ai"
	"github.com/Vovarama1992/portal-desk/internal/audit"
	"github.com/Vovarama1992/portal-desk/internal/model"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type listCall struct {
	Key   string
	Query model.MessageQuery
}

type fakeBackend struct {
	mu sync.Mutex

	conversations []model.Conversation
	convErr       error

	latest  map[string][]model.Message
	older   map[string][]model.Message // by startAfter cursor
	listErr error

	// gates[key], when set, blocks ListMessages for key until closed
	gates map[string]chan struct{}

	sendErr     error
	sendStarted chan model.SendRequest
	sendGate    chan struct{}
	sent        []model.SendRequest

	markReadErr error
	markRead    chan string

	listCalls []listCall
	convCalls int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		latest:   make(map[string][]model.Message),
		older:    make(map[string][]model.Message),
		gates:    make(map[string]chan struct{}),
		markRead: make(chan string, 16),
	}
}

func (f *fakeBackend) ListConversations(context.Context) ([]model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.convCalls++
	if f.convErr != nil {
		return nil, f.convErr
	}
	out := make([]model.Conversation, len(f.conversations))
	copy(out, f.conversations)
	return out, nil
}

func (f *fakeBackend) setConversations(convs ...model.Conversation) {
	f.mu.Lock()
	f.conversations = convs
	f.mu.Unlock()
}

func (f *fakeBackend) ListMessages(ctx context.Context, key string, q model.MessageQuery) ([]model.Message, error) {
	f.mu.Lock()
	f.listCalls = append(f.listCalls, listCall{Key: key, Query: q})
	gate := f.gates[key]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}

	var src []model.Message
	if q.StartAfter != "" {
		src = f.older[q.StartAfter]
	} else {
		src = f.latest[key]
	}
	// backend answers newest first
	out := make([]model.Message, len(src))
	for i, m := range src {
		out[len(src)-1-i] = m
	}
	return out, nil
}

func (f *fakeBackend) setLatest(key string, msgs ...model.Message) {
	f.mu.Lock()
	f.latest[key] = msgs
	f.mu.Unlock()
}

func (f *fakeBackend) calls() []listCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]listCall, len(f.listCalls))
	copy(out, f.listCalls)
	return out
}

func (f *fakeBackend) SendMessage(ctx context.Context, req model.SendRequest) error {
	if f.sendStarted != nil {
		f.sendStarted <- req
	}
	if f.sendGate != nil {
		<-f.sendGate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, req)
	return f.sendErr
}

func (f *fakeBackend) MarkRead(ctx context.Context, key string) error {
	f.markRead <- key
	return f.markReadErr
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(ev Event) {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
}

func (p *recordingPublisher) ofType(t EventType) []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Event
	for _, ev := range p.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type memoryAuditor struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (a *memoryAuditor) Record(_ context.Context, e audit.Entry) error {
	a.mu.Lock()
	a.entries = append(a.entries, e)
	a.mu.Unlock()
	return nil
}

func (a *memoryAuditor) Recent(_ context.Context, key string, limit int) ([]audit.Entry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []audit.Entry
	for i := len(a.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if a.entries[i].ConversationKey == key {
			out = append(out, a.entries[i])
		}
	}
	return out, nil
}

func (a *memoryAuditor) all() []audit.Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]audit.Entry, len(a.entries))
	copy(out, a.entries)
	return out
}

type fakeAssistant struct {
	history []ai.Message
	reply   string
}

func (f *fakeAssistant) GetReply(_ context.Context, history []ai.Message) (string, error) {
	f.history = history
	return f.reply, nil
}

func at(sec int64) model.Timestamp {
	return model.Timestamp{Seconds: sec, Structured: true}
}

func iso(sec int64) model.Timestamp {
	return model.TimestampFromTime(time.Unix(sec, 0))
}

func msg(id, body string, dir model.Direction, ts model.Timestamp) model.Message {
	return model.Message{ID: id, Body: body, Direction: dir, CreatedAt: ts}
}

func ids(msgs []model.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}
