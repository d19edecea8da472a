package comms

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vovarama1992/portal-desk/internal/model"
)

func page(prefix string, from, n int) []model.Message {
	out := make([]model.Message, n)
	for i := 0; i < n; i++ {
		sec := int64(from + i)
		out[i] = msg(fmt.Sprintf("%s%d", prefix, sec), "m", model.DirectionInbound, at(sec))
	}
	return out
}

func TestMessagePane_SwitchLoadsLatestPageAscending(t *testing.T) {
	be := newFakeBackend()
	pub := &recordingPublisher{}
	p := NewMessagePane(be, pub, 0, quietLogger())

	be.setLatest("+1",
		msg("a", "uno", model.DirectionInbound, at(10)),
		msg("b", "dos", model.DirectionOutbound, iso(20)),
		msg("c", "tres", model.DirectionInbound, at(30)),
	)

	require.NoError(t, p.Switch(context.Background(), "+1"))

	snap := p.Snapshot()
	assert.Equal(t, "+1", snap.Key)
	assert.Equal(t, []string{"a", "b", "c"}, ids(snap.Messages))
	assert.True(t, snap.HasMore)

	calls := be.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "+1", calls[0].Key)
	assert.Equal(t, model.MessageQuery{Limit: DefaultPageSize, OrderBy: "createdAt", Sort: "desc"}, calls[0].Query)

	events := pub.ofType(EventMessages)
	require.Len(t, events, 2)
	assert.Empty(t, events[0].Data.(MessagesUpdate).Messages, "pane clears before fetching")
	assert.True(t, events[1].Data.(MessagesUpdate).ScrollToBottom)
}

func TestMessagePane_SwitchErrorLeavesEmptyPane(t *testing.T) {
	be := newFakeBackend()
	be.listErr = errors.New("boom")
	p := NewMessagePane(be, nil, 0, quietLogger())

	assert.Error(t, p.Switch(context.Background(), "+1"))
	snap := p.Snapshot()
	assert.Equal(t, "+1", snap.Key)
	assert.Empty(t, snap.Messages)
}

func TestMessagePane_StaleSwitchIsDiscarded(t *testing.T) {
	be := newFakeBackend()
	p := NewMessagePane(be, nil, 0, quietLogger())

	be.setLatest("A", msg("a1", "de A", model.DirectionInbound, at(1)))
	be.setLatest("B", msg("b1", "de B", model.DirectionInbound, at(2)))

	gate := make(chan struct{})
	be.mu.Lock()
	be.gates["A"] = gate
	be.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- p.Switch(context.Background(), "A") }()

	assert.Eventually(t, func() bool { return len(be.calls()) == 1 }, time.Second, time.Millisecond)

	require.NoError(t, p.Switch(context.Background(), "B"))
	close(gate)
	require.NoError(t, <-done)

	snap := p.Snapshot()
	assert.Equal(t, "B", snap.Key)
	assert.Equal(t, []string{"b1"}, ids(snap.Messages))
}

func TestMessagePane_PollCommitsOnlyOnChange(t *testing.T) {
	be := newFakeBackend()
	pub := &recordingPublisher{}
	p := NewMessagePane(be, pub, 0, quietLogger())
	ctx := context.Background()

	be.setLatest("+1", msg("a", "x", model.DirectionInbound, at(1)))
	require.NoError(t, p.Switch(ctx, "+1"))
	before := len(pub.ofType(EventMessages))

	changed, err := p.Poll(ctx)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, pub.ofType(EventMessages), before)

	be.setLatest("+1",
		msg("a", "x", model.DirectionInbound, at(1)),
		msg("b", "y", model.DirectionInbound, at(2)),
	)
	changed, err = p.Poll(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"a", "b"}, ids(p.Snapshot().Messages))

	events := pub.ofType(EventMessages)
	assert.Len(t, events, before+1)
	assert.True(t, events[len(events)-1].Data.(MessagesUpdate).ScrollToBottom)
}

func TestMessagePane_PollWithoutSelection(t *testing.T) {
	be := newFakeBackend()
	p := NewMessagePane(be, nil, 0, quietLogger())

	changed, err := p.Poll(context.Background())
	assert.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, be.calls())
}

func TestMessagePane_SendAppendsBeforeNetwork(t *testing.T) {
	be := newFakeBackend()
	be.sendStarted = make(chan model.SendRequest, 1)
	be.sendGate = make(chan struct{})
	pub := &recordingPublisher{}
	p := NewMessagePane(be, pub, 0, quietLogger())

	be.setLatest("+573001112233", msg("m1", "hola", model.DirectionInbound, at(1)))
	require.NoError(t, p.Switch(context.Background(), "+573001112233"))

	type sendResult struct {
		msg model.Message
		err error
	}
	done := make(chan sendResult, 1)
	go func() {
		m, err := p.Send(context.Background(), "  hello ")
		done <- sendResult{m, err}
	}()

	req := <-be.sendStarted

	// the request is still blocked: the message is already visible
	snap := p.Snapshot()
	require.Len(t, snap.Messages, 2)
	last := snap.Messages[1]
	assert.True(t, IsOptimistic(last))
	assert.Equal(t, "hello", last.Body)
	assert.Equal(t, model.DirectionOutbound, last.Direction)

	assert.Equal(t, "+573001112233", req.ClientID)
	assert.Equal(t, "hello", req.Body)
	assert.Equal(t, last.IdempotencyKey, req.IdempotencyKey)

	close(be.sendGate)
	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, last.ID, res.msg.ID)
	assert.NotEqual(t, model.StatusFailed, p.Snapshot().Messages[1].Status)
}

func TestMessagePane_SendFailureMarksFailed(t *testing.T) {
	be := newFakeBackend()
	be.sendErr = errors.New("gateway down")
	p := NewMessagePane(be, nil, 0, quietLogger())

	require.NoError(t, p.Switch(context.Background(), "+1"))

	m, err := p.Send(context.Background(), "hola")
	assert.EqualError(t, err, "gateway down")
	assert.Equal(t, model.StatusFailed, m.Status)

	snap := p.Snapshot()
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, m.ID, snap.Messages[0].ID)
	assert.Equal(t, model.StatusFailed, snap.Messages[0].Status)
}

func TestMessagePane_SendValidation(t *testing.T) {
	be := newFakeBackend()
	p := NewMessagePane(be, nil, 0, quietLogger())

	_, err := p.Send(context.Background(), "hola")
	assert.ErrorIs(t, err, ErrNoConversation)

	require.NoError(t, p.Switch(context.Background(), "+1"))
	_, err = p.Send(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyBody)

	assert.Empty(t, p.Snapshot().Messages)
	assert.Empty(t, be.sent)
}

func TestMessagePane_OptimisticSurvivesPollUntilEchoed(t *testing.T) {
	be := newFakeBackend()
	p := NewMessagePane(be, nil, 0, quietLogger())
	ctx := context.Background()

	be.setLatest("+1", msg("m1", "hola", model.DirectionInbound, at(1)))
	require.NoError(t, p.Switch(ctx, "+1"))

	sent, err := p.Send(ctx, "hello")
	require.NoError(t, err)

	_, err = p.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", sent.ID}, ids(p.Snapshot().Messages))

	be.setLatest("+1",
		msg("m1", "hola", model.DirectionInbound, at(1)),
		msg("m2", "hello", model.DirectionOutbound, model.TimestampFromTime(time.Now().Add(time.Second))),
	)
	_, err = p.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, ids(p.Snapshot().Messages))
}

func TestMessagePane_LoadOlder(t *testing.T) {
	be := newFakeBackend()
	pub := &recordingPublisher{}
	p := NewMessagePane(be, pub, 0, quietLogger())
	ctx := context.Background()

	latest := page("n", 100, DefaultPageSize)
	be.setLatest("+1", latest...)
	require.NoError(t, p.Switch(ctx, "+1"))

	// full page: history may continue
	be.mu.Lock()
	be.older["n100"] = page("o", 50, DefaultPageSize)
	be.mu.Unlock()

	n, err := p.LoadOlder(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultPageSize, n)

	calls := be.calls()
	last := calls[len(calls)-1]
	assert.Equal(t, "n100", last.Query.StartAfter)
	assert.Equal(t, DefaultPageSize, last.Query.Limit)

	snap := p.Snapshot()
	assert.Len(t, snap.Messages, 2*DefaultPageSize)
	assert.Equal(t, "o50", snap.Messages[0].ID)
	assert.True(t, snap.HasMore)

	events := pub.ofType(EventMessages)
	assert.Equal(t, DefaultPageSize, events[len(events)-1].Data.(MessagesUpdate).Prepended)

	// short page with one duplicate: exhausted
	be.mu.Lock()
	be.older["o50"] = append(page("p", 40, 9), msg("o50", "m", model.DirectionInbound, at(50)))
	be.mu.Unlock()

	n, err = p.LoadOlder(ctx)
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	assert.False(t, p.Snapshot().HasMore)
	assert.Equal(t, "p40", p.Snapshot().Messages[0].ID)

	before := len(be.calls())
	n, err = p.LoadOlder(ctx)
	assert.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, be.calls(), before, "no request once history is exhausted")
}

func TestMessagePane_LoadOlderFailureIsNotRetried(t *testing.T) {
	be := newFakeBackend()
	p := NewMessagePane(be, nil, 0, quietLogger())
	ctx := context.Background()

	be.setLatest("+1", page("n", 100, DefaultPageSize)...)
	require.NoError(t, p.Switch(ctx, "+1"))

	be.mu.Lock()
	be.listErr = errors.New("boom")
	be.mu.Unlock()

	before := len(be.calls())
	_, err := p.LoadOlder(ctx)
	assert.Error(t, err)
	assert.Len(t, be.calls(), before+1)

	snap := p.Snapshot()
	assert.True(t, snap.HasMore)
	assert.False(t, snap.LoadingOlder)
	assert.Len(t, snap.Messages, DefaultPageSize)
}

func TestMessagePane_LoadOlderSingleFlight(t *testing.T) {
	be := newFakeBackend()
	p := NewMessagePane(be, nil, 0, quietLogger())
	ctx := context.Background()

	be.setLatest("+1", page("n", 100, DefaultPageSize)...)
	require.NoError(t, p.Switch(ctx, "+1"))

	gate := make(chan struct{})
	be.mu.Lock()
	be.gates["+1"] = gate
	be.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_, _ = p.LoadOlder(ctx)
		close(done)
	}()
	assert.Eventually(t, func() bool { return len(be.calls()) == 2 }, time.Second, time.Millisecond)
	assert.True(t, p.Snapshot().LoadingOlder)

	n, err := p.LoadOlder(ctx)
	assert.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, be.calls(), 2)

	close(gate)
	<-done
	assert.False(t, p.Snapshot().LoadingOlder)
}

func TestMessagePane_LoadOlderNeedsServerMessage(t *testing.T) {
	be := newFakeBackend()
	p := NewMessagePane(be, nil, 0, quietLogger())
	ctx := context.Background()

	require.NoError(t, p.Switch(ctx, "+1"))
	_, err := p.Send(ctx, "hola")
	require.NoError(t, err)

	before := len(be.calls())
	n, err := p.LoadOlder(ctx)
	assert.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, be.calls(), before)
}

func TestMessagePane_StalePollIsDiscarded(t *testing.T) {
	be := newFakeBackend()
	pub := &recordingPublisher{}
	p := NewMessagePane(be, pub, 0, quietLogger())
	ctx := context.Background()

	be.setLatest("A", msg("a1", "de A", model.DirectionInbound, at(1)))
	be.setLatest("B", msg("b1", "de B", model.DirectionInbound, at(2)))
	require.NoError(t, p.Switch(ctx, "A"))

	be.setLatest("A",
		msg("a1", "de A", model.DirectionInbound, at(1)),
		msg("a2", "otra de A", model.DirectionInbound, at(3)),
	)
	gate := make(chan struct{})
	be.mu.Lock()
	be.gates["A"] = gate
	be.mu.Unlock()

	type pollResult struct {
		changed bool
		err     error
	}
	done := make(chan pollResult, 1)
	go func() {
		c, err := p.Poll(ctx)
		done <- pollResult{c, err}
	}()
	assert.Eventually(t, func() bool { return len(be.calls()) == 2 }, time.Second, time.Millisecond)

	require.NoError(t, p.Switch(ctx, "B"))
	published := len(pub.ofType(EventMessages))
	close(gate)

	res := <-done
	assert.NoError(t, res.err)
	assert.False(t, res.changed)

	snap := p.Snapshot()
	assert.Equal(t, "B", snap.Key)
	assert.Equal(t, []string{"b1"}, ids(snap.Messages))
	assert.Len(t, pub.ofType(EventMessages), published)
}

func TestMessagePane_StaleLoadOlderIsDiscarded(t *testing.T) {
	be := newFakeBackend()
	p := NewMessagePane(be, nil, 0, quietLogger())
	ctx := context.Background()

	be.setLatest("A", page("a", 100, DefaultPageSize)...)
	be.setLatest("B", msg("b1", "de B", model.DirectionInbound, at(2)))
	be.mu.Lock()
	be.older["a100"] = page("x", 50, DefaultPageSize)
	be.mu.Unlock()
	require.NoError(t, p.Switch(ctx, "A"))

	gate := make(chan struct{})
	be.mu.Lock()
	be.gates["A"] = gate
	be.mu.Unlock()

	type olderResult struct {
		n   int
		err error
	}
	done := make(chan olderResult, 1)
	go func() {
		n, err := p.LoadOlder(ctx)
		done <- olderResult{n, err}
	}()
	assert.Eventually(t, func() bool { return len(be.calls()) == 2 }, time.Second, time.Millisecond)

	require.NoError(t, p.Switch(ctx, "B"))
	close(gate)

	res := <-done
	assert.NoError(t, res.err)
	assert.Zero(t, res.n)

	snap := p.Snapshot()
	assert.Equal(t, "B", snap.Key)
	assert.Equal(t, []string{"b1"}, ids(snap.Messages))
	assert.True(t, snap.HasMore)
	assert.False(t, snap.LoadingOlder)
}

func TestMessagePane_Reset(t *testing.T) {
	be := newFakeBackend()
	p := NewMessagePane(be, nil, 0, quietLogger())
	ctx := context.Background()

	be.setLatest("A", msg("a1", "hola", model.DirectionInbound, at(1)))
	require.NoError(t, p.Switch(ctx, "A"))
	p.Reset()

	snap := p.Snapshot()
	assert.Empty(t, snap.Key)
	assert.Empty(t, snap.Messages)

	changed, err := p.Poll(ctx)
	assert.NoError(t, err)
	assert.False(t, changed)
	_, err = p.Send(ctx, "hola")
	assert.ErrorIs(t, err, ErrNoConversation)
}
