package comms

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Vovarama1992/portal-desk/internal/model"
)

// OptimisticPrefix marks ids of messages shown before the backend confirmed them.
const OptimisticPrefix = "temp-"

func IsOptimistic(m model.Message) bool {
	return strings.HasPrefix(m.ID, OptimisticPrefix)
}

// NewOptimistic builds the local stand-in for an outbound message.
func NewOptimistic(body string, now time.Time) model.Message {
	key := uuid.NewString()
	return model.Message{
		ID:             OptimisticPrefix + key,
		Body:           body,
		Direction:      model.DirectionOutbound,
		Status:         model.StatusQueued,
		CreatedAt:      model.TimestampFromTime(now),
		IdempotencyKey: key,
	}
}

// SortMessages orders oldest first by resolved timestamp. Ties keep their order.
func SortMessages(msgs []model.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Millis() < msgs[j].CreatedAt.Millis()
	})
}

// Reconcile merges a freshly fetched latest page into what the pane holds.
//
// The fetched page is authoritative. Optimistic messages survive until the
// server returns a match: same idempotency key when the backend echoes it,
// otherwise same body and direction. Two identical texts sent back to back
// can be conflated by the fallback. Server messages not in the fetched page
// and no newer than its oldest entry (loaded by backward pagination) are kept.
func Reconcile(current, fetched []model.Message) []model.Message {
	seen := make(map[string]struct{}, len(fetched))
	keys := make(map[string]struct{})
	type bodyDir struct {
		body string
		dir  model.Direction
	}
	contents := make(map[bodyDir]struct{}, len(fetched))

	var oldest int64
	for i, m := range fetched {
		seen[m.ID] = struct{}{}
		if m.IdempotencyKey != "" {
			keys[m.IdempotencyKey] = struct{}{}
		}
		contents[bodyDir{m.Body, m.ResolvedDirection()}] = struct{}{}
		if ms := m.CreatedAt.Millis(); i == 0 || ms < oldest {
			oldest = ms
		}
	}

	out := make([]model.Message, 0, len(fetched)+4)
	for _, m := range current {
		if IsOptimistic(m) {
			continue
		}
		if _, ok := seen[m.ID]; ok {
			continue
		}
		if len(fetched) > 0 && m.CreatedAt.Millis() <= oldest {
			out = append(out, m)
		}
	}

	out = append(out, fetched...)

	for _, m := range current {
		if !IsOptimistic(m) {
			continue
		}
		if m.IdempotencyKey != "" {
			if _, ok := keys[m.IdempotencyKey]; ok {
				continue
			}
		}
		if _, ok := contents[bodyDir{m.Body, m.ResolvedDirection()}]; ok {
			continue
		}
		out = append(out, m)
	}

	SortMessages(out)
	return out
}

// changed reports whether next is worth committing over prev.
func changed(prev, next []model.Message) bool {
	if len(prev) != len(next) {
		return true
	}
	if len(next) == 0 {
		return false
	}
	return prev[len(prev)-1].ID != next[len(next)-1].ID
}
