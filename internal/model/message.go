package model

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

// Message belongs to exactly one conversation.
type Message struct {
	ID             string    `json:"id"`
	Body           string    `json:"body,omitempty"`
	Direction      Direction `json:"direction,omitempty"`
	Status         Status    `json:"status,omitempty"`
	Template       string    `json:"template,omitempty"`
	CreatedAt      Timestamp `json:"createdAt"`
	IdempotencyKey string    `json:"idempotencyKey,omitempty"`
}

// ResolvedDirection infers a direction for legacy records that lack one:
// a template or any delivery status means we sent it.
func (m Message) ResolvedDirection() Direction {
	if m.Direction != "" {
		return m.Direction
	}
	if m.Template != "" {
		return DirectionOutbound
	}
	switch m.Status {
	case StatusSent, StatusDelivered, StatusRead, StatusQueued, StatusFailed:
		return DirectionOutbound
	}
	return DirectionInbound
}

// MessageQuery is the query string of a message page request.
type MessageQuery struct {
	Limit      int
	StartAfter string
	OrderBy    string
	Sort       string
}

// SendRequest is the body of an outbound send.
type SendRequest struct {
	ClientID       string `json:"clientId"`
	Body           string `json:"body"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}
