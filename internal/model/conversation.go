package model

// Conversation is a message thread, keyed primarily by phone number.
type Conversation struct {
	Phone                string    `json:"phone,omitempty"`
	ID                   string    `json:"id,omitempty"`
	ClientID             string    `json:"clientId,omitempty"`
	UID                  string    `json:"uid,omitempty"`
	Name                 string    `json:"name,omitempty"`
	LastMessage          string    `json:"lastMessage,omitempty"`
	LastMessageDirection Direction `json:"lastMessageDirection,omitempty"`
	LastMessageAt        Timestamp `json:"lastMessageAt"`
	UnreadCount          int       `json:"unreadCount"`
	Prospect             bool      `json:"isProspect,omitempty"`
}

// Key is the identifier used for every call addressing this conversation:
// phone, then record id, then linked client id, then legacy uid.
func (c Conversation) Key() string {
	switch {
	case c.Phone != "":
		return c.Phone
	case c.ID != "":
		return c.ID
	case c.ClientID != "":
		return c.ClientID
	default:
		return c.UID
	}
}

// DisplayName falls back to the key when the backend has no name.
func (c Conversation) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Key()
}

// TotalUnread sums every conversation's unread counter.
func TotalUnread(convs []Conversation) int {
	total := 0
	for _, c := range convs {
		total += c.UnreadCount
	}
	return total
}
