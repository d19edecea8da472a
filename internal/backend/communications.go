package backend

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/Vovarama1992/portal-desk/internal/model"
)

func (c *Client) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	body, err := c.get(ctx, "/communications/conversations", nil)
	if err != nil {
		return nil, err
	}

	var out []model.Conversation
	if err := decodeList(body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListMessages(ctx context.Context, key string, q model.MessageQuery) ([]model.Message, error) {
	if strings.TrimSpace(key) == "" {
		return nil, errors.New("backend: conversation identifier is required")
	}

	query := url.Values{}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.StartAfter != "" {
		query.Set("startAfter", q.StartAfter)
	}
	if q.OrderBy != "" {
		query.Set("orderBy", q.OrderBy)
	}
	if q.Sort != "" {
		query.Set("sort", q.Sort)
	}

	body, err := c.get(ctx, "/communications/messages/"+url.PathEscape(key), query)
	if err != nil {
		return nil, err
	}

	var out []model.Message
	if err := decodeList(body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SendMessage(ctx context.Context, req model.SendRequest) error {
	if strings.TrimSpace(req.ClientID) == "" {
		return errors.New("backend: conversation identifier is required")
	}
	_, err := c.post(ctx, "/communications/send", req)
	return err
}

func (c *Client) MarkRead(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("backend: conversation identifier is required")
	}
	_, err := c.post(ctx, "/communications/conversations/"+url.PathEscape(key)+"/read", nil)
	return err
}
