package ai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

type OpenAIClient struct {
	client *openai.Client
	model  string
	log    *logrus.Entry
}

// NewOpenAIClient returns nil when apiKey is empty: drafting is optional.
func NewOpenAIClient(apiKey, model string, log *logrus.Logger) *OpenAIClient {
	if apiKey == "" {
		return nil
	}
	return NewOpenAIClientWithConfig(openai.DefaultConfig(apiKey), model, log)
}

func NewOpenAIClientWithConfig(cfg openai.ClientConfig, model string, log *logrus.Logger) *OpenAIClient {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		log:    log.WithField("component", "ai"),
	}
}

// GetReply drafts the next operator message for history.
func (c *OpenAIClient) GetReply(ctx context.Context, history []Message) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: ReplyDrafterPrompt,
	})

	for _, m := range history {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Text,
		})
	}

	// форматный guard: последним system
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: jsonGuard,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: msgs,
	})
	if err != nil {
		c.log.WithError(err).Warn("completion failed")
		return "", err
	}

	if len(resp.Choices) == 0 {
		c.log.Warn("empty choices")
		return "", errors.New("ai: empty choices")
	}

	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	c.log.WithField("raw", short(raw)).Debug("completion")

	var out struct {
		Answer string `json:"answer"`
	}
	if err := json.Unmarshal([]byte(stripFence(raw)), &out); err != nil {
		c.log.WithError(err).Warn("reply is not json")
		return "", err
	}

	return strings.TrimSpace(out.Answer), nil
}

// stripFence drops a ```json fence some models wrap around the answer.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func short(s string) string {
	if len(s) > 180 {
		return s[:180] + "..."
	}
	return s
}
