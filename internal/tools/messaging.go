package tools

import (
	"context"

	"go.uber.org/zap"
)

// MessageSummary is one search hit.
type MessageSummary struct {
	ID      string
	Subject string
	From    string
	Date    string
	Snippet string
}

// MessageDetail is one fetched message.
type MessageDetail struct {
	ID      string
	Subject string
	From    string
	Date    string
	Body    string
}

// Messaging wraps the mail tools of a bridge.
type Messaging struct {
	inv Invoker
	log *zap.Logger
}

// NewMessaging builds a Messaging over inv.
func NewMessaging(inv Invoker, log *zap.Logger) *Messaging {
	if log == nil {
		log = zap.NewNop()
	}
	return &Messaging{inv: inv, log: log}
}

// Send sends a plain-text message.
func (m *Messaging) Send(ctx context.Context, to []string, subject, body string) error {
	_, err := m.inv.Invoke(ctx, "send_email", map[string]any{
		"to":       to,
		"subject":  subject,
		"body":     body,
		"mimeType": "text/plain",
	})
	return err
}

// Draft composes a message without sending it.
func (m *Messaging) Draft(ctx context.Context, to []string, subject, body string) error {
	_, err := m.inv.Invoke(ctx, "draft_email", map[string]any{
		"to":      to,
		"subject": subject,
		"body":    body,
	})
	return err
}

// Search returns up to max matching messages. max below 1 means 10.
func (m *Messaging) Search(ctx context.Context, query string, max int) ([]MessageSummary, error) {
	if max < 1 {
		max = 10
	}
	result, err := m.inv.Invoke(ctx, "search_emails", map[string]any{
		"query":      query,
		"maxResults": max,
	})
	if err != nil {
		return nil, err
	}

	raw, _ := result["messages"].([]any)
	summaries := make([]MessageSummary, 0, len(raw))
	for _, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		summaries = append(summaries, MessageSummary{
			ID:      resultString(entry, "id"),
			Subject: resultString(entry, "subject"),
			From:    resultString(entry, "from"),
			Date:    resultString(entry, "date"),
			Snippet: resultString(entry, "snippet"),
		})
	}
	m.log.Debug("messages searched", zap.String("query", query), zap.Int("hits", len(summaries)))
	return summaries, nil
}

// Read fetches one message by ID.
func (m *Messaging) Read(ctx context.Context, messageID string) (*MessageDetail, error) {
	result, err := m.inv.Invoke(ctx, "read_email", map[string]any{"messageId": messageID})
	if err != nil {
		return nil, err
	}
	return &MessageDetail{
		ID:      resultString(result, "id"),
		Subject: resultString(result, "subject"),
		From:    resultString(result, "from"),
		Date:    resultString(result, "date"),
		Body:    resultString(result, "body"),
	}, nil
}
