// Package delivery owns the outbound half of the pipeline: the LINE
// Messaging API transport and the reply-token / push-message state machine.
package delivery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// LINE implements domain.Messenger on the LINE Messaging API.
type LINE struct {
	client *messaging_api.MessagingApiAPI
	logger *slog.Logger
}

func NewLINE(channelToken string, logger *slog.Logger) (*LINE, error) {
	client, err := messaging_api.NewMessagingApiAPI(channelToken)
	if err != nil {
		return nil, fmt.Errorf("create messaging API client: %w", err)
	}
	return &LINE{client: client, logger: logger}, nil
}

// Reply sends one text message bound to a single-use reply token. The API
// rejects expired, invalid, and already-consumed tokens.
func (l *LINE) Reply(ctx context.Context, replyToken string, text string) error {
	_, err := l.client.ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages: []messaging_api.MessageInterface{
			messaging_api.TextMessage{Text: text},
		},
	})
	if err != nil {
		return fmt.Errorf("line reply: %w", err)
	}
	return nil
}

// Push sends one text message addressed to a durable user ID. The retry key
// makes the send idempotent on the LINE side should the HTTP call be repeated.
func (l *LINE) Push(ctx context.Context, userID string, text string) error {
	_, err := l.client.PushMessage(&messaging_api.PushMessageRequest{
		To: userID,
		Messages: []messaging_api.MessageInterface{
			messaging_api.TextMessage{Text: text},
		},
	}, uuid.NewString())
	if err != nil {
		return fmt.Errorf("line push: %w", err)
	}
	return nil
}
