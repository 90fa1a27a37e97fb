package domain

import "context"

// Messenger is the outbound transport to the chat platform. Reply is bound to
// a single-use token issued with the event; Push addresses the durable user ID
// and has no expiry. Both fail with a plain transport error; neither retries.
type Messenger interface {
	Reply(ctx context.Context, replyToken string, text string) error
	Push(ctx context.Context, userID string, text string) error
}
