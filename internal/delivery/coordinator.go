package delivery

import (
	"context"
	"log/slog"

	"foodbot/internal/domain"
	"foodbot/internal/metrics"
)

// Coordinator opens one delivery per dispatched event and enforces its state
// machine: the reply token is consumed at most once, push messages are only
// possible after the token is gone, and transport failures are logged and
// swallowed: the user gets nothing for that turn rather than a duplicate.
type Coordinator struct {
	messenger domain.Messenger
	logger    *slog.Logger
}

func NewCoordinator(messenger domain.Messenger, logger *slog.Logger) *Coordinator {
	return &Coordinator{messenger: messenger, logger: logger}
}

// Open starts a delivery for an event. The returned Pending holds the live
// reply token; its only send operation consumes it.
func (c *Coordinator) Open(ev domain.InboundEvent) *Pending {
	return &Pending{c: c, userID: ev.UserID, replyToken: ev.ReplyToken}
}

// Pending is a delivery whose single-use reply token has not been consumed.
type Pending struct {
	c          *Coordinator
	userID     string
	replyToken string
}

// Reply sends the synchronous response, consuming the token, and returns a
// Pushing handle for any follow-up messages. There is no way back to the
// token: further sends for this event go through Push or not at all.
//
// On transport failure (expired or already-used token, network error) the
// delivery is terminal: the failure is logged and the same content is never
// escalated to the push channel.
func (p *Pending) Reply(ctx context.Context, text string) (*Pushing, error) {
	if err := p.c.messenger.Reply(ctx, p.replyToken, text); err != nil {
		metrics.ReplyFailures.Inc()
		p.c.logger.Error("reply delivery failed", "user", p.userID, "err", err)
		return nil, err
	}
	return &Pushing{c: p.c, userID: p.userID}, nil
}

// Pushing is a delivery whose reply token has been consumed. It no longer
// carries the token, so reusing it is a compile-time impossibility.
type Pushing struct {
	c      *Coordinator
	userID string
}

// Push sends an asynchronous message to the user. Failure is terminal: it is
// logged and no further fallback exists.
func (p *Pushing) Push(ctx context.Context, text string) error {
	if err := p.c.messenger.Push(ctx, p.userID, text); err != nil {
		metrics.PushFailures.Inc()
		p.c.logger.Error("push delivery failed", "user", p.userID, "err", err)
		return err
	}
	return nil
}
