package domain

import "time"

// InboundEvent is one event from a webhook batch, flattened from the
// platform's wire shape. Only text message events are actionable; everything
// else is dropped without error.
type InboundEvent struct {
	Type        string // "message", "follow", "unfollow", ...
	MessageType string // "text", "image", "sticker", ...
	UserID      string
	ReplyToken  string // single use, expires within seconds
	Text        string
	ReceivedAt  time.Time
}

// Actionable reports whether the event should enter the pipeline.
func (e InboundEvent) Actionable() bool {
	return e.Type == "message" && e.MessageType == "text" && e.UserID != ""
}
