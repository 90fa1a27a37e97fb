package delivery

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"foodbot/internal/domain"
)

type sentMessage struct {
	channel string // "reply" | "push"
	target  string // token or user ID
	text    string
}

type fakeMessenger struct {
	replyErr error
	pushErr  error
	sent     []sentMessage
}

func (f *fakeMessenger) Reply(ctx context.Context, replyToken string, text string) error {
	if f.replyErr != nil {
		return f.replyErr
	}
	f.sent = append(f.sent, sentMessage{channel: "reply", target: replyToken, text: text})
	return nil
}

func (f *fakeMessenger) Push(ctx context.Context, userID string, text string) error {
	if f.pushErr != nil {
		return f.pushErr
	}
	f.sent = append(f.sent, sentMessage{channel: "push", target: userID, text: text})
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testEvent() domain.InboundEvent {
	return domain.InboundEvent{
		Type:        "message",
		MessageType: "text",
		UserID:      "U123",
		ReplyToken:  "tok-abc",
		Text:        "hello",
		ReceivedAt:  time.Now(),
	}
}

func TestReply_ConsumesTokenAndYieldsPush(t *testing.T) {
	m := &fakeMessenger{}
	c := NewCoordinator(m, testLogger())

	pushing, err := c.Open(testEvent()).Reply(context.Background(), "กำลังวาดรูปให้อยู่นะ 😎🎨")
	if err != nil {
		t.Fatal(err)
	}
	if pushing == nil {
		t.Fatal("successful reply must yield a pushing handle")
	}

	if err := pushing.Push(context.Background(), "รูปสร้างเสร็จแล้ว 🎉"); err != nil {
		t.Fatal(err)
	}

	if len(m.sent) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(m.sent))
	}
	if m.sent[0].channel != "reply" || m.sent[0].target != "tok-abc" {
		t.Errorf("first send must consume the reply token, got %+v", m.sent[0])
	}
	if m.sent[1].channel != "push" || m.sent[1].target != "U123" {
		t.Errorf("second send must address the durable user ID, got %+v", m.sent[1])
	}
}

func TestReply_FailureIsTerminal(t *testing.T) {
	m := &fakeMessenger{replyErr: errors.New("Invalid reply token")}
	c := NewCoordinator(m, testLogger())

	pushing, err := c.Open(testEvent()).Reply(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected transport error")
	}
	if pushing != nil {
		t.Error("a failed reply must not open the push channel for the same content")
	}
	if len(m.sent) != 0 {
		t.Errorf("nothing should have been delivered, got %d sends", len(m.sent))
	}
}

func TestPush_FailureIsLoggedAndTerminal(t *testing.T) {
	m := &fakeMessenger{pushErr: errors.New("user blocked the bot")}
	c := NewCoordinator(m, testLogger())

	pushing, err := c.Open(testEvent()).Reply(context.Background(), "interim")
	if err != nil {
		t.Fatal(err)
	}
	if err := pushing.Push(context.Background(), "final"); err == nil {
		t.Fatal("expected push transport error")
	}
	// Only the reply went out; no fallback exists for a failed push.
	if len(m.sent) != 1 {
		t.Errorf("expected exactly the reply send, got %d", len(m.sent))
	}
}

func TestPush_ReusableAnyNumberOfTimes(t *testing.T) {
	m := &fakeMessenger{}
	c := NewCoordinator(m, testLogger())

	pushing, err := c.Open(testEvent()).Reply(context.Background(), "interim")
	if err != nil {
		t.Fatal(err)
	}
	pushing.Push(context.Background(), "one")
	pushing.Push(context.Background(), "two")

	if len(m.sent) != 3 {
		t.Errorf("push channel has no single-use restriction, expected 3 sends, got %d", len(m.sent))
	}
}
