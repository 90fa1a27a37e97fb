package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"foodbot/internal/delivery"
	"foodbot/internal/domain"
	"foodbot/internal/gateway"
	"foodbot/internal/intent"
	"foodbot/internal/persona"
	"foodbot/internal/policy"
	"foodbot/internal/prompt"
	"foodbot/internal/ratelimit"
)

type sentMessage struct {
	kind   string // "reply" or "push"
	target string // reply token or user ID
	text   string
}

type fakeMessenger struct {
	mu       sync.Mutex
	replyErr error
	sent     []sentMessage
}

func (m *fakeMessenger) Reply(_ context.Context, replyToken, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{kind: "reply", target: replyToken, text: text})
	return m.replyErr
}

func (m *fakeMessenger) Push(_ context.Context, userID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{kind: "push", target: userID, text: text})
	return nil
}

func (m *fakeMessenger) countText(text string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sent {
		if s.text == text {
			n++
		}
	}
	return n
}

func (m *fakeMessenger) all() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

type fakeText struct {
	fn func(prompt string) (string, error)
}

func (f *fakeText) GenerateText(_ context.Context, prompt string) (string, error) {
	return f.fn(prompt)
}

type fakeImage struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeImage) GenerateImage(_ context.Context, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return true, nil
}

func (f *fakeImage) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestDispatcher(text *fakeText, image *fakeImage, m domain.Messenger) (*Dispatcher, persona.Messages) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := persona.Default()
	gw := gateway.New(gateway.Config{
		Text:        text,
		Image:       image,
		EmptyAnswer: p.Messages.EmptyAnswer,
		TruncMark:   p.Messages.TruncationMark,
		Logger:      logger,
	})
	d := New(Config{
		Limiter:    ratelimit.New(0, 0, logger),
		Classifier: intent.NewTriggerClassifier(p.Triggers),
		Allowlist:  policy.NewAllowlist(p.Allowlist, logger),
		Prompts:    prompt.NewBuilder(p.SystemPrompt),
		Gateway:    gw,
		Deliveries: delivery.NewCoordinator(m, logger),
		Messages:   p.Messages,
		Logger:     logger,
	})
	return d, p.Messages
}

func textEvent(userID, replyToken, text string, at time.Time) domain.InboundEvent {
	return domain.InboundEvent{
		Type:        "message",
		MessageType: "text",
		UserID:      userID,
		ReplyToken:  replyToken,
		Text:        text,
		ReceivedAt:  at,
	}
}

func echoBackend() *fakeText {
	return &fakeText{fn: func(prompt string) (string, error) {
		return "answer:" + prompt, nil
	}}
}

func TestDispatch_TextQueryIsAnsweredOverReply(t *testing.T) {
	m := &fakeMessenger{}
	d, _ := newTestDispatcher(echoBackend(), &fakeImage{}, m)

	d.Dispatch(context.Background(), []domain.InboundEvent{
		textEvent("u1", "tok1", "กินอะไรดี", time.Now()),
	})

	sent := m.all()
	if len(sent) != 1 {
		t.Fatalf("sent = %d messages, want 1", len(sent))
	}
	if sent[0].kind != "reply" || sent[0].target != "tok1" {
		t.Fatalf("sent[0] = %+v, want reply to tok1", sent[0])
	}
	if !strings.Contains(sent[0].text, "กินอะไรดี") {
		t.Fatalf("answer %q does not echo the question", sent[0].text)
	}
}

func TestDispatch_BackendFailureIsIsolatedPerEvent(t *testing.T) {
	m := &fakeMessenger{}
	text := &fakeText{fn: func(prompt string) (string, error) {
		if strings.Contains(prompt, "boom") {
			return "", errors.New("upstream 500")
		}
		return "ok", nil
	}}
	d, msgs := newTestDispatcher(text, &fakeImage{}, m)

	now := time.Now()
	d.Dispatch(context.Background(), []domain.InboundEvent{
		textEvent("u1", "tok1", "เมนูเช้า", now),
		textEvent("u2", "tok2", "boom", now),
		textEvent("u3", "tok3", "เมนูเย็น", now),
	})

	if got := m.countText("ok"); got != 2 {
		t.Fatalf("healthy replies = %d, want 2", got)
	}
	if got := m.countText(msgs.TextFailed); got != 1 {
		t.Fatalf("apology replies = %d, want 1", got)
	}
}

func TestDispatch_ImageRequestRepliesThenPushes(t *testing.T) {
	m := &fakeMessenger{}
	d, msgs := newTestDispatcher(echoBackend(), &fakeImage{}, m)

	d.Dispatch(context.Background(), []domain.InboundEvent{
		textEvent("u1", "tok1", "วาดรูปสลัดผัก", time.Now()),
	})

	sent := m.all()
	if len(sent) != 2 {
		t.Fatalf("sent = %d messages, want 2", len(sent))
	}
	if sent[0].kind != "reply" || sent[0].text != msgs.Drawing {
		t.Fatalf("sent[0] = %+v, want interim drawing reply", sent[0])
	}
	if sent[1].kind != "push" || sent[1].target != "u1" || sent[1].text != msgs.ImageReady {
		t.Fatalf("sent[1] = %+v, want image-ready push to u1", sent[1])
	}
}

func TestDispatch_ImageFailurePushesApology(t *testing.T) {
	m := &fakeMessenger{}
	d, msgs := newTestDispatcher(echoBackend(), &fakeImage{err: errors.New("no image data")}, m)

	d.Dispatch(context.Background(), []domain.InboundEvent{
		textEvent("u1", "tok1", "วาดรูปเมนูคลีน", time.Now()),
	})

	if got := m.countText(msgs.ImageFailed); got != 1 {
		t.Fatalf("failure pushes = %d, want 1", got)
	}
}

func TestDispatch_ImageWithoutSubjectAsksForOne(t *testing.T) {
	m := &fakeMessenger{}
	img := &fakeImage{}
	d, msgs := newTestDispatcher(echoBackend(), img, m)

	d.Dispatch(context.Background(), []domain.InboundEvent{
		textEvent("u1", "tok1", "วาดรูป", time.Now()),
	})

	if got := m.countText(msgs.NoSubject); got != 1 {
		t.Fatalf("no-subject replies = %d, want 1", got)
	}
	if img.callCount() != 0 {
		t.Fatalf("image backend called %d times, want 0", img.callCount())
	}
}

func TestDispatch_OffTopicImageIsRefused(t *testing.T) {
	m := &fakeMessenger{}
	img := &fakeImage{}
	d, msgs := newTestDispatcher(echoBackend(), img, m)

	d.Dispatch(context.Background(), []domain.InboundEvent{
		textEvent("u1", "tok1", "วาดรูปรถสปอร์ต", time.Now()),
	})

	if got := m.countText(msgs.OutOfScope); got != 1 {
		t.Fatalf("out-of-scope replies = %d, want 1", got)
	}
	if img.callCount() != 0 {
		t.Fatalf("image backend called %d times, want 0", img.callCount())
	}
}

func TestDispatch_FailedInterimReplySkipsGeneration(t *testing.T) {
	m := &fakeMessenger{replyErr: errors.New("invalid reply token")}
	img := &fakeImage{}
	d, _ := newTestDispatcher(echoBackend(), img, m)

	d.Dispatch(context.Background(), []domain.InboundEvent{
		textEvent("u1", "tok1", "วาดรูปสลัด", time.Now()),
	})

	if img.callCount() != 0 {
		t.Fatalf("image backend called %d times after failed interim reply, want 0", img.callCount())
	}
	sent := m.all()
	for _, s := range sent {
		if s.kind == "push" {
			t.Fatalf("unexpected push %+v after failed interim reply", s)
		}
	}
}

func TestDispatch_SecondMessageInWindowGetsWaitNotice(t *testing.T) {
	m := &fakeMessenger{}
	d, msgs := newTestDispatcher(echoBackend(), &fakeImage{}, m)

	now := time.Now()
	d.Dispatch(context.Background(), []domain.InboundEvent{
		textEvent("u1", "tok1", "เมนูเช้า", now),
		textEvent("u1", "tok2", "เมนูเย็น", now.Add(time.Millisecond)),
	})

	if got := m.countText(msgs.Wait); got != 1 {
		t.Fatalf("wait notices = %d, want 1", got)
	}
	if got := len(m.all()); got != 2 {
		t.Fatalf("sent = %d messages, want 2 (one answer, one wait)", got)
	}
}

func TestDispatch_NonTextEventsAreIgnored(t *testing.T) {
	m := &fakeMessenger{}
	d, _ := newTestDispatcher(echoBackend(), &fakeImage{}, m)

	d.Dispatch(context.Background(), []domain.InboundEvent{
		{Type: "follow", UserID: "u1", ReceivedAt: time.Now()},
		{Type: "message", MessageType: "sticker", UserID: "u1", ReplyToken: "tok1", ReceivedAt: time.Now()},
		{Type: "message", MessageType: "text", Text: "hi", ReceivedAt: time.Now()}, // no user ID
	})

	if got := len(m.all()); got != 0 {
		t.Fatalf("sent = %d messages for ignorable events, want 0", got)
	}
}
