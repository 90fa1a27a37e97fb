// Package gateway fronts the generation backends. It owns the two policies
// the backends must never be trusted with: the hard reply-size ceiling, and
// the reduction of image output to an acknowledgement.
package gateway

import (
	"context"
	"log/slog"

	"foodbot/internal/domain"
)

const (
	// The delivery channel rejects messages over this many characters, so an
	// oversized completion must never be forwarded untruncated.
	maxReplyChars = 5000
	truncateAt    = 4900
)

// Gateway invokes the text or image backend exactly once per call and maps
// every backend failure to a typed *domain.BackendError.
type Gateway struct {
	text        domain.TextBackend
	image       domain.ImageBackend
	emptyAnswer string // substituted when the text backend returns nothing
	truncMark   string // appended to truncated replies
	logger      *slog.Logger
}

type Config struct {
	Text        domain.TextBackend
	Image       domain.ImageBackend
	EmptyAnswer string
	TruncMark   string
	Logger      *slog.Logger
}

func New(cfg Config) *Gateway {
	return &Gateway{
		text:        cfg.Text,
		image:       cfg.Image,
		emptyAnswer: cfg.EmptyAnswer,
		truncMark:   cfg.TruncMark,
		logger:      cfg.Logger,
	}
}

// GenerateText runs the prompt through the text backend. The result is
// display-ready: never empty, never longer than the channel allows.
func (g *Gateway) GenerateText(ctx context.Context, prompt string) (string, error) {
	text, err := g.text.GenerateText(ctx, prompt)
	if err != nil {
		g.logger.Error("text generation failed", "err", err)
		return "", &domain.BackendError{Kind: domain.BackendText, Err: err}
	}
	if text == "" {
		text = g.emptyAnswer
	}
	return g.truncate(text), nil
}

// GenerateImage runs the subject through the image backend. A generation
// that produced data is still undeliverable (there is no storage to host
// the binary), which is a different outcome from a failed generation.
func (g *Gateway) GenerateImage(ctx context.Context, instruction string) (domain.ImageAck, error) {
	generated, err := g.image.GenerateImage(ctx, instruction)
	if err != nil {
		g.logger.Error("image generation failed", "err", err)
		return domain.ImageAck{}, &domain.BackendError{Kind: domain.BackendImage, Err: err}
	}
	return domain.ImageAck{Generated: generated, Deliverable: false}, nil
}

// truncate cuts text to a safe prefix and appends the truncation marker.
// Counts are in runes so multi-byte Thai text is not cut mid-character.
func (g *Gateway) truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= maxReplyChars {
		return text
	}
	g.logger.Info("truncating oversized reply", "runes", len(runes))
	return string(runes[:truncateAt]) + "\n\n" + g.truncMark
}
