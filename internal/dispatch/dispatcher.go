// Package dispatch orchestrates one webhook batch: every event runs through
// the gate → classify → generate → deliver pipeline in its own goroutine,
// and no event's failure can touch its siblings.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"foodbot/internal/delivery"
	"foodbot/internal/domain"
	"foodbot/internal/gateway"
	"foodbot/internal/metrics"
	"foodbot/internal/persona"
	"foodbot/internal/policy"
	"foodbot/internal/prompt"
	"foodbot/internal/ratelimit"
)

type Dispatcher struct {
	limiter    *ratelimit.Limiter
	classifier domain.Classifier
	allowlist  *policy.Allowlist
	prompts    *prompt.Builder
	gateway    *gateway.Gateway
	deliveries *delivery.Coordinator
	msgs       persona.Messages
	logger     *slog.Logger
}

type Config struct {
	Limiter    *ratelimit.Limiter
	Classifier domain.Classifier
	Allowlist  *policy.Allowlist
	Prompts    *prompt.Builder
	Gateway    *gateway.Gateway
	Deliveries *delivery.Coordinator
	Messages   persona.Messages
	Logger     *slog.Logger
}

func New(cfg Config) *Dispatcher {
	return &Dispatcher{
		limiter:    cfg.Limiter,
		classifier: cfg.Classifier,
		allowlist:  cfg.Allowlist,
		prompts:    cfg.Prompts,
		gateway:    cfg.Gateway,
		deliveries: cfg.Deliveries,
		msgs:       cfg.Messages,
		logger:     cfg.Logger,
	}
}

// Dispatch fans the batch out, one goroutine per event, and returns once
// every event has run to completion. Individual outcomes are not aggregated:
// the platform acknowledgement does not depend on them.
func (d *Dispatcher) Dispatch(ctx context.Context, events []domain.InboundEvent) {
	start := time.Now()

	var wg sync.WaitGroup
	for _, ev := range events {
		wg.Add(1)
		go func(ev domain.InboundEvent) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					d.logger.Error("panic handling event", "user", ev.UserID, "panic", r)
				}
			}()
			d.handleEvent(ctx, ev)
		}(ev)
	}
	wg.Wait()

	metrics.BatchLatency.Observe(time.Since(start).Seconds())
}

func (d *Dispatcher) handleEvent(ctx context.Context, ev domain.InboundEvent) {
	metrics.EventsTotal.Inc()
	metrics.InflightEvents.Inc()
	defer metrics.InflightEvents.Dec()

	// Non-message and non-text events are dropped silently; that is not an error.
	if !ev.Actionable() {
		metrics.EventsIgnored.Inc()
		d.logger.Debug("ignoring event", "type", ev.Type, "message_type", ev.MessageType)
		return
	}

	del := d.deliveries.Open(ev)

	if !d.limiter.Admit(ev.UserID, ev.ReceivedAt) {
		metrics.EventsThrottled.Inc()
		d.logger.Info("throttled", "user", ev.UserID)
		del.Reply(ctx, d.msgs.Wait)
		return
	}

	in := d.classifier.Classify(ev.Text)
	switch in.Kind {
	case domain.IntentImageRequest:
		metrics.ImageRequests.Inc()
		d.handleImage(ctx, del, in.Subject)
	default:
		metrics.TextQueries.Inc()
		d.handleText(ctx, del, in.Text)
	}
}

// handleText answers a text query over the reply channel. A backend failure
// becomes a friendly apology, never an exception.
func (d *Dispatcher) handleText(ctx context.Context, del *delivery.Pending, text string) {
	start := time.Now()
	out, err := d.gateway.GenerateText(ctx, d.prompts.Build(text))
	metrics.GenerationLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BackendFailures.Inc()
		out = d.msgs.TextFailed
	}
	del.Reply(ctx, out)
}

// handleImage runs the two-phase image path: the reply token carries the
// interim notice, the final outcome arrives by push because generation
// outlives the token's validity window.
func (d *Dispatcher) handleImage(ctx context.Context, del *delivery.Pending, subject string) {
	if subject == "" {
		del.Reply(ctx, d.msgs.NoSubject)
		return
	}
	if !d.allowlist.Allowed(subject) {
		metrics.ScopeRejections.Inc()
		del.Reply(ctx, d.msgs.OutOfScope)
		return
	}

	pushing, err := del.Reply(ctx, d.msgs.Drawing)
	if err != nil {
		// Token gone before the interim notice went out; without a consumed
		// token there is no turn to finish, so generation is not attempted.
		return
	}

	start := time.Now()
	ack, err := d.gateway.GenerateImage(ctx, d.prompts.BuildImage(subject))
	metrics.GenerationLatency.Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		metrics.BackendFailures.Inc()
		pushing.Push(ctx, d.msgs.ImageFailed)
	case !ack.Generated:
		pushing.Push(ctx, d.msgs.ImageFailed)
	default:
		// Generated but undeliverable: no storage to host the binary.
		pushing.Push(ctx, d.msgs.ImageReady)
	}
}
