// Package policy enforces the image-subject domain restriction: generated
// images must be about food or health. This is a business rule, not a
// security control; matching is deliberately permissive.
package policy

import (
	"log/slog"
	"strings"
)

// Allowlist accepts a subject iff it contains at least one configured topic
// keyword, case-insensitive substring match. False positives are fine; a
// false negative only costs the user a refusal message.
type Allowlist struct {
	keywords []string // pre-lowered
	logger   *slog.Logger
}

func NewAllowlist(keywords []string, logger *slog.Logger) *Allowlist {
	a := &Allowlist{logger: logger}
	for _, k := range keywords {
		if k == "" {
			continue
		}
		a.keywords = append(a.keywords, strings.ToLower(k))
	}
	return a
}

// Allowed reports whether the subject is inside the configured domain.
// An empty allowlist rejects everything.
func (a *Allowlist) Allowed(subject string) bool {
	lower := strings.ToLower(subject)
	for _, k := range a.keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	a.logger.Debug("subject outside allowlist", "subject", subject)
	return false
}
