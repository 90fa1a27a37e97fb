// Package intent classifies inbound message text. Classification is behind
// the domain.Classifier interface so the trigger-phrase matcher can be
// replaced without touching dispatch logic.
package intent

import (
	"strings"
	"unicode"

	"foodbot/internal/domain"
)

// TriggerClassifier matches a small fixed set of trigger phrases
// (case-insensitive). Any match makes the message an image request; the
// subject is the text with every trigger occurrence removed, trimmed.
type TriggerClassifier struct {
	triggers     []string
	triggerRunes [][]rune // pre-computed, avoids re-decoding per message
}

// NewTriggerClassifier creates a classifier for the given phrases.
// Empty phrases are dropped.
func NewTriggerClassifier(triggers []string) *TriggerClassifier {
	c := &TriggerClassifier{}
	for _, t := range triggers {
		if t == "" {
			continue
		}
		c.triggers = append(c.triggers, t)
		c.triggerRunes = append(c.triggerRunes, []rune(t))
	}
	return c
}

// Classify implements domain.Classifier.
func (c *TriggerClassifier) Classify(text string) domain.Intent {
	subject := text
	matched := false
	for _, phrase := range c.triggerRunes {
		var removed bool
		subject, removed = removeFold(subject, phrase)
		matched = matched || removed
	}
	if !matched {
		return domain.Intent{Kind: domain.IntentTextQuery, Text: text}
	}
	return domain.Intent{
		Kind:    domain.IntentImageRequest,
		Text:    text,
		Subject: strings.TrimSpace(subject),
	}
}

// removeFold deletes every occurrence of phrase from s, matching runes
// case-insensitively, and reports whether anything was removed. The scan is
// rune-based: case mappings that change byte width (U+212A Kelvin sign,
// U+0130 dotted capital I) cannot misalign it or split a character.
func removeFold(s string, phrase []rune) (string, bool) {
	runes := []rune(s)
	out := make([]rune, 0, len(runes))
	removed := false
	for i := 0; i < len(runes); {
		if hasPrefixFold(runes[i:], phrase) {
			i += len(phrase)
			removed = true
			continue
		}
		out = append(out, runes[i])
		i++
	}
	if !removed {
		return s, false
	}
	return string(out), true
}

func hasPrefixFold(runes, phrase []rune) bool {
	if len(runes) < len(phrase) {
		return false
	}
	for i, p := range phrase {
		if !foldEqual(runes[i], p) {
			return false
		}
	}
	return true
}

// foldEqual reports whether two runes are equal under simple Unicode case
// folding, the same relation strings.EqualFold uses.
func foldEqual(a, b rune) bool {
	if a == b {
		return true
	}
	for r := unicode.SimpleFold(a); r != a; r = unicode.SimpleFold(r) {
		if r == b {
			return true
		}
	}
	return false
}
