// Copyright 2024-2026 Aiku AI

package relay

import "strings"

// FilterConfig selects which messages qualify for relay. Filters are
// opt-in: a zero FilterConfig lets everything through.
type FilterConfig struct {
	// Keywords requires a case-insensitive substring match against at
	// least one entry, for messages that have text.
	Keywords []string `yaml:"keywords"`
	// ExcludeKeywords rejects on any case-insensitive substring match.
	ExcludeKeywords []string `yaml:"exclude_keywords"`
	// MediaOnly rejects messages without media.
	MediaOnly bool `yaml:"media_only"`
	// TextOnly rejects messages that carry media, even with a caption.
	// Evaluated last, so it wins over MediaOnly.
	TextOnly bool `yaml:"text_only"`
}

// IsZero reports whether no filter field is set.
func (f FilterConfig) IsZero() bool {
	return len(f.Keywords) == 0 && len(f.ExcludeKeywords) == 0 && !f.MediaOnly && !f.TextOnly
}

// ShouldRelay decides whether a message qualifies for relay. Pure function
// of its inputs. Empty messages never qualify. Evaluation order is fixed:
// include keywords, exclude keywords, media-only, text-only; the first
// rejecting check wins.
func ShouldRelay(msg *Message, f FilterConfig) bool {
	if msg.IsEmpty() {
		return false
	}
	if f.IsZero() {
		return true
	}

	if len(f.Keywords) > 0 && msg.Text != "" {
		if !matchesAny(msg.Text, f.Keywords) {
			return false
		}
	}
	if len(f.ExcludeKeywords) > 0 && msg.Text != "" {
		if matchesAny(msg.Text, f.ExcludeKeywords) {
			return false
		}
	}
	if f.MediaOnly && !msg.HasMedia() {
		return false
	}
	if f.TextOnly && msg.HasMedia() {
		return false
	}
	return true
}

// matchesAny reports whether text contains any keyword, case-insensitively.
func matchesAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
