// Package compliance implements the mandatory keyword gate that runs before
// any other message handling: opt-out, opt-in and help keywords, the
// suppression list, and the append-only consent ledger.
package compliance

import "strings"

// Matcher answers whether a message body hits one of the fixed keyword sets.
// Matching is case-insensitive and accepts either the exact keyword or the
// keyword as an exact prefix ("STOP please" opts out, "STOPPING by" does not).
type Matcher struct {
	keywords []string
}

// NewMatcher builds a matcher over a fixed keyword set.
func NewMatcher(keywords []string) *Matcher {
	normalized := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToUpper(strings.TrimSpace(kw))
		if kw != "" {
			normalized = append(normalized, kw)
		}
	}
	return &Matcher{keywords: normalized}
}

// Matches reports whether text hits the keyword set.
func (m *Matcher) Matches(text string) bool {
	body := strings.ToUpper(strings.TrimSpace(text))
	if body == "" {
		return false
	}
	for _, kw := range m.keywords {
		if body == kw || strings.HasPrefix(body, kw+" ") {
			return true
		}
	}
	return false
}
