package workspace

import (
	"fmt"
	"strings"

	"polytrain/internal/services"
)

// Matcher resolves an item's configuration file from a candidate name set
// using ranked patterns. Resolution is a deterministic, total function of
// (item id, tier) over a fixed name list; the first pattern with a present
// candidate wins.
type Matcher struct {
	patterns []string
}

// DefaultPatterns is the ranked candidate list: a tier-specific file beats
// the item-generic one. Placeholders: {item}, {tier}.
var DefaultPatterns = []string{
	"{item}.{tier}.conf",
	"{item}.conf",
}

// NewMatcher builds a matcher over the given ranked patterns; with none it
// uses DefaultPatterns.
func NewMatcher(patterns ...string) *Matcher {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	return &Matcher{patterns: append([]string(nil), patterns...)}
}

// Candidates expands the ranked patterns for an item.
func (m *Matcher) Candidates(itemID, tier string) []string {
	expanded := make([]string, 0, len(m.patterns))
	for _, pattern := range m.patterns {
		name := strings.ReplaceAll(pattern, "{item}", itemID)
		name = strings.ReplaceAll(name, "{tier}", tier)
		expanded = append(expanded, name)
	}
	return expanded
}

// Resolve returns the first candidate present in names. Absence of any match
// is a fatal configuration error.
func (m *Matcher) Resolve(itemID, tier string, names []string) (string, error) {
	available := make(map[string]struct{}, len(names))
	for _, name := range names {
		available[name] = struct{}{}
	}
	for _, candidate := range m.Candidates(itemID, tier) {
		if _, ok := available[candidate]; ok {
			return candidate, nil
		}
	}
	return "", services.Wrap(services.ErrConfiguration, "workspace", "resolve config",
		fmt.Sprintf("no configuration file matches item %q tier %q (tried %s)",
			itemID, tier, strings.Join(m.Candidates(itemID, tier), ", ")), nil)
}
