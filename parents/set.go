// Package parents provides deterministic composition helpers for multi-parent
// fetches: canonical parent-key serialisation and ordered unions of child
// option lists.
package parents

import (
	"sort"
	"strings"
)

// Set holds an ordered, de-duplicated collection of parent ids. Insertion
// order is preserved for display purposes; Key() is order-insensitive so the
// same parents always produce the same fetch key.
type Set struct {
	ordered []string
}

// NewSet constructs a set from ids, dropping blanks and duplicates while
// keeping first-seen order.
func NewSet(ids ...string) Set {
	filtered := make([]string, 0, len(ids))
	seen := map[string]struct{}{}

	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, exists := seen[id]; exists {
			continue
		}
		seen[id] = struct{}{}
		filtered = append(filtered, id)
	}

	return Set{ordered: filtered}
}

// IDs returns the parent ids in first-seen order.
func (s Set) IDs() []string {
	out := make([]string, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// Len returns the number of parents in the set.
func (s Set) Len() int { return len(s.ordered) }

// Contains reports whether id is a member of the set.
func (s Set) Contains(id string) bool {
	for _, member := range s.ordered {
		if member == id {
			return true
		}
	}
	return false
}

// Key returns the canonical serialisation of the set: member ids sorted and
// joined with commas. Two sets with the same members always share a key
// regardless of selection order, which is what the stale-response guard
// compares.
func (s Set) Key() string {
	if len(s.ordered) == 0 {
		return ""
	}
	sorted := make([]string, len(s.ordered))
	copy(sorted, s.ordered)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
