package domain

import (
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxItemNameLength bounds a single shopping list entry.
const MaxItemNameLength = 100

// ShoppingList is the per-user set of item names.
type ShoppingList struct {
	UserID    string
	Items     []string
	UpdatedAt time.Time
}

// Preferences maps a preference name to its value.
type Preferences map[string]string

// NormalizeItems trims and lowercases names, drops blank or oversized
// entries, removes duplicates and sorts the result.
func NormalizeItems(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		name := strings.ToLower(strings.Join(strings.Fields(it), " "))
		if name == "" || utf8.RuneCountInString(name) > MaxItemNameLength {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}
