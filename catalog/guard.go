package catalog

import (
	"strings"

	"github.com/amonks/spacetodo/record"
)

// Normalize returns the title a candidate would be saved under.
func Normalize(candidate string) string {
	return strings.TrimSpace(candidate)
}

// Exists reports whether any task's trimmed title equals the trimmed
// candidate. The comparison is case-sensitive: "milk" does not match
// "Milk", even when the store's collation would reject it.
func Exists(candidate string, tasks []record.Task) bool {
	candidate = Normalize(candidate)
	for _, t := range tasks {
		if Normalize(t.Title) == candidate {
			return true
		}
	}
	return false
}

// CanCreate reports whether a task titled candidate may be offered for
// creation. The answer is advisory; the store decides.
func CanCreate(candidate string, tasks []record.Task) bool {
	return Normalize(candidate) != "" && !Exists(candidate, tasks)
}
