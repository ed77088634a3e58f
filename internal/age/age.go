// Package age computes the ages shown next to todos.
package age

import "time"

// AgeData returns how long ago then was. It reports false when then is
// unset. Times in the future have age zero.
func AgeData(then, now time.Time) (time.Duration, bool) {
	if then.IsZero() {
		return 0, false
	}
	if then.After(now) {
		return 0, true
	}
	return now.Sub(then), true
}

// OpenFor returns how long a todo has been, or was, open: from creation to
// completion, or to now while it is incomplete.
func OpenFor(createdAt time.Time, completedAt *time.Time, now time.Time) (time.Duration, bool) {
	end := now
	if completedAt != nil {
		end = *completedAt
	}
	return AgeData(createdAt, end)
}
