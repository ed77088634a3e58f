package record

import (
	"cmp"
	"slices"
	"strings"

	strs "github.com/amonks/spacetodo/internal/strings"
)

// MaxLimit caps every query. Catalog views never fetch more than this.
const MaxLimit = 200

// Order selects the ordering of query results.
type Order int

const (
	// OrderDefault orders Tasks by title. Todos are always newest first.
	OrderDefault Order = iota

	// OrderTitleAsc orders by title ascending, byte-wise (case-sensitive).
	OrderTitleAsc

	// OrderCreatedDesc orders newest first.
	OrderCreatedDesc
)

// Filter restricts query results. Zero-valued fields do not filter.
type Filter struct {
	SpaceID string
	ListID  string
	TaskID  string
	IDs     []string

	// Title matches the trimmed title exactly.
	Title string

	// TitleContains matches titles containing the text, ignoring case.
	TitleContains string
}

// Query is a filtered, ordered, limited read.
type Query struct {
	Filter Filter
	Order  Order
	Limit  int
}

// EffectiveLimit returns the limit clamped to (0, MaxLimit].
func (q Query) EffectiveLimit() int {
	if q.Limit <= 0 || q.Limit > MaxLimit {
		return MaxLimit
	}
	return q.Limit
}

// MatchTask reports whether t passes the filter.
func (f Filter) MatchTask(t Task) bool {
	if f.SpaceID != "" && t.SpaceID != f.SpaceID {
		return false
	}
	if f.TaskID != "" && t.ID != f.TaskID {
		return false
	}
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, t.ID) {
		return false
	}
	if f.Title != "" && NormalizeTitle(t.Title) != NormalizeTitle(f.Title) {
		return false
	}
	if f.TitleContains != "" && !strs.ContainsFold(t.Title, f.TitleContains) {
		return false
	}
	return true
}

// MatchTodo reports whether t passes the filter. Title filters do not
// apply to todos.
func (f Filter) MatchTodo(t Todo) bool {
	if f.ListID != "" && t.ListID != f.ListID {
		return false
	}
	if f.TaskID != "" && t.TaskID != f.TaskID {
		return false
	}
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, t.ID) {
		return false
	}
	return true
}

// CompareTasks orders tasks by title ascending, breaking ties by id.
func CompareTasks(a, b Task) int {
	return cmp.Or(strings.Compare(a.Title, b.Title), strings.Compare(a.ID, b.ID))
}

// CompareTodos orders todos newest first, breaking ties by id.
func CompareTodos(a, b Todo) int {
	return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), strings.Compare(a.ID, b.ID))
}

func compareTasksCreated(a, b Task) int {
	return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), strings.Compare(a.ID, b.ID))
}

// SelectTasks filters, orders, and limits tasks in memory. The input is
// not modified.
func SelectTasks(tasks []Task, q Query) []Task {
	out := make([]Task, 0, min(len(tasks), q.EffectiveLimit()))
	for _, t := range tasks {
		if q.Filter.MatchTask(t) {
			out = append(out, t)
		}
	}
	if q.Order == OrderCreatedDesc {
		slices.SortFunc(out, compareTasksCreated)
	} else {
		slices.SortFunc(out, CompareTasks)
	}
	if len(out) > q.EffectiveLimit() {
		out = out[:q.EffectiveLimit()]
	}
	return out
}

// SelectTodos filters and limits todos in memory, newest first. Todos have
// no title, so the query's order is ignored. The input is not modified.
func SelectTodos(todos []Todo, q Query) []Todo {
	out := make([]Todo, 0, min(len(todos), q.EffectiveLimit()))
	for _, t := range todos {
		if q.Filter.MatchTodo(t) {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, CompareTodos)
	if len(out) > q.EffectiveLimit() {
		out = out[:q.EffectiveLimit()]
	}
	return out
}
