// Package catalog queries the tasks of a space and keeps a live,
// optimistically updated view of the results.
package catalog

import (
	"context"
	"iter"
	"strings"

	"github.com/amonks/spacetodo/record"
)

const (
	// PickerLimit is the result ceiling for the search-as-you-type picker.
	PickerLimit = 10

	// BrowseLimit is the result ceiling for full catalog views.
	BrowseLimit = record.MaxLimit
)

// QueryFor returns the query for text within a space. Blank text lists the
// space's tasks; otherwise titles must contain the text, ignoring case.
// Results are ordered by title, byte-wise.
func QueryFor(spaceID, text string, limit int) record.Query {
	return record.Query{
		Filter: record.Filter{
			SpaceID:       spaceID,
			TitleContains: strings.TrimSpace(text),
		},
		Order: record.OrderTitleAsc,
		Limit: limit,
	}
}

// Search returns the tasks matching text in a space. Nothing is read until
// iteration starts; a failed read yields a single error.
func Search(ctx context.Context, finder record.TaskFinder, spaceID, text string, limit int) iter.Seq2[record.Task, error] {
	return func(yield func(record.Task, error) bool) {
		tasks, err := finder.FindTasks(ctx, QueryFor(spaceID, text, limit))
		if err != nil {
			yield(record.Task{}, err)
			return
		}
		for _, t := range tasks {
			if !yield(t, nil) {
				return
			}
		}
	}
}

// matcher returns the predicate a task must satisfy to belong to the
// results of q.
func matcher(q record.Query) func(record.Task) bool {
	return q.Filter.MatchTask
}
