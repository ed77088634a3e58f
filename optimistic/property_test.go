package optimistic

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"testing"

	"pgregory.net/rapid"

	"github.com/amonks/spacetodo/record"
)

type issued struct {
	pending *Pending[record.Task]
	release chan<- outcome
	succeed bool
	apply   func(model map[string]record.Task, confirmed record.Task)
	respond record.Task
}

// Whatever order the store answers in, once every mutation settles the view
// holds exactly the base with the successful mutations applied.
func TestSettledViewMatchesModel(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cache := newTaskCache()
		base := make(map[string]record.Task)
		for i := range rapid.IntRange(0, 5).Draw(t, "base") {
			id := fmt.Sprintf("t%d", i)
			base[id] = record.Task{ID: id, Title: fmt.Sprintf("task %d", i)}
		}
		cache.SetBase(cache.Epoch(), slices.Collect(maps.Values(base)))
		m := NewMutator(cache, MutatorOptions[record.Task]{})
		ids := slices.Sorted(maps.Keys(base))

		var all []*issued
		for i := range rapid.IntRange(0, 12).Draw(t, "ops") {
			call, release := blocked()
			it := &issued{release: release, succeed: rapid.Bool().Draw(t, fmt.Sprintf("succeed%d", i))}
			kind := rapid.SampledFrom([]string{"create", "update", "delete"}).Draw(t, fmt.Sprintf("kind%d", i))
			if kind != "create" && len(ids) == 0 {
				kind = "create"
			}
			switch kind {
			case "create":
				title := fmt.Sprintf("new %d", i)
				it.respond = record.Task{ID: fmt.Sprintf("c%d", i), Title: title}
				it.pending = m.Create(context.Background(), record.Task{Title: title}, call)
				it.apply = func(model map[string]record.Task, confirmed record.Task) { model[confirmed.ID] = confirmed }
			case "update":
				id := rapid.SampledFrom(ids).Draw(t, fmt.Sprintf("update%d", i))
				title := fmt.Sprintf("renamed %d", i)
				it.respond = record.Task{ID: id, Title: title}
				p, err := m.Update(context.Background(), id, func(t record.Task) record.Task {
					t.Title = title
					return t
				}, call)
				if err != nil {
					close(release)
					continue
				}
				it.pending = p
				it.apply = func(model map[string]record.Task, confirmed record.Task) { model[confirmed.ID] = confirmed }
			case "delete":
				id := rapid.SampledFrom(ids).Draw(t, fmt.Sprintf("delete%d", i))
				p, err := m.Delete(context.Background(), id, func(ctx context.Context) error {
					_, err := call(ctx)
					return err
				})
				if err != nil {
					close(release)
					continue
				}
				it.pending = p
				it.apply = func(model map[string]record.Task, _ record.Task) { delete(model, id) }
			}
			all = append(all, it)
		}

		if got := cache.Outstanding(); got != len(all) {
			t.Fatalf("Outstanding = %d, want %d", got, len(all))
		}

		model := maps.Clone(base)
		for _, it := range rapid.Permutation(all).Draw(t, "order") {
			if it.succeed {
				it.release <- outcome{task: it.respond}
			} else {
				it.release <- outcome{err: record.Transient(record.EntityTask, fmt.Errorf("refused"))}
			}
			if _, err := it.pending.Wait(context.Background()); (err == nil) != it.succeed {
				t.Fatalf("mutation %s: err = %v, succeed = %v", it.pending.Key, err, it.succeed)
			}
			if it.succeed {
				it.apply(model, it.respond)
			}
		}

		view := cache.View()
		if len(view) != len(model) {
			t.Fatalf("view has %d entries, model has %d: %+v", len(view), len(model), view)
		}
		for _, e := range view {
			if e.Provisional || e.Pending {
				t.Fatalf("entry %s still unsettled", e.Key)
			}
			if want, ok := model[e.Key]; !ok || want != e.Value {
				t.Fatalf("entry %s = %+v, model has %+v (%v)", e.Key, e.Value, want, ok)
			}
		}
	})
}
