package record

import (
	"testing"
	"time"
)

func TestSelectTasks(t *testing.T) {
	tasks := []Task{
		{ID: "1", SpaceID: "s1", Title: "buy milk"},
		{ID: "2", SpaceID: "s1", Title: "Buy Milk"},
		{ID: "3", SpaceID: "s1", Title: "Answer email"},
		{ID: "4", SpaceID: "s2", Title: "Buy milk"},
		{ID: "5", SpaceID: "s1", Title: "Zebra"},
	}

	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{"space ordered by title", Query{Filter: Filter{SpaceID: "s1"}}, []string{"3", "2", "5", "1"}},
		{"contains ignores case", Query{Filter: Filter{SpaceID: "s1", TitleContains: "MILK"}}, []string{"2", "1"}},
		{"exact title is case sensitive", Query{Filter: Filter{SpaceID: "s1", Title: " buy milk "}}, []string{"1"}},
		{"limit truncates", Query{Filter: Filter{SpaceID: "s1"}, Limit: 2}, []string{"3", "2"}},
		{"limit above count", Query{Filter: Filter{SpaceID: "s2"}, Limit: 10}, []string{"4"}},
		{"ids", Query{Filter: Filter{IDs: []string{"5", "4"}}}, []string{"4", "5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectTasks(tasks, tt.query)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d tasks %+v, want %v", len(got), got, tt.want)
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Fatalf("result[%d] = %q, want %q (all: %+v)", i, got[i].ID, id, got)
				}
			}
		})
	}
}

func TestSelectTodosNewestFirst(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	todos := []Todo{
		{ID: "a", ListID: "l1", CreatedAt: base},
		{ID: "b", ListID: "l1", CreatedAt: base.Add(time.Minute)},
		{ID: "c", ListID: "l2", CreatedAt: base.Add(2 * time.Minute)},
	}
	got := SelectTodos(todos, Query{Filter: Filter{ListID: "l1"}})
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" {
		t.Fatalf("SelectTodos = %+v", got)
	}
}

func TestEffectiveLimit(t *testing.T) {
	for _, tt := range []struct{ limit, want int }{{0, MaxLimit}, {-1, MaxLimit}, {10, 10}, {MaxLimit + 1, MaxLimit}} {
		if got := (Query{Limit: tt.limit}).EffectiveLimit(); got != tt.want {
			t.Errorf("EffectiveLimit(%d) = %d, want %d", tt.limit, got, tt.want)
		}
	}
}

func TestCollationKey(t *testing.T) {
	if CollationExact.Key(" Buy milk ") == CollationExact.Key("buy milk") {
		t.Fatal("exact collation folded case")
	}
	if CollationFold.Key(" Buy milk ") != CollationFold.Key("buy MILK") {
		t.Fatal("fold collation did not fold case")
	}
	if _, err := ParseCollation("nocase"); err == nil {
		t.Fatal("expected error for unknown collation")
	}
}
