package main

import (
	"errors"
	"testing"

	"github.com/amonks/spacetodo/internal/ids"
	"github.com/amonks/spacetodo/record"
)

func TestResolveID(t *testing.T) {
	lists := []record.List{{ID: "abc123", Title: "one"}, {ID: "abd456", Title: "two"}, {ID: "x9", Title: "three"}}
	id := func(l record.List) string { return l.ID }

	got, err := resolveID(record.EntityList, lists, id, "abd")
	if err != nil {
		t.Fatalf("resolve abd: %v", err)
	}
	if got.Title != "two" {
		t.Errorf("resolve abd = %q, want two", got.Title)
	}

	if _, err := resolveID(record.EntityList, lists, id, "ab"); !errors.Is(err, ids.ErrAmbiguousPrefix) {
		t.Errorf("resolve ab: got %v, want ambiguous", err)
	}

	_, err = resolveID(record.EntityList, lists, id, "zz")
	if record.KindOf(err) != record.KindNotFound {
		t.Errorf("resolve zz: got %v, want not found", err)
	}
}

func TestClassifyExitCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: record.Invalid(record.EntityTask, record.ErrEmptyTitle), want: exitUsage},
		{name: "not found", err: record.NotFound(record.EntitySpace, "home"), want: exitNotFound},
		{name: "duplicate", err: record.DuplicateTitle("s1", "Buy milk"), want: exitConflict},
		{name: "in use", err: record.InUse("t1", 2), want: exitConflict},
		{name: "ambiguous", err: ids.ErrAmbiguousPrefix, want: exitUsage},
		{name: "other", err: errors.New("boom"), want: exitFailure},
	}

	for _, tt := range tests {
		var exitErr interface{ ExitCode() int }
		if !errors.As(classify(tt.err), &exitErr) {
			t.Errorf("%s: classify returned no exit code", tt.name)
			continue
		}
		if got := exitErr.ExitCode(); got != tt.want {
			t.Errorf("%s: exit code %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestFailWithKeepsCodeAndMessage(t *testing.T) {
	err := failWith(record.MessageTaskInUse, record.InUse("t1", 1))
	if err.Error() != record.MessageTaskInUse {
		t.Errorf("message = %q", err.Error())
	}
	if record.KindOf(err) != record.KindReferentialIntegrity {
		t.Errorf("kind = %v, want referential integrity", record.KindOf(err))
	}
}
