package record

import (
	"testing"
	"time"
)

func TestTaskFieldsDraftTrims(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	task := TaskFields{SpaceID: "s1", Title: "  Ship report ", Description: " weekly\n"}.Draft("t1", now)

	if task.Title != "Ship report" {
		t.Fatalf("Title = %q, want %q", task.Title, "Ship report")
	}
	if task.Description != "weekly" {
		t.Fatalf("Description = %q, want %q", task.Description, "weekly")
	}
	if !task.CreatedAt.Equal(now) || !task.UpdatedAt.Equal(now) {
		t.Fatalf("timestamps = %v/%v, want %v", task.CreatedAt, task.UpdatedAt, now)
	}
}

func TestTodoPatchApply(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := created.Add(time.Hour)
	todo := TodoFields{ListID: "l1", TaskID: "t1", OwnerID: "u1"}.Draft("d1", created)

	done := true
	completed := TodoPatch{Completed: &done}.Apply(todo, now)
	if !completed.Completed() || !completed.CompletedAt.Equal(now) {
		t.Fatalf("CompletedAt = %v, want %v", completed.CompletedAt, now)
	}

	at := now.Add(-time.Minute)
	explicit := TodoPatch{Completed: &done, CompletedAt: at}.Apply(todo, now)
	if !explicit.CompletedAt.Equal(at) {
		t.Fatalf("CompletedAt = %v, want %v", explicit.CompletedAt, at)
	}

	undone := false
	reopened := TodoPatch{Completed: &undone}.Apply(completed, now)
	if reopened.Completed() {
		t.Fatal("expected todo to be incomplete")
	}

	other := "t2"
	moved := TodoPatch{TaskID: &other}.Apply(completed, now)
	if moved.TaskID != "t2" {
		t.Fatalf("TaskID = %q, want t2", moved.TaskID)
	}
	if moved.ListID != todo.ListID || moved.OwnerID != todo.OwnerID {
		t.Fatalf("reassign changed list or owner: %+v", moved)
	}
	if !moved.Completed() {
		t.Fatal("reassign changed completion")
	}
}

func TestTaskPatchApplyLeavesNilFields(t *testing.T) {
	now := time.Now()
	task := Task{ID: "t1", SpaceID: "s1", Title: "A", Description: "keep"}
	title := " B "
	got := TaskPatch{Title: &title}.Apply(task, now)
	if got.Title != "B" || got.Description != "keep" || got.SpaceID != "s1" {
		t.Fatalf("Apply = %+v", got)
	}
}
