package dataset

import (
	"testing"
	"time"

	"github.com/amonks/spacetodo/record"
)

var fixed = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func rules(c record.Collation) Rules {
	return Rules{Collation: c, Now: func() time.Time { return fixed }}
}

func mustSpace(t *testing.T, s *Set, slug string) record.Space {
	t.Helper()
	sp, err := s.CreateSpace(rules(record.CollationExact), record.SpaceFields{Slug: slug, Title: slug})
	if err != nil {
		t.Fatalf("create space: %v", err)
	}
	return sp
}

func TestCreateTaskUniqueTitle(t *testing.T) {
	for _, tc := range []struct {
		collation record.Collation
		second    string
		wantKind  record.ErrorKind
	}{
		{record.CollationExact, "  Laundry ", record.KindUniqueConstraint},
		{record.CollationExact, "laundry", record.KindNone},
		{record.CollationFold, "LAUNDRY", record.KindUniqueConstraint},
	} {
		t.Run(string(tc.collation)+"/"+tc.second, func(t *testing.T) {
			var s Set
			sp := mustSpace(t, &s, "home")
			r := rules(tc.collation)
			if _, err := s.CreateTask(r, record.TaskFields{SpaceID: sp.ID, Title: "Laundry"}); err != nil {
				t.Fatalf("first create: %v", err)
			}
			_, err := s.CreateTask(r, record.TaskFields{SpaceID: sp.ID, Title: tc.second})
			if got := record.KindOf(err); got != tc.wantKind {
				t.Fatalf("kind = %v, want %v (err %v)", got, tc.wantKind, err)
			}
		})
	}
}

func TestCreateTaskSameTitleOtherSpace(t *testing.T) {
	var s Set
	home := mustSpace(t, &s, "home")
	work := mustSpace(t, &s, "work")
	r := rules(record.CollationExact)
	if _, err := s.CreateTask(r, record.TaskFields{SpaceID: home.ID, Title: "Email"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateTask(r, record.TaskFields{SpaceID: work.ID, Title: "Email"}); err != nil {
		t.Fatalf("same title in another space: %v", err)
	}
}

func TestUpdateTaskKeepsOwnTitle(t *testing.T) {
	var s Set
	sp := mustSpace(t, &s, "home")
	r := rules(record.CollationExact)
	a, _ := s.CreateTask(r, record.TaskFields{SpaceID: sp.ID, Title: "Dishes"})
	if _, err := s.CreateTask(r, record.TaskFields{SpaceID: sp.ID, Title: "Vacuum"}); err != nil {
		t.Fatal(err)
	}

	same := " Dishes "
	if _, err := s.UpdateTask(r, a.ID, record.TaskPatch{Title: &same}); err != nil {
		t.Fatalf("renaming to own title: %v", err)
	}
	taken := "Vacuum"
	_, err := s.UpdateTask(r, a.ID, record.TaskPatch{Title: &taken})
	if record.KindOf(err) != record.KindUniqueConstraint {
		t.Fatalf("rename onto existing title: %v", err)
	}
}

func TestDeleteTaskInUse(t *testing.T) {
	var s Set
	r := rules(record.CollationExact)
	sp := mustSpace(t, &s, "home")
	list, err := s.CreateList(r, record.ListFields{SpaceID: sp.ID, Title: "Today"})
	if err != nil {
		t.Fatal(err)
	}
	user, err := s.CreateUser(r, record.UserFields{Name: "ana"})
	if err != nil {
		t.Fatal(err)
	}
	task, _ := s.CreateTask(r, record.TaskFields{SpaceID: sp.ID, Title: "Dishes"})
	todo, err := s.CreateTodo(r, record.TodoFields{ListID: list.ID, TaskID: task.ID, OwnerID: user.ID})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteTask(task.ID); record.KindOf(err) != record.KindReferentialIntegrity {
		t.Fatalf("delete referenced task: %v", err)
	}
	if err := s.DeleteTodo(todo.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteTask(task.ID); err != nil {
		t.Fatalf("delete unreferenced task: %v", err)
	}
	if err := s.DeleteTask(task.ID); record.KindOf(err) != record.KindNotFound {
		t.Fatalf("delete twice: %v", err)
	}
}

func TestTodoRejectsCrossSpaceTask(t *testing.T) {
	var s Set
	r := rules(record.CollationExact)
	home := mustSpace(t, &s, "home")
	work := mustSpace(t, &s, "work")
	list, _ := s.CreateList(r, record.ListFields{SpaceID: home.ID, Title: "Today"})
	user, _ := s.CreateUser(r, record.UserFields{Name: "ana"})
	homeTask, _ := s.CreateTask(r, record.TaskFields{SpaceID: home.ID, Title: "Dishes"})
	workTask, _ := s.CreateTask(r, record.TaskFields{SpaceID: work.ID, Title: "Report"})

	_, err := s.CreateTodo(r, record.TodoFields{ListID: list.ID, TaskID: workTask.ID, OwnerID: user.ID})
	if record.KindOf(err) != record.KindValidation {
		t.Fatalf("create with foreign task: %v", err)
	}

	todo, err := s.CreateTodo(r, record.TodoFields{ListID: list.ID, TaskID: homeTask.ID, OwnerID: user.ID})
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.UpdateTodo(r, todo.ID, record.TodoPatch{TaskID: &workTask.ID})
	if record.KindOf(err) != record.KindValidation {
		t.Fatalf("reassign to foreign task: %v", err)
	}
}

func TestUpdateTodoCompletion(t *testing.T) {
	var s Set
	r := rules(record.CollationExact)
	sp := mustSpace(t, &s, "home")
	list, _ := s.CreateList(r, record.ListFields{SpaceID: sp.ID, Title: "Today"})
	user, _ := s.CreateUser(r, record.UserFields{Name: "ana"})
	task, _ := s.CreateTask(r, record.TaskFields{SpaceID: sp.ID, Title: "Dishes"})
	todo, _ := s.CreateTodo(r, record.TodoFields{ListID: list.ID, TaskID: task.ID, OwnerID: user.ID})
	if todo.Completed() {
		t.Fatal("new todo is complete")
	}

	done := true
	got, err := s.UpdateTodo(r, todo.ID, record.TodoPatch{Completed: &done})
	if err != nil {
		t.Fatal(err)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(fixed) {
		t.Fatalf("completed at = %v, want %v", got.CompletedAt, fixed)
	}

	undone := false
	got, err = s.UpdateTodo(r, todo.ID, record.TodoPatch{Completed: &undone})
	if err != nil {
		t.Fatal(err)
	}
	if got.Completed() {
		t.Fatal("todo still complete")
	}
}

func TestListsInOrderedByTitle(t *testing.T) {
	var s Set
	r := rules(record.CollationExact)
	sp := mustSpace(t, &s, "home")
	other := mustSpace(t, &s, "work")
	for _, title := range []string{"Week", "Chores", "Today"} {
		if _, err := s.CreateList(r, record.ListFields{SpaceID: sp.ID, Title: title}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.CreateList(r, record.ListFields{SpaceID: other.ID, Title: "Sprint"}); err != nil {
		t.Fatal(err)
	}

	lists := s.ListsIn(sp.ID)
	var titles []string
	for _, l := range lists {
		titles = append(titles, l.Title)
	}
	want := []string{"Chores", "Today", "Week"}
	if len(titles) != len(want) {
		t.Fatalf("titles = %v, want %v", titles, want)
	}
	for i := range want {
		if titles[i] != want[i] {
			t.Fatalf("titles = %v, want %v", titles, want)
		}
	}
}

func TestCreateSpaceDuplicateSlug(t *testing.T) {
	var s Set
	mustSpace(t, &s, "home")
	_, err := s.CreateSpace(rules(record.CollationExact), record.SpaceFields{Slug: " home ", Title: "Again"})
	if record.KindOf(err) != record.KindUniqueConstraint {
		t.Fatalf("duplicate slug: %v", err)
	}
}
