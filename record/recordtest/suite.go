package recordtest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/amonks/spacetodo/record"
)

// Factory opens an empty store using the given title collation. The store
// is closed by the suite.
type Factory func(t *testing.T, collation record.Collation) record.Store

// RunStoreTests checks that a store honors the record.Store contract.
func RunStoreTests(t *testing.T, open Factory) {
	tests := []struct {
		name string
		run  func(t *testing.T, open Factory)
	}{
		{"Directory", testDirectory},
		{"CreateTaskTrims", testCreateTaskTrims},
		{"DuplicateTitleExact", testDuplicateTitleExact},
		{"DuplicateTitleFold", testDuplicateTitleFold},
		{"DuplicateTitleConcurrent", testDuplicateTitleConcurrent},
		{"CreateTaskValidation", testCreateTaskValidation},
		{"UpdateTask", testUpdateTask},
		{"DeleteTaskRestrict", testDeleteTaskRestrict},
		{"FindTasks", testFindTasks},
		{"Todos", testTodos},
		{"TodoReferences", testTodoReferences},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.run(t, open)
		})
	}
}

func openStore(t *testing.T, open Factory, collation record.Collation) record.Store {
	t.Helper()
	store := open(t, collation)
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func testDirectory(t *testing.T, open Factory) {
	store := openStore(t, open, record.CollationExact)
	ctx := context.Background()
	fx := Seed(t, store)

	got, err := store.SpaceBySlug(ctx, "home")
	if err != nil {
		t.Fatalf("SpaceBySlug: %v", err)
	}
	if got.ID != fx.Space.ID || got.Title != "Home" {
		t.Fatalf("SpaceBySlug = %+v, want %+v", got, fx.Space)
	}

	_, err = store.SpaceBySlug(ctx, "missing")
	ExpectKind(t, err, record.KindNotFound)

	_, err = store.CreateSpace(ctx, record.SpaceFields{Slug: "home", Title: "Again"})
	ExpectKind(t, err, record.KindUniqueConstraint)

	spaces, err := store.Spaces(ctx)
	if err != nil {
		t.Fatalf("Spaces: %v", err)
	}
	if len(spaces) != 2 {
		t.Fatalf("Spaces = %d, want 2", len(spaces))
	}

	list, err := store.ListByID(ctx, fx.List.ID)
	if err != nil {
		t.Fatalf("ListByID: %v", err)
	}
	if list.SpaceID != fx.Space.ID {
		t.Fatalf("list space = %q, want %q", list.SpaceID, fx.Space.ID)
	}
	_, err = store.ListByID(ctx, "missing")
	ExpectKind(t, err, record.KindNotFound)

	_, err = store.CreateList(ctx, record.ListFields{SpaceID: "missing", Title: "x"})
	ExpectKind(t, err, record.KindNotFound)

	lists, err := store.Lists(ctx, fx.Other.ID)
	if err != nil {
		t.Fatalf("Lists: %v", err)
	}
	if len(lists) != 0 {
		t.Fatalf("Lists(other) = %+v, want none", lists)
	}

	users, err := store.Users(ctx)
	if err != nil {
		t.Fatalf("Users: %v", err)
	}
	if len(users) != 1 || users[0].ID != fx.User.ID {
		t.Fatalf("Users = %+v", users)
	}
}

func testCreateTaskTrims(t *testing.T, open Factory) {
	store := openStore(t, open, record.CollationExact)
	fx := Seed(t, store)

	task, err := store.CreateTask(context.Background(), record.TaskFields{SpaceID: fx.Space.ID, Title: "  Ship report  ", Description: " weekly "})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.ID == "" {
		t.Fatal("CreateTask did not assign an id")
	}
	if task.Title != "Ship report" || task.Description != "weekly" {
		t.Fatalf("CreateTask = %+v", task)
	}
	if task.CreatedAt.IsZero() {
		t.Fatal("CreateTask did not set CreatedAt")
	}
}

func testDuplicateTitleExact(t *testing.T, open Factory) {
	store := openStore(t, open, record.CollationExact)
	ctx := context.Background()
	fx := Seed(t, store)

	MustCreateTask(t, store, fx.Space.ID, "Buy milk")

	_, err := store.CreateTask(ctx, record.TaskFields{SpaceID: fx.Space.ID, Title: " Buy milk "})
	ExpectKind(t, err, record.KindUniqueConstraint)

	if _, err := store.CreateTask(ctx, record.TaskFields{SpaceID: fx.Space.ID, Title: "buy milk"}); err != nil {
		t.Fatalf("exact collation rejected different case: %v", err)
	}
	if _, err := store.CreateTask(ctx, record.TaskFields{SpaceID: fx.Other.ID, Title: "Buy milk"}); err != nil {
		t.Fatalf("same title in another space: %v", err)
	}

	tasks, err := store.FindTasks(ctx, record.Query{Filter: record.Filter{SpaceID: fx.Space.ID, Title: "Buy milk"}})
	if err != nil {
		t.Fatalf("FindTasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("found %d tasks titled %q, want 1", len(tasks), "Buy milk")
	}
}

func testDuplicateTitleFold(t *testing.T, open Factory) {
	store := openStore(t, open, record.CollationFold)
	fx := Seed(t, store)

	MustCreateTask(t, store, fx.Space.ID, "Buy milk")
	_, err := store.CreateTask(context.Background(), record.TaskFields{SpaceID: fx.Space.ID, Title: "BUY MILK"})
	ExpectKind(t, err, record.KindUniqueConstraint)
}

func testDuplicateTitleConcurrent(t *testing.T, open Factory) {
	store := openStore(t, open, record.CollationExact)
	fx := Seed(t, store)

	const writers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		won  int
		lost int
		errs []error
	)
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.CreateTask(context.Background(), record.TaskFields{SpaceID: fx.Space.ID, Title: "Race"})
			mu.Lock()
			defer mu.Unlock()
			switch record.KindOf(err) {
			case record.KindNone:
				won++
			case record.KindUniqueConstraint:
				lost++
			default:
				errs = append(errs, err)
			}
		}()
	}
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if won != 1 || lost != writers-1 {
		t.Fatalf("won=%d lost=%d, want 1 and %d", won, lost, writers-1)
	}
}

func testCreateTaskValidation(t *testing.T, open Factory) {
	store := openStore(t, open, record.CollationExact)
	ctx := context.Background()
	fx := Seed(t, store)

	_, err := store.CreateTask(ctx, record.TaskFields{SpaceID: fx.Space.ID, Title: "   "})
	ExpectKind(t, err, record.KindValidation)

	_, err = store.CreateTask(ctx, record.TaskFields{SpaceID: "missing", Title: "x"})
	ExpectKind(t, err, record.KindNotFound)
}

func testUpdateTask(t *testing.T, open Factory) {
	store := openStore(t, open, record.CollationExact)
	ctx := context.Background()
	fx := Seed(t, store)

	a := MustCreateTask(t, store, fx.Space.ID, "A")
	MustCreateTask(t, store, fx.Space.ID, "B")

	title := " A2 "
	updated, err := store.UpdateTask(ctx, a.ID, record.TaskPatch{Title: &title})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if updated.Title != "A2" || updated.SpaceID != fx.Space.ID || updated.ID != a.ID {
		t.Fatalf("UpdateTask = %+v", updated)
	}

	taken := "B"
	_, err = store.UpdateTask(ctx, a.ID, record.TaskPatch{Title: &taken})
	ExpectKind(t, err, record.KindUniqueConstraint)

	same := "A2"
	if _, err := store.UpdateTask(ctx, a.ID, record.TaskPatch{Title: &same}); err != nil {
		t.Fatalf("renaming a task to its own title: %v", err)
	}

	_, err = store.UpdateTask(ctx, "missing", record.TaskPatch{Title: &title})
	ExpectKind(t, err, record.KindNotFound)
}

func testDeleteTaskRestrict(t *testing.T, open Factory) {
	store := openStore(t, open, record.CollationExact)
	ctx := context.Background()
	fx := Seed(t, store)

	task := MustCreateTask(t, store, fx.Space.ID, "Buy milk")
	todo := MustCreateTodo(t, store, fx, task.ID)

	err := store.DeleteTask(ctx, task.ID)
	ExpectKind(t, err, record.KindReferentialIntegrity)

	tasks, err := store.FindTasks(ctx, record.Query{Filter: record.Filter{TaskID: task.ID}})
	if err != nil {
		t.Fatalf("FindTasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatal("restricted delete removed the task")
	}

	if err := store.DeleteTodo(ctx, todo.ID); err != nil {
		t.Fatalf("DeleteTodo: %v", err)
	}
	if err := store.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("DeleteTask after removing todo: %v", err)
	}
	ExpectKind(t, store.DeleteTask(ctx, task.ID), record.KindNotFound)
	ExpectKind(t, store.DeleteTodo(ctx, todo.ID), record.KindNotFound)
}

func testFindTasks(t *testing.T, open Factory) {
	store := openStore(t, open, record.CollationExact)
	ctx := context.Background()
	fx := Seed(t, store)

	for _, title := range []string{"buy milk", "Buy Milk", "Answer email", "Zebra"} {
		MustCreateTask(t, store, fx.Space.ID, title)
	}
	MustCreateTask(t, store, fx.Other.ID, "Buy milk at work")

	titles := func(q record.Query) []string {
		t.Helper()
		tasks, err := store.FindTasks(ctx, q)
		if err != nil {
			t.Fatalf("FindTasks: %v", err)
		}
		out := make([]string, len(tasks))
		for i, task := range tasks {
			out[i] = task.Title
		}
		return out
	}

	tests := []struct {
		name  string
		query record.Query
		want  []string
	}{
		{"all ordered", record.Query{Filter: record.Filter{SpaceID: fx.Space.ID}, Order: record.OrderTitleAsc, Limit: 10},
			[]string{"Answer email", "Buy Milk", "Zebra", "buy milk"}},
		{"contains folds case", record.Query{Filter: record.Filter{SpaceID: fx.Space.ID, TitleContains: "mILK"}, Order: record.OrderTitleAsc, Limit: 10},
			[]string{"Buy Milk", "buy milk"}},
		{"exact", record.Query{Filter: record.Filter{SpaceID: fx.Space.ID, Title: "buy milk"}},
			[]string{"buy milk"}},
		{"limit", record.Query{Filter: record.Filter{SpaceID: fx.Space.ID}, Order: record.OrderTitleAsc, Limit: 2},
			[]string{"Answer email", "Buy Milk"}},
		{"no match", record.Query{Filter: record.Filter{SpaceID: fx.Space.ID, TitleContains: "xyz"}},
			[]string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := titles(tt.query)
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Fatalf("titles = %q, want %q", got, tt.want)
			}
		})
	}
}

func testTodos(t *testing.T, open Factory) {
	store := openStore(t, open, record.CollationExact)
	ctx := context.Background()
	fx := Seed(t, store)

	milk := MustCreateTask(t, store, fx.Space.ID, "Buy milk")
	eggs := MustCreateTask(t, store, fx.Space.ID, "Buy eggs")

	first := MustCreateTodo(t, store, fx, milk.ID)
	second := MustCreateTodo(t, store, fx, eggs.ID)
	if first.Completed() {
		t.Fatal("new todo is complete")
	}

	todos, err := store.FindTodos(ctx, record.Query{Filter: record.Filter{ListID: fx.List.ID}, Order: record.OrderCreatedDesc})
	if err != nil {
		t.Fatalf("FindTodos: %v", err)
	}
	if len(todos) != 2 {
		t.Fatalf("FindTodos = %d todos, want 2", len(todos))
	}
	if todos[0].CreatedAt.Before(todos[1].CreatedAt) {
		t.Fatalf("todos not newest first: %+v", todos)
	}

	done := true
	completed, err := store.UpdateTodo(ctx, first.ID, record.TodoPatch{Completed: &done})
	if err != nil {
		t.Fatalf("UpdateTodo: %v", err)
	}
	if !completed.Completed() {
		t.Fatal("UpdateTodo did not complete the todo")
	}

	reassigned, err := store.UpdateTodo(ctx, second.ID, record.TodoPatch{TaskID: &milk.ID})
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if reassigned.TaskID != milk.ID || reassigned.ListID != fx.List.ID || reassigned.OwnerID != fx.User.ID {
		t.Fatalf("reassign = %+v", reassigned)
	}

	undone := false
	reopened, err := store.UpdateTodo(ctx, first.ID, record.TodoPatch{Completed: &undone})
	if err != nil {
		t.Fatalf("UpdateTodo: %v", err)
	}
	if reopened.Completed() {
		t.Fatal("UpdateTodo did not reopen the todo")
	}

	byTask, err := store.FindTodos(ctx, record.Query{Filter: record.Filter{TaskID: milk.ID}})
	if err != nil {
		t.Fatalf("FindTodos: %v", err)
	}
	if len(byTask) != 2 {
		t.Fatalf("todos for task = %d, want 2", len(byTask))
	}

	_, err = store.UpdateTodo(ctx, "missing", record.TodoPatch{Completed: &done})
	ExpectKind(t, err, record.KindNotFound)
}

func testTodoReferences(t *testing.T, open Factory) {
	store := openStore(t, open, record.CollationExact)
	ctx := context.Background()
	fx := Seed(t, store)

	task := MustCreateTask(t, store, fx.Space.ID, "Buy milk")
	foreign := MustCreateTask(t, store, fx.Other.ID, "Write report")

	_, err := store.CreateTodo(ctx, record.TodoFields{ListID: fx.List.ID, TaskID: "missing", OwnerID: fx.User.ID})
	ExpectKind(t, err, record.KindNotFound)

	_, err = store.CreateTodo(ctx, record.TodoFields{ListID: "missing", TaskID: task.ID, OwnerID: fx.User.ID})
	ExpectKind(t, err, record.KindNotFound)

	_, err = store.CreateTodo(ctx, record.TodoFields{ListID: fx.List.ID, TaskID: task.ID, OwnerID: "missing"})
	ExpectKind(t, err, record.KindNotFound)

	_, err = store.CreateTodo(ctx, record.TodoFields{ListID: fx.List.ID, TaskID: foreign.ID, OwnerID: fx.User.ID})
	ExpectKind(t, err, record.KindValidation)

	_, err = store.CreateTodo(ctx, record.TodoFields{ListID: fx.List.ID, OwnerID: fx.User.ID})
	ExpectKind(t, err, record.KindValidation)

	todo := MustCreateTodo(t, store, fx, task.ID)
	_, err = store.UpdateTodo(ctx, todo.ID, record.TodoPatch{TaskID: &foreign.ID})
	ExpectKind(t, err, record.KindValidation)

	missing := "missing"
	_, err = store.UpdateTodo(ctx, todo.ID, record.TodoPatch{TaskID: &missing})
	ExpectKind(t, err, record.KindNotFound)
}
