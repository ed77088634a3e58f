package recordtest

import (
	"context"
	"testing"

	"github.com/amonks/spacetodo/record"
)

// Fixture is a small directory of records most store tests need.
type Fixture struct {
	Space record.Space
	Other record.Space
	List  record.List
	User  record.User
}

// Seed creates two spaces, a list in the first, and a user.
func Seed(t testing.TB, store record.Store) Fixture {
	t.Helper()
	ctx := context.Background()

	space, err := store.CreateSpace(ctx, record.SpaceFields{Slug: "home", Title: "Home"})
	if err != nil {
		t.Fatalf("create space: %v", err)
	}
	other, err := store.CreateSpace(ctx, record.SpaceFields{Slug: "work", Title: "Work"})
	if err != nil {
		t.Fatalf("create space: %v", err)
	}
	list, err := store.CreateList(ctx, record.ListFields{SpaceID: space.ID, Title: "Groceries"})
	if err != nil {
		t.Fatalf("create list: %v", err)
	}
	user, err := store.CreateUser(ctx, record.UserFields{Name: "ada", Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return Fixture{Space: space, Other: other, List: list, User: user}
}

// MustCreateTask creates a task or fails the test.
func MustCreateTask(t testing.TB, store record.TaskWriter, spaceID, title string) record.Task {
	t.Helper()
	task, err := store.CreateTask(context.Background(), record.TaskFields{SpaceID: spaceID, Title: title})
	if err != nil {
		t.Fatalf("create task %q: %v", title, err)
	}
	return task
}

// MustCreateTodo creates a todo or fails the test.
func MustCreateTodo(t testing.TB, store record.TodoWriter, fx Fixture, taskID string) record.Todo {
	t.Helper()
	todo, err := store.CreateTodo(context.Background(), record.TodoFields{ListID: fx.List.ID, TaskID: taskID, OwnerID: fx.User.ID})
	if err != nil {
		t.Fatalf("create todo: %v", err)
	}
	return todo
}

// ExpectKind fails the test unless err has the given kind.
func ExpectKind(t testing.TB, err error, want record.ErrorKind) {
	t.Helper()
	if got := record.KindOf(err); got != want {
		t.Fatalf("error kind = %v (%v), want %v", got, err, want)
	}
}
