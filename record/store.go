package record

import "context"

// TaskFinder reads Tasks.
type TaskFinder interface {
	FindTasks(ctx context.Context, q Query) ([]Task, error)
}

// TaskWriter mutates Tasks.
//
// CreateTask fails with KindUniqueConstraint when the Space already has a
// Task with the same title under the store's Collation. DeleteTask fails
// with KindReferentialIntegrity while any Todo references the Task.
type TaskWriter interface {
	CreateTask(ctx context.Context, fields TaskFields) (Task, error)
	UpdateTask(ctx context.Context, id string, patch TaskPatch) (Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// TodoFinder reads Todos.
type TodoFinder interface {
	FindTodos(ctx context.Context, q Query) ([]Todo, error)
}

// TodoWriter mutates Todos.
type TodoWriter interface {
	CreateTodo(ctx context.Context, fields TodoFields) (Todo, error)
	UpdateTodo(ctx context.Context, id string, patch TodoPatch) (Todo, error)
	DeleteTodo(ctx context.Context, id string) error
}

// Directory manages the records the catalog core only reads: Spaces,
// Lists, and Users.
type Directory interface {
	CreateSpace(ctx context.Context, fields SpaceFields) (Space, error)
	Spaces(ctx context.Context) ([]Space, error)
	SpaceBySlug(ctx context.Context, slug string) (Space, error)

	CreateList(ctx context.Context, fields ListFields) (List, error)
	Lists(ctx context.Context, spaceID string) ([]List, error)
	ListByID(ctx context.Context, id string) (List, error)

	CreateUser(ctx context.Context, fields UserFields) (User, error)
	Users(ctx context.Context) ([]User, error)
}

// Store is a complete backing store.
type Store interface {
	TaskFinder
	TaskWriter
	TodoFinder
	TodoWriter
	Directory
	Close() error
}

// Change describes a write observed by a Notifier. ID is empty when the
// store cannot tell which record changed.
type Change struct {
	Entity Entity
	ID     string
}

// Notifier is implemented by stores that can report writes, including
// writes made by other processes.
type Notifier interface {
	// Subscribe registers fn and returns a function that unregisters it.
	// fn may be called from any goroutine.
	Subscribe(fn func(Change)) (cancel func())
}
