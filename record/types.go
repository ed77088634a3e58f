// Package record defines the spacetodo data model and the contract every
// backing store implements.
//
// Spaces own Tasks and Lists, Lists own Todos, and every Todo references
// exactly one Task. Stores enforce two constraints that clients can only
// approximate from their cached views:
//   - Task titles are unique within a Space (after trimming, under the
//     store's Collation)
//   - a Task cannot be deleted while any Todo references it
package record

import "time"

// Entity names a record type.
type Entity string

const (
	EntitySpace Entity = "space"
	EntityTask  Entity = "task"
	EntityList  Entity = "list"
	EntityTodo  Entity = "todo"
	EntityUser  Entity = "user"
)

// Space is a tenant-like container for Tasks and Lists.
type Space struct {
	ID        string    `json:"id" yaml:"id"`
	Slug      string    `json:"slug" yaml:"slug"`
	Title     string    `json:"title" yaml:"title"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Task is a reusable catalog item inside a Space.
type Task struct {
	ID          string    `json:"id" yaml:"id"`
	SpaceID     string    `json:"space_id" yaml:"space_id"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`
}

// List groups Todos inside a Space.
type List struct {
	ID        string    `json:"id" yaml:"id"`
	SpaceID   string    `json:"space_id" yaml:"space_id"`
	Title     string    `json:"title" yaml:"title"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Todo is a Task scheduled on a List.
type Todo struct {
	ID      string `json:"id" yaml:"id"`
	ListID  string `json:"list_id" yaml:"list_id"`
	TaskID  string `json:"task_id" yaml:"task_id"`
	OwnerID string `json:"owner_id" yaml:"owner_id"`

	// CompletedAt is nil while the todo is incomplete.
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Completed reports whether the todo has been marked complete.
func (t Todo) Completed() bool {
	return t.CompletedAt != nil
}

// User is the display identity that owns Todos.
type User struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Email     string    `json:"email,omitempty" yaml:"email,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}
