package recordtest

import (
	"context"
	"sync"

	"github.com/amonks/spacetodo/record"
)

// Counting wraps a store and counts finder and writer calls by method name.
type Counting struct {
	record.Store

	mu     sync.Mutex
	counts map[string]int
}

// NewCounting wraps store.
func NewCounting(store record.Store) *Counting {
	return &Counting{Store: store, counts: make(map[string]int)}
}

// Count returns how many times method has been called.
func (c *Counting) Count(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[method]
}

// Writes returns the total number of writer calls.
func (c *Counting) Writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for method, n := range c.counts {
		if method != "FindTasks" && method != "FindTodos" {
			total += n
		}
	}
	return total
}

func (c *Counting) inc(method string) {
	c.mu.Lock()
	c.counts[method]++
	c.mu.Unlock()
}

func (c *Counting) FindTasks(ctx context.Context, q record.Query) ([]record.Task, error) {
	c.inc("FindTasks")
	return c.Store.FindTasks(ctx, q)
}

func (c *Counting) CreateTask(ctx context.Context, fields record.TaskFields) (record.Task, error) {
	c.inc("CreateTask")
	return c.Store.CreateTask(ctx, fields)
}

func (c *Counting) UpdateTask(ctx context.Context, id string, patch record.TaskPatch) (record.Task, error) {
	c.inc("UpdateTask")
	return c.Store.UpdateTask(ctx, id, patch)
}

func (c *Counting) DeleteTask(ctx context.Context, id string) error {
	c.inc("DeleteTask")
	return c.Store.DeleteTask(ctx, id)
}

func (c *Counting) FindTodos(ctx context.Context, q record.Query) ([]record.Todo, error) {
	c.inc("FindTodos")
	return c.Store.FindTodos(ctx, q)
}

func (c *Counting) CreateTodo(ctx context.Context, fields record.TodoFields) (record.Todo, error) {
	c.inc("CreateTodo")
	return c.Store.CreateTodo(ctx, fields)
}

func (c *Counting) UpdateTodo(ctx context.Context, id string, patch record.TodoPatch) (record.Todo, error) {
	c.inc("UpdateTodo")
	return c.Store.UpdateTodo(ctx, id, patch)
}

func (c *Counting) DeleteTodo(ctx context.Context, id string) error {
	c.inc("DeleteTodo")
	return c.Store.DeleteTodo(ctx, id)
}
