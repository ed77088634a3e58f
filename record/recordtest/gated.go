// Package recordtest provides helpers for testing record.Store
// implementations and code that depends on them.
package recordtest

import (
	"context"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/amonks/spacetodo/record"
)

// Call is a store call held by a Gated store until the test decides how it
// resolves.
type Call struct {
	Method string
	Args   []any

	decide chan decision
}

type decision struct {
	err      error
	value    any
	override bool
}

// Proceed runs the call against the wrapped store.
func (c *Call) Proceed() {
	c.decide <- decision{}
}

// Fail resolves the call with err without touching the wrapped store.
func (c *Call) Fail(err error) {
	c.decide <- decision{err: err}
}

// Respond resolves the call with value without touching the wrapped store.
// value must have the method's result type (nil for deletes).
func (c *Call) Respond(value any) {
	c.decide <- decision{value: value, override: true}
}

// Gated wraps a store so that selected calls block until the test resolves
// them. Calls to other methods pass straight through.
type Gated struct {
	record.Store

	methods []string
	calls   chan *Call
}

// NewGated gates the named methods of store, or every finder and writer
// method when none are named.
func NewGated(store record.Store, methods ...string) *Gated {
	return &Gated{Store: store, methods: methods, calls: make(chan *Call, 64)}
}

// Next returns the next held call, failing the test if none arrives soon.
func (g *Gated) Next(t testing.TB) *Call {
	t.Helper()
	select {
	case c := <-g.calls:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a store call")
		return nil
	}
}

// Expect returns the next held call and fails the test unless it is for method.
func (g *Gated) Expect(t testing.TB, method string) *Call {
	t.Helper()
	c := g.Next(t)
	if c.Method != method {
		t.Fatalf("next store call = %s%v, want %s", c.Method, c.Args, method)
	}
	return c
}

// Idle fails the test if a call is waiting.
func (g *Gated) Idle(t testing.TB) {
	t.Helper()
	select {
	case c := <-g.calls:
		t.Fatalf("unexpected store call %s%v", c.Method, c.Args)
	default:
	}
}

func (g *Gated) gates(method string) bool {
	return len(g.methods) == 0 || slices.Contains(g.methods, method)
}

func hold[T any](ctx context.Context, g *Gated, method string, args []any, run func() (T, error)) (T, error) {
	var zero T
	if !g.gates(method) {
		return run()
	}
	c := &Call{Method: method, Args: args, decide: make(chan decision, 1)}
	g.calls <- c
	select {
	case d := <-c.decide:
		switch {
		case d.err != nil:
			return zero, d.err
		case d.override:
			if d.value == nil {
				return zero, nil
			}
			v, ok := d.value.(T)
			if !ok {
				panic(fmt.Sprintf("recordtest: %s response has type %T, want %T", method, d.value, zero))
			}
			return v, nil
		default:
			return run()
		}
	case <-ctx.Done():
		return zero, record.Transient("", ctx.Err())
	}
}

func (g *Gated) FindTasks(ctx context.Context, q record.Query) ([]record.Task, error) {
	return hold(ctx, g, "FindTasks", []any{q}, func() ([]record.Task, error) { return g.Store.FindTasks(ctx, q) })
}

func (g *Gated) CreateTask(ctx context.Context, fields record.TaskFields) (record.Task, error) {
	return hold(ctx, g, "CreateTask", []any{fields}, func() (record.Task, error) { return g.Store.CreateTask(ctx, fields) })
}

func (g *Gated) UpdateTask(ctx context.Context, id string, patch record.TaskPatch) (record.Task, error) {
	return hold(ctx, g, "UpdateTask", []any{id, patch}, func() (record.Task, error) { return g.Store.UpdateTask(ctx, id, patch) })
}

func (g *Gated) DeleteTask(ctx context.Context, id string) error {
	_, err := hold(ctx, g, "DeleteTask", []any{id}, func() (struct{}, error) { return struct{}{}, g.Store.DeleteTask(ctx, id) })
	return err
}

func (g *Gated) FindTodos(ctx context.Context, q record.Query) ([]record.Todo, error) {
	return hold(ctx, g, "FindTodos", []any{q}, func() ([]record.Todo, error) { return g.Store.FindTodos(ctx, q) })
}

func (g *Gated) CreateTodo(ctx context.Context, fields record.TodoFields) (record.Todo, error) {
	return hold(ctx, g, "CreateTodo", []any{fields}, func() (record.Todo, error) { return g.Store.CreateTodo(ctx, fields) })
}

func (g *Gated) UpdateTodo(ctx context.Context, id string, patch record.TodoPatch) (record.Todo, error) {
	return hold(ctx, g, "UpdateTodo", []any{id, patch}, func() (record.Todo, error) { return g.Store.UpdateTodo(ctx, id, patch) })
}

func (g *Gated) DeleteTodo(ctx context.Context, id string) error {
	_, err := hold(ctx, g, "DeleteTodo", []any{id}, func() (struct{}, error) { return struct{}{}, g.Store.DeleteTodo(ctx, id) })
	return err
}
