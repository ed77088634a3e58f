// Package memstore is an in-process record.Store.
package memstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/amonks/spacetodo/internal/dataset"
	"github.com/amonks/spacetodo/internal/pubsub"
	"github.com/amonks/spacetodo/record"
)

// Options configures a Store.
type Options struct {
	Collation record.Collation
	Now       func() time.Time
}

// Store keeps every record in memory.
type Store struct {
	mu    sync.Mutex
	rules dataset.Rules
	set   dataset.Set

	changes pubsub.Hub[record.Change]
}

var (
	_ record.Store    = (*Store)(nil)
	_ record.Notifier = (*Store)(nil)
)

// New returns an empty store.
func New(opts Options) *Store {
	collation := opts.Collation
	if collation == "" {
		collation = record.CollationExact
	}
	return &Store{
		rules: dataset.Rules{Collation: collation, Now: opts.Now},
	}
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// Subscribe registers fn to be called after every successful write.
func (s *Store) Subscribe(fn func(record.Change)) func() {
	return s.changes.Subscribe(fn)
}

func read[T any](ctx context.Context, s *Store, entity record.Entity, fn func(*dataset.Set) (T, error)) (T, error) {
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, record.Transient(entity, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.set)
}

func write[T any](ctx context.Context, s *Store, entity record.Entity, fn func(*dataset.Set) (T, string, error)) (T, error) {
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, record.Transient(entity, err)
	}
	s.mu.Lock()
	v, id, err := fn(&s.set)
	s.mu.Unlock()
	if err != nil {
		return v, err
	}
	s.changes.Publish(record.Change{Entity: entity, ID: id})
	return v, nil
}

func (s *Store) CreateSpace(ctx context.Context, fields record.SpaceFields) (record.Space, error) {
	return write(ctx, s, record.EntitySpace, func(set *dataset.Set) (record.Space, string, error) {
		sp, err := set.CreateSpace(s.rules, fields)
		return sp, sp.ID, err
	})
}

func (s *Store) Spaces(ctx context.Context) ([]record.Space, error) {
	return read(ctx, s, record.EntitySpace, func(set *dataset.Set) ([]record.Space, error) {
		return slices.Clone(set.Spaces), nil
	})
}

func (s *Store) SpaceBySlug(ctx context.Context, slug string) (record.Space, error) {
	return read(ctx, s, record.EntitySpace, func(set *dataset.Set) (record.Space, error) {
		return set.SpaceBySlug(slug)
	})
}

func (s *Store) CreateList(ctx context.Context, fields record.ListFields) (record.List, error) {
	return write(ctx, s, record.EntityList, func(set *dataset.Set) (record.List, string, error) {
		l, err := set.CreateList(s.rules, fields)
		return l, l.ID, err
	})
}

func (s *Store) Lists(ctx context.Context, spaceID string) ([]record.List, error) {
	return read(ctx, s, record.EntityList, func(set *dataset.Set) ([]record.List, error) {
		return set.ListsIn(spaceID), nil
	})
}

func (s *Store) ListByID(ctx context.Context, id string) (record.List, error) {
	return read(ctx, s, record.EntityList, func(set *dataset.Set) (record.List, error) {
		return set.ListByID(id)
	})
}

func (s *Store) CreateUser(ctx context.Context, fields record.UserFields) (record.User, error) {
	return write(ctx, s, record.EntityUser, func(set *dataset.Set) (record.User, string, error) {
		u, err := set.CreateUser(s.rules, fields)
		return u, u.ID, err
	})
}

func (s *Store) Users(ctx context.Context) ([]record.User, error) {
	return read(ctx, s, record.EntityUser, func(set *dataset.Set) ([]record.User, error) {
		return slices.Clone(set.Users), nil
	})
}

func (s *Store) FindTasks(ctx context.Context, q record.Query) ([]record.Task, error) {
	return read(ctx, s, record.EntityTask, func(set *dataset.Set) ([]record.Task, error) {
		return record.SelectTasks(set.Tasks, q), nil
	})
}

func (s *Store) CreateTask(ctx context.Context, fields record.TaskFields) (record.Task, error) {
	return write(ctx, s, record.EntityTask, func(set *dataset.Set) (record.Task, string, error) {
		t, err := set.CreateTask(s.rules, fields)
		return t, t.ID, err
	})
}

func (s *Store) UpdateTask(ctx context.Context, id string, patch record.TaskPatch) (record.Task, error) {
	return write(ctx, s, record.EntityTask, func(set *dataset.Set) (record.Task, string, error) {
		t, err := set.UpdateTask(s.rules, id, patch)
		return t, id, err
	})
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	_, err := write(ctx, s, record.EntityTask, func(set *dataset.Set) (struct{}, string, error) {
		return struct{}{}, id, set.DeleteTask(id)
	})
	return err
}

func (s *Store) FindTodos(ctx context.Context, q record.Query) ([]record.Todo, error) {
	return read(ctx, s, record.EntityTodo, func(set *dataset.Set) ([]record.Todo, error) {
		return record.SelectTodos(set.Todos, q), nil
	})
}

func (s *Store) CreateTodo(ctx context.Context, fields record.TodoFields) (record.Todo, error) {
	return write(ctx, s, record.EntityTodo, func(set *dataset.Set) (record.Todo, string, error) {
		t, err := set.CreateTodo(s.rules, fields)
		return t, t.ID, err
	})
}

func (s *Store) UpdateTodo(ctx context.Context, id string, patch record.TodoPatch) (record.Todo, error) {
	return write(ctx, s, record.EntityTodo, func(set *dataset.Set) (record.Todo, string, error) {
		t, err := set.UpdateTodo(s.rules, id, patch)
		return t, id, err
	})
}

func (s *Store) DeleteTodo(ctx context.Context, id string) error {
	_, err := write(ctx, s, record.EntityTodo, func(set *dataset.Set) (struct{}, string, error) {
		return struct{}{}, id, set.DeleteTodo(id)
	})
	return err
}
