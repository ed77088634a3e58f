// Package filestore is a record.Store kept in JSONL files, one per entity,
// inside a data directory. Every operation runs under a flock on
// store.lock, so several processes can share a directory.
package filestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/amonks/spacetodo/internal/dataset"
	"github.com/amonks/spacetodo/internal/logging"
	"github.com/amonks/spacetodo/internal/pubsub"
	"github.com/amonks/spacetodo/record"
)

const (
	lockFile   = "store.lock"
	spacesFile = "spaces.jsonl"
	listsFile  = "lists.jsonl"
	usersFile  = "users.jsonl"
	tasksFile  = "tasks.jsonl"
	todosFile  = "todos.jsonl"
)

var fileEntities = map[string]record.Entity{
	spacesFile: record.EntitySpace,
	listsFile:  record.EntityList,
	usersFile:  record.EntityUser,
	tasksFile:  record.EntityTask,
	todosFile:  record.EntityTodo,
}

// Options configures a Store.
type Options struct {
	Collation record.Collation
	Now       func() time.Time

	// Watch reports writes from other processes to subscribers. Without
	// it, subscribers only hear about writes made through this Store.
	Watch bool

	Logger *log.Logger
}

// Store is a directory of JSONL files.
type Store struct {
	dir    string
	rules  dataset.Rules
	logger *log.Logger

	watcher   *fsnotify.Watcher
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error

	changes pubsub.Hub[record.Change]
}

var (
	_ record.Store    = (*Store)(nil)
	_ record.Notifier = (*Store)(nil)
)

// Open opens the store in dir, creating the directory if needed.
func Open(dir string, opts Options) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	collation := opts.Collation
	if collation == "" {
		collation = record.CollationExact
	}
	s := &Store{
		dir:    dir,
		rules:  dataset.Rules{Collation: collation, Now: opts.Now},
		logger: logging.OrDiscard(opts.Logger),
		done:   make(chan struct{}),
	}
	if opts.Watch {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("create watcher: %w", err)
		}
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
		s.watcher = watcher
		s.wg.Add(1)
		go s.watch()
	}
	return s, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

// Close stops watching the data directory. Later calls do nothing.
func (s *Store) Close() error {
	if s.watcher == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		close(s.done)
		s.closeErr = s.watcher.Close()
		s.wg.Wait()
	})
	return s.closeErr
}

// Subscribe registers fn to be called after writes.
func (s *Store) Subscribe(fn func(record.Change)) func() {
	return s.changes.Subscribe(fn)
}

func (s *Store) watch() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			entity, ok := fileEntities[filepath.Base(event.Name)]
			if !ok {
				continue
			}
			s.logger.Debug("data file changed", "file", filepath.Base(event.Name), "op", event.Op.String())
			s.changes.Publish(record.Change{Entity: entity})
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("watch data dir", "err", err)
		}
	}
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *Store) load() (*dataset.Set, error) {
	var (
		set dataset.Set
		err error
	)
	if set.Spaces, err = readJSONL[record.Space](s.path(spacesFile)); err != nil {
		return nil, err
	}
	if set.Lists, err = readJSONL[record.List](s.path(listsFile)); err != nil {
		return nil, err
	}
	if set.Users, err = readJSONL[record.User](s.path(usersFile)); err != nil {
		return nil, err
	}
	if set.Tasks, err = readJSONL[record.Task](s.path(tasksFile)); err != nil {
		return nil, err
	}
	if set.Todos, err = readJSONL[record.Todo](s.path(todosFile)); err != nil {
		return nil, err
	}
	return &set, nil
}

// save rewrites the file backing entity.
func (s *Store) save(set *dataset.Set, entity record.Entity) error {
	switch entity {
	case record.EntitySpace:
		return writeJSONL(s.path(spacesFile), set.Spaces)
	case record.EntityList:
		return writeJSONL(s.path(listsFile), set.Lists)
	case record.EntityUser:
		return writeJSONL(s.path(usersFile), set.Users)
	case record.EntityTask:
		return writeJSONL(s.path(tasksFile), set.Tasks)
	case record.EntityTodo:
		return writeJSONL(s.path(todosFile), set.Todos)
	default:
		return fmt.Errorf("unknown entity %q", entity)
	}
}

func read[T any](ctx context.Context, s *Store, entity record.Entity, fn func(*dataset.Set) (T, error)) (T, error) {
	var out T
	if err := ctx.Err(); err != nil {
		return out, record.Transient(entity, err)
	}
	err := withFileLock(s.path(lockFile), syscall.LOCK_SH, func() error {
		set, err := s.load()
		if err != nil {
			return record.Transient(entity, err)
		}
		out, err = fn(set)
		return err
	})
	return out, record.Transient(entity, err)
}

// write loads every file, applies fn, and rewrites the entity's file, all
// under the exclusive lock.
func write[T any](ctx context.Context, s *Store, entity record.Entity, fn func(*dataset.Set) (T, string, error)) (T, error) {
	var (
		out T
		id  string
	)
	if err := ctx.Err(); err != nil {
		return out, record.Transient(entity, err)
	}
	err := withFileLock(s.path(lockFile), syscall.LOCK_EX, func() error {
		set, err := s.load()
		if err != nil {
			return record.Transient(entity, err)
		}
		out, id, err = fn(set)
		if err != nil {
			return err
		}
		if err := s.save(set, entity); err != nil {
			return record.Transient(entity, err)
		}
		return nil
	})
	if err != nil {
		var zero T
		return zero, record.Transient(entity, err)
	}
	s.logger.Debug("wrote record", "entity", entity, "id", id)
	if s.watcher == nil {
		s.changes.Publish(record.Change{Entity: entity, ID: id})
	}
	return out, nil
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
