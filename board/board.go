// Package board manages the todos of one list: adding todos for tasks
// chosen with a picker, completing, deleting, and reassigning them, and
// browsing the space's task catalog.
package board

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/amonks/spacetodo/catalog"
	"github.com/amonks/spacetodo/internal/logging"
	"github.com/amonks/spacetodo/optimistic"
	"github.com/amonks/spacetodo/picker"
	"github.com/amonks/spacetodo/record"
)

// Store is the store access a Board needs.
type Store interface {
	record.TaskFinder
	record.TaskWriter
	record.TodoFinder
	record.TodoWriter
	record.Directory
}

// Options configures a Board.
type Options struct {
	SpaceSlug string
	ListID    string

	// OwnerID is the user new todos are attributed to.
	OwnerID string

	// PickerLimit and CatalogLimit default to catalog.PickerLimit and
	// catalog.BrowseLimit.
	PickerLimit  int
	CatalogLimit int

	// ShowCatalog starts with the catalog visible.
	ShowCatalog bool

	Logger *log.Logger
	Now    func() time.Time
}

// Board is the todo list of one List, with a picker for adding todos and
// the catalog of the List's Space.
type Board struct {
	store       Store
	space       record.Space
	list        record.List
	ownerID     string
	pickerLimit int
	logger      *log.Logger
	now         func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	todos   *optimistic.Mutator[record.Todo]
	catalog *catalog.Live
	picker  *picker.Controller

	mu          sync.Mutex
	tasks       map[string]record.Task
	users       map[string]record.User
	adding      map[string]string
	showCatalog bool
	message     string
}

// Open loads the board for a list. It fails with a not-found error when
// the space does not exist or the list is not one of its lists.
func Open(ctx context.Context, store Store, opts Options) (*Board, error) {
	space, err := store.SpaceBySlug(ctx, opts.SpaceSlug)
	if err != nil {
		return nil, err
	}
	list, err := store.ListByID(ctx, opts.ListID)
	if err != nil {
		return nil, err
	}
	if list.SpaceID != space.ID {
		return nil, record.NotFound(record.EntityList, opts.ListID)
	}

	b := &Board{
		store:       store,
		space:       space,
		list:        list,
		ownerID:     strings.TrimSpace(opts.OwnerID),
		pickerLimit: opts.PickerLimit,
		logger:      logging.OrDiscard(opts.Logger),
		now:         opts.Now,
		tasks:       make(map[string]record.Task),
		users:       make(map[string]record.User),
		adding:      make(map[string]string),
		showCatalog: opts.ShowCatalog,
	}
	if b.now == nil {
		b.now = time.Now
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())
	b.todos = optimistic.NewMutator(
		optimistic.NewCache(func(t record.Todo) string { return t.ID }, record.CompareTodos),
		optimistic.MutatorOptions[record.Todo]{Logger: b.logger, OnSettled: b.todoSettled},
	)
	b.catalog = catalog.NewLive(store, catalog.Options{
		Limit:     opts.CatalogLimit,
		Logger:    b.logger,
		OnSettled: b.taskSettled,
	})
	b.picker = picker.New(ctx, store, space.ID, picker.Options{
		Limit:    opts.PickerLimit,
		Logger:   b.logger,
		OnSelect: b.remember,
	})

	if err := b.load(ctx); err != nil {
		b.Close()
		return nil, err
	}
	b.logger.Debug("opened board", "space", space.Slug, "list", list.ID)
	return b, nil
}

// load fetches the todos, the catalog, and the users concurrently.
func (b *Board) load(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.loadTodos(gctx)
	})
	g.Go(func() error {
		return b.catalog.Set(gctx, b.space.ID, "").Wait(gctx)
	})
	g.Go(func() error {
		return b.picker.Refresh(gctx).Wait(gctx)
	})
	g.Go(func() error {
		users, err := b.store.Users(gctx)
		if err != nil {
			return err
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, u := range users {
			b.users[u.ID] = u
		}
		return nil
	})
	return g.Wait()
}

func (b *Board) loadTodos(ctx context.Context) error {
	cache := b.todos.Cache()
	asOf := cache.Epoch()
	todos, err := b.store.FindTodos(ctx, record.Query{
		Filter: record.Filter{ListID: b.list.ID},
		Order:  record.OrderCreatedDesc,
	})
	if err != nil {
		return err
	}

	var ids []string
	for _, t := range todos {
		if !slices.Contains(ids, t.TaskID) {
			ids = append(ids, t.TaskID)
		}
	}
	for chunk := range slices.Chunk(ids, record.MaxLimit) {
		tasks, err := b.store.FindTasks(ctx, record.Query{Filter: record.Filter{IDs: chunk}})
		if err != nil {
			return err
		}
		for _, t := range tasks {
			b.remember(t)
		}
	}

	cache.SetBase(asOf, todos)
	return nil
}

// Refresh reloads the todos and re-issues the catalog query.
func (b *Board) Refresh(ctx context.Context) error {
	b.catalog.Refresh(ctx)
	b.picker.Refresh(ctx)
	return b.loadTodos(ctx)
}

// Close releases the board's queries. Outstanding mutations still settle.
func (b *Board) Close() {
	b.cancel()
	b.picker.Stop()
	b.catalog.Close()
}

// Space returns the board's space.
func (b *Board) Space() record.Space {
	return b.space
}

// List returns the board's list.
func (b *Board) List() record.List {
	return b.list
}

// Picker returns the controller that chooses the task for new todos.
func (b *Board) Picker() *picker.Controller {
	return b.picker
}

// Catalog returns the query behind the catalog.
func (b *Board) Catalog() *catalog.Live {
	return b.catalog
}

// Todos returns the mutator for the list's todos.
func (b *Board) Todos() *optimistic.Mutator[record.Todo] {
	return b.todos
}

func (b *Board) remember(t record.Task) {
	b.mu.Lock()
	b.tasks[t.ID] = t
	b.mu.Unlock()
}

func (b *Board) fail(err error) error {
	b.mu.Lock()
	b.message = record.Message(err)
	b.mu.Unlock()
	return err
}

// CreateTodo adds a todo for the picker's selected task to the list and
// clears the selection.
func (b *Board) CreateTodo(ctx context.Context) (*optimistic.Pending[record.Todo], error) {
	task, ok := b.picker.Selected()
	if !ok {
		return nil, b.fail(record.Invalid(record.EntityTodo, record.ErrMissingTask))
	}
	fields := record.TodoFields{ListID: b.list.ID, TaskID: task.ID, OwnerID: b.ownerID}
	if err := fields.Validate(); err != nil {
		return nil, b.fail(err)
	}

	b.remember(task)
	b.clearMessage()
	p := b.todos.Create(ctx, fields.Draft("", b.now()), func(ctx context.Context) (record.Todo, error) {
		return b.store.CreateTodo(ctx, fields)
	})
	b.picker.Clear(ctx)
	return p, nil
}

// ToggleTodo marks a todo complete or incomplete. Asking for the state the
// todo is already in does nothing and returns a nil Pending.
func (b *Board) ToggleTodo(ctx context.Context, id string, completed bool) (*optimistic.Pending[record.Todo], error) {
	e, ok := b.todos.Cache().Get(id)
	if ok && e.Value.Completed() == completed {
		return nil, nil
	}

	patch := record.TodoPatch{Completed: &completed, CompletedAt: b.now()}
	b.clearMessage()
	return b.todos.Update(ctx, id,
		func(t record.Todo) record.Todo { return patch.Apply(t, patch.CompletedAt) },
		func(ctx context.Context) (record.Todo, error) { return b.store.UpdateTodo(ctx, id, patch) },
	)
}

// DeleteTodo removes a todo.
func (b *Board) DeleteTodo(ctx context.Context, id string) (*optimistic.Pending[record.Todo], error) {
	b.clearMessage()
	return b.todos.Delete(ctx, id, func(ctx context.Context) error {
		return b.store.DeleteTodo(ctx, id)
	})
}

// ReassignPicker returns a picker over the tasks of the space the todo's
// list belongs to. The caller stops it when done.
func (b *Board) ReassignPicker(ctx context.Context, todoID string) (*picker.Controller, error) {
	e, ok := b.todos.Cache().Get(todoID)
	if !ok {
		return nil, record.NotFound(record.EntityTodo, todoID)
	}
	if e.Provisional {
		return nil, optimistic.ErrProvisional
	}
	list, err := b.store.ListByID(ctx, e.Value.ListID)
	if err != nil {
		return nil, err
	}
	return picker.New(ctx, b.store, list.SpaceID, picker.Options{Limit: b.pickerLimit, Logger: b.logger}), nil
}

// Reassign points a todo at task. Only the todo's task changes.
// Reassigning to the current task does nothing and returns a nil Pending.
func (b *Board) Reassign(ctx context.Context, todoID string, task record.Task) (*optimistic.Pending[record.Todo], error) {
	patch := record.TodoPatch{TaskID: &task.ID}
	if err := patch.Validate(); err != nil {
		return nil, b.fail(err)
	}
	if e, ok := b.todos.Cache().Get(todoID); ok && e.Value.TaskID == task.ID {
		return nil, nil
	}

	b.remember(task)
	b.clearMessage()
	return b.todos.Update(ctx, todoID,
		func(t record.Todo) record.Todo { return patch.Apply(t, b.now()) },
		func(ctx context.Context) (record.Todo, error) { return b.store.UpdateTodo(ctx, todoID, patch) },
	)
}

func (b *Board) todoSettled(s optimistic.Settled[record.Todo]) {
	if s.Err == nil {
		return
	}
	b.logger.Info("todo "+s.Op+" rolled back", "key", s.Key, "kind", record.KindOf(s.Err), "err", s.Err)
	b.fail(s.Err)
}

// ToggleCatalog shows or hides the catalog and reports whether it is now
// shown. Showing it re-issues the catalog query.
func (b *Board) ToggleCatalog(ctx context.Context) bool {
	b.mu.Lock()
	b.showCatalog = !b.showCatalog
	shown := b.showCatalog
	b.mu.Unlock()
	if shown {
		b.catalog.Refresh(ctx)
	}
	return shown
}

// QuickAddTask creates a task in the space and, once it is saved, selects
// it in the picker.
func (b *Board) QuickAddTask(ctx context.Context, title, description string) (*optimistic.Pending[record.Task], error) {
	fields := record.TaskFields{SpaceID: b.space.ID, Title: title, Description: description}.Normalize()
	if err := fields.Validate(); err != nil {
		return nil, b.fail(err)
	}

	b.clearMessage()
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.catalog.Mutator().Create(ctx, fields.Draft("", b.now()), func(ctx context.Context) (record.Task, error) {
		return b.store.CreateTask(ctx, fields)
	})
	b.adding[p.Key] = fields.Title
	return p, nil
}

// DeleteTask removes a task from the catalog. A task that todos still use
// is restored with an explanation.
func (b *Board) DeleteTask(ctx context.Context, id string) (*optimistic.Pending[record.Task], error) {
	b.clearMessage()
	return b.catalog.Mutator().Delete(ctx, id, func(ctx context.Context) error {
		return b.store.DeleteTask(ctx, id)
	})
}

func (b *Board) taskSettled(s optimistic.Settled[record.Task]) {
	b.mu.Lock()
	title, added := b.adding[s.Key]
	delete(b.adding, s.Key)
	if s.Err != nil {
		b.message = record.Message(s.Err)
		if added && record.KindOf(s.Err) == record.KindUniqueConstraint {
			b.message = record.DuplicateMessage(title)
		}
		b.mu.Unlock()
		b.logger.Info("task "+s.Op+" rolled back", "key", s.Key, "kind", record.KindOf(s.Err), "err", s.Err)
		return
	}
	if s.Op == "delete" {
		delete(b.tasks, s.Key)
	}
	b.mu.Unlock()

	switch {
	case added:
		b.picker.Select(s.Value)
	case s.Op == "delete":
		if selected, ok := b.picker.Selected(); ok && selected.ID == s.Key {
			b.picker.Clear(b.ctx)
		}
	}
}

func (b *Board) clearMessage() {
	b.mu.Lock()
	b.message = ""
	b.mu.Unlock()
}

// Item is a todo with the records it refers to.
type Item struct {
	Todo  record.Todo
	Task  record.Task
	Owner record.User

	Provisional bool
	Pending     bool
}

// View is the board's state for rendering.
type View struct {
	Space record.Space
	List  record.List

	// Todos are newest first.
	Todos []Item

	// Selected is the task the next todo will be created for.
	Selected *record.Task

	ShowCatalog bool

	// Catalog holds the space's tasks while ShowCatalog is set.
	Catalog    []optimistic.Entry[record.Task]
	CatalogErr error

	// Message explains the last failure.
	Message string
}

// View returns the current state.
func (b *Board) View() View {
	selected, hasSelection := b.picker.Selected()
	snap := b.catalog.Snapshot()
	entries := b.todos.Cache().View()

	b.mu.Lock()
	defer b.mu.Unlock()
	v := View{
		Space:       b.space,
		List:        b.list,
		ShowCatalog: b.showCatalog,
		Message:     b.message,
		Todos:       make([]Item, len(entries)),
	}
	if hasSelection {
		v.Selected = &selected
	}
	if b.showCatalog {
		v.Catalog = snap.Entries
		v.CatalogErr = snap.Err
	}
	for i, e := range entries {
		task, ok := b.tasks[e.Value.TaskID]
		if !ok {
			if ce, found := b.catalog.Cache().Get(e.Value.TaskID); found {
				task = ce.Value
			}
		}
		v.Todos[i] = Item{
			Todo:        e.Value,
			Task:        task,
			Owner:       b.users[e.Value.OwnerID],
			Provisional: e.Provisional,
			Pending:     e.Pending,
		}
	}
	return v
}
