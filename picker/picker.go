// Package picker implements the search-or-create task field: the user
// types, picks one of the matching tasks, or creates a new one when no
// task has exactly that title.
package picker

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/amonks/spacetodo/catalog"
	"github.com/amonks/spacetodo/internal/logging"
	"github.com/amonks/spacetodo/internal/pubsub"
	"github.com/amonks/spacetodo/optimistic"
	"github.com/amonks/spacetodo/record"
)

// State is the controller's position in the search, pick, or create flow.
type State int

const (
	StateIdle State = iota
	StateTyping
	StatePicked
	StateCreating
	StateCreated
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTyping:
		return "typing"
	case StatePicked:
		return "picked"
	case StateCreating:
		return "creating"
	case StateCreated:
		return "created"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

var (
	// ErrNoSuggestion is returned by Accept when there is nothing to create
	// or pick.
	ErrNoSuggestion = errors.New("no task to pick")

	// ErrCreateInFlight is returned by Create while an earlier create has
	// not settled.
	ErrCreateInFlight = errors.New("a task is already being created")
)

// Tasks is the store access a Controller needs.
type Tasks interface {
	record.TaskFinder
	record.TaskWriter
}

// Options configures a Controller.
type Options struct {
	// Limit is the suggestion ceiling. Zero means catalog.PickerLimit.
	Limit int

	Logger *log.Logger

	// OnSelect is called with each task the controller selects, whether
	// picked, created, or selected from outside.
	OnSelect func(record.Task)
}

// View is the controller's state for rendering.
type View struct {
	Version uint64
	State   State
	Text    string

	// Selected is the selected task, if any.
	Selected *record.Task

	// Open is set while suggestions should be shown.
	Open        bool
	Suggestions []optimistic.Entry[record.Task]
	Loading     bool

	// CanCreate reports whether creating a task from Text is offered.
	CanCreate bool

	// Creating is set while a create is outstanding.
	Creating bool

	// Message is a user-facing explanation of the last failure.
	Message string
}

// Controller drives one search field within a space.
type Controller struct {
	tasks    Tasks
	spaceID  string
	logger   *log.Logger
	onSelect func(record.Task)
	live     *catalog.Live

	mu       sync.Mutex
	state    State
	text     string
	selected *record.Task
	open     bool
	creating string
	message  string

	creatingTitle string
	version       uint64

	snapshots pubsub.Latest[View]
	stop      func()
}

// New returns an idle controller over the tasks of a space and issues the
// initial query.
func New(ctx context.Context, tasks Tasks, spaceID string, opts Options) *Controller {
	limit := opts.Limit
	if limit <= 0 {
		limit = catalog.PickerLimit
	}
	c := &Controller{
		tasks:    tasks,
		spaceID:  spaceID,
		logger:   logging.OrDiscard(opts.Logger),
		onSelect: opts.OnSelect,
	}
	c.live = catalog.NewLive(tasks, catalog.Options{
		Limit:     limit,
		Logger:    c.logger,
		OnSettled: c.settled,
	})
	c.stop = c.live.Subscribe(func(catalog.Snapshot) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.publishLocked()
	})
	c.live.Set(ctx, spaceID, "")
	return c
}

// SpaceID returns the space the controller searches.
func (c *Controller) SpaceID() string {
	return c.spaceID
}

// Live returns the query behind the suggestions.
func (c *Controller) Live() *catalog.Live {
	return c.live
}

// Type replaces the text and re-issues the query.
func (c *Controller) Type(ctx context.Context, text string) *catalog.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = text
	c.open = true
	c.message = ""
	c.state = StateTyping
	if text == "" {
		c.state = StateIdle
	}
	c.selected = nil
	r := c.live.Set(ctx, c.spaceID, text)
	c.publishLocked()
	return r
}

// Pick selects the suggestion with id.
func (c *Controller) Pick(id string) (record.Task, error) {
	c.mu.Lock()
	e, ok := c.live.Cache().Get(id)
	if !ok {
		c.mu.Unlock()
		return record.Task{}, record.NotFound(record.EntityTask, id)
	}
	if e.Provisional {
		c.mu.Unlock()
		return record.Task{}, optimistic.ErrProvisional
	}
	c.selectLocked(StatePicked, e.Value)
	c.mu.Unlock()
	c.emit(e.Value)
	return e.Value, nil
}

// Accept is the Enter key: it creates a task from the text when that is
// offered and no create is outstanding, and otherwise picks the first
// confirmed suggestion.
func (c *Controller) Accept(ctx context.Context) (*optimistic.Pending[record.Task], error) {
	c.mu.Lock()
	view := c.viewLocked()
	if view.CanCreate && c.creating == "" {
		p, err := c.createLocked(ctx)
		c.mu.Unlock()
		return p, err
	}
	for _, e := range view.Suggestions {
		if e.Provisional {
			continue
		}
		c.selectLocked(StatePicked, e.Value)
		c.mu.Unlock()
		c.emit(e.Value)
		return nil, nil
	}
	c.mu.Unlock()
	return nil, ErrNoSuggestion
}

// Create creates a task titled with the trimmed text. Blank text fails
// with a validation error and a title that is already among the
// suggestions fails with a unique constraint error; neither reaches the
// store. The returned Pending resolves once the result is reflected in
// the controller's state.
func (c *Controller) Create(ctx context.Context) (*optimistic.Pending[record.Task], error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createLocked(ctx)
}

func (c *Controller) createLocked(ctx context.Context) (*optimistic.Pending[record.Task], error) {
	if c.creating != "" {
		return nil, ErrCreateInFlight
	}
	title := catalog.Normalize(c.text)
	if err := record.ValidateTitle(title); err != nil {
		err = record.Invalid(record.EntityTask, err)
		c.message = record.Message(err)
		c.publishLocked()
		return nil, err
	}
	if catalog.Exists(title, c.live.Snapshot().Tasks()) {
		err := record.DuplicateTitle(c.spaceID, title)
		c.message = record.DuplicateMessage(title)
		c.publishLocked()
		return nil, err
	}

	fields := record.TaskFields{SpaceID: c.spaceID, Title: title}
	placeholder := record.Task{SpaceID: c.spaceID, Title: title}
	p := c.live.Mutator().Create(ctx, placeholder, func(ctx context.Context) (record.Task, error) {
		return c.tasks.CreateTask(ctx, fields)
	})
	c.creating, c.creatingTitle = p.Key, title
	c.state = StateCreating
	c.message = ""
	c.publishLocked()
	c.logger.Debug("creating task", "space", c.spaceID, "title", title)
	return p, nil
}

// settled reconciles the controller with a finished create. It runs before
// the create's Pending resolves.
func (c *Controller) settled(s optimistic.Settled[record.Task]) {
	c.mu.Lock()
	if s.Op != "create" || s.Key != c.creating {
		c.mu.Unlock()
		return
	}
	c.creating = ""
	if s.Err != nil {
		c.message = failureMessage(s.Err, c.creatingTitle)
		if c.state == StateCreating {
			c.state = StateRejected
		}
		c.logger.Info("task create rejected", "kind", record.KindOf(s.Err), "err", s.Err)
		c.publishLocked()
		c.mu.Unlock()
		return
	}
	if c.state != StateCreating {
		c.publishLocked()
		c.mu.Unlock()
		return
	}
	c.selectLocked(StateCreated, s.Value)
	c.mu.Unlock()
	c.emit(s.Value)
}

// failureMessage distinguishes a lost duplicate race from other failures.
func failureMessage(err error, title string) string {
	if record.KindOf(err) == record.KindUniqueConstraint {
		return record.DuplicateMessage(title)
	}
	return record.Message(err)
}

// Select selects task as if it had been picked. It is how a task created
// elsewhere, such as by a quick-add form, becomes the selection.
func (c *Controller) Select(task record.Task) {
	c.mu.Lock()
	c.selectLocked(StatePicked, task)
	c.mu.Unlock()
	c.emit(task)
}

// Selected returns the selected task.
func (c *Controller) Selected() (record.Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == nil {
		return record.Task{}, false
	}
	return *c.selected, true
}

// Clear empties the text and the selection and re-issues the query.
func (c *Controller) Clear(ctx context.Context) *catalog.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateIdle
	c.text = ""
	c.selected = nil
	c.open = false
	c.message = ""
	r := c.live.Set(ctx, c.spaceID, "")
	c.publishLocked()
	return r
}

// Close hides the suggestions without changing the text.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	c.publishLocked()
}

// Refresh re-issues the current query.
func (c *Controller) Refresh(ctx context.Context) *catalog.Request {
	return c.live.Refresh(ctx)
}

// Watch refreshes the suggestions whenever the store reports a task
// change, until ctx is done.
func (c *Controller) Watch(ctx context.Context) {
	c.live.Watch(ctx)
}

// Stop releases the controller's subscriptions.
func (c *Controller) Stop() {
	c.stop()
	c.live.Close()
}

func (c *Controller) selectLocked(state State, task record.Task) {
	c.state = state
	c.selected = &task
	c.text = task.Title
	c.open = false
	c.message = ""
	c.publishLocked()
}

func (c *Controller) emit(task record.Task) {
	if c.onSelect != nil {
		c.onSelect(task)
	}
}

// View returns the current state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Controller) viewLocked() View {
	snap := c.live.Snapshot()
	v := View{
		Version:     c.version,
		State:       c.state,
		Text:        c.text,
		Open:        c.open,
		Suggestions: snap.Entries,
		Loading:     snap.Loading,
		CanCreate:   catalog.CanCreate(c.text, snap.Tasks()),
		Creating:    c.creating != "",
		Message:     c.message,
	}
	if c.selected != nil {
		task := *c.selected
		v.Selected = &task
	}
	return v
}

func (c *Controller) publishLocked() {
	c.version++
	c.snapshots.Publish(c.version, c.viewLocked())
}

// Subscribe registers fn to receive views in version order. Superseded
// views may be skipped.
func (c *Controller) Subscribe(fn func(View)) (cancel func()) {
	return c.snapshots.Subscribe(fn)
}

// Flush waits until every change so far has been delivered to subscribers.
func (c *Controller) Flush() {
	c.live.Flush()
	c.snapshots.Flush()
}
