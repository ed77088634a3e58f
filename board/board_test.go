package board

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amonks/spacetodo/memstore"
	"github.com/amonks/spacetodo/optimistic"
	"github.com/amonks/spacetodo/record"
	"github.com/amonks/spacetodo/record/recordtest"
)

type harness struct {
	mem      *memstore.Store
	counting *recordtest.Counting
	gated    *recordtest.Gated
	store    record.Store
	fx       recordtest.Fixture
	board    *Board
}

// newHarness opens a board over a seeded store, holding calls to the named
// methods until the test resolves them.
func newHarness(t *testing.T, gate ...string) *harness {
	t.Helper()
	mem := memstore.New(memstore.Options{})
	fx := recordtest.Seed(t, mem)
	h := &harness{mem: mem, fx: fx, counting: recordtest.NewCounting(mem)}
	h.store = h.counting
	if len(gate) > 0 {
		h.gated = recordtest.NewGated(h.counting, gate...)
		h.store = h.gated
	}
	return h
}

func (h *harness) open(t *testing.T, opts Options) *Board {
	t.Helper()
	if opts.SpaceSlug == "" {
		opts.SpaceSlug = h.fx.Space.Slug
	}
	if opts.ListID == "" {
		opts.ListID = h.fx.List.ID
	}
	if opts.OwnerID == "" {
		opts.OwnerID = h.fx.User.ID
	}
	b, err := Open(context.Background(), h.store, opts)
	if err != nil {
		t.Fatalf("open board: %v", err)
	}
	t.Cleanup(b.Close)
	h.board = b
	return b
}

func wait[T any](t *testing.T, p *optimistic.Pending[T]) (T, error) {
	t.Helper()
	if p == nil {
		t.Fatal("no mutation was issued")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v, err := p.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("mutation did not settle")
	}
	return v, err
}

func (h *harness) selectTask(t *testing.T, task record.Task) {
	t.Helper()
	h.board.Picker().Select(task)
}

func catalogTitles(v View) []string {
	var out []string
	for _, e := range v.Catalog {
		out = append(out, e.Value.Title)
	}
	return out
}

func TestOpenNotFound(t *testing.T) {
	h := newHarness(t)
	foreign, err := h.mem.CreateList(context.Background(), record.ListFields{SpaceID: h.fx.Other.ID, Title: "Errands"})
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name string
		opts Options
	}{
		{name: "missing space", opts: Options{SpaceSlug: "nope", ListID: h.fx.List.ID}},
		{name: "missing list", opts: Options{SpaceSlug: h.fx.Space.Slug, ListID: "nope"}},
		{name: "list of another space", opts: Options{SpaceSlug: h.fx.Space.Slug, ListID: foreign.ID}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Open(context.Background(), h.mem, tc.opts)
			recordtest.ExpectKind(t, err, record.KindNotFound)
		})
	}
}

func TestOpenLoadsTodos(t *testing.T) {
	h := newHarness(t)
	milk := recordtest.MustCreateTask(t, h.mem, h.fx.Space.ID, "milk")
	eggs := recordtest.MustCreateTask(t, h.mem, h.fx.Space.ID, "eggs")
	recordtest.MustCreateTodo(t, h.mem, h.fx, milk.ID)
	time.Sleep(time.Millisecond)
	recordtest.MustCreateTodo(t, h.mem, h.fx, eggs.ID)

	v := h.open(t, Options{ShowCatalog: true}).View()
	if len(v.Todos) != 2 {
		t.Fatalf("todos = %d, want 2", len(v.Todos))
	}
	if v.Todos[0].Task.Title != "eggs" || v.Todos[1].Task.Title != "milk" {
		t.Fatalf("todos not newest first with tasks: %+v", v.Todos)
	}
	if v.Todos[0].Owner.Name != "ada" {
		t.Fatalf("owner = %+v", v.Todos[0].Owner)
	}
	if got := catalogTitles(v); len(got) != 2 || got[0] != "eggs" {
		t.Fatalf("catalog = %q", got)
	}
}

func TestCreateTodoRequiresSelection(t *testing.T) {
	h := newHarness(t)
	b := h.open(t, Options{})

	_, err := b.CreateTodo(context.Background())
	recordtest.ExpectKind(t, err, record.KindValidation)
	if h.counting.Writes() != 0 {
		t.Fatalf("store writes = %d, want 0", h.counting.Writes())
	}
	if b.View().Message == "" {
		t.Fatal("no message for a missing selection")
	}
}

func TestCreateTodo(t *testing.T) {
	h := newHarness(t, "CreateTodo")
	task := recordtest.MustCreateTask(t, h.mem, h.fx.Space.ID, "milk")
	b := h.open(t, Options{})
	h.selectTask(t, task)

	p, err := b.CreateTodo(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	v := b.View()
	if v.Selected != nil {
		t.Fatalf("selection not cleared: %+v", v.Selected)
	}
	if len(v.Todos) != 1 || !v.Todos[0].Provisional || v.Todos[0].Task.Title != "milk" {
		t.Fatalf("todos = %+v, want one provisional milk todo", v.Todos)
	}

	call := h.gated.Expect(t, "CreateTodo")
	fields := call.Args[0].(record.TodoFields)
	if fields.ListID != h.fx.List.ID || fields.TaskID != task.ID || fields.OwnerID != h.fx.User.ID {
		t.Fatalf("fields = %+v", fields)
	}
	call.Proceed()
	todo, err := wait(t, p)
	if err != nil {
		t.Fatal(err)
	}

	v = b.View()
	if len(v.Todos) != 1 || v.Todos[0].Provisional || v.Todos[0].Todo.ID != todo.ID {
		t.Fatalf("todos = %+v, want the confirmed todo", v.Todos)
	}
}

func TestToggleSameStateIsNoop(t *testing.T) {
	h := newHarness(t)
	task := recordtest.MustCreateTask(t, h.mem, h.fx.Space.ID, "milk")
	todo := recordtest.MustCreateTodo(t, h.mem, h.fx, task.ID)
	b := h.open(t, Options{})
	ctx := context.Background()

	p, err := b.ToggleTodo(ctx, todo.ID, false)
	if err != nil || p != nil {
		t.Fatalf("toggle to current state = %v, %v; want no mutation", p, err)
	}
	if n := h.counting.Count("UpdateTodo"); n != 0 {
		t.Fatalf("UpdateTodo calls = %d, want 0", n)
	}

	p, err = b.ToggleTodo(ctx, todo.ID, true)
	if err != nil {
		t.Fatal(err)
	}
	if v := b.View(); !v.Todos[0].Todo.Completed() || !v.Todos[0].Pending {
		t.Fatalf("todo not projected complete: %+v", v.Todos[0])
	}
	if _, err := wait(t, p); err != nil {
		t.Fatal(err)
	}

	p, err = b.ToggleTodo(ctx, todo.ID, true)
	if err != nil || p != nil {
		t.Fatalf("second toggle = %v, %v; want no mutation", p, err)
	}
	if n := h.counting.Count("UpdateTodo"); n != 1 {
		t.Fatalf("UpdateTodo calls = %d, want 1", n)
	}

	p, err = b.ToggleTodo(ctx, todo.ID, false)
	if err != nil {
		t.Fatal(err)
	}
	undone, err := wait(t, p)
	if err != nil || undone.Completed() {
		t.Fatalf("undo = %+v, %v", undone, err)
	}
}

func TestToggleRollback(t *testing.T) {
	h := newHarness(t, "UpdateTodo")
	task := recordtest.MustCreateTask(t, h.mem, h.fx.Space.ID, "milk")
	todo := recordtest.MustCreateTodo(t, h.mem, h.fx, task.ID)
	b := h.open(t, Options{})

	p, err := b.ToggleTodo(context.Background(), todo.ID, true)
	if err != nil {
		t.Fatal(err)
	}
	h.gated.Expect(t, "UpdateTodo").Fail(record.Transient(record.EntityTodo, errors.New("timeout")))
	_, err = wait(t, p)
	recordtest.ExpectKind(t, err, record.KindTransient)

	v := b.View()
	if v.Todos[0].Todo.Completed() || v.Todos[0].Pending {
		t.Fatalf("todo = %+v, want restored incomplete", v.Todos[0])
	}
	if v.Message != record.MessageRetry {
		t.Fatalf("message = %q", v.Message)
	}
}

func TestDeleteTodo(t *testing.T) {
	h := newHarness(t, "DeleteTodo")
	task := recordtest.MustCreateTask(t, h.mem, h.fx.Space.ID, "milk")
	todo := recordtest.MustCreateTodo(t, h.mem, h.fx, task.ID)
	b := h.open(t, Options{})

	p, err := b.DeleteTodo(context.Background(), todo.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(b.View().Todos); n != 0 {
		t.Fatalf("todos = %d during delete, want 0", n)
	}
	h.gated.Expect(t, "DeleteTodo").Proceed()
	if _, err := wait(t, p); err != nil {
		t.Fatal(err)
	}
	if n := len(b.View().Todos); n != 0 {
		t.Fatalf("todos = %d, want 0", n)
	}
}

func TestDeleteTaskInUse(t *testing.T) {
	h := newHarness(t, "DeleteTask")
	task := recordtest.MustCreateTask(t, h.mem, h.fx.Space.ID, "milk")
	recordtest.MustCreateTodo(t, h.mem, h.fx, task.ID)
	b := h.open(t, Options{ShowCatalog: true})

	p, err := b.DeleteTask(context.Background(), task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got := catalogTitles(b.View()); len(got) != 0 {
		t.Fatalf("catalog = %q during delete, want empty", got)
	}

	h.gated.Expect(t, "DeleteTask").Proceed()
	_, err = wait(t, p)
	recordtest.ExpectKind(t, err, record.KindReferentialIntegrity)

	v := b.View()
	if len(v.Catalog) != 1 || v.Catalog[0].Value != task {
		t.Fatalf("catalog = %+v, want milk restored unmodified", v.Catalog)
	}
	if v.Message != "Cannot delete: this task is used by an existing todo." {
		t.Fatalf("message = %q", v.Message)
	}
}

func TestDeleteSelectedTaskClearsSelection(t *testing.T) {
	h := newHarness(t)
	task := recordtest.MustCreateTask(t, h.mem, h.fx.Space.ID, "milk")
	b := h.open(t, Options{})
	h.selectTask(t, task)

	p, err := b.DeleteTask(context.Background(), task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wait(t, p); err != nil {
		t.Fatal(err)
	}
	if v := b.View(); v.Selected != nil {
		t.Fatalf("selection = %+v after deleting it", v.Selected)
	}
}

func TestQuickAddTask(t *testing.T) {
	h := newHarness(t)
	b := h.open(t, Options{ShowCatalog: true})
	ctx := context.Background()

	_, err := b.QuickAddTask(ctx, "   ", "")
	recordtest.ExpectKind(t, err, record.KindValidation)
	if h.counting.Count("CreateTask") != 0 {
		t.Fatal("blank title reached the store")
	}

	p, err := b.QuickAddTask(ctx, "  Water plants ", " weekly ")
	if err != nil {
		t.Fatal(err)
	}
	task, err := wait(t, p)
	if err != nil {
		t.Fatal(err)
	}
	if task.Title != "Water plants" || task.Description != "weekly" {
		t.Fatalf("task = %+v", task)
	}
	v := b.View()
	if v.Selected == nil || v.Selected.ID != task.ID {
		t.Fatalf("selected = %+v, want the new task", v.Selected)
	}

	p, err = b.QuickAddTask(ctx, "Water plants", "")
	if err != nil {
		t.Fatal(err)
	}
	_, err = wait(t, p)
	recordtest.ExpectKind(t, err, record.KindUniqueConstraint)
	v = b.View()
	if v.Message != `A task named "Water plants" already exists in this space.` {
		t.Fatalf("message = %q", v.Message)
	}
	if got := catalogTitles(v); len(got) != 1 {
		t.Fatalf("catalog = %q, want one Water plants", got)
	}
}

func TestReassign(t *testing.T) {
	h := newHarness(t, "UpdateTodo")
	milk := recordtest.MustCreateTask(t, h.mem, h.fx.Space.ID, "milk")
	oat := recordtest.MustCreateTask(t, h.mem, h.fx.Space.ID, "oat milk")
	todo := recordtest.MustCreateTodo(t, h.mem, h.fx, milk.ID)
	b := h.open(t, Options{})
	ctx := context.Background()

	pk, err := b.ReassignPicker(ctx, todo.ID)
	if err != nil {
		t.Fatal(err)
	}
	defer pk.Stop()
	if pk.SpaceID() != h.fx.Space.ID {
		t.Fatalf("reassign picker space = %q, want %q", pk.SpaceID(), h.fx.Space.ID)
	}

	p, err := b.Reassign(ctx, todo.ID, oat)
	if err != nil {
		t.Fatal(err)
	}
	if item := b.View().Todos[0]; item.Todo.TaskID != oat.ID || item.Task.Title != "oat milk" {
		t.Fatalf("item = %+v, want projected onto oat milk", item)
	}

	call := h.gated.Expect(t, "UpdateTodo")
	patch := call.Args[1].(record.TodoPatch)
	if patch.TaskID == nil || *patch.TaskID != oat.ID || patch.Completed != nil {
		t.Fatalf("patch = %+v, want only the task changed", patch)
	}
	call.Proceed()
	got, err := wait(t, p)
	if err != nil {
		t.Fatal(err)
	}
	if got.ListID != todo.ListID || got.OwnerID != todo.OwnerID || got.TaskID != oat.ID {
		t.Fatalf("todo = %+v", got)
	}

	if p, err := b.Reassign(ctx, todo.ID, oat); err != nil || p != nil {
		t.Fatalf("reassign to current task = %v, %v; want no mutation", p, err)
	}
}

func TestReassignAcrossSpacesRollsBack(t *testing.T) {
	h := newHarness(t)
	milk := recordtest.MustCreateTask(t, h.mem, h.fx.Space.ID, "milk")
	foreign := recordtest.MustCreateTask(t, h.mem, h.fx.Other.ID, "report")
	todo := recordtest.MustCreateTodo(t, h.mem, h.fx, milk.ID)
	b := h.open(t, Options{})

	p, err := b.Reassign(context.Background(), todo.ID, foreign)
	if err != nil {
		t.Fatal(err)
	}
	_, err = wait(t, p)
	recordtest.ExpectKind(t, err, record.KindValidation)
	if item := b.View().Todos[0]; item.Todo.TaskID != milk.ID {
		t.Fatalf("item = %+v, want milk restored", item)
	}
}

func TestToggleCatalog(t *testing.T) {
	h := newHarness(t)
	recordtest.MustCreateTask(t, h.mem, h.fx.Space.ID, "milk")
	b := h.open(t, Options{})

	if v := b.View(); v.ShowCatalog || v.Catalog != nil {
		t.Fatalf("catalog shown by default: %+v", v)
	}
	if !b.ToggleCatalog(context.Background()) {
		t.Fatal("ToggleCatalog did not show the catalog")
	}
	if got := catalogTitles(b.View()); len(got) != 1 {
		t.Fatalf("catalog = %q", got)
	}
	if b.ToggleCatalog(context.Background()) {
		t.Fatal("ToggleCatalog did not hide the catalog")
	}
}
