package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/amonks/spacetodo/board"
	"github.com/amonks/spacetodo/catalog"
	"github.com/amonks/spacetodo/internal/ui"
	"github.com/amonks/spacetodo/picker"
	"github.com/amonks/spacetodo/record"
)

var todoCmd = &cobra.Command{
	Use:   "todo",
	Short: "Manage the todos of a list",
}

var todoAddCmd = &cobra.Command{
	Use:   "add [text]",
	Short: "Add a todo for a task",
	Long: `Add a todo for a task.

The text is searched for in the space's catalog. A task titled exactly
like the text is used; otherwise a task with that title is created.
Use --task to name an existing task by id instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTodoAdd,
}

var todoAddTask string

var todoLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "Show the todos of a list, newest first",
	Args:  cobra.NoArgs,
	RunE:  runTodoLs,
}

var todoLsCatalog bool

var todoDoneCmd = &cobra.Command{
	Use:   "done <id>...",
	Short: "Mark todos complete",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTodoToggle(cmd, args, true)
	},
}

var todoUndoCmd = &cobra.Command{
	Use:   "undo <id>...",
	Short: "Mark todos incomplete",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTodoToggle(cmd, args, false)
	},
}

var todoRmCmd = &cobra.Command{
	Use:   "rm <id>...",
	Short: "Delete todos",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTodoRm,
}

var todoReassignCmd = &cobra.Command{
	Use:   "reassign <id> [text]",
	Short: "Point a todo at a different task",
	Long: `Point a todo at a different task.

The task is chosen the same way as for todo add.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runTodoReassign,
}

var todoReassignTask string

var flagList string

func init() {
	rootCmd.AddCommand(todoCmd)
	addSpaceFlag(todoCmd)
	todoCmd.PersistentFlags().StringVarP(&flagList, "list", "l", "", "id (or id prefix) of the list")
	todoCmd.AddCommand(todoAddCmd, todoLsCmd, todoDoneCmd, todoUndoCmd, todoRmCmd, todoReassignCmd)

	todoAddCmd.Flags().StringVar(&todoAddTask, "task", "", "id (or id prefix) of an existing task")
	todoLsCmd.Flags().BoolVar(&todoLsCatalog, "catalog", false, "also show the space's catalog")
	todoReassignCmd.Flags().StringVar(&todoReassignTask, "task", "", "id (or id prefix) of an existing task")
}

// openBoard opens the board of the --space and --list flags. The owner is
// resolved only when needOwner is set.
func (a *app) openBoard(cmd *cobra.Command, needOwner bool) (*board.Board, error) {
	ctx := cmd.Context()
	space, err := requireSpace(a, cmd)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(flagList) == "" {
		return nil, exitWith(exitUsage, fmt.Errorf("--list is required"))
	}
	list, err := resolveList(ctx, a.store, space.ID, flagList)
	if err != nil {
		return nil, classify(err)
	}

	opts := board.Options{
		SpaceSlug:    space.Slug,
		ListID:       list.ID,
		PickerLimit:  a.pickerLimit(),
		CatalogLimit: a.browseLimit(),
		Logger:       a.logger,
	}
	if needOwner {
		if a.cfg.User.ID == "" {
			return nil, exitWith(exitUsage, fmt.Errorf("no user: pass --user or set SPACETODO_USER"))
		}
		user, err := resolveUser(ctx, a.store, a.cfg.User.ID)
		if err != nil {
			return nil, classify(err)
		}
		opts.OwnerID = user.ID
	}

	b, err := board.Open(ctx, a.store, opts)
	if err != nil {
		return nil, classify(err)
	}
	return b, nil
}

// chooseTask selects a task in c the way pressing Enter after typing text
// would, except that an exact title match is always preferred.
func chooseTask(ctx context.Context, c *picker.Controller, text string) (record.Task, error) {
	if err := c.Type(ctx, text).Wait(ctx); err != nil {
		return record.Task{}, classify(err)
	}
	view := c.View()
	for _, e := range view.Suggestions {
		if !e.Provisional && catalog.Normalize(e.Value.Title) == catalog.Normalize(text) {
			task, err := c.Pick(e.Key)
			return task, classify(err)
		}
	}

	p, err := c.Accept(ctx)
	if errors.Is(err, picker.ErrNoSuggestion) {
		return record.Task{}, exitWith(exitUsage, fmt.Errorf("no task matches %q", strings.TrimSpace(text)))
	}
	if err != nil {
		return record.Task{}, failWith(c.View().Message, err)
	}
	if p != nil {
		if _, err := p.Wait(ctx); err != nil {
			return record.Task{}, failWith(c.View().Message, err)
		}
	}
	task, ok := c.Selected()
	if !ok {
		return record.Task{}, exitWith(exitFailure, fmt.Errorf("no task selected"))
	}
	return task, nil
}

// taskForTodo resolves the task named by --task, or chooses one from text.
func taskForTodo(ctx context.Context, a *app, c *picker.Controller, taskID string, args []string) (record.Task, error) {
	if taskID != "" {
		task, err := resolveTask(ctx, a.store, c.SpaceID(), taskID)
		if err != nil {
			return record.Task{}, classify(err)
		}
		c.Select(task)
		return task, nil
	}
	if len(args) == 0 {
		return record.Task{}, exitWith(exitUsage, fmt.Errorf("name a task with text or --task"))
	}
	if err := record.ValidateTitle(args[0]); err != nil {
		err = record.Invalid(record.EntityTask, err)
		return record.Task{}, failWith(record.Message(err), err)
	}
	return chooseTask(ctx, c, args[0])
}

func runTodoAdd(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	b, err := a.openBoard(cmd, true)
	if err != nil {
		return err
	}
	defer b.Close()

	task, err := taskForTodo(ctx, a, b.Picker(), todoAddTask, args)
	if err != nil {
		return err
	}
	p, err := b.CreateTodo(ctx)
	if err != nil {
		return failWith(record.Message(err), err)
	}
	todo, err := p.Wait(ctx)
	if err != nil {
		return failWith(record.Message(err), err)
	}

	return writeOutput(cmd.OutOrStdout(), newTodoRow(board.Item{Todo: todo, Task: task}), func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Added todo %s: %s\n", todo.ID, task.Title)
		return err
	})
}

// todoRow is a todo as printed.
type todoRow struct {
	ID          string     `json:"id" yaml:"id"`
	TaskID      string     `json:"task_id" yaml:"task_id"`
	Task        string     `json:"task" yaml:"task"`
	OwnerID     string     `json:"owner_id" yaml:"owner_id"`
	Owner       string     `json:"owner,omitempty" yaml:"owner,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at" yaml:"created_at"`
}

func newTodoRow(item board.Item) todoRow {
	return todoRow{
		ID:          item.Todo.ID,
		TaskID:      item.Todo.TaskID,
		Task:        item.Task.Title,
		OwnerID:     item.Todo.OwnerID,
		Owner:       item.Owner.Name,
		CompletedAt: item.Todo.CompletedAt,
		CreatedAt:   item.Todo.CreatedAt,
	}
}

func runTodoLs(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	b, err := a.openBoard(cmd, false)
	if err != nil {
		return err
	}
	defer b.Close()

	if todoLsCatalog {
		b.ToggleCatalog(cmd.Context())
	}
	view := b.View()
	rows := make([]todoRow, len(view.Todos))
	for i, item := range view.Todos {
		rows[i] = newTodoRow(item)
	}

	return writeOutput(cmd.OutOrStdout(), rows, func(w io.Writer) error {
		if len(rows) == 0 {
			fmt.Fprintf(w, "No todos in %s.\n", view.List.Title)
		} else {
			now := time.Now()
			lengths := prefixLengths(rows, func(r todoRow) string { return r.ID })
			builder := ui.NewTableBuilder([]string{"ID", "DONE", "TASK", "OWNER", "OPEN"}, len(rows))
			for _, r := range rows {
				builder.AddRow([]string{
					ui.HighlightID(r.ID, ui.PrefixLength(lengths, r.ID)),
					ui.Checkbox(r.CompletedAt != nil),
					ui.TruncateTableCell(r.Task),
					r.Owner,
					ui.FormatOpenFor(r.CreatedAt, r.CompletedAt, now),
				})
			}
			io.WriteString(w, builder.String())
		}

		if view.ShowCatalog {
			fmt.Fprintf(w, "\nCatalog of %s:\n", view.Space.Title)
			for _, e := range view.Catalog {
				fmt.Fprintf(w, "  %s\n", e.Value.Title)
			}
		}
		return nil
	})
}

// resolveTodo finds a todo of the board by id prefix.
func resolveTodo(b *board.Board, prefix string) (record.Todo, error) {
	items := b.View().Todos
	todos := make([]record.Todo, len(items))
	for i, item := range items {
		todos[i] = item.Todo
	}
	todo, err := resolveID(record.EntityTodo, todos, func(t record.Todo) string { return t.ID }, prefix)
	return todo, classify(err)
}

func runTodoToggle(cmd *cobra.Command, args []string, completed bool) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	b, err := a.openBoard(cmd, false)
	if err != nil {
		return err
	}
	defer b.Close()

	state := "complete"
	if !completed {
		state = "incomplete"
	}
	out := cmd.OutOrStdout()
	for _, arg := range args {
		todo, err := resolveTodo(b, arg)
		if err != nil {
			return err
		}
		p, err := b.ToggleTodo(ctx, todo.ID, completed)
		if err != nil {
			return classify(err)
		}
		if p == nil {
			fmt.Fprintf(out, "Todo %s is already %s\n", todo.ID, state)
			continue
		}
		if _, err := p.Wait(ctx); err != nil {
			return failWith(record.Message(err), err)
		}
		fmt.Fprintf(out, "Marked todo %s %s\n", todo.ID, state)
	}
	return nil
}

func runTodoRm(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	b, err := a.openBoard(cmd, false)
	if err != nil {
		return err
	}
	defer b.Close()

	out := cmd.OutOrStdout()
	for _, arg := range args {
		todo, err := resolveTodo(b, arg)
		if err != nil {
			return err
		}
		p, err := b.DeleteTodo(ctx, todo.ID)
		if err != nil {
			return classify(err)
		}
		if _, err := p.Wait(ctx); err != nil {
			return failWith(record.Message(err), err)
		}
		fmt.Fprintf(out, "Deleted todo %s\n", todo.ID)
	}
	return nil
}

func runTodoReassign(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	b, err := a.openBoard(cmd, false)
	if err != nil {
		return err
	}
	defer b.Close()

	todo, err := resolveTodo(b, args[0])
	if err != nil {
		return err
	}
	c, err := b.ReassignPicker(ctx, todo.ID)
	if err != nil {
		return classify(err)
	}
	defer c.Stop()

	task, err := taskForTodo(ctx, a, c, todoReassignTask, args[1:])
	if err != nil {
		return err
	}
	p, err := b.Reassign(ctx, todo.ID, task)
	if err != nil {
		return failWith(record.Message(err), err)
	}
	out := cmd.OutOrStdout()
	if p == nil {
		fmt.Fprintf(out, "Todo %s already uses %s\n", todo.ID, task.Title)
		return nil
	}
	if _, err := p.Wait(ctx); err != nil {
		return failWith(record.Message(err), err)
	}
	fmt.Fprintf(out, "Todo %s now uses %s\n", todo.ID, task.Title)
	return nil
}
