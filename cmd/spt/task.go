package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/amonks/spacetodo/catalog"
	"github.com/amonks/spacetodo/internal/editor"
	"github.com/amonks/spacetodo/internal/markdown"
	"github.com/amonks/spacetodo/internal/pickertui"
	"github.com/amonks/spacetodo/internal/ui"
	"github.com/amonks/spacetodo/picker"
	"github.com/amonks/spacetodo/record"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage the task catalog of a space",
}

var taskSearchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Find tasks whose titles contain text",
	Long: `Find tasks whose titles contain text, ignoring case.

Results are ordered by title. Blank text lists the first tasks of the space.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTaskSearch,
}

var taskSearchLimit int

var taskCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Add a task to the catalog",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskCreate,
}

var taskCreateDescription string

var taskEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change a task's title or description",
	Long: `Change a task's title or description.

Without --title or --description, opens $EDITOR on the task when running
interactively.`,
	Args: cobra.ExactArgs(1),
	RunE: runTaskEdit,
}

var (
	taskEditTitle       string
	taskEditDescription string
)

var taskListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "Show the catalog",
	Args:    cobra.NoArgs,
	RunE:    runTaskList,
}

var taskShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove a task from the catalog",
	Long: `Remove a task from the catalog.

A task that any todo still uses cannot be deleted.`,
	Args: cobra.ExactArgs(1),
	RunE: runTaskDelete,
}

var taskPickCmd = &cobra.Command{
	Use:   "pick [text]",
	Short: "Search for a task interactively and print the one chosen",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTaskPick,
}

func init() {
	rootCmd.AddCommand(taskCmd)
	addSpaceFlag(taskCmd)
	taskCmd.AddCommand(taskSearchCmd, taskCreateCmd, taskEditCmd, taskListCmd, taskShowCmd, taskDeleteCmd, taskPickCmd)

	taskSearchCmd.Flags().IntVar(&taskSearchLimit, "limit", 0, "maximum number of results")
	taskCreateCmd.Flags().StringVarP(&taskCreateDescription, "description", "d", "", "task description (markdown)")
	taskEditCmd.Flags().StringVar(&taskEditTitle, "title", "", "new title")
	taskEditCmd.Flags().StringVarP(&taskEditDescription, "description", "d", "", "new description (markdown)")
}

func (a *app) pickerLimit() int {
	if a.cfg.Catalog.PickerLimit > 0 {
		return a.cfg.Catalog.PickerLimit
	}
	return catalog.PickerLimit
}

func (a *app) browseLimit() int {
	if a.cfg.Catalog.BrowseLimit > 0 {
		return a.cfg.Catalog.BrowseLimit
	}
	return catalog.BrowseLimit
}

// browse loads the catalog of a space into a live query. The caller
// closes it.
func (a *app) browse(ctx context.Context, spaceID, text string, limit int) (*catalog.Live, error) {
	live := catalog.NewLive(a.store, catalog.Options{Limit: limit, Logger: a.logger})
	if err := live.Set(ctx, spaceID, text).Wait(ctx); err != nil {
		live.Close()
		return nil, classify(err)
	}
	return live, nil
}

func runTaskSearch(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	space, err := requireSpace(a, cmd)
	if err != nil {
		return err
	}
	text := ""
	if len(args) > 0 {
		text = args[0]
	}
	limit := taskSearchLimit
	if limit <= 0 {
		limit = a.pickerLimit()
	}

	var tasks []record.Task
	for task, err := range catalog.Search(cmd.Context(), a.store, space.ID, text, limit) {
		if err != nil {
			return classify(err)
		}
		tasks = append(tasks, task)
	}
	return writeTasks(cmd.OutOrStdout(), tasks, fmt.Sprintf("No tasks match %q.", strings.TrimSpace(text)))
}

func runTaskCreate(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	space, err := requireSpace(a, cmd)
	if err != nil {
		return err
	}

	fields := record.TaskFields{SpaceID: space.ID, Title: args[0], Description: taskCreateDescription}.Normalize()
	if err := fields.Validate(); err != nil {
		return failWith(record.Message(err), err)
	}

	live, err := a.browse(ctx, space.ID, fields.Title, a.pickerLimit())
	if err != nil {
		return err
	}
	defer live.Close()
	if catalog.Exists(fields.Title, live.Snapshot().Tasks()) {
		return failWith(record.DuplicateMessage(fields.Title), record.DuplicateTitle(space.ID, fields.Title))
	}

	p := live.Mutator().Create(ctx, fields.Draft("", time.Now()), func(ctx context.Context) (record.Task, error) {
		return a.store.CreateTask(ctx, fields)
	})
	task, err := p.Wait(ctx)
	if err != nil {
		if record.KindOf(err) == record.KindUniqueConstraint {
			return failWith(record.DuplicateMessage(fields.Title), err)
		}
		return failWith(record.Message(err), err)
	}

	return writeOutput(cmd.OutOrStdout(), task, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Created task %s: %s\n", task.ID, task.Title)
		return err
	})
}

func runTaskEdit(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	space, err := requireSpace(a, cmd)
	if err != nil {
		return err
	}
	live, err := a.browse(ctx, space.ID, "", catalog.BrowseLimit)
	if err != nil {
		return err
	}
	defer live.Close()

	tasks := live.Snapshot().Tasks()
	task, err := resolveID(record.EntityTask, tasks, func(t record.Task) string { return t.ID }, args[0])
	if err != nil {
		return classify(err)
	}

	var patch record.TaskPatch
	flags := cmd.Flags()
	switch {
	case flags.Changed("title") || flags.Changed("description"):
		if flags.Changed("title") {
			patch.Title = &taskEditTitle
		}
		if flags.Changed("description") {
			patch.Description = &taskEditDescription
		}
	case editor.IsInteractive():
		parsed, err := editor.EditTask(ctx, task, space.Slug)
		if err != nil {
			return failWith(record.Message(err), err)
		}
		patch = parsed.Patch(task)
	default:
		return exitWith(exitUsage, errors.New("pass --title or --description, or run interactively to use $EDITOR"))
	}
	if patch.Title == nil && patch.Description == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Task %s unchanged\n", task.ID)
		return nil
	}
	if err := patch.Validate(); err != nil {
		return failWith(record.Message(err), err)
	}

	if patch.Title != nil {
		title := record.NormalizeTitle(*patch.Title)
		others := slices.DeleteFunc(slices.Clone(tasks), func(t record.Task) bool { return t.ID == task.ID })
		if catalog.Exists(title, others) {
			return failWith(record.DuplicateMessage(title), record.DuplicateTitle(space.ID, title))
		}
	}

	p, err := live.Mutator().Update(ctx, task.ID,
		func(t record.Task) record.Task { return patch.Apply(t, time.Now()) },
		func(ctx context.Context) (record.Task, error) { return a.store.UpdateTask(ctx, task.ID, patch) },
	)
	if err != nil {
		return classify(err)
	}
	updated, err := p.Wait(ctx)
	if err != nil {
		if record.KindOf(err) == record.KindUniqueConstraint && patch.Title != nil {
			return failWith(record.DuplicateMessage(*patch.Title), err)
		}
		return failWith(record.Message(err), err)
	}

	return writeOutput(cmd.OutOrStdout(), updated, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Updated task %s: %s\n", updated.ID, updated.Title)
		return err
	})
}

func runTaskList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	space, err := requireSpace(a, cmd)
	if err != nil {
		return err
	}
	live, err := a.browse(cmd.Context(), space.ID, "", a.browseLimit())
	if err != nil {
		return err
	}
	defer live.Close()

	return writeTasks(cmd.OutOrStdout(), live.Snapshot().Tasks(), "No tasks.")
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	space, err := requireSpace(a, cmd)
	if err != nil {
		return err
	}
	task, err := resolveTask(cmd.Context(), a.store, space.ID, args[0])
	if err != nil {
		return classify(err)
	}

	return writeOutput(cmd.OutOrStdout(), task, func(w io.Writer) error {
		now := time.Now()
		fmt.Fprintf(w, "ID:      %s\n", task.ID)
		fmt.Fprintf(w, "Title:   %s\n", task.Title)
		fmt.Fprintf(w, "Space:   %s\n", space.Slug)
		fmt.Fprintf(w, "Created: %s\n", ui.FormatTimeAgo(task.CreatedAt, now))
		fmt.Fprintf(w, "Updated: %s\n", ui.FormatTimeAgo(task.UpdatedAt, now))
		if rendered := markdown.Render(terminalWidth(), 2, []byte(task.Description)); rendered != nil {
			fmt.Fprintf(w, "\nDescription:\n%s\n", rendered)
		}
		return nil
	})
}

func runTaskDelete(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	space, err := requireSpace(a, cmd)
	if err != nil {
		return err
	}
	live, err := a.browse(ctx, space.ID, "", catalog.BrowseLimit)
	if err != nil {
		return err
	}
	defer live.Close()

	task, err := resolveID(record.EntityTask, live.Snapshot().Tasks(), func(t record.Task) string { return t.ID }, args[0])
	if err != nil {
		return classify(err)
	}
	p, err := live.Mutator().Delete(ctx, task.ID, func(ctx context.Context) error {
		return a.store.DeleteTask(ctx, task.ID)
	})
	if err != nil {
		return classify(err)
	}
	if _, err := p.Wait(ctx); err != nil {
		return failWith(record.Message(err), err)
	}

	return writeOutput(cmd.OutOrStdout(), task, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Deleted task %s: %s\n", task.ID, task.Title)
		return err
	})
}

func runTaskPick(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return exitWith(exitUsage, errors.New("task pick needs a terminal"))
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	space, err := requireSpace(a, cmd)
	if err != nil {
		return err
	}
	c := picker.New(ctx, a.store, space.ID, picker.Options{Limit: a.pickerLimit(), Logger: a.logger})
	defer c.Stop()

	opts := pickertui.Options{Title: "Pick a task in " + space.Title}
	if len(args) > 0 {
		opts.Initial = args[0]
	}
	task, err := pickertui.Run(ctx, c, opts)
	if err != nil {
		if errors.Is(err, pickertui.ErrCanceled) {
			return exitWith(exitFailure, err)
		}
		return classify(err)
	}

	return writeOutput(cmd.OutOrStdout(), task, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, task.ID)
		return err
	})
}

func writeTasks(w io.Writer, tasks []record.Task, empty string) error {
	if tasks == nil {
		tasks = []record.Task{}
	}
	return writeOutput(w, tasks, func(w io.Writer) error {
		if len(tasks) == 0 {
			_, err := fmt.Fprintln(w, empty)
			return err
		}
		now := time.Now()
		lengths := prefixLengths(tasks, func(t record.Task) string { return t.ID })
		builder := ui.NewTableBuilder([]string{"ID", "TITLE", "DESCRIPTION", "UPDATED"}, len(tasks))
		for _, t := range tasks {
			builder.AddRow([]string{
				ui.HighlightID(t.ID, ui.PrefixLength(lengths, t.ID)),
				ui.TruncateTableCell(t.Title),
				ui.TruncateTableCell(firstLine(t.Description)),
				ui.FormatTimeAgo(t.UpdatedAt, now),
			})
		}
		_, err := io.WriteString(w, builder.String())
		return err
	})
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

func terminalWidth() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	return 80
}
