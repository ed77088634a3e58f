// Package pickertui is a terminal search box for choosing or creating a
// task with a picker.Controller.
package pickertui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"

	"github.com/amonks/spacetodo/optimistic"
	"github.com/amonks/spacetodo/picker"
	"github.com/amonks/spacetodo/record"
)

// ErrCanceled is returned by Run when the user leaves without choosing.
var ErrCanceled = errors.New("canceled")

// Options configures Run.
type Options struct {
	// Title is shown above the search box.
	Title string

	// Initial is typed into the box on start.
	Initial string
}

// Run shows the search box until the user picks or creates a task, and
// returns that task.
func Run(ctx context.Context, c *picker.Controller, opts Options) (record.Task, error) {
	m := newModel(ctx, c, opts)
	stop := c.Subscribe(func(v picker.View) {
		select {
		case m.views <- v:
		default:
			// The model reads the controller directly when it catches up.
			select {
			case <-m.views:
			default:
			}
			select {
			case m.views <- v:
			default:
			}
		}
	})
	defer stop()

	program := tea.NewProgram(m, tea.WithContext(ctx))
	final, err := program.Run()
	if err != nil {
		return record.Task{}, err
	}
	result := final.(model)
	if result.chosen == nil {
		return record.Task{}, ErrCanceled
	}
	return *result.chosen, nil
}

type viewMsg picker.View

type settledMsg struct {
	task record.Task
	err  error
}

type model struct {
	ctx        context.Context
	controller *picker.Controller
	title      string
	views      chan picker.View

	input   textinput.Model
	spinner spinner.Model
	view    picker.View
	cursor  int
	width   int
	chosen  *record.Task
}

func newModel(ctx context.Context, c *picker.Controller, opts Options) model {
	input := textinput.New()
	input.Placeholder = "Search or create a task"
	input.Prompt = "> "
	input.Focus()
	if opts.Initial != "" {
		input.SetValue(opts.Initial)
		c.Type(ctx, opts.Initial)
	}

	s := spinner.New()
	s.Spinner = spinner.Line

	return model{
		ctx:        ctx,
		controller: c,
		title:      opts.Title,
		views:      make(chan picker.View, 1),
		input:      input,
		spinner:    s,
		view:       c.View(),
		width:      80,
	}
}

func (m model) waitForView() tea.Cmd {
	views := m.views
	return func() tea.Msg {
		return viewMsg(<-views)
	}
}

func waitForSettle(ctx context.Context, p *optimistic.Pending[record.Task]) tea.Cmd {
	return func() tea.Msg {
		task, err := p.Wait(ctx)
		return settledMsg{task: task, err: err}
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.waitForView())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case viewMsg:
		m.setView(picker.View(msg))
		return m, m.waitForView()

	case settledMsg:
		if msg.err != nil {
			m.setView(m.controller.View())
			return m, nil
		}
		m.chosen = &msg.task
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+c":
		return m, tea.Quit

	case "up", "ctrl+p":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case "down", "ctrl+j":
		if m.cursor < len(m.view.Suggestions)-1 {
			m.cursor++
		}
		return m, nil

	case "tab":
		if m.cursor >= len(m.view.Suggestions) {
			return m, nil
		}
		task, err := m.controller.Pick(m.view.Suggestions[m.cursor].Key)
		if err != nil {
			return m, nil
		}
		m.chosen = &task
		return m, tea.Quit

	case "ctrl+n":
		p, err := m.controller.Create(m.ctx)
		m.setView(m.controller.View())
		if err != nil {
			return m, nil
		}
		return m, waitForSettle(m.ctx, p)

	case "enter":
		p, err := m.controller.Accept(m.ctx)
		m.setView(m.controller.View())
		if err != nil {
			return m, nil
		}
		if p != nil {
			return m, waitForSettle(m.ctx, p)
		}
		if task, ok := m.controller.Selected(); ok {
			m.chosen = &task
			return m, tea.Quit
		}
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		m.controller.Type(m.ctx, after)
		m.cursor = 0
	}
	return m, cmd
}

func (m *model) setView(v picker.View) {
	if v.Version < m.view.Version {
		return
	}
	m.view = v
	if m.cursor >= len(v.Suggestions) {
		m.cursor = max(len(v.Suggestions)-1, 0)
	}
}

func (m model) View() string {
	var b strings.Builder
	if m.title != "" {
		b.WriteString(titleStyle.Render(m.title))
		b.WriteString("\n")
	}
	b.WriteString(m.input.View())
	b.WriteString("\n")

	for i, e := range m.view.Suggestions {
		b.WriteString(m.suggestionLine(i, e))
		b.WriteString("\n")
	}
	if m.view.CanCreate {
		line := fmt.Sprintf("+ Create %q (ctrl+n)", strings.TrimSpace(m.view.Text))
		b.WriteString(createStyle.Render(truncate.StringWithTail(line, uint(max(m.width, 10)), "...")))
		b.WriteString("\n")
	}

	switch {
	case m.view.Message != "":
		b.WriteString(statusErrorStyle.Render(wordwrap.String(m.view.Message, max(m.width, 10))))
		b.WriteString("\n")
	case m.view.Creating:
		b.WriteString(m.spinner.View() + " saving...\n")
	case m.view.Loading && len(m.view.Suggestions) == 0:
		b.WriteString(m.spinner.View() + " searching...\n")
	}

	b.WriteString(helpStyle.Render("enter accept  tab pick  ctrl+n create  esc cancel"))
	return b.String()
}

func (m model) suggestionLine(i int, e optimistic.Entry[record.Task]) string {
	prefix := "  "
	if i == m.cursor {
		prefix = cursorStyle.Render("> ")
	}
	marker := ""
	if e.Provisional {
		marker = m.spinner.View() + " "
	}

	line := e.Value.Title
	if desc := firstLine(e.Value.Description); desc != "" {
		line += " - " + descriptionStyle.Render(desc)
	}
	width := uint(max(m.width-2-len(marker), 10))
	return prefix + marker + truncate.StringWithTail(line, width, "...")
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
