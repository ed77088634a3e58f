package pickertui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/amonks/spacetodo/memstore"
	"github.com/amonks/spacetodo/picker"
	"github.com/amonks/spacetodo/record/recordtest"
)

func newTestModel(t *testing.T, titles ...string) (model, *picker.Controller) {
	t.Helper()
	lipgloss.SetColorProfile(termenv.Ascii)

	store := memstore.New(memstore.Options{})
	fx := recordtest.Seed(t, store)
	for _, title := range titles {
		recordtest.MustCreateTask(t, store, fx.Space.ID, title)
	}
	c := picker.New(context.Background(), store, fx.Space.ID, picker.Options{})
	t.Cleanup(c.Stop)
	settle(t, c)

	m := newModel(context.Background(), c, Options{Title: "Pick a task"})
	m.setView(c.View())
	return m, c
}

func settle(t *testing.T, c *picker.Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Refresh(ctx).Wait(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
}

func press(t *testing.T, m model, msg tea.KeyMsg) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(model), cmd
}

func typeText(t *testing.T, m model, c *picker.Controller, text string) model {
	t.Helper()
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	settle(t, c)
	m.setView(c.View())
	return m
}

func TestViewListsSuggestions(t *testing.T) {
	m, _ := newTestModel(t, "Call mom", "Buy milk")
	out := m.View()

	for _, want := range []string{"Pick a task", "> Buy milk", "  Call mom", "esc cancel"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Buy milk") > strings.Index(out, "Call mom") {
		t.Errorf("suggestions out of order:\n%s", out)
	}
}

func TestTypingOffersCreate(t *testing.T) {
	m, c := newTestModel(t, "Buy milk")
	m = typeText(t, m, c, "Walk dog")

	out := m.View()
	if !strings.Contains(out, `+ Create "Walk dog"`) {
		t.Errorf("expected create offer:\n%s", out)
	}
	if strings.Contains(out, "Buy milk") {
		t.Errorf("unmatched suggestion shown:\n%s", out)
	}
}

func TestTabPicksHighlighted(t *testing.T) {
	m, _ := newTestModel(t, "Buy milk", "Call mom")
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyTab})

	if m.chosen == nil || m.chosen.Title != "Call mom" {
		t.Fatalf("chosen = %+v, want Call mom", m.chosen)
	}
	if cmd == nil {
		t.Fatal("expected quit command")
	}
}

func TestEnterCreatesTask(t *testing.T) {
	m, c := newTestModel(t, "Buy milk")
	m = typeText(t, m, c, "Walk dog")

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected a command waiting for the create")
	}
	msg := cmd()
	settled, ok := msg.(settledMsg)
	if !ok {
		t.Fatalf("got %T, want settledMsg", msg)
	}
	if settled.err != nil {
		t.Fatalf("create: %v", settled.err)
	}

	next, _ := m.Update(settled)
	m = next.(model)
	if m.chosen == nil || m.chosen.Title != "Walk dog" {
		t.Fatalf("chosen = %+v, want Walk dog", m.chosen)
	}
}

func TestEnterWithBlankTextPicksFirst(t *testing.T) {
	m, _ := newTestModel(t, "Buy milk", "Call mom")
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if m.chosen == nil || m.chosen.Title != "Buy milk" {
		t.Fatalf("chosen = %+v, want Buy milk", m.chosen)
	}
}

func TestCreateDuplicateShowsMessage(t *testing.T) {
	m, c := newTestModel(t, "Buy milk")
	m = typeText(t, m, c, "Buy milk")

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlN})
	if m.chosen != nil {
		t.Fatalf("duplicate create chose %+v", m.chosen)
	}
	if out := m.View(); !strings.Contains(out, "already exists") {
		t.Errorf("expected duplicate message:\n%s", out)
	}
}

func TestEscCancels(t *testing.T) {
	m, _ := newTestModel(t, "Buy milk")
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.chosen != nil {
		t.Fatalf("chosen = %+v after esc", m.chosen)
	}
	if cmd == nil {
		t.Fatal("expected quit command")
	}
}
