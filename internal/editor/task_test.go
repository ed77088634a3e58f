package editor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/amonks/spacetodo/record"
)

func TestRenderTaskTOML(t *testing.T) {
	task := record.Task{ID: "abc12345", Title: `Say "hi"`, Description: "Wave.\n\nThen *smile*."}
	content, err := RenderTaskTOML(DataFromTask(task, "home"))
	if err != nil {
		t.Fatalf("RenderTaskTOML: %v", err)
	}

	for _, want := range []string{"# task abc12345 in home", `title = "Say \"hi\""`, "---", "Then *smile*."} {
		if !strings.Contains(content, want) {
			t.Errorf("rendered buffer missing %q:\n%s", want, content)
		}
	}
}

func TestRenderThenParseKeepsTask(t *testing.T) {
	task := record.Task{ID: "abc12345", Title: "Buy milk", Description: "Two litres.\n\n- oat\n- soy"}
	content, err := RenderTaskTOML(DataFromTask(task, "home"))
	if err != nil {
		t.Fatalf("RenderTaskTOML: %v", err)
	}
	parsed, err := ParseTaskTOML(content)
	if err != nil {
		t.Fatalf("ParseTaskTOML: %v", err)
	}
	if parsed.Title != task.Title || parsed.Description != task.Description {
		t.Errorf("parsed %+v, want title %q description %q", parsed, task.Title, task.Description)
	}
	if patch := parsed.Patch(task); patch.Title != nil || patch.Description != nil {
		t.Errorf("unchanged task produced patch %+v", patch)
	}
}

func TestParseTaskTOML(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantTitle string
		wantDesc  string
		wantErr   string
	}{
		{
			name:      "trims title and body",
			content:   "title = \"  Call mom  \"\n---\n\n  Sunday.  \n",
			wantTitle: "Call mom",
			wantDesc:  "Sunday.",
		},
		{
			name:      "no separator",
			content:   "title = \"Call mom\"\n",
			wantTitle: "Call mom",
		},
		{
			name:    "blank title",
			content: "title = \"   \"\n---\nbody\n",
			wantErr: "title cannot be empty",
		},
		{
			name:    "unknown key",
			content: "title = \"x\"\npriority = 2\n---\n",
			wantErr: "unknown key priority",
		},
		{
			name:    "bad toml",
			content: "title = \n---\n",
			wantErr: "parse TOML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := ParseTaskTOML(tt.content)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("got err %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTaskTOML: %v", err)
			}
			if parsed.Title != tt.wantTitle || parsed.Description != tt.wantDesc {
				t.Errorf("got %+v, want title %q description %q", parsed, tt.wantTitle, tt.wantDesc)
			}
		})
	}
}

func TestParseBlankTitleIsValidation(t *testing.T) {
	_, err := ParseTaskTOML("title = \"\"\n")
	if record.KindOf(err) != record.KindValidation {
		t.Fatalf("kind = %v, want validation", record.KindOf(err))
	}
	if record.Message(err) != record.MessageEmptyTitle {
		t.Errorf("message = %q", record.Message(err))
	}
}

func TestPatchOnlyChangedFields(t *testing.T) {
	task := record.Task{Title: "Buy milk", Description: "old"}
	patch := (&ParsedTask{Title: "Buy milk", Description: "new"}).Patch(task)
	if patch.Title != nil {
		t.Errorf("title patched to %q", *patch.Title)
	}
	if patch.Description == nil || *patch.Description != "new" {
		t.Errorf("description patch = %v", patch.Description)
	}
}

func TestEditTaskUsesEditor(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "fake-editor")
	body := "#!/bin/sh\nprintf 'title = \"Buy oat milk\"\\n---\\nFrom the corner shop.\\n' > \"$1\"\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write editor: %v", err)
	}
	t.Setenv("VISUAL", "")
	t.Setenv("EDITOR", script)

	parsed, err := EditTask(t.Context(), record.Task{ID: "abc", Title: "Buy milk"}, "home")
	if err != nil {
		t.Fatalf("EditTask: %v", err)
	}
	if parsed.Title != "Buy oat milk" || parsed.Description != "From the corner shop." {
		t.Errorf("parsed %+v", parsed)
	}
}

func TestEditTaskEditorArgsAndFailure(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "fake-editor")
	body := "#!/bin/sh\n[ \"$1\" = --wait ] || exit 9\nexit 3\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write editor: %v", err)
	}
	t.Setenv("VISUAL", script+" --wait")
	t.Setenv("EDITOR", "does-not-exist")

	_, err := EditTask(t.Context(), record.Task{ID: "abc", Title: "Buy milk"}, "home")
	if err == nil || !strings.Contains(err.Error(), "exited with status 3") {
		t.Fatalf("EditTask error = %v, want exit status 3", err)
	}
}
