package editor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/BurntSushi/toml"

	"github.com/amonks/spacetodo/record"
)

// TaskData is what the editor buffer is rendered from.
type TaskData struct {
	ID          string
	Space       string
	Title       string
	Description string
}

// DataFromTask returns the buffer contents for editing t in space.
func DataFromTask(t record.Task, space string) TaskData {
	return TaskData{
		ID:          t.ID,
		Space:       space,
		Title:       t.Title,
		Description: t.Description,
	}
}

var taskTemplate = template.Must(template.New("task").Parse(`# task {{ .ID }} in {{ .Space }}
title = {{ printf "%q" .Title }}
---
{{ .Description }}
`))

// RenderTaskTOML renders data as TOML frontmatter followed by the
// markdown description.
func RenderTaskTOML(data TaskData) (string, error) {
	var buf bytes.Buffer
	if err := taskTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return buf.String(), nil
}

// ParsedTask is the edited title and description.
type ParsedTask struct {
	Title       string `toml:"title"`
	Description string `toml:"-"`
}

// ParseTaskTOML parses an edited buffer. The title must not be blank.
func ParseTaskTOML(content string) (*ParsedTask, error) {
	frontmatter, body := splitFrontmatter(content)

	var parsed ParsedTask
	meta, err := toml.Decode(frontmatter, &parsed)
	if err != nil {
		return nil, fmt.Errorf("parse TOML: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parse TOML: unknown key %s", undecoded[0])
	}
	parsed.Title = record.NormalizeTitle(parsed.Title)
	parsed.Description = strings.TrimSpace(body)

	if err := record.ValidateTitle(parsed.Title); err != nil {
		return nil, record.Invalid(record.EntityTask, err)
	}
	return &parsed, nil
}

// Patch returns the update that turns t into the parsed task. Unchanged
// fields are left nil; a patch with no fields set means nothing changed.
func (p *ParsedTask) Patch(t record.Task) record.TaskPatch {
	var patch record.TaskPatch
	if p.Title != t.Title {
		patch.Title = &p.Title
	}
	if p.Description != t.Description {
		patch.Description = &p.Description
	}
	return patch
}

func splitFrontmatter(content string) (string, string) {
	content = strings.TrimLeft(content, "\n")
	if content == "" {
		return "", ""
	}

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == "---" {
			return strings.Join(lines[:i], "\n"), strings.Join(lines[i+1:], "\n")
		}
	}
	return content, ""
}

// EditTask opens the editor on t and returns the parsed result.
func EditTask(ctx context.Context, t record.Task, space string) (*ParsedTask, error) {
	content, err := RenderTaskTOML(DataFromTask(t, space))
	if err != nil {
		return nil, err
	}

	tmpfile, err := os.CreateTemp("", "spt-task-*.md")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpfile.Name()
	defer os.Remove(tmpPath)

	if _, err := tmpfile.WriteString(content); err != nil {
		tmpfile.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpfile.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	if err := Edit(ctx, tmpPath); err != nil {
		return nil, err
	}

	edited, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("read edited file: %w", err)
	}
	return ParseTaskTOML(string(edited))
}
