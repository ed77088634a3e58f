package markdown

import (
	"strings"
	"testing"
)

type panicRenderer struct{}

func (panicRenderer) Render(string) (string, error) {
	panic("boom")
}

func TestRender_RecoversFromRendererPanic(t *testing.T) {
	const renderWidth = 20

	rendererMu.Lock()
	prev, hadPrev := renderers[renderWidth]
	renderers[renderWidth] = panicRenderer{}
	rendererMu.Unlock()

	defer func() {
		rendererMu.Lock()
		if hadPrev {
			renderers[renderWidth] = prev
		} else {
			delete(renderers, renderWidth)
		}
		rendererMu.Unlock()
	}()

	out := Render(renderWidth, 0, []byte("hello\n"))
	if string(out) != "hello" {
		t.Fatalf("expected fallback to original markdown, got %q", string(out))
	}
}

func TestRender_Blank(t *testing.T) {
	for _, input := range []string{"", "\n\n", "  \r\n"} {
		if out := Render(80, 2, []byte(input)); out != nil {
			t.Errorf("Render(%q) = %q, expected nil", input, out)
		}
	}
}

func TestRender_Indents(t *testing.T) {
	out := string(Render(40, 4, []byte("Buy **oat** milk\n\nfrom the corner shop")))
	if !strings.Contains(out, "oat") || !strings.Contains(out, "corner shop") {
		t.Fatalf("rendered text lost content: %q", out)
	}
	for _, line := range strings.Split(out, "\n") {
		if !strings.HasPrefix(line, "    ") {
			t.Fatalf("line %q is not indented", line)
		}
	}
}
