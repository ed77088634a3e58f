package main

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/amonks/spacetodo/record"
)

func TestOutputFormatSet(t *testing.T) {
	tests := []struct {
		in      string
		want    outputFormat
		wantErr bool
	}{
		{in: "table", want: outputTable},
		{in: "JSON", want: outputJSON},
		{in: " yaml ", want: outputYAML},
		{in: "xml", wantErr: true},
	}

	for _, tt := range tests {
		var f outputFormat
		err := f.Set(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Set(%q) succeeded, want error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("Set(%q): %v", tt.in, err)
			continue
		}
		if f != tt.want {
			t.Errorf("Set(%q) = %q, want %q", tt.in, f, tt.want)
		}
	}
}

func TestWriteOutputYAML(t *testing.T) {
	saved := flagOutput
	t.Cleanup(func() { flagOutput = saved })
	flagOutput = outputYAML

	var buf bytes.Buffer
	task := record.Task{ID: "abc", SpaceID: "s1", Title: "Buy milk"}
	err := writeOutput(&buf, task, func(io.Writer) error {
		t.Fatal("table writer called for yaml output")
		return nil
	})
	if err != nil {
		t.Fatalf("writeOutput: %v", err)
	}
	for _, want := range []string{"id: abc", "space_id: s1", "title: Buy milk"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("yaml output missing %q:\n%s", want, buf.String())
		}
	}
}
