package ui

import (
	"strings"
	"testing"
)

func TestTruncateTableCellCountsRunes(t *testing.T) {
	value := strings.Repeat("a", tableCellMaxWidth-1) + "\u00e9"

	got := TruncateTableCell(value)

	if got != value {
		t.Fatalf("expected value to remain untruncated, got %q", got)
	}
}

func TestTruncateTableCellShortensLongValues(t *testing.T) {
	value := strings.Repeat("b", tableCellMaxWidth+10)

	got := TruncateTableCell(value)

	want := strings.Repeat("b", tableCellMaxWidth-len(tableCellEllipsis)) + tableCellEllipsis
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestTruncateTableCellNormalizesLineBreaks(t *testing.T) {
	value := "Hello\nWorld\r\nAgain\tTab"

	got := TruncateTableCell(value)

	if got != "Hello World Again Tab" {
		t.Fatalf("expected line breaks to normalize, got %q", got)
	}
}

func TestTruncateTableCellIgnoresANSICodes(t *testing.T) {
	value := "\x1b[1m\x1b[36m" + strings.Repeat("a", tableCellMaxWidth) + "\x1b[0m"

	got := TruncateTableCell(value)

	if got != value {
		t.Fatalf("expected value to remain untruncated, got %q", got)
	}
}

func TestFormatTableNormalizesLineBreaks(t *testing.T) {
	headers := []string{"COL"}
	rows := [][]string{{"Hello\nWorld\r\nAgain\tTab"}}

	got := FormatTable(headers, rows)

	expected := "COL\nHello World Again Tab\n"
	if got != expected {
		t.Fatalf("expected normalized table output, got %q", got)
	}
}

func TestTableBuilderAligns(t *testing.T) {
	builder := NewTableBuilder([]string{"ID", "DONE", "TASK"}, 2)
	builder.AddRow([]string{"ab", Checkbox(true), "Buy milk"})
	builder.AddRow([]string{"abcdef", Checkbox(false), "Ship report"})

	expected := "ID      DONE  TASK\n" +
		"ab      [x]   Buy milk\n" +
		"abcdef  [ ]   Ship report\n"
	if got := builder.String(); got != expected {
		t.Fatalf("unexpected table:\n%s\nexpected:\n%s", got, expected)
	}
}
