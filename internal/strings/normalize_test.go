package strings

import "testing"

func TestNormalizeWhitespace(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "whitespace only", input: " \n\t ", want: ""},
		{name: "single token", input: "milk", want: "milk"},
		{name: "collapses spaces", input: "buy   oat    milk", want: "buy oat milk"},
		{name: "collapses newlines", input: "buy\n\n oat\tmilk", want: "buy oat milk"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeWhitespace(tc.input)
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestNormalizeNewlines(t *testing.T) {
	got := NormalizeNewlines("a\r\nb\rc\n")
	if got != "a\nb\nc\n" {
		t.Fatalf("expected LF-only output, got %q", got)
	}
}

func TestTrimTrailingNewlines(t *testing.T) {
	got := TrimTrailingNewlines("body\r\n\n")
	if got != "body" {
		t.Fatalf("expected %q, got %q", "body", got)
	}
}

func TestContainsFold(t *testing.T) {
	cases := []struct {
		name   string
		value  string
		substr string
		want   bool
	}{
		{name: "empty substring", value: "Buy milk", substr: "", want: true},
		{name: "same case", value: "Buy milk", substr: "milk", want: true},
		{name: "different case", value: "Buy milk", substr: "BUY M", want: true},
		{name: "unicode fold", value: "Réserver l'école", substr: "L'ÉCOLE", want: true},
		{name: "missing", value: "Buy milk", substr: "bread", want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ContainsFold(tc.value, tc.substr); got != tc.want {
				t.Fatalf("ContainsFold(%q, %q) = %v, want %v", tc.value, tc.substr, got, tc.want)
			}
		})
	}
}
