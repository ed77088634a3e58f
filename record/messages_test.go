package record

import (
	"errors"
	"testing"
)

func TestMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"none", nil, ""},
		{"empty title", Invalid(EntityTask, ErrEmptyTitle), MessageEmptyTitle},
		{"other validation", Invalid(EntityUser, errors.New("email failed")), MessageInvalidInput},
		{"duplicate", DuplicateTitle("s1", "x"), MessageDuplicate},
		{"restrict", InUse("t1", 1), MessageTaskInUse},
		{"not found", NotFound(EntityTask, "t1"), MessageRetry},
		{"transient", errors.New("connection reset"), MessageRetry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Message(tt.err); got != tt.want {
				t.Fatalf("Message() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDuplicateMessage(t *testing.T) {
	want := `A task named "Buy milk" already exists in this space.`
	if got := DuplicateMessage("  Buy milk "); got != want {
		t.Fatalf("DuplicateMessage = %q, want %q", got, want)
	}
}
