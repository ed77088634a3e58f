package record

import (
	"errors"
	"fmt"
)

// User-facing failure messages.
const (
	MessageEmptyTitle   = "Title cannot be empty."
	MessageDuplicate    = "A task with that title already exists in this space."
	MessageTaskInUse    = "Cannot delete: this task is used by an existing todo."
	MessageRetry        = "Something went wrong saving your change. Please try again."
	MessageInvalidInput = "That input is not valid."
)

// DuplicateMessage returns the message shown when a create of title
// lost a race with another writer.
func DuplicateMessage(title string) string {
	return fmt.Sprintf("A task named %q already exists in this space.", NormalizeTitle(title))
}

// Message maps a classified failure to user-facing text. Not-found and
// transient failures share a generic retry message.
func Message(err error) string {
	switch KindOf(err) {
	case KindNone:
		return ""
	case KindValidation:
		if errors.Is(err, ErrEmptyTitle) {
			return MessageEmptyTitle
		}
		return MessageInvalidInput
	case KindUniqueConstraint:
		return MessageDuplicate
	case KindReferentialIntegrity:
		return MessageTaskInUse
	default:
		return MessageRetry
	}
}
