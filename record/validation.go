package record

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// MaxTitleLength is the maximum number of characters in a Task, List, or
// Space title.
const MaxTitleLength = 500

// MaxDescriptionLength is the maximum number of characters in a Task description.
const MaxDescriptionLength = 10000

var (
	// ErrEmptyTitle is returned when a title is empty after trimming.
	ErrEmptyTitle = errors.New("title cannot be empty")

	// ErrTitleTooLong is returned when a title exceeds MaxTitleLength.
	ErrTitleTooLong = errors.New("title exceeds maximum length")

	// ErrDescriptionTooLong is returned when a description exceeds MaxDescriptionLength.
	ErrDescriptionTooLong = errors.New("description exceeds maximum length")

	// ErrMissingTask is returned when a todo is created without a task.
	ErrMissingTask = errors.New("todo requires a task")

	// ErrCrossSpace is returned when a todo would reference a task from
	// another space than its list.
	ErrCrossSpace = errors.New("task belongs to a different space than the list")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// NormalizeTitle trims surrounding whitespace. Every comparison of titles,
// client side or store side, happens on normalized titles.
func NormalizeTitle(title string) string {
	return strings.TrimSpace(title)
}

// ValidateTitle checks that title is non-empty after trimming and not too long.
func ValidateTitle(title string) error {
	title = NormalizeTitle(title)
	if title == "" {
		return ErrEmptyTitle
	}
	if n := utf8.RuneCountInString(title); n > MaxTitleLength {
		return fmt.Errorf("%w: %d > %d", ErrTitleTooLong, n, MaxTitleLength)
	}
	return nil
}

// checkFields runs the struct tag validations on fields and converts the
// first failure into a KindValidation error.
func checkFields(entity Entity, fields any) error {
	err := validate.Struct(fields)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return Invalid(entity, err)
	}
	return Invalid(entity, fieldError(fieldErrs[0]))
}

func fieldError(fe validator.FieldError) error {
	field := fe.Field()
	switch {
	case field == "Title" && fe.Tag() == "required":
		return ErrEmptyTitle
	case field == "Title" && fe.Tag() == "max":
		return fmt.Errorf("%w: %d > %s", ErrTitleTooLong, utf8.RuneCountInString(fmt.Sprint(fe.Value())), fe.Param())
	case field == "Description" && fe.Tag() == "max":
		return fmt.Errorf("%w: %d > %s", ErrDescriptionTooLong, utf8.RuneCountInString(fmt.Sprint(fe.Value())), fe.Param())
	case field == "TaskID" && fe.Tag() == "required":
		return ErrMissingTask
	case fe.Tag() == "required":
		return fmt.Errorf("%s is required", strings.ToLower(field))
	default:
		return fmt.Errorf("%s failed %q validation", strings.ToLower(field), fe.Tag())
	}
}
