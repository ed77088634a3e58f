package record

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies store and validation failures.
type ErrorKind int

const (
	// KindNone is the kind of a nil error.
	KindNone ErrorKind = iota

	// KindValidation marks input rejected before it reached the store,
	// or rejected by the store for the same reasons.
	KindValidation

	// KindUniqueConstraint marks a duplicate Task title within a Space.
	KindUniqueConstraint

	// KindReferentialIntegrity marks a delete refused because dependents exist.
	KindReferentialIntegrity

	// KindNotFound marks an entity that vanished between read and write.
	KindNotFound

	// KindTransient covers everything else, including connectivity
	// failures and cancelled contexts.
	KindTransient
)

var (
	// ErrValidation matches errors of KindValidation.
	ErrValidation = errors.New("validation failed")

	// ErrUniqueConstraint matches errors of KindUniqueConstraint.
	ErrUniqueConstraint = errors.New("unique constraint violation")

	// ErrReferentialIntegrity matches errors of KindReferentialIntegrity.
	ErrReferentialIntegrity = errors.New("referential integrity violation")

	// ErrNotFound matches errors of KindNotFound.
	ErrNotFound = errors.New("not found")

	// ErrTransient matches errors of KindTransient.
	ErrTransient = errors.New("transient failure")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindUniqueConstraint:
		return ErrUniqueConstraint
	case KindReferentialIntegrity:
		return ErrReferentialIntegrity
	case KindNotFound:
		return ErrNotFound
	case KindTransient:
		return ErrTransient
	default:
		return nil
	}
}

// String returns a short description of the kind.
func (k ErrorKind) String() string {
	if sentinel := k.sentinel(); sentinel != nil {
		return sentinel.Error()
	}
	return "none"
}

// Error is a classified failure. Every Store method returns *Error values
// (possibly wrapped) so callers classify by kind, never by message text.
type Error struct {
	Kind   ErrorKind
	Entity Entity
	ID     string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Entity != "" {
		b.WriteString(string(e.Entity))
		if e.ID != "" {
			b.WriteString(" ")
			b.WriteString(e.ID)
		}
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the kind sentinels.
func (e *Error) Is(target error) bool {
	sentinel := e.Kind.sentinel()
	return sentinel != nil && target == sentinel
}

// KindOf classifies err. Unclassified errors are KindTransient.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var recErr *Error
	if errors.As(err, &recErr) && recErr.Kind != KindNone {
		return recErr.Kind
	}
	for _, kind := range []ErrorKind{KindValidation, KindUniqueConstraint, KindReferentialIntegrity, KindNotFound} {
		if errors.Is(err, kind.sentinel()) {
			return kind
		}
	}
	return KindTransient
}

// Invalid returns a KindValidation error.
func Invalid(entity Entity, err error) error {
	return &Error{Kind: KindValidation, Entity: entity, Err: err}
}

// NotFound returns a KindNotFound error for the given record.
func NotFound(entity Entity, id string) error {
	return &Error{Kind: KindNotFound, Entity: entity, ID: id}
}

// DuplicateTitle returns a KindUniqueConstraint error for a Task title.
func DuplicateTitle(spaceID, title string) error {
	return &Error{
		Kind:   KindUniqueConstraint,
		Entity: EntityTask,
		Err:    fmt.Errorf("title %q already exists in space %s", title, spaceID),
	}
}

// DuplicateSlug returns a KindUniqueConstraint error for a Space slug.
func DuplicateSlug(slug string) error {
	return &Error{
		Kind:   KindUniqueConstraint,
		Entity: EntitySpace,
		Err:    fmt.Errorf("slug %q already exists", slug),
	}
}

// InUse returns a KindReferentialIntegrity error for a Task still
// referenced by count Todos.
func InUse(id string, count int) error {
	return &Error{
		Kind:   KindReferentialIntegrity,
		Entity: EntityTask,
		ID:     id,
		Err:    fmt.Errorf("referenced by %d todo(s)", count),
	}
}

// Transient wraps an unclassified backend failure.
func Transient(entity Entity, err error) error {
	if err == nil {
		return nil
	}
	var recErr *Error
	if errors.As(err, &recErr) {
		return err
	}
	return &Error{Kind: KindTransient, Entity: entity, Err: err}
}
