package record

import (
	"strings"
	"time"
)

// SpaceFields are the inputs for creating a Space.
type SpaceFields struct {
	Slug  string `validate:"required,max=64,excludesall=/"`
	Title string `validate:"required,max=500"`
}

// Normalize trims every field.
func (f SpaceFields) Normalize() SpaceFields {
	f.Slug = strings.TrimSpace(f.Slug)
	f.Title = NormalizeTitle(f.Title)
	return f
}

// Validate normalizes and checks the fields.
func (f SpaceFields) Validate() error {
	return checkFields(EntitySpace, f.Normalize())
}

// ListFields are the inputs for creating a List.
type ListFields struct {
	SpaceID string `validate:"required"`
	Title   string `validate:"required,max=500"`
}

// Normalize trims every field.
func (f ListFields) Normalize() ListFields {
	f.SpaceID = strings.TrimSpace(f.SpaceID)
	f.Title = NormalizeTitle(f.Title)
	return f
}

// Validate normalizes and checks the fields.
func (f ListFields) Validate() error {
	return checkFields(EntityList, f.Normalize())
}

// UserFields are the inputs for creating a User.
type UserFields struct {
	Name  string `validate:"required,max=200"`
	Email string `validate:"omitempty,email"`
}

// Normalize trims every field.
func (f UserFields) Normalize() UserFields {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	return f
}

// Validate normalizes and checks the fields.
func (f UserFields) Validate() error {
	return checkFields(EntityUser, f.Normalize())
}

// TaskFields are the inputs for creating a Task.
type TaskFields struct {
	SpaceID     string `validate:"required"`
	Title       string `validate:"required,max=500"`
	Description string `validate:"max=10000"`
}

// Normalize trims the title and description.
func (f TaskFields) Normalize() TaskFields {
	f.SpaceID = strings.TrimSpace(f.SpaceID)
	f.Title = NormalizeTitle(f.Title)
	f.Description = strings.TrimSpace(f.Description)
	return f
}

// Validate normalizes and checks the fields.
func (f TaskFields) Validate() error {
	return checkFields(EntityTask, f.Normalize())
}

// Draft builds the Task these fields describe.
func (f TaskFields) Draft(id string, now time.Time) Task {
	f = f.Normalize()
	return Task{
		ID:          id,
		SpaceID:     f.SpaceID,
		Title:       f.Title,
		Description: f.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// TaskPatch describes an update to a Task. Nil fields are left unchanged.
// A Task's Space never changes.
type TaskPatch struct {
	Title       *string
	Description *string
}

// Validate checks the fields that are set.
func (p TaskPatch) Validate() error {
	if p.Title != nil {
		if err := ValidateTitle(*p.Title); err != nil {
			return Invalid(EntityTask, err)
		}
	}
	if p.Description != nil && len([]rune(strings.TrimSpace(*p.Description))) > MaxDescriptionLength {
		return Invalid(EntityTask, ErrDescriptionTooLong)
	}
	return nil
}

// Apply returns t with the patch applied.
func (p TaskPatch) Apply(t Task, now time.Time) Task {
	if p.Title != nil {
		t.Title = NormalizeTitle(*p.Title)
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	t.UpdatedAt = now
	return t
}

// TodoFields are the inputs for creating a Todo.
type TodoFields struct {
	ListID  string `validate:"required"`
	TaskID  string `validate:"required"`
	OwnerID string `validate:"required"`
}

// Normalize trims every field.
func (f TodoFields) Normalize() TodoFields {
	f.ListID = strings.TrimSpace(f.ListID)
	f.TaskID = strings.TrimSpace(f.TaskID)
	f.OwnerID = strings.TrimSpace(f.OwnerID)
	return f
}

// Validate normalizes and checks the fields.
func (f TodoFields) Validate() error {
	return checkFields(EntityTodo, f.Normalize())
}

// Draft builds the incomplete Todo these fields describe.
func (f TodoFields) Draft(id string, now time.Time) Todo {
	f = f.Normalize()
	return Todo{
		ID:        id,
		ListID:    f.ListID,
		TaskID:    f.TaskID,
		OwnerID:   f.OwnerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TodoPatch describes an update to a Todo. Nil fields are left unchanged.
// A Todo's List and owner never change.
type TodoPatch struct {
	TaskID *string

	// Completed sets or clears the completion timestamp. When set to true,
	// CompletedAt is used if non-zero, otherwise the update time.
	Completed   *bool
	CompletedAt time.Time
}

// Validate checks the fields that are set.
func (p TodoPatch) Validate() error {
	if p.TaskID != nil && strings.TrimSpace(*p.TaskID) == "" {
		return Invalid(EntityTodo, ErrMissingTask)
	}
	return nil
}

// Apply returns t with the patch applied.
func (p TodoPatch) Apply(t Todo, now time.Time) Todo {
	if p.TaskID != nil {
		t.TaskID = strings.TrimSpace(*p.TaskID)
	}
	if p.Completed != nil {
		if *p.Completed {
			at := p.CompletedAt
			if at.IsZero() {
				at = now
			}
			t.CompletedAt = &at
		} else {
			t.CompletedAt = nil
		}
	}
	t.UpdatedAt = now
	return t
}
