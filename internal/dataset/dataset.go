// Package dataset implements the record.Store rules over plain slices.
// Callers provide the locking and persistence.
package dataset

import (
	"slices"
	"strings"
	"time"

	"github.com/amonks/spacetodo/internal/ids"
	"github.com/amonks/spacetodo/record"
)

// Rules are the store-level settings a Set is mutated under.
type Rules struct {
	Collation record.Collation
	Now       func() time.Time
}

func (r Rules) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

// Set holds every record of a store.
type Set struct {
	Spaces []record.Space
	Lists  []record.List
	Users  []record.User
	Tasks  []record.Task
	Todos  []record.Todo
}

func find[T any](items []T, match func(T) bool) int {
	return slices.IndexFunc(items, match)
}

// SpaceBySlug returns the space with slug.
func (s *Set) SpaceBySlug(slug string) (record.Space, error) {
	slug = strings.TrimSpace(slug)
	i := find(s.Spaces, func(sp record.Space) bool { return sp.Slug == slug })
	if i < 0 {
		return record.Space{}, record.NotFound(record.EntitySpace, slug)
	}
	return s.Spaces[i], nil
}

func (s *Set) hasSpace(id string) bool {
	return find(s.Spaces, func(sp record.Space) bool { return sp.ID == id }) >= 0
}

// ListByID returns the list with id.
func (s *Set) ListByID(id string) (record.List, error) {
	i := find(s.Lists, func(l record.List) bool { return l.ID == id })
	if i < 0 {
		return record.List{}, record.NotFound(record.EntityList, id)
	}
	return s.Lists[i], nil
}

// ListsIn returns the lists of a space ordered by title.
func (s *Set) ListsIn(spaceID string) []record.List {
	var out []record.List
	for _, l := range s.Lists {
		if l.SpaceID == spaceID {
			out = append(out, l)
		}
	}
	slices.SortFunc(out, func(a, b record.List) int { return strings.Compare(a.Title, b.Title) })
	return out
}

func (s *Set) task(id string) (int, error) {
	i := find(s.Tasks, func(t record.Task) bool { return t.ID == id })
	if i < 0 {
		return -1, record.NotFound(record.EntityTask, id)
	}
	return i, nil
}

func (s *Set) todo(id string) (int, error) {
	i := find(s.Todos, func(t record.Todo) bool { return t.ID == id })
	if i < 0 {
		return -1, record.NotFound(record.EntityTodo, id)
	}
	return i, nil
}

// CreateSpace adds a space with a unique slug.
func (s *Set) CreateSpace(r Rules, fields record.SpaceFields) (record.Space, error) {
	if err := fields.Validate(); err != nil {
		return record.Space{}, err
	}
	fields = fields.Normalize()
	if _, err := s.SpaceBySlug(fields.Slug); err == nil {
		return record.Space{}, record.DuplicateSlug(fields.Slug)
	}
	now := r.now()
	space := record.Space{ID: ids.New(now), Slug: fields.Slug, Title: fields.Title, CreatedAt: now}
	s.Spaces = append(s.Spaces, space)
	return space, nil
}

// CreateList adds a list to an existing space.
func (s *Set) CreateList(r Rules, fields record.ListFields) (record.List, error) {
	if err := fields.Validate(); err != nil {
		return record.List{}, err
	}
	fields = fields.Normalize()
	if !s.hasSpace(fields.SpaceID) {
		return record.List{}, record.NotFound(record.EntitySpace, fields.SpaceID)
	}
	now := r.now()
	list := record.List{ID: ids.New(now), SpaceID: fields.SpaceID, Title: fields.Title, CreatedAt: now}
	s.Lists = append(s.Lists, list)
	return list, nil
}

// CreateUser adds a user.
func (s *Set) CreateUser(r Rules, fields record.UserFields) (record.User, error) {
	if err := fields.Validate(); err != nil {
		return record.User{}, err
	}
	fields = fields.Normalize()
	now := r.now()
	user := record.User{ID: ids.New(now), Name: fields.Name, Email: fields.Email, CreatedAt: now}
	s.Users = append(s.Users, user)
	return user, nil
}

func (s *Set) titleTaken(r Rules, spaceID, title, exceptID string) bool {
	key := r.Collation.Key(title)
	return find(s.Tasks, func(t record.Task) bool {
		return t.SpaceID == spaceID && t.ID != exceptID && r.Collation.Key(t.Title) == key
	}) >= 0
}

// CreateTask adds a task whose title is unique within its space.
func (s *Set) CreateTask(r Rules, fields record.TaskFields) (record.Task, error) {
	if err := fields.Validate(); err != nil {
		return record.Task{}, err
	}
	fields = fields.Normalize()
	if !s.hasSpace(fields.SpaceID) {
		return record.Task{}, record.NotFound(record.EntitySpace, fields.SpaceID)
	}
	if s.titleTaken(r, fields.SpaceID, fields.Title, "") {
		return record.Task{}, record.DuplicateTitle(fields.SpaceID, fields.Title)
	}
	now := r.now()
	task := fields.Draft(ids.New(now), now)
	s.Tasks = append(s.Tasks, task)
	return task, nil
}

// UpdateTask patches a task, keeping titles unique.
func (s *Set) UpdateTask(r Rules, id string, patch record.TaskPatch) (record.Task, error) {
	if err := patch.Validate(); err != nil {
		return record.Task{}, err
	}
	i, err := s.task(id)
	if err != nil {
		return record.Task{}, err
	}
	updated := patch.Apply(s.Tasks[i], r.now())
	if s.titleTaken(r, updated.SpaceID, updated.Title, updated.ID) {
		return record.Task{}, record.DuplicateTitle(updated.SpaceID, updated.Title)
	}
	s.Tasks[i] = updated
	return updated, nil
}

// DeleteTask removes a task no todo references.
func (s *Set) DeleteTask(id string) error {
	i, err := s.task(id)
	if err != nil {
		return err
	}
	refs := 0
	for _, todo := range s.Todos {
		if todo.TaskID == id {
			refs++
		}
	}
	if refs > 0 {
		return record.InUse(id, refs)
	}
	s.Tasks = slices.Delete(s.Tasks, i, i+1)
	return nil
}

// checkTaskForList returns an error unless taskID names a task in the
// same space as the list.
func (s *Set) checkTaskForList(taskID string, list record.List) error {
	i, err := s.task(taskID)
	if err != nil {
		return err
	}
	if s.Tasks[i].SpaceID != list.SpaceID {
		return record.Invalid(record.EntityTodo, record.ErrCrossSpace)
	}
	return nil
}

// CreateTodo adds an incomplete todo.
func (s *Set) CreateTodo(r Rules, fields record.TodoFields) (record.Todo, error) {
	if err := fields.Validate(); err != nil {
		return record.Todo{}, err
	}
	fields = fields.Normalize()
	list, err := s.ListByID(fields.ListID)
	if err != nil {
		return record.Todo{}, err
	}
	if err := s.checkTaskForList(fields.TaskID, list); err != nil {
		return record.Todo{}, err
	}
	if find(s.Users, func(u record.User) bool { return u.ID == fields.OwnerID }) < 0 {
		return record.Todo{}, record.NotFound(record.EntityUser, fields.OwnerID)
	}
	now := r.now()
	todo := fields.Draft(ids.New(now), now)
	s.Todos = append(s.Todos, todo)
	return todo, nil
}

// UpdateTodo patches a todo.
func (s *Set) UpdateTodo(r Rules, id string, patch record.TodoPatch) (record.Todo, error) {
	if err := patch.Validate(); err != nil {
		return record.Todo{}, err
	}
	i, err := s.todo(id)
	if err != nil {
		return record.Todo{}, err
	}
	updated := patch.Apply(s.Todos[i], r.now())
	if patch.TaskID != nil {
		list, err := s.ListByID(updated.ListID)
		if err != nil {
			return record.Todo{}, err
		}
		if err := s.checkTaskForList(updated.TaskID, list); err != nil {
			return record.Todo{}, err
		}
	}
	s.Todos[i] = updated
	return updated, nil
}

// DeleteTodo removes a todo.
func (s *Set) DeleteTodo(id string) error {
	i, err := s.todo(id)
	if err != nil {
		return err
	}
	s.Todos = slices.Delete(s.Todos, i, i+1)
	return nil
}
