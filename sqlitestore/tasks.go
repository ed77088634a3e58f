package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"strings"

	"github.com/amonks/spacetodo/internal/ids"
	"github.com/amonks/spacetodo/record"
)

const taskColumns = `id, space_id, title, description, created_at, updated_at`

func scanTask(row scanner) (record.Task, error) {
	var (
		t                record.Task
		created, updated int64
	)
	if err := row.Scan(&t.ID, &t.SpaceID, &t.Title, &t.Description, &created, &updated); err != nil {
		return record.Task{}, err
	}
	t.CreatedAt = fromNanos(created)
	t.UpdatedAt = fromNanos(updated)
	return t, nil
}

// FindTasks pushes the equality filters down to SQL. Case-insensitive
// matching, ordering, and the limit are applied by record.SelectTasks so
// every store agrees on them. A TitleContains filter is matched in Go, so
// rows are read in limit-sized pages until the limit is filled.
func (s *Store) FindTasks(ctx context.Context, q record.Query) ([]record.Task, error) {
	var (
		where []string
		args  []any
	)
	f := q.Filter
	if f.SpaceID != "" {
		where = append(where, "space_id = ?")
		args = append(args, f.SpaceID)
	}
	if f.TaskID != "" {
		where = append(where, "id = ?")
		args = append(args, f.TaskID)
	}
	if len(f.IDs) > 0 {
		where = append(where, "id IN ("+placeholders(len(f.IDs))+")")
		for _, id := range f.IDs {
			args = append(args, id)
		}
	}
	if f.Title != "" {
		where = append(where, "title = ?")
		args = append(args, record.NormalizeTitle(f.Title))
	}

	limit := q.EffectiveLimit()
	var (
		matched []record.Task
		last    *record.Task
	)
	for {
		page, err := s.taskPage(ctx, where, args, q.Order, last, limit)
		if err != nil {
			return nil, err
		}
		for _, t := range page {
			if f.MatchTask(t) {
				matched = append(matched, t)
			}
		}
		if len(matched) >= limit || len(page) < limit {
			break
		}
		last = &page[len(page)-1]
	}
	return record.SelectTasks(matched, q), nil
}

// taskPage reads up to limit tasks in query order, starting after the
// task after, if any.
func (s *Store) taskPage(ctx context.Context, where []string, args []any, order record.Order, after *record.Task, limit int) ([]record.Task, error) {
	where = slices.Clone(where)
	args = slices.Clone(args)
	orderBy := " ORDER BY title, id"
	if order == record.OrderCreatedDesc {
		orderBy = " ORDER BY created_at DESC, id"
	}
	if after != nil {
		if order == record.OrderCreatedDesc {
			created := nanos(after.CreatedAt)
			where = append(where, "(created_at < ? OR (created_at = ? AND id > ?))")
			args = append(args, created, created, after.ID)
		} else {
			where = append(where, "(title > ? OR (title = ? AND id > ?))")
			args = append(args, after.Title, after.Title, after.ID)
		}
	}

	query := "SELECT " + taskColumns + " FROM tasks"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += orderBy + " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, record.Transient(record.EntityTask, err)
	}
	defer rows.Close()
	var tasks []record.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, record.Transient(record.EntityTask, err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, record.Transient(record.EntityTask, err)
	}
	return tasks, nil
}

func (s *Store) CreateTask(ctx context.Context, fields record.TaskFields) (record.Task, error) {
	if err := fields.Validate(); err != nil {
		return record.Task{}, err
	}
	now := s.now()
	task := fields.Draft(ids.New(now), now)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, space_id, title, title_key, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.SpaceID, task.Title, s.collation.Key(task.Title), task.Description, nanos(now), nanos(now))
	switch {
	case isUniqueViolation(err):
		return record.Task{}, record.DuplicateTitle(task.SpaceID, task.Title)
	case isForeignKeyViolation(err):
		return record.Task{}, record.NotFound(record.EntitySpace, task.SpaceID)
	case err != nil:
		return record.Task{}, record.Transient(record.EntityTask, err)
	}
	s.changed(record.EntityTask, task.ID)
	return task, nil
}

func (s *Store) UpdateTask(ctx context.Context, id string, patch record.TaskPatch) (record.Task, error) {
	if err := patch.Validate(); err != nil {
		return record.Task{}, err
	}
	var updated record.Task
	err := s.tx(ctx, record.EntityTask, func(tx *sql.Tx) error {
		current, err := scanTask(tx.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id))
		if errors.Is(err, sql.ErrNoRows) {
			return record.NotFound(record.EntityTask, id)
		}
		if err != nil {
			return err
		}
		updated = patch.Apply(current, s.now())
		_, err = tx.ExecContext(ctx,
			`UPDATE tasks SET title = ?, title_key = ?, description = ?, updated_at = ? WHERE id = ?`,
			updated.Title, s.collation.Key(updated.Title), updated.Description, nanos(updated.UpdatedAt), id)
		if isUniqueViolation(err) {
			return record.DuplicateTitle(updated.SpaceID, updated.Title)
		}
		return err
	})
	if err != nil {
		return record.Task{}, err
	}
	s.changed(record.EntityTask, id)
	return updated, nil
}

// DeleteTask refuses while todos reference the task. The schema's ON
// DELETE RESTRICT backs up the check.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	err := s.tx(ctx, record.EntityTask, func(tx *sql.Tx) error {
		var refs int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM todos WHERE task_id = ?`, id).Scan(&refs); err != nil {
			return err
		}
		if refs > 0 {
			return record.InUse(id, refs)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
		if isForeignKeyViolation(err) {
			return record.InUse(id, 1)
		}
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return record.NotFound(record.EntityTask, id)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.changed(record.EntityTask, id)
	return nil
}
