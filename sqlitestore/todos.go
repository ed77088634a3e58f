package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/amonks/spacetodo/internal/ids"
	"github.com/amonks/spacetodo/record"
)

const todoColumns = `id, list_id, task_id, owner_id, completed_at, created_at, updated_at`

func scanTodo(row scanner) (record.Todo, error) {
	var (
		t                record.Todo
		completed        sql.NullInt64
		created, updated int64
	)
	if err := row.Scan(&t.ID, &t.ListID, &t.TaskID, &t.OwnerID, &completed, &created, &updated); err != nil {
		return record.Todo{}, err
	}
	if completed.Valid {
		at := fromNanos(completed.Int64)
		t.CompletedAt = &at
	}
	t.CreatedAt = fromNanos(created)
	t.UpdatedAt = fromNanos(updated)
	return t, nil
}

func completedNanos(t record.Todo) sql.NullInt64 {
	if t.CompletedAt == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: nanos(*t.CompletedAt), Valid: true}
}

func (s *Store) FindTodos(ctx context.Context, q record.Query) ([]record.Todo, error) {
	var (
		where []string
		args  []any
	)
	f := q.Filter
	if f.ListID != "" {
		where = append(where, "list_id = ?")
		args = append(args, f.ListID)
	}
	if f.TaskID != "" {
		where = append(where, "task_id = ?")
		args = append(args, f.TaskID)
	}
	if len(f.IDs) > 0 {
		where = append(where, "id IN ("+placeholders(len(f.IDs))+")")
		for _, id := range f.IDs {
			args = append(args, id)
		}
	}
	query := "SELECT " + todoColumns + " FROM todos"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id LIMIT ?"
	args = append(args, q.EffectiveLimit())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, record.Transient(record.EntityTodo, err)
	}
	defer rows.Close()
	var todos []record.Todo
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, record.Transient(record.EntityTodo, err)
		}
		todos = append(todos, t)
	}
	if err := rows.Err(); err != nil {
		return nil, record.Transient(record.EntityTodo, err)
	}
	return todos, nil
}

// checkTask returns an error unless taskID names a task in the list's space.
func checkTask(ctx context.Context, tx *sql.Tx, taskID string, list record.List) error {
	var spaceID string
	err := tx.QueryRowContext(ctx, `SELECT space_id FROM tasks WHERE id = ?`, taskID).Scan(&spaceID)
	if errors.Is(err, sql.ErrNoRows) {
		return record.NotFound(record.EntityTask, taskID)
	}
	if err != nil {
		return err
	}
	if spaceID != list.SpaceID {
		return record.Invalid(record.EntityTodo, record.ErrCrossSpace)
	}
	return nil
}

func (s *Store) CreateTodo(ctx context.Context, fields record.TodoFields) (record.Todo, error) {
	if err := fields.Validate(); err != nil {
		return record.Todo{}, err
	}
	now := s.now()
	todo := fields.Draft(ids.New(now), now)

	err := s.tx(ctx, record.EntityTodo, func(tx *sql.Tx) error {
		list, err := listByID(ctx, tx, todo.ListID)
		if err != nil {
			return err
		}
		if err := checkTask(ctx, tx, todo.TaskID, list); err != nil {
			return err
		}
		var owners int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE id = ?`, todo.OwnerID).Scan(&owners); err != nil {
			return err
		}
		if owners == 0 {
			return record.NotFound(record.EntityUser, todo.OwnerID)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO todos (id, list_id, task_id, owner_id, completed_at, created_at, updated_at) VALUES (?, ?, ?, ?, NULL, ?, ?)`,
			todo.ID, todo.ListID, todo.TaskID, todo.OwnerID, nanos(now), nanos(now))
		if isForeignKeyViolation(err) {
			return record.NotFound(record.EntityTask, todo.TaskID)
		}
		return err
	})
	if err != nil {
		return record.Todo{}, err
	}
	s.changed(record.EntityTodo, todo.ID)
	return todo, nil
}

func (s *Store) UpdateTodo(ctx context.Context, id string, patch record.TodoPatch) (record.Todo, error) {
	if err := patch.Validate(); err != nil {
		return record.Todo{}, err
	}
	var updated record.Todo
	err := s.tx(ctx, record.EntityTodo, func(tx *sql.Tx) error {
		current, err := scanTodo(tx.QueryRowContext(ctx, "SELECT "+todoColumns+" FROM todos WHERE id = ?", id))
		if errors.Is(err, sql.ErrNoRows) {
			return record.NotFound(record.EntityTodo, id)
		}
		if err != nil {
			return err
		}
		updated = patch.Apply(current, s.now())
		if patch.TaskID != nil {
			list, err := listByID(ctx, tx, updated.ListID)
			if err != nil {
				return err
			}
			if err := checkTask(ctx, tx, updated.TaskID, list); err != nil {
				return err
			}
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE todos SET task_id = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
			updated.TaskID, completedNanos(updated), nanos(updated.UpdatedAt), id)
		if isForeignKeyViolation(err) {
			return record.NotFound(record.EntityTask, updated.TaskID)
		}
		return err
	})
	if err != nil {
		return record.Todo{}, err
	}
	s.changed(record.EntityTodo, id)
	return updated, nil
}

func (s *Store) DeleteTodo(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM todos WHERE id = ?`, id)
	if err != nil {
		return record.Transient(record.EntityTodo, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return record.Transient(record.EntityTodo, err)
	}
	if n == 0 {
		return record.NotFound(record.EntityTodo, id)
	}
	s.changed(record.EntityTodo, id)
	return nil
}
