package redisstore

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/amonks/spacetodo/internal/ids"
	"github.com/amonks/spacetodo/record"
)

func (s *Store) FindTodos(ctx context.Context, q record.Query) ([]record.Todo, error) {
	var keys []string
	f := q.Filter
	if len(f.IDs) > 0 {
		for _, id := range f.IDs {
			keys = append(keys, s.keys.todo(id))
		}
	} else {
		set := s.keys.todos()
		switch {
		case f.ListID != "":
			set = s.keys.listTodos(f.ListID)
		case f.TaskID != "":
			set = s.keys.taskRefs(f.TaskID)
		}
		var err error
		if keys, err = members(ctx, s.client, set, s.keys.todo); err != nil {
			return nil, record.Transient(record.EntityTodo, err)
		}
	}
	todos, err := mgetJSON[record.Todo](ctx, s.client, keys)
	if err != nil {
		return nil, record.Transient(record.EntityTodo, err)
	}
	return record.SelectTodos(todos, q), nil
}

// checkTask returns an error unless taskID names a task in the list's space.
func (s *Store) checkTask(ctx context.Context, r reader, taskID string, list record.List) error {
	task, ok, err := getJSON[record.Task](ctx, r, s.keys.task(taskID))
	if err != nil {
		return err
	}
	if !ok {
		return record.NotFound(record.EntityTask, taskID)
	}
	if task.SpaceID != list.SpaceID {
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

	listKey := s.keys.list(todo.ListID)
	taskKey := s.keys.task(todo.TaskID)
	userKey := s.keys.user(todo.OwnerID)
	err := s.atomically(ctx, record.EntityTodo, func(tx *redis.Tx) error {
		list, err := s.listByID(ctx, tx, todo.ListID)
		if err != nil {
			return err
		}
		if err := s.checkTask(ctx, tx, todo.TaskID, list); err != nil {
			return err
		}
		n, err := tx.Exists(ctx, userKey).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return record.NotFound(record.EntityUser, todo.OwnerID)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.keys.todo(todo.ID), mustJSON(todo), 0)
			pipe.SAdd(ctx, s.keys.listTodos(todo.ListID), todo.ID)
			pipe.SAdd(ctx, s.keys.taskRefs(todo.TaskID), todo.ID)
			pipe.SAdd(ctx, s.keys.todos(), todo.ID)
			return nil
		})
		return err
	}, listKey, taskKey, userKey)
	if err != nil {
		return record.Todo{}, err
	}
	s.changed(ctx, record.EntityTodo, todo.ID)
	return todo, nil
}

func (s *Store) UpdateTodo(ctx context.Context, id string, patch record.TodoPatch) (record.Todo, error) {
	if err := patch.Validate(); err != nil {
		return record.Todo{}, err
	}
	todoKey := s.keys.todo(id)
	watched := []string{todoKey}
	if patch.TaskID != nil {
		watched = append(watched, s.keys.task(strings.TrimSpace(*patch.TaskID)))
	}

	var updated record.Todo
	err := s.atomically(ctx, record.EntityTodo, func(tx *redis.Tx) error {
		current, ok, err := getJSON[record.Todo](ctx, tx, todoKey)
		if err != nil {
			return err
		}
		if !ok {
			return record.NotFound(record.EntityTodo, id)
		}
		updated = patch.Apply(current, s.now())
		if patch.TaskID != nil {
			list, err := s.listByID(ctx, tx, updated.ListID)
			if err != nil {
				return err
			}
			if err := s.checkTask(ctx, tx, updated.TaskID, list); err != nil {
				return err
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, todoKey, mustJSON(updated), 0)
			if updated.TaskID != current.TaskID {
				pipe.SRem(ctx, s.keys.taskRefs(current.TaskID), id)
				pipe.SAdd(ctx, s.keys.taskRefs(updated.TaskID), id)
			}
			return nil
		})
		return err
	}, watched...)
	if err != nil {
		return record.Todo{}, err
	}
	s.changed(ctx, record.EntityTodo, id)
	return updated, nil
}

func (s *Store) DeleteTodo(ctx context.Context, id string) error {
	todoKey := s.keys.todo(id)
	err := s.atomically(ctx, record.EntityTodo, func(tx *redis.Tx) error {
		todo, ok, err := getJSON[record.Todo](ctx, tx, todoKey)
		if err != nil {
			return err
		}
		if !ok {
			return record.NotFound(record.EntityTodo, id)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, todoKey)
			pipe.SRem(ctx, s.keys.listTodos(todo.ListID), id)
			pipe.SRem(ctx, s.keys.taskRefs(todo.TaskID), id)
			pipe.SRem(ctx, s.keys.todos(), id)
			return nil
		})
		return err
	}, todoKey)
	if err != nil {
		return err
	}
	s.changed(ctx, record.EntityTodo, id)
	return nil
}
