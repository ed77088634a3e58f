package redisstore

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/amonks/spacetodo/internal/ids"
	"github.com/amonks/spacetodo/record"
)

func (s *Store) FindTasks(ctx context.Context, q record.Query) ([]record.Task, error) {
	var keys []string
	f := q.Filter
	switch {
	case f.TaskID != "":
		keys = []string{s.keys.task(f.TaskID)}
	case len(f.IDs) > 0:
		for _, id := range f.IDs {
			keys = append(keys, s.keys.task(id))
		}
	default:
		set := s.keys.tasks()
		if f.SpaceID != "" {
			set = s.keys.spaceTasks(f.SpaceID)
		}
		var err error
		if keys, err = members(ctx, s.client, set, s.keys.task); err != nil {
			return nil, record.Transient(record.EntityTask, err)
		}
	}
	tasks, err := mgetJSON[record.Task](ctx, s.client, keys)
	if err != nil {
		return nil, record.Transient(record.EntityTask, err)
	}
	return record.SelectTasks(tasks, q), nil
}

func (s *Store) CreateTask(ctx context.Context, fields record.TaskFields) (record.Task, error) {
	if err := fields.Validate(); err != nil {
		return record.Task{}, err
	}
	now := s.now()
	task := fields.Draft(ids.New(now), now)

	spaceKey := s.keys.space(task.SpaceID)
	titleKey := s.keys.title(task.SpaceID, s.collation.Key(task.Title))
	err := s.atomically(ctx, record.EntityTask, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, spaceKey).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return record.NotFound(record.EntitySpace, task.SpaceID)
		}
		if n, err = tx.Exists(ctx, titleKey).Result(); err != nil {
			return err
		}
		if n > 0 {
			return record.DuplicateTitle(task.SpaceID, task.Title)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.keys.task(task.ID), mustJSON(task), 0)
			pipe.Set(ctx, titleKey, task.ID, 0)
			pipe.SAdd(ctx, s.keys.spaceTasks(task.SpaceID), task.ID)
			pipe.SAdd(ctx, s.keys.tasks(), task.ID)
			return nil
		})
		return err
	}, spaceKey, titleKey)
	if err != nil {
		return record.Task{}, err
	}
	s.changed(ctx, record.EntityTask, task.ID)
	return task, nil
}

func (s *Store) UpdateTask(ctx context.Context, id string, patch record.TaskPatch) (record.Task, error) {
	if err := patch.Validate(); err != nil {
		return record.Task{}, err
	}
	taskKey := s.keys.task(id)

	// A task's space never changes, so the new title key can be computed
	// before the transaction starts watching it.
	current, ok, err := getJSON[record.Task](ctx, s.client, taskKey)
	if err != nil {
		return record.Task{}, record.Transient(record.EntityTask, err)
	}
	if !ok {
		return record.Task{}, record.NotFound(record.EntityTask, id)
	}
	newTitleKey := s.keys.title(current.SpaceID, s.collation.Key(patch.Apply(current, s.now()).Title))

	var updated record.Task
	err = s.atomically(ctx, record.EntityTask, func(tx *redis.Tx) error {
		current, ok, err := getJSON[record.Task](ctx, tx, taskKey)
		if err != nil {
			return err
		}
		if !ok {
			return record.NotFound(record.EntityTask, id)
		}
		updated = patch.Apply(current, s.now())
		oldTitleKey := s.keys.title(current.SpaceID, s.collation.Key(current.Title))

		owner, err := tx.Get(ctx, newTitleKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if owner != "" && owner != id {
			return record.DuplicateTitle(updated.SpaceID, updated.Title)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, taskKey, mustJSON(updated), 0)
			if oldTitleKey != newTitleKey {
				pipe.Del(ctx, oldTitleKey)
				pipe.Set(ctx, newTitleKey, id, 0)
			}
			return nil
		})
		return err
	}, taskKey, newTitleKey)
	if err != nil {
		return record.Task{}, err
	}
	s.changed(ctx, record.EntityTask, id)
	return updated, nil
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	taskKey := s.keys.task(id)
	refsKey := s.keys.taskRefs(id)
	err := s.atomically(ctx, record.EntityTask, func(tx *redis.Tx) error {
		task, ok, err := getJSON[record.Task](ctx, tx, taskKey)
		if err != nil {
			return err
		}
		if !ok {
			return record.NotFound(record.EntityTask, id)
		}
		refs, err := tx.SCard(ctx, refsKey).Result()
		if err != nil {
			return err
		}
		if refs > 0 {
			return record.InUse(id, int(refs))
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, taskKey, refsKey, s.keys.title(task.SpaceID, s.collation.Key(task.Title)))
			pipe.SRem(ctx, s.keys.spaceTasks(task.SpaceID), id)
			pipe.SRem(ctx, s.keys.tasks(), id)
			return nil
		})
		return err
	}, taskKey, refsKey)
	if err != nil {
		return err
	}
	s.changed(ctx, record.EntityTask, id)
	return nil
}
