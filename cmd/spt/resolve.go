package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/amonks/spacetodo/internal/ids"
	"github.com/amonks/spacetodo/record"
)

// resolveID returns the id among candidates that prefix identifies.
func resolveID[T any](entity record.Entity, items []T, id func(T) string, prefix string) (T, error) {
	candidates := make([]string, len(items))
	for i, item := range items {
		candidates[i] = id(item)
	}
	var zero T
	match, err := ids.Resolve(candidates, prefix)
	if errors.Is(err, ids.ErrNoMatch) {
		return zero, record.NotFound(entity, prefix)
	}
	if err != nil {
		return zero, fmt.Errorf("%s %w", entity, err)
	}
	for _, item := range items {
		if strings.EqualFold(id(item), match) {
			return item, nil
		}
	}
	return zero, record.NotFound(entity, prefix)
}

func resolveList(ctx context.Context, store record.Store, spaceID, prefix string) (record.List, error) {
	lists, err := store.Lists(ctx, spaceID)
	if err != nil {
		return record.List{}, err
	}
	return resolveID(record.EntityList, lists, func(l record.List) string { return l.ID }, prefix)
}

func resolveUser(ctx context.Context, store record.Store, prefix string) (record.User, error) {
	users, err := store.Users(ctx)
	if err != nil {
		return record.User{}, err
	}
	return resolveID(record.EntityUser, users, func(u record.User) string { return u.ID }, prefix)
}

// resolveTask finds a task of the space by id prefix. Only the first
// record.MaxLimit tasks by title are candidates.
func resolveTask(ctx context.Context, store record.TaskFinder, spaceID, prefix string) (record.Task, error) {
	tasks, err := store.FindTasks(ctx, record.Query{
		Filter: record.Filter{SpaceID: spaceID},
		Order:  record.OrderTitleAsc,
		Limit:  record.MaxLimit,
	})
	if err != nil {
		return record.Task{}, err
	}
	return resolveID(record.EntityTask, tasks, func(t record.Task) string { return t.ID }, prefix)
}

// prefixLengths returns the unique prefix length of each id.
func prefixLengths[T any](items []T, id func(T) string) map[string]int {
	all := make([]string, len(items))
	for i, item := range items {
		all[i] = id(item)
	}
	return ids.UniquePrefixLengths(all)
}
