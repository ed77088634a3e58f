// Package redisstore is a record.Store kept in Redis. Each record is a JSON
// document; sets and index keys make the relationships queryable, and
// every write runs in a WATCH/MULTI transaction so concurrent writers
// cannot break title uniqueness or the delete restriction.
package redisstore

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"github.com/amonks/spacetodo/internal/ids"
	"github.com/amonks/spacetodo/internal/logging"
	"github.com/amonks/spacetodo/internal/pubsub"
	"github.com/amonks/spacetodo/record"
)

// maxTxAttempts bounds retries of a transaction whose watched keys keep
// changing underneath it.
const maxTxAttempts = 32

// Options configures a Store.
type Options struct {
	// URL is a redis:// connection URL.
	URL string

	Prefix    string
	Collation record.Collation
	Now       func() time.Time

	// Watch subscribes to the change channel so writes from other
	// processes reach subscribers.
	Watch bool

	Logger *log.Logger
}

// Store is a Redis database.
type Store struct {
	client    *redis.Client
	keys      keys
	collation record.Collation
	now       func() time.Time
	logger    *log.Logger

	changes pubsub.Hub[record.Change]
	sub     *redis.PubSub
	wg      sync.WaitGroup
}

var (
	_ record.Store    = (*Store)(nil)
	_ record.Notifier = (*Store)(nil)
)

// Open connects to Redis.
func Open(ctx context.Context, opts Options) (*Store, error) {
	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	prefix := cmp.Or(opts.Prefix, DefaultPrefix)
	collation := cmp.Or(opts.Collation, record.CollationExact)
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	s := &Store{
		client:    client,
		keys:      keys{prefix: prefix},
		collation: collation,
		now:       func() time.Time { return now().UTC() },
		logger:    logging.OrDiscard(opts.Logger),
	}
	if err := s.checkCollation(ctx); err != nil {
		client.Close()
		return nil, err
	}
	if opts.Watch {
		s.sub = client.Subscribe(ctx, s.keys.changes())
		if _, err := s.sub.Receive(ctx); err != nil {
			s.sub.Close()
			client.Close()
			return nil, fmt.Errorf("subscribe to changes: %w", err)
		}
		s.wg.Add(1)
		go s.listen()
	}
	return s, nil
}

func (s *Store) checkCollation(ctx context.Context) error {
	key := s.keys.prefix + "collation"
	if err := s.client.SetNX(ctx, key, string(s.collation), 0).Err(); err != nil {
		return fmt.Errorf("record collation: %w", err)
	}
	stored, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("read collation: %w", err)
	}
	if record.Collation(stored) != s.collation {
		return fmt.Errorf("redis keyspace uses collation %q, not %q", stored, s.collation)
	}
	return nil
}

// Close disconnects from Redis.
func (s *Store) Close() error {
	var errs []error
	if s.sub != nil {
		errs = append(errs, s.sub.Close())
		s.wg.Wait()
	}
	errs = append(errs, s.client.Close())
	return errors.Join(errs...)
}

// Subscribe registers fn to be called after writes.
func (s *Store) Subscribe(fn func(record.Change)) func() {
	return s.changes.Subscribe(fn)
}

func (s *Store) listen() {
	defer s.wg.Done()
	for msg := range s.sub.Channel() {
		var change record.Change
		if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
			s.logger.Warn("parse change", "err", err)
			continue
		}
		s.changes.Publish(change)
	}
}

func (s *Store) changed(ctx context.Context, entity record.Entity, id string) {
	s.logger.Debug("wrote record", "entity", entity, "id", id)
	change := record.Change{Entity: entity, ID: id}
	if s.sub == nil {
		s.changes.Publish(change)
		return
	}
	// The write already committed; a lost notification only delays readers.
	if err := s.client.Publish(ctx, s.keys.changes(), mustJSON(change)).Err(); err != nil {
		s.logger.Warn("publish change", "err", err)
	}
}

// atomically runs fn under WATCH on keys, retrying when another client
// modifies a watched key before EXEC.
func (s *Store) atomically(ctx context.Context, entity record.Entity, fn func(tx *redis.Tx) error, keys ...string) error {
	for range maxTxAttempts {
		err := s.client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return record.Transient(entity, err)
	}
	return record.Transient(entity, fmt.Errorf("transaction retried %d times", maxTxAttempts))
}

func (s *Store) CreateSpace(ctx context.Context, fields record.SpaceFields) (record.Space, error) {
	if err := fields.Validate(); err != nil {
		return record.Space{}, err
	}
	fields = fields.Normalize()
	now := s.now()
	space := record.Space{ID: ids.New(now), Slug: fields.Slug, Title: fields.Title, CreatedAt: now}

	slugKey := s.keys.slug(space.Slug)
	err := s.atomically(ctx, record.EntitySpace, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, slugKey).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return record.DuplicateSlug(space.Slug)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.keys.space(space.ID), mustJSON(space), 0)
			pipe.Set(ctx, slugKey, space.ID, 0)
			pipe.SAdd(ctx, s.keys.spaces(), space.ID)
			return nil
		})
		return err
	}, slugKey)
	if err != nil {
		return record.Space{}, err
	}
	s.changed(ctx, record.EntitySpace, space.ID)
	return space, nil
}

func (s *Store) Spaces(ctx context.Context) ([]record.Space, error) {
	keys, err := members(ctx, s.client, s.keys.spaces(), s.keys.space)
	if err != nil {
		return nil, record.Transient(record.EntitySpace, err)
	}
	spaces, err := mgetJSON[record.Space](ctx, s.client, keys)
	if err != nil {
		return nil, record.Transient(record.EntitySpace, err)
	}
	slices.SortFunc(spaces, func(a, b record.Space) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), strings.Compare(a.ID, b.ID))
	})
	return spaces, nil
}

func (s *Store) SpaceBySlug(ctx context.Context, slug string) (record.Space, error) {
	slug = strings.TrimSpace(slug)
	id, err := s.client.Get(ctx, s.keys.slug(slug)).Result()
	if errors.Is(err, redis.Nil) {
		return record.Space{}, record.NotFound(record.EntitySpace, slug)
	}
	if err != nil {
		return record.Space{}, record.Transient(record.EntitySpace, err)
	}
	space, ok, err := getJSON[record.Space](ctx, s.client, s.keys.space(id))
	if err != nil {
		return record.Space{}, record.Transient(record.EntitySpace, err)
	}
	if !ok {
		return record.Space{}, record.NotFound(record.EntitySpace, slug)
	}
	return space, nil
}

func (s *Store) CreateList(ctx context.Context, fields record.ListFields) (record.List, error) {
	if err := fields.Validate(); err != nil {
		return record.List{}, err
	}
	fields = fields.Normalize()
	now := s.now()
	list := record.List{ID: ids.New(now), SpaceID: fields.SpaceID, Title: fields.Title, CreatedAt: now}

	spaceKey := s.keys.space(list.SpaceID)
	err := s.atomically(ctx, record.EntityList, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, spaceKey).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return record.NotFound(record.EntitySpace, list.SpaceID)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.keys.list(list.ID), mustJSON(list), 0)
			pipe.SAdd(ctx, s.keys.spaceLists(list.SpaceID), list.ID)
			return nil
		})
		return err
	}, spaceKey)
	if err != nil {
		return record.List{}, err
	}
	s.changed(ctx, record.EntityList, list.ID)
	return list, nil
}

func (s *Store) Lists(ctx context.Context, spaceID string) ([]record.List, error) {
	keys, err := members(ctx, s.client, s.keys.spaceLists(spaceID), s.keys.list)
	if err != nil {
		return nil, record.Transient(record.EntityList, err)
	}
	lists, err := mgetJSON[record.List](ctx, s.client, keys)
	if err != nil {
		return nil, record.Transient(record.EntityList, err)
	}
	slices.SortFunc(lists, func(a, b record.List) int {
		return cmp.Or(strings.Compare(a.Title, b.Title), strings.Compare(a.ID, b.ID))
	})
	return lists, nil
}

func (s *Store) ListByID(ctx context.Context, id string) (record.List, error) {
	return s.listByID(ctx, s.client, id)
}

func (s *Store) listByID(ctx context.Context, r reader, id string) (record.List, error) {
	list, ok, err := getJSON[record.List](ctx, r, s.keys.list(id))
	if err != nil {
		return record.List{}, record.Transient(record.EntityList, err)
	}
	if !ok {
		return record.List{}, record.NotFound(record.EntityList, id)
	}
	return list, nil
}

func (s *Store) CreateUser(ctx context.Context, fields record.UserFields) (record.User, error) {
	if err := fields.Validate(); err != nil {
		return record.User{}, err
	}
	fields = fields.Normalize()
	now := s.now()
	user := record.User{ID: ids.New(now), Name: fields.Name, Email: fields.Email, CreatedAt: now}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.keys.user(user.ID), mustJSON(user), 0)
		pipe.SAdd(ctx, s.keys.users(), user.ID)
		return nil
	})
	if err != nil {
		return record.User{}, record.Transient(record.EntityUser, err)
	}
	s.changed(ctx, record.EntityUser, user.ID)
	return user, nil
}

func (s *Store) Users(ctx context.Context) ([]record.User, error) {
	keys, err := members(ctx, s.client, s.keys.users(), s.keys.user)
	if err != nil {
		return nil, record.Transient(record.EntityUser, err)
	}
	users, err := mgetJSON[record.User](ctx, s.client, keys)
	if err != nil {
		return nil, record.Transient(record.EntityUser, err)
	}
	slices.SortFunc(users, func(a, b record.User) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), strings.Compare(a.ID, b.ID))
	})
	return users, nil
}
