// Package sqlitestore is a record.Store backed by SQLite. Title uniqueness
// and the todo-to-task delete restriction are enforced by the schema.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite"

	"github.com/amonks/spacetodo/internal/ids"
	"github.com/amonks/spacetodo/internal/logging"
	"github.com/amonks/spacetodo/internal/pubsub"
	"github.com/amonks/spacetodo/record"
)

// Memory is the path of a private in-memory database.
const Memory = ":memory:"

// Options configures a Store.
type Options struct {
	Collation record.Collation
	Now       func() time.Time
	Logger    *log.Logger
}

// Store is a SQLite database.
type Store struct {
	db        *sql.DB
	collation record.Collation
	now       func() time.Time
	logger    *log.Logger
	changes   pubsub.Hub[record.Change]
}

var (
	_ record.Store    = (*Store)(nil)
	_ record.Notifier = (*Store)(nil)
)

// Open opens or creates the database at path.
func Open(path string, opts Options) (*Store, error) {
	if path != Memory {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Pragmas are per connection, and an in-memory database exists only
	// on its one connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"}
	if path != Memory {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	collation := opts.Collation
	if collation == "" {
		collation = record.CollationExact
	}
	if err := checkCollation(db, collation); err != nil {
		_ = db.Close()
		return nil, err
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		db:        db,
		collation: collation,
		now:       func() time.Time { return now().UTC() },
		logger:    logging.OrDiscard(opts.Logger),
	}, nil
}

// checkCollation records the collation of a new database and refuses to
// open an existing one under a different collation, since stored title
// keys depend on it.
func checkCollation(db *sql.DB, collation record.Collation) error {
	if _, err := db.Exec(`INSERT INTO meta (key, value) VALUES ('collation', ?) ON CONFLICT(key) DO NOTHING`, string(collation)); err != nil {
		return fmt.Errorf("record collation: %w", err)
	}
	var stored string
	if err := db.QueryRow(`SELECT value FROM meta WHERE key = 'collation'`).Scan(&stored); err != nil {
		return fmt.Errorf("read collation: %w", err)
	}
	if record.Collation(stored) != collation {
		return fmt.Errorf("database was created with collation %q, not %q", stored, collation)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Subscribe registers fn to be called after writes through this Store.
func (s *Store) Subscribe(fn func(record.Change)) func() {
	return s.changes.Subscribe(fn)
}

func (s *Store) changed(entity record.Entity, id string) {
	s.logger.Debug("wrote record", "entity", entity, "id", id)
	s.changes.Publish(record.Change{Entity: entity, ID: id})
}

// tx runs fn in a transaction, classifying unexpected failures as transient.
func (s *Store) tx(ctx context.Context, entity record.Entity, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return record.Transient(entity, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return record.Transient(entity, err)
	}
	if err := tx.Commit(); err != nil {
		return record.Transient(entity, err)
	}
	return nil
}

func nanos(t time.Time) int64 {
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

type scanner interface {
	Scan(dest ...any) error
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func (s *Store) CreateSpace(ctx context.Context, fields record.SpaceFields) (record.Space, error) {
	if err := fields.Validate(); err != nil {
		return record.Space{}, err
	}
	fields = fields.Normalize()
	now := s.now()
	space := record.Space{ID: ids.New(now), Slug: fields.Slug, Title: fields.Title, CreatedAt: now}

	_, err := s.db.ExecContext(ctx, `INSERT INTO spaces (id, slug, title, created_at) VALUES (?, ?, ?, ?)`,
		space.ID, space.Slug, space.Title, nanos(now))
	if isUniqueViolation(err) {
		return record.Space{}, record.DuplicateSlug(space.Slug)
	}
	if err != nil {
		return record.Space{}, record.Transient(record.EntitySpace, err)
	}
	s.changed(record.EntitySpace, space.ID)
	return space, nil
}

func scanSpace(row scanner) (record.Space, error) {
	var (
		sp      record.Space
		created int64
	)
	if err := row.Scan(&sp.ID, &sp.Slug, &sp.Title, &created); err != nil {
		return record.Space{}, err
	}
	sp.CreatedAt = fromNanos(created)
	return sp, nil
}

func (s *Store) Spaces(ctx context.Context) ([]record.Space, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, slug, title, created_at FROM spaces ORDER BY created_at, id`)
	if err != nil {
		return nil, record.Transient(record.EntitySpace, err)
	}
	defer rows.Close()
	var out []record.Space
	for rows.Next() {
		sp, err := scanSpace(rows)
		if err != nil {
			return nil, record.Transient(record.EntitySpace, err)
		}
		out = append(out, sp)
	}
	return out, record.Transient(record.EntitySpace, rows.Err())
}

func (s *Store) SpaceBySlug(ctx context.Context, slug string) (record.Space, error) {
	slug = strings.TrimSpace(slug)
	sp, err := scanSpace(s.db.QueryRowContext(ctx, `SELECT id, slug, title, created_at FROM spaces WHERE slug = ?`, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return record.Space{}, record.NotFound(record.EntitySpace, slug)
	}
	if err != nil {
		return record.Space{}, record.Transient(record.EntitySpace, err)
	}
	return sp, nil
}

func (s *Store) CreateList(ctx context.Context, fields record.ListFields) (record.List, error) {
	if err := fields.Validate(); err != nil {
		return record.List{}, err
	}
	fields = fields.Normalize()
	now := s.now()
	list := record.List{ID: ids.New(now), SpaceID: fields.SpaceID, Title: fields.Title, CreatedAt: now}

	_, err := s.db.ExecContext(ctx, `INSERT INTO lists (id, space_id, title, created_at) VALUES (?, ?, ?, ?)`,
		list.ID, list.SpaceID, list.Title, nanos(now))
	if isForeignKeyViolation(err) {
		return record.List{}, record.NotFound(record.EntitySpace, list.SpaceID)
	}
	if err != nil {
		return record.List{}, record.Transient(record.EntityList, err)
	}
	s.changed(record.EntityList, list.ID)
	return list, nil
}

func scanList(row scanner) (record.List, error) {
	var (
		l       record.List
		created int64
	)
	if err := row.Scan(&l.ID, &l.SpaceID, &l.Title, &created); err != nil {
		return record.List{}, err
	}
	l.CreatedAt = fromNanos(created)
	return l, nil
}

func (s *Store) Lists(ctx context.Context, spaceID string) ([]record.List, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, space_id, title, created_at FROM lists WHERE space_id = ? ORDER BY title, id`, spaceID)
	if err != nil {
		return nil, record.Transient(record.EntityList, err)
	}
	defer rows.Close()
	var out []record.List
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, record.Transient(record.EntityList, err)
		}
		out = append(out, l)
	}
	return out, record.Transient(record.EntityList, rows.Err())
}

func (s *Store) ListByID(ctx context.Context, id string) (record.List, error) {
	return listByID(ctx, s.db, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func listByID(ctx context.Context, q querier, id string) (record.List, error) {
	l, err := scanList(q.QueryRowContext(ctx, `SELECT id, space_id, title, created_at FROM lists WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return record.List{}, record.NotFound(record.EntityList, id)
	}
	if err != nil {
		return record.List{}, record.Transient(record.EntityList, err)
	}
	return l, nil
}

func (s *Store) CreateUser(ctx context.Context, fields record.UserFields) (record.User, error) {
	if err := fields.Validate(); err != nil {
		return record.User{}, err
	}
	fields = fields.Normalize()
	now := s.now()
	user := record.User{ID: ids.New(now), Name: fields.Name, Email: fields.Email, CreatedAt: now}

	_, err := s.db.ExecContext(ctx, `INSERT INTO users (id, name, email, created_at) VALUES (?, ?, ?, ?)`,
		user.ID, user.Name, user.Email, nanos(now))
	if err != nil {
		return record.User{}, record.Transient(record.EntityUser, err)
	}
	s.changed(record.EntityUser, user.ID)
	return user, nil
}

func (s *Store) Users(ctx context.Context) ([]record.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, email, created_at FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, record.Transient(record.EntityUser, err)
	}
	defer rows.Close()
	var out []record.User
	for rows.Next() {
		var (
			u       record.User
			created int64
		)
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &created); err != nil {
			return nil, record.Transient(record.EntityUser, err)
		}
		u.CreatedAt = fromNanos(created)
		out = append(out, u)
	}
	return out, record.Transient(record.EntityUser, rows.Err())
}
