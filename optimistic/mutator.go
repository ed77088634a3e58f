package optimistic

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/amonks/spacetodo/internal/logging"
	"github.com/amonks/spacetodo/record"
)

var (
	// ErrPending is returned when the record already has an outstanding mutation.
	ErrPending = errors.New("record has a pending change")

	// ErrProvisional is returned when the record's create is not confirmed yet.
	ErrProvisional = errors.New("record is not saved yet")

	// ErrUnknown is returned when the record is not in the cache.
	ErrUnknown = errors.New("record is not in the cache")
)

// ProvisionalPrefix starts every provisional key.
const ProvisionalPrefix = "provisional-"

// IsProvisional reports whether key was assigned to an unconfirmed create.
func IsProvisional(key string) bool {
	return strings.HasPrefix(key, ProvisionalPrefix)
}

// Settled describes a reconciled mutation.
type Settled[T any] struct {
	Op    string
	Key   string
	Value T
	Err   error
}

// MutatorOptions configures a Mutator.
type MutatorOptions[T any] struct {
	Logger *log.Logger

	// OnSettled is called after each mutation has been reconciled into
	// the cache, before its Pending resolves.
	OnSettled func(Settled[T])
}

// Mutator applies mutations to a Cache optimistically.
//
// It rejects a second mutation of a record while one is outstanding and
// any mutation of a provisional record, so the cache reaches a consistent
// state whatever order the store answers in. Mutations are never timed
// out: one whose call never returns stays visible as pending.
type Mutator[T any] struct {
	cache     *Cache[T]
	logger    *log.Logger
	onSettled func(Settled[T])
}

// NewMutator returns a mutator over cache.
func NewMutator[T any](cache *Cache[T], opts MutatorOptions[T]) *Mutator[T] {
	return &Mutator[T]{
		cache:     cache,
		logger:    logging.OrDiscard(opts.Logger),
		onSettled: opts.OnSettled,
	}
}

// Cache returns the cache the mutator writes to.
func (m *Mutator[T]) Cache() *Cache[T] {
	return m.cache
}

// Pending is an outstanding mutation.
type Pending[T any] struct {
	// Key is the provisional key of a create, or the target id.
	Key string

	done  chan struct{}
	value T
	err   error
}

// Done is closed once the mutation has been reconciled.
func (p *Pending[T]) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the mutation is reconciled or ctx is done. A done ctx
// does not cancel the mutation.
func (p *Pending[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result returns the outcome if the mutation has been reconciled.
func (p *Pending[T]) Result() (value T, err error, ok bool) {
	select {
	case <-p.done:
		return p.value, p.err, true
	default:
		var zero T
		return zero, nil, false
	}
}

// Create shows placeholder as a provisional entry and then runs call. On
// success the entry is replaced by the record call returns.
func (m *Mutator[T]) Create(ctx context.Context, placeholder T, call func(context.Context) (T, error)) *Pending[T] {
	o := &op[T]{kind: opCreate, key: ProvisionalPrefix + uuid.NewString(), value: placeholder}
	m.cache.mu.Lock()
	m.cache.pushLocked(o)
	m.cache.mu.Unlock()
	return m.run(ctx, o, call)
}

// Update shows project applied to the cached record and then runs call.
// On success the entry is replaced by the record call returns; on failure
// the previous value is restored.
func (m *Mutator[T]) Update(ctx context.Context, id string, project func(T) T, call func(context.Context) (T, error)) (*Pending[T], error) {
	m.cache.mu.Lock()
	current, err := m.checkLocked(id)
	if err != nil {
		m.cache.mu.Unlock()
		return nil, err
	}
	o := &op[T]{kind: opUpdate, key: id, value: project(current)}
	m.cache.pushLocked(o)
	m.cache.mu.Unlock()
	return m.run(ctx, o, call), nil
}

// Delete hides the cached record and then runs call. On failure the
// record reappears unmodified.
func (m *Mutator[T]) Delete(ctx context.Context, id string, call func(context.Context) error) (*Pending[T], error) {
	m.cache.mu.Lock()
	current, err := m.checkLocked(id)
	if err != nil {
		m.cache.mu.Unlock()
		return nil, err
	}
	o := &op[T]{kind: opDelete, key: id, value: current}
	m.cache.pushLocked(o)
	m.cache.mu.Unlock()
	return m.run(ctx, o, func(ctx context.Context) (T, error) {
		return current, call(ctx)
	}), nil
}

func (m *Mutator[T]) checkLocked(id string) (T, error) {
	var zero T
	if IsProvisional(id) {
		return zero, ErrProvisional
	}
	if m.cache.pendingLocked(id) != nil {
		return zero, ErrPending
	}
	current, ok := m.cache.currentLocked(id)
	if !ok {
		return zero, ErrUnknown
	}
	return current, nil
}

func (m *Mutator[T]) run(ctx context.Context, o *op[T], call func(context.Context) (T, error)) *Pending[T] {
	p := &Pending[T]{Key: o.key, done: make(chan struct{})}
	m.logger.Debug("optimistic "+o.kind.String(), "key", o.key)

	go func() {
		value, err := call(ctx)

		m.cache.mu.Lock()
		m.cache.settleLocked(o, value, err == nil)
		m.cache.mu.Unlock()

		if err != nil {
			m.logger.Debug("rolled back "+o.kind.String(), "key", o.key, "kind", record.KindOf(err), "err", err)
		} else {
			m.logger.Debug("confirmed "+o.kind.String(), "key", o.key, "id", m.cache.key(value))
		}
		if m.onSettled != nil {
			m.onSettled(Settled[T]{Op: o.kind.String(), Key: o.key, Value: value, Err: err})
		}

		p.value, p.err = value, err
		close(p.done)
	}()
	return p
}
