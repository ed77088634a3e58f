// Package optimistic keeps a locally cached result set in which mutations
// appear as soon as they are issued and are reconciled when the backing
// store answers.
//
// A Cache holds the last confirmed result set (the base), records that
// mutations have confirmed since that base was fetched, and an ordered
// overlay of mutations that are still outstanding. The visible view is
// recomputed from those three layers, so discarding a failed mutation
// restores exactly what was visible before it.
package optimistic

import (
	"cmp"
	"slices"
	"sync"

	"github.com/amonks/spacetodo/internal/pubsub"
)

// Entry is one visible record.
type Entry[T any] struct {
	// Key is the record's id, or a provisional key for an unconfirmed create.
	Key   string
	Value T

	// Provisional is set while a create has not been confirmed.
	Provisional bool

	// Pending is set while any mutation of the record is outstanding.
	Pending bool
}

// Snapshot is the view at a version. Versions increase with every change.
type Snapshot[T any] struct {
	Version uint64
	Entries []Entry[T]
}

type opKind int

const (
	opCreate opKind = iota
	opUpdate
	opDelete
)

func (k opKind) String() string {
	switch k {
	case opCreate:
		return "create"
	case opUpdate:
		return "update"
	default:
		return "delete"
	}
}

// op is an outstanding mutation.
type op[T any] struct {
	kind  opKind
	key   string
	value T
}

// override is a record confirmed by a mutation after the base was fetched.
type override[T any] struct {
	epoch   uint64
	value   T
	deleted bool
}

// Cache is safe for concurrent use.
type Cache[T any] struct {
	key     func(T) string
	compare func(a, b T) int

	mu        sync.Mutex
	match     func(T) bool
	base      map[string]T
	overrides map[string]override[T]
	ops       []*op[T]
	epoch     uint64
	version   uint64

	snapshots pubsub.Latest[Snapshot[T]]
}

// NewCache returns an empty cache. key returns a record's id and compare
// orders the view.
func NewCache[T any](key func(T) string, compare func(a, b T) int) *Cache[T] {
	return &Cache[T]{
		key:       key,
		compare:   compare,
		base:      make(map[string]T),
		overrides: make(map[string]override[T]),
	}
}

// SetMatch sets the predicate a record must satisfy to appear in the view
// unless it came from the base. The base is trusted to already match.
func (c *Cache[T]) SetMatch(match func(T) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.match = match
	c.changedLocked()
}

// Epoch counts confirmed mutations. Read it before issuing a query and
// pass it to SetBase with the results.
func (c *Cache[T]) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// SetBase installs a confirmed result set fetched when the epoch was asOf.
// Mutations confirmed after asOf may be missing from records and stay
// layered on top.
func (c *Cache[T]) SetBase(asOf uint64, records []T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.base = make(map[string]T, len(records))
	for _, r := range records {
		c.base[c.key(r)] = r
	}
	for k, o := range c.overrides {
		if o.epoch <= asOf {
			delete(c.overrides, k)
		}
	}
	c.changedLocked()
}

// View returns the visible entries in order.
func (c *Cache[T]) View() []Entry[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Snapshot returns the view with its version.
func (c *Cache[T]) Snapshot() Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot[T]{Version: c.version, Entries: c.viewLocked()}
}

// Get returns the visible entry with key.
func (c *Cache[T]) Get(key string) (Entry[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key)
}

// Outstanding returns the number of unresolved mutations.
func (c *Cache[T]) Outstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ops)
}

// Subscribe registers fn to receive snapshots. Snapshots arrive in version
// order on a separate goroutine; superseded ones may be skipped.
func (c *Cache[T]) Subscribe(fn func(Snapshot[T])) (cancel func()) {
	return c.snapshots.Subscribe(fn)
}

// Flush waits until every snapshot published so far has been delivered.
func (c *Cache[T]) Flush() {
	c.snapshots.Flush()
}

func (c *Cache[T]) matches(v T) bool {
	return c.match == nil || c.match(v)
}

func (c *Cache[T]) changedLocked() {
	c.version++
	c.snapshots.Publish(c.version, Snapshot[T]{Version: c.version, Entries: c.viewLocked()})
}

// confirmedLocked returns base records with overrides applied.
func (c *Cache[T]) confirmedLocked() map[string]Entry[T] {
	entries := make(map[string]Entry[T], len(c.base)+len(c.ops))
	for k, v := range c.base {
		entries[k] = Entry[T]{Key: k, Value: v}
	}
	for k, o := range c.overrides {
		if o.deleted || !c.matches(o.value) {
			delete(entries, k)
			continue
		}
		entries[k] = Entry[T]{Key: k, Value: o.value}
	}
	return entries
}

func (c *Cache[T]) viewLocked() []Entry[T] {
	entries := c.confirmedLocked()
	for _, o := range c.ops {
		switch o.kind {
		case opCreate:
			if c.matches(o.value) {
				entries[o.key] = Entry[T]{Key: o.key, Value: o.value, Provisional: true, Pending: true}
			}
		case opUpdate:
			if _, ok := entries[o.key]; !ok {
				continue
			}
			if c.matches(o.value) {
				entries[o.key] = Entry[T]{Key: o.key, Value: o.value, Pending: true}
			} else {
				delete(entries, o.key)
			}
		case opDelete:
			delete(entries, o.key)
		}
	}

	out := make([]Entry[T], 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b Entry[T]) int {
		return cmp.Or(c.compare(a.Value, b.Value), cmp.Compare(a.Key, b.Key))
	})
	return out
}

func (c *Cache[T]) getLocked(key string) (Entry[T], bool) {
	for _, e := range c.viewLocked() {
		if e.Key == key {
			return e, true
		}
	}
	return Entry[T]{}, false
}

// currentLocked returns the latest known value for key, including records
// hidden by the match predicate, without pending projections.
func (c *Cache[T]) currentLocked(key string) (T, bool) {
	if o, ok := c.overrides[key]; ok {
		return o.value, !o.deleted
	}
	v, ok := c.base[key]
	return v, ok
}

func (c *Cache[T]) pendingLocked(key string) *op[T] {
	for _, o := range c.ops {
		if o.key == key {
			return o
		}
	}
	return nil
}

func (c *Cache[T]) pushLocked(o *op[T]) {
	c.ops = append(c.ops, o)
	c.changedLocked()
}

// settleLocked removes o and, on success, records the confirmed state.
func (c *Cache[T]) settleLocked(o *op[T], confirmed T, ok bool) {
	c.ops = slices.DeleteFunc(c.ops, func(p *op[T]) bool { return p == o })
	if ok {
		c.epoch++
		switch o.kind {
		case opCreate, opUpdate:
			c.overrides[c.key(confirmed)] = override[T]{epoch: c.epoch, value: confirmed}
		case opDelete:
			c.overrides[o.key] = override[T]{epoch: c.epoch, deleted: true}
		}
	}
	c.changedLocked()
}
