package catalog

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/amonks/spacetodo/internal/logging"
	"github.com/amonks/spacetodo/internal/pubsub"
	"github.com/amonks/spacetodo/optimistic"
	"github.com/amonks/spacetodo/record"
)

// ErrStale is returned by Request.Wait when a newer request superseded it
// before its results arrived.
var ErrStale = errors.New("superseded by a newer query")

// Options configures a Live query.
type Options struct {
	// Limit is the result ceiling. Zero means BrowseLimit.
	Limit int

	Logger *log.Logger

	// OnSettled is called after each task mutation made through the
	// Live's mutator has been reconciled.
	OnSettled func(optimistic.Settled[record.Task])
}

// Snapshot is the state of a Live query.
type Snapshot struct {
	Version uint64

	// SpaceID and Text are the parameters of the latest request.
	SpaceID string
	Text    string

	// Entries are the results of the latest request to land, with
	// outstanding mutations applied.
	Entries []optimistic.Entry[record.Task]

	// Loading is set while the latest request is outstanding.
	Loading bool

	// Err is the failure of the latest request, if it failed. Entries
	// still hold the last good results.
	Err error
}

// Tasks returns the values of the entries.
func (s Snapshot) Tasks() []record.Task {
	tasks := make([]record.Task, len(s.Entries))
	for i, e := range s.Entries {
		tasks[i] = e.Value
	}
	return tasks
}

// Live is a task query within a space that is re-issued whenever its
// parameters change. Each request carries a token; responses to anything
// but the latest request are dropped, and the previous results stay
// visible until the next ones land.
type Live struct {
	finder  record.TaskFinder
	limit   int
	logger  *log.Logger
	cache   *optimistic.Cache[record.Task]
	mutator *optimistic.Mutator[record.Task]

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	spaceID string
	text    string
	issued  bool
	token   uint64
	loading bool
	err     error
	version uint64
	stops   []func()

	snapshots pubsub.Latest[Snapshot]
}

// NewLive returns an idle query. Call Set to issue the first request.
func NewLive(finder record.TaskFinder, opts Options) *Live {
	limit := opts.Limit
	if limit <= 0 {
		limit = BrowseLimit
	}
	l := &Live{
		finder: finder,
		limit:  limit,
		logger: logging.OrDiscard(opts.Logger),
		cache:  optimistic.NewCache(func(t record.Task) string { return t.ID }, record.CompareTasks),
	}
	l.ctx, l.cancel = context.WithCancel(context.Background())
	l.mutator = optimistic.NewMutator(l.cache, optimistic.MutatorOptions[record.Task]{
		Logger: l.logger,
		OnSettled: func(s optimistic.Settled[record.Task]) {
			if opts.OnSettled != nil {
				opts.OnSettled(s)
			}
			l.Refresh(l.ctx)
		},
	})
	l.stops = append(l.stops, l.cache.Subscribe(func(optimistic.Snapshot[record.Task]) {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.publishLocked()
	}))
	return l
}

// Mutator returns the mutator whose changes show up in the results.
func (l *Live) Mutator() *optimistic.Mutator[record.Task] {
	return l.mutator
}

// Cache returns the cache holding the results.
func (l *Live) Cache() *optimistic.Cache[record.Task] {
	return l.cache
}

// Limit returns the result ceiling.
func (l *Live) Limit() int {
	return l.limit
}

// Request is an issued query.
type Request struct {
	Token uint64

	done chan struct{}
	err  error
}

// Done is closed once the request has landed or been dropped.
func (r *Request) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the request has been handled. It returns the query's
// error, ErrStale if a newer request superseded it, or ctx's error.
func (r *Request) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Request) finish(err error) {
	r.err = err
	close(r.done)
}

// Set changes the query parameters and issues a request for them.
func (l *Live) Set(ctx context.Context, spaceID, text string) *Request {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.spaceID, l.text, l.issued = spaceID, text, true
	return l.issueLocked(ctx)
}

// Refresh re-issues the current query. Before the first Set it does
// nothing.
func (l *Live) Refresh(ctx context.Context) *Request {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.issued {
		r := &Request{done: make(chan struct{})}
		r.finish(nil)
		return r
	}
	return l.issueLocked(ctx)
}

func (l *Live) issueLocked(ctx context.Context) *Request {
	l.token++
	l.loading = true
	r := &Request{Token: l.token, done: make(chan struct{})}
	q := QueryFor(l.spaceID, l.text, l.limit)
	asOf := l.cache.Epoch()
	l.publishLocked()

	l.logger.Debug("catalog query", "token", r.Token, "space", q.Filter.SpaceID, "text", q.Filter.TitleContains)
	go func() {
		tasks, err := l.finder.FindTasks(ctx, q)
		r.finish(l.land(r.Token, q, asOf, tasks, err))
	}()
	return r
}

func (l *Live) land(token uint64, q record.Query, asOf uint64, tasks []record.Task, err error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if token != l.token {
		l.logger.Debug("dropped stale catalog results", "token", token, "latest", l.token)
		return ErrStale
	}
	l.loading = false
	if err != nil {
		err = record.Transient(record.EntityTask, err)
		l.logger.Warn("catalog query failed", "err", err)
		l.err = err
		l.publishLocked()
		return err
	}
	l.err = nil
	l.cache.SetMatch(matcher(q))
	l.cache.SetBase(asOf, tasks)
	l.publishLocked()
	return nil
}

// Snapshot returns the current state.
func (l *Live) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Live) snapshotLocked() Snapshot {
	return Snapshot{
		Version: l.version,
		SpaceID: l.spaceID,
		Text:    l.text,
		Entries: l.cache.View(),
		Loading: l.loading,
		Err:     l.err,
	}
}

func (l *Live) publishLocked() {
	l.version++
	l.snapshots.Publish(l.version, l.snapshotLocked())
}

// Subscribe registers fn to receive snapshots in version order.
// Superseded snapshots may be skipped.
func (l *Live) Subscribe(fn func(Snapshot)) (cancel func()) {
	return l.snapshots.Subscribe(fn)
}

// Flush waits until every change so far has been delivered to subscribers.
func (l *Live) Flush() {
	l.cache.Flush()
	l.snapshots.Flush()
}

// Watch re-issues the query whenever the store reports a task change. It
// does nothing if the finder cannot report changes. Watching stops when
// ctx is done or the Live is closed.
func (l *Live) Watch(ctx context.Context) {
	n, ok := l.finder.(record.Notifier)
	if !ok {
		return
	}
	stop := n.Subscribe(func(c record.Change) {
		if c.Entity != "" && c.Entity != record.EntityTask {
			return
		}
		l.Refresh(ctx)
	})
	l.mu.Lock()
	l.stops = append(l.stops, stop)
	l.mu.Unlock()
	context.AfterFunc(ctx, stop)
}

// Close stops watching and revalidating. Outstanding mutations still settle.
func (l *Live) Close() {
	l.cancel()
	l.mu.Lock()
	stops := l.stops
	l.stops = nil
	l.mu.Unlock()
	for _, stop := range stops {
		stop()
	}
}
