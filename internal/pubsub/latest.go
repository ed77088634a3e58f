package pubsub

import "sync"

// Latest delivers versioned values to subscribers in version order,
// skipping any value that was superseded before it could be delivered.
// Delivery happens on a single goroutine that runs only while there is
// something to deliver, so subscribers may publish again without
// deadlocking.
type Latest[T any] struct {
	hub Hub[T]

	mu      sync.Mutex
	version uint64
	value   T
	dirty   bool
	running bool
	idle    *sync.Cond
}

// Subscribe registers fn. It is called with each delivered value.
func (l *Latest[T]) Subscribe(fn func(T)) (cancel func()) {
	return l.hub.Subscribe(fn)
}

// Publish offers v as the value at version. Versions at or below the last
// published one are dropped.
func (l *Latest[T]) Publish(version uint64, v T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if version <= l.version {
		return
	}
	l.version = version
	l.value = v
	l.dirty = true
	if !l.running {
		l.running = true
		go l.deliver()
	}
}

func (l *Latest[T]) deliver() {
	for {
		l.mu.Lock()
		if !l.dirty {
			l.running = false
			if l.idle != nil {
				l.idle.Broadcast()
			}
			l.mu.Unlock()
			return
		}
		v := l.value
		l.dirty = false
		l.mu.Unlock()

		l.hub.Publish(v)
	}
}

// Flush blocks until every published value has been delivered or skipped.
func (l *Latest[T]) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.idle == nil {
		l.idle = sync.NewCond(&l.mu)
	}
	for l.running {
		l.idle.Wait()
	}
}

// Version returns the last published version.
func (l *Latest[T]) Version() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.version
}
