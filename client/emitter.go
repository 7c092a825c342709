package client

import (
	"fmt"
	"sync"

	auth "github.com/goliatone/go-admin-auth"
)

// Listener receives the authenticated flag on every auth state change
type Listener func(authenticated bool)

type subscription struct {
	id       uint64
	listener Listener
}

// Emitter delivers auth notifications in the order they were queued.
// Delivery is serialized: a listener that triggers another change sees
// that change delivered after it returns.
type Emitter struct {
	mu        sync.Mutex
	nextID    uint64
	listeners []subscription
	queue     []bool
	flushing  bool
	logger    auth.Logger
}

func NewEmitter() *Emitter {
	return &Emitter{}
}

// WithLogger sets the logger used to report listener panics
func (e *Emitter) WithLogger(logger auth.Logger) *Emitter {
	e.mu.Lock()
	e.logger = logger
	e.mu.Unlock()
	return e
}

// Subscribe adds listener and returns a function removing it
func (e *Emitter) Subscribe(listener Listener) func() {
	if listener == nil {
		return func() {}
	}

	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.listeners = append(e.listeners, subscription{id: id, listener: listener})
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			for i, s := range e.listeners {
				if s.id == id {
					e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Enqueue records a notification without delivering it
func (e *Emitter) Enqueue(authenticated bool) {
	e.mu.Lock()
	e.queue = append(e.queue, authenticated)
	e.mu.Unlock()
}

// Flush delivers queued notifications. If another goroutine (or an
// outer call on the same stack) is already flushing, it returns at once
// and the active flush picks up the queued values.
func (e *Emitter) Flush() {
	e.mu.Lock()
	if e.flushing {
		e.mu.Unlock()
		return
	}
	e.flushing = true
	defer func() {
		e.mu.Lock()
		e.flushing = false
		e.mu.Unlock()
	}()

	for len(e.queue) > 0 {
		value := e.queue[0]
		e.queue = e.queue[1:]
		listeners := append([]subscription(nil), e.listeners...)
		logger := e.logger
		e.mu.Unlock()

		for _, s := range listeners {
			e.deliver(logger, s, value)
		}

		e.mu.Lock()
	}
	e.mu.Unlock()
}

// deliver isolates listeners from each other: a panic is logged and the
// remaining listeners still run.
func (e *Emitter) deliver(logger auth.Logger, s subscription, value bool) {
	defer func() {
		if r := recover(); r != nil && logger != nil {
			logger.Error("auth listener panicked", "listener", s.id, "panic", fmt.Sprint(r))
		}
	}()
	s.listener(value)
}
