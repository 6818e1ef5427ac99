// Package events is the connector's session observer: a registry of typed
// listeners notified when the connector becomes ready or a session starts.
package events

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/marcus/tdo/internal/auth"
)

// Kind names an event.
type Kind string

const (
	KindInitialized    Kind = "initialized"
	KindSessionStarted Kind = "sessionStarted"
)

// InitializedListener is notified once the connector has loaded its session.
type InitializedListener func() error

// SessionStartedListener is notified after a successful login.
type SessionStartedListener func(auth.Session) error

type entry[F any] struct {
	id int
	fn F
}

// Emitter holds listeners per event kind. Listeners run sequentially in
// registration order on the emitting goroutine. A listener that fails or
// panics is logged and does not stop the others.
type Emitter struct {
	mu             sync.Mutex
	nextID         int
	initialized    []entry[InitializedListener]
	sessionStarted []entry[SessionStartedListener]
}

// New returns an empty emitter.
func New() *Emitter {
	return &Emitter{}
}

// OnInitialized registers fn and returns a func that unregisters it.
func (e *Emitter) OnInitialized(fn InitializedListener) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.id()
	e.initialized = append(e.initialized, entry[InitializedListener]{id: id, fn: fn})
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.initialized = remove(e.initialized, id)
	}
}

// OnSessionStarted registers fn and returns a func that unregisters it.
func (e *Emitter) OnSessionStarted(fn SessionStartedListener) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.id()
	e.sessionStarted = append(e.sessionStarted, entry[SessionStartedListener]{id: id, fn: fn})
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.sessionStarted = remove(e.sessionStarted, id)
	}
}

// EmitInitialized notifies initialized listeners.
func (e *Emitter) EmitInitialized() {
	e.mu.Lock()
	listeners := append([]entry[InitializedListener](nil), e.initialized...)
	e.mu.Unlock()

	for _, l := range listeners {
		invoke(KindInitialized, l.id, func() error { return l.fn() })
	}
}

// EmitSessionStarted notifies sessionStarted listeners with a copy of sess.
func (e *Emitter) EmitSessionStarted(sess auth.Session) {
	e.mu.Lock()
	listeners := append([]entry[SessionStartedListener](nil), e.sessionStarted...)
	e.mu.Unlock()

	for _, l := range listeners {
		invoke(KindSessionStarted, l.id, func() error { return l.fn(sess) })
	}
}

// caller holds e.mu.
func (e *Emitter) id() int {
	e.nextID++
	return e.nextID
}

func remove[F any](entries []entry[F], id int) []entry[F] {
	out := entries[:0:0]
	for _, en := range entries {
		if en.id != id {
			out = append(out, en)
		}
	}
	return out
}

func invoke(kind Kind, id int, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("events: listener panicked", "event", kind, "listener", id, "panic", fmt.Sprint(r))
		}
	}()
	if err := fn(); err != nil {
		slog.Warn("events: listener failed", "event", kind, "listener", id, "err", err)
	}
}
