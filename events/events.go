// Package events carries session signals from the request layer to whoever is
// presenting the session, typically a browser listening on an SSE stream.
package events

import (
	"slices"
	"sync"
	"time"
)

type Type string

const (
	// SessionInvalid is published once the session was cleared after an
	// unrecoverable session error. Redirect holds the sign-in target.
	SessionInvalid Type = "session_invalid"
	// SessionRefreshed is published after a successful token refresh.
	SessionRefreshed Type = "session_refreshed"
)

type Event struct {
	Type     Type      `json:"type"`
	Redirect string    `json:"redirect,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	At       time.Time `json:"at"`
}

// Broadcaster fans events out to subscribers. Publishing never blocks: a
// subscriber whose buffer is full misses the event.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
	bufferSize  int
	last        *Event
}

type BroadcasterOption func(*Broadcaster)

func WithBufferSize(n int) BroadcasterOption {
	return func(b *Broadcaster) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

func NewBroadcaster(options ...BroadcasterOption) *Broadcaster {
	b := &Broadcaster{
		subscribers: make(map[chan Event]struct{}),
		bufferSize:  8,
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// Subscribe registers a listener. When the most recent event has one of the
// replay types it is delivered first, so a listener connecting just after a
// sign-out still sees it. The returned func unsubscribes and closes the
// channel.
func (b *Broadcaster) Subscribe(replay ...Type) (<-chan Event, func()) {
	ch := make(chan Event, b.bufferSize)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	if b.last != nil && slices.Contains(replay, b.last.Type) {
		ch <- *b.last
	}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *Broadcaster) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = &ev
	for ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Last returns the most recent event, if any.
func (b *Broadcaster) Last() (Event, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.last == nil {
		return Event{}, false
	}
	return *b.last, true
}

// Subscribers returns the number of active listeners.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
