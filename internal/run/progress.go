package run

import (
	"sync"
	"time"
)

// ProgressEvent is one advisory progress notification. Emission is
// fire-and-forget: a missing or slow observer never stalls a stage.
type ProgressEvent struct {
	RunID     string    `json:"run_id"`
	Percent   int       `json:"percent"`
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier fans progress events out to at most one observer over a
// buffered channel. When the buffer is full the event is dropped.
type Notifier struct {
	mu     sync.Mutex
	ch     chan ProgressEvent
	closed bool
}

// NewNotifier creates a notifier with the given buffer size.
func NewNotifier(buffer int) *Notifier {
	if buffer <= 0 {
		buffer = 64
	}
	return &Notifier{ch: make(chan ProgressEvent, buffer)}
}

// Notify publishes an event without blocking.
func (n *Notifier) Notify(ev ProgressEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	select {
	case n.ch <- ev:
	default:
		// Observer is behind; advisory events are droppable.
	}
}

// Events returns the observer channel. It is closed by Close.
func (n *Notifier) Events() <-chan ProgressEvent {
	return n.ch
}

// Close stops the notifier. Buffered events remain readable.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.closed {
		n.closed = true
		close(n.ch)
	}
}
