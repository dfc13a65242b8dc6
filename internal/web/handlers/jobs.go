package handlers

import (
	"sync"

	"github.com/kozaktomas/face-recognizer/internal/constants"
	"github.com/kozaktomas/face-recognizer/internal/enrollment"
	"github.com/kozaktomas/face-recognizer/internal/service"
)

// Event types sent on the enrollment stream.
const (
	EventStatus   = "status"
	EventProgress = "progress"
	EventComplete = "complete"
	EventFailed   = "failed"
)

// JobEvent represents an event from an enrollment job.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Terminal reports whether no further events follow for the job.
func (e JobEvent) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventFailed
}

// statusEvent maps an enrollment snapshot onto its event.
func statusEvent(st service.Status) JobEvent {
	typ := EventProgress
	switch st.State {
	case enrollment.StateComplete:
		typ = EventComplete
	case enrollment.StateFailed:
		typ = EventFailed
	}
	return JobEvent{Type: typ, Message: st.StatusMessage, Data: st}
}

// EventBroadcaster fans job events out to SSE listeners. A slow listener drops
// events instead of blocking the job.
type EventBroadcaster struct {
	listeners []chan JobEvent
	closed    bool
	mu        sync.RWMutex
}

// AddListener adds an event listener. After Close it returns a closed channel.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, constants.EventChannelBuffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Listeners returns the number of registered listeners.
func (b *EventBroadcaster) Listeners() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Close closes every listener channel and rejects new ones.
func (b *EventBroadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, listener := range b.listeners {
		close(listener)
	}
	b.listeners = nil
	b.closed = true
}
