package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// setupSSEConnection sets the event stream headers. On failure it writes an error
// response and returns false.
func setupSSEConnection(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	return flusher, true
}

// sendSSEEvent writes one event and flushes it to the client.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	flusher.Flush()
}

// streamSSEEvents sends the initial snapshot and then relays events from b until a
// terminal event arrives or the client disconnects. When current reports no running
// job only the snapshot is sent.
func streamSSEEvents(w http.ResponseWriter, r *http.Request, b *EventBroadcaster, current func() (JobEvent, bool)) {
	flusher, ok := setupSSEConnection(w)
	if !ok {
		return
	}

	// Register before reading the snapshot so no event falls in between.
	eventCh := b.AddListener()
	defer b.RemoveListener(eventCh)

	initial, running := current()
	sendSSEEvent(w, flusher, EventStatus, initial)
	if !running {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, event.Type, event)
			if event.Terminal() {
				return
			}
		}
	}
}
