package handlers

import (
	"sync"
	"time"
)

// sessionRetention keeps finished sessions around so a client that lost its
// connection can reattach and replay the full event history.
const sessionRetention = 10 * time.Minute

// Event is one server-sent event of a processing session.
type Event struct {
	Name string
	Data any
}

// ProgressHub fans processing events out to SSE subscribers. Each processing
// run gets a session keyed by a random ID; events are buffered so a
// subscriber that attaches after the run started still sees every event.
type ProgressHub struct {
	mu       sync.Mutex
	sessions map[string]*progressSession
}

type progressSession struct {
	history []Event
	subs    map[chan Event]struct{}
	done    bool
}

// NewProgressHub creates an empty hub.
func NewProgressHub() *ProgressHub {
	return &ProgressHub{sessions: make(map[string]*progressSession)}
}

// Open registers a new session.
func (h *ProgressHub) Open(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[sessionID] = &progressSession{
		subs: make(map[chan Event]struct{}),
	}
}

// Publish records an event and delivers it to current subscribers. Slow
// subscribers that have fallen a full buffer behind miss the event; they
// still have the history on reconnect.
func (h *ProgressHub) Publish(sessionID, name string, data any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	session, ok := h.sessions[sessionID]
	if !ok || session.done {
		return
	}

	event := Event{Name: name, Data: data}
	session.history = append(session.history, event)
	for sub := range session.subs {
		select {
		case sub <- event:
		default:
		}
	}
}

// Subscribe attaches to a session, replaying its history first. The returned
// cancel function must be called when the subscriber disconnects. ok is false
// for unknown sessions.
func (h *ProgressHub) Subscribe(sessionID string) (events <-chan Event, cancel func(), ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	session, found := h.sessions[sessionID]
	if !found {
		return nil, nil, false
	}

	ch := make(chan Event, len(session.history)+64)
	for _, event := range session.history {
		ch <- event
	}

	if session.done {
		close(ch)
		return ch, func() {}, true
	}

	session.subs[ch] = struct{}{}
	cancel = func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, still := session.subs[ch]; still {
			delete(session.subs, ch)
			close(ch)
		}
	}
	return ch, cancel, true
}

// End marks a session finished, closing subscriber channels. The session
// stays available for history replay for a retention window.
func (h *ProgressHub) End(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	session, ok := h.sessions[sessionID]
	if !ok || session.done {
		return
	}
	session.done = true
	for sub := range session.subs {
		close(sub)
		delete(session.subs, sub)
	}

	time.AfterFunc(sessionRetention, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.sessions, sessionID)
	})
}
