package pipeline

import (
	"sync"
	"time"
)

// ProgressEvent is one emission of the run's aggregate state.
type ProgressEvent struct {
	RunID         string
	Status        RunStatus
	TotalItems    int
	FinishedItems int
	CurrentItem   string
	CurrentStage  StageKind
	Percent       float64
	ETA           time.Duration
	Message       string
}

// hub fans progress events out to subscribers. Sends never block; a slow
// subscriber misses intermediate events and catches up on the next one.
type hub struct {
	mu     sync.Mutex
	subs   map[int]chan ProgressEvent
	nextID int
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[int]chan ProgressEvent)}
}

// subscribe returns a buffered event channel and a cancel function. The
// channel is closed when the run finishes or the subscription is cancelled.
func (h *hub) subscribe() (<-chan ProgressEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan ProgressEvent, 16)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
}

func (h *hub) publish(event ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for _, ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
