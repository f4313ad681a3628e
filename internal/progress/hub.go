package progress

import (
	"sync"

	"go.uber.org/zap"

	"github.com/jobsweep/backend/internal/domain"
)

// AllSessions subscribes to every session's events
const AllSessions = "*"

// Hub fans events out to in-process subscribers such as SSE streams.
// Slow subscribers lose events instead of blocking publishers.
type Hub struct {
	buffer int
	logger *zap.Logger

	mu     sync.Mutex
	subs   map[string]map[int]chan domain.SessionEvent
	nextID int
}

// NewHub creates a new hub with the given per-subscriber buffer
func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		buffer: buffer,
		logger: logger.Named("hub"),
		subs:   make(map[string]map[int]chan domain.SessionEvent),
	}
}

// Subscribe returns a channel of events for sessionID (or AllSessions) and a
// cancel func that closes it
func (h *Hub) Subscribe(sessionID string) (<-chan domain.SessionEvent, func()) {
	ch := make(chan domain.SessionEvent, h.buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[int]chan domain.SessionEvent)
	}
	h.subs[sessionID][id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[sessionID], id)
			if len(h.subs[sessionID]) == 0 {
				delete(h.subs, sessionID)
			}
			close(ch)
		})
	}
}

// Publish implements Publisher
func (h *Hub) Publish(ev domain.SessionEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.send(h.subs[ev.SessionID], ev)
	h.send(h.subs[AllSessions], ev)
}

// Subscribers returns the number of open subscriptions
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, s := range h.subs {
		n += len(s)
	}
	return n
}

func (h *Hub) send(subs map[int]chan domain.SessionEvent, ev domain.SessionEvent) {
	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
			h.logger.Debug("Dropping event for slow subscriber",
				zap.String("session_id", ev.SessionID),
				zap.String("type", string(ev.Type)),
			)
		}
	}
}
