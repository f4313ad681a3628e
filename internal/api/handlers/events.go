package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/jobsweep/backend/internal/domain"
	"github.com/jobsweep/backend/internal/progress"
)

// Subscriber hands out event subscriptions
type Subscriber interface {
	Subscribe(sessionID string) (<-chan domain.SessionEvent, func())
}

// ProgressReader returns the latest snapshot of a session
type ProgressReader interface {
	Progress(id string) (domain.ProgressSnapshot, error)
}

// EventsHandler streams session events as server-sent events
type EventsHandler struct {
	hub       Subscriber
	progress  ProgressReader
	heartbeat time.Duration
}

// NewEventsHandler creates a new SSE handler
func NewEventsHandler(hub Subscriber, progress ProgressReader, heartbeat time.Duration) *EventsHandler {
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	return &EventsHandler{hub: hub, progress: progress, heartbeat: heartbeat}
}

// Session handles GET /api/sessions/:id/events. The stream opens with the
// current snapshot and ends after the session's terminal event.
func (h *EventsHandler) Session(c *fiber.Ctx) error {
	id := c.Params("id")
	// subscribe before the snapshot so no event falls between the two
	events, cancel := h.hub.Subscribe(id)
	snap, err := h.progress.Progress(id)
	if err != nil {
		cancel()
		return errorResponse(c, err)
	}

	first := domain.SessionEvent{
		Type:      domain.EventProgress,
		SessionID: id,
		Progress:  &snap,
		Timestamp: time.Now(),
	}
	if snap.Status.IsTerminal() {
		cancel()
		return h.stream(c, &first, nil, func() {}, true)
	}
	return h.stream(c, &first, events, cancel, true)
}

// All handles GET /api/events, every session's events
func (h *EventsHandler) All(c *fiber.Ctx) error {
	events, cancel := h.hub.Subscribe(progress.AllSessions)
	return h.stream(c, nil, events, cancel, false)
}

func (h *EventsHandler) stream(c *fiber.Ctx, first *domain.SessionEvent, events <-chan domain.SessionEvent, cancel func(), endOnTerminal bool) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	heartbeat := h.heartbeat
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()

		if first != nil {
			if err := writeEvent(w, *first); err != nil {
				return
			}
			if first.Progress != nil && first.Progress.Status.IsTerminal() {
				return
			}
		}

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := writeEvent(w, ev); err != nil {
					return
				}
				if endOnTerminal && ev.Type != domain.EventProgress {
					return
				}
			case <-ticker.C:
				if _, err := w.WriteString(": ping\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))
	return nil
}

func writeEvent(w *bufio.Writer, ev domain.SessionEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return err
	}
	return w.Flush()
}
