package handlers

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jobsweep/backend/internal/domain"
)

// SessionService defines the session operations exposed over HTTP
type SessionService interface {
	StartSession(ctx context.Context, cfg domain.SearchConfig) (string, error)
	StopSession(ctx context.Context, id string) error
	Session(ctx context.Context, id string) (*domain.Session, error)
	Progress(id string) (domain.ProgressSnapshot, error)
}

// Message types accepted by POST /api/messages
const (
	MessageStartJobSearch    = "START_JOB_SEARCH"
	MessageStopScraping      = "STOP_SCRAPING"
	MessageGetSearchProgress = "GET_SEARCH_PROGRESS"
)

// Message is the generic UI request envelope
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type sessionRef struct {
	SessionID string `json:"sessionId"`
}

// SessionHandler handles session API requests
type SessionHandler struct {
	service SessionService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(service SessionService) *SessionHandler {
	return &SessionHandler{service: service}
}

// Start handles POST /api/sessions
func (h *SessionHandler) Start(c *fiber.Ctx) error {
	var cfg domain.SearchConfig
	if err := c.BodyParser(&cfg); err != nil {
		return badRequest(c, "Invalid request body")
	}
	return h.start(c, cfg)
}

func (h *SessionHandler) start(c *fiber.Ctx, cfg domain.SearchConfig) error {
	cfg.Keywords = strings.TrimSpace(cfg.Keywords)
	if cfg.Keywords == "" {
		return badRequest(c, "keywords is required")
	}

	id, err := h.service.StartSession(c.Context(), cfg)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"success":   true,
		"sessionId": id,
	})
}

// Stop handles POST /api/sessions/:id/stop
func (h *SessionHandler) Stop(c *fiber.Ctx) error {
	return h.stop(c, c.Params("id"))
}

func (h *SessionHandler) stop(c *fiber.Ctx, id string) error {
	if id == "" {
		return badRequest(c, "sessionId is required")
	}
	if err := h.service.StopSession(c.Context(), id); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"success":   true,
		"sessionId": id,
	})
}

// Get handles GET /api/sessions/:id
func (h *SessionHandler) Get(c *fiber.Ctx) error {
	s, err := h.service.Session(c.Context(), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(s)
}

// Progress handles GET /api/sessions/:id/progress
func (h *SessionHandler) Progress(c *fiber.Ctx) error {
	return h.progress(c, c.Params("id"))
}

func (h *SessionHandler) progress(c *fiber.Ctx, id string) error {
	if id == "" {
		return badRequest(c, "sessionId is required")
	}
	snap, err := h.service.Progress(id)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(snap)
}

// Message handles POST /api/messages, the generic UI message surface
func (h *SessionHandler) Message(c *fiber.Ctx) error {
	var msg Message
	if err := c.BodyParser(&msg); err != nil {
		return badRequest(c, "Invalid request body")
	}

	switch msg.Type {
	case MessageStartJobSearch:
		var cfg domain.SearchConfig
		if err := decodePayload(msg.Payload, &cfg); err != nil {
			return badRequest(c, "Invalid START_JOB_SEARCH payload")
		}
		return h.start(c, cfg)

	case MessageStopScraping:
		var ref sessionRef
		if err := decodePayload(msg.Payload, &ref); err != nil {
			return badRequest(c, "Invalid STOP_SCRAPING payload")
		}
		return h.stop(c, ref.SessionID)

	case MessageGetSearchProgress:
		var ref sessionRef
		if err := decodePayload(msg.Payload, &ref); err != nil {
			return badRequest(c, "Invalid GET_SEARCH_PROGRESS payload")
		}
		return h.progress(c, ref.SessionID)

	default:
		return badRequest(c, "Unknown message type: "+msg.Type)
	}
}

func decodePayload(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	return json.Unmarshal(raw, v)
}
