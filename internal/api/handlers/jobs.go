package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/jobsweep/backend/internal/domain"
	"github.com/jobsweep/backend/internal/store"
)

// JobCache reads the most recent session's jobs
type JobCache interface {
	Latest(ctx context.Context) (*store.LatestJobs, error)
}

// ArchiveReader lists archived sessions
type ArchiveReader interface {
	RecentSessions(ctx context.Context, limit int) ([]store.ArchivedSession, error)
}

// PlatformCatalog lists the supported job boards
type PlatformCatalog interface {
	Platforms() []domain.PlatformID
	Name(id domain.PlatformID) string
}

// JobsHandler serves cached and archived results
type JobsHandler struct {
	cache   JobCache
	archive ArchiveReader
	catalog PlatformCatalog
}

// NewJobsHandler creates a new jobs handler; archive may be nil
func NewJobsHandler(cache JobCache, archive ArchiveReader, catalog PlatformCatalog) *JobsHandler {
	return &JobsHandler{cache: cache, archive: archive, catalog: catalog}
}

// Latest handles GET /api/jobs/latest
func (h *JobsHandler) Latest(c *fiber.Ctx) error {
	latest, err := h.cache.Latest(c.Context())
	if err != nil {
		return errorResponse(c, err)
	}
	if latest == nil {
		return c.JSON(fiber.Map{
			"sessionId": nil,
			"jobs":      []domain.JobRecord{},
		})
	}
	return c.JSON(latest)
}

// Archived handles GET /api/archive/sessions
func (h *JobsHandler) Archived(c *fiber.Ctx) error {
	if h.archive == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":   "archive_disabled",
			"message": "Session archive is not configured",
		})
	}

	sessions, err := h.archive.RecentSessions(c.Context(), c.QueryInt("limit", 20))
	if err != nil {
		return errorResponse(c, err)
	}
	if sessions == nil {
		sessions = []store.ArchivedSession{}
	}
	return c.JSON(fiber.Map{
		"sessions": sessions,
	})
}

// Platforms handles GET /api/platforms
func (h *JobsHandler) Platforms(c *fiber.Ctx) error {
	ids := h.catalog.Platforms()
	out := make([]fiber.Map, 0, len(ids))
	for _, id := range ids {
		out = append(out, fiber.Map{"id": id, "name": h.catalog.Name(id)})
	}
	return c.JSON(fiber.Map{
		"platforms": out,
	})
}
