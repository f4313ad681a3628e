package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jobsweep/backend/internal/domain"
)

// ScrapingConfig describes the search in a backend submission
type ScrapingConfig struct {
	Country        string              `json:"country"`
	JobTitle       string              `json:"jobTitle"`
	Location       string              `json:"location"`
	Platforms      []domain.PlatformID `json:"platforms"`
	TotalJobsFound int                 `json:"totalJobsFound"`
}

// Submission is the body posted to the backend
type Submission struct {
	SessionID      string               `json:"sessionId"`
	Statistics     domain.JobStatistics `json:"statistics"`
	ScrapingConfig ScrapingConfig       `json:"scrapingConfig"`
	Jobs           []domain.JobRecord   `json:"jobs"`
}

// Backend posts finished sessions to the companion application's API
type Backend struct {
	url     string
	token   string
	timeout time.Duration
}

// NewBackend creates a backend client posting to url
func NewBackend(url, token string, timeout time.Duration) *Backend {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Backend{url: url, token: token, timeout: timeout}
}

// NewSubmission builds the backend body for a session
func NewSubmission(s *domain.Session, stats domain.JobStatistics) Submission {
	jobs := s.Jobs
	if jobs == nil {
		jobs = []domain.JobRecord{}
	}
	return Submission{
		SessionID:  s.ID,
		Statistics: stats,
		ScrapingConfig: ScrapingConfig{
			Country:        s.Config.Country,
			JobTitle:       s.Config.Keywords,
			Location:       s.Config.Location,
			Platforms:      s.Config.Platforms,
			TotalJobsFound: stats.TotalJobsFound,
		},
		Jobs: jobs,
	}
}

// Deliver implements Target
func (b *Backend) Deliver(ctx context.Context, s *domain.Session, stats domain.JobStatistics) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	timeout := b.timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}

	a := fiber.Post(b.url).
		JSON(NewSubmission(s, stats)).
		Timeout(timeout)
	if b.token != "" {
		a.Set(fiber.HeaderAuthorization, "Bearer "+b.token)
	}

	code, body, errs := a.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("post %s: %w", b.url, errs[0])
	}
	if code < 200 || code >= 300 {
		return fmt.Errorf("post %s: status %d: %s", b.url, code, snippet(body))
	}

	var ack struct {
		Success *bool  `json:"success"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &ack) == nil && ack.Success != nil && !*ack.Success {
		return fmt.Errorf("backend rejected submission: %s", ack.Error)
	}
	return nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
