// Package scraper drives result pages through the in-page agent: a
// coordinator for single page round trips and a loop that paginates one
// platform inside one tab.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jobsweep/backend/internal/agent"
	"github.com/jobsweep/backend/internal/domain"
)

// TabChecker reports whether a tab can still receive commands
type TabChecker interface {
	Alive(ctx context.Context, tabID string) error
}

// Requester sends an agent command and waits for its correlated reply
type Requester interface {
	Request(ctx context.Context, tabID string, cmd agent.Command) (agent.Response, error)
}

// JobSink receives every scraped batch as soon as it arrives
type JobSink interface {
	AppendJobs(sessionID string, jobs []domain.JobRecord)
}

// Tuning supplies per-platform page timeouts and retry budgets
type Tuning interface {
	TimeoutFor(platform domain.PlatformID) time.Duration
	RetriesFor(platform domain.PlatformID) int
}

// PageRequest identifies the page to scrape
type PageRequest struct {
	SessionID  string
	TabID      string
	Platform   domain.PlatformID
	PageNumber int
}

// PageResult is one scraped page. A nil NextPageURL means no further pages.
type PageResult struct {
	Jobs        []domain.JobRecord
	NextPageURL *string
}

// Coordinator performs single page scrapes with a bounded wait
type Coordinator struct {
	tabs    TabChecker
	agent   Requester
	sink    JobSink
	tuning  Tuning
	maxJobs int
	logger  *zap.Logger
}

// NewCoordinator creates a new page scrape coordinator
func NewCoordinator(tabs TabChecker, requester Requester, sink JobSink, tuning Tuning, maxJobs int, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		tabs:    tabs,
		agent:   requester,
		sink:    sink,
		tuning:  tuning,
		maxJobs: maxJobs,
		logger:  logger.Named("coordinator"),
	}
}

// ScrapePage asks the agent in req.TabID for the current page. One timeout
// covers the whole page; timeouts are re-dispatched up to the platform's
// retry budget. Every error is a *domain.PlatformError.
func (c *Coordinator) ScrapePage(ctx context.Context, req PageRequest) (*PageResult, error) {
	fail := func(err error) (*PageResult, error) {
		return nil, domain.NewPlatformError(req.Platform, req.PageNumber, err)
	}

	if err := c.tabs.Alive(ctx, req.TabID); err != nil {
		return fail(err)
	}

	timeout := c.tuning.TimeoutFor(req.Platform)
	retries := c.tuning.RetriesFor(req.Platform)

	var resp agent.Response
	for attempt := 0; ; attempt++ {
		var err error
		resp, err = c.dispatch(ctx, req, timeout)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrPageScrapeTimeout) || attempt >= retries {
			return fail(err)
		}

		c.logger.Warn("Page scrape timed out, retrying",
			zap.String("session_id", req.SessionID),
			zap.String("platform", string(req.Platform)),
			zap.Int("page", req.PageNumber),
			zap.Int("attempt", attempt+1),
		)
		if err := c.tabs.Alive(ctx, req.TabID); err != nil {
			return fail(err)
		}
	}

	if resp.Error != "" {
		return fail(fmt.Errorf("%w: %s", domain.ErrAgentResponse, resp.Error))
	}

	if len(resp.Jobs) > 0 {
		c.sink.AppendJobs(req.SessionID, resp.Jobs)
	}

	next := resp.NextPageURL
	if next != nil && *next == "" {
		next = nil
	}
	return &PageResult{Jobs: resp.Jobs, NextPageURL: next}, nil
}

func (c *Coordinator) dispatch(ctx context.Context, req PageRequest, timeout time.Duration) (agent.Response, error) {
	pageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.agent.Request(pageCtx, req.TabID, agent.Command{
		Command:    agent.CommandScrapePage,
		Platform:   req.Platform,
		PageNumber: req.PageNumber,
		MaxJobs:    c.maxJobs,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return resp, fmt.Errorf("%w after %s", domain.ErrPageScrapeTimeout, timeout)
		}
		return resp, err
	}
	return resp, nil
}
