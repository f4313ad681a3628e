package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jobsweep/backend/internal/browser"
	"github.com/jobsweep/backend/internal/domain"
	"github.com/jobsweep/backend/internal/platform"
)

// LoopState is the state of a platform loop
type LoopState string

const (
	StateStarting LoopState = "starting"
	StateScraping LoopState = "scraping"
	StateFinished LoopState = "finished"
	StateStopped  LoopState = "stopped"
	StateFailed   LoopState = "failed"
)

// Tabs provisions and reclaims the loop's tab
type Tabs interface {
	Open(ctx context.Context, url string, layout browser.Layout) (browser.Tab, error)
	WaitForLoad(ctx context.Context, tabID string, timeout time.Duration) error
	Navigate(ctx context.Context, tab browser.Tab, url string) error
	ShowOverlay(ctx context.Context, tabID string)
	Close(ctx context.Context, tab browser.Tab)
}

// PageScraper scrapes one page
type PageScraper interface {
	ScrapePage(ctx context.Context, req PageRequest) (*PageResult, error)
}

// URLBuilder builds a platform's first result page
type URLBuilder interface {
	URLFor(p domain.PlatformID, q platform.Query) (string, error)
}

// EventSink receives platform lifecycle events
type EventSink interface {
	PlatformStarted(sessionID string, p domain.PlatformID)
	PageScraped(sessionID string, p domain.PlatformID, page, jobs int, hasNext bool)
	PlatformCompleted(sessionID string, p domain.PlatformID)
	PlatformFailed(sessionID string, p domain.PlatformID, err error)
}

// Owner is the session a loop runs for
type Owner interface {
	// Status is polled at the top of every page
	Status() domain.SessionStatus
	TabOpened(tab browser.Tab)
	// TabReleased is called before the loop closes its own tab
	TabReleased(tab browser.Tab)
}

// LoopRequest describes one platform loop
type LoopRequest struct {
	SessionID string
	Platform  domain.PlatformID
	Query     platform.Query
	Layout    browser.Layout
}

// Outcome is how a loop ended
type Outcome struct {
	State LoopState
	Pages int
	Jobs  int
	Err   error
}

// LoopOptions configures page pacing
type LoopOptions struct {
	PageLoadTimeout time.Duration
	InterPageDelay  time.Duration
}

// Loop paginates one platform inside one tab
type Loop struct {
	tabs   Tabs
	pages  PageScraper
	urls   URLBuilder
	events EventSink
	opts   LoopOptions
	logger *zap.Logger
}

// NewLoop creates a new platform loop runner
func NewLoop(tabs Tabs, pages PageScraper, urls URLBuilder, events EventSink, opts LoopOptions, logger *zap.Logger) *Loop {
	if opts.PageLoadTimeout <= 0 {
		opts.PageLoadTimeout = 30 * time.Second
	}
	return &Loop{
		tabs:   tabs,
		pages:  pages,
		urls:   urls,
		events: events,
		opts:   opts,
		logger: logger.Named("loop"),
	}
}

// Run drives the platform until its cursor is exhausted, a page fails or
// the owner stops running. The tab is closed on every path. Failures are
// reported through the event sink and the outcome, never returned.
func (l *Loop) Run(ctx context.Context, req LoopRequest, owner Owner) Outcome {
	log := l.logger.With(
		zap.String("session_id", req.SessionID),
		zap.String("platform", string(req.Platform)),
	)
	out := Outcome{State: StateStarting}

	fail := func(err error) Outcome {
		if stopped(ctx, owner) {
			out.State = StateStopped
			return out
		}
		var perr *domain.PlatformError
		if !errors.As(err, &perr) {
			err = domain.NewPlatformError(req.Platform, out.Pages+1, err)
		}
		out.State = StateFailed
		out.Err = err
		log.Warn("Platform failed", zap.Int("pages", out.Pages), zap.Error(err))
		l.events.PlatformFailed(req.SessionID, req.Platform, err)
		return out
	}

	url, err := l.urls.URLFor(req.Platform, req.Query)
	if err != nil {
		return fail(err)
	}

	l.events.PlatformStarted(req.SessionID, req.Platform)

	tab, err := l.tabs.Open(ctx, url, req.Layout)
	if err != nil {
		return fail(err)
	}
	owner.TabOpened(tab)
	defer func() {
		owner.TabReleased(tab)
		l.tabs.Close(ctx, tab)
	}()

	if err := l.tabs.WaitForLoad(ctx, tab.ID, l.opts.PageLoadTimeout); err != nil {
		return fail(err)
	}
	l.tabs.ShowOverlay(ctx, tab.ID)

	out.State = StateScraping
	for page := 1; ; page++ {
		if stopped(ctx, owner) {
			log.Info("Session no longer running, stopping platform", zap.Int("pages", out.Pages))
			out.State = StateStopped
			return out
		}

		res, err := l.pages.ScrapePage(ctx, PageRequest{
			SessionID:  req.SessionID,
			TabID:      tab.ID,
			Platform:   req.Platform,
			PageNumber: page,
		})
		if err != nil {
			return fail(err)
		}

		out.Pages = page
		out.Jobs += len(res.Jobs)
		l.events.PageScraped(req.SessionID, req.Platform, page, len(res.Jobs), res.NextPageURL != nil)

		if res.NextPageURL == nil {
			out.State = StateFinished
			log.Info("Platform finished", zap.Int("pages", out.Pages), zap.Int("jobs", out.Jobs))
			l.events.PlatformCompleted(req.SessionID, req.Platform)
			return out
		}

		if stopped(ctx, owner) {
			out.State = StateStopped
			return out
		}
		if err := l.advance(ctx, tab, *res.NextPageURL); err != nil {
			return fail(domain.NewPlatformError(req.Platform, page+1, err))
		}
	}
}

// advance loads the next page and paces the request rate
func (l *Loop) advance(ctx context.Context, tab browser.Tab, next string) error {
	if err := l.tabs.Navigate(ctx, tab, next); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	if err := l.tabs.WaitForLoad(ctx, tab.ID, l.opts.PageLoadTimeout); err != nil {
		return err
	}
	l.tabs.ShowOverlay(ctx, tab.ID)
	return sleep(ctx, l.opts.InterPageDelay)
}

func stopped(ctx context.Context, owner Owner) bool {
	return ctx.Err() != nil || owner.Status() != domain.SessionStatusRunning
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
