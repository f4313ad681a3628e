package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jobsweep/backend/internal/domain"
)

// PageSource reads a tab's rendered document
type PageSource interface {
	PageHTML(ctx context.Context, tabID string) (html string, pageURL string, err error)
}

// ChromeOptions tunes how long the agent waits for result cards to render
type ChromeOptions struct {
	// Attempts is how many times the DOM is read while no cards are found
	Attempts int
	// Interval separates the reads
	Interval time.Duration
}

// ChromeAgent is a Transport that scrapes the tab's live DOM with the
// platform's parser and replies asynchronously
type ChromeAgent struct {
	pages     PageSource
	parsers   map[domain.PlatformID]Parser
	residency ResidencyPredicate
	opts      ChromeOptions
	logger    *zap.Logger
}

// NewChromeAgent creates a new DOM-reading agent
func NewChromeAgent(pages PageSource, parsers map[domain.PlatformID]Parser, residency ResidencyPredicate, opts ChromeOptions, logger *zap.Logger) *ChromeAgent {
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if residency == nil {
		residency = KeywordResidency(DefaultResidencyTerms)
	}
	return &ChromeAgent{
		pages:     pages,
		parsers:   parsers,
		residency: residency,
		opts:      opts,
		logger:    logger.Named("agent"),
	}
}

// Send implements Transport
func (a *ChromeAgent) Send(ctx context.Context, tabID string, cmd Command, reply Inbox) error {
	if cmd.Command != CommandScrapePage {
		return fmt.Errorf("unknown agent command %q", cmd.Command)
	}
	parser, ok := a.parsers[cmd.Platform]
	if !ok {
		return fmt.Errorf("%w: no parser for %s", domain.ErrUnsupportedPlatform, cmd.Platform)
	}

	go a.scrape(ctx, tabID, cmd, parser, reply)
	return nil
}

func (a *ChromeAgent) scrape(ctx context.Context, tabID string, cmd Command, parser Parser, reply Inbox) {
	resp := Response{RequestID: cmd.RequestID, TabID: tabID}

	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Parser panicked",
				zap.String("platform", string(cmd.Platform)),
				zap.Int("page", cmd.PageNumber),
				zap.Any("panic", r),
			)
			resp.Jobs = nil
			resp.NextPageURL = nil
			resp.Error = fmt.Sprintf("parser panic: %v", r)
		}
		reply.Deliver(resp)
	}()

	page, err := a.extract(ctx, tabID, parser)
	if err != nil {
		resp.Error = err.Error()
		return
	}

	jobs := page.Jobs
	if cmd.MaxJobs > 0 && len(jobs) > cmd.MaxJobs {
		jobs = jobs[:cmd.MaxJobs]
	}
	now := time.Now()
	for i := range jobs {
		jobs[i].Platform = cmd.Platform
		jobs[i].ExtractedAt = now
		jobs[i].RequiresResidency = a.residency(jobs[i].Description)
	}

	resp.Jobs = jobs
	resp.NextPageURL = optional(page.NextPageURL)

	a.logger.Debug("Scraped page",
		zap.String("platform", string(cmd.Platform)),
		zap.Int("page", cmd.PageNumber),
		zap.Int("jobs", len(jobs)),
		zap.Bool("has_next", resp.NextPageURL != nil),
	)
}

// extract reads and parses the DOM, re-reading while the result list has
// not rendered yet
func (a *ChromeAgent) extract(ctx context.Context, tabID string, parser Parser) (*Page, error) {
	for attempt := 1; ; attempt++ {
		html, pageURL, err := a.pages.PageHTML(ctx, tabID)
		if err != nil {
			return nil, err
		}
		page, err := ParseHTML(parser, html, pageURL)
		if err != nil {
			return nil, err
		}
		if len(page.Jobs) > 0 || page.NextPageURL != "" || attempt >= a.opts.Attempts {
			return page, nil
		}

		t := time.NewTimer(a.opts.Interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}
