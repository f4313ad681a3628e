package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jobsweep/backend/internal/browser"
	"github.com/jobsweep/backend/internal/domain"
	"github.com/jobsweep/backend/internal/platform"
)

type fakeTabs struct {
	mu        sync.Mutex
	opened    []browser.Tab
	closed    []browser.Tab
	navigated []string
	loadErr   error
}

func (f *fakeTabs) Open(_ context.Context, url string, _ browser.Layout) (browser.Tab, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tab := browser.Tab{ID: fmt.Sprintf("tab-%d", len(f.opened)+1), WindowID: int64(len(f.opened) + 1)}
	f.opened = append(f.opened, tab)
	f.navigated = append(f.navigated, url)
	return tab, nil
}

func (f *fakeTabs) WaitForLoad(context.Context, string, time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadErr
}

func (f *fakeTabs) Navigate(_ context.Context, _ browser.Tab, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigated = append(f.navigated, url)
	return nil
}

func (f *fakeTabs) ShowOverlay(context.Context, string) {}

func (f *fakeTabs) Close(_ context.Context, tab browser.Tab) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, tab)
}

// pageScript returns the scripted result for each page number; pages
// beyond the script fail the test
type pageScript struct {
	mu     sync.Mutex
	calls  []int
	pages  map[int]*PageResult
	errs   map[int]error
	before func(page int)
}

func (p *pageScript) ScrapePage(_ context.Context, req PageRequest) (*PageResult, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req.PageNumber)
	before := p.before
	p.mu.Unlock()

	if before != nil {
		before(req.PageNumber)
	}
	if err, ok := p.errs[req.PageNumber]; ok {
		return nil, domain.NewPlatformError(req.Platform, req.PageNumber, err)
	}
	if res, ok := p.pages[req.PageNumber]; ok {
		return res, nil
	}
	return nil, fmt.Errorf("unexpected page %d", req.PageNumber)
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (e *eventLog) add(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, s)
}

func (e *eventLog) PlatformStarted(_ string, p domain.PlatformID) { e.add("started:" + string(p)) }
func (e *eventLog) PageScraped(_ string, p domain.PlatformID, page, jobs int, hasNext bool) {
	e.add(fmt.Sprintf("page:%s:%d:%d:%t", p, page, jobs, hasNext))
}
func (e *eventLog) PlatformCompleted(_ string, p domain.PlatformID) { e.add("completed:" + string(p)) }
func (e *eventLog) PlatformFailed(_ string, p domain.PlatformID, err error) {
	e.add("failed:" + string(p))
}

type testOwner struct {
	mu       sync.Mutex
	status   domain.SessionStatus
	tracked  map[string]bool
	released []string
}

func newTestOwner() *testOwner {
	return &testOwner{status: domain.SessionStatusRunning, tracked: make(map[string]bool)}
}

func (o *testOwner) Status() domain.SessionStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

func (o *testOwner) setStatus(s domain.SessionStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status = s
}

func (o *testOwner) TabOpened(tab browser.Tab) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tracked[tab.ID] = true
}

func (o *testOwner) TabReleased(tab browser.Tab) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.tracked, tab.ID)
	o.released = append(o.released, tab.ID)
}

func jobs(n int) []domain.JobRecord {
	out := make([]domain.JobRecord, n)
	for i := range out {
		out[i] = domain.JobRecord{Title: fmt.Sprintf("job %d", i)}
	}
	return out
}

func cursor(s string) *string { return &s }

func newTestLoop(tabs *fakeTabs, pages *pageScript, events *eventLog) *Loop {
	return NewLoop(tabs, pages, platform.NewDefaultRegistry(time.Second, "au"), events,
		LoopOptions{PageLoadTimeout: time.Second}, zap.NewNop())
}

func seekLoop() LoopRequest {
	return LoopRequest{
		SessionID: "s1",
		Platform:  domain.PlatformSeek,
		Query:     platform.Query{Keywords: "engineer"},
		Layout:    browser.Layout{Index: 0, Total: 1},
	}
}

func TestLoop_StopsWhenCursorRunsOut(t *testing.T) {
	tabs := &fakeTabs{}
	pages := &pageScript{pages: map[int]*PageResult{
		1: {Jobs: jobs(2), NextPageURL: cursor("https://seek/p2")},
		2: {Jobs: jobs(2), NextPageURL: cursor("https://seek/p3")},
		3: {Jobs: jobs(1)},
	}}
	events := &eventLog{}
	owner := newTestOwner()

	out := newTestLoop(tabs, pages, events).Run(context.Background(), seekLoop(), owner)

	assert.Equal(t, StateFinished, out.State)
	assert.Equal(t, 3, out.Pages)
	assert.Equal(t, 5, out.Jobs)
	assert.Equal(t, []int{1, 2, 3}, pages.calls)
	assert.Equal(t, []string{
		"started:seek",
		"page:seek:1:2:true",
		"page:seek:2:2:true",
		"page:seek:3:1:false",
		"completed:seek",
	}, events.events)

	assert.Equal(t, []string{
		"https://www.seek.com.au/engineer-jobs",
		"https://seek/p2",
		"https://seek/p3",
	}, tabs.navigated)
	assert.Equal(t, tabs.opened, tabs.closed)
	assert.Empty(t, owner.tracked)
}

func TestLoop_StopBeforeNextPage(t *testing.T) {
	tabs := &fakeTabs{}
	owner := newTestOwner()
	pages := &pageScript{pages: map[int]*PageResult{
		1: {Jobs: jobs(1), NextPageURL: cursor("https://seek/p2")},
		2: {Jobs: jobs(1), NextPageURL: cursor("https://seek/p3")},
		3: {Jobs: jobs(1)},
	}}
	pages.before = func(page int) {
		if page == 2 {
			// flips after page 2 started but before its result is known
			owner.setStatus(domain.SessionStatusStopped)
		}
	}
	events := &eventLog{}

	out := newTestLoop(tabs, pages, events).Run(context.Background(), seekLoop(), owner)

	assert.Equal(t, StateStopped, out.State)
	assert.Equal(t, 2, out.Pages)
	assert.Equal(t, []int{1, 2}, pages.calls)
	assert.NotContains(t, events.events, "completed:seek")
	assert.Len(t, tabs.closed, 1)
}

func TestLoop_StatusCheckedAtTopOfPage(t *testing.T) {
	tabs := &fakeTabs{}
	owner := newTestOwner()
	owner.setStatus(domain.SessionStatusStopped)
	pages := &pageScript{}

	out := newTestLoop(tabs, pages, &eventLog{}).Run(context.Background(), seekLoop(), owner)

	assert.Equal(t, StateStopped, out.State)
	assert.Empty(t, pages.calls)
	assert.Len(t, tabs.closed, 1)
}

func TestLoop_PageFailure(t *testing.T) {
	tabs := &fakeTabs{}
	pages := &pageScript{
		pages: map[int]*PageResult{1: {Jobs: jobs(3), NextPageURL: cursor("https://seek/p2")}},
		errs:  map[int]error{2: domain.ErrPageScrapeTimeout},
	}
	events := &eventLog{}

	out := newTestLoop(tabs, pages, events).Run(context.Background(), seekLoop(), newTestOwner())

	assert.Equal(t, StateFailed, out.State)
	assert.ErrorIs(t, out.Err, domain.ErrPageScrapeTimeout)
	assert.Equal(t, 1, out.Pages)
	assert.Equal(t, 3, out.Jobs)
	assert.Equal(t, "failed:seek", events.events[len(events.events)-1])
	assert.Len(t, tabs.closed, 1)
}

func TestLoop_LoadFailureClosesTab(t *testing.T) {
	tabs := &fakeTabs{loadErr: domain.ErrTabLoadTimeout}
	pages := &pageScript{}
	events := &eventLog{}

	out := newTestLoop(tabs, pages, events).Run(context.Background(), seekLoop(), newTestOwner())

	assert.Equal(t, StateFailed, out.State)
	assert.True(t, errors.Is(out.Err, domain.ErrTabLoadTimeout))

	var perr *domain.PlatformError
	require.True(t, errors.As(out.Err, &perr))
	assert.Equal(t, domain.PlatformSeek, perr.Platform)
	assert.Empty(t, pages.calls)
	assert.Len(t, tabs.closed, 1)
}

func TestLoop_CancelledContextStops(t *testing.T) {
	tabs := &fakeTabs{}
	pages := &pageScript{pages: map[int]*PageResult{1: {NextPageURL: cursor("https://seek/p2")}}}
	ctx, cancel := context.WithCancel(context.Background())
	pages.before = func(int) { cancel() }

	loop := NewLoop(tabs, pages, platform.NewDefaultRegistry(time.Second, "au"), &eventLog{},
		LoopOptions{PageLoadTimeout: time.Second, InterPageDelay: time.Hour}, zap.NewNop())
	out := loop.Run(ctx, seekLoop(), newTestOwner())

	assert.Equal(t, StateStopped, out.State)
	assert.Equal(t, []int{1}, pages.calls)
	assert.Len(t, tabs.closed, 1)
}
