package session

import (
	"context"
	"sync"
	"time"

	"github.com/jobsweep/backend/internal/browser"
	"github.com/jobsweep/backend/internal/domain"
)

// run is the live state of one running session: the session record, the
// tabs its loops hold, and the handles that tear it down. It implements
// scraper.Owner.
type run struct {
	cancel context.CancelFunc
	// settled is closed once the finished session has been retained
	settled chan struct{}

	mu       sync.Mutex
	session  *domain.Session
	tabs     map[string]browser.Tab
	debounce *time.Timer
	// closedOutside is set when the last tracked tab was closed from outside
	closedOutside bool
	// lastTabLost is set when the most recently settled loop lost its tab
	lastTabLost bool
}

func newRun(s *domain.Session, cancel context.CancelFunc) *run {
	return &run{
		session: s,
		cancel:  cancel,
		settled: make(chan struct{}),
		tabs:    make(map[string]browser.Tab),
	}
}

func (r *run) id() string {
	return r.session.ID
}

// Status implements scraper.Owner
func (r *run) Status() domain.SessionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session.Status
}

// TabOpened implements scraper.Owner. Tabs opened after the session ended
// are left to their loop, which closes them on its next status check.
func (r *run) TabOpened(tab browser.Tab) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session.Status.IsTerminal() {
		return
	}
	r.tabs[tab.ID] = tab
	r.closedOutside = false
	if r.debounce != nil {
		r.debounce.Stop()
		r.debounce = nil
	}
}

// TabReleased implements scraper.Owner
func (r *run) TabReleased(tab browser.Tab) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tabs, tab.ID)
}

// tabRemoved forgets a tab closed from outside. It reports whether the tab
// was tracked and how many tracked tabs remain.
func (r *run) tabRemoved(tabID string) (tracked bool, remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tabs[tabID]; !ok {
		return false, len(r.tabs)
	}
	delete(r.tabs, tabID)
	r.closedOutside = len(r.tabs) == 0
	return true, len(r.tabs)
}

// loopSettled records whether a finished loop ended because its tab vanished
func (r *run) loopSettled(tabLost bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastTabLost = tabLost
}

// abandoned reports whether the session's windows are all gone: the last
// tracked tab was closed from outside, or the last loop to settle lost its tab
func (r *run) abandoned() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closedOutside || r.lastTabLost
}

func (r *run) tabCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tabs)
}

// schedule arms the auto-stop check, replacing any pending one
func (r *run) schedule(d time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session.Status.IsTerminal() {
		return
	}
	if r.debounce != nil {
		r.debounce.Stop()
	}
	r.debounce = time.AfterFunc(d, fn)
}

// finish is the terminal guard: the first caller moves the session to
// status and wins; later callers get false and must not emit anything.
func (r *run) finish(status domain.SessionStatus, errMsg string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session.Status.IsTerminal() {
		return false
	}
	r.session.Status = status
	r.session.EndTime = &now
	r.session.Error = errMsg
	return true
}

// release cancels every per-session wait and hands back the tracked tabs.
// Only the winner of finish calls it.
func (r *run) release() []browser.Tab {
	r.cancel()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.debounce != nil {
		r.debounce.Stop()
		r.debounce = nil
	}
	tabs := make([]browser.Tab, 0, len(r.tabs))
	for _, t := range r.tabs {
		tabs = append(tabs, t)
	}
	r.tabs = make(map[string]browser.Tab)
	return tabs
}

// snapshot returns a copy of the session record
func (r *run) snapshot() *domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session.Clone()
}

// seal stores the final jobs and progress on the session
func (r *run) seal(jobs []domain.JobRecord, progress domain.ProgressSnapshot) *domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session.Jobs = jobs
	r.session.Progress = progress
	return r.session.Clone()
}
