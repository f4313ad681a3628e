// Package progress merges per-platform loop events into one session-wide
// snapshot and broadcasts it to observers.
package progress

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jobsweep/backend/internal/domain"
)

// Store persists snapshots so they survive a restart
type Store interface {
	SaveProgress(ctx context.Context, snap domain.ProgressSnapshot) error
	LoadProgress(ctx context.Context) ([]domain.ProgressSnapshot, error)
	DeleteProgress(ctx context.Context, sessionID string) error
}

// Publisher delivers events to observers. Publish must not block.
type Publisher interface {
	Publish(ev domain.SessionEvent)
}

// Options configures an Aggregator
type Options struct {
	// Order is the platform registration order used to pick the current platform
	Order []domain.PlatformID
	// Names maps platform ids to display names
	Names func(domain.PlatformID) string
	// PageRate caps page-level broadcasts per session per second; 0 disables the cap
	PageRate float64
}

type tracker struct {
	status    domain.SessionStatus
	order     []domain.PlatformID
	entries   map[domain.PlatformID]*domain.PlatformProgress
	limiter   *rate.Limiter
	updatedAt time.Time
}

// Aggregator owns per-session platform progress
type Aggregator struct {
	opts       Options
	store      Store
	publishers []Publisher
	logger     *zap.Logger

	mu       sync.Mutex
	sessions map[string]*tracker

	// latest unsaved snapshot per session, drained by Run
	persistMu sync.Mutex
	dirty     map[string]domain.ProgressSnapshot
	deleted   map[string]struct{}
	kick      chan struct{}
}

// NewAggregator creates a new progress aggregator. store may be nil.
func NewAggregator(opts Options, store Store, logger *zap.Logger, publishers ...Publisher) *Aggregator {
	if opts.Names == nil {
		opts.Names = func(id domain.PlatformID) string { return string(id) }
	}
	return &Aggregator{
		opts:       opts,
		store:      store,
		publishers: publishers,
		logger:     logger.Named("progress"),
		sessions:   make(map[string]*tracker),
		dirty:      make(map[string]domain.ProgressSnapshot),
		deleted:    make(map[string]struct{}),
		kick:       make(chan struct{}, 1),
	}
}

// Register starts tracking a session with every platform pending
func (a *Aggregator) Register(sessionID string, platforms []domain.PlatformID) domain.ProgressSnapshot {
	t := &tracker{
		status:  domain.SessionStatusRunning,
		order:   a.ordered(platforms),
		entries: make(map[domain.PlatformID]*domain.PlatformProgress, len(platforms)),
	}
	if a.opts.PageRate > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(a.opts.PageRate), 1)
	}
	for _, p := range t.order {
		t.entries[p] = &domain.PlatformProgress{
			Platform: p,
			Name:     a.opts.Names(p),
			Status:   domain.PlatformStatusPending,
		}
	}

	a.mu.Lock()
	a.sessions[sessionID] = t
	snap := a.recompute(sessionID, t)
	a.mu.Unlock()

	a.broadcast(domain.SessionEvent{Type: domain.EventProgress, SessionID: sessionID, Progress: &snap})
	return snap
}

// PlatformStarted marks the platform as scraping
func (a *Aggregator) PlatformStarted(sessionID string, p domain.PlatformID) {
	a.update(sessionID, p, true, func(e *domain.PlatformProgress) {
		e.Status = domain.PlatformStatusScraping
	})
}

// PageScraped records one page. Broadcasts are throttled per session.
func (a *Aggregator) PageScraped(sessionID string, p domain.PlatformID, page, jobs int, hasNext bool) {
	a.update(sessionID, p, false, func(e *domain.PlatformProgress) {
		e.Status = domain.PlatformStatusScraping
		e.CurrentPage = page
		e.JobsFound += jobs
		e.HasNextPage = hasNext
	})
}

// PlatformCompleted freezes the platform's totals
func (a *Aggregator) PlatformCompleted(sessionID string, p domain.PlatformID) {
	a.update(sessionID, p, true, func(e *domain.PlatformProgress) {
		e.Status = domain.PlatformStatusCompleted
		e.HasNextPage = false
	})
}

// PlatformFailed records the platform's error
func (a *Aggregator) PlatformFailed(sessionID string, p domain.PlatformID, err error) {
	a.update(sessionID, p, true, func(e *domain.PlatformProgress) {
		e.Status = domain.PlatformStatusError
		e.HasNextPage = false
		if err != nil {
			e.Error = err.Error()
		}
	})
}

// Finish moves the session to a terminal status and broadcasts the terminal
// event carrying jobs. Later platform events for the session are ignored.
func (a *Aggregator) Finish(sessionID string, status domain.SessionStatus, evType domain.EventType, jobs []domain.JobRecord, errMsg string) domain.ProgressSnapshot {
	a.mu.Lock()
	t, ok := a.sessions[sessionID]
	if !ok {
		a.mu.Unlock()
		return domain.ProgressSnapshot{SessionID: sessionID, Status: status}
	}
	t.status = status
	snap := a.recompute(sessionID, t)
	a.mu.Unlock()

	a.broadcast(domain.SessionEvent{
		Type:      evType,
		SessionID: sessionID,
		Progress:  &snap,
		Jobs:      jobs,
		Error:     errMsg,
	})
	return snap
}

// Snapshot returns the latest snapshot for a session
func (a *Aggregator) Snapshot(sessionID string) (domain.ProgressSnapshot, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.sessions[sessionID]
	if !ok {
		return domain.ProgressSnapshot{}, false
	}
	return a.snapshot(sessionID, t), true
}

// Remove forgets a session and its persisted progress
func (a *Aggregator) Remove(sessionID string) {
	a.mu.Lock()
	delete(a.sessions, sessionID)
	a.mu.Unlock()

	a.persistMu.Lock()
	delete(a.dirty, sessionID)
	a.deleted[sessionID] = struct{}{}
	a.persistMu.Unlock()
	a.signal()
}

// Restore reloads persisted snapshots. Sessions that were running when the
// process went away are marked stopped; their loops are gone.
func (a *Aggregator) Restore(ctx context.Context) ([]domain.ProgressSnapshot, error) {
	if a.store == nil {
		return nil, nil
	}
	snaps, err := a.store.LoadProgress(ctx)
	if err != nil {
		return nil, err
	}

	restored := make([]domain.ProgressSnapshot, 0, len(snaps))
	a.mu.Lock()
	for _, s := range snaps {
		if _, live := a.sessions[s.SessionID]; live {
			continue
		}
		t := &tracker{
			status:    s.Status,
			entries:   make(map[domain.PlatformID]*domain.PlatformProgress, len(s.Platforms)),
			updatedAt: s.UpdatedAt,
		}
		if !t.status.IsTerminal() {
			t.status = domain.SessionStatusStopped
		}
		for i := range s.Platforms {
			e := s.Platforms[i]
			t.order = append(t.order, e.Platform)
			t.entries[e.Platform] = &e
		}
		a.sessions[s.SessionID] = t
		restored = append(restored, a.recompute(s.SessionID, t))
	}
	a.mu.Unlock()

	a.logger.Info("Restored session progress", zap.Int("sessions", len(restored)))
	return restored, nil
}

// Run writes changed snapshots to the store until ctx ends, then flushes
func (a *Aggregator) Run(ctx context.Context) {
	if a.store == nil {
		return
	}
	for {
		select {
		case <-a.kick:
			a.Flush(ctx)
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			a.Flush(flushCtx)
			cancel()
			return
		}
	}
}

// Flush writes all pending snapshot changes
func (a *Aggregator) Flush(ctx context.Context) {
	if a.store == nil {
		return
	}
	a.persistMu.Lock()
	dirty, deleted := a.dirty, a.deleted
	a.dirty = make(map[string]domain.ProgressSnapshot)
	a.deleted = make(map[string]struct{})
	a.persistMu.Unlock()

	for id := range deleted {
		if err := a.store.DeleteProgress(ctx, id); err != nil {
			a.logger.Warn("Failed to delete progress", zap.String("session_id", id), zap.Error(err))
		}
	}
	for id, snap := range dirty {
		if err := a.store.SaveProgress(ctx, snap); err != nil {
			a.logger.Warn("Failed to persist progress", zap.String("session_id", id), zap.Error(err))
		}
	}
}

// update applies fn to a platform entry. Events for unknown sessions or
// platforms, for terminal sessions and for frozen entries are dropped.
func (a *Aggregator) update(sessionID string, p domain.PlatformID, lifecycle bool, fn func(*domain.PlatformProgress)) {
	a.mu.Lock()
	t, ok := a.sessions[sessionID]
	if !ok || t.status.IsTerminal() {
		a.mu.Unlock()
		return
	}
	e, ok := t.entries[p]
	if !ok || e.Status.IsDone() {
		a.mu.Unlock()
		return
	}
	fn(e)
	snap := a.recompute(sessionID, t)
	send := lifecycle || t.limiter == nil || t.limiter.Allow()
	a.mu.Unlock()

	if send {
		a.broadcast(domain.SessionEvent{Type: domain.EventProgress, SessionID: sessionID, Progress: &snap})
	}
}

// recompute refreshes the snapshot and queues it for persistence. Callers
// hold a.mu.
func (a *Aggregator) recompute(sessionID string, t *tracker) domain.ProgressSnapshot {
	t.updatedAt = time.Now()
	snap := a.snapshot(sessionID, t)

	if a.store != nil {
		a.persistMu.Lock()
		a.dirty[sessionID] = snap
		delete(a.deleted, sessionID)
		a.persistMu.Unlock()
		a.signal()
	}
	return snap
}

func (a *Aggregator) snapshot(sessionID string, t *tracker) domain.ProgressSnapshot {
	snap := domain.ProgressSnapshot{
		SessionID:      sessionID,
		Status:         t.status,
		TotalPlatforms: len(t.order),
		Errors:         []string{},
		Platforms:      make([]domain.PlatformProgress, 0, len(t.order)),
		UpdatedAt:      t.updatedAt,
	}
	for _, p := range t.order {
		e := t.entries[p]
		snap.Platforms = append(snap.Platforms, *e)
		snap.JobsFound += e.JobsFound
		if e.Status.IsDone() {
			snap.CompletedPlatforms++
		}
		if e.Status == domain.PlatformStatusScraping && snap.CurrentPlatform == "" {
			snap.CurrentPlatform = string(p)
		}
		if e.Error != "" {
			snap.Errors = append(snap.Errors, e.Error)
		}
	}

	switch {
	case t.status == domain.SessionStatusCompleted:
		snap.Percent = 100
	case snap.TotalPlatforms > 0:
		snap.Percent = snap.CompletedPlatforms * 100 / snap.TotalPlatforms
	}
	return snap
}

// ordered sorts platforms by registration order; unknown ids keep their
// relative order at the end
func (a *Aggregator) ordered(platforms []domain.PlatformID) []domain.PlatformID {
	want := make(map[domain.PlatformID]bool, len(platforms))
	for _, p := range platforms {
		want[p] = true
	}
	out := make([]domain.PlatformID, 0, len(platforms))
	for _, p := range a.opts.Order {
		if want[p] {
			out = append(out, p)
			delete(want, p)
		}
	}
	for _, p := range platforms {
		if want[p] {
			out = append(out, p)
			delete(want, p)
		}
	}
	return out
}

func (a *Aggregator) signal() {
	select {
	case a.kick <- struct{}{}:
	default:
	}
}

func (a *Aggregator) broadcast(ev domain.SessionEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	for _, p := range a.publishers {
		p.Publish(ev)
	}
}
