// Package session owns scraping sessions: it fans a search out into one
// platform loop per board, decides the session's terminal state, reconciles
// duplicate jobs and hands results to delivery.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	goerrors "github.com/go-errors/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jobsweep/backend/internal/browser"
	"github.com/jobsweep/backend/internal/domain"
	"github.com/jobsweep/backend/internal/platform"
	"github.com/jobsweep/backend/internal/scraper"
	"github.com/jobsweep/backend/internal/store"
)

// Registry validates platform selections
type Registry interface {
	Resolve(ids []domain.PlatformID, q platform.Query) ([]domain.PlatformID, error)
}

// LoopRunner runs one platform loop to completion
type LoopRunner interface {
	Run(ctx context.Context, req scraper.LoopRequest, owner scraper.Owner) scraper.Outcome
}

// Tabs closes session tabs and reports tabs closed from outside
type Tabs interface {
	Close(ctx context.Context, tab browser.Tab)
	OnTabRemoved(fn func(tabID string)) (unsubscribe func())
}

// Progress tracks and broadcasts per-session progress
type Progress interface {
	Register(sessionID string, platforms []domain.PlatformID) domain.ProgressSnapshot
	Finish(sessionID string, status domain.SessionStatus, evType domain.EventType, jobs []domain.JobRecord, errMsg string) domain.ProgressSnapshot
	Snapshot(sessionID string) (domain.ProgressSnapshot, bool)
	Remove(sessionID string)
	Restore(ctx context.Context) ([]domain.ProgressSnapshot, error)
}

// SessionStore keeps finished sessions for the retention window
type SessionStore interface {
	SaveSession(ctx context.Context, s *domain.Session, ttl time.Duration) error
	LoadSession(ctx context.Context, id string) (*domain.Session, error)
	DeleteSession(ctx context.Context, id string) error
	Latest(ctx context.Context) (*store.LatestJobs, error)
}

// Deliverer hands a finished session's jobs downstream
type Deliverer interface {
	Deliver(ctx context.Context, s *domain.Session, stats domain.JobStatistics)
}

// Options configures the orchestrator
type Options struct {
	Retention        time.Duration
	TabCloseDebounce time.Duration
}

// Orchestrator is the session state machine. One instance per process.
type Orchestrator struct {
	registry Registry
	loops    LoopRunner
	tabs     Tabs
	progress Progress
	ledger   *Ledger
	sessions SessionStore
	delivery Deliverer
	opts     Options
	logger   *zap.Logger
	now      func() time.Time

	mu        sync.Mutex
	active    map[string]*run
	completed map[string]*domain.Session

	unsubscribe func()
	wg          sync.WaitGroup
}

// NewOrchestrator creates a new session orchestrator. sessions and delivery
// may be nil.
func NewOrchestrator(
	registry Registry,
	loops LoopRunner,
	tabs Tabs,
	progress Progress,
	ledger *Ledger,
	sessions SessionStore,
	delivery Deliverer,
	opts Options,
	logger *zap.Logger,
) *Orchestrator {
	if opts.Retention <= 0 {
		opts.Retention = 2 * time.Hour
	}
	if opts.TabCloseDebounce <= 0 {
		opts.TabCloseDebounce = 2 * time.Second
	}
	o := &Orchestrator{
		registry:  registry,
		loops:     loops,
		tabs:      tabs,
		progress:  progress,
		ledger:    ledger,
		sessions:  sessions,
		delivery:  delivery,
		opts:      opts,
		logger:    logger.Named("orchestrator"),
		now:       time.Now,
		active:    make(map[string]*run),
		completed: make(map[string]*domain.Session),
	}
	o.unsubscribe = tabs.OnTabRemoved(o.tabRemoved)
	return o
}

// StartSession validates cfg, creates the session and launches one loop per
// platform concurrently. It returns as soon as the loops are started; only
// validation errors are returned.
func (o *Orchestrator) StartSession(ctx context.Context, cfg domain.SearchConfig) (string, error) {
	query := platform.Query{Keywords: cfg.Keywords, Location: cfg.Location, Country: cfg.Country}
	platforms, err := o.registry.Resolve(cfg.Platforms, query)
	if err != nil {
		return "", err
	}
	cfg.Platforms = platforms

	s := &domain.Session{
		ID:        uuid.NewString(),
		Config:    cfg,
		Status:    domain.SessionStatusRunning,
		StartTime: o.now(),
	}

	o.ledger.Open(ctx, s.ID)
	s.Progress = o.progress.Register(s.ID, platforms)

	runCtx, cancel := context.WithCancel(context.Background())
	r := newRun(s, cancel)

	o.mu.Lock()
	o.active[s.ID] = r
	o.mu.Unlock()

	o.logger.Info("Session started",
		zap.String("session_id", s.ID),
		zap.String("keywords", cfg.Keywords),
		zap.Int("platforms", len(platforms)),
	)

	o.wg.Add(1)
	go o.execute(runCtx, r, query, platforms)

	return s.ID, nil
}

// execute runs the loops and settles the session. A panic anywhere below
// ends the session in error with whatever jobs were collected.
func (o *Orchestrator) execute(ctx context.Context, r *run, query platform.Query, platforms []domain.PlatformID) {
	defer o.wg.Done()
	defer func() {
		if p := recover(); p != nil {
			o.fail(r, goerrors.Wrap(p, 2))
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range platforms {
		req := scraper.LoopRequest{
			SessionID: r.id(),
			Platform:  p,
			Query:     query,
			Layout:    browser.Layout{Index: i, Total: len(platforms)},
		}
		g.Go(func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = goerrors.Wrap(rec, 2)
				}
			}()
			out := o.loops.Run(gctx, req, r)
			r.loopSettled(out.State == scraper.StateFailed && errors.Is(out.Err, domain.ErrTabNotFound))
			o.logger.Debug("Platform loop settled",
				zap.String("session_id", req.SessionID),
				zap.String("platform", string(req.Platform)),
				zap.String("state", string(out.State)),
				zap.Int("pages", out.Pages),
				zap.Int("jobs", out.Jobs),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		o.fail(r, err)
		return
	}
	if r.abandoned() {
		// the loops only noticed the user closing the windows
		o.stop(r, "all session tabs closed")
		return
	}
	o.complete(r)
}

// complete settles a session whose loops all finished on their own
func (o *Orchestrator) complete(r *run) {
	if !r.finish(domain.SessionStatusCompleted, "", o.now()) {
		return
	}
	raw := o.ledger.Close(r.id())
	unique := Dedup(raw)

	o.settle(r, domain.EventCompleted, unique, domain.JobStatistics{
		TotalJobsFound:  len(raw),
		UniqueJobsFound: len(unique),
	}, true)
}

// fail settles a session after an unexpected error
func (o *Orchestrator) fail(r *run, err error) {
	if !r.finish(domain.SessionStatusError, err.Error(), o.now()) {
		return
	}
	fields := []zap.Field{zap.String("session_id", r.id()), zap.Error(err)}
	if ge, ok := err.(*goerrors.Error); ok {
		fields = append(fields, zap.String("stack", string(ge.Stack())))
	}
	o.logger.Error("Session failed", fields...)

	raw := o.ledger.Close(r.id())
	o.settle(r, domain.EventError, raw, rawStats(raw), len(raw) > 0)
}

// StopSession ends a running session. Stopping a finished session is a
// no-op; unknown ids return domain.ErrSessionNotFound.
func (o *Orchestrator) StopSession(ctx context.Context, id string) error {
	o.mu.Lock()
	r, ok := o.active[id]
	_, done := o.completed[id]
	o.mu.Unlock()

	if !ok {
		if done {
			return nil
		}
		if o.sessions != nil {
			if _, err := o.sessions.LoadSession(ctx, id); err == nil {
				return nil
			}
		}
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}

	o.stop(r, "stop requested")
	return nil
}

// stop settles a running session as stopped, delivering the raw jobs
func (o *Orchestrator) stop(r *run, reason string) {
	if !r.finish(domain.SessionStatusStopped, "", o.now()) {
		return
	}
	o.logger.Info("Stopping session", zap.String("session_id", r.id()), zap.String("reason", reason))

	raw := o.ledger.Close(r.id())
	o.settle(r, domain.EventStopped, raw, rawStats(raw), len(raw) > 0)
}

// settle runs once per session, after the terminal guard: it tears down
// timers and tabs, emits the terminal event, retains the session and
// delivers the jobs.
func (o *Orchestrator) settle(r *run, evType domain.EventType, jobs []domain.JobRecord, stats domain.JobStatistics, deliver bool) {
	ctx := context.Background()

	for _, tab := range r.release() {
		o.tabs.Close(ctx, tab)
	}

	status := r.Status()
	s := r.snapshot()
	snap := o.progress.Finish(s.ID, status, evType, jobs, s.Error)
	final := r.seal(jobs, snap)

	o.retain(ctx, final)
	close(r.settled)

	o.logger.Info("Session finished",
		zap.String("session_id", final.ID),
		zap.String("status", string(status)),
		zap.Int("jobs", len(jobs)),
		zap.Int("total_jobs", stats.TotalJobsFound),
	)

	if deliver && o.delivery != nil {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			o.delivery.Deliver(ctx, final, stats)
		}()
	}
}

// retain moves a finished session into the retention store
func (o *Orchestrator) retain(ctx context.Context, s *domain.Session) {
	o.mu.Lock()
	delete(o.active, s.ID)
	o.completed[s.ID] = s
	o.mu.Unlock()

	if o.sessions == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	if err := o.sessions.SaveSession(ctx, s, o.opts.Retention); err != nil {
		o.logger.Warn("Failed to persist finished session", zap.String("session_id", s.ID), zap.Error(err))
	}
}

// tabRemoved auto-stops a running session once all of its tabs were closed
// from outside and stayed closed for the debounce window
func (o *Orchestrator) tabRemoved(tabID string) {
	o.mu.Lock()
	runs := make([]*run, 0, len(o.active))
	for _, r := range o.active {
		runs = append(runs, r)
	}
	o.mu.Unlock()

	for _, r := range runs {
		tracked, remaining := r.tabRemoved(tabID)
		if !tracked {
			continue
		}
		if remaining > 0 {
			return
		}
		id := r.id()
		o.logger.Info("All session tabs closed, scheduling auto-stop",
			zap.String("session_id", id),
			zap.Duration("debounce", o.opts.TabCloseDebounce),
		)
		r.schedule(o.opts.TabCloseDebounce, func() {
			if r.tabCount() > 0 || r.Status() != domain.SessionStatusRunning {
				return
			}
			if err := o.StopSession(context.Background(), id); err != nil {
				o.logger.Warn("Auto-stop failed", zap.String("session_id", id), zap.Error(err))
			}
		})
		return
	}
}

// Session returns a copy of a running or retained session
func (o *Orchestrator) Session(ctx context.Context, id string) (*domain.Session, error) {
	o.mu.Lock()
	r, running := o.active[id]
	done, retained := o.completed[id]
	o.mu.Unlock()

	if running && r.Status().IsTerminal() {
		// settling; wait for the final record
		select {
		case <-r.settled:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		o.mu.Lock()
		done, retained = o.completed[id]
		o.mu.Unlock()
		running = false
	}

	switch {
	case running:
		s := r.snapshot()
		s.Jobs = o.ledger.Jobs(id)
		if snap, ok := o.progress.Snapshot(id); ok {
			s.Progress = snap
		}
		return s, nil
	case retained:
		return done.Clone(), nil
	}

	if o.sessions != nil {
		s, err := o.sessions.LoadSession(ctx, id)
		if err == nil {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
}

// Progress returns the latest progress snapshot of a session
func (o *Orchestrator) Progress(id string) (domain.ProgressSnapshot, error) {
	snap, ok := o.progress.Snapshot(id)
	if !ok {
		return domain.ProgressSnapshot{}, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return snap, nil
}

// Active returns the ids of running sessions
func (o *Orchestrator) Active() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]string, 0, len(o.active))
	for id := range o.active {
		ids = append(ids, id)
	}
	return ids
}

// Sweep evicts retained sessions older than the retention window and
// returns how many were evicted
func (o *Orchestrator) Sweep(ctx context.Context, now time.Time) int {
	cutoff := now.Add(-o.opts.Retention)

	o.mu.Lock()
	var expired []string
	for id, s := range o.completed {
		if s.EndTime != nil && s.EndTime.Before(cutoff) {
			expired = append(expired, id)
			delete(o.completed, id)
		}
	}
	o.mu.Unlock()

	for _, id := range expired {
		o.progress.Remove(id)
		if o.sessions != nil {
			if err := o.sessions.DeleteSession(ctx, id); err != nil {
				o.logger.Debug("Failed to delete retained session", zap.String("session_id", id), zap.Error(err))
			}
		}
	}
	if len(expired) > 0 {
		o.logger.Info("Evicted finished sessions", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Restore reloads progress persisted by a previous process. Sessions that
// were interrupted come back as stopped, with the cached jobs when the cache
// belongs to them.
func (o *Orchestrator) Restore(ctx context.Context) (int, error) {
	snaps, err := o.progress.Restore(ctx)
	if err != nil {
		return 0, fmt.Errorf("restore progress: %w", err)
	}

	var latest *store.LatestJobs
	if o.sessions != nil {
		if latest, err = o.sessions.Latest(ctx); err != nil {
			o.logger.Warn("Failed to load cached jobs", zap.Error(err))
		}
	}

	now := o.now()
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, snap := range snaps {
		if _, ok := o.completed[snap.SessionID]; ok {
			continue
		}
		s := &domain.Session{
			ID:       snap.SessionID,
			Status:   snap.Status,
			EndTime:  &now,
			Progress: snap,
		}
		for _, p := range snap.Platforms {
			s.Config.Platforms = append(s.Config.Platforms, p.Platform)
		}
		if latest != nil && latest.SessionID == snap.SessionID {
			s.Jobs = latest.Jobs
		}
		o.completed[s.ID] = s
	}
	return len(snaps), nil
}

// Shutdown stops every running session, delivering partial results, and
// waits for pending deliveries until ctx ends
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.unsubscribe()

	for _, id := range o.Active() {
		if err := o.StopSession(ctx, id); err != nil {
			o.logger.Warn("Failed to stop session on shutdown", zap.String("session_id", id), zap.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func rawStats(jobs []domain.JobRecord) domain.JobStatistics {
	return domain.JobStatistics{
		TotalJobsFound:  len(jobs),
		UniqueJobsFound: len(Dedup(jobs)),
	}
}
