package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jobsweep/backend/internal/domain"
)

const persistTimeout = 5 * time.Second

// JobCache keeps the job list of the most recent session durable
type JobCache interface {
	SaveJobs(ctx context.Context, sessionID string, jobs []domain.JobRecord) error
	ClearJobs(ctx context.Context) error
}

// Ledger accumulates scraped jobs per open session and mirrors every change
// to the job cache
type Ledger struct {
	cache  JobCache
	logger *zap.Logger

	// persistMu orders cache writes so an older list never overwrites a newer one
	persistMu sync.Mutex
	mu        sync.Mutex
	jobs      map[string][]domain.JobRecord
}

// NewLedger creates a ledger. cache may be nil.
func NewLedger(cache JobCache, logger *zap.Logger) *Ledger {
	return &Ledger{
		cache:  cache,
		logger: logger.Named("ledger"),
		jobs:   make(map[string][]domain.JobRecord),
	}
}

// Open starts accumulating for a session and drops the stale cache
func (l *Ledger) Open(ctx context.Context, sessionID string) {
	l.mu.Lock()
	l.jobs[sessionID] = nil
	l.mu.Unlock()

	if l.cache == nil {
		return
	}
	l.persistMu.Lock()
	defer l.persistMu.Unlock()
	if err := l.cache.ClearJobs(ctx); err != nil {
		l.logger.Warn("Failed to clear job cache", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// AppendJobs implements scraper.JobSink. Batches for sessions that are not
// open are dropped.
func (l *Ledger) AppendJobs(sessionID string, jobs []domain.JobRecord) {
	l.persistMu.Lock()
	defer l.persistMu.Unlock()

	l.mu.Lock()
	list, ok := l.jobs[sessionID]
	if !ok {
		l.mu.Unlock()
		l.logger.Debug("Dropping jobs for closed session", zap.String("session_id", sessionID), zap.Int("jobs", len(jobs)))
		return
	}
	list = append(list, jobs...)
	l.jobs[sessionID] = list
	snapshot := append([]domain.JobRecord(nil), list...)
	l.mu.Unlock()

	if l.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := l.cache.SaveJobs(ctx, sessionID, snapshot); err != nil {
		l.logger.Warn("Failed to persist jobs",
			zap.String("session_id", sessionID),
			zap.Int("jobs", len(snapshot)),
			zap.Error(err),
		)
	}
}

// Jobs returns a copy of the session's accumulated jobs
func (l *Ledger) Jobs(sessionID string) []domain.JobRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.JobRecord(nil), l.jobs[sessionID]...)
}

// Close stops accumulating and returns the final raw list
func (l *Ledger) Close(sessionID string) []domain.JobRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	jobs := l.jobs[sessionID]
	delete(l.jobs, sessionID)
	return jobs
}
