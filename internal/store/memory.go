// Package store persists scraping state: the incremental job cache, session
// progress and finished sessions (Redis or in-memory), and the long-term
// session archive (PostgreSQL).
package store

import (
	"context"
	"sync"
	"time"

	"github.com/jobsweep/backend/internal/domain"
)

// LatestJobs is the job cache of the most recent session
type LatestJobs struct {
	SessionID string             `json:"sessionId"`
	Jobs      []domain.JobRecord `json:"jobs"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

type expiringSession struct {
	session   *domain.Session
	expiresAt time.Time
}

// Memory keeps state in process; used when Redis is not configured
type Memory struct {
	mu       sync.RWMutex
	latest   *LatestJobs
	progress map[string]domain.ProgressSnapshot
	sessions map[string]expiringSession
	now      func() time.Time
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		progress: make(map[string]domain.ProgressSnapshot),
		sessions: make(map[string]expiringSession),
		now:      time.Now,
	}
}

// SaveJobs replaces the cached job list
func (m *Memory) SaveJobs(_ context.Context, sessionID string, jobs []domain.JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latest = &LatestJobs{
		SessionID: sessionID,
		Jobs:      append([]domain.JobRecord(nil), jobs...),
		UpdatedAt: m.now(),
	}
	return nil
}

// ClearJobs drops the cached job list
func (m *Memory) ClearJobs(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latest = nil
	return nil
}

// Latest returns the cached job list, or nil
func (m *Memory) Latest(context.Context) (*LatestJobs, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.latest == nil {
		return nil, nil
	}
	cp := *m.latest
	cp.Jobs = append([]domain.JobRecord(nil), m.latest.Jobs...)
	return &cp, nil
}

// SaveProgress stores a progress snapshot
func (m *Memory) SaveProgress(_ context.Context, snap domain.ProgressSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress[snap.SessionID] = snap
	return nil
}

// LoadProgress returns all stored snapshots
func (m *Memory) LoadProgress(context.Context) ([]domain.ProgressSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.ProgressSnapshot, 0, len(m.progress))
	for _, s := range m.progress {
		out = append(out, s)
	}
	return out, nil
}

// DeleteProgress removes a snapshot
func (m *Memory) DeleteProgress(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.progress, sessionID)
	return nil
}

// SaveSession stores a finished session for ttl
func (m *Memory) SaveSession(_ context.Context, s *domain.Session, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = expiringSession{session: s.Clone(), expiresAt: m.now().Add(ttl)}
	return nil
}

// LoadSession returns a finished session or domain.ErrSessionNotFound
func (m *Memory) LoadSession(_ context.Context, id string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[id]
	if !ok || !m.now().Before(e.expiresAt) {
		return nil, domain.ErrSessionNotFound
	}
	return e.session.Clone(), nil
}

// DeleteSession removes a finished session
func (m *Memory) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Ping implements a readiness check
func (m *Memory) Ping(context.Context) error {
	return nil
}
