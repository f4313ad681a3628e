package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jobsweep/backend/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS scrape_sessions (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL,
	keywords    TEXT NOT NULL,
	location    TEXT NOT NULL DEFAULT '',
	country     TEXT NOT NULL DEFAULT '',
	platforms   TEXT[] NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	ended_at    TIMESTAMPTZ,
	total_jobs  INTEGER NOT NULL,
	unique_jobs INTEGER NOT NULL,
	error       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS scrape_jobs (
	session_id         TEXT NOT NULL REFERENCES scrape_sessions(id) ON DELETE CASCADE,
	position           INTEGER NOT NULL,
	platform           TEXT NOT NULL,
	title              TEXT NOT NULL,
	company            TEXT NOT NULL,
	url                TEXT NOT NULL,
	posted_date        TEXT,
	requires_residency BOOLEAN NOT NULL,
	raw_data           JSONB NOT NULL,
	PRIMARY KEY (session_id, position)
);`

// ArchivedSession is a summary row of an archived session
type ArchivedSession struct {
	ID         string               `json:"id"`
	Status     domain.SessionStatus `json:"status"`
	Keywords   string               `json:"keywords"`
	Location   string               `json:"location"`
	Country    string               `json:"country"`
	Platforms  []string             `json:"platforms"`
	StartedAt  time.Time            `json:"startedAt"`
	EndedAt    *time.Time           `json:"endedAt"`
	TotalJobs  int                  `json:"totalJobs"`
	UniqueJobs int                  `json:"uniqueJobs"`
	Error      string               `json:"error,omitempty"`
}

// Archive keeps finished sessions in PostgreSQL
type Archive struct {
	pool *pgxpool.Pool
}

// NewPostgresPool creates and verifies a pgxpool connection pool
func NewPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return pool, nil
}

// NewArchive wraps a pool
func NewArchive(pool *pgxpool.Pool) *Archive {
	return &Archive{pool: pool}
}

// EnsureSchema creates the archive tables when missing
func (a *Archive) EnsureSchema(ctx context.Context) error {
	if _, err := a.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create archive schema: %w", err)
	}
	return nil
}

// ArchiveSession stores a finished session and its jobs. Archiving the same
// session twice is a no-op.
func (a *Archive) ArchiveSession(ctx context.Context, s *domain.Session, stats domain.JobStatistics) error {
	platforms := make([]string, len(s.Config.Platforms))
	for i, p := range s.Config.Platforms {
		platforms[i] = string(p)
	}

	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO scrape_sessions
		   (id, status, keywords, location, country, platforms, started_at, ended_at, total_jobs, unique_jobs, error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO NOTHING`,
		s.ID, string(s.Status), s.Config.Keywords, s.Config.Location, s.Config.Country, platforms,
		s.StartTime, s.EndTime, stats.TotalJobsFound, stats.UniqueJobsFound, s.Error,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, job := range s.Jobs {
		raw, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("marshal job %d: %w", i, err)
		}
		batch.Queue(
			`INSERT INTO scrape_jobs
			   (session_id, position, platform, title, company, url, posted_date, requires_residency, raw_data)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb)`,
			s.ID, i, string(job.Platform), job.Title, job.Company, job.URL, job.PostedDate, job.RequiresResidency, string(raw),
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert jobs: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// RecentSessions lists archived sessions, newest first
func (a *Archive) RecentSessions(ctx context.Context, limit int) ([]ArchivedSession, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := a.pool.Query(ctx,
		`SELECT id, status, keywords, location, country, platforms, started_at, ended_at,
		        total_jobs, unique_jobs, error
		 FROM scrape_sessions
		 ORDER BY started_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query scrape_sessions: %w", err)
	}
	defer rows.Close()

	var out []ArchivedSession
	for rows.Next() {
		var s ArchivedSession
		var status string
		if err := rows.Scan(
			&s.ID, &status, &s.Keywords, &s.Location, &s.Country, &s.Platforms,
			&s.StartedAt, &s.EndedAt, &s.TotalJobs, &s.UniqueJobs, &s.Error,
		); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		s.Status = domain.SessionStatus(status)
		out = append(out, s)
	}

	return out, rows.Err()
}

// Ping implements a readiness check
func (a *Archive) Ping(ctx context.Context) error {
	return a.pool.Ping(ctx)
}

// Close closes the pool
func (a *Archive) Close() {
	a.pool.Close()
}
