package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobsweep/backend/internal/domain"
)

func TestMemory_LatestJobs(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	latest, err := m.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	jobs := []domain.JobRecord{{Title: "Go Developer", Platform: domain.PlatformSeek}}
	require.NoError(t, m.SaveJobs(ctx, "s1", jobs))
	jobs[0].Title = "mutated"

	latest, err = m.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "s1", latest.SessionID)
	assert.Equal(t, "Go Developer", latest.Jobs[0].Title)

	require.NoError(t, m.ClearJobs(ctx))
	latest, _ = m.Latest(ctx)
	assert.Nil(t, latest)
}

func TestMemory_Progress(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.SaveProgress(ctx, domain.ProgressSnapshot{SessionID: "a", JobsFound: 1}))
	require.NoError(t, m.SaveProgress(ctx, domain.ProgressSnapshot{SessionID: "a", JobsFound: 2}))
	require.NoError(t, m.SaveProgress(ctx, domain.ProgressSnapshot{SessionID: "b"}))

	snaps, err := m.LoadProgress(ctx)
	require.NoError(t, err)
	assert.Len(t, snaps, 2)

	require.NoError(t, m.DeleteProgress(ctx, "a"))
	snaps, _ = m.LoadProgress(ctx)
	require.Len(t, snaps, 1)
	assert.Equal(t, "b", snaps[0].SessionID)
}

func TestMemory_SessionExpires(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	s := &domain.Session{ID: "s1", Status: domain.SessionStatusCompleted}
	require.NoError(t, m.SaveSession(ctx, s, time.Hour))

	got, err := m.LoadSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusCompleted, got.Status)

	now = now.Add(time.Hour)
	_, err = m.LoadSession(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = m.LoadSession(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
