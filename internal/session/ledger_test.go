package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jobsweep/backend/internal/domain"
	"github.com/jobsweep/backend/internal/store"
)

func TestLedger_MirrorsJobsToCache(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.SaveJobs(ctx, "previous", []domain.JobRecord{{Title: "stale"}}))

	l := NewLedger(mem, zap.NewNop())
	l.Open(ctx, "s1")

	latest, err := mem.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	l.AppendJobs("s1", []domain.JobRecord{{Title: "a"}})
	l.AppendJobs("s1", []domain.JobRecord{{Title: "b"}, {Title: "c"}})

	latest, err = mem.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Len(t, latest.Jobs, 3)
	assert.Len(t, l.Jobs("s1"), 3)

	final := l.Close("s1")
	assert.Len(t, final, 3)

	l.AppendJobs("s1", []domain.JobRecord{{Title: "late"}})
	assert.Empty(t, l.Jobs("s1"))
	latest, _ = mem.Latest(ctx)
	assert.Len(t, latest.Jobs, 3)
}

func TestLedger_WithoutCache(t *testing.T) {
	l := NewLedger(nil, zap.NewNop())
	l.Open(context.Background(), "s1")
	l.AppendJobs("s1", []domain.JobRecord{{Title: "a"}})
	assert.Len(t, l.Close("s1"), 1)
}
