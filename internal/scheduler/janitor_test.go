package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingSweeper struct {
	calls atomic.Int32
	last  atomic.Int64
}

func (c *countingSweeper) Sweep(_ context.Context, now time.Time) int {
	c.calls.Add(1)
	c.last.Store(now.Unix())
	return 2
}

func TestJanitor_RunOnce(t *testing.T) {
	sw := &countingSweeper{}
	j := NewJanitor(sw, "@every 1h", zap.NewNop())
	fixed := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return fixed }

	assert.Equal(t, 2, j.RunOnce(context.Background()))
	assert.EqualValues(t, 1, sw.calls.Load())
	assert.Equal(t, fixed.Unix(), sw.last.Load())
}

func TestJanitor_Schedules(t *testing.T) {
	sw := &countingSweeper{}
	j := NewJanitor(sw, "@every 1s", zap.NewNop())
	require.NoError(t, j.Start(context.Background()))
	defer j.Stop()

	assert.Eventually(t, func() bool { return sw.calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestJanitor_InvalidSpec(t *testing.T) {
	j := NewJanitor(&countingSweeper{}, "every now and then", zap.NewNop())
	assert.Error(t, j.Start(context.Background()))
}
