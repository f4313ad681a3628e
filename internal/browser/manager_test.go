package browser_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jobsweep/backend/internal/browser"
	"github.com/jobsweep/backend/internal/browser/browsertest"
	"github.com/jobsweep/backend/internal/domain"
)

func newManager(d *browsertest.Driver, zoom float64) *browser.Manager {
	return browser.NewManager(d, browser.Options{
		ZoomFactor:   zoom,
		PollInterval: 5 * time.Millisecond,
		OverlayText:  "Scraping in progress",
	}, zap.NewNop())
}

func TestOpen_PositionsAndZooms(t *testing.T) {
	d := browsertest.NewDriver()
	m := newManager(d, 0.5)

	first, err := m.Open(context.Background(), "https://a.example/jobs", browser.Layout{Index: 0, Total: 2})
	require.NoError(t, err)
	second, err := m.Open(context.Background(), "https://b.example/jobs", browser.Layout{Index: 1, Total: 2})
	require.NoError(t, err)

	p1, ok := d.Page(first.ID)
	require.True(t, ok)
	assert.True(t, p1.Focused)
	assert.Equal(t, 0.5, p1.Zoom)
	assert.Equal(t, browser.Bounds{Left: 0, Top: 0, Width: 480, Height: 900}, p1.Bounds)

	p2, _ := d.Page(second.ID)
	assert.False(t, p2.Focused)
	assert.Equal(t, 480, p2.Bounds.Left)
}

func TestWaitForLoad(t *testing.T) {
	t.Run("returns once complete", func(t *testing.T) {
		d := browsertest.NewDriver()
		d.Loading = true
		m := newManager(d, 1)

		tab, err := m.Open(context.Background(), "https://a.example", browser.Layout{Total: 1})
		require.NoError(t, err)

		go func() {
			time.Sleep(20 * time.Millisecond)
			d.SetReadyState(tab.ID, browser.ReadyStateComplete)
		}()
		assert.NoError(t, m.WaitForLoad(context.Background(), tab.ID, time.Second))
	})

	t.Run("times out", func(t *testing.T) {
		d := browsertest.NewDriver()
		d.Loading = true
		m := newManager(d, 1)

		tab, err := m.Open(context.Background(), "https://a.example", browser.Layout{Total: 1})
		require.NoError(t, err)

		err = m.WaitForLoad(context.Background(), tab.ID, 30*time.Millisecond)
		assert.ErrorIs(t, err, domain.ErrTabLoadTimeout)
	})

	t.Run("fails fast when the tab is gone", func(t *testing.T) {
		d := browsertest.NewDriver()
		m := newManager(d, 1)

		err := m.WaitForLoad(context.Background(), "missing", time.Second)
		assert.ErrorIs(t, err, domain.ErrTabNotFound)
	})

	t.Run("caller cancellation wins over timeout", func(t *testing.T) {
		d := browsertest.NewDriver()
		d.Loading = true
		m := newManager(d, 1)
		tab, _ := m.Open(context.Background(), "https://a.example", browser.Layout{Total: 1})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, m.WaitForLoad(ctx, tab.ID, time.Second), context.Canceled)
	})
}

func TestClose_ResetsZoomAndNotifies(t *testing.T) {
	d := browsertest.NewDriver()
	m := newManager(d, 0.5)

	var removed []string
	unsubscribe := m.OnTabRemoved(func(id string) { removed = append(removed, id) })
	defer unsubscribe()

	tab, err := m.Open(context.Background(), "https://a.example", browser.Layout{Total: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.Close(ctx, tab)

	_, ok := d.Page(tab.ID)
	assert.False(t, ok)
	assert.Equal(t, []string{tab.ID}, removed)
	assert.ErrorIs(t, m.Alive(context.Background(), tab.ID), domain.ErrTabNotFound)

	// closing again is harmless
	m.Close(context.Background(), tab)
}

func TestShowOverlay(t *testing.T) {
	d := browsertest.NewDriver()
	m := newManager(d, 1)
	tab, _ := m.Open(context.Background(), "https://a.example", browser.Layout{Total: 1})

	m.ShowOverlay(context.Background(), tab.ID)

	p, _ := d.Page(tab.ID)
	require.Len(t, p.Scripts, 1)
	assert.Contains(t, p.Scripts[0], `"Scraping in progress"`)

	// missing tabs are only logged
	m.ShowOverlay(context.Background(), "missing")
}
