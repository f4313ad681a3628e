// Package browser provisions, positions and reclaims the windows that
// platform scrape loops run in.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jobsweep/backend/internal/domain"
)

const closeTimeout = 5 * time.Second

// Options configures the lifecycle manager
type Options struct {
	ZoomFactor    float64
	SettleDelay   time.Duration
	PollInterval  time.Duration
	OverlayText   string
	DefaultScreen Screen
}

// Manager is the tab lifecycle manager
type Manager struct {
	driver Driver
	opts   Options
	logger *zap.Logger
}

// NewManager creates a new tab lifecycle manager
func NewManager(driver Driver, opts Options, logger *zap.Logger) *Manager {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 250 * time.Millisecond
	}
	if opts.DefaultScreen.Width == 0 || opts.DefaultScreen.Height == 0 {
		opts.DefaultScreen = Screen{Width: 1920, Height: 1080}
	}
	return &Manager{
		driver: driver,
		opts:   opts,
		logger: logger.Named("tabs"),
	}
}

// Open creates a positioned window showing url. Only the first window of a
// batch takes focus.
func (m *Manager) Open(ctx context.Context, url string, layout Layout) (Tab, error) {
	bounds := Tile(m.screen(ctx), layout)

	tab, err := m.driver.OpenWindow(ctx, url, bounds, layout.Index == 0)
	if err != nil {
		return Tab{}, fmt.Errorf("open window: %w", err)
	}

	if m.opts.ZoomFactor > 0 && m.opts.ZoomFactor != 1 {
		if err := m.driver.SetZoom(ctx, tab.ID, m.opts.ZoomFactor); err != nil {
			m.logger.Debug("Failed to set zoom", zap.String("tab_id", tab.ID), zap.Error(err))
		}
	}

	m.logger.Debug("Opened tab",
		zap.String("tab_id", tab.ID),
		zap.Int64("window_id", tab.WindowID),
		zap.Int("slot", layout.Index),
		zap.Int("of", layout.Total),
	)
	return tab, nil
}

// WaitForLoad blocks until the tab finished loading plus the settle delay
func (m *Manager) WaitForLoad(ctx context.Context, tabID string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()

	for {
		state, err := m.driver.ReadyState(waitCtx, tabID)
		switch {
		case errors.Is(err, domain.ErrTabNotFound):
			return err
		case err == nil && state == ReadyStateComplete:
			return m.settle(ctx)
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w after %s", domain.ErrTabLoadTimeout, timeout)
		case <-ticker.C:
		}
	}
}

// settle gives in-page scripts time to initialize after load
func (m *Manager) settle(ctx context.Context) error {
	if m.opts.SettleDelay <= 0 {
		return nil
	}
	t := time.NewTimer(m.opts.SettleDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Navigate sends an existing tab to url
func (m *Manager) Navigate(ctx context.Context, tab Tab, url string) error {
	return m.driver.Navigate(ctx, tab.ID, url)
}

// Alive returns domain.ErrTabNotFound when the tab is gone
func (m *Manager) Alive(ctx context.Context, tabID string) error {
	ok, err := m.driver.TabExists(ctx, tabID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrTabNotFound, tabID)
	}
	return nil
}

// ShowOverlay puts a blocking notice over the page. It is a courtesy signal
// only, so failures are logged.
func (m *Manager) ShowOverlay(ctx context.Context, tabID string) {
	text, _ := json.Marshal(m.opts.OverlayText)
	if err := m.driver.Evaluate(ctx, tabID, fmt.Sprintf(overlayScript, text), nil); err != nil {
		m.logger.Debug("Failed to show overlay", zap.String("tab_id", tabID), zap.Error(err))
	}
}

// Close resets the zoom and closes the tab's window. It runs on every exit
// path, including after the caller's context was cancelled; the window may
// already be gone, so failures are logged and not returned.
func (m *Manager) Close(ctx context.Context, t Tab) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()

	if m.opts.ZoomFactor > 0 && m.opts.ZoomFactor != 1 {
		if err := m.driver.SetZoom(ctx, t.ID, 1); err != nil {
			m.logger.Debug("Failed to reset zoom", zap.String("tab_id", t.ID), zap.Error(err))
		}
	}
	err := m.driver.CloseWindow(ctx, t)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrTabNotFound):
		m.logger.Debug("Window already closed", zap.String("tab_id", t.ID))
	default:
		m.logger.Warn("Failed to close window",
			zap.String("tab_id", t.ID),
			zap.Int64("window_id", t.WindowID),
			zap.Error(err),
		)
	}
}

// OnTabRemoved forwards the driver's tab-removal signal
func (m *Manager) OnTabRemoved(fn func(tabID string)) func() {
	return m.driver.OnTabRemoved(fn)
}

func (m *Manager) screen(ctx context.Context) Screen {
	s, err := m.driver.ScreenSize(ctx)
	if err != nil || s.Width <= 0 || s.Height <= 0 {
		if err != nil {
			m.logger.Debug("Screen estimate unavailable, using default", zap.Error(err))
		}
		return m.opts.DefaultScreen
	}
	return s
}

const overlayScript = `(() => {
  if (document.getElementById('jobsweep-overlay')) return;
  const el = document.createElement('div');
  el.id = 'jobsweep-overlay';
  el.style.cssText = 'position:fixed;inset:0;z-index:2147483647;background:rgba(15,23,42,.55);' +
    'color:#fff;display:flex;align-items:center;justify-content:center;font:600 20px sans-serif;';
  el.textContent = %s;
  (document.body || document.documentElement).appendChild(el);
})()`
