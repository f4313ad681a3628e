package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/jobsweep/backend/internal/domain"
)

// ChromeConfig configures the controlled Chrome process
type ChromeConfig struct {
	Headless      bool
	ExecPath      string
	UserDataDir   string
	UserAgent     string
	DisableImages bool
}

// ChromeDriver implements Driver over the DevTools protocol. The first tab
// chromedp opens stays as the control window used for screen estimation.
type ChromeDriver struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	logger        *zap.Logger

	mu        sync.Mutex
	tabs      map[string]*chromeTab
	listeners map[int]func(string)
	nextID    int
}

type chromeTab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewChromeDriver launches Chrome and starts watching target lifecycle events
func NewChromeDriver(cfg ChromeConfig, logger *zap.Logger) (*ChromeDriver, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.DisableImages {
		opts = append(opts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	d := &ChromeDriver{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		logger:        logger.Named("chrome"),
		tabs:          make(map[string]*chromeTab),
		listeners:     make(map[int]func(string)),
	}

	// the first Run allocates the browser and must use the browser context
	// itself, otherwise cancelling a derived context would kill the process
	if err := chromedp.Run(browserCtx); err != nil {
		d.Close()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	if err := d.runBrowser(context.Background(), func(ctx context.Context) error {
		return target.SetDiscoverTargets(true).Do(ctx)
	}); err != nil {
		d.Close()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	chromedp.ListenBrowser(browserCtx, func(ev interface{}) {
		if e, ok := ev.(*target.EventTargetDestroyed); ok {
			go d.targetDestroyed(string(e.TargetID))
		}
	})

	return d, nil
}

// Close shuts the browser down
func (d *ChromeDriver) Close() {
	d.mu.Lock()
	for id, t := range d.tabs {
		t.cancel()
		delete(d.tabs, id)
	}
	d.mu.Unlock()
	d.browserCancel()
	d.allocCancel()
}

// OpenWindow implements Driver
func (d *ChromeDriver) OpenWindow(ctx context.Context, url string, b Bounds, focused bool) (Tab, error) {
	var id target.ID
	if err := d.runBrowser(ctx, func(ctx context.Context) error {
		var err error
		id, err = target.CreateTarget(url).
			WithNewWindow(true).
			WithBackground(!focused).
			Do(ctx)
		return err
	}); err != nil {
		return Tab{}, err
	}

	tabCtx, err := d.attach(string(id))
	if err != nil {
		return Tab{}, err
	}

	var windowID browser.WindowID
	err = d.runTab(ctx, tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		wid, _, err := browser.GetWindowForTarget().Do(ctx)
		if err != nil {
			return err
		}
		windowID = wid
		return browser.SetWindowBounds(wid, &browser.Bounds{
			Left:        int64(b.Left),
			Top:         int64(b.Top),
			Width:       int64(b.Width),
			Height:      int64(b.Height),
			WindowState: browser.WindowStateNormal,
		}).Do(ctx)
	}))
	if err != nil {
		// the tab is usable even when positioning fails
		d.logger.Debug("Failed to position window", zap.String("tab_id", string(id)), zap.Error(err))
	}

	if focused {
		_ = d.runBrowser(ctx, func(ctx context.Context) error {
			return target.ActivateTarget(id).Do(ctx)
		})
	}

	return Tab{ID: string(id), WindowID: int64(windowID)}, nil
}

// ReadyState implements Driver
func (d *ChromeDriver) ReadyState(ctx context.Context, tabID string) (string, error) {
	tabCtx, err := d.tab(tabID)
	if err != nil {
		return "", err
	}
	var state string
	if err := d.runTab(ctx, tabCtx, chromedp.Evaluate(`document.readyState`, &state)); err != nil {
		return "", d.classify(ctx, tabID, err)
	}
	return state, nil
}

// Navigate implements Driver
func (d *ChromeDriver) Navigate(ctx context.Context, tabID, url string) error {
	tabCtx, err := d.tab(tabID)
	if err != nil {
		return err
	}
	err = d.runTab(ctx, tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, errText, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errText != "" {
			return fmt.Errorf("navigate %s: %s", url, errText)
		}
		return nil
	}))
	return d.classify(ctx, tabID, err)
}

// SetZoom implements Driver
func (d *ChromeDriver) SetZoom(ctx context.Context, tabID string, factor float64) error {
	tabCtx, err := d.tab(tabID)
	if err != nil {
		return err
	}
	return d.runTab(ctx, tabCtx, emulation.SetPageScaleFactor(factor))
}

// Evaluate implements Driver. Tabs not opened by this driver (such as a
// results page the user opened) are attached on first use.
func (d *ChromeDriver) Evaluate(ctx context.Context, tabID, script string, out interface{}) error {
	tabCtx, err := d.tab(tabID)
	if err != nil {
		ok, existsErr := d.TabExists(ctx, tabID)
		if existsErr != nil || !ok {
			return err
		}
		if tabCtx, err = d.attach(tabID); err != nil {
			return err
		}
	}
	return d.classify(ctx, tabID, d.runTab(ctx, tabCtx, chromedp.Evaluate(script, out)))
}

// PageHTML implements Driver
func (d *ChromeDriver) PageHTML(ctx context.Context, tabID string) (string, string, error) {
	tabCtx, err := d.tab(tabID)
	if err != nil {
		return "", "", err
	}

	var html, location string
	err = d.runTab(ctx, tabCtx,
		chromedp.Location(&location),
		chromedp.ActionFunc(func(ctx context.Context) error {
			node, err := dom.GetDocument().Do(ctx)
			if err != nil {
				return err
			}
			html, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
			return err
		}),
	)
	if err != nil {
		return "", "", d.classify(ctx, tabID, err)
	}
	return html, location, nil
}

// CloseWindow implements Driver. Closing a window's only tab closes the window.
func (d *ChromeDriver) CloseWindow(ctx context.Context, tab Tab) error {
	err := d.runBrowser(ctx, func(ctx context.Context) error {
		return target.CloseTarget(target.ID(tab.ID)).Do(ctx)
	})

	d.mu.Lock()
	if t, ok := d.tabs[tab.ID]; ok {
		t.cancel()
		delete(d.tabs, tab.ID)
	}
	d.mu.Unlock()

	return err
}

// TabExists implements Driver
func (d *ChromeDriver) TabExists(ctx context.Context, tabID string) (bool, error) {
	infos, err := d.targets(ctx)
	if err != nil {
		return false, err
	}
	for _, info := range infos {
		if string(info.TargetID) == tabID {
			return true, nil
		}
	}
	return false, nil
}

// FindTab implements Driver
func (d *ChromeDriver) FindTab(ctx context.Context, urlPrefix string) (string, bool, error) {
	infos, err := d.targets(ctx)
	if err != nil {
		return "", false, err
	}
	for _, info := range infos {
		if info.Type == "page" && strings.HasPrefix(info.URL, urlPrefix) {
			return string(info.TargetID), true, nil
		}
	}
	return "", false, nil
}

// ScreenSize implements Driver using the control window's screen metrics
func (d *ChromeDriver) ScreenSize(ctx context.Context) (Screen, error) {
	var s Screen
	err := d.runTab(ctx, d.browserCtx, chromedp.Evaluate(
		`({left: screen.availLeft || 0, top: screen.availTop || 0, width: screen.availWidth, height: screen.availHeight})`,
		&s,
	))
	return s, err
}

// OnTabRemoved implements Driver
func (d *ChromeDriver) OnTabRemoved(fn func(tabID string)) func() {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.listeners[id] = fn
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.listeners, id)
		d.mu.Unlock()
	}
}

func (d *ChromeDriver) targetDestroyed(tabID string) {
	d.mu.Lock()
	if t, ok := d.tabs[tabID]; ok {
		t.cancel()
		delete(d.tabs, tabID)
	}
	fns := make([]func(string), 0, len(d.listeners))
	for _, fn := range d.listeners {
		fns = append(fns, fn)
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn(tabID)
	}
}

// attach binds a chromedp context to an existing target. The attaching Run
// uses the tab context directly so the session outlives the caller's ctx.
func (d *ChromeDriver) attach(tabID string) (context.Context, error) {
	d.mu.Lock()
	if t, ok := d.tabs[tabID]; ok {
		d.mu.Unlock()
		return t.ctx, nil
	}
	ctx, cancel := chromedp.NewContext(d.browserCtx, chromedp.WithTargetID(target.ID(tabID)))
	d.tabs[tabID] = &chromeTab{ctx: ctx, cancel: cancel}
	d.mu.Unlock()

	if err := chromedp.Run(ctx); err != nil {
		d.mu.Lock()
		delete(d.tabs, tabID)
		d.mu.Unlock()
		cancel()
		return nil, fmt.Errorf("attach tab %s: %w", tabID, err)
	}
	return ctx, nil
}

func (d *ChromeDriver) tab(tabID string) (context.Context, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.tabs[tabID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTabNotFound, tabID)
	}
	return t.ctx, nil
}

func (d *ChromeDriver) targets(ctx context.Context) ([]*target.Info, error) {
	var infos []*target.Info
	err := d.runBrowser(ctx, func(ctx context.Context) error {
		var err error
		infos, err = target.GetTargets().Do(ctx)
		return err
	})
	return infos, err
}

// classify maps a failed tab command to ErrTabNotFound when the tab is gone
func (d *ChromeDriver) classify(ctx context.Context, tabID string, err error) error {
	if err == nil {
		return nil
	}
	if ok, existsErr := d.TabExists(ctx, tabID); existsErr == nil && !ok {
		return fmt.Errorf("%w: %s", domain.ErrTabNotFound, tabID)
	}
	return err
}

// runTab runs actions on a tab context while honouring the caller's ctx.
// Cancelling the derived context aborts the actions without closing the tab.
func (d *ChromeDriver) runTab(ctx, tabCtx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// runBrowser runs fn against the browser-level executor
func (d *ChromeDriver) runBrowser(ctx context.Context, fn func(ctx context.Context) error) error {
	return d.runTab(ctx, d.browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		c := chromedp.FromContext(ctx)
		if c == nil || c.Browser == nil {
			return fmt.Errorf("browser not started")
		}
		return fn(cdp.WithExecutor(ctx, c.Browser))
	}))
}
