// Package browsertest provides an in-memory browser.Driver for tests.
package browsertest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/jobsweep/backend/internal/browser"
	"github.com/jobsweep/backend/internal/domain"
)

// Page is the fake state of one open tab
type Page struct {
	Tab        browser.Tab
	URL        string
	HTML       string
	ReadyState string
	Zoom       float64
	Bounds     browser.Bounds
	Focused    bool
	Scripts    []string
}

// Driver is a browser.Driver that keeps tabs in memory. Pages load
// instantly unless Loading is set.
type Driver struct {
	mu        sync.Mutex
	pages     map[string]*Page
	order     []string
	listeners map[int]func(string)
	nextTab   int
	nextSub   int

	// Screen is returned by ScreenSize
	Screen browser.Screen
	// Loading keeps new pages in the "loading" state
	Loading bool
	// HTMLFor renders a page body for a URL when set
	HTMLFor func(url string) string
	// EvalResult is decoded into Evaluate's out argument when set
	EvalResult interface{}
	// OpenErr fails OpenWindow when set
	OpenErr error
}

// NewDriver creates an empty fake browser
func NewDriver() *Driver {
	return &Driver{
		pages:     make(map[string]*Page),
		listeners: make(map[int]func(string)),
		Screen:    browser.Screen{Width: 1600, Height: 900},
	}
}

// AddTab registers a tab that the driver did not open, such as a page the
// user navigated to themselves
func (d *Driver) AddTab(url string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.newPage(url)
	return p.Tab.ID
}

func (d *Driver) newPage(url string) *Page {
	d.nextTab++
	p := &Page{
		Tab:        browser.Tab{ID: fmt.Sprintf("tab-%d", d.nextTab), WindowID: int64(d.nextTab)},
		URL:        url,
		ReadyState: browser.ReadyStateComplete,
		Zoom:       1,
	}
	if d.Loading {
		p.ReadyState = "loading"
	}
	if d.HTMLFor != nil {
		p.HTML = d.HTMLFor(url)
	}
	d.pages[p.Tab.ID] = p
	d.order = append(d.order, p.Tab.ID)
	return p
}

// Page returns a copy of the tab's state
func (d *Driver) Page(tabID string) (Page, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pages[tabID]
	if !ok {
		return Page{}, false
	}
	cp := *p
	cp.Scripts = append([]string(nil), p.Scripts...)
	return cp, true
}

// OpenTabs returns the ids of open tabs in creation order
func (d *Driver) OpenTabs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var ids []string
	for _, id := range d.order {
		if _, ok := d.pages[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// SetReadyState changes a tab's document state
func (d *Driver) SetReadyState(tabID, state string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.pages[tabID]; ok {
		p.ReadyState = state
	}
}

// UserClose removes a tab as if the user closed it and notifies listeners
func (d *Driver) UserClose(tabID string) {
	d.mu.Lock()
	delete(d.pages, tabID)
	fns := d.snapshotListeners()
	d.mu.Unlock()
	for _, fn := range fns {
		fn(tabID)
	}
}

func (d *Driver) snapshotListeners() []func(string) {
	fns := make([]func(string), 0, len(d.listeners))
	for _, fn := range d.listeners {
		fns = append(fns, fn)
	}
	return fns
}

func (d *Driver) page(tabID string) (*Page, error) {
	p, ok := d.pages[tabID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTabNotFound, tabID)
	}
	return p, nil
}

// OpenWindow implements browser.Driver
func (d *Driver) OpenWindow(ctx context.Context, url string, b browser.Bounds, focused bool) (browser.Tab, error) {
	if err := ctx.Err(); err != nil {
		return browser.Tab{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.OpenErr != nil {
		return browser.Tab{}, d.OpenErr
	}
	p := d.newPage(url)
	p.Bounds = b
	p.Focused = focused
	return p.Tab, nil
}

// ReadyState implements browser.Driver
func (d *Driver) ReadyState(ctx context.Context, tabID string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.page(tabID)
	if err != nil {
		return "", err
	}
	return p.ReadyState, nil
}

// Navigate implements browser.Driver
func (d *Driver) Navigate(ctx context.Context, tabID, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.page(tabID)
	if err != nil {
		return err
	}
	p.URL = url
	if d.HTMLFor != nil {
		p.HTML = d.HTMLFor(url)
	}
	return nil
}

// SetZoom implements browser.Driver
func (d *Driver) SetZoom(ctx context.Context, tabID string, factor float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.page(tabID)
	if err != nil {
		return err
	}
	p.Zoom = factor
	return nil
}

// Evaluate implements browser.Driver
func (d *Driver) Evaluate(ctx context.Context, tabID, script string, out interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.page(tabID)
	if err != nil {
		return err
	}
	p.Scripts = append(p.Scripts, script)
	if out != nil && d.EvalResult != nil {
		raw, err := json.Marshal(d.EvalResult)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, out)
	}
	return nil
}

// PageHTML implements browser.Driver
func (d *Driver) PageHTML(ctx context.Context, tabID string) (string, string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.page(tabID)
	if err != nil {
		return "", "", err
	}
	return p.HTML, p.URL, nil
}

// CloseWindow implements browser.Driver. Listeners are notified the same
// way a real browser reports a destroyed target.
func (d *Driver) CloseWindow(ctx context.Context, tab browser.Tab) error {
	d.mu.Lock()
	if _, err := d.page(tab.ID); err != nil {
		d.mu.Unlock()
		return err
	}
	delete(d.pages, tab.ID)
	fns := d.snapshotListeners()
	d.mu.Unlock()
	for _, fn := range fns {
		fn(tab.ID)
	}
	return nil
}

// TabExists implements browser.Driver
func (d *Driver) TabExists(ctx context.Context, tabID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pages[tabID]
	return ok, nil
}

// FindTab implements browser.Driver
func (d *Driver) FindTab(ctx context.Context, prefix string) (string, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range d.order {
		if p, ok := d.pages[id]; ok && strings.HasPrefix(p.URL, prefix) {
			return id, true, nil
		}
	}
	return "", false, nil
}

// ScreenSize implements browser.Driver
func (d *Driver) ScreenSize(ctx context.Context) (browser.Screen, error) {
	return d.Screen, nil
}

// OnTabRemoved implements browser.Driver
func (d *Driver) OnTabRemoved(fn func(string)) func() {
	d.mu.Lock()
	id := d.nextSub
	d.nextSub++
	d.listeners[id] = fn
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		delete(d.listeners, id)
		d.mu.Unlock()
	}
}
