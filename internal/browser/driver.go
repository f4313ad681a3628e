package browser

import (
	"context"
)

// Tab identifies a browser tab and the window that owns it
type Tab struct {
	ID       string `json:"tabId"`
	WindowID int64  `json:"windowId"`
}

// ReadyStateComplete is the document state reported once navigation finishes
const ReadyStateComplete = "complete"

// Driver is the browser capability the lifecycle manager and the in-page
// agent are built on. Implementations return domain.ErrTabNotFound for tabs
// that no longer exist.
type Driver interface {
	// OpenWindow creates a tab at url inside a new window with the given bounds
	OpenWindow(ctx context.Context, url string, b Bounds, focused bool) (Tab, error)

	// ReadyState reports document.readyState of the tab
	ReadyState(ctx context.Context, tabID string) (string, error)

	// Navigate points an existing tab at url without waiting for load
	Navigate(ctx context.Context, tabID, url string) error

	// SetZoom sets the tab's visual scale; 1 resets it
	SetZoom(ctx context.Context, tabID string, factor float64) error

	// Evaluate runs script in the tab's page context; out may be nil
	Evaluate(ctx context.Context, tabID, script string, out interface{}) error

	// PageHTML returns the tab's current document and URL
	PageHTML(ctx context.Context, tabID string) (html string, pageURL string, err error)

	// CloseWindow closes the tab and its window
	CloseWindow(ctx context.Context, tab Tab) error

	// TabExists reports whether the tab is still open
	TabExists(ctx context.Context, tabID string) (bool, error)

	// FindTab returns an open tab whose URL starts with prefix
	FindTab(ctx context.Context, urlPrefix string) (string, bool, error)

	// ScreenSize estimates the display from the focused window
	ScreenSize(ctx context.Context) (Screen, error)

	// OnTabRemoved registers fn for tab-closed notifications and returns
	// a function that unregisters it
	OnTabRemoved(fn func(tabID string)) (unsubscribe func())
}
