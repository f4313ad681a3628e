package domain

import (
	"errors"
	"fmt"
)

var (
	// Session start validation
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrNoEnabledPlatforms  = errors.New("no enabled platforms")

	// Platform-level failures, isolated to one loop
	ErrTabLoadTimeout    = errors.New("tab load timeout")
	ErrTabNotFound       = errors.New("tab not found")
	ErrPageScrapeTimeout = errors.New("page scrape timeout")
	ErrAgentResponse     = errors.New("agent reported failure")

	ErrSessionNotFound = errors.New("session not found")
)

// PlatformError attaches platform and page context to a failure
type PlatformError struct {
	Platform PlatformID
	Page     int
	Err      error
}

func (e *PlatformError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("%s page %d: %v", e.Platform, e.Page, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Platform, e.Err)
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}

// NewPlatformError wraps err for platform at page (0 when not page-bound)
func NewPlatformError(platform PlatformID, page int, err error) *PlatformError {
	return &PlatformError{Platform: platform, Page: page, Err: err}
}
