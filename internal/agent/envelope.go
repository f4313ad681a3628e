// Package agent implements the in-page scraping agent: the command and
// response envelopes exchanged with a tab, the request/response correlation
// bus, a Chrome-backed transport and the per-board page parsers.
package agent

import (
	"github.com/jobsweep/backend/internal/domain"
)

// CommandScrapePage asks the agent to extract the page currently loaded
const CommandScrapePage = "scrape-page"

// Command is sent into a tab's execution context
type Command struct {
	Command    string            `json:"command"`
	Platform   domain.PlatformID `json:"platform"`
	PageNumber int               `json:"pageNumber"`
	MaxJobs    int               `json:"maxJobs"`
	RequestID  string            `json:"requestId"`
}

// Response is the agent's reply. A nil NextPageURL means the platform has no
// further pages; a non-empty Error marks the whole page as failed.
type Response struct {
	RequestID   string             `json:"requestId"`
	TabID       string             `json:"tabId"`
	Jobs        []domain.JobRecord `json:"jobs"`
	NextPageURL *string            `json:"nextPageUrl"`
	Error       string             `json:"error,omitempty"`
}
