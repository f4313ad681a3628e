package domain

import (
	"time"
)

// SessionStatus represents the lifecycle state of a scraping session
type SessionStatus string

const (
	SessionStatusRunning   SessionStatus = "running"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusError     SessionStatus = "error"
	SessionStatusStopped   SessionStatus = "stopped"
)

// IsTerminal reports whether no further transition is allowed
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusError || s == SessionStatusStopped
}

// PlatformStatus represents the scraping state of one platform within a session
type PlatformStatus string

const (
	PlatformStatusPending   PlatformStatus = "pending"
	PlatformStatusScraping  PlatformStatus = "scraping"
	PlatformStatusCompleted PlatformStatus = "completed"
	PlatformStatusError     PlatformStatus = "error"
)

// IsDone reports whether the platform loop has settled
func (s PlatformStatus) IsDone() bool {
	return s == PlatformStatusCompleted || s == PlatformStatusError
}

// SearchConfig is the user's discovery request
type SearchConfig struct {
	Keywords  string       `json:"keywords" yaml:"keywords"`
	Location  string       `json:"location,omitempty" yaml:"location"`
	Country   string       `json:"country,omitempty" yaml:"country"`
	Platforms []PlatformID `json:"platforms" yaml:"platforms"`
}

// PlatformProgress tracks one platform's loop within a session
type PlatformProgress struct {
	Platform    PlatformID     `json:"platform"`
	Name        string         `json:"name"`
	Status      PlatformStatus `json:"status"`
	CurrentPage int            `json:"currentPage"`
	JobsFound   int            `json:"jobsFound"`
	HasNextPage bool           `json:"hasNextPage"`
	Error       string         `json:"error,omitempty"`
}

// ProgressSnapshot is the session-wide view pushed to observers
type ProgressSnapshot struct {
	SessionID          string             `json:"sessionId"`
	Status             SessionStatus      `json:"status"`
	TotalPlatforms     int                `json:"totalPlatforms"`
	CompletedPlatforms int                `json:"completedPlatforms"`
	CurrentPlatform    string             `json:"currentPlatform,omitempty"`
	JobsFound          int                `json:"jobsFound"`
	Percent            int                `json:"percent"`
	Errors             []string           `json:"errors"`
	Platforms          []PlatformProgress `json:"platforms"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

// Session is one end-to-end discovery request
type Session struct {
	ID        string           `json:"id"`
	Config    SearchConfig     `json:"config"`
	Status    SessionStatus    `json:"status"`
	StartTime time.Time        `json:"startTime"`
	EndTime   *time.Time       `json:"endTime"`
	Jobs      []JobRecord      `json:"jobs"`
	Progress  ProgressSnapshot `json:"progress"`
	Error     string           `json:"error,omitempty"`
}

// Clone returns a copy that shares no slices with s
func (s *Session) Clone() *Session {
	c := *s
	c.Jobs = append([]JobRecord(nil), s.Jobs...)
	c.Config.Platforms = append([]PlatformID(nil), s.Config.Platforms...)
	c.Progress.Errors = append([]string(nil), s.Progress.Errors...)
	c.Progress.Platforms = append([]PlatformProgress(nil), s.Progress.Platforms...)
	if s.EndTime != nil {
		t := *s.EndTime
		c.EndTime = &t
	}
	return &c
}

// EventType classifies pushed session events
type EventType string

const (
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventStopped   EventType = "stopped"
	EventError     EventType = "error"
)

// SessionEvent is what observers receive
type SessionEvent struct {
	Type      EventType         `json:"type"`
	SessionID string            `json:"sessionId"`
	Progress  *ProgressSnapshot `json:"progress,omitempty"`
	Jobs      []JobRecord       `json:"jobs,omitempty"`
	Error     string            `json:"error,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
