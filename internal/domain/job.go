package domain

import (
	"time"
)

// PlatformID identifies an external job board
type PlatformID string

const (
	PlatformLinkedIn PlatformID = "linkedin"
	PlatformSeek     PlatformID = "seek"
	PlatformIndeed   PlatformID = "indeed"
	PlatformJora     PlatformID = "jora"
	PlatformReed     PlatformID = "reed"
)

// JobRecord is one normalized job posting as produced by a page scrape.
// Records are never mutated after creation.
type JobRecord struct {
	Title             string     `json:"title"`
	Company           string     `json:"company"`
	Location          string     `json:"location"`
	URL               string     `json:"url"`
	Platform          PlatformID `json:"platform"`
	Description       string     `json:"description,omitempty"`
	Salary            string     `json:"salary,omitempty"`
	JobType           string     `json:"jobType,omitempty"`
	PostedDate        *string    `json:"postedDate"`
	ExtractedAt       time.Time  `json:"extractedAt"`
	RequiresResidency bool       `json:"requiresResidency"`
}

// JobStatistics summarizes a delivered job batch
type JobStatistics struct {
	TotalJobsFound  int `json:"totalJobsFound"`
	UniqueJobsFound int `json:"uniqueJobsFound"`
}
