// Package platform is the static catalog of supported job boards: search URL
// templates per country and per-platform scrape tuning.
package platform

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jobsweep/backend/internal/domain"
)

// Query is the search input used to build a platform URL
type Query struct {
	Keywords string
	Location string
	Country  string
}

// Tuning holds per-platform timeout and retry settings
type Tuning struct {
	PageTimeout time.Duration
	Retries     int
}

// Definition describes one job board
type Definition struct {
	ID   domain.PlatformID
	Name string
	// BuildURL returns false when the platform has no listing for the country
	BuildURL func(q Query) (string, bool)
}

// Registry is a read-only catalog; safe for concurrent use once built
type Registry struct {
	defs           map[domain.PlatformID]Definition
	order          []domain.PlatformID
	tuning         map[domain.PlatformID]Tuning
	defaultTimeout time.Duration
	defaultCountry string
}

// NewRegistry creates a registry with the given definitions in registration order
func NewRegistry(defaultTimeout time.Duration, defaultCountry string, defs ...Definition) *Registry {
	r := &Registry{
		defs:           make(map[domain.PlatformID]Definition, len(defs)),
		tuning:         make(map[domain.PlatformID]Tuning),
		defaultTimeout: defaultTimeout,
		defaultCountry: strings.ToLower(defaultCountry),
	}
	for _, d := range defs {
		if _, dup := r.defs[d.ID]; !dup {
			r.order = append(r.order, d.ID)
		}
		r.defs[d.ID] = d
	}
	return r
}

// NewDefaultRegistry returns the registry of all built-in job boards
func NewDefaultRegistry(defaultTimeout time.Duration, defaultCountry string) *Registry {
	return NewRegistry(defaultTimeout, defaultCountry,
		LinkedIn(), Seek(), Indeed(), Jora(), Reed())
}

// Tune sets per-platform overrides; zero fields fall back to defaults
func (r *Registry) Tune(id domain.PlatformID, t Tuning) {
	r.tuning[id] = t
}

// URLFor builds the first results page URL for the platform
func (r *Registry) URLFor(id domain.PlatformID, q Query) (string, error) {
	def, ok := r.defs[id]
	if !ok {
		return "", domain.NewPlatformError(id, 0, domain.ErrUnsupportedPlatform)
	}
	if q.Country == "" {
		q.Country = r.defaultCountry
	}
	q.Country = strings.ToLower(strings.TrimSpace(q.Country))
	u, ok := def.BuildURL(q)
	if !ok {
		return "", domain.NewPlatformError(id, 0,
			fmt.Errorf("%w: no listing for country %q", domain.ErrUnsupportedPlatform, q.Country))
	}
	return u, nil
}

// TimeoutFor returns the page scrape timeout for the platform
func (r *Registry) TimeoutFor(id domain.PlatformID) time.Duration {
	if t, ok := r.tuning[id]; ok && t.PageTimeout > 0 {
		return t.PageTimeout
	}
	return r.defaultTimeout
}

// RetriesFor returns how many times a timed-out page scrape is re-dispatched
func (r *Registry) RetriesFor(id domain.PlatformID) int {
	if t, ok := r.tuning[id]; ok && t.Retries > 0 {
		return t.Retries
	}
	return 0
}

// Name returns the display name, or the id when unknown
func (r *Registry) Name(id domain.PlatformID) string {
	if def, ok := r.defs[id]; ok {
		return def.Name
	}
	return string(id)
}

// Platforms returns all platform ids in registration order
func (r *Registry) Platforms() []domain.PlatformID {
	return append([]domain.PlatformID(nil), r.order...)
}

// Resolve validates a selection against the query's country and returns it
// deduplicated and in the caller's order.
func (r *Registry) Resolve(ids []domain.PlatformID, q Query) ([]domain.PlatformID, error) {
	seen := make(map[domain.PlatformID]struct{}, len(ids))
	out := make([]domain.PlatformID, 0, len(ids))
	for _, raw := range ids {
		id := domain.PlatformID(strings.ToLower(strings.TrimSpace(string(raw))))
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		if _, err := r.URLFor(id, q); err != nil {
			return nil, err
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, domain.ErrNoEnabledPlatforms
	}
	return out, nil
}

func pathSlug(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	for i, f := range fields {
		fields[i] = url.PathEscape(f)
	}
	return strings.Join(fields, "-")
}
