package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jobsweep/backend/internal/domain"
)

// Pages finds and scripts open browser tabs
type Pages interface {
	FindTab(ctx context.Context, urlPrefix string) (string, bool, error)
	Evaluate(ctx context.Context, tabID, script string, out interface{}) error
}

// ResultsPayload is what an open results page receives
type ResultsPayload struct {
	Jobs      []domain.JobRecord  `json:"jobs"`
	Config    domain.SearchConfig `json:"config"`
	Timestamp int64               `json:"timestamp"`
	SessionID string              `json:"sessionId"`
	TotalJobs int                 `json:"totalJobs"`
	Platforms []domain.PlatformID `json:"platforms"`
}

// Injector pushes results into an already open results page as a
// CustomEvent plus a localStorage write. No open page is not an error.
type Injector struct {
	pages      Pages
	urlPrefix  string
	eventName  string
	storageKey string
	now        func() time.Time
}

// NewInjector creates an injector for tabs whose URL starts with urlPrefix
func NewInjector(pages Pages, urlPrefix, eventName, storageKey string) *Injector {
	return &Injector{
		pages:      pages,
		urlPrefix:  urlPrefix,
		eventName:  eventName,
		storageKey: storageKey,
		now:        time.Now,
	}
}

// Deliver implements Target
func (i *Injector) Deliver(ctx context.Context, s *domain.Session, _ domain.JobStatistics) error {
	tabID, ok, err := i.pages.FindTab(ctx, i.urlPrefix)
	if err != nil {
		return fmt.Errorf("find results page: %w", err)
	}
	if !ok {
		return nil
	}

	jobs := s.Jobs
	if jobs == nil {
		jobs = []domain.JobRecord{}
	}
	payload, err := json.Marshal(ResultsPayload{
		Jobs:      jobs,
		Config:    s.Config,
		Timestamp: i.now().UnixMilli(),
		SessionID: s.ID,
		TotalJobs: len(jobs),
		Platforms: s.Config.Platforms,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	event, _ := json.Marshal(i.eventName)
	key, _ := json.Marshal(i.storageKey)

	script := fmt.Sprintf(injectScript, payload, key, event)
	if err := i.pages.Evaluate(ctx, tabID, script, nil); err != nil {
		return fmt.Errorf("inject into %s: %w", tabID, err)
	}
	return nil
}

const injectScript = `(() => {
  const detail = %s;
  try { localStorage.setItem(%s, JSON.stringify(detail)); } catch (e) {}
  window.dispatchEvent(new CustomEvent(%s, { detail }));
  return true;
})()`
