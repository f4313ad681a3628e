package session

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/jobsweep/backend/internal/domain"
)

var fold = cases.Fold()

// JobKey is the identity used for duplicate detection: case-folded, trimmed
// title, company and platform. URLs are ignored because boards add tracking
// parameters to them.
func JobKey(j domain.JobRecord) string {
	return strings.Join([]string{
		fold.String(strings.TrimSpace(j.Title)),
		fold.String(strings.TrimSpace(j.Company)),
		fold.String(strings.TrimSpace(string(j.Platform))),
	}, "\x1f")
}

// Dedup keeps the first occurrence of every JobKey, preserving order
func Dedup(jobs []domain.JobRecord) []domain.JobRecord {
	seen := make(map[string]struct{}, len(jobs))
	out := make([]domain.JobRecord, 0, len(jobs))
	for _, j := range jobs {
		k := JobKey(j)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, j)
	}
	return out
}
