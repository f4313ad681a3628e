package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jobsweep/backend/internal/domain"
)

func TestDedup(t *testing.T) {
	jobs := []domain.JobRecord{
		{Title: "Eng", Company: "Acme", Platform: "li", URL: "https://x/1?ref=a"},
		{Title: "eng ", Company: " ACME", Platform: "li", URL: "https://x/1?ref=b"},
		{Title: "Eng", Company: "Acme", Platform: "seek"},
	}

	once := Dedup(jobs)
	assert.Len(t, once, 2)
	assert.Equal(t, "https://x/1?ref=a", once[0].URL)
	assert.Equal(t, domain.PlatformID("seek"), once[1].Platform)

	assert.Equal(t, once, Dedup(once))
}

func TestDedup_PreservesOrder(t *testing.T) {
	jobs := []domain.JobRecord{
		{Title: "C", Company: "x", Platform: "a"},
		{Title: "A", Company: "x", Platform: "a"},
		{Title: "c", Company: "X", Platform: "a"},
		{Title: "B", Company: "x", Platform: "a"},
	}
	got := Dedup(jobs)
	var titles []string
	for _, j := range got {
		titles = append(titles, j.Title)
	}
	assert.Equal(t, []string{"C", "A", "B"}, titles)
}

func TestDedup_Empty(t *testing.T) {
	assert.Empty(t, Dedup(nil))
}

func TestJobKey_FoldsCase(t *testing.T) {
	a := domain.JobRecord{Title: "STRASSE Engineer", Company: "Müller GmbH", Platform: "seek"}
	b := domain.JobRecord{Title: "strasse engineer", Company: "MÜLLER GMBH", Platform: "SEEK"}
	assert.Equal(t, JobKey(a), JobKey(b))
}
