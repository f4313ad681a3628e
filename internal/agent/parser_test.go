package agent

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobsweep/backend/internal/domain"
)

const seekHTML = `<html><body>
<article data-card-type="JobCard">
  <a data-automation="jobTitle" href="/job/123?type=standout&ref=search">Senior  Go Engineer</a>
  <a data-automation="jobCompany">Acme Pty Ltd</a>
  <a data-automation="jobLocation">Sydney NSW</a>
  <a data-automation="jobLocation">CBD</a>
  <span data-automation="jobSalary">$150k - $170k</span>
  <span data-automation="jobShortDescription">Must hold Australian citizenship.</span>
  <span data-automation="jobListingDate">3d ago</span>
</article>
<article data-card-type="JobCard">
  <a data-automation="jobTitle" href="/job/456">Platform Engineer</a>
  <a data-automation="jobCompany">Globex</a>
</article>
<article data-card-type="JobCard"><span>promoted slot without a title</span></article>
<a data-automation="page-next" href="/go-jobs/in-sydney?page=2">Next</a>
</body></html>`

func TestParseSeek(t *testing.T) {
	page, err := ParseHTML(ParserFunc(parseSeek), seekHTML, "https://www.seek.com.au/go-jobs/in-sydney")
	require.NoError(t, err)

	require.Len(t, page.Jobs, 2)
	first := page.Jobs[0]
	assert.Equal(t, "Senior Go Engineer", first.Title)
	assert.Equal(t, "Acme Pty Ltd", first.Company)
	assert.Equal(t, "Sydney NSW, CBD", first.Location)
	assert.Equal(t, "https://www.seek.com.au/job/123", first.URL)
	assert.Equal(t, "$150k - $170k", first.Salary)
	assert.Equal(t, domain.PlatformSeek, first.Platform)
	require.NotNil(t, first.PostedDate)
	assert.Equal(t, time.Now().AddDate(0, 0, -3).Format("2006-01-02"), *first.PostedDate)

	assert.Nil(t, page.Jobs[1].PostedDate)
	assert.Equal(t, "https://www.seek.com.au/go-jobs/in-sydney?page=2", page.NextPageURL)
}

func TestParseLinkedIn_OffsetPagination(t *testing.T) {
	card := `<li><div class="base-card job-search-card">
  <a class="base-card__full-link" href="https://au.linkedin.com/jobs/view/engineer-at-acme-1?refId=abc&trackingId=x"></a>
  <h3 class="base-search-card__title">Engineer</h3>
  <h4 class="base-search-card__subtitle">Acme</h4>
  <span class="job-search-card__location">Melbourne</span>
  <time datetime="2024-05-01">1 week ago</time>
</div></li>`

	full := `<ul class="jobs-search__results-list">` + strings.Repeat(card, linkedInPageSize) + `</ul>`
	page, err := ParseHTML(ParserFunc(parseLinkedIn), full, "https://www.linkedin.com/jobs/search/?keywords=engineer")
	require.NoError(t, err)
	require.Len(t, page.Jobs, linkedInPageSize)
	assert.Equal(t, "https://au.linkedin.com/jobs/view/engineer-at-acme-1", page.Jobs[0].URL)
	require.NotNil(t, page.Jobs[0].PostedDate)
	assert.Equal(t, "2024-05-01", *page.Jobs[0].PostedDate)
	assert.Equal(t, "https://www.linkedin.com/jobs/search/?keywords=engineer&start=25", page.NextPageURL)

	partial := `<ul class="jobs-search__results-list">` + strings.Repeat(card, 3) + `</ul>`
	page, err = ParseHTML(ParserFunc(parseLinkedIn), partial, "https://www.linkedin.com/jobs/search/?keywords=engineer&start=25")
	require.NoError(t, err)
	assert.Len(t, page.Jobs, 3)
	assert.Empty(t, page.NextPageURL)
}

func TestParseIndeed(t *testing.T) {
	html := `<div class="job_seen_beacon">
  <h2 class="jobTitle"><a data-jk="abc123" href="/rc/clk?jk=abc123&from=serp">Backend Developer</a></h2>
  <span data-testid="company-name">Initech</span>
  <div data-testid="text-location">Brisbane QLD</div>
  <div class="job-snippet">Great team.</div>
  <span class="date">Posted Just posted</span>
</div>
<a data-testid="pagination-page-next" href="/jobs?q=go&start=10">Next</a>`

	page, err := ParseHTML(ParserFunc(parseIndeed), html, "https://au.indeed.com/jobs?q=go")
	require.NoError(t, err)
	require.Len(t, page.Jobs, 1)
	assert.Equal(t, "https://au.indeed.com/viewjob?jk=abc123", page.Jobs[0].URL)
	assert.Equal(t, "Initech", page.Jobs[0].Company)
	require.NotNil(t, page.Jobs[0].PostedDate)
	assert.Equal(t, time.Now().Format("2006-01-02"), *page.Jobs[0].PostedDate)
	assert.Equal(t, "https://au.indeed.com/jobs?q=go&start=10", page.NextPageURL)
}

func TestParseJora_LastPage(t *testing.T) {
	html := `<article class="job-card">
  <h2 class="job-title"><a href="/job/Go-Developer-1?sp=serp">Go Developer</a></h2>
  <span class="job-company">Hooli</span>
  <a class="job-location">Perth WA</a>
  <span class="job-listed-date">2 weeks ago</span>
</article>
<a class="next-page-button" aria-disabled="true" href="#">Next</a>`

	page, err := ParseHTML(ParserFunc(parseJora), html, "https://au.jora.com/j?q=go")
	require.NoError(t, err)
	require.Len(t, page.Jobs, 1)
	assert.Equal(t, "https://au.jora.com/job/Go-Developer-1", page.Jobs[0].URL)
	assert.Empty(t, page.NextPageURL)
}

func TestParseReed(t *testing.T) {
	html := `<article data-qa="job-card">
  <h2><a data-qa="job-card-title" href="/jobs/data-analyst/5001?source=searchResults">Data Analyst</a></h2>
  <div data-qa="job-posted-by">Posted 2 days ago by <a href="/recruiters/newcastle">Newcastle Analytics</a></div>
  <li data-qa="job-metadata-location">London</li>
  <li data-qa="job-metadata-salary">£40,000 per annum</li>
  <li data-qa="job-metadata-type">Permanent, full-time</li>
</article>`

	page, err := ParseHTML(ParserFunc(parseReed), html, "https://www.reed.co.uk/jobs/data-analyst-jobs-in-london")
	require.NoError(t, err)
	require.Len(t, page.Jobs, 1)
	job := page.Jobs[0]
	assert.Equal(t, "Newcastle Analytics", job.Company)
	assert.Equal(t, "Permanent, full-time", job.JobType)
	assert.Equal(t, "https://www.reed.co.uk/jobs/data-analyst/5001", job.URL)
	require.NotNil(t, job.PostedDate)
	assert.Equal(t, time.Now().AddDate(0, 0, -2).Format("2006-01-02"), *job.PostedDate)
	assert.Empty(t, page.NextPageURL)
}

func TestPostedDate(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	cases := map[string]string{
		"2024-06-01":        "2024-06-01",
		"Today":             "2024-06-15",
		"Yesterday":         "2024-06-14",
		"5h ago":            "2024-06-15",
		"30d+ ago":          "2024-05-16",
		"Posted 3 days ago": "2024-06-12",
		"1 month ago":       "2024-05-15",
	}
	for raw, want := range cases {
		got := postedDate(raw, now)
		if assert.NotNil(t, got, raw) {
			assert.Equal(t, want, *got, raw)
		}
	}

	assert.Nil(t, postedDate("", now))
	assert.Nil(t, postedDate("Featured", now))
}
