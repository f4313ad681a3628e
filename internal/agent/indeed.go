package agent

import (
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jobsweep/backend/internal/domain"
)

func parseIndeed(doc *goquery.Document, pageURL *url.URL) (*Page, error) {
	now := time.Now()
	page := &Page{}

	doc.Find(".job_seen_beacon, .jobsearch-SerpJobCard").Each(func(_ int, card *goquery.Selection) {
		titleLink := card.Find("h2.jobTitle a, a.jcs-JobTitle")
		title := text(titleLink)
		if title == "" {
			title = text(card.Find("[data-testid='jobTitle']"))
		}
		if title == "" {
			return
		}

		job := domain.JobRecord{
			Title:       title,
			Company:     text(card.Find("[data-testid='company-name'], .companyName")),
			Location:    text(card.Find("[data-testid='text-location'], .companyLocation")),
			Platform:    domain.PlatformIndeed,
			Description: text(card.Find(".job-snippet, [data-testid='jobsnippet_footer']")),
			Salary:      text(card.Find(".salary-snippet-container, [data-testid='attribute_snippet_testid']")),
			PostedDate:  postedDate(text(card.Find(".date, [data-testid='myJobsStateDate']")), now),
		}

		// the job key gives a stable URL without tracking parameters
		jk, ok := titleLink.Attr("data-jk")
		if !ok {
			jk, ok = card.Find("[data-jk]").Attr("data-jk")
		}
		if ok && jk != "" {
			job.URL = absURL(pageURL, "/viewjob?jk="+url.QueryEscape(jk), false)
		} else if href, ok := titleLink.Attr("href"); ok {
			job.URL = absURL(pageURL, href, false)
		}

		page.Jobs = append(page.Jobs, job)
	})

	page.NextPageURL = nextLink(doc, pageURL, "a[data-testid='pagination-page-next'], a[aria-label='Next Page']")
	return page, nil
}
