package agent

import (
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jobsweep/backend/internal/domain"
)

func parseReed(doc *goquery.Document, pageURL *url.URL) (*Page, error) {
	now := time.Now()
	page := &Page{}

	doc.Find(`article[data-qa="job-card"], article.job-result-card`).Each(func(_ int, card *goquery.Selection) {
		titleLink := card.Find(`[data-qa="job-card-title"], h2 a`)
		title := text(titleLink)
		if title == "" {
			return
		}

		postedBy := card.Find(`[data-qa="job-posted-by"], .job-result-heading__posted-by`)
		job := domain.JobRecord{
			Title:       title,
			Company:     text(postedBy.Find("a")),
			Location:    text(card.Find(`[data-qa="job-metadata-location"], .job-metadata__item--location`)),
			Platform:    domain.PlatformReed,
			Description: text(card.Find(`[data-qa="job-card-description"], .job-result-description__details`)),
			Salary:      text(card.Find(`[data-qa="job-metadata-salary"], .job-metadata__item--salary`)),
			JobType:     text(card.Find(`[data-qa="job-metadata-type"], .job-metadata__item--type`)),
			PostedDate:  postedDate(text(postedBy), now),
		}
		if href, ok := titleLink.Attr("href"); ok {
			job.URL = absURL(pageURL, href, true)
		}

		page.Jobs = append(page.Jobs, job)
	})

	page.NextPageURL = nextLink(doc, pageURL, `a[data-qa="pagination-next"], a[aria-label="Next page"], a#nextPage`)
	return page, nil
}
