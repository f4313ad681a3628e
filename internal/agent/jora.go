package agent

import (
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jobsweep/backend/internal/domain"
)

func parseJora(doc *goquery.Document, pageURL *url.URL) (*Page, error) {
	now := time.Now()
	page := &Page{}

	doc.Find(".job-card").Each(func(_ int, card *goquery.Selection) {
		titleLink := card.Find(".job-title a, a.job-link")
		title := text(titleLink)
		if title == "" {
			return
		}

		job := domain.JobRecord{
			Title:       title,
			Company:     text(card.Find(".job-company")),
			Location:    text(card.Find(".job-location")),
			Platform:    domain.PlatformJora,
			Description: text(card.Find(".job-abstract")),
			Salary:      text(card.Find(".job-salary, .badge.-salary")),
			JobType:     text(card.Find(".job-type, .badge.-work-type")),
			PostedDate:  postedDate(text(card.Find(".job-listed-date")), now),
		}
		if href, ok := titleLink.Attr("href"); ok {
			job.URL = absURL(pageURL, href, true)
		}

		page.Jobs = append(page.Jobs, job)
	})

	page.NextPageURL = nextLink(doc, pageURL, "a.next-page-button, a[rel='next']")
	return page, nil
}
