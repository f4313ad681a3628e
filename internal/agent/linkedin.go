package agent

import (
	"net/url"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jobsweep/backend/internal/domain"
)

// linkedInPageSize is the number of cards LinkedIn renders per result page
const linkedInPageSize = 25

// parseLinkedIn reads the public job search list. LinkedIn paginates by
// the start offset rather than with a next link, so a full page of cards
// implies another one.
func parseLinkedIn(doc *goquery.Document, pageURL *url.URL) (*Page, error) {
	now := time.Now()
	page := &Page{}

	cards := doc.Find(".jobs-search__results-list > li")
	if cards.Length() == 0 {
		cards = doc.Find(".job-search-card")
	}
	cards.Each(func(_ int, card *goquery.Selection) {
		title := text(card.Find(".base-search-card__title, .job-search-card__title"))
		if title == "" {
			return
		}

		job := domain.JobRecord{
			Title:    title,
			Company:  text(card.Find(".base-search-card__subtitle, .job-search-card__company-name")),
			Location: text(card.Find(".job-search-card__location")),
			Platform: domain.PlatformLinkedIn,
			Salary:   text(card.Find(".job-search-card__salary-info")),
		}
		if href, ok := card.Find("a.base-card__full-link, a.job-search-card__link").Attr("href"); ok {
			job.URL = absURL(pageURL, href, true)
		}
		if dt, ok := card.Find("time").Attr("datetime"); ok {
			job.PostedDate = postedDate(dt, now)
		} else {
			job.PostedDate = postedDate(text(card.Find("time")), now)
		}

		page.Jobs = append(page.Jobs, job)
	})

	if cards.Length() >= linkedInPageSize {
		next := *pageURL
		q := next.Query()
		start, _ := strconv.Atoi(q.Get("start"))
		q.Set("start", strconv.Itoa(start+cards.Length()))
		next.RawQuery = q.Encode()
		page.NextPageURL = next.String()
	}

	return page, nil
}
