package agent

import (
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jobsweep/backend/internal/domain"
)

func parseSeek(doc *goquery.Document, pageURL *url.URL) (*Page, error) {
	now := time.Now()
	page := &Page{}

	doc.Find(`article[data-card-type="JobCard"], article[data-automation="normalJob"]`).Each(func(_ int, card *goquery.Selection) {
		titleLink := card.Find(`a[data-automation="jobTitle"]`)
		title := text(titleLink)
		if title == "" {
			return
		}

		job := domain.JobRecord{
			Title:       title,
			Company:     text(card.Find(`a[data-automation="jobCompany"], span[data-automation="jobCompany"]`)),
			Location:    joinText(card.Find(`a[data-automation="jobLocation"], span[data-automation="jobLocation"]`), ", "),
			Platform:    domain.PlatformSeek,
			Description: text(card.Find(`span[data-automation="jobShortDescription"]`)),
			Salary:      text(card.Find(`span[data-automation="jobSalary"]`)),
			JobType:     text(card.Find(`[data-automation="jobWorkType"]`)),
			PostedDate:  postedDate(text(card.Find(`span[data-automation="jobListingDate"]`)), now),
		}
		if href, ok := titleLink.Attr("href"); ok {
			job.URL = absURL(pageURL, href, true)
		}

		page.Jobs = append(page.Jobs, job)
	})

	page.NextPageURL = nextLink(doc, pageURL, `a[data-automation="page-next"]`)
	return page, nil
}
