package agent

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jobsweep/backend/internal/domain"
)

// Page is what a parser extracts from one result page
type Page struct {
	Jobs []domain.JobRecord
	// NextPageURL is empty when the board shows no further page
	NextPageURL string
}

// Parser extracts job cards and the pagination cursor from a result page
type Parser interface {
	Parse(doc *goquery.Document, pageURL *url.URL) (*Page, error)
}

// ParserFunc adapts a function to Parser
type ParserFunc func(doc *goquery.Document, pageURL *url.URL) (*Page, error)

// Parse implements Parser
func (f ParserFunc) Parse(doc *goquery.Document, pageURL *url.URL) (*Page, error) {
	return f(doc, pageURL)
}

// DefaultParsers returns the built-in parser for every supported board
func DefaultParsers() map[domain.PlatformID]Parser {
	return map[domain.PlatformID]Parser{
		domain.PlatformLinkedIn: ParserFunc(parseLinkedIn),
		domain.PlatformSeek:     ParserFunc(parseSeek),
		domain.PlatformIndeed:   ParserFunc(parseIndeed),
		domain.PlatformJora:     ParserFunc(parseJora),
		domain.PlatformReed:     ParserFunc(parseReed),
	}
}

// ParseHTML runs parser over raw page HTML
func ParseHTML(parser Parser, html, pageURL string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url %q: %w", pageURL, err)
	}
	return parser.Parse(doc, u)
}

// text returns the first match's text with whitespace collapsed
func text(sel *goquery.Selection) string {
	return strings.Join(strings.Fields(sel.First().Text()), " ")
}

// joinText collapses and joins the text of every match
func joinText(sel *goquery.Selection, sep string) string {
	var parts []string
	sel.Each(func(_ int, s *goquery.Selection) {
		if t := strings.Join(strings.Fields(s.Text()), " "); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, sep)
}

// absURL resolves href against the page, dropping tracking parameters when
// strip is set
func absURL(base *url.URL, href string, strip bool) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	u := base.ResolveReference(ref)
	if strip {
		u.RawQuery = ""
		u.Fragment = ""
	}
	return u.String()
}

// nextLink resolves the href of the first matching pagination link
func nextLink(doc *goquery.Document, base *url.URL, selector string) string {
	link := doc.Find(selector).First()
	if link.Length() == 0 {
		return ""
	}
	if v, ok := link.Attr("aria-disabled"); ok && v == "true" {
		return ""
	}
	href, _ := link.Attr("href")
	return absURL(base, href, false)
}

var (
	agoPattern  = regexp.MustCompile(`(\d+)\s*(m|min|minute|h|hr|hour|d|day|w|week|mo|month)s?\+?\s*ago`)
	dateFormats = []string{"2006-01-02", time.RFC3339, "2 January 2006", "2 Jan 2006", "January 2, 2006"}
)

// postedDate normalizes a posting date to YYYY-MM-DD, accepting absolute
// dates and relative phrases such as "3d ago" or "Posted 2 days ago".
// It returns nil when the text carries no recognizable date.
func postedDate(raw string, now time.Time) *string {
	t := strings.ToLower(strings.TrimSpace(raw))
	if t == "" {
		return nil
	}

	for _, layout := range dateFormats {
		if d, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
			return dateString(d)
		}
	}

	switch {
	case t == "new", strings.Contains(t, "just posted"), strings.Contains(t, "today"),
		strings.Contains(t, "just now"):
		return dateString(now)
	case strings.Contains(t, "yesterday"):
		return dateString(now.AddDate(0, 0, -1))
	}

	m := agoPattern.FindStringSubmatch(t)
	if len(m) < 3 {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	switch m[2] {
	case "m", "min", "minute":
		return dateString(now.Add(-time.Duration(n) * time.Minute))
	case "h", "hr", "hour":
		return dateString(now.Add(-time.Duration(n) * time.Hour))
	case "d", "day":
		return dateString(now.AddDate(0, 0, -n))
	case "w", "week":
		return dateString(now.AddDate(0, 0, -7*n))
	case "mo", "month":
		return dateString(now.AddDate(0, -n, 0))
	}
	return nil
}

func dateString(t time.Time) *string {
	s := t.Format("2006-01-02")
	return &s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
