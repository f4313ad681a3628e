package platform

import (
	"net/url"

	"github.com/jobsweep/backend/internal/domain"
)

// LinkedIn search is global; location carries the country when none is given
func LinkedIn() Definition {
	countryNames := map[string]string{
		"au": "Australia", "nz": "New Zealand", "uk": "United Kingdom",
		"us": "United States", "ca": "Canada",
	}
	return Definition{
		ID:   domain.PlatformLinkedIn,
		Name: "LinkedIn",
		BuildURL: func(q Query) (string, bool) {
			params := url.Values{}
			params.Set("keywords", q.Keywords)
			switch {
			case q.Location != "":
				params.Set("location", q.Location)
			case countryNames[q.Country] != "":
				params.Set("location", countryNames[q.Country])
			}
			params.Set("f_TPR", "r604800") // past week
			return "https://www.linkedin.com/jobs/search/?" + params.Encode(), true
		},
	}
}

func Seek() Definition {
	hosts := map[string]string{
		"au": "https://www.seek.com.au",
		"nz": "https://www.seek.co.nz",
	}
	return Definition{
		ID:   domain.PlatformSeek,
		Name: "SEEK",
		BuildURL: func(q Query) (string, bool) {
			host, ok := hosts[q.Country]
			if !ok {
				return "", false
			}
			u := host + "/" + pathSlug(q.Keywords) + "-jobs"
			if q.Location != "" {
				u += "/in-" + pathSlug(q.Location)
			}
			return u, true
		},
	}
}

func Indeed() Definition {
	hosts := map[string]string{
		"au": "https://au.indeed.com",
		"nz": "https://nz.indeed.com",
		"uk": "https://uk.indeed.com",
		"ca": "https://ca.indeed.com",
		"us": "https://www.indeed.com",
	}
	return Definition{
		ID:   domain.PlatformIndeed,
		Name: "Indeed",
		BuildURL: func(q Query) (string, bool) {
			host, ok := hosts[q.Country]
			if !ok {
				return "", false
			}
			params := url.Values{}
			params.Set("q", q.Keywords)
			if q.Location != "" {
				params.Set("l", q.Location)
			}
			params.Set("fromage", "7")
			return host + "/jobs?" + params.Encode(), true
		},
	}
}

func Jora() Definition {
	hosts := map[string]string{
		"au": "https://au.jora.com",
		"nz": "https://nz.jora.com",
		"uk": "https://uk.jora.com",
	}
	return Definition{
		ID:   domain.PlatformJora,
		Name: "Jora",
		BuildURL: func(q Query) (string, bool) {
			host, ok := hosts[q.Country]
			if !ok {
				return "", false
			}
			params := url.Values{}
			params.Set("q", q.Keywords)
			if q.Location != "" {
				params.Set("l", q.Location)
			}
			return host + "/j?" + params.Encode(), true
		},
	}
}

// Reed only lists UK jobs
func Reed() Definition {
	return Definition{
		ID:   domain.PlatformReed,
		Name: "Reed",
		BuildURL: func(q Query) (string, bool) {
			if q.Country != "uk" {
				return "", false
			}
			u := "https://www.reed.co.uk/jobs/" + pathSlug(q.Keywords) + "-jobs"
			if q.Location != "" {
				u += "-in-" + pathSlug(q.Location)
			}
			return u, true
		},
	}
}
