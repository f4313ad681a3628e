package agent

import "strings"

// ResidencyPredicate reports whether a posting's description restricts it to
// citizens, permanent residents or holders of existing work rights
type ResidencyPredicate func(description string) bool

// DefaultResidencyTerms are the phrases the keyword classifier looks for
var DefaultResidencyTerms = []string{
	"citizenship",
	"citizens only",
	"must be a citizen",
	"australian citizen",
	"new zealand citizen",
	"permanent resident",
	"permanent residency",
	"pr holder",
	"right to work in the uk",
	"full working rights",
	"unrestricted work rights",
	"valid work rights",
	"no visa sponsorship",
	"unable to sponsor",
	"not able to offer sponsorship",
	"security clearance",
	"baseline clearance",
	"nv1",
	"nv2",
}

// KeywordResidency returns a predicate matching any of terms case-insensitively
func KeywordResidency(terms []string) ResidencyPredicate {
	lowered := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			lowered = append(lowered, t)
		}
	}
	return func(description string) bool {
		if description == "" || len(lowered) == 0 {
			return false
		}
		d := strings.ToLower(description)
		for _, t := range lowered {
			if strings.Contains(d, t) {
				return true
			}
		}
		return false
	}
}
