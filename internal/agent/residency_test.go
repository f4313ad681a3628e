package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeywordResidency(t *testing.T) {
	requires := KeywordResidency(DefaultResidencyTerms)

	cases := []struct {
		description string
		want        bool
	}{
		{"Applicants must be Australian Citizens or hold Permanent Residency.", true},
		{"You will need the RIGHT TO WORK IN THE UK.", true},
		{"Baseline clearance required", true},
		{"We offer visa sponsorship for the right candidate.", false},
		{"", false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, requires(tc.description), tc.description)
	}

	assert.False(t, KeywordResidency(nil)("citizenship required"))
	assert.True(t, KeywordResidency([]string{"  Citizenship "})("citizenship required"))
}
