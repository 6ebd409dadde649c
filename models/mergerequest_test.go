package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeMRState(t *testing.T) {
	cases := []struct {
		raw    string
		merged bool
		want   MergeRequestState
	}{
		// GitHub: open/closed plus a merged flag
		{"open", false, MRStateOpen},
		{"closed", false, MRStateClosed},
		{"closed", true, MRStateMerged},
		// GitLab
		{"opened", false, MRStateOpen},
		{"merged", false, MRStateMerged},
		// Bitbucket reports upper-case states
		{"OPEN", false, MRStateOpen},
		{"MERGED", true, MRStateMerged},
		{"DECLINED", false, MRStateDeclined},
		// Azure DevOps
		{"active", false, MRStateOpen},
		{"completed", true, MRStateMerged},
		{"abandoned", false, MRStateDeclined},
		// Unknown states pass through upper-cased rather than being dropped
		{"superseded", false, MergeRequestState("SUPERSEDED")},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeMRState(tc.raw, tc.merged), "%s merged=%v", tc.raw, tc.merged)
	}
}
