package ratelimit

import (
	"time"

	"github.com/kpihub/scmscan/models"
)

// Status is a point-in-time snapshot of quota usage for one platform.
// It is created fresh on every check and never mutated.
type Status struct {
	Platform  models.ToolType
	Used      int
	Remaining int
	Limit     int
	// ResetTime is the absolute instant the quota renews.
	ResetTime time.Time
	// Estimated marks platforms without a genuine rate-limit API.
	Estimated bool
}

// UsagePercentage returns used/limit as a fraction, 0 when limit is 0.
func (s Status) UsagePercentage() float64 {
	if s.Limit == 0 {
		return 0
	}
	return float64(s.Used) / float64(s.Limit)
}

// ExceedsThreshold reports whether usage has reached the given fraction.
func (s Status) ExceedsThreshold(threshold float64) bool {
	return s.UsagePercentage() >= threshold
}
