package scan

import (
	"time"

	"github.com/kpihub/scmscan/models"
)

// windowStart computes the incremental window start for a request.
// Precedence: LastScanFrom (epoch millis of the previous successful scan),
// then an explicit Since, then the configured default lookback. A first-ever
// scan therefore uses a bounded historical window, and every later scan only
// looks back to its last successful point.
func windowStart(req models.ScanRequest, lookbackMonths int, now func() time.Time) time.Time {
	if req.LastScanFrom > 0 {
		return time.UnixMilli(req.LastScanFrom)
	}
	if req.Since != nil {
		return *req.Since
	}
	return now().AddDate(0, -lookbackMonths, 0)
}

// clampToLookback pushes t forward to the lookback horizon when it is older.
// Used to bound the open-MR re-check window regardless of how old an open
// merge request is.
func clampToLookback(t time.Time, lookbackMonths int, now func() time.Time) time.Time {
	horizon := now().AddDate(0, -lookbackMonths, 0)
	if t.Before(horizon) {
		return horizon
	}
	return t
}
