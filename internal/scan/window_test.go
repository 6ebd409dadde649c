package scan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kpihub/scmscan/models"
)

func fixedNow() time.Time {
	return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
}

func TestWindowStartPrecedence(t *testing.T) {
	now := func() time.Time { return fixedNow() }
	since := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	lastScan := time.Date(2025, 5, 1, 8, 30, 0, 0, time.UTC)

	// LastScanFrom wins over an explicit Since.
	got := windowStart(models.ScanRequest{
		LastScanFrom: lastScan.UnixMilli(),
		Since:        &since,
	}, 6, now)
	assert.True(t, got.Equal(lastScan), "got %s", got)

	// Without LastScanFrom the explicit Since applies.
	got = windowStart(models.ScanRequest{Since: &since}, 6, now)
	assert.True(t, got.Equal(since), "got %s", got)

	// Neither set: default lookback from now.
	got = windowStart(models.ScanRequest{}, 6, now)
	assert.True(t, got.Equal(fixedNow().AddDate(0, -6, 0)), "got %s", got)
}

func TestClampToLookback(t *testing.T) {
	now := func() time.Time { return fixedNow() }
	horizon := fixedNow().AddDate(0, -6, 0)

	ancient := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, clampToLookback(ancient, 6, now).Equal(horizon))

	recent := fixedNow().AddDate(0, -1, 0)
	assert.True(t, clampToLookback(recent, 6, now).Equal(recent))
}
