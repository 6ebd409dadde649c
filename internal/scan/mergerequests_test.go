package scan

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kpihub/scmscan/internal/config"
	"github.com/kpihub/scmscan/internal/platform"
	"github.com/kpihub/scmscan/models"
)

func TestReconcileDeduplicates(t *testing.T) {
	fresh := []models.MergeRequest{
		{ExternalID: "1", State: models.MRStateOpen},
		{ExternalID: "2", State: models.MRStateOpen},
		{ExternalID: "1", State: models.MRStateMerged}, // later page wins
	}
	out := reconcile(fresh, nil)

	require.Len(t, out, 2)
	assert.Equal(t, models.MRStateMerged, out[0].State)
	assert.Equal(t, "2", out[1].ExternalID)
}

func TestReconcileRefreshedWins(t *testing.T) {
	fresh := []models.MergeRequest{
		{ExternalID: "1", State: models.MRStateOpen},
		{ExternalID: "2", State: models.MRStateOpen},
	}
	refreshed := []models.MergeRequest{
		{ExternalID: "2", State: models.MRStateMerged},
		{ExternalID: "3", State: models.MRStateClosed},
	}
	out := reconcile(fresh, refreshed)

	require.Len(t, out, 3)
	byID := map[string]models.MergeRequestState{}
	for _, mr := range out {
		_, dup := byID[mr.ExternalID]
		require.False(t, dup, "duplicate external id %s", mr.ExternalID)
		byID[mr.ExternalID] = mr.State
	}
	assert.Equal(t, models.MRStateOpen, byID["1"])
	assert.Equal(t, models.MRStateMerged, byID["2"])
	assert.Equal(t, models.MRStateClosed, byID["3"])
}

func newTestMRFetcher(fp *fakePlatform, store *fakeStore) *MergeRequestFetcher {
	reg := &platform.Registry{}
	reg.Register(models.ToolTypeGitHub, fp, fp, fp)
	f := NewMergeRequestFetcher(reg, store, testScannerConfig(), config.PlatformsConfig{})
	f.now = fixedNow
	return f
}

func TestFetchDetectsStateTransitionOnOldOpenMR(t *testing.T) {
	oldUpdate := fixedNow().AddDate(0, -2, 0)
	fp := &fakePlatform{
		mrResults: [][]models.MergeRequest{
			// Phase A: one brand-new merge request.
			{{ExternalID: "10", State: models.MRStateOpen, UpdatedOn: fixedNow().Add(-time.Hour)}},
			// Phase B: the persisted open MR closed, plus an unknown one
			// that must not leak in through the re-check.
			{
				{ExternalID: "7", State: models.MRStateMerged, UpdatedOn: fixedNow().Add(-time.Minute)},
				{ExternalID: "99", State: models.MRStateOpen, UpdatedOn: fixedNow().Add(-time.Minute)},
			},
		},
	}
	store := &fakeStore{open: []models.MergeRequest{
		{ExternalID: "7", State: models.MRStateOpen, UpdatedOn: oldUpdate},
	}}

	out, err := newTestMRFetcher(fp, store).Fetch(context.Background(), testRequest())
	require.NoError(t, err)

	require.Len(t, out, 2)
	byID := map[string]models.MergeRequestState{}
	for _, mr := range out {
		byID[mr.ExternalID] = mr.State
	}
	assert.Equal(t, models.MRStateOpen, byID["10"])
	assert.Equal(t, models.MRStateMerged, byID["7"], "open re-check must surface the transition")
	assert.NotContains(t, byID, "99")

	// The re-check window starts at the oldest persisted open MR and is
	// unbounded at the top so arbitrarily recent transitions are seen.
	require.Len(t, fp.mrSpecs, 2)
	assert.True(t, fp.mrSpecs[1].Since.Equal(oldUpdate))
	assert.Nil(t, fp.mrSpecs[1].Until)
}

func TestFetchSkipsRecheckWithoutOpenMRs(t *testing.T) {
	fp := &fakePlatform{mrResults: [][]models.MergeRequest{
		{{ExternalID: "1", State: models.MRStateOpen, UpdatedOn: fixedNow()}},
	}}
	store := &fakeStore{}

	out, err := newTestMRFetcher(fp, store).Fetch(context.Background(), testRequest())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Len(t, fp.mrSpecs, 1, "no persisted open MRs means a single fetch")
}

func TestFetchRecheckWindowClampedToLookback(t *testing.T) {
	ancient := fixedNow().AddDate(-2, 0, 0)
	fp := &fakePlatform{mrResults: [][]models.MergeRequest{
		nil,
		{{ExternalID: "7", State: models.MRStateDeclined, UpdatedOn: fixedNow()}},
	}}
	store := &fakeStore{open: []models.MergeRequest{
		{ExternalID: "7", State: models.MRStateOpen, UpdatedOn: ancient},
	}}

	_, err := newTestMRFetcher(fp, store).Fetch(context.Background(), testRequest())
	require.NoError(t, err)

	require.Len(t, fp.mrSpecs, 2)
	horizon := fixedNow().AddDate(0, -testScannerConfig().FirstScanFromMonths, 0)
	assert.True(t, fp.mrSpecs[1].Since.Equal(horizon),
		"re-check window must not reach past the lookback horizon, got %s", fp.mrSpecs[1].Since)
}
