package scan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kpihub/scmscan/internal/config"
	"github.com/kpihub/scmscan/internal/platform"
	"github.com/kpihub/scmscan/models"
)

// MergeRequestFetcher fetches merge requests in two phases and reconciles
// them. Merge requests are long-lived mutable entities: a PR opened months
// ago can close today, so a plain "updated since last scan" fetch would miss
// state transitions on old-but-still-open merge requests. Phase A finds new
// and recently updated merge requests; phase B re-checks the ones currently
// recorded as OPEN.
type MergeRequestFetcher struct {
	registry  *platform.Registry
	store     OpenMRStore
	scanner   config.ScannerConfig
	platforms config.PlatformsConfig
	now       func() time.Time
}

// NewMergeRequestFetcher creates a MergeRequestFetcher.
func NewMergeRequestFetcher(registry *platform.Registry, store OpenMRStore, scanner config.ScannerConfig, platforms config.PlatformsConfig) *MergeRequestFetcher {
	return &MergeRequestFetcher{registry: registry, store: store, scanner: scanner, platforms: platforms, now: time.Now}
}

// Fetch returns the reconciled, deduplicated merge-request list for the
// request's window. Each ExternalID appears at most once.
func (f *MergeRequestFetcher) Fetch(ctx context.Context, req models.ScanRequest) ([]models.MergeRequest, error) {
	svc, ok := f.registry.MergeRequests(req.ToolType)
	if !ok {
		return nil, processingErr(fmt.Sprintf("no merge-request service for platform %q", req.ToolType), nil)
	}

	spec, err := buildSpec(req, f.platforms, f.scanner.Pagination.PerPage)
	if err != nil {
		return nil, err
	}

	// Phase A: new and recently updated merge requests in the window.
	spec.Since = windowStart(req, f.scanner.FirstScanFromMonths, f.now)
	spec.Until = req.Until
	fresh, err := svc.FetchMergeRequests(ctx, spec)
	if err != nil {
		return nil, err
	}

	// Phase B: re-check persisted open merge requests for state changes.
	updated, err := f.refreshOpen(ctx, req, svc, spec)
	if err != nil {
		return nil, err
	}

	return reconcile(fresh, updated), nil
}

// refreshOpen loads the merge requests currently recorded as OPEN and
// re-fetches everything updated since the oldest of them (clamped to the
// configured lookback). The result is filtered to the known IDs: phase B
// never introduces merge requests, it only detects state transitions.
func (f *MergeRequestFetcher) refreshOpen(ctx context.Context, req models.ScanRequest, svc platform.MergeRequestService, spec platform.FetchSpec) ([]models.MergeRequest, error) {
	open, err := f.loadOpen(ctx, req.ToolConfigID)
	if err != nil {
		return nil, err
	}
	if len(open) == 0 {
		return nil, nil
	}

	oldest := open[0].UpdatedOn
	known := make(map[string]struct{}, len(open))
	for _, mr := range open {
		if mr.UpdatedOn.Before(oldest) {
			oldest = mr.UpdatedOn
		}
		known[mr.ExternalID] = struct{}{}
	}

	spec.Since = clampToLookback(oldest, f.scanner.FirstScanFromMonths, f.now)
	spec.Until = nil // state changes can be arbitrarily recent

	slog.Debug("re-checking open merge requests",
		"repo", spec.RepoName(), "open", len(open), "since", spec.Since)

	fetched, err := svc.FetchMergeRequests(ctx, spec)
	if err != nil {
		return nil, err
	}

	refreshed := fetched[:0]
	for _, mr := range fetched {
		if _, ok := known[mr.ExternalID]; ok {
			refreshed = append(refreshed, mr)
		}
	}
	return refreshed, nil
}

// loadOpen pages through persisted open merge requests, bounded by the
// configured page cap so a pathological backlog cannot grow memory without
// limit.
func (f *MergeRequestFetcher) loadOpen(ctx context.Context, toolConfigID string) ([]models.MergeRequest, error) {
	perPage := f.scanner.Pagination.PerPage
	if perPage <= 0 {
		perPage = 100
	}
	maxPages := f.scanner.Pagination.MaxOpenMRPages
	if maxPages <= 0 {
		maxPages = 10
	}

	var open []models.MergeRequest
	for page := 0; page < maxPages; page++ {
		batch, err := f.store.FindOpenMergeRequests(ctx, toolConfigID, page, perPage)
		if err != nil {
			return nil, processingErr("loading open merge requests", err)
		}
		open = append(open, batch...)
		if len(batch) < perPage {
			break
		}
	}
	return open, nil
}

// reconcile merges the two phases keyed by ExternalID. Fresh results go in
// first, then refreshed results overwrite any entry with the same ID: a
// re-checked open merge request's state always wins, because phase B is how
// OPEN→MERGED/CLOSED transitions are detected.
func reconcile(fresh, refreshed []models.MergeRequest) []models.MergeRequest {
	merged := make([]models.MergeRequest, 0, len(fresh)+len(refreshed))
	index := make(map[string]int, len(fresh))

	for _, mr := range fresh {
		if i, ok := index[mr.ExternalID]; ok {
			merged[i] = mr
			continue
		}
		index[mr.ExternalID] = len(merged)
		merged = append(merged, mr)
	}
	for _, mr := range refreshed {
		if i, ok := index[mr.ExternalID]; ok {
			merged[i] = mr
			continue
		}
		index[mr.ExternalID] = len(merged)
		merged = append(merged, mr)
	}
	return merged
}
