package scan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kpihub/scmscan/internal/config"
	"github.com/kpihub/scmscan/internal/giturl"
	"github.com/kpihub/scmscan/internal/platform"
	"github.com/kpihub/scmscan/models"
)

// OpenMRStore is the slice of persistence the merge-request fetcher needs:
// reading back the merge requests currently recorded as OPEN.
type OpenMRStore interface {
	FindOpenMergeRequests(ctx context.Context, toolConfigID string, page, perPage int) ([]models.MergeRequest, error)
}

// buildSpec assembles the platform fetch spec shared by all fetchers.
// Request credentials win over configured platform defaults.
func buildSpec(req models.ScanRequest, platforms config.PlatformsConfig, perPage int) (platform.FetchSpec, error) {
	path, err := giturl.Parse(req.RepositoryURL, req.ToolType, req.Username, req.RepositoryName)
	if err != nil {
		return platform.FetchSpec{}, processingErr("cannot parse repository URL", err)
	}

	spec := platform.FetchSpec{
		ToolConfigID: req.ToolConfigID,
		Path:         *path,
		Branch:       req.BranchName,
		Username:     req.Username,
		Token:        req.Token,
		PerPage:      perPage,
	}

	switch req.ToolType {
	case models.ToolTypeGitHub:
		spec.BaseURL = platforms.GitHub.BaseURL
		fillCredentials(&spec, platforms.GitHub)
	case models.ToolTypeGitLab:
		spec.BaseURL = platforms.GitLab.BaseURL
		fillCredentials(&spec, platforms.GitLab)
	case models.ToolTypeBitbucket:
		spec.BaseURL = platforms.Bitbucket.BaseURL
		fillCredentials(&spec, platforms.Bitbucket)
	case models.ToolTypeAzure:
		spec.BaseURL = platforms.Azure.BaseURL
		if spec.Token == "" {
			spec.Token = platforms.Azure.Token
		}
	}
	return spec, nil
}

func fillCredentials(spec *platform.FetchSpec, cfg config.PlatformConfig) {
	if spec.Token == "" {
		spec.Token = cfg.Token
	}
	if spec.Username == "" {
		spec.Username = cfg.Username
	}
}

// CommitFetcher computes the incremental time window and delegates to the
// located platform commits service.
type CommitFetcher struct {
	registry  *platform.Registry
	scanner   config.ScannerConfig
	platforms config.PlatformsConfig
	now       func() time.Time
}

// NewCommitFetcher creates a CommitFetcher.
func NewCommitFetcher(registry *platform.Registry, scanner config.ScannerConfig, platforms config.PlatformsConfig) *CommitFetcher {
	return &CommitFetcher{registry: registry, scanner: scanner, platforms: platforms, now: time.Now}
}

// Fetch returns all commits in the request's incremental window.
func (f *CommitFetcher) Fetch(ctx context.Context, req models.ScanRequest) ([]models.Commit, error) {
	svc, ok := f.registry.Commits(req.ToolType)
	if !ok {
		return nil, processingErr(fmt.Sprintf("no commits service for platform %q", req.ToolType), nil)
	}

	spec, err := buildSpec(req, f.platforms, f.scanner.Pagination.PerPage)
	if err != nil {
		return nil, err
	}
	spec.Since = windowStart(req, f.scanner.FirstScanFromMonths, f.now)
	spec.Until = req.Until

	slog.Debug("fetching commits", "repo", spec.RepoName(), "platform", req.ToolType,
		"since", spec.Since, "branch", spec.Branch)
	return svc.FetchCommits(ctx, spec)
}

// RepositoryFetcher performs the analogous incremental fetch for repository
// metadata.
type RepositoryFetcher struct {
	registry  *platform.Registry
	scanner   config.ScannerConfig
	platforms config.PlatformsConfig
	now       func() time.Time
}

// NewRepositoryFetcher creates a RepositoryFetcher.
func NewRepositoryFetcher(registry *platform.Registry, scanner config.ScannerConfig, platforms config.PlatformsConfig) *RepositoryFetcher {
	return &RepositoryFetcher{registry: registry, scanner: scanner, platforms: platforms, now: time.Now}
}

// Fetch returns the repository metadata record.
func (f *RepositoryFetcher) Fetch(ctx context.Context, req models.ScanRequest) (*models.Repository, error) {
	svc, ok := f.registry.Repository(req.ToolType)
	if !ok {
		return nil, processingErr(fmt.Sprintf("no repository service for platform %q", req.ToolType), nil)
	}

	spec, err := buildSpec(req, f.platforms, f.scanner.Pagination.PerPage)
	if err != nil {
		return nil, err
	}
	spec.Since = windowStart(req, f.scanner.FirstScanFromMonths, f.now)
	spec.Until = req.Until

	return svc.FetchRepository(ctx, spec)
}
