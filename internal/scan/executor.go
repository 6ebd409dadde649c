package scan

import (
	"context"
	"log/slog"
	"time"

	"github.com/kpihub/scmscan/internal/config"
	"github.com/kpihub/scmscan/models"
)

// ScanStore is the persistence the executor writes through.
type ScanStore interface {
	OpenMRStore
	SaveCommits(ctx context.Context, commits []models.Commit) error
	SaveMergeRequests(ctx context.Context, mrs []models.MergeRequest) error
	SaveUsers(ctx context.Context, users []*models.User) error
	SaveRepository(ctx context.Context, repo *models.Repository) error
}

// BranchVerifier pre-flights that the requested branch exists on the remote.
type BranchVerifier interface {
	VerifyBranch(ctx context.Context, repoURL, branch, username, token string) error
}

// Executor orchestrates one repository scan: fetch commits, fetch merge
// requests, resolve users, link references, persist, summarize. Any failure
// in any step aborts the whole scan before the persistence writes begin, so
// a scan either fully succeeds or leaves nothing new behind.
type Executor struct {
	commits  *CommitFetcher
	mrs      *MergeRequestFetcher
	repos    *RepositoryFetcher
	resolver UserResolver
	store    ScanStore
	verifier BranchVerifier // nil unless branch verification is enabled
	scanner  config.ScannerConfig
}

// NewExecutor wires an Executor. verifier may be nil.
func NewExecutor(commits *CommitFetcher, mrs *MergeRequestFetcher, repos *RepositoryFetcher, store ScanStore, verifier BranchVerifier, scanner config.ScannerConfig) *Executor {
	return &Executor{
		commits:  commits,
		mrs:      mrs,
		repos:    repos,
		store:    store,
		verifier: verifier,
		scanner:  scanner,
	}
}

// Execute runs one scan synchronously. On failure the returned error is
// always a *DataProcessingError and no result is produced.
func (e *Executor) Execute(ctx context.Context, cmd models.ScanCommand) (*models.ScanResult, error) {
	req := cmd.Request
	result := models.NewScanResult(req)

	if minutes := e.scanner.ScanTimeoutMinutes; minutes > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(minutes)*time.Minute)
		defer cancel()
	}

	slog.Info("repository scan started",
		"repo", req.RepositoryName, "platform", req.ToolType, "url", req.RepositoryURL)

	if e.verifier != nil && req.BranchName != "" {
		if err := e.verifier.VerifyBranch(ctx, req.RepositoryURL, req.BranchName, req.Username, req.Token); err != nil {
			return nil, processingErr("repository scan failed", err)
		}
	}

	repoMeta, err := e.repos.Fetch(ctx, req)
	if err != nil {
		return nil, processingErr("repository scan failed", err)
	}

	commits, err := e.commits.Fetch(ctx, req)
	if err != nil {
		return nil, processingErr("repository scan failed", err)
	}

	mrs, err := e.mrs.Fetch(ctx, req)
	if err != nil {
		return nil, processingErr("repository scan failed", err)
	}

	index, users := e.resolver.Resolve(commits, mrs, req)
	if len(users) > 0 {
		if err := e.store.SaveUsers(ctx, users); err != nil {
			return nil, processingErr("repository scan failed", err)
		}
	}
	e.resolver.LinkCommits(commits, index, req)
	e.resolver.LinkMergeRequests(mrs, index, req)

	if len(commits) > 0 {
		if err := e.store.SaveCommits(ctx, commits); err != nil {
			return nil, processingErr("repository scan failed", err)
		}
	}
	if len(mrs) > 0 {
		if err := e.store.SaveMergeRequests(ctx, mrs); err != nil {
			return nil, processingErr("repository scan failed", err)
		}
	}
	if err := e.store.SaveRepository(ctx, repoMeta); err != nil {
		return nil, processingErr("repository scan failed", err)
	}

	result.CommitsFound = len(commits)
	result.MergeRequestsFound = len(mrs)
	result.UsersFound = len(users)
	result.Finalize(true, "")

	slog.Info("repository scan finished",
		"repo", req.RepositoryName,
		"commits", result.CommitsFound,
		"merge_requests", result.MergeRequestsFound,
		"users", result.UsersFound,
		"duration_ms", result.DurationMs)
	return result, nil
}
