package platform

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kpihub/scmscan/internal/config"
	"github.com/kpihub/scmscan/internal/giturl"
	"github.com/kpihub/scmscan/internal/ratelimit"
	"github.com/kpihub/scmscan/models"
)

// FetchSpec carries everything a platform service needs for one fetch call.
// All per-call state travels in the spec; services hold no ambient context,
// so one service instance is safe under concurrent scans.
type FetchSpec struct {
	ToolConfigID string
	Path         giturl.RepoPath
	Branch       string
	Username     string
	Token        string
	BaseURL      string
	// Since is the inclusive window start.
	Since time.Time
	// Until is the exclusive window end; nil means unbounded.
	Until   *time.Time
	PerPage int
}

// RepoName renders the repository identity for log lines.
func (f FetchSpec) RepoName() string { return f.Path.FullPath() }

// CommitsService fetches commits for one platform, paginated, honoring the
// spec's time window.
type CommitsService interface {
	FetchCommits(ctx context.Context, spec FetchSpec) ([]models.Commit, error)
}

// MergeRequestService fetches merge/pull requests whose updated timestamp
// falls inside the spec's window.
type MergeRequestService interface {
	FetchMergeRequests(ctx context.Context, spec FetchSpec) ([]models.MergeRequest, error)
}

// RepositoryService fetches repository metadata.
type RepositoryService interface {
	FetchRepository(ctx context.Context, spec FetchSpec) (*models.Repository, error)
}

// APIError is any platform HTTP/SDK failure surfaced out of a fetch.
type APIError struct {
	Platform models.ToolType
	Op       string
	Err      error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error during %s: %v", e.Platform, e.Op, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// services groups the three per-platform implementations.
type services struct {
	commits       CommitsService
	mergeRequests MergeRequestService
	repository    RepositoryService
}

// Registry maps tool types to platform implementations. It is built once at
// startup; lookups for unsupported platforms return ok=false and the caller
// fails its scan explicitly.
type Registry struct {
	platforms map[models.ToolType]services
}

// NewRegistry builds the registry with all four platforms registered.
func NewRegistry(rl *ratelimit.Service, cfg config.PlatformsConfig) *Registry {
	gh := NewGitHub(rl)
	gl := NewGitLab(rl)
	bb := NewBitbucket(rl)
	az := NewAzure(rl, cfg.Azure.Org)
	r := &Registry{}
	r.Register(models.ToolTypeGitHub, gh, gh, gh)
	r.Register(models.ToolTypeGitLab, gl, gl, gl)
	r.Register(models.ToolTypeBitbucket, bb, bb, bb)
	r.Register(models.ToolTypeAzure, az, az, az)
	return r
}

// Register installs the services for one platform, replacing any previous
// registration for the same tool type.
func (r *Registry) Register(t models.ToolType, commits CommitsService, mergeRequests MergeRequestService, repository RepositoryService) {
	if r.platforms == nil {
		r.platforms = make(map[models.ToolType]services)
	}
	r.platforms[t] = services{commits: commits, mergeRequests: mergeRequests, repository: repository}
}

// Commits returns the commits service for the platform.
func (r *Registry) Commits(t models.ToolType) (CommitsService, bool) {
	p, ok := r.lookup(t)
	return p.commits, ok
}

// MergeRequests returns the merge-request service for the platform.
func (r *Registry) MergeRequests(t models.ToolType) (MergeRequestService, bool) {
	p, ok := r.lookup(t)
	return p.mergeRequests, ok
}

// Repository returns the repository service for the platform.
func (r *Registry) Repository(t models.ToolType) (RepositoryService, bool) {
	p, ok := r.lookup(t)
	return p.repository, ok
}

func (r *Registry) lookup(t models.ToolType) (services, bool) {
	p, ok := r.platforms[t]
	if !ok {
		slog.Warn("no platform service registered", "tool_type", t)
	}
	return p, ok
}

// inWindow reports whether ts falls inside [since, until). Since is
// inclusive, until exclusive.
func inWindow(ts, since time.Time, until *time.Time) bool {
	if ts.Before(since) {
		return false
	}
	if until != nil && !ts.Before(*until) {
		return false
	}
	return true
}

// partialOK implements the page-failure policy: once results have been
// gathered, a failing page stops pagination without losing them; a failure
// before anything was gathered is surfaced as an APIError.
func partialOK[T any](platform models.ToolType, op string, collected []T, err error) ([]T, error) {
	if len(collected) > 0 {
		slog.Warn("page fetch failed, returning partial results",
			"platform", platform, "op", op, "collected", len(collected), "error", err)
		return collected, nil
	}
	return nil, &APIError{Platform: platform, Op: op, Err: err}
}
