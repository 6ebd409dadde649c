package platform

import (
	"context"
	"fmt"
	"strings"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/kpihub/scmscan/internal/ratelimit"
	"github.com/kpihub/scmscan/models"
)

// GitLab implements the three fetch services for GitLab cloud and
// self-hosted instances via the official client-go SDK.
type GitLab struct {
	rl *ratelimit.Service
}

// NewGitLab creates the GitLab platform service.
func NewGitLab(rl *ratelimit.Service) *GitLab {
	return &GitLab{rl: rl}
}

func (g *GitLab) client(spec FetchSpec) (*gitlab.Client, error) {
	opts := []gitlab.ClientOptionFunc{}
	if spec.BaseURL != "" {
		base := strings.TrimSuffix(spec.BaseURL, "/")
		if !strings.HasSuffix(base, "/api/v4") {
			base += "/api/v4"
		}
		opts = append(opts, gitlab.WithBaseURL(base))
	}
	client, err := gitlab.NewClient(spec.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating GitLab client: %w", err)
	}
	return client, nil
}

func (g *GitLab) FetchCommits(ctx context.Context, spec FetchSpec) ([]models.Commit, error) {
	client, err := g.client(spec)
	if err != nil {
		return nil, &APIError{Platform: models.ToolTypeGitLab, Op: "commits", Err: err}
	}
	pid := spec.Path.FullPath()

	opts := &gitlab.ListCommitsOptions{
		RefName:     gitlab.Ptr(spec.Branch),
		Since:       gitlab.Ptr(spec.Since),
		WithStats:   gitlab.Ptr(true),
		ListOptions: gitlab.ListOptions{PerPage: perPage(spec), Page: 1},
	}
	if spec.Until != nil {
		opts.Until = gitlab.Ptr(*spec.Until)
	}

	var commits []models.Commit
	for {
		if err := g.rl.CheckRateLimit(ctx, models.ToolTypeGitLab, spec.Token, pid, spec.BaseURL); err != nil {
			return nil, err
		}
		page, resp, err := client.Commits.ListCommits(pid, opts, gitlab.WithContext(ctx))
		if err != nil {
			return partialOK(models.ToolTypeGitLab, "commits", commits, err)
		}
		for _, c := range page {
			if c == nil {
				continue
			}
			commit := models.Commit{
				ToolConfigID: spec.ToolConfigID,
				RevisionID:   c.ID,
				AuthorName:   c.AuthorName,
				AuthorEmail:  c.AuthorEmail,
				Message:      c.Message,
				Branch:       spec.Branch,
			}
			if c.CommittedDate != nil {
				commit.CommittedAt = *c.CommittedDate
			}
			if c.Stats != nil {
				commit.Additions = int(c.Stats.Additions)
				commit.Deletions = int(c.Stats.Deletions)
			}
			commits = append(commits, commit)
		}
		if resp.NextPage == 0 {
			return commits, nil
		}
		opts.ListOptions.Page = resp.NextPage
	}
}

func (g *GitLab) FetchMergeRequests(ctx context.Context, spec FetchSpec) ([]models.MergeRequest, error) {
	client, err := g.client(spec)
	if err != nil {
		return nil, &APIError{Platform: models.ToolTypeGitLab, Op: "merge requests", Err: err}
	}
	pid := spec.Path.FullPath()

	opts := &gitlab.ListProjectMergeRequestsOptions{
		UpdatedAfter: gitlab.Ptr(spec.Since),
		Scope:        gitlab.Ptr("all"),
		ListOptions:  gitlab.ListOptions{PerPage: perPage(spec), Page: 1},
	}
	if spec.Until != nil {
		opts.UpdatedBefore = gitlab.Ptr(*spec.Until)
	}

	var mrs []models.MergeRequest
	for {
		if err := g.rl.CheckRateLimit(ctx, models.ToolTypeGitLab, spec.Token, pid, spec.BaseURL); err != nil {
			return nil, err
		}
		page, resp, err := client.MergeRequests.ListProjectMergeRequests(pid, opts, gitlab.WithContext(ctx))
		if err != nil {
			return partialOK(models.ToolTypeGitLab, "merge requests", mrs, err)
		}
		for _, raw := range page {
			if raw == nil {
				continue
			}
			mr := models.MergeRequest{
				ToolConfigID: spec.ToolConfigID,
				ExternalID:   fmt.Sprintf("%d", raw.IID),
				Title:        raw.Title,
				State:        models.NormalizeMRState(raw.State, raw.State == "merged"),
				SourceBranch: raw.SourceBranch,
				TargetBranch: raw.TargetBranch,
			}
			if raw.Author != nil {
				mr.AuthorName = raw.Author.Name
				if mr.AuthorName == "" {
					mr.AuthorName = raw.Author.Username
				}
			}
			if raw.CreatedAt != nil {
				mr.CreatedOn = *raw.CreatedAt
			}
			if raw.UpdatedAt != nil {
				mr.UpdatedOn = *raw.UpdatedAt
			}
			if raw.ClosedAt != nil {
				mr.ClosedOn = raw.ClosedAt
			} else if raw.MergedAt != nil {
				mr.ClosedOn = raw.MergedAt
			}
			mrs = append(mrs, mr)
		}
		if resp.NextPage == 0 {
			return mrs, nil
		}
		opts.ListOptions.Page = resp.NextPage
	}
}

func (g *GitLab) FetchRepository(ctx context.Context, spec FetchSpec) (*models.Repository, error) {
	client, err := g.client(spec)
	if err != nil {
		return nil, &APIError{Platform: models.ToolTypeGitLab, Op: "repository", Err: err}
	}
	pid := spec.Path.FullPath()

	if err := g.rl.CheckRateLimit(ctx, models.ToolTypeGitLab, spec.Token, pid, spec.BaseURL); err != nil {
		return nil, err
	}
	proj, _, err := client.Projects.GetProject(pid, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, &APIError{Platform: models.ToolTypeGitLab, Op: "repository", Err: err}
	}

	repo := &models.Repository{
		ToolConfigID:  spec.ToolConfigID,
		Owner:         spec.Path.Owner,
		Name:          proj.Path,
		DefaultBranch: proj.DefaultBranch,
		HTMLURL:       proj.WebURL,
	}
	if proj.LastActivityAt != nil {
		repo.UpdatedOn = *proj.LastActivityAt
	}
	return repo, nil
}

var _ interface {
	CommitsService
	MergeRequestService
	RepositoryService
} = (*GitLab)(nil)
